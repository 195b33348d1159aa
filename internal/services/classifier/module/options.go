package module

import (
	"time"

	"olivebranch/internal/platform/config"
)

// Options controls the provider client used for classification
type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// FromConfig reads CLASSIFIER_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	cc := cfg.Prefix("CLASSIFIER_")
	return Options{
		APIKey:     cc.MayString("OPENAI_API_KEY", ""),
		BaseURL:    cc.MayString("OPENAI_BASE_URL", ""),
		Model:      cc.MayString("MODEL", ""),
		Timeout:    cc.MayDuration("TIMEOUT", 30*time.Second),
		MaxRetries: cc.MayInt("MAX_RETRIES", 2),
	}
}
