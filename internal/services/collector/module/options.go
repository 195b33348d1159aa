package module

import (
	"time"

	"olivebranch/internal/platform/config"
)

// Options tunes the collector worker and its provider client
type Options struct {
	MaxBatches         int
	MissingOutputDelay time.Duration
	ProviderDelay      time.Duration
	ParseDelay         time.Duration

	APIKey          string
	BaseURL         string
	ProviderTimeout time.Duration
	ProviderRetries int
}

// FromConfig reads COLLECTOR_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	cc := cfg.Prefix("COLLECTOR_")
	return Options{
		MaxBatches:         cc.MayInt("MAX_BATCHES", 20),
		MissingOutputDelay: cc.MayDuration("MISSING_OUTPUT_DELAY", 10*time.Minute),
		ProviderDelay:      cc.MayDuration("PROVIDER_DELAY", 5*time.Minute),
		ParseDelay:         cc.MayDuration("PARSE_DELAY", time.Minute),

		APIKey:          cc.MayString("OPENAI_API_KEY", ""),
		BaseURL:         cc.MayString("OPENAI_BASE_URL", ""),
		ProviderTimeout: cc.MayDuration("PROVIDER_TIMEOUT", 60*time.Second),
		ProviderRetries: cc.MayInt("PROVIDER_RETRIES", 2),
	}
}
