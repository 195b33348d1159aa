package module

import (
	"time"

	"olivebranch/internal/platform/config"
)

// Options tunes the submitter worker and its provider client
type Options struct {
	ClaimLimit      int
	PerLineMaxBytes int
	BatchMaxBytes   int

	DeferDelay       time.Duration
	RequeueDelay     time.Duration
	UploadRetryDelay time.Duration
	UnsupportedDelay time.Duration

	APIKey          string
	BaseURL         string
	ProviderTimeout time.Duration
	ProviderRetries int
}

// FromConfig reads SUBMITTER_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	sc := cfg.Prefix("SUBMITTER_")
	return Options{
		ClaimLimit:      sc.MayInt("CLAIM_LIMIT", 100),
		PerLineMaxBytes: sc.MayInt("LINE_MAX_BYTES", 256<<10),
		BatchMaxBytes:   sc.MayInt("BATCH_MAX_BYTES", 8<<20),

		DeferDelay:       sc.MayDuration("DEFER_DELAY", 30*time.Second),
		RequeueDelay:     sc.MayDuration("REQUEUE_DELAY", 5*time.Minute),
		UploadRetryDelay: sc.MayDuration("UPLOAD_RETRY_DELAY", 5*time.Minute),
		UnsupportedDelay: sc.MayDuration("UNSUPPORTED_DELAY", 30*time.Minute),

		APIKey:          sc.MayString("OPENAI_API_KEY", ""),
		BaseURL:         sc.MayString("OPENAI_BASE_URL", ""),
		ProviderTimeout: sc.MayDuration("PROVIDER_TIMEOUT", 60*time.Second),
		ProviderRetries: sc.MayInt("PROVIDER_RETRIES", 2),
	}
}
