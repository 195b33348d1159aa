package module

import (
	"time"

	"olivebranch/internal/platform/config"
)

// Options tunes the cron runner and its orchestrator client
type Options struct {
	OrchestratorURL string
	Token           string

	PopLimit    int
	CallTimeout time.Duration

	Attempts   uint
	RetryDelay time.Duration

	RequeueDelay time.Duration
}

// FromConfig reads CRON_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	cc := cfg.Prefix("CRON_")
	return Options{
		OrchestratorURL: cc.MayString("ORCHESTRATOR_URL", "http://localhost:4000/api/v1/orchestrator/rewrite"),
		Token:           cc.MayString("INTERNAL_TOKEN", ""),

		PopLimit:    cc.MayInt("POP_LIMIT", 25),
		CallTimeout: cc.MayDuration("CALL_TIMEOUT", 90*time.Second),

		Attempts:   uint(cc.MayInt("ATTEMPTS", 3)),
		RetryDelay: cc.MayDuration("RETRY_DELAY", 2*time.Second),

		RequeueDelay: cc.MayDuration("REQUEUE_DELAY", time.Minute),
	}
}
