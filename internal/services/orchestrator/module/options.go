package module

import (
	"time"

	"olivebranch/internal/platform/config"
)

// Options tunes the orchestrator service
type Options struct {
	ClassifierTimeout time.Duration
	TriggerRetryDelay time.Duration
	TaskKind          string
}

// FromConfig reads ORCH_* values from process config/env
func FromConfig(cfg config.Conf) Options {
	oc := cfg.Prefix("ORCH_")
	return Options{
		ClassifierTimeout: oc.MayDuration("CLASSIFIER_TIMEOUT", 35*time.Second),
		TriggerRetryDelay: oc.MayDuration("TRIGGER_RETRY_DELAY", 30*time.Second),
		TaskKind:          oc.MayString("TASK_KIND", "entry_rewrite"),
	}
}
