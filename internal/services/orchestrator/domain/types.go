// Package domain defines orchestrator dto types and ports
package domain

import (
	"context"
	"time"

	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Skip reasons returned when an entry needs no rewrite
const (
	SkipNoText      = "no_text_to_rewrite"
	SkipTextTooLong = "text_too_long"
)

// TriggerInput is one rewrite trigger as posted by the cron runner.
// TriggerID is optional; without it trigger marks are skipped
type TriggerInput struct {
	TriggerID   string `json:"trigger_id" validate:"omitempty,uuid4"`
	EntryID     string `json:"entry_id" validate:"required,uuid4"`
	HomeID      string `json:"home_id" validate:"required,uuid4"`
	SenderID    string `json:"sender_id" validate:"required,uuid4"`
	RecipientID string `json:"recipient_id" validate:"required,uuid4"`
	Surface     string `json:"surface" validate:"required,oneof=journal note checkin"`
}

// Output reports what the orchestrator did with one trigger
type Output struct {
	AlreadyEnqueued bool       `json:"already_enqueued"`
	Skipped         string     `json:"skipped,omitempty"`
	RequestID       string     `json:"request_id,omitempty"`
	JobIDs          []string   `json:"job_ids,omitempty"`
	Lane            rwdom.Lane `json:"lane,omitempty"`
}

// EntryBundle is the authoritative entry/home/member data fetched in one go
type EntryBundle struct {
	EntryID     string
	HomeID      string
	SenderID    string
	RecipientID string
	Surface     string
	Text        string

	SenderRole      string
	RecipientRole   string
	RecipientName   string
	RecipientLocale string

	// preference inputs captured into the preference snapshot
	Tone      string
	Formality string
}

// RecipientSnapshot freezes recipient identity at enqueue time
type RecipientSnapshot struct {
	ID          string
	RecipientID string
	HomeID      string
	DisplayName string
	Role        string
	Locale      string
	CreatedAt   time.Time
}

// PreferenceSnapshot freezes recipient delivery preferences at enqueue time
type PreferenceSnapshot struct {
	ID           string
	RecipientID  string
	TargetLocale string
	Tone         string
	Formality    string
	CreatedAt    time.Time
}

// StorePort is the datastore surface the orchestrator consumes
type StorePort interface {
	// RequestExists reports whether a rewrite request exists for the entry
	RequestExists(ctx context.Context, entryID string) (bool, error)

	// EntryBundle fetches authoritative entry, home, and member data
	EntryBundle(ctx context.Context, entryID string) (EntryBundle, error)

	// SaveSnapshots persists both immutable snapshots
	SaveSnapshots(ctx context.Context, rec RecipientSnapshot, pref PreferenceSnapshot) error

	// RoutingFor computes the routing decision for a lane and strength
	RoutingFor(ctx context.Context, lane rwdom.Lane, strength rwdom.RewriteStrength) (rwdom.RoutingDecision, error)

	// EnqueueRequestJob inserts the request and its jobs atomically.
	// Returns false without error when the request already exists
	EnqueueRequestJob(ctx context.Context, req rwdom.RewriteRequest, jobs []rwdom.RewriteJob) (bool, error)
}

// TriggerMarker is the trigger-source mark surface the orchestrator drives
type TriggerMarker interface {
	MarkProcessing(ctx context.Context, id string) error
	MarkCompleted(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, retryAt time.Time, reason string) error
	MarkCanceled(ctx context.Context, id string, reason string) error
}

// OrchestratorPort drives one trigger through enqueue
type OrchestratorPort interface {
	Rewrite(ctx context.Context, in TriggerInput) (Output, error)
}
