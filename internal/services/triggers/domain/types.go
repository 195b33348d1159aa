// Package domain defines the Trigger Source types and ports
package domain

import (
	"context"
	"time"
)

// Status vocabulary for entry triggers
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

// Trigger is one journal entry awaiting orchestration
type Trigger struct {
	ID          string
	EntryID     string
	HomeID      string
	SenderID    string
	RecipientID string
	Surface     string
	Status      string
	Attempts    int
	RetryAt     time.Time
	LastReason  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// SourcePort is the Trigger Source call surface. The orchestrator drives one
// trigger through a terminal mark exactly once; the cron runner pops backlog
type SourcePort interface {
	// PopPending claims up to limit pending triggers whose retry_at has passed
	PopPending(ctx context.Context, limit int) ([]Trigger, error)

	// MarkProcessing is best-effort; orchestration proceeds even if it fails
	MarkProcessing(ctx context.Context, id string) error

	MarkCompleted(ctx context.Context, id string) error

	// MarkFailed requeues the trigger for a later attempt with a reason
	MarkFailed(ctx context.Context, id string, retryAt time.Time, reason string) error

	// MarkCanceled terminally drops the trigger with a reason
	MarkCanceled(ctx context.Context, id string, reason string) error
}
