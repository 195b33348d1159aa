// Package domain defines collector ports and dto types
package domain

import (
	"context"
	"time"

	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Report summarizes one collection run
type Report struct {
	Polled    int `json:"polled"`
	Collected int `json:"collected"`
	Completed int `json:"completed"`
	Requeued  int `json:"requeued"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
	Finalized int `json:"finalized"`
}

// BatchState is the provider's current view of one batch
type BatchState struct {
	Status       rwdom.BatchStatus
	OutputFileID string
	ErrorFileID  string

	// FinishedAt is zero until the provider reports a terminal state
	FinishedAt time.Time
}

// StorePort is the datastore surface the collector consumes
type StorePort interface {
	// ListPendingBatches returns up to limit batches still needing
	// attention: not yet finished, or finished with unreconciled jobs
	ListPendingBatches(ctx context.Context, limit int) ([]rwdom.ProviderBatch, error)

	// UpdateBatchStatus persists the provider's batch state
	UpdateBatchStatus(ctx context.Context, batchID string, st BatchState) error

	// MarkBatchFailed flips the batch to failed with a reason
	MarkBatchFailed(ctx context.Context, batchID string, reason string) error

	// JobForBatch fetches one job iff it is batch_submitted under this
	// batch; anything else is not found
	JobForBatch(ctx context.Context, jobID, batchID string) (rwdom.RewriteJob, error)

	// RequestByID fetches one rewrite request
	RequestByID(ctx context.Context, id string) (rwdom.RewriteRequest, error)

	// CompleteJob writes the final text and evaluation, guarded on
	// batch_submitted
	CompleteJob(ctx context.Context, jobID, text string, eval rwdom.Evaluation) error

	// RequeueJob spends one attempt: back to queued with not_before, or
	// failed when attempts are exhausted
	RequeueJob(ctx context.Context, jobID string, retryAt time.Time, reason string) error

	// FailJob permanently fails a job
	FailJob(ctx context.Context, jobID string, reason string) error

	// RequeueBatchJobs requeues every batch_submitted job of a batch and
	// returns the affected request ids (jobs exhausting their attempts go
	// terminal here, so their requests may need finalizing)
	RequeueBatchJobs(ctx context.Context, batchID string, retryAt time.Time, reason string) ([]string, error)

	// FinalizeRequest marks the request completed iff all of its jobs are
	// terminal. Idempotent; returns true when the request is (now) final
	FinalizeRequest(ctx context.Context, requestID string) (bool, error)
}

// ProviderPort is the provider batch-polling surface
type ProviderPort interface {
	GetBatch(ctx context.Context, id string) (BatchState, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

// CollectorPort runs one collection cycle
type CollectorPort interface {
	Run(ctx context.Context) (Report, error)
}
