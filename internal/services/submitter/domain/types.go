// Package domain defines submitter ports and dto types
package domain

import (
	"context"
	"time"

	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Report summarizes one submitter run
type Report struct {
	Claimed   int    `json:"claimed"`
	Submitted int    `json:"submitted"`
	Requeued  int    `json:"requeued"`
	Failed    int    `json:"failed"`
	Deferred  int    `json:"deferred"`
	BatchID   string `json:"batch_id,omitempty"`
}

// StorePort is the datastore surface the submitter consumes
type StorePort interface {
	// ClaimBatchJobs atomically claims up to limit queued batch-lane jobs,
	// flipping them to processing
	ClaimBatchJobs(ctx context.Context, limit int) ([]rwdom.RewriteJob, error)

	// RequestByID fetches one rewrite request
	RequestByID(ctx context.Context, id string) (rwdom.RewriteRequest, error)

	// RequeueJob spends one attempt: back to queued with not_before, or
	// failed when attempts are exhausted
	RequeueJob(ctx context.Context, jobID string, retryAt time.Time, reason string) error

	// ReleaseJob returns an unsent job to the queue without spending an
	// attempt (byte-cap deferral is not a failure)
	ReleaseJob(ctx context.Context, jobID string, retryAt time.Time, reason string) error

	// FailJob permanently fails a job
	FailJob(ctx context.Context, jobID string, reason string) error

	// RegisterBatch inserts the provider batch row and links every job to
	// it as batch_submitted, atomically
	RegisterBatch(ctx context.Context, batch rwdom.ProviderBatch, jobIDs []string) error
}

// ProviderPort is the provider batch-creation surface
type ProviderPort interface {
	UploadBatchInput(ctx context.Context, name string, jsonl []byte) (fileID string, err error)
	CreateBatch(ctx context.Context, inputFileID string) (batchID string, err error)
}

// SubmitterPort runs one submission cycle
type SubmitterPort interface {
	Run(ctx context.Context) (Report, error)
}
