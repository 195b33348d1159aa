// Package repo implements the collector datastore surface over Postgres
package repo

import (
	"context"
	"encoding/json"
	"time"

	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	ptime "olivebranch/internal/platform/time"
	"olivebranch/internal/services/collector/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

type queries struct{ q repokit.Queryer }

// NewPG returns a Binder producing the Postgres collector repo
func NewPG() repokit.Binder[domain.StorePort] {
	return repokit.BindFunc[domain.StorePort](func(q repokit.Queryer) domain.StorePort {
		return &queries{q: q}
	})
}

// ListPendingBatches picks up unfinished batches plus finished ones that
// still own batch_submitted jobs, so a crash mid-collection self-heals on
// the next run
func (r *queries) ListPendingBatches(ctx context.Context, limit int) ([]rwdom.ProviderBatch, error) {
	const sqlq = `
        SELECT b.batch_id, b.endpoint, b.status,
               COALESCE(b.input_file_id, ''), COALESCE(b.output_file_id, ''),
               COALESCE(b.error_file_id, ''), b.job_count,
               b.created_at, b.updated_at
          FROM provider_batches b
         WHERE b.status IN ('submitted', 'running')
            OR (b.status = 'completed' AND EXISTS (
                    SELECT 1 FROM rewrite_jobs j
                     WHERE j.provider_batch_id = b.batch_id
                       AND j.status = 'batch_submitted'))
         ORDER BY b.created_at ASC
         LIMIT $1
    `
	rows, err := r.q.Query(ctx, sqlq, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list pending batches")
	}
	defer rows.Close()

	var out []rwdom.ProviderBatch
	for rows.Next() {
		var b rwdom.ProviderBatch
		if err := rows.Scan(
			&b.ID, &b.Endpoint, &b.Status,
			&b.InputFileID, &b.OutputFileID, &b.ErrorFileID, &b.JobCount,
			&b.CreatedAt, &b.UpdatedAt,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan provider batch")
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *queries) UpdateBatchStatus(ctx context.Context, batchID string, st domain.BatchState) error {
	const sqlq = `
        UPDATE provider_batches
           SET status = $2,
               output_file_id = NULLIF($3, ''),
               error_file_id = NULLIF($4, ''),
               finished_at = $5,
               updated_at = now()
         WHERE batch_id = $1
    `
	_, err := r.q.Exec(ctx, sqlq, batchID,
		string(st.Status), st.OutputFileID, st.ErrorFileID, ptime.Ptr(st.FinishedAt))
	return perr.FromPostgres(err, "update batch status")
}

func (r *queries) MarkBatchFailed(ctx context.Context, batchID string, reason string) error {
	const sqlq = `
        UPDATE provider_batches
           SET status = 'failed', fail_reason = NULLIF($2, ''), updated_at = now()
         WHERE batch_id = $1
    `
	_, err := r.q.Exec(ctx, sqlq, batchID, reason)
	return perr.FromPostgres(err, "mark batch failed")
}

// JobForBatch resolves one correlation id against this batch. Jobs in any
// other state, or under another batch, come back not found and the caller
// skips the line
func (r *queries) JobForBatch(ctx context.Context, jobID, batchID string) (rwdom.RewriteJob, error) {
	const sqlq = `
        SELECT job_id::text, request_id::text, recipient_id::text,
               recipient_snapshot_id::text, preference_snapshot_id::text,
               task_kind, surface, strength, lane, routing,
               attempt_count, max_attempts, not_before, status,
               created_at, updated_at
          FROM rewrite_jobs
         WHERE job_id = $1
           AND provider_batch_id = $2
           AND status = 'batch_submitted'
    `
	var j rwdom.RewriteJob
	var routing []byte
	err := r.q.QueryRow(ctx, sqlq, jobID, batchID).Scan(
		&j.ID, &j.RequestID, &j.RecipientID,
		&j.RecipientSnapshotID, &j.PreferenceSnapshotID,
		&j.TaskKind, &j.Surface, &j.Strength, &j.Lane, &routing,
		&j.AttemptCount, &j.MaxAttempts, &j.NotBefore, &j.Status,
		&j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return rwdom.RewriteJob{}, perr.FromPostgres(err, "fetch batch job")
	}
	if err := json.Unmarshal(routing, &j.Routing); err != nil {
		return rwdom.RewriteJob{}, perr.JSONErrf("unmarshal job routing: %v", err)
	}
	return j, nil
}

func (r *queries) RequestByID(ctx context.Context, id string) (rwdom.RewriteRequest, error) {
	const sqlq = `
        SELECT request_id::text, home_id::text, sender_id::text, recipient_id::text,
               original_text, source_locale, target_locale, lane,
               classifier, context_pack, routing, policy, status,
               created_at, updated_at
          FROM rewrite_requests
         WHERE request_id = $1
    `
	var req rwdom.RewriteRequest
	var clf, cpack, routing, pol []byte
	err := r.q.QueryRow(ctx, sqlq, id).Scan(
		&req.ID, &req.HomeID, &req.SenderID, &req.RecipientID,
		&req.OriginalText, &req.SourceLocale, &req.TargetLocale, &req.Lane,
		&clf, &cpack, &routing, &pol, &req.Status,
		&req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return rwdom.RewriteRequest{}, perr.FromPostgres(err, "fetch rewrite request")
	}
	for _, pair := range []struct {
		raw []byte
		dst any
	}{
		{clf, &req.Classifier},
		{cpack, &req.Context},
		{routing, &req.Routing},
		{pol, &req.Policy},
	} {
		if len(pair.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(pair.raw, pair.dst); err != nil {
			return rwdom.RewriteRequest{}, perr.JSONErrf("unmarshal request field: %v", err)
		}
	}
	return req, nil
}

// CompleteJob is guarded on batch_submitted so replayed lines no-op
func (r *queries) CompleteJob(ctx context.Context, jobID, text string, eval rwdom.Evaluation) error {
	ev, err := json.Marshal(eval)
	if err != nil {
		return perr.JSONErrf("marshal evaluation: %v", err)
	}
	const sqlq = `
        UPDATE rewrite_jobs
           SET status = 'completed',
               output = $2,
               evaluation = $3,
               last_error = NULL,
               updated_at = now()
         WHERE job_id = $1
           AND status = 'batch_submitted'
    `
	_, err = r.q.Exec(ctx, sqlq, jobID, text, ev)
	return perr.FromPostgres(err, "complete job")
}

func (r *queries) RequeueJob(ctx context.Context, jobID string, retryAt time.Time, reason string) error {
	const sqlq = `
        UPDATE rewrite_jobs
           SET attempt_count = attempt_count + 1,
               status = CASE WHEN attempt_count + 1 >= max_attempts
                             THEN 'failed' ELSE 'queued' END,
               not_before = CASE WHEN attempt_count + 1 >= max_attempts
                                 THEN not_before ELSE $2 END,
               provider_batch_id = NULL,
               last_error = NULLIF($3, ''),
               updated_at = now()
         WHERE job_id = $1
           AND status IN ('processing', 'batch_submitted')
    `
	_, err := r.q.Exec(ctx, sqlq, jobID, retryAt, reason)
	return perr.FromPostgres(err, "requeue job")
}

func (r *queries) FailJob(ctx context.Context, jobID string, reason string) error {
	const sqlq = `
        UPDATE rewrite_jobs
           SET status = 'failed',
               last_error = NULLIF($2, ''),
               updated_at = now()
         WHERE job_id = $1
           AND status IN ('processing', 'batch_submitted')
    `
	_, err := r.q.Exec(ctx, sqlq, jobID, reason)
	return perr.FromPostgres(err, "fail job")
}

// RequeueBatchJobs sweeps every still-linked job of a batch back to the
// queue in one statement
func (r *queries) RequeueBatchJobs(ctx context.Context, batchID string, retryAt time.Time, reason string) ([]string, error) {
	const sqlq = `
        UPDATE rewrite_jobs
           SET attempt_count = attempt_count + 1,
               status = CASE WHEN attempt_count + 1 >= max_attempts
                             THEN 'failed' ELSE 'queued' END,
               not_before = CASE WHEN attempt_count + 1 >= max_attempts
                                 THEN not_before ELSE $2 END,
               provider_batch_id = NULL,
               last_error = NULLIF($3, ''),
               updated_at = now()
         WHERE provider_batch_id = $1
           AND status = 'batch_submitted'
        RETURNING request_id::text
    `
	rows, err := r.q.Query(ctx, sqlq, batchID, retryAt, reason)
	if err != nil {
		return nil, perr.FromPostgres(err, "requeue batch jobs")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, perr.FromPostgres(err, "scan requeued request id")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// FinalizeRequest completes the request only when no job remains
// non-terminal. Safe to call any number of times
func (r *queries) FinalizeRequest(ctx context.Context, requestID string) (bool, error) {
	const sqlq = `
        UPDATE rewrite_requests r
           SET status = 'completed', updated_at = now()
         WHERE r.request_id = $1
           AND r.status NOT IN ('completed', 'canceled')
           AND NOT EXISTS (
                 SELECT 1 FROM rewrite_jobs j
                  WHERE j.request_id = r.request_id
                    AND j.status NOT IN ('completed', 'failed', 'canceled'))
    `
	tag, err := r.q.Exec(ctx, sqlq, requestID)
	if err != nil {
		return false, perr.FromPostgres(err, "finalize request")
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	const check = `
        SELECT status IN ('completed', 'canceled')
          FROM rewrite_requests
         WHERE request_id = $1
    `
	var final bool
	if err := r.q.QueryRow(ctx, check, requestID).Scan(&final); err != nil {
		return false, perr.FromPostgres(err, "check request finality")
	}
	return final, nil
}
