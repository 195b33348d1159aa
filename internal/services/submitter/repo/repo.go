// Package repo implements the submitter datastore surface over Postgres
package repo

import (
	"context"
	"encoding/json"
	"time"

	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/services/submitter/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

type queries struct{ q repokit.Queryer }

// NewPG returns a Binder producing the Postgres submitter repo
func NewPG() repokit.Binder[domain.StorePort] {
	return repokit.BindFunc[domain.StorePort](func(q repokit.Queryer) domain.StorePort {
		return &queries{q: q}
	})
}

// ClaimBatchJobs claims ready batch-mode jobs and flips them to processing.
// SKIP LOCKED keeps two concurrent submitter runs from double-claiming
func (r *queries) ClaimBatchJobs(ctx context.Context, limit int) ([]rwdom.RewriteJob, error) {
	const sqlq = `
        WITH ready AS (
            SELECT job_id
              FROM rewrite_jobs
             WHERE status = 'queued'
               AND not_before <= now()
               AND routing->>'mode' = 'batch'
             ORDER BY not_before ASC
             LIMIT $1
             FOR UPDATE SKIP LOCKED
        ), upd AS (
            UPDATE rewrite_jobs j
               SET status = 'processing', updated_at = now()
             WHERE j.job_id IN (SELECT job_id FROM ready)
            RETURNING j.*
        )
        SELECT job_id::text, request_id::text, recipient_id::text,
               recipient_snapshot_id::text, preference_snapshot_id::text,
               task_kind, surface, strength, lane, routing,
               attempt_count, max_attempts, not_before, status,
               created_at, updated_at
          FROM upd
    `
	rows, err := r.q.Query(ctx, sqlq, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "claim batch jobs")
	}
	defer rows.Close()

	var out []rwdom.RewriteJob
	for rows.Next() {
		var j rwdom.RewriteJob
		var routing []byte
		if err := rows.Scan(
			&j.ID, &j.RequestID, &j.RecipientID,
			&j.RecipientSnapshotID, &j.PreferenceSnapshotID,
			&j.TaskKind, &j.Surface, &j.Strength, &j.Lane, &routing,
			&j.AttemptCount, &j.MaxAttempts, &j.NotBefore, &j.Status,
			&j.CreatedAt, &j.UpdatedAt,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan claimed job")
		}
		if err := json.Unmarshal(routing, &j.Routing); err != nil {
			return nil, perr.JSONErrf("unmarshal job routing: %v", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (r *queries) RequestByID(ctx context.Context, id string) (rwdom.RewriteRequest, error) {
	return requestByID(ctx, r.q, id)
}

func requestByID(ctx context.Context, q repokit.Queryer, id string) (rwdom.RewriteRequest, error) {
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
	err := q.QueryRow(ctx, sqlq, id).Scan(
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

// RequeueJob spends one attempt. The CASE keeps exhausted jobs out of the
// queue for good: attempts at max flip straight to failed
func (r *queries) RequeueJob(ctx context.Context, jobID string, retryAt time.Time, reason string) error {
	const sqlq = `
        UPDATE rewrite_jobs
           SET attempt_count = attempt_count + 1,
               status = CASE WHEN attempt_count + 1 >= max_attempts
                             THEN 'failed' ELSE 'queued' END,
               not_before = CASE WHEN attempt_count + 1 >= max_attempts
                                 THEN not_before ELSE $2 END,
               last_error = NULLIF($3, ''),
               updated_at = now()
         WHERE job_id = $1
           AND status IN ('processing', 'batch_submitted')
    `
	_, err := r.q.Exec(ctx, sqlq, jobID, retryAt, reason)
	return perr.FromPostgres(err, "requeue job")
}

// ReleaseJob sends a deferred job back to the queue without touching its
// attempt counter
func (r *queries) ReleaseJob(ctx context.Context, jobID string, retryAt time.Time, reason string) error {
	const sqlq = `
        UPDATE rewrite_jobs
           SET status = 'queued',
               not_before = $2,
               last_error = NULLIF($3, ''),
               updated_at = now()
         WHERE job_id = $1
           AND status = 'processing'
    `
	_, err := r.q.Exec(ctx, sqlq, jobID, retryAt, reason)
	return perr.FromPostgres(err, "release job")
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

// RegisterBatch links accepted jobs to the freshly created provider batch.
// Run inside a transaction by the service so the row and links land together
func (r *queries) RegisterBatch(ctx context.Context, batch rwdom.ProviderBatch, jobIDs []string) error {
	const batchSQL = `
        INSERT INTO provider_batches
            (batch_id, endpoint, status, input_file_id, job_count,
             created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, now(), now())
    `
	if _, err := r.q.Exec(ctx, batchSQL,
		batch.ID, batch.Endpoint, string(batch.Status), batch.InputFileID, batch.JobCount,
	); err != nil {
		return perr.FromPostgres(err, "insert provider batch")
	}

	const linkSQL = `
        UPDATE rewrite_jobs
           SET status = 'batch_submitted',
               provider_batch_id = $2,
               updated_at = now()
         WHERE job_id = $1
           AND status = 'processing'
    `
	for _, id := range jobIDs {
		tag, err := r.q.Exec(ctx, linkSQL, id, batch.ID)
		if err != nil {
			return perr.FromPostgres(err, "link job to batch")
		}
		if tag.RowsAffected() == 0 {
			return perr.Conflictf("job %s no longer processing", id)
		}
	}
	return nil
}
