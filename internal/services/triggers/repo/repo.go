// Package repo implements the Trigger Source over Postgres
package repo

import (
	"context"
	"time"

	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/services/triggers/domain"
)

type queries struct{ q repokit.Queryer }

// NewPG returns a Binder producing the Postgres trigger repo
func NewPG() repokit.Binder[domain.SourcePort] {
	return repokit.BindFunc[domain.SourcePort](func(q repokit.Queryer) domain.SourcePort {
		return &queries{q: q}
	})
}

// PopPending claims up to limit ready triggers and flips them to processing.
// SKIP LOCKED keeps concurrent cron runs from double-claiming
func (r *queries) PopPending(ctx context.Context, limit int) ([]domain.Trigger, error) {
	const sqlq = `
        WITH ready AS (
            SELECT trigger_id
              FROM entry_triggers
             WHERE status IN ('pending', 'failed')
               AND retry_at <= now()
             ORDER BY retry_at ASC
             LIMIT $1
             FOR UPDATE SKIP LOCKED
        ), upd AS (
            UPDATE entry_triggers t
               SET status = 'processing',
                   attempts = t.attempts + 1,
                   updated_at = now()
             WHERE t.trigger_id IN (SELECT trigger_id FROM ready)
            RETURNING t.*
        )
        SELECT trigger_id::text, entry_id::text, home_id::text, sender_id::text,
               recipient_id::text, surface, status, attempts, retry_at,
               COALESCE(last_reason, ''), created_at, updated_at
          FROM upd
    `
	rows, err := r.q.Query(ctx, sqlq, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "pop pending triggers")
	}
	defer rows.Close()

	var out []domain.Trigger
	for rows.Next() {
		var t domain.Trigger
		if err := rows.Scan(
			&t.ID, &t.EntryID, &t.HomeID, &t.SenderID, &t.RecipientID,
			&t.Surface, &t.Status, &t.Attempts, &t.RetryAt,
			&t.LastReason, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, perr.FromPostgres(err, "scan trigger")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *queries) MarkProcessing(ctx context.Context, id string) error {
	const sqlq = `
        UPDATE entry_triggers
           SET status = 'processing', updated_at = now()
         WHERE trigger_id = $1
           AND status NOT IN ('completed', 'canceled')
    `
	_, err := r.q.Exec(ctx, sqlq, id)
	return perr.FromPostgres(err, "mark trigger processing")
}

func (r *queries) MarkCompleted(ctx context.Context, id string) error {
	const sqlq = `
        UPDATE entry_triggers
           SET status = 'completed', last_reason = NULL, updated_at = now()
         WHERE trigger_id = $1
           AND status NOT IN ('completed', 'canceled')
    `
	_, err := r.q.Exec(ctx, sqlq, id)
	return perr.FromPostgres(err, "mark trigger completed")
}

func (r *queries) MarkFailed(ctx context.Context, id string, retryAt time.Time, reason string) error {
	const sqlq = `
        UPDATE entry_triggers
           SET status = 'failed',
               retry_at = $2,
               last_reason = NULLIF($3, ''),
               updated_at = now()
         WHERE trigger_id = $1
           AND status NOT IN ('completed', 'canceled')
    `
	_, err := r.q.Exec(ctx, sqlq, id, retryAt, reason)
	return perr.FromPostgres(err, "mark trigger failed")
}

func (r *queries) MarkCanceled(ctx context.Context, id string, reason string) error {
	const sqlq = `
        UPDATE entry_triggers
           SET status = 'canceled',
               last_reason = NULLIF($2, ''),
               updated_at = now()
         WHERE trigger_id = $1
           AND status NOT IN ('completed', 'canceled')
    `
	_, err := r.q.Exec(ctx, sqlq, id, reason)
	return perr.FromPostgres(err, "mark trigger canceled")
}
