// Package repo implements the orchestrator datastore surface over Postgres
package repo

import (
	"context"
	"encoding/json"

	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/services/orchestrator/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

type queries struct{ q repokit.Queryer }

// NewPG returns a Binder producing the Postgres orchestrator repo
func NewPG() repokit.Binder[domain.StorePort] {
	return repokit.BindFunc[domain.StorePort](func(q repokit.Queryer) domain.StorePort {
		return &queries{q: q}
	})
}

func (r *queries) RequestExists(ctx context.Context, entryID string) (bool, error) {
	const sqlq = `SELECT EXISTS (SELECT 1 FROM rewrite_requests WHERE request_id = $1)`
	var exists bool
	if err := r.q.QueryRow(ctx, sqlq, entryID).Scan(&exists); err != nil {
		return false, perr.FromPostgres(err, "request exists")
	}
	return exists, nil
}

// EntryBundle joins the entry with both member rows and the recipient's
// preferences in one round trip
func (r *queries) EntryBundle(ctx context.Context, entryID string) (domain.EntryBundle, error) {
	const sqlq = `
        SELECT e.entry_id::text, e.home_id::text, e.sender_id::text,
               e.recipient_id::text, e.surface, COALESCE(e.text, ''),
               s.role, rcpt.role, rcpt.display_name, rcpt.locale,
               COALESCE(p.tone, 'warm'), COALESCE(p.formality, 'casual'),
               COALESCE(p.target_locale, rcpt.locale)
          FROM entries e
          JOIN household_members s    ON s.member_id = e.sender_id
          JOIN household_members rcpt ON rcpt.member_id = e.recipient_id
          LEFT JOIN member_preferences p ON p.member_id = e.recipient_id
         WHERE e.entry_id = $1
    `
	var b domain.EntryBundle
	var targetLocale string
	err := r.q.QueryRow(ctx, sqlq, entryID).Scan(
		&b.EntryID, &b.HomeID, &b.SenderID, &b.RecipientID, &b.Surface, &b.Text,
		&b.SenderRole, &b.RecipientRole, &b.RecipientName, &b.RecipientLocale,
		&b.Tone, &b.Formality, &targetLocale,
	)
	if err != nil {
		return domain.EntryBundle{}, perr.FromPostgres(err, "fetch entry bundle")
	}
	// an explicit target locale preference overrides the member locale
	if targetLocale != "" {
		b.RecipientLocale = targetLocale
	}
	return b, nil
}

func (r *queries) SaveSnapshots(
	ctx context.Context,
	rec domain.RecipientSnapshot,
	pref domain.PreferenceSnapshot,
) error {
	const recSQL = `
        INSERT INTO recipient_snapshots
            (snapshot_id, recipient_id, home_id, display_name, role, locale, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, now())
    `
	if _, err := r.q.Exec(ctx, recSQL,
		rec.ID, rec.RecipientID, rec.HomeID, rec.DisplayName, rec.Role, rec.Locale,
	); err != nil {
		return perr.FromPostgres(err, "insert recipient snapshot")
	}

	const prefSQL = `
        INSERT INTO preference_snapshots
            (snapshot_id, recipient_id, target_locale, tone, formality, created_at)
        VALUES ($1, $2, $3, $4, $5, now())
    `
	if _, err := r.q.Exec(ctx, prefSQL,
		pref.ID, pref.RecipientID, pref.TargetLocale, pref.Tone, pref.Formality,
	); err != nil {
		return perr.FromPostgres(err, "insert preference snapshot")
	}
	return nil
}

// RoutingFor reads the routing rule for a lane, falling back to defaults
// when no rule row exists. The decision is frozen into every job it produces
func (r *queries) RoutingFor(
	ctx context.Context,
	lane rwdom.Lane,
	strength rwdom.RewriteStrength,
) (rwdom.RoutingDecision, error) {
	const sqlq = `
        SELECT provider, model, prompt_version, policy_version,
               mode, cache_eligible, max_attempts
          FROM routing_rules
         WHERE lane = $1
    `
	d := rwdom.RoutingDecision{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		PromptVersion: "rw-v1",
		PolicyVersion: "pol-v1",
		Mode:          rwdom.ModeBatch,
		CacheEligible: strength == rwdom.StrengthLightTouch,
		MaxAttempts:   3,
	}
	err := r.q.QueryRow(ctx, sqlq, string(lane)).Scan(
		&d.Provider, &d.Model, &d.PromptVersion, &d.PolicyVersion,
		&d.Mode, &d.CacheEligible, &d.MaxAttempts,
	)
	if err != nil {
		if perr.IsCode(perr.FromPostgres(err, ""), perr.ErrorCodeNotFound) {
			return d, nil
		}
		return rwdom.RoutingDecision{}, perr.FromPostgres(err, "routing lookup")
	}
	return d, nil
}

// EnqueueRequestJob inserts the request keyed on the entry id plus its jobs.
// ON CONFLICT DO NOTHING makes redelivery and races safe; the loser sees
// created=false and no job rows are written
func (r *queries) EnqueueRequestJob(
	ctx context.Context,
	req rwdom.RewriteRequest,
	jobs []rwdom.RewriteJob,
) (bool, error) {
	clf, err := json.Marshal(req.Classifier)
	if err != nil {
		return false, perr.JSONErrf("marshal classifier result: %v", err)
	}
	cpack, err := json.Marshal(req.Context)
	if err != nil {
		return false, perr.JSONErrf("marshal context pack: %v", err)
	}
	routing, err := json.Marshal(req.Routing)
	if err != nil {
		return false, perr.JSONErrf("marshal routing decision: %v", err)
	}
	pol, err := json.Marshal(req.Policy)
	if err != nil {
		return false, perr.JSONErrf("marshal policy snapshot: %v", err)
	}

	const reqSQL = `
        INSERT INTO rewrite_requests
            (request_id, home_id, sender_id, recipient_id, original_text,
             source_locale, target_locale, lane, classifier, context_pack,
             routing, policy, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 'queued', now(), now())
        ON CONFLICT (request_id) DO NOTHING
    `
	tag, err := r.q.Exec(ctx, reqSQL,
		req.ID, req.HomeID, req.SenderID, req.RecipientID, req.OriginalText,
		req.SourceLocale, req.TargetLocale, string(req.Lane),
		clf, cpack, routing, pol,
	)
	if err != nil {
		return false, perr.FromPostgres(err, "insert rewrite request")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	const jobSQL = `
        INSERT INTO rewrite_jobs
            (job_id, request_id, recipient_id, recipient_snapshot_id,
             preference_snapshot_id, task_kind, surface, strength, lane,
             routing, attempt_count, max_attempts, not_before, status,
             created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, now(), 'queued',
                now(), now())
    `
	for _, j := range jobs {
		jr, err := json.Marshal(j.Routing)
		if err != nil {
			return false, perr.JSONErrf("marshal job routing: %v", err)
		}
		if _, err := r.q.Exec(ctx, jobSQL,
			j.ID, j.RequestID, j.RecipientID, j.RecipientSnapshotID,
			j.PreferenceSnapshotID, j.TaskKind, string(j.Surface),
			string(j.Strength), string(j.Lane), jr, j.MaxAttempts,
		); err != nil {
			return false, perr.FromPostgres(err, "insert rewrite job")
		}
	}
	return true, nil
}
