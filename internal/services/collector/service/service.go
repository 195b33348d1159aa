// Package service implements the batch collector: poll outstanding provider
// batches, reconcile output lines with their jobs, and finalize requests
package service

import (
	"bytes"
	"context"
	"time"

	oaiprov "olivebranch/internal/adapters/provider/openai"
	"olivebranch/internal/core/lexicon"
	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/platform/logger"
	"olivebranch/internal/services/collector/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Config tunes one collection cycle
type Config struct {
	// MaxBatches caps batches handled per run
	MaxBatches int

	// MissingOutputDelay backs off jobs of a batch that completed without
	// a usable output file
	MissingOutputDelay time.Duration

	// ProviderDelay backs off a job whose line carried a provider error
	ProviderDelay time.Duration

	// ParseDelay backs off a job whose line held no usable text
	ParseDelay time.Duration
}

func (c *Config) defaults() {
	if c.MaxBatches <= 0 {
		c.MaxBatches = 20
	}
	if c.MissingOutputDelay <= 0 {
		c.MissingOutputDelay = 10 * time.Minute
	}
	if c.ProviderDelay <= 0 {
		c.ProviderDelay = 5 * time.Minute
	}
	if c.ParseDelay <= 0 {
		c.ParseDelay = time.Minute
	}
}

// Svc drives one collection cycle
type Svc struct {
	db       repokit.TxRunner
	store    repokit.Binder[domain.StorePort]
	provider domain.ProviderPort
	lex      *lexicon.Evaluator
	cfg      Config
}

// New constructs the collector service
func New(
	db repokit.TxRunner,
	store repokit.Binder[domain.StorePort],
	provider domain.ProviderPort,
	lex *lexicon.Evaluator,
	cfg Config,
) *Svc {
	if db == nil || store == nil || provider == nil {
		panic("collector service requires db, store binder, and provider port")
	}
	if lex == nil {
		lex = lexicon.Default()
	}
	cfg.defaults()
	return &Svc{db: db, store: store, provider: provider, lex: lex, cfg: cfg}
}

// Run polls up to MaxBatches outstanding batches and reconciles each one.
// A poll failure skips only that batch; everything else in the run proceeds
func (s *Svc) Run(ctx context.Context) (domain.Report, error) {
	log := logger.C(ctx)
	repo := s.store.Bind(s.db)
	var rep domain.Report

	batches, err := repo.ListPendingBatches(ctx, s.cfg.MaxBatches)
	if err != nil {
		return rep, err
	}
	rep.Polled = len(batches)

	for _, batch := range batches {
		if err := s.collectBatch(ctx, repo, batch, &rep); err != nil {
			log.Error().Err(err).Str("batch_id", batch.ID).Msg("batch collection failed")
		}
	}
	return rep, nil
}

func (s *Svc) collectBatch(
	ctx context.Context,
	repo domain.StorePort,
	batch rwdom.ProviderBatch,
	rep *domain.Report,
) error {
	st, err := s.provider.GetBatch(ctx, batch.ID)
	if err != nil {
		return err
	}
	if err := repo.UpdateBatchStatus(ctx, batch.ID, st); err != nil {
		return err
	}

	switch st.Status {
	case rwdom.BatchSubmitted, rwdom.BatchRunning:
		return nil
	case rwdom.BatchFailed, rwdom.BatchCanceled:
		return s.requeueWholeBatch(ctx, repo, batch.ID, "batch_"+string(st.Status), rep)
	}

	if st.OutputFileID == "" {
		// completed with nothing to download is a batch-level defect,
		// not a per-line failure
		if err := repo.MarkBatchFailed(ctx, batch.ID, "output_missing"); err != nil {
			return err
		}
		return s.requeueWholeBatch(ctx, repo, batch.ID, "output_missing", rep)
	}

	payload, err := s.provider.DownloadFile(ctx, st.OutputFileID)
	if err != nil {
		if err := repo.MarkBatchFailed(ctx, batch.ID, "output_unreadable"); err != nil {
			return err
		}
		return s.requeueWholeBatch(ctx, repo, batch.ID, "output_unreadable", rep)
	}

	touched := map[string]struct{}{}
	for _, row := range bytes.Split(payload, []byte{'\n'}) {
		row = bytes.TrimSpace(row)
		if len(row) == 0 {
			continue
		}
		line, err := oaiprov.ParseResultLine(row)
		if err != nil {
			// a garbled row identifies no job; its job is swept below
			rep.Skipped++
			continue
		}
		s.collectLine(ctx, repo, batch.ID, line, touched, rep)
	}
	rep.Collected++

	// jobs the output never mentioned would otherwise wait forever
	swept, err := repo.RequeueBatchJobs(ctx, batch.ID,
		time.Now().Add(s.cfg.ProviderDelay), "no_result_line")
	if err != nil {
		return err
	}
	rep.Requeued += len(swept)
	for _, id := range swept {
		touched[id] = struct{}{}
	}

	for id := range touched {
		final, err := repo.FinalizeRequest(ctx, id)
		if err != nil {
			return err
		}
		if final {
			rep.Finalized++
		}
	}
	return nil
}

// collectLine reconciles one output line. Lines whose correlation id does
// not resolve to a batch_submitted job of this batch are skipped without
// touching counters for completed or failed
func (s *Svc) collectLine(
	ctx context.Context,
	repo domain.StorePort,
	batchID string,
	line oaiprov.ResultLine,
	touched map[string]struct{},
	rep *domain.Report,
) {
	log := logger.C(ctx)

	job, err := repo.JobForBatch(ctx, line.CustomID, batchID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			rep.Skipped++
			return
		}
		log.Error().Err(err).Str("correlation_id", line.CustomID).Msg("job lookup failed")
		return
	}
	touched[job.RequestID] = struct{}{}

	if line.Error != nil || (line.Response != nil && line.Response.StatusCode >= 400) {
		if err := moveJob(job, rwdom.JobQueued, func() error {
			return repo.RequeueJob(ctx, job.ID,
				time.Now().Add(s.cfg.ProviderDelay), "provider_line_error")
		}); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("requeue failed")
			return
		}
		rep.Requeued++
		return
	}

	text := line.Content()
	if text == "" {
		if err := moveJob(job, rwdom.JobQueued, func() error {
			return repo.RequeueJob(ctx, job.ID,
				time.Now().Add(s.cfg.ParseDelay), "empty_output")
		}); err != nil {
			log.Error().Err(err).Str("job_id", job.ID).Msg("requeue failed")
			return
		}
		rep.Requeued++
		return
	}

	if _, err := repo.RequestByID(ctx, job.RequestID); err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			if ferr := moveJob(job, rwdom.JobFailed, func() error {
				return repo.FailJob(ctx, job.ID, "request_missing")
			}); ferr != nil {
				log.Error().Err(ferr).Str("job_id", job.ID).Msg("fail failed")
				return
			}
			rep.Failed++
			return
		}
		log.Error().Err(err).Str("job_id", job.ID).Msg("request fetch failed")
		return
	}

	verdict := s.lex.Evaluate(text)
	if !verdict.Pass || !verdict.ToneSafe {
		// quality gate, retrying the same candidate would not help
		reason := "lexicon_failed"
		if verdict.Pass {
			reason = "tone_unsafe"
		}
		if ferr := moveJob(job, rwdom.JobFailed, func() error {
			return repo.FailJob(ctx, job.ID, reason)
		}); ferr != nil {
			log.Error().Err(ferr).Str("job_id", job.ID).Msg("fail failed")
			return
		}
		rep.Failed++
		return
	}

	eval := rwdom.Evaluation{
		LexiconPass: verdict.Pass,
		ToneSafe:    verdict.ToneSafe,
		MaxSeverity: verdict.MaxSeverity,
	}
	for _, m := range verdict.Matches {
		eval.MatchedTerms = append(eval.MatchedTerms, m.Phrase)
	}
	if err := moveJob(job, rwdom.JobCompleted, func() error {
		return repo.CompleteJob(ctx, job.ID, text, eval)
	}); err != nil {
		log.Error().Err(err).Str("job_id", job.ID).Msg("complete failed")
		return
	}
	rep.Completed++
}

// moveJob applies a repo mutation only when the transition table allows the
// job to leave its current state for the target. The repos guard the same
// moves in SQL; this catches a stale or inconsistent fetch before it writes
func moveJob(job rwdom.RewriteJob, to rwdom.JobStatus, move func() error) error {
	if err := rwdom.CheckJobTransition(job.Status, to); err != nil {
		return err
	}
	return move()
}

func (s *Svc) requeueWholeBatch(
	ctx context.Context,
	repo domain.StorePort,
	batchID, reason string,
	rep *domain.Report,
) error {
	ids, err := repo.RequeueBatchJobs(ctx, batchID,
		time.Now().Add(s.cfg.MissingOutputDelay), reason)
	if err != nil {
		return err
	}
	rep.Requeued += len(ids)
	logger.C(ctx).Warn().Str("batch_id", batchID).Str("reason", reason).
		Int("jobs", len(ids)).Msg("batch-wide requeue")

	// requeue can exhaust a job's attempts and go terminal, so the
	// affected requests still need a finalize pass
	seen := map[string]struct{}{}
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		final, err := repo.FinalizeRequest(ctx, id)
		if err != nil {
			return err
		}
		if final {
			rep.Finalized++
		}
	}
	return nil
}
