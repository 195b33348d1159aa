// Package service implements the batch submitter: claim queued batch jobs,
// pack them into one provider batch, and link them as batch_submitted
package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	oaiprov "olivebranch/internal/adapters/provider/openai"
	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/platform/logger"
	"olivebranch/internal/services/submitter/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Config tunes one submission cycle
type Config struct {
	// ClaimLimit caps jobs claimed per run
	ClaimLimit int

	// PerLineMaxBytes caps one rendered batch line
	PerLineMaxBytes int

	// BatchMaxBytes caps the cumulative upload size
	BatchMaxBytes int

	// DeferDelay parks byte-cap overflow jobs until the next run
	DeferDelay time.Duration

	// RequeueDelay backs off jobs whose line could not be built or sized
	RequeueDelay time.Duration

	// UploadRetryDelay backs off the whole set after an upload/create/link
	// failure
	UploadRetryDelay time.Duration

	// UnsupportedDelay is the long backoff for jobs routed to a provider
	// the batch path cannot serve
	UnsupportedDelay time.Duration
}

func (c *Config) defaults() {
	if c.ClaimLimit <= 0 {
		c.ClaimLimit = 100
	}
	if c.PerLineMaxBytes <= 0 {
		c.PerLineMaxBytes = 256 << 10
	}
	if c.BatchMaxBytes <= 0 {
		c.BatchMaxBytes = 8 << 20
	}
	if c.DeferDelay <= 0 {
		c.DeferDelay = 30 * time.Second
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = 5 * time.Minute
	}
	if c.UploadRetryDelay <= 0 {
		c.UploadRetryDelay = 5 * time.Minute
	}
	if c.UnsupportedDelay <= 0 {
		c.UnsupportedDelay = 30 * time.Minute
	}
}

// batchProvider names the only provider the batch path serves
const batchProvider = "openai"

// Svc drives one submission cycle
type Svc struct {
	db       repokit.TxRunner
	store    repokit.Binder[domain.StorePort]
	provider domain.ProviderPort
	cfg      Config
}

// New constructs the submitter service
func New(
	db repokit.TxRunner,
	store repokit.Binder[domain.StorePort],
	provider domain.ProviderPort,
	cfg Config,
) *Svc {
	if db == nil || store == nil || provider == nil {
		panic("submitter service requires db, store binder, and provider port")
	}
	cfg.defaults()
	return &Svc{db: db, store: store, provider: provider, cfg: cfg}
}

// Run executes one submission cycle. Jobs that cannot ride this batch are
// requeued or deferred, never dropped; a provider-side failure after upload
// requeues the whole accepted set
func (s *Svc) Run(ctx context.Context) (rep domain.Report, err error) {
	log := logger.C(ctx)
	repo := s.store.Bind(s.db)

	jobs, err := repo.ClaimBatchJobs(ctx, s.cfg.ClaimLimit)
	if err != nil {
		return rep, err
	}
	rep.Claimed = len(jobs)
	if len(jobs) == 0 {
		return rep, nil
	}

	// every claimed job must leave processing before the cycle ends; when
	// an error aborts mid-set, the untouched remainder goes back to queued
	handled := make(map[string]bool, len(jobs))
	defer func() {
		if err == nil {
			return
		}
		s.releaseAbandoned(ctx, repo, jobs, handled, &rep)
	}()

	var (
		payload  bytes.Buffer
		accepted []rwdom.RewriteJob
	)

	for _, job := range jobs {
		// a fresh claim is processing; any other state cannot legally ride
		// a batch, so leave it untouched rather than compound the mismatch
		if terr := rwdom.CheckJobTransition(job.Status, rwdom.JobBatchSubmitted); terr != nil {
			log.Error().Err(terr).Str("job_id", job.ID).Msg("claimed job in unexpected state")
			handled[job.ID] = true
			continue
		}

		req, err := repo.RequestByID(ctx, job.RequestID)
		if err != nil {
			if perr.IsCode(err, perr.ErrorCodeNotFound) {
				// orphaned job, retrying will never find the parent
				if ferr := repo.FailJob(ctx, job.ID, "request_missing"); ferr != nil {
					return rep, ferr
				}
				handled[job.ID] = true
				rep.Failed++
				continue
			}
			return rep, err
		}

		if job.Routing.Provider != batchProvider {
			if rerr := repo.RequeueJob(ctx, job.ID,
				time.Now().Add(s.cfg.UnsupportedDelay),
				fmt.Sprintf("unsupported_provider:%s", job.Routing.Provider),
			); rerr != nil {
				return rep, rerr
			}
			handled[job.ID] = true
			rep.Requeued++
			continue
		}

		system, user := buildPrompts(req, job)
		line := oaiprov.NewRequestLine(job.ID, job.Routing.Model, system, user)
		if line.CustomID != job.ID {
			// misattributed results are worse than a delayed job
			if rerr := repo.RequeueJob(ctx, job.ID,
				time.Now().Add(s.cfg.RequeueDelay), "correlation_mismatch",
			); rerr != nil {
				return rep, rerr
			}
			handled[job.ID] = true
			rep.Requeued++
			continue
		}

		row, err := line.Marshal()
		if err != nil {
			if rerr := repo.RequeueJob(ctx, job.ID,
				time.Now().Add(s.cfg.RequeueDelay), "line_marshal_failed",
			); rerr != nil {
				return rep, rerr
			}
			handled[job.ID] = true
			rep.Requeued++
			continue
		}
		if len(row) > s.cfg.PerLineMaxBytes {
			if rerr := repo.RequeueJob(ctx, job.ID,
				time.Now().Add(s.cfg.RequeueDelay), "line_too_large",
			); rerr != nil {
				return rep, rerr
			}
			handled[job.ID] = true
			rep.Requeued++
			continue
		}

		if payload.Len()+len(row)+1 > s.cfg.BatchMaxBytes {
			// batch is full; defer without spending an attempt
			if rerr := repo.ReleaseJob(ctx, job.ID,
				time.Now().Add(s.cfg.DeferDelay), "batch_full",
			); rerr != nil {
				return rep, rerr
			}
			handled[job.ID] = true
			rep.Deferred++
			continue
		}

		payload.Write(row)
		payload.WriteByte('\n')
		accepted = append(accepted, job)
	}

	if len(accepted) == 0 {
		return rep, nil
	}

	name := fmt.Sprintf("rewrite-batch-%d.jsonl", time.Now().Unix())
	fileID, err := s.provider.UploadBatchInput(ctx, name, payload.Bytes())
	if err != nil {
		s.requeueSet(ctx, repo, accepted, "batch_upload_failed", &rep, handled)
		return rep, err
	}

	batchID, err := s.provider.CreateBatch(ctx, fileID)
	if err != nil {
		s.requeueSet(ctx, repo, accepted, "batch_create_failed", &rep, handled)
		return rep, err
	}

	ids := make([]string, 0, len(accepted))
	for _, job := range accepted {
		ids = append(ids, job.ID)
	}
	batch := rwdom.ProviderBatch{
		ID:          batchID,
		Endpoint:    oaiprov.BatchEndpoint,
		Status:      rwdom.BatchSubmitted,
		InputFileID: fileID,
		JobCount:    len(ids),
	}
	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		return s.store.Bind(q).RegisterBatch(ctx, batch, ids)
	})
	if err != nil {
		// the provider already holds the batch; without the link the
		// collector cannot reconcile it, so requeue over silent acceptance
		log.Error().Err(err).Str("batch_id", batchID).Msg("batch link failed, requeueing set")
		s.requeueSet(ctx, repo, accepted, "batch_link_failed", &rep, handled)
		return rep, err
	}

	rep.Submitted = len(ids)
	rep.BatchID = batchID
	log.Info().Int("jobs", rep.Submitted).Str("batch_id", batchID).Msg("provider batch submitted")
	return rep, nil
}

func (s *Svc) requeueSet(
	ctx context.Context,
	repo domain.StorePort,
	jobs []rwdom.RewriteJob,
	reason string,
	rep *domain.Report,
	handled map[string]bool,
) {
	retryAt := time.Now().Add(s.cfg.UploadRetryDelay)
	for _, job := range jobs {
		if err := repo.RequeueJob(ctx, job.ID, retryAt, reason); err != nil {
			logger.C(ctx).Error().Err(err).Str("job_id", job.ID).Msg("requeue after provider failure failed")
			continue
		}
		handled[job.ID] = true
		rep.Requeued++
	}
}

// releaseTimeout bounds the abandoned-claim release once the cycle context
// is gone
const releaseTimeout = 10 * time.Second

// releaseAbandoned returns untouched claims to the queue after an aborted
// cycle. The abort was not the job's doing, so no attempt is spent; the
// processing guard on the release makes a repeat harmless
func (s *Svc) releaseAbandoned(
	ctx context.Context,
	repo domain.StorePort,
	jobs []rwdom.RewriteJob,
	handled map[string]bool,
	rep *domain.Report,
) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	retryAt := time.Now().Add(s.cfg.DeferDelay)
	for _, job := range jobs {
		if handled[job.ID] {
			continue
		}
		if rerr := repo.ReleaseJob(rctx, job.ID, retryAt, "cycle_aborted"); rerr != nil {
			logger.C(ctx).Error().Err(rerr).Str("job_id", job.ID).Msg("release after aborted cycle failed")
			continue
		}
		rep.Deferred++
	}
}
