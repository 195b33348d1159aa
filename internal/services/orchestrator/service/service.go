// Package service implements the orchestrator: one trigger in, one durable
// rewrite request out, with the trigger always reaching a terminal mark
package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"olivebranch/internal/core/locales"
	"olivebranch/internal/core/policy"
	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/platform/logger"
	cdom "olivebranch/internal/services/classifier/domain"
	"olivebranch/internal/services/orchestrator/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Config tunes orchestration behavior
type Config struct {
	// ClassifierTimeout bounds the classifier call separately from the
	// request deadline
	ClassifierTimeout time.Duration

	// TriggerRetryDelay is the fixed backoff applied when a retryable
	// failure sends the trigger back to the source
	TriggerRetryDelay time.Duration

	// TaskKind stamps every job this orchestrator enqueues
	TaskKind string
}

// Svc drives one trigger through classification, routing, and enqueue
type Svc struct {
	db         repokit.TxRunner
	store      repokit.Binder[domain.StorePort]
	triggers   domain.TriggerMarker
	classifier cdom.ClassifierPort
	cfg        Config
}

// New constructs the orchestrator service
func New(
	db repokit.TxRunner,
	store repokit.Binder[domain.StorePort],
	triggers domain.TriggerMarker,
	classifier cdom.ClassifierPort,
	cfg Config,
) *Svc {
	if db == nil || store == nil {
		panic("orchestrator service requires db and store binder")
	}
	if triggers == nil || classifier == nil {
		panic("orchestrator service requires trigger and classifier ports")
	}
	if cfg.ClassifierTimeout <= 0 {
		cfg.ClassifierTimeout = 35 * time.Second
	}
	if cfg.TriggerRetryDelay <= 0 {
		cfg.TriggerRetryDelay = 30 * time.Second
	}
	if cfg.TaskKind == "" {
		cfg.TaskKind = "entry_rewrite"
	}
	return &Svc{db: db, store: store, triggers: triggers, classifier: classifier, cfg: cfg}
}

// Rewrite runs the gate sequence for one trigger. Whatever happens after the
// processing mark, the deferred finalizer settles the trigger: completed on
// success, canceled on skip or permanent failure, failed with a fixed backoff
// on anything retryable
func (s *Svc) Rewrite(ctx context.Context, in domain.TriggerInput) (out domain.Output, err error) {
	log := logger.C(ctx)

	if in.TriggerID != "" {
		if merr := s.triggers.MarkProcessing(ctx, in.TriggerID); merr != nil {
			log.Warn().Err(merr).Str("trigger_id", in.TriggerID).Msg("mark processing failed")
		}
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Any("panic", r).Str("entry_id", in.EntryID).Msg("orchestrator panicked")
			err = perr.PanicErrf("orchestrator panic: %v", r)
		}
		s.settleTrigger(ctx, in.TriggerID, out, err)
	}()

	repo := s.store.Bind(s.db)

	exists, err := repo.RequestExists(ctx, in.EntryID)
	if err != nil {
		return out, err
	}
	if exists {
		out.AlreadyEnqueued = true
		out.RequestID = in.EntryID
		return out, nil
	}

	bundle, err := repo.EntryBundle(ctx, in.EntryID)
	if err != nil {
		if perr.IsCode(err, perr.ErrorCodeNotFound) {
			return out, perr.Forbiddenf("entry_mismatch: entry %s not found", in.EntryID)
		}
		return out, err
	}
	if err := crossCheck(in, bundle); err != nil {
		return out, err
	}

	text := strings.TrimSpace(bundle.Text)
	if text == "" {
		out.Skipped = domain.SkipNoText
		return out, nil
	}
	if utf8.RuneCountInString(text) > cdom.TextCap {
		return out, perr.PayloadTooLargef(
			"%s: entry text exceeds %d chars", domain.SkipTextTooLong, cdom.TextCap)
	}

	recSnap := domain.RecipientSnapshot{
		ID:          uuid.NewString(),
		RecipientID: bundle.RecipientID,
		HomeID:      bundle.HomeID,
		DisplayName: bundle.RecipientName,
		Role:        bundle.RecipientRole,
		Locale:      locales.Normalize(bundle.RecipientLocale),
	}
	prefSnap := domain.PreferenceSnapshot{
		ID:           uuid.NewString(),
		RecipientID:  bundle.RecipientID,
		TargetLocale: recSnap.Locale,
		Tone:         bundle.Tone,
		Formality:    bundle.Formality,
	}
	if err := repo.SaveSnapshots(ctx, recSnap, prefSnap); err != nil {
		return out, err
	}

	clfCtx, cancel := context.WithTimeout(ctx, s.cfg.ClassifierTimeout)
	defer cancel()
	clf, err := s.classifier.Classify(clfCtx, cdom.Input{
		Text:     text,
		Surface:  bundle.Surface,
		SenderID: bundle.SenderID,
	})
	if err != nil {
		if clfCtx.Err() != nil && ctx.Err() == nil {
			return out, perr.UpstreamTimeoutf("classifier call timed out")
		}
		return out, err
	}

	lane := rwdom.LaneCrossLanguage
	if locales.SameLanguage(clf.DetectedLanguage, prefSnap.TargetLocale) {
		lane = rwdom.LaneSameLanguage
	}
	out.Lane = lane

	routing, err := repo.RoutingFor(ctx, lane, clf.Strength)
	if err != nil {
		return out, err
	}
	if routing.Mode != rwdom.ModeBatch {
		// only the windowed batch path runs here; a rule routing elsewhere
		// would park the job forever, so refuse it as a config defect
		return out, perr.InvalidArgf("unsupported_mode:%s", routing.Mode)
	}

	req := rwdom.RewriteRequest{
		ID:           in.EntryID,
		HomeID:       bundle.HomeID,
		SenderID:     bundle.SenderID,
		RecipientID:  bundle.RecipientID,
		OriginalText: text,
		SourceLocale: clf.DetectedLanguage,
		TargetLocale: prefSnap.TargetLocale,
		Lane:         lane,
		Classifier:   clf,
		Context: rwdom.ContextPack{
			Topics:         clf.Topics,
			TargetLanguage: prefSnap.TargetLocale,
			PowerMode:      policy.PowerMode(bundle.SenderRole, bundle.RecipientRole),
		},
		Routing: routing,
		Policy:  policy.Snapshot(clf.Strength),
	}
	job := rwdom.RewriteJob{
		ID:                   uuid.NewString(),
		RequestID:            req.ID,
		RecipientID:          bundle.RecipientID,
		RecipientSnapshotID:  recSnap.ID,
		PreferenceSnapshotID: prefSnap.ID,
		TaskKind:             s.cfg.TaskKind,
		Surface:              rwdom.Surface(bundle.Surface),
		Strength:             clf.Strength,
		Lane:                 lane,
		Routing:              routing,
		MaxAttempts:          routing.MaxAttempts,
	}

	var created bool
	err = repokit.WithTx(ctx, s.db, func(q repokit.Queryer) error {
		var txErr error
		created, txErr = s.store.Bind(q).EnqueueRequestJob(ctx, req, []rwdom.RewriteJob{job})
		return txErr
	})
	if err != nil {
		return out, err
	}

	out.RequestID = req.ID
	if !created {
		// lost the race to a concurrent invocation for the same entry
		out.AlreadyEnqueued = true
		return out, nil
	}
	out.JobIDs = []string{job.ID}
	return out, nil
}

// crossCheck rejects caller-supplied identifiers that disagree with the
// authoritative rows. Mismatches are authorization failures, never retried
func crossCheck(in domain.TriggerInput, b domain.EntryBundle) error {
	switch {
	case in.HomeID != b.HomeID:
		return perr.Forbiddenf("home_mismatch")
	case in.SenderID != b.SenderID:
		return perr.Forbiddenf("sender_mismatch")
	case in.RecipientID != b.RecipientID:
		return perr.Forbiddenf("recipient_mismatch")
	case in.Surface != b.Surface:
		return perr.Forbiddenf("surface_mismatch")
	}
	return nil
}

// settleTimeout bounds the terminal mark once the request context is gone
const settleTimeout = 5 * time.Second

// settleTrigger guarantees the trigger never stays non-terminal. Guarded
// updates in the trigger repo make every mark safe to repeat
func (s *Svc) settleTrigger(ctx context.Context, triggerID string, out domain.Output, err error) {
	if triggerID == "" {
		return
	}
	log := logger.C(ctx)

	// the caller may have disconnected and canceled ctx; the terminal
	// mark must still land, so settle on a detached context
	mctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	var merr error
	switch {
	case err == nil && out.Skipped != "":
		merr = s.triggers.MarkCanceled(mctx, triggerID, out.Skipped)
	case err == nil:
		merr = s.triggers.MarkCompleted(mctx, triggerID)
	case perr.Retryable(err) || perr.IsCode(err, perr.ErrorCodePanic):
		// a panic carries no failure attribution, so give the trigger
		// another run rather than canceling it outright
		merr = s.triggers.MarkFailed(mctx, triggerID, time.Now().Add(s.cfg.TriggerRetryDelay), reasonOf(err))
	default:
		merr = s.triggers.MarkCanceled(mctx, triggerID, reasonOf(err))
	}
	if merr != nil {
		log.Error().Err(merr).Str("trigger_id", triggerID).Msg("trigger settle failed")
	}
}

// reasonOf trims an error to a short diagnostic reason string
func reasonOf(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, ':'); i > 0 {
		return msg[:i]
	}
	if len(msg) > 120 {
		return msg[:120]
	}
	return msg
}
