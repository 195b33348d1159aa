package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"olivebranch/internal/modkit/repokit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/platform/store"
	"olivebranch/internal/services/submitter/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

type fakeTx struct{}

func (fakeTx) Exec(context.Context, string, ...any) (store.CommandTag, error) {
	return nil, nil
}
func (fakeTx) Query(context.Context, string, ...any) (store.Rows, error) { return nil, nil }
func (fakeTx) QueryRow(context.Context, string, ...any) store.Row        { return nil }
func (f fakeTx) Tx(ctx context.Context, fn func(q store.RowQuerier) error) error {
	return fn(f)
}

type requeueRec struct {
	jobID  string
	reason string
}

type fakeStore struct {
	jobs     []rwdom.RewriteJob
	requests map[string]rwdom.RewriteRequest

	requestErrs map[string]error
	registerErr error

	requeued   []requeueRec
	released   []requeueRec
	failed     []requeueRec
	registered *rwdom.ProviderBatch
	linkedIDs  []string
}

func (f *fakeStore) ClaimBatchJobs(context.Context, int) ([]rwdom.RewriteJob, error) {
	return f.jobs, nil
}

func (f *fakeStore) RequestByID(_ context.Context, id string) (rwdom.RewriteRequest, error) {
	if err := f.requestErrs[id]; err != nil {
		return rwdom.RewriteRequest{}, err
	}
	req, ok := f.requests[id]
	if !ok {
		return rwdom.RewriteRequest{}, perr.NotFoundf("request %s", id)
	}
	return req, nil
}

func (f *fakeStore) RequeueJob(_ context.Context, jobID string, _ time.Time, reason string) error {
	f.requeued = append(f.requeued, requeueRec{jobID: jobID, reason: reason})
	return nil
}

func (f *fakeStore) ReleaseJob(_ context.Context, jobID string, _ time.Time, reason string) error {
	f.released = append(f.released, requeueRec{jobID: jobID, reason: reason})
	return nil
}

func (f *fakeStore) FailJob(_ context.Context, jobID string, reason string) error {
	f.failed = append(f.failed, requeueRec{jobID: jobID, reason: reason})
	return nil
}

func (f *fakeStore) RegisterBatch(_ context.Context, batch rwdom.ProviderBatch, jobIDs []string) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = &batch
	f.linkedIDs = jobIDs
	return nil
}

type fakeProvider struct {
	uploadErr error
	createErr error

	uploadedName  string
	uploadedBytes []byte
	created       int
}

func (f *fakeProvider) UploadBatchInput(_ context.Context, name string, jsonl []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.uploadedName = name
	f.uploadedBytes = jsonl
	return "file-1", nil
}

func (f *fakeProvider) CreateBatch(context.Context, string) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created++
	return "batch-1", nil
}

func job(id string) rwdom.RewriteJob {
	return rwdom.RewriteJob{
		ID:        id,
		RequestID: "req-" + id,
		Routing: rwdom.RoutingDecision{
			Provider: "openai", Model: "gpt-4o-mini",
			Mode: rwdom.ModeBatch, MaxAttempts: 3,
		},
		Lane:     rwdom.LaneSameLanguage,
		Strength: rwdom.StrengthFullReframe,
		Status:   rwdom.JobProcessing,
	}
}

func request(id string) rwdom.RewriteRequest {
	return rwdom.RewriteRequest{
		ID:           id,
		OriginalText: "the laundry situation is out of control",
		SourceLocale: "en",
		TargetLocale: "en",
		Lane:         rwdom.LaneSameLanguage,
		Policy: rwdom.PolicySnapshot{
			Tone: "warm", Directness: "medium", EmotionalTemperature: "low",
		},
		Context: rwdom.ContextPack{
			Topics: []rwdom.Topic{rwdom.TopicChores}, TargetLanguage: "en",
			PowerMode: rwdom.PowerPeer,
		},
	}
}

func newSvc(st *fakeStore, p *fakeProvider, cfg Config) *Svc {
	binder := repokit.BindFunc[domain.StorePort](func(repokit.Queryer) domain.StorePort { return st })
	return New(fakeTx{}, binder, p, cfg)
}

func storeWith(jobs ...rwdom.RewriteJob) *fakeStore {
	st := &fakeStore{jobs: jobs, requests: map[string]rwdom.RewriteRequest{}}
	for _, j := range jobs {
		st.requests[j.RequestID] = request(j.RequestID)
	}
	return st
}

func TestRun_SubmitsOneBatch(t *testing.T) {
	t.Parallel()

	st := storeWith(job("a"), job("b"))
	p := &fakeProvider{}
	s := newSvc(st, p, Config{})

	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Claimed != 2 || rep.Submitted != 2 || rep.BatchID != "batch-1" {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if st.registered == nil || st.registered.JobCount != 2 {
		t.Fatalf("batch row not registered: %+v", st.registered)
	}
	if len(st.linkedIDs) != 2 {
		t.Fatalf("expected both jobs linked, got %v", st.linkedIDs)
	}

	lines := strings.Split(strings.TrimRight(string(p.uploadedBytes), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 NDJSON lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"custom_id":"a"`) {
		t.Fatalf("first line must carry the job id as correlation id: %s", lines[0])
	}
}

func TestRun_MissingRequestFailsPermanently(t *testing.T) {
	t.Parallel()

	st := storeWith(job("a"))
	delete(st.requests, "req-a")
	p := &fakeProvider{}
	s := newSvc(st, p, Config{})

	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Failed != 1 || rep.Submitted != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(st.failed) != 1 || st.failed[0].reason != "request_missing" {
		t.Fatalf("expected permanent fail, got %+v", st.failed)
	}
}

func TestRun_UnsupportedProviderRequeuesLong(t *testing.T) {
	t.Parallel()

	j := job("a")
	j.Routing.Provider = "anthropic"
	st := storeWith(j)
	p := &fakeProvider{}
	s := newSvc(st, p, Config{})

	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Requeued != 1 || rep.Submitted != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if len(st.requeued) != 1 || !strings.HasPrefix(st.requeued[0].reason, "unsupported_provider") {
		t.Fatalf("expected unsupported_provider requeue, got %+v", st.requeued)
	}
}

func TestRun_OversizedLineRequeues(t *testing.T) {
	t.Parallel()

	st := storeWith(job("a"), job("b"))
	req := st.requests["req-a"]
	req.OriginalText = strings.Repeat("x", 2000)
	st.requests["req-a"] = req

	p := &fakeProvider{}
	s := newSvc(st, p, Config{PerLineMaxBytes: 1500})

	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Requeued != 1 || rep.Submitted != 1 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	if st.requeued[0].jobID != "a" || st.requeued[0].reason != "line_too_large" {
		t.Fatalf("expected job a requeued for size, got %+v", st.requeued)
	}
}

func TestRun_ByteCapDefersOverflowWithoutAttemptSpend(t *testing.T) {
	t.Parallel()

	st := storeWith(job("a"), job("b"), job("c"))
	p := &fakeProvider{}
	// room for roughly one line only
	s := newSvc(st, p, Config{BatchMaxBytes: 900, PerLineMaxBytes: 890})

	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Submitted != 1 {
		t.Fatalf("expected one job submitted, got %+v", rep)
	}
	if rep.Deferred != 2 {
		t.Fatalf("overflow jobs must be deferred, got %+v", rep)
	}
	if len(st.released) != 2 {
		t.Fatalf("deferral must use release, not requeue: released=%v requeued=%v",
			st.released, st.requeued)
	}
	for _, r := range st.released {
		if r.reason != "batch_full" {
			t.Fatalf("unexpected deferral reason %q", r.reason)
		}
	}
}

func TestRun_UploadFailureRequeuesWholeSet(t *testing.T) {
	t.Parallel()

	st := storeWith(job("a"), job("b"))
	p := &fakeProvider{uploadErr: perr.UpstreamTransientf("upload blew up")}
	s := newSvc(st, p, Config{})

	rep, err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("upload failure must propagate")
	}
	if rep.Requeued != 2 || rep.Submitted != 0 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	for _, r := range st.requeued {
		if r.reason != "batch_upload_failed" {
			t.Fatalf("unexpected requeue reason %q", r.reason)
		}
	}
}

func TestRun_LinkFailureRequeuesDespiteProviderSideEffect(t *testing.T) {
	t.Parallel()

	st := storeWith(job("a"))
	st.registerErr = perr.DBf("link write lost")
	p := &fakeProvider{}
	s := newSvc(st, p, Config{})

	rep, err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("link failure must propagate")
	}
	if p.created != 1 {
		t.Fatalf("provider batch should have been created before the link")
	}
	if rep.Requeued != 1 || rep.Submitted != 0 {
		t.Fatalf("the set must be requeued, not silently accepted: %+v", rep)
	}
	if st.requeued[0].reason != "batch_link_failed" {
		t.Fatalf("unexpected reason %q", st.requeued[0].reason)
	}
}

func TestRun_ClaimInUnexpectedStateIsLeftAlone(t *testing.T) {
	t.Parallel()

	stale := job("a")
	stale.Status = rwdom.JobCompleted
	st := storeWith(stale)
	p := &fakeProvider{}
	s := newSvc(st, p, Config{})

	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Submitted != 0 || p.uploadedName != "" {
		t.Fatalf("a terminal job must never ride a batch: %+v", rep)
	}
	if len(st.requeued)+len(st.failed)+len(st.released) != 0 {
		t.Fatalf("a terminal job must not be moved: %+v %+v %+v",
			st.requeued, st.failed, st.released)
	}
}

func TestRun_AbortedCycleReleasesUntouchedClaims(t *testing.T) {
	t.Parallel()

	st := storeWith(job("a"), job("b"), job("c"))
	st.requestErrs = map[string]error{"req-b": perr.UpstreamTransientf("store blip")}
	p := &fakeProvider{}
	s := newSvc(st, p, Config{})

	_, err := s.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the store error to propagate")
	}
	if p.uploadedName != "" {
		t.Fatalf("aborted cycle must not upload")
	}
	// nothing claimed this cycle may stay in processing: a had its line
	// built, b hit the error, c never got a turn
	if len(st.released) != 3 {
		t.Fatalf("expected all claims released, got %+v", st.released)
	}
	for _, r := range st.released {
		if r.reason != "cycle_aborted" {
			t.Fatalf("unexpected release reason %q", r.reason)
		}
	}
}

func TestRun_NothingClaimed(t *testing.T) {
	t.Parallel()

	st := &fakeStore{requests: map[string]rwdom.RewriteRequest{}}
	p := &fakeProvider{}
	s := newSvc(st, p, Config{})

	rep, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.Claimed != 0 || p.uploadedName != "" {
		t.Fatalf("no claim must mean no upload: %+v", rep)
	}
}
