// Package service implements the cron runner: drain pending triggers and
// push each one through the orchestrator's HTTP surface
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"

	"olivebranch/internal/modkit/httpkit"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/platform/logger"
	tdom "olivebranch/internal/services/triggers/domain"
)

// Config tunes one runner tick
type Config struct {
	// OrchestratorURL is the full rewrite endpoint URL
	OrchestratorURL string

	// Token is the shared internal secret
	Token string

	// PopLimit caps triggers drained per tick
	PopLimit int

	// CallTimeout bounds one orchestrator call including retries' sleeps
	CallTimeout time.Duration

	// Attempts and RetryDelay drive the bounded fixed-delay retry loop
	Attempts   uint
	RetryDelay time.Duration

	// RequeueDelay is the fixed delay for triggers whose call failed
	RequeueDelay time.Duration
}

func (c *Config) defaults() {
	if c.PopLimit <= 0 {
		c.PopLimit = 25
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 90 * time.Second
	}
	if c.Attempts == 0 {
		c.Attempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 2 * time.Second
	}
	if c.RequeueDelay <= 0 {
		c.RequeueDelay = time.Minute
	}
}

// Report summarizes one tick
type Report struct {
	Popped    int `json:"popped"`
	Delivered int `json:"delivered"`
	Requeued  int `json:"requeued"`
}

// envelope is the slice of the orchestrator reply the runner branches on
type envelope struct {
	StatusCode int    `json:"status_code"`
	Code       int    `json:"code"`
	Error      string `json:"error"`
	Retryable  bool   `json:"retryable"`
}

// Svc drains the trigger backlog into the orchestrator
type Svc struct {
	triggers tdom.SourcePort
	client   *http.Client
	cfg      Config
}

// New constructs the runner service
func New(triggers tdom.SourcePort, client *http.Client, cfg Config) *Svc {
	if triggers == nil {
		panic("cron runner requires a trigger source")
	}
	cfg.defaults()
	if cfg.OrchestratorURL == "" {
		panic("cron runner requires the orchestrator URL")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.CallTimeout}
	}
	return &Svc{triggers: triggers, client: client, cfg: cfg}
}

// Tick pops pending triggers and posts each one. HTTP delivery failures
// requeue the trigger here; business outcomes are the orchestrator's own
// marks and already settled by the time the reply arrives
func (s *Svc) Tick(ctx context.Context) (Report, error) {
	log := logger.C(ctx)
	var rep Report

	triggers, err := s.triggers.PopPending(ctx, s.cfg.PopLimit)
	if err != nil {
		return rep, err
	}
	rep.Popped = len(triggers)

	for _, t := range triggers {
		if err := s.deliver(ctx, t); err != nil {
			reason := fmt.Sprintf("orchestrator_call_failed: %v", err)
			if len(reason) > 200 {
				reason = reason[:200]
			}
			if merr := s.triggers.MarkFailed(ctx, t.ID,
				time.Now().Add(s.cfg.RequeueDelay), reason); merr != nil {
				log.Error().Err(merr).Str("trigger_id", t.ID).Msg("trigger requeue failed")
			}
			rep.Requeued++
			continue
		}
		rep.Delivered++
	}
	return rep, nil
}

// deliver posts one trigger with a bounded fixed-delay retry loop.
// A reply the orchestrator flags non-retryable stops the loop early
func (s *Svc) deliver(ctx context.Context, t tdom.Trigger) error {
	body, err := json.Marshal(map[string]string{
		"trigger_id":   t.ID,
		"entry_id":     t.EntryID,
		"home_id":      t.HomeID,
		"sender_id":    t.SenderID,
		"recipient_id": t.RecipientID,
		"surface":      t.Surface,
	})
	if err != nil {
		return perr.JSONErrf("marshal trigger payload: %v", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()

	return retry.Do(
		func() error { return s.post(callCtx, body) },
		retry.Context(callCtx),
		retry.Attempts(s.cfg.Attempts),
		retry.Delay(s.cfg.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
}

func (s *Svc) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.cfg.OrchestratorURL, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpkit.InternalTokenHeader, s.cfg.Token)

	resp, err := s.client.Do(req)
	if err != nil {
		return perr.UpstreamTransientf("orchestrator unreachable: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16<<10))
	var env envelope
	_ = json.Unmarshal(raw, &env)

	err = perr.Newf(perr.ErrorCodeUnavailable, "orchestrator replied %d: %s",
		resp.StatusCode, env.Error)
	if !env.Retryable {
		// the orchestrator already settled this trigger terminally;
		// its mark guards make our requeue a no-op anyway
		return retry.Unrecoverable(err)
	}
	return err
}
