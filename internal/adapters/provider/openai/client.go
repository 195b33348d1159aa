// Package openai wraps the OpenAI SDK for the rewrite pipeline:
// one synchronous structured-completion call for classification, and the
// file-upload / batch-create / poll / download surface for windowed execution
package openai

import (
	"bytes"
	"context"
	stderrs "errors"
	"io"
	"net/http"
	"time"

	oai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/platform/logger"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second

	// BatchEndpoint is the provider endpoint every batch line targets
	BatchEndpoint = "/v1/chat/completions"
)

// Options configures the Client
type Options struct {
	APIKey  string
	BaseURL string
	Model   string

	// Timeout is the hard wall-clock ceiling on any single provider call
	Timeout time.Duration

	// MaxRetries is passed to the SDK transport for its own retry loop
	MaxRetries int

	// HTTPClient overrides transport (tests)
	HTTPClient *http.Client
}

// Client is the provider adapter used by the classifier, submitter, and collector
type Client struct {
	oc      oai.Client
	model   string
	timeout time.Duration
	log     logger.Logger
}

// BatchInfo mirrors the provider batch fields the pipeline cares about,
// with status already mapped into our vocabulary
type BatchInfo struct {
	ID           string
	Status       rwdom.BatchStatus
	InputFileID  string
	OutputFileID string
	ErrorFileID  string

	// FinishedAt is the provider's terminal timestamp, zero while running
	FinishedAt time.Time
}

// New creates a Client with sane defaults
func New(o Options) *Client {
	if o.Model == "" {
		o.Model = defaultModel
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}

	opts := []option.RequestOption{
		option.WithAPIKey(o.APIKey),
		option.WithMaxRetries(o.MaxRetries),
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}

	return &Client{
		oc:      oai.NewClient(opts...),
		model:   o.Model,
		timeout: o.Timeout,
		log:     *logger.Named("provider-openai"),
	}
}

// Model returns the configured model name
func (c *Client) Model() string { return c.model }

// Complete performs one synchronous structured completion and returns the raw
// JSON content string. The response is forced through a strict JSON schema;
// callers still re-validate every field
func (c *Client) Complete(ctx context.Context, system, user, schemaName string, schema map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.oc.Chat.Completions.New(ctx, oai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []oai.ChatCompletionMessageParamUnion{
			oai.SystemMessage(system),
			oai.UserMessage(user),
		},
		ResponseFormat: oai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &shared.ResponseFormatJSONSchemaParam{
				JSONSchema: shared.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   schemaName,
					Schema: schema,
					Strict: oai.Bool(true),
				},
			},
		},
	})
	if err != nil {
		return "", mapProviderErr(err, "chat completion")
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		// empty output is a transient provider defect, not a caller error
		return "", perr.UpstreamTransientf("provider returned empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}

// UploadBatchInput uploads one JSONL payload as a batch input file
func (c *Client) UploadBatchInput(ctx context.Context, name string, jsonl []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	f, err := c.oc.Files.New(ctx, oai.FileNewParams{
		File:    oai.File(bytes.NewReader(jsonl), name, "application/jsonl"),
		Purpose: oai.FilePurposeBatch,
	})
	if err != nil {
		return "", mapProviderErr(err, "batch file upload")
	}
	return f.ID, nil
}

// CreateBatch creates one provider batch over a previously uploaded input file
func (c *Client) CreateBatch(ctx context.Context, inputFileID string) (BatchInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := c.oc.Batches.New(ctx, oai.BatchNewParams{
		CompletionWindow: oai.BatchNewParamsCompletionWindow24h,
		Endpoint:         oai.BatchNewParamsEndpointV1ChatCompletions,
		InputFileID:      inputFileID,
	})
	if err != nil {
		return BatchInfo{}, mapProviderErr(err, "batch create")
	}
	return fromBatch(b), nil
}

// GetBatch polls one provider batch by id
func (c *Client) GetBatch(ctx context.Context, id string) (BatchInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	b, err := c.oc.Batches.Get(ctx, id)
	if err != nil {
		return BatchInfo{}, mapProviderErr(err, "batch poll")
	}
	return fromBatch(b), nil
}

// DownloadFile fetches a provider file's raw content (NDJSON for batch output)
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.oc.Files.Content(ctx, fileID)
	if err != nil {
		return nil, mapProviderErr(err, "file download")
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.log.Warn().Err(cerr).Msg("file download body close failed")
		}
	}()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.UpstreamTransientf("file download read: %v", err)
	}
	return data, nil
}

func fromBatch(b *oai.Batch) BatchInfo {
	return BatchInfo{
		ID:           b.ID,
		Status:       mapBatchStatus(string(b.Status)),
		InputFileID:  b.InputFileID,
		OutputFileID: b.OutputFileID,
		ErrorFileID:  b.ErrorFileID,
		FinishedAt:   finishedAt(b),
	}
}

func finishedAt(b *oai.Batch) time.Time {
	for _, ts := range []int64{b.CompletedAt, b.FailedAt, b.CancelledAt, b.ExpiredAt} {
		if ts > 0 {
			return time.Unix(ts, 0).UTC()
		}
	}
	return time.Time{}
}

// mapBatchStatus folds the provider's batch states into our vocabulary
func mapBatchStatus(s string) rwdom.BatchStatus {
	switch s {
	case "validating":
		return rwdom.BatchSubmitted
	case "in_progress", "finalizing":
		return rwdom.BatchRunning
	case "completed":
		return rwdom.BatchCompleted
	case "failed", "expired":
		return rwdom.BatchFailed
	case "cancelling", "cancelled":
		return rwdom.BatchCanceled
	default:
		return rwdom.BatchRunning
	}
}

// mapProviderErr classifies SDK failures into the typed retryability taxonomy:
// timeouts and 429/5xx are transient, other 4xx are configuration defects
func mapProviderErr(err error, op string) error {
	if stderrs.Is(err, context.DeadlineExceeded) {
		return perr.UpstreamTimeoutf("%s: provider deadline exceeded", op)
	}
	if stderrs.Is(err, context.Canceled) {
		return perr.Wrap(err, perr.ErrorCodeUnavailable, op+": canceled")
	}

	var apierr *oai.Error
	if stderrs.As(err, &apierr) {
		switch {
		case apierr.StatusCode == http.StatusTooManyRequests || apierr.StatusCode >= 500:
			return perr.Wrap(err, perr.ErrorCodeUpstreamTransient, op+": provider unavailable")
		case apierr.StatusCode >= 400:
			return perr.Wrap(err, perr.ErrorCodeUpstreamRejected, op+": provider rejected request")
		}
	}
	// transport-level failure (conn reset, DNS); worth retrying
	return perr.Wrap(err, perr.ErrorCodeUpstreamTransient, op+": provider call failed")
}
