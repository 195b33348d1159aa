package openai

import (
	"encoding/json"

	perr "olivebranch/internal/platform/errors"
)

// Wire format for the provider batch files. Each input line is one request;
// each output line echoes the caller-supplied custom_id (our correlation id)

// chatMessage is one prompt message inside a batch line body
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatBody struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

// RequestLine is one NDJSON input line for the batch endpoint
type RequestLine struct {
	CustomID string   `json:"custom_id"`
	Method   string   `json:"method"`
	URL      string   `json:"url"`
	Body     chatBody `json:"body"`
}

// NewRequestLine builds a batch line for one rewrite job.
// The correlation id (custom_id) is the job id
func NewRequestLine(correlationID, model, system, user string) RequestLine {
	return RequestLine{
		CustomID: correlationID,
		Method:   "POST",
		URL:      BatchEndpoint,
		Body: chatBody{
			Model: model,
			Messages: []chatMessage{
				{Role: "system", Content: system},
				{Role: "user", Content: user},
			},
		},
	}
}

// Marshal renders the line as one NDJSON row (no trailing newline)
func (l RequestLine) Marshal() ([]byte, error) {
	b, err := json.Marshal(l)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeJSON, "marshal batch line")
	}
	return b, nil
}

// ResultLine is one NDJSON output line downloaded from a completed batch
type ResultLine struct {
	CustomID string `json:"custom_id"`
	Response *struct {
		StatusCode int             `json:"status_code"`
		Body       json.RawMessage `json:"body"`
	} `json:"response"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Content extracts the first choice's message content from a result line body.
// Empty content with a nil error means the provider produced nothing usable
func (l ResultLine) Content() string {
	if l.Response == nil || len(l.Response.Body) == 0 {
		return ""
	}
	var body struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(l.Response.Body, &body); err != nil {
		return ""
	}
	if len(body.Choices) == 0 {
		return ""
	}
	return body.Choices[0].Message.Content
}

// ParseResultLine decodes one NDJSON output row
func ParseResultLine(row []byte) (ResultLine, error) {
	var l ResultLine
	if err := json.Unmarshal(row, &l); err != nil {
		return ResultLine{}, perr.Wrap(err, perr.ErrorCodeJSON, "parse batch result line")
	}
	return l, nil
}
