// Package domain defines classifier ports and dto types
package domain

import (
	"context"

	rwdom "olivebranch/internal/services/rewrite/domain"
)

// TextCap is the maximum entry length in characters the classifier accepts
const TextCap = 4000

// Input is one classification request
type Input struct {
	Text     string `json:"text" validate:"required"`
	Surface  string `json:"surface" validate:"required"`
	SenderID string `json:"sender_id" validate:"required,uuid4"`
}

// ClassifierPort classifies raw entry text into the closed vocabulary
type ClassifierPort interface {
	Classify(ctx context.Context, in Input) (rwdom.ClassifierResult, error)
}

// CompleterPort is the provider seam: one structured completion call with a
// strict output schema. Implemented by the openai adapter; faked in tests
type CompleterPort interface {
	Complete(ctx context.Context, system, user, schemaName string, schema map[string]any) (string, error)
}
