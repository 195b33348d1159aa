// Package service implements the classifier over the provider completion seam
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"olivebranch/internal/core/locales"
	perr "olivebranch/internal/platform/errors"
	"olivebranch/internal/platform/logger"
	cdom "olivebranch/internal/services/classifier/domain"
	rwdom "olivebranch/internal/services/rewrite/domain"
)

// Version tags every result this build produces
const Version = "clf-v1"

const systemPrompt = `You classify a private journal entry one household member wrote about another.
Return strict JSON: detected_language (BCP-47), topics (1-3 from the allowed set),
intent (one of the allowed set), rewrite_strength, safety_flags.
Judge only the text given. Do not rewrite it.`

// Svc implements the ClassifierPort
type Svc struct {
	provider cdom.CompleterPort
}

// New constructs the classifier service
func New(provider cdom.CompleterPort) *Svc {
	if provider == nil {
		panic("classifier service requires a CompleterPort")
	}
	return &Svc{provider: provider}
}

// rawResult is what the provider claims to return; every field is re-validated
type rawResult struct {
	DetectedLanguage string   `json:"detected_language"`
	Topics           []string `json:"topics"`
	Intent           string   `json:"intent"`
	RewriteStrength  string   `json:"rewrite_strength"`
	SafetyFlags      []string `json:"safety_flags"`
}

// Classify performs one provider call and normalizes the result
func (s *Svc) Classify(ctx context.Context, in cdom.Input) (rwdom.ClassifierResult, error) {
	if in.Text == "" {
		return rwdom.ClassifierResult{}, perr.Newf(perr.ErrorCodeValidation, "missing_field: text")
	}
	if utf8.RuneCountInString(in.Text) > cdom.TextCap {
		return rwdom.ClassifierResult{}, perr.PayloadTooLargef(
			"payload_too_large: text exceeds %d chars", cdom.TextCap)
	}
	if !rwdom.KnownSurface(rwdom.Surface(in.Surface)) {
		return rwdom.ClassifierResult{}, perr.Newf(perr.ErrorCodeValidation, "invalid_surface: %s", in.Surface)
	}

	user := fmt.Sprintf("surface: %s\n---\n%s", in.Surface, in.Text)
	out, err := s.provider.Complete(ctx, systemPrompt, user, "entry_classification", Schema())
	if err != nil {
		return rwdom.ClassifierResult{}, err
	}

	var raw rawResult
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		// non-JSON provider output is a transient provider defect
		logger.C(ctx).Warn().Err(err).Msg("classifier: provider returned non-JSON output")
		return rwdom.ClassifierResult{}, perr.UpstreamTransientf("provider returned non-JSON classification")
	}

	return Normalize(raw), nil
}

// Normalize re-validates every field against the closed vocabulary regardless
// of what the schema nominally guaranteed. Unknown values degrade to safe
// defaults rather than failing the call
func Normalize(raw rawResult) rwdom.ClassifierResult {
	res := rwdom.ClassifierResult{
		Version:          Version,
		DetectedLanguage: locales.Normalize(raw.DetectedLanguage),
	}

	for _, t := range raw.Topics {
		topic := rwdom.Topic(t)
		if rwdom.KnownTopic(topic) {
			res.Topics = append(res.Topics, topic)
		}
		if len(res.Topics) == 3 {
			break
		}
	}
	if len(res.Topics) == 0 {
		res.Topics = []rwdom.Topic{rwdom.TopicOther}
	}

	res.Intent = rwdom.Intent(raw.Intent)
	if !rwdom.KnownIntent(res.Intent) {
		res.Intent = rwdom.IntentConcern
	}

	res.Strength = rwdom.RewriteStrength(raw.RewriteStrength)
	if !rwdom.KnownStrength(res.Strength) {
		// default to the stronger reframe when the provider is vague
		res.Strength = rwdom.StrengthFullReframe
	}

	for _, f := range raw.SafetyFlags {
		flag := rwdom.SafetyFlag(f)
		if rwdom.KnownSafetyFlag(flag) {
			res.SafetyFlags = append(res.SafetyFlags, flag)
		}
	}
	if len(res.SafetyFlags) == 0 {
		res.SafetyFlags = []rwdom.SafetyFlag{rwdom.SafetyNone}
	}

	return res
}
