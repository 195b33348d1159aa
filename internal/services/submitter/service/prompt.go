package service

import (
	"fmt"
	"strings"

	rwdom "olivebranch/internal/services/rewrite/domain"
)

// buildPrompts renders the rewrite instruction for one job from the frozen
// request snapshot. Later preference edits never reach an in-flight job
func buildPrompts(req rwdom.RewriteRequest, job rwdom.RewriteJob) (system, user string) {
	topics := make([]string, 0, len(req.Context.Topics))
	for _, t := range req.Context.Topics {
		topics = append(topics, string(t))
	}

	var b strings.Builder
	b.WriteString("You rewrite a private journal entry one household member wrote about another ")
	b.WriteString("into a message the recipient could actually receive.\n")
	fmt.Fprintf(&b, "Tone: %s. Directness: %s. Emotional temperature: %s.\n",
		req.Policy.Tone, req.Policy.Directness, req.Policy.EmotionalTemperature)
	fmt.Fprintf(&b, "Topics: %s. Relationship: %s.\n",
		strings.Join(topics, ", "), req.Context.PowerMode)

	if job.Lane == rwdom.LaneCrossLanguage {
		fmt.Fprintf(&b, "Write the rewrite in %s; the source text is in %s.\n",
			req.TargetLocale, req.SourceLocale)
	} else {
		fmt.Fprintf(&b, "Keep the rewrite in %s.\n", req.TargetLocale)
	}

	if job.Strength == rwdom.StrengthLightTouch {
		b.WriteString("Soften the harshest phrasing but keep the author's voice and specifics.")
	} else {
		b.WriteString("Reframe fully: preserve the underlying need, drop blame and absolutes.")
	}

	return b.String(), req.OriginalText
}
