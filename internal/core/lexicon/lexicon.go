// Package lexicon evaluates candidate rewrites against a safety lexicon.
// The verdict gates job completion: a failing candidate is a quality defect,
// never a transient condition
package lexicon

import (
	"strings"
	"unicode"
)

// Term is one lexicon entry. Phrase matching is case-insensitive over
// punctuation-stripped text; severity 1..5
type Term struct {
	Phrase   string
	Category string
	Severity int
}

// Match records one lexicon hit in the evaluated text
type Match struct {
	Phrase   string
	Category string
	Severity int
}

// Result is the pass/fail verdict plus diagnostics
type Result struct {
	Pass        bool
	ToneSafe    bool
	Matches     []Match
	MaxSeverity int
}

// Options controls evaluation thresholds
type Options struct {
	// FailSeverity fails the verdict when any match reaches this severity (default 3)
	FailSeverity int
	// MaxShoutRatio is the upper-case letter ratio above which tone fails (default 0.6)
	MaxShoutRatio float64
	// MaxExclamations is the exclamation-mark count above which tone fails (default 3)
	MaxExclamations int
}

func (o Options) withDefaults() Options {
	if o.FailSeverity <= 0 {
		o.FailSeverity = 3
	}
	if o.MaxShoutRatio <= 0 {
		o.MaxShoutRatio = 0.6
	}
	if o.MaxExclamations <= 0 {
		o.MaxExclamations = 3
	}
	return o
}

// Evaluator matches a fixed term list against normalized candidate text
type Evaluator struct {
	terms []Term
	opts  Options
}

// New builds an Evaluator over the given terms
func New(terms []Term, opts Options) *Evaluator {
	normed := make([]Term, 0, len(terms))
	for _, t := range terms {
		p := normalize(t.Phrase)
		if p == "" {
			continue
		}
		sev := t.Severity
		if sev < 1 {
			sev = 1
		}
		if sev > 5 {
			sev = 5
		}
		normed = append(normed, Term{Phrase: p, Category: t.Category, Severity: sev})
	}
	return &Evaluator{terms: normed, opts: opts.withDefaults()}
}

// Default returns an evaluator over the built-in de-escalation lexicon
func Default() *Evaluator { return New(defaultTerms, Options{}) }

// Evaluate scores text and returns the gating verdict
func (e *Evaluator) Evaluate(text string) Result {
	res := Result{Pass: true, ToneSafe: true}
	norm := normalize(text)
	padded := " " + norm + " "

	for _, t := range e.terms {
		if strings.Contains(padded, " "+t.Phrase+" ") {
			res.Matches = append(res.Matches, Match(t))
			if t.Severity > res.MaxSeverity {
				res.MaxSeverity = t.Severity
			}
		}
	}
	if res.MaxSeverity >= e.opts.FailSeverity {
		res.Pass = false
	}

	if !toneSafe(text, e.opts) {
		res.ToneSafe = false
	}
	return res
}

// normalize lower-cases and collapses everything non-letter/digit to single spaces
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := true
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

func toneSafe(s string, o Options) bool {
	var upper, letters, bangs int
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper++
			letters++
		case unicode.IsLetter(r):
			letters++
		case r == '!':
			bangs++
		}
	}
	if bangs > o.MaxExclamations {
		return false
	}
	// short strings shout legitimately (acronyms, "OK")
	if letters >= 12 && float64(upper)/float64(letters) > o.MaxShoutRatio {
		return false
	}
	return true
}
