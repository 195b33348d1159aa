// Package locales normalizes and compares locale tags for lane routing
package locales

import (
	"regexp"
	"strings"

	"golang.org/x/text/language"
)

// Fallback is used whenever a locale string cannot be salvaged
const Fallback = "en"

// loose BCP-47 shape: primary subtag plus optional alnum subtags.
// language.Parse is stricter than we want for provider-emitted tags, so this
// pattern gates first and Parse only canonicalizes what already looks sane
var tagPattern = regexp.MustCompile(`^[a-z]{2,3}(-[a-z0-9]{2,8})*$`)

// Normalize lower-cases and validates a locale tag, falling back to en.
// Underscores are tolerated (en_US -> en-us)
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	if s == "" || !tagPattern.MatchString(s) {
		return Fallback
	}
	if _, err := language.Parse(s); err != nil {
		return Fallback
	}
	return s
}

// Base returns the primary language subtag of an already-normalized tag
func Base(s string) string {
	if i := strings.IndexByte(s, '-'); i > 0 {
		return s[:i]
	}
	return s
}

// SameLanguage reports whether two normalized tags share a primary subtag.
// en-us and en-gb are the same language for lane purposes
func SameLanguage(a, b string) bool {
	return Base(Normalize(a)) == Base(Normalize(b))
}
