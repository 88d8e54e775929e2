// Package lang provides the deterministic language helpers used by the
// orchestrator: query-language detection, near-me phrase matching, the
// write-once assistant-language context and localized message templates.
package lang

import "strings"

// Supported assistant languages. The hard fallback is English.
const (
	Hebrew  = "he"
	English = "en"
)

// nearMePhrases is the enumerated phrase set that triggers the near-me
// pre-check. Matching is case-insensitive substring match.
var nearMePhrases = []string{
	// Hebrew
	"לידי",
	"לידיי",
	"ממני",
	"קרוב אליי",
	"קרוב אלי",
	"בסביבה",
	"בסביבתי",
	"בקרבתי",
	// English
	"near me",
	"nearby",
	"around me",
	"close to me",
	"in my area",
}

// IsNearMeQuery reports whether the query contains one of the enumerated
// proximity-to-user phrases.
func IsNearMeQuery(q string) bool {
	lower := strings.ToLower(q)
	for _, p := range nearMePhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// DetectQueryLanguage returns "he" iff the query contains at least one
// character in the Hebrew Unicode block (U+0590..U+05FF), otherwise "en".
func DetectQueryLanguage(q string) string {
	for _, r := range q {
		if r >= 0x0590 && r <= 0x05FF {
			return Hebrew
		}
	}
	return English
}

// assistantLanguages is the closed set a request language may take.
var assistantLanguages = map[string]bool{
	"he": true, "en": true, "ar": true, "ru": true, "fr": true, "es": true,
}

// Resolve picks the assistant language for a request. Priority:
// detected query language > UI hint > hard fallback "en". Values outside
// the supported set are skipped.
func Resolve(queryLanguage, uiHint string) string {
	if assistantLanguages[queryLanguage] {
		return queryLanguage
	}
	if assistantLanguages[uiHint] {
		return uiHint
	}
	return English
}
