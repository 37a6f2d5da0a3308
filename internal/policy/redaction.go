// Package policy holds the rules applied to candidate speech before it is
// persisted.
package policy

import "regexp"

type redactionRule struct {
	pattern *regexp.Regexp
	marker  string
}

// Rules run in order. Cards and national ids go before phones so their
// digit runs are not classified as phone numbers.
var redactionRules = []redactionRule{
	{regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`), "[REDACTED_CARD]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_ID]"},
	{regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`), "[REDACTED_PHONE]"},
}

// RedactPII masks email addresses, card numbers, national ids and phone
// numbers.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, rule := range redactionRules {
		next := rule.pattern.ReplaceAllString(out, rule.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}

// Redactor applies RedactPII to candidate speech before it leaves the process.
// The zero value is disabled and passes text through untouched.
type Redactor struct {
	Enabled bool
}

// Apply returns the text to persist for a turn spoken by speaker. Bot lines
// are scripted or model generated and are never redacted.
func (r Redactor) Apply(speaker, text string) string {
	if !r.Enabled || speaker == "Bot" {
		return text
	}
	out, _ := RedactPII(text)
	return out
}
