package judge

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	affirmativeToken = "yes"
	negativeToken    = "no"
	noQuestionToken  = "no_question"
)

// VerdictKind tags the outcome of an answer validation.
type VerdictKind int

const (
	VerdictAccepted VerdictKind = iota + 1
	VerdictRejected
)

func (k VerdictKind) String() string {
	switch k {
	case VerdictAccepted:
		return "accepted"
	case VerdictRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Verdict is the judgement on one answer. Feedback is only set for rejections.
type Verdict struct {
	Kind     VerdictKind
	Feedback string
}

func Accept() Verdict { return Verdict{Kind: VerdictAccepted} }

func Reject(feedback string) Verdict {
	return Verdict{Kind: VerdictRejected, Feedback: strings.TrimSpace(feedback)}
}

func (v Verdict) Accepted() bool { return v.Kind == VerdictAccepted }

// ParseVerdict turns raw model output into a Verdict. Any text starting with
// "yes" (case-insensitive) accepts, whatever follows. Everything else rejects,
// with a leading "no" token dropped from the feedback.
func ParseVerdict(raw string) Verdict {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(trimmed), affirmativeToken) {
		return Accept()
	}
	return Reject(stripNegativeToken(trimmed))
}

// stripNegativeToken removes a leading standalone "no" plus the separators
// after it. "Now tell me" keeps its first word.
func stripNegativeToken(s string) string {
	if len(s) < len(negativeToken) || !strings.EqualFold(s[:len(negativeToken)], negativeToken) {
		return s
	}
	rest := s[len(negativeToken):]
	if rest == "" {
		return ""
	}
	if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLetter(r) || unicode.IsDigit(r) {
		return s
	}
	return strings.TrimSpace(strings.TrimLeftFunc(rest, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	}))
}

// ParseNoQuestionIntent reports whether raw model output is exactly the
// "no_question" label after trimming and lower-casing. Unlike ParseVerdict this
// is not a prefix test.
func ParseNoQuestionIntent(raw string) bool {
	return strings.ToLower(strings.TrimSpace(raw)) == noQuestionToken
}
