package voice

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	fencePattern    = regexp.MustCompile("(?s)```.*?```")
	mdLinkPattern   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	urlPattern      = regexp.MustCompile(`https?://\S+`)
	listMarkPattern = regexp.MustCompile(`(?m)^\s*(?:[-*+]|\d+[.)])\s+`)
	markupReplacer  = strings.NewReplacer("*", "", "_", "", "#", "", "`", "", "~", "", "|", " ", ">", " ", "<", " ")
)

// SpeakableText strips markdown and symbols a model may emit so the line
// reads naturally when synthesized. Sentence punctuation is kept.
func SpeakableText(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = fencePattern.ReplaceAllString(s, " ")
	s = mdLinkPattern.ReplaceAllString(s, "$1")
	s = urlPattern.ReplaceAllString(s, " ")
	s = listMarkPattern.ReplaceAllString(s, "")
	s = markupReplacer.Replace(s)

	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case unicode.IsControl(r), unicode.In(r, unicode.So, unicode.Sk), r == '\u200d', r == '\ufe0f':
			return -1
		default:
			return r
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
