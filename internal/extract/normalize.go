package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}\x{2000}-\x{200a}\x{3000}]+`)
	newlinePadding  = regexp.MustCompile(` ?\n ?`)
	blankLineRuns   = regexp.MustCompile(`\n{3,}`)
)

// Normalize canonicalises extracted text: line endings become LF, runs of
// horizontal whitespace become one space, lines lose edge spaces, three or
// more newlines become a single blank line, and the result is trimmed.
// Control characters other than newline and tab are dropped.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = newlinePadding.ReplaceAllString(s, "\n")
	s = blankLineRuns.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
