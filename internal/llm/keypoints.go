package llm

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxKeyPoints caps the number of points returned.
const MaxKeyPoints = 7

const minFallbackRunes = 10

// A number marker needs whitespace after it so "3.5 million" stays intact.
var numberedPoint = regexp.MustCompile(`^\d+[.)]\s+`)

// ParseKeyPoints keeps bullet lines ("•", "- ", "* ", "N." or "N)") with the
// marker stripped. When no line carries a marker, every line longer than ten
// characters is used instead.
func ParseKeyPoints(raw string) []string {
	lines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")
	var points []string
	for _, line := range lines {
		line = strings.TrimSpace(line)
		point, ok := stripMarker(line)
		if !ok {
			continue
		}
		if point = strings.TrimSpace(point); point == "" {
			continue
		}
		points = append(points, point)
		if len(points) == MaxKeyPoints {
			return points
		}
	}
	if len(points) > 0 {
		return points
	}

	points = []string{}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) > minFallbackRunes {
			points = append(points, line)
			if len(points) == MaxKeyPoints {
				break
			}
		}
	}
	return points
}

func stripMarker(line string) (string, bool) {
	if rest, ok := strings.CutPrefix(line, "•"); ok {
		return rest, true
	}
	// "-" and "*" only count when followed by a space, which leaves
	// "**Heading:**" and "-5%" alone.
	for _, marker := range []string{"-", "*"} {
		rest, ok := strings.CutPrefix(line, marker)
		if !ok {
			continue
		}
		if rest == "" || rest[0] == ' ' || rest[0] == '\t' {
			return rest, true
		}
	}
	if loc := numberedPoint.FindStringIndex(line); loc != nil {
		return line[loc[1]:], true
	}
	return "", false
}
