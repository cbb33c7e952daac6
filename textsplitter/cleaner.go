// Package textsplitter cleans section bodies and splits them into fixed-size
// windows ahead of embedding.
package textsplitter

import (
	"regexp"
	"strings"
)

var extraWhitespaceRe = regexp.MustCompile(`[ \t]+`)

// Clean normalises a section body: repeated spaces and tabs collapse to a
// single space, lines are trimmed, and empty lines are removed. Repeated
// substrings (page headers and footers) are deliberately left alone.
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(extraWhitespaceRe.ReplaceAllString(line, " "))
		if line == "" {
			continue
		}
		cleaned = append(cleaned, line)
	}
	return strings.Join(cleaned, "\n")
}
