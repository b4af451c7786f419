package recordpdf

import (
	"strings"
	"unicode"
)

// Measurer reports the rendered width of a string in the body font.
type Measurer interface {
	StringWidth(s string) float64
}

// wrapText splits s into lines whose visible width fits within width.
// Breaks happen after whitespace and the whitespace stays at the end of the
// line it closes, so strings.Join(lines, "") == s. A word wider than width
// is broken between runes. A newline always ends a line.
func wrapText(s string, width float64, m Measurer) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}

	var lines []string
	start := 0
	for start < len(runes) {
		end := start
		lastSpace := -1
		forced := false
		for end < len(runes) {
			r := runes[end]
			if r == '\n' {
				end++
				forced = true
				break
			}
			visible := strings.TrimRightFunc(string(runes[start:end+1]), unicode.IsSpace)
			if end > start && m.StringWidth(visible) > width {
				break
			}
			end++
			if unicode.IsSpace(r) {
				lastSpace = end
			}
		}
		if !forced && end < len(runes) && lastSpace > start {
			end = lastSpace
		}
		lines = append(lines, string(runes[start:end]))
		start = end
	}
	return lines
}
