package report

import "strings"

// Wrap breaks text into lines no wider than maxWidth according to measure.
// Breaks happen only at spaces; a word wider than maxWidth is placed alone
// on its own line. Newlines start a new paragraph and an empty paragraph
// yields an empty line.
func Wrap(text string, maxWidth float64, measure func(string) float64) []string {
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			candidate := line + " " + w
			if measure(candidate) <= maxWidth {
				line = candidate
				continue
			}
			lines = append(lines, line)
			line = w
		}
		lines = append(lines, line)
	}
	// Trailing blank lines add height without content.
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// TextHeight is the vertical space consumed by n lines at size.
func TextHeight(n int, size float64) float64 {
	return float64(n) * lineHeight(size)
}
