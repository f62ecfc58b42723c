package report

import (
	"strings"
)

// MeasureFunc returns the drawn width of visual text in points.
type MeasureFunc func(visual string, size float64, bold bool) float64

// Shaper holds the text policy of one font: what a string becomes before
// wrapping, how a wrapped line is turned into drawable glyphs, and how wide
// the result is.
type Shaper interface {
	// Normalize is applied to whole strings before they are wrapped.
	Normalize(text string) string
	// Visual turns one wrapped line into the string to draw.
	Visual(line string) string
	// Measure returns the width of a string returned by Visual.
	Measure(visual string, size float64, bold bool) float64
	// RightToLeft reports whether labels are aligned to the right margin.
	RightToLeft() bool
}

// unicodeShaper draws with a font covering Arabic.
type unicodeShaper struct {
	measure MeasureFunc
}

// NewUnicodeShaper returns the shaper used when an Arabic-capable font is
// embedded.
func NewUnicodeShaper(measure MeasureFunc) Shaper {
	return unicodeShaper{measure: measure}
}

func (unicodeShaper) Normalize(text string) string { return strings.TrimSpace(text) }

func (unicodeShaper) Visual(line string) string { return VisualOrder(line) }

func (s unicodeShaper) Measure(visual string, size float64, bold bool) float64 {
	return s.measure(visual, size, bold)
}

func (unicodeShaper) RightToLeft() bool { return true }

// fallbackShaper draws with a core PDF font limited to Latin-1.
type fallbackShaper struct {
	measure MeasureFunc
	lexicon map[string]string
}

// NewFallbackShaper returns the shaper used when no Arabic-capable font is
// available. Strings found in lexicon are replaced by their translation and
// characters outside Latin-1 are drawn as '?'.
func NewFallbackShaper(measure MeasureFunc, lexicon map[string]string) Shaper {
	return fallbackShaper{measure: measure, lexicon: lexicon}
}

func (s fallbackShaper) Normalize(text string) string {
	text = strings.TrimSpace(text)
	if t, ok := s.lexicon[text]; ok {
		return t
	}
	return text
}

func (fallbackShaper) Visual(line string) string {
	line = VisualOrder(line)
	if !strings.ContainsFunc(line, unsupported) {
		return line
	}
	return strings.Map(func(r rune) rune {
		if unsupported(r) {
			return '?'
		}
		return r
	}, line)
}

func (s fallbackShaper) Measure(visual string, size float64, bold bool) float64 {
	return s.measure(visual, size, bold)
}

func (fallbackShaper) RightToLeft() bool { return false }

// unsupported reports whether r has no glyph in the core fonts.
func unsupported(r rune) bool {
	switch {
	case r == '\t':
		return false
	case r < 0x20, r >= 0x7f && r < 0xa0, r > 0xff:
		return true
	}
	return false
}

// placeholderCount returns how many characters of text would be replaced
// by the fallback shaper.
func placeholderCount(s Shaper, text string) int {
	if _, ok := s.(fallbackShaper); !ok {
		return 0
	}
	n := 0
	for _, r := range s.Normalize(text) {
		if unsupported(r) && r != '\n' && r != '\r' {
			n++
		}
	}
	return n
}
