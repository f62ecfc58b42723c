package report

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/bidi"
)

// The functions in this file approximate right-to-left presentation for a
// renderer that only draws left to right. They are not an implementation of
// the Unicode Bidirectional Algorithm: there is no embedding level
// resolution, no neutral handling beyond whitespace, and no contextual
// glyph shaping.

// IsRTL reports whether r is a strong right-to-left character (Arabic,
// Hebrew and related scripts).
func IsRTL(r rune) bool {
	p, _ := bidi.LookupRune(r)
	switch p.Class() {
	case bidi.R, bidi.AL:
		return true
	}
	return false
}

// ContainsRTL reports whether s contains any right-to-left character.
func ContainsRTL(s string) bool {
	for _, r := range s {
		if IsRTL(r) {
			return true
		}
	}
	return false
}

// VisualOrder returns s in the order it must be drawn left to right. Text
// without right-to-left characters is returned unchanged.
func VisualOrder(s string) string {
	if !ContainsRTL(s) {
		return s
	}
	return ReorderRTL(s)
}

// ReorderRTL splits s on whitespace, reverses the word order, and reverses
// the characters inside each word except for runs of Latin letters, digits
// and percent signs, which keep their internal order.
func ReorderRTL(s string) string {
	words := strings.Fields(s)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	for i, w := range words {
		words[i] = reorderToken(w)
	}
	return strings.Join(words, " ")
}

// isLTRRune reports whether r belongs to a run that is never mirrored.
func isLTRRune(r rune) bool {
	if r == '%' || unicode.IsDigit(r) {
		return true
	}
	return unicode.IsLetter(r) && unicode.Is(unicode.Latin, r)
}

func reorderToken(w string) string {
	runes := []rune(w)
	allLTR := true
	for _, r := range runes {
		if !isLTRRune(r) {
			allLTR = false
			break
		}
	}
	if allLTR {
		return w
	}

	// Split into maximal runs of the same kind, then emit the runs in reverse
	// order, reversing only the characters of the right-to-left runs.
	var runs [][]rune
	for i := 0; i < len(runes); {
		j := i + 1
		ltr := isLTRRune(runes[i])
		for j < len(runes) && isLTRRune(runes[j]) == ltr {
			j++
		}
		run := runes[i:j]
		if !ltr {
			run = reverseRunes(run)
		}
		runs = append(runs, run)
		i = j
	}

	var sb strings.Builder
	sb.Grow(len(w))
	for i := len(runs) - 1; i >= 0; i-- {
		sb.WriteString(string(runs[i]))
	}
	return sb.String()
}

var mirrored = map[rune]rune{
	'(': ')', ')': '(',
	'[': ']', ']': '[',
	'{': '}', '}': '{',
	'<': '>', '>': '<',
	'«': '»', '»': '«',
}

func reverseRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		if m, ok := mirrored[r]; ok {
			r = m
		}
		out[len(rs)-1-i] = r
	}
	return out
}
