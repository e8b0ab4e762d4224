package taxonomy

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldChain = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases and strips diacritics so "Lập Trình" matches "lap trinh".
// Đ/đ decompose to nothing under NFD, so they are mapped by hand.
func Fold(s string) string {
	out, _, err := transform.String(foldChain, s)
	if err != nil {
		out = s
	}
	out = strings.Map(func(r rune) rune {
		switch r {
		case 'Đ':
			return 'D'
		case 'đ':
			return 'd'
		}
		return r
	}, out)
	return strings.ToLower(out)
}
