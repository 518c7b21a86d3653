// Package textnorm folds branch names, labels and inspector identities into a
// comparable form. Spreadsheet exports and the inspection API disagree on case,
// accents and spacing ("Gómez Morín" vs "GOMEZ MORIN "), so every comparison in
// the resolver goes through Fold.
package textnorm

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases s, strips diacritics and collapses runs of whitespace.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	return strings.Join(strings.Fields(cases.Fold().String(stripped)), " ")
}

// Tokens splits the folded form of s on anything that is not a letter or digit.
func Tokens(s string) []string {
	return strings.FieldsFunc(Fold(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// SplitCode separates a leading numeric branch code from a label.
//
//	"35 - Riverside" -> 35, "riverside", true
//	"35"             -> 35, "", true
//	"Riverside"      -> 0, "riverside", false
//
// The returned name is folded.
func SplitCode(label string) (int, string, bool) {
	folded := Fold(label)
	end := 0
	for end < len(folded) && folded[end] >= '0' && folded[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, folded, false
	}
	// "7eleven" is a name, not a code followed by a name.
	if end < len(folded) && !isSeparator(rune(folded[end])) {
		return 0, folded, false
	}
	code, err := strconv.Atoi(folded[:end])
	if err != nil {
		return 0, folded, false
	}
	rest := strings.TrimLeftFunc(folded[end:], isSeparator)
	return code, strings.TrimSpace(rest), true
}

func isSeparator(r rune) bool {
	return unicode.IsSpace(r) || r == '-' || r == '.' || r == ':' || r == '_' || r == '|' || r == ')'
}
