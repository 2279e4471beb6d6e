// Package textnorm provides deterministic text normalization for catalog
// matching. The pipeline lowercases via Unicode case folding, strips
// combining marks and format characters, folds fullwidth forms to ASCII,
// maps domain spellings (ё->е, dimension separators to "x"), and collapses
// whitespace. This is part of the platform layer and contains no business logic.
package textnorm

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var chainPool = sync.Pool{
	New: func() any {
		return transform.Chain(
			norm.NFKC,
			cases.Fold(),
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			width.Fold,
		)
	},
}

// Normalize returns the canonical matching form of s.
func Normalize(s string) string {
	if s == "" {
		return ""
	}

	s = strings.ToValidUTF8(s, "")

	tr := chainPool.Get().(transform.Transformer)
	ns, _, _ := transform.String(tr, s)
	tr.Reset()
	chainPool.Put(tr)

	ns = foldDomain(ns)
	return collapseSpaces(ns)
}

// Tokens normalizes s and splits it into whitespace-separated tokens.
func Tokens(s string) []string {
	normalized := Normalize(s)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// foldDomain maps spelling variants common in catalog titles and order
// messages to a single form: ё collapses to е, dimension separators
// (* and Cyrillic х between digits, " на ") become the Latin x.
func foldDomain(s string) string {
	s = strings.ReplaceAll(s, "ё", "е")
	s = strings.ReplaceAll(s, " на ", " x ")
	s = strings.ReplaceAll(s, "*", "x")

	// Cyrillic х reads as a dimension separator only between digits;
	// elsewhere it is a regular letter.
	runes := []rune(s)
	for i, r := range runes {
		if r != 'х' {
			continue
		}
		if i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
			runes[i] = 'x'
		}
	}
	return string(runes)
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
