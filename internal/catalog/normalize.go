package catalog

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text for keyword matching: NFKC composition followed by
// language-neutral lower-casing. A fresh Caser is built per call because
// Casers carry state and must not be shared between goroutines.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(norm.NFKC.String(s))
}
