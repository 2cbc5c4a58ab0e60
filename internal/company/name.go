// Package company resolves the firm named on a lead to a single company
// record so the same firm under different legal suffixes is merged.
package company

import (
	"regexp"
	"strings"
)

// legalSuffixes are stripped before names are compared. Longer forms come
// first so "pvt ltd" goes before "ltd" can split it.
var legalSuffixes = compileAll(
	`\bpvt\.? ltd\.?`, `\bprivate limited\b`,
	`\bltd\.?\b`, `\blimited\b`,
	`\bcorp\.?\b`, `\bcorporation\b`,
	`\binc\.?\b`, `\bincorporated\b`,
	`\bllc\b`, `\bllp\b`,
	`\bco\.?\b`, `\bcompany\b`,
	`\binds\.?\b`, `\bindustries\b`,
	`\bent\.?\b`, `\benterprises\b`,
	`\bgroup\b`, `\bholdings\b`,
)

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// NormalizeName folds a company name for matching: lower case, legal
// suffixes removed, punctuation replaced by spaces and runs of whitespace
// collapsed. A name made only of suffixes normalises to "".
func NormalizeName(name string) string {
	n := strings.ToLower(name)
	for _, re := range legalSuffixes {
		n = re.ReplaceAllString(n, "")
	}
	n = nonAlnum.ReplaceAllString(n, " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(n, " "))
}

// Key returns the matching key for name: its normalised form, or the
// trimmed lower-case name when normalisation leaves nothing.
func Key(name string) string {
	if n := NormalizeName(name); n != "" {
		return n
	}
	return strings.ToLower(strings.TrimSpace(name))
}

// minFuzzyLen is the shortest key allowed to match by containment; shorter
// keys such as "abc" would merge unrelated firms.
const minFuzzyLen = 5

// Similar reports whether two keys name the same firm: one contains the
// other and the contained key is long enough to be distinctive.
func Similar(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	return (strings.Contains(b, a) && len(a) >= minFuzzyLen) ||
		(strings.Contains(a, b) && len(b) >= minFuzzyLen)
}
