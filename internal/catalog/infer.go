package catalog

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Inference weights: one primary keyword hit and one secondary keyword hit
// count per product.
const (
	primaryKeywordWeight   = 0.6
	secondaryKeywordWeight = 0.3

	// DefaultInferMinConfidence drops weak candidates (a secondary hit alone).
	DefaultInferMinConfidence = 0.4
)

// Inference is a candidate product for a piece of signal text.
type Inference struct {
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// InferOptions tunes Infer. Zero values select the defaults.
type InferOptions struct {
	MinConfidence float64
	Limit         int
}

// Infer ranks the products whose keywords appear in text. Keywords match
// as whole phrases so short codes such as "fo" do not fire inside "for".
// Products whose negative keywords appear are skipped. Results are sorted
// by confidence, ties keeping catalog order.
func (c *Catalog) Infer(text string, opts InferOptions) []Inference {
	minConf := opts.MinConfidence
	if minConf <= 0 {
		minConf = DefaultInferMinConfidence
	}

	lower := Normalize(text)
	var out []Inference
	for _, p := range c.products {
		if firstContained(lower, p.NegativeKeywords) != "" {
			continue
		}

		var confidence float64
		var reasons []string
		if kw := firstPhrase(lower, p.PrimaryKeywords); kw != "" {
			confidence += primaryKeywordWeight
			reasons = append(reasons, fmt.Sprintf("Matched keyword: '%s'", kw))
		}
		if kw := firstPhrase(lower, p.SecondaryKeywords); kw != "" {
			confidence += secondaryKeywordWeight
			reasons = append(reasons, fmt.Sprintf("Matched context: '%s'", kw))
		}

		confidence = math.Round(math.Min(confidence, 1.0)*100) / 100
		if confidence < minConf {
			continue
		}
		out = append(out, Inference{
			Code:       p.Code,
			Name:       p.Name,
			Confidence: confidence,
			Reasoning:  strings.Join(reasons, "; "),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out
}

// firstContained returns the first keyword that is a substring of text.
func firstContained(text string, keywords []string) string {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return kw
		}
	}
	return ""
}

// firstPhrase returns the first keyword found in text on word boundaries.
func firstPhrase(text string, keywords []string) string {
	for _, kw := range keywords {
		if ContainsPhrase(text, kw) {
			return kw
		}
	}
	return ""
}

// ContainsPhrase reports whether phrase occurs in text with no letter or
// digit immediately before or after it.
func ContainsPhrase(text, phrase string) bool {
	if phrase == "" {
		return false
	}
	for start := 0; start <= len(text)-len(phrase); {
		i := strings.Index(text[start:], phrase)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(phrase)
		if !wordRuneBefore(text, i) && !wordRuneAt(text, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		start = i + size
	}
	return false
}

func wordRuneBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordRuneAt(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
