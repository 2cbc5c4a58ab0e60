// Package scorer computes lead confidence for a signal against a product's
// scoring rules.
package scorer

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sells-group/lead-intel/internal/catalog"
	"github.com/sells-group/lead-intel/internal/model"
)

// Base rule labels recorded in ScoreResult.MatchedRule and reason codes.
const (
	RuleTenderWithVolume         = "explicitTenderWithVolume"
	RuleInstallationWithCapacity = "installationWithCapacity"
	RuleHighConfidenceIndustry   = "highConfidenceIndustry"
	RuleDefaultBaseline          = "defaultBaseline"
)

// ReasonProductNotFound is the only reason code for an unknown product.
const ReasonProductNotFound = "Product not found"

// RuleSource resolves product rules by code. *catalog.Catalog and
// *catalog.Holder both satisfy it.
type RuleSource interface {
	Lookup(code string) (catalog.ProductRule, bool)
}

// Scorer computes confidence for signals. It keeps no state besides its
// rule source and is safe for concurrent use.
type Scorer struct {
	rules RuleSource
}

// New returns a Scorer reading product rules from rules.
func New(rules RuleSource) *Scorer {
	return &Scorer{rules: rules}
}

// Score runs the scoring steps in order: product lookup, negative keyword
// disqualification, base rule selection, additive modifiers, clamp and
// round. Unknown products and disqualified signals are ordinary results.
func (s *Scorer) Score(signal model.Signal, productCode string) model.ScoreResult {
	product, ok := s.rules.Lookup(productCode)
	if !ok {
		return model.ScoreResult{
			FinalConfidence: model.ConfidenceFloor,
			ReasonCodes:     []string{ReasonProductNotFound},
		}
	}

	text := catalog.Normalize(signal.Text)
	for _, neg := range product.NegativeKeywords {
		if strings.Contains(text, neg) {
			return model.ScoreResult{
				FinalConfidence: model.ConfidenceDiscarded,
				Status:          model.ScoreStatusDiscarded,
				ReasonCodes:     []string{"Matched negative keyword: " + neg},
			}
		}
	}

	rule, base := selectBase(signal, product)
	reasons := []string{fmt.Sprintf("Base: %s (%s)", rule, formatNumber(base))}

	var modifiers float64
	for _, f := range product.ScoringFactors {
		if signal.Properties[f.Name] {
			modifiers += f.Value
			reasons = append(reasons, fmt.Sprintf("Modifier: %s (%s)", f.Name, signed(f.Value)))
		}
	}

	// Only the reported total is rounded; the final value rounds once.
	return model.ScoreResult{
		FinalConfidence: Round2(Clamp(base+modifiers, model.ConfidenceFloor, model.ConfidenceCeiling)),
		ReasonCodes:     reasons,
		BaseConfidence:  base,
		Modifiers:       Round2(modifiers),
		MatchedRule:     rule,
	}
}

// selectBase picks exactly one base rule; the first matching condition
// wins.
func selectBase(signal model.Signal, product catalog.ProductRule) (string, float64) {
	switch {
	case signal.Type == model.SignalTypeTender && signal.HasVolume:
		return RuleTenderWithVolume, boundOr(product, catalog.TierTenderWithVolume, catalog.FallbackTenderWithVolume)
	case signal.HasCapacity && signal.HasHighConfidenceIndustry:
		return RuleInstallationWithCapacity, boundOr(product, catalog.TierInstallationWithCapacity, catalog.FallbackInstallationWithCapacity)
	case signal.HasHighConfidenceIndustry:
		return RuleHighConfidenceIndustry, boundOr(product, catalog.TierHighConfidenceIndustry, catalog.FallbackHighConfidenceIndustry)
	default:
		return RuleDefaultBaseline, model.ConfidenceFloor
	}
}

func boundOr(product catalog.ProductRule, tier catalog.BaseTier, fallback float64) float64 {
	if _, v, ok := product.BaseRule(tier); ok {
		return v
	}
	return fallback
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Round2 rounds v to two decimals, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func signed(v float64) string {
	if v < 0 {
		return formatNumber(v)
	}
	return "+" + formatNumber(v)
}
