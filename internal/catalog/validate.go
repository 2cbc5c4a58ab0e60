package catalog

import (
	"fmt"
	"math"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/model"
)

// Validate checks a set of product rules for configuration errors. It is
// meant to run once at load time; a failure is fatal to startup.
func Validate(products []ProductRule) error {
	var errs []string

	if len(products) == 0 {
		errs = append(errs, "no products defined")
	}

	seen := make(map[string]bool, len(products))
	for i, p := range products {
		label := p.Code
		if label == "" {
			label = fmt.Sprintf("#%d", i)
		}

		if p.Code == "" {
			errs = append(errs, fmt.Sprintf("product %s: code is required", label))
		} else if seen[p.Code] {
			errs = append(errs, fmt.Sprintf("product %s: duplicate code", label))
		}
		seen[p.Code] = true

		if p.Name == "" {
			errs = append(errs, fmt.Sprintf("product %s: name is required", label))
		}

		for _, r := range p.BaseConfidenceRules {
			switch {
			case math.IsNaN(r.Value) || math.IsInf(r.Value, 0):
				errs = append(errs, fmt.Sprintf("product %s: base rule %s is not a finite number", label, r.Name))
			case r.Value < model.ConfidenceFloor || r.Value > model.ConfidenceCeiling:
				errs = append(errs, fmt.Sprintf("product %s: base rule %s = %s outside [%.2f, %.2f]",
					label, r.Name, formatWeight(r.Value), model.ConfidenceFloor, model.ConfidenceCeiling))
			}
		}

		for _, table := range []struct {
			kind    string
			weights Weights
		}{
			{"scoring factor", p.ScoringFactors},
			{"disqualifier", p.Disqualifiers},
		} {
			for _, w := range table.weights {
				if w.Name == "" {
					errs = append(errs, fmt.Sprintf("product %s: %s with empty name", label, table.kind))
				}
				if math.IsNaN(w.Value) || math.IsInf(w.Value, 0) {
					errs = append(errs, fmt.Sprintf("product %s: %s %s is not a finite number", label, table.kind, w.Name))
				}
			}
		}

		for _, tier := range []BaseTier{TierTenderWithVolume, TierInstallationWithCapacity, TierHighConfidenceIndustry} {
			for _, candidate := range p.RuleBindings.For(tier) {
				if _, ok := p.BaseConfidenceRules.Get(candidate); !ok {
					errs = append(errs, fmt.Sprintf("product %s: binding %s references unknown rule %s", label, tier, candidate))
				}
			}
		}

		for _, list := range []struct {
			kind     string
			keywords []string
		}{
			{"primary", p.PrimaryKeywords},
			{"secondary", p.SecondaryKeywords},
			{"negative", p.NegativeKeywords},
		} {
			for _, kw := range list.keywords {
				if kw == "" {
					errs = append(errs, fmt.Sprintf("product %s: empty %s keyword", label, list.kind))
				}
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("catalog: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
