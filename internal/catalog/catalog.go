// Package catalog holds the per-product scoring configuration: base
// confidence rules, keyword lists, additive scoring factors and
// disqualifier metadata. A Catalog is immutable once built and safe for
// concurrent reads.
package catalog

import (
	"sort"
	"strings"
)

// BaseTier names the coarse signal condition that selects a base rule.
type BaseTier string

const (
	TierTenderWithVolume         BaseTier = "tenderWithVolume"
	TierInstallationWithCapacity BaseTier = "installationWithCapacity"
	TierHighConfidenceIndustry   BaseTier = "highConfidenceIndustry"
)

// Fallback base confidences used when a product binds no rule for a tier.
const (
	FallbackTenderWithVolume         = 0.95
	FallbackInstallationWithCapacity = 0.85
	FallbackHighConfidenceIndustry   = 0.55
)

// RuleBindings maps each base tier to candidate rule names. The first
// candidate present in BaseConfidenceRules wins.
type RuleBindings struct {
	TenderWithVolume         []string `yaml:"tenderWithVolume,omitempty" json:"tenderWithVolume,omitempty"`
	InstallationWithCapacity []string `yaml:"installationWithCapacity,omitempty" json:"installationWithCapacity,omitempty"`
	HighConfidenceIndustry   []string `yaml:"highConfidenceIndustry,omitempty" json:"highConfidenceIndustry,omitempty"`
}

// For returns the candidates bound to tier.
func (b RuleBindings) For(tier BaseTier) []string {
	switch tier {
	case TierTenderWithVolume:
		return b.TenderWithVolume
	case TierInstallationWithCapacity:
		return b.InstallationWithCapacity
	case TierHighConfidenceIndustry:
		return b.HighConfidenceIndustry
	}
	return nil
}

// ProductRule is the scoring configuration of one sellable product.
// Slices and tables are shared with the owning Catalog and must not be
// modified by callers.
type ProductRule struct {
	Code                string       `yaml:"code" json:"code"`
	Name                string       `yaml:"name" json:"name"`
	Category            string       `yaml:"category,omitempty" json:"category,omitempty"`
	BaseConfidenceRules Weights      `yaml:"baseConfidenceRules,omitempty" json:"baseConfidenceRules"`
	RuleBindings        RuleBindings `yaml:"ruleBindings,omitempty" json:"ruleBindings"`
	PrimaryKeywords     []string     `yaml:"primaryKeywords,omitempty" json:"primaryKeywords"`
	SecondaryKeywords   []string     `yaml:"secondaryKeywords,omitempty" json:"secondaryKeywords"`
	NegativeKeywords    []string     `yaml:"negativeKeywords,omitempty" json:"negativeKeywords"`
	ScoringFactors      Weights      `yaml:"scoringFactors,omitempty" json:"scoringFactors"`
	Disqualifiers       Weights      `yaml:"disqualifiers,omitempty" json:"disqualifiers,omitempty"`
}

// BaseRule resolves the base rule bound to tier. ok is false when no bound
// candidate is configured; callers then use the tier fallback.
func (p ProductRule) BaseRule(tier BaseTier) (name string, value float64, ok bool) {
	for _, candidate := range p.RuleBindings.For(tier) {
		if v, found := p.BaseConfidenceRules.Get(candidate); found {
			return candidate, v, true
		}
	}
	return "", 0, false
}

// Catalog is an immutable set of product rules indexed by code.
type Catalog struct {
	version  string
	products []ProductRule
	byCode   map[string]int
}

// New validates products and builds a Catalog. Keywords are normalised and
// de-duplicated; codes are upper-cased.
func New(version string, products []ProductRule) (*Catalog, error) {
	normalised := make([]ProductRule, len(products))
	for i, p := range products {
		normalised[i] = normaliseRule(p)
	}
	if err := Validate(normalised); err != nil {
		return nil, err
	}

	c := &Catalog{
		version:  version,
		products: normalised,
		byCode:   make(map[string]int, len(normalised)),
	}
	for i, p := range normalised {
		c.byCode[p.Code] = i
	}
	return c, nil
}

// Lookup returns the rule for code. An unknown code is a normal outcome.
func (c *Catalog) Lookup(code string) (ProductRule, bool) {
	if c == nil {
		return ProductRule{}, false
	}
	i, ok := c.byCode[normaliseCode(code)]
	if !ok {
		return ProductRule{}, false
	}
	return c.products[i], true
}

// Version returns the catalog's version label.
func (c *Catalog) Version() string {
	return c.version
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Products returns the rules in declaration order.
func (c *Catalog) Products() []ProductRule {
	out := make([]ProductRule, len(c.products))
	copy(out, c.products)
	return out
}

// Codes returns the product codes sorted alphabetically.
func (c *Catalog) Codes() []string {
	out := make([]string, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p.Code)
	}
	sort.Strings(out)
	return out
}

// normaliseCode folds case and surrounding space so "hsd " and "HSD" name
// the same product. Any other difference is a different code.
func normaliseCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normaliseRule(p ProductRule) ProductRule {
	p.Code = normaliseCode(p.Code)
	p.Name = strings.TrimSpace(p.Name)
	p.PrimaryKeywords = normaliseKeywords(p.PrimaryKeywords)
	p.SecondaryKeywords = normaliseKeywords(p.SecondaryKeywords)
	p.NegativeKeywords = normaliseKeywords(p.NegativeKeywords)
	return p
}

// normaliseKeywords lower-cases phrases and drops repeats, keeping the
// first occurrence. Blank phrases are kept so validation can report them.
func normaliseKeywords(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, kw := range in {
		n := strings.TrimSpace(Normalize(kw))
		if n != "" && seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
