package scorer

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/catalog"
	"github.com/sells-group/lead-intel/internal/model"
)

// Priority component names, also the keys of model.Priority.Components.
const (
	ComponentIntent    = "intent"
	ComponentFreshness = "freshness"
	ComponentSize      = "size"
	ComponentGeography = "geography"
)

// priorityComponents fixes the summation order so scores are reproducible.
var priorityComponents = []string{ComponentIntent, ComponentFreshness, ComponentSize, ComponentGeography}

// Default priority weights and freshness decay per day.
const (
	DefaultIntentWeight    = 0.4
	DefaultFreshnessWeight = 0.3
	DefaultSizeWeight      = 0.2
	DefaultGeographyWeight = 0.1
	DefaultDecayRate       = 0.1
)

// Neutral component values used when there is nothing to judge.
const (
	neutralIntent    = 0.5
	neutralGeography = 0.5
	baselineSize     = 0.2
)

// intentScores rates how close each signal type is to a purchase.
var intentScores = map[model.SignalType]float64{
	model.SignalTypeTender:        1.0,
	model.SignalTypeProcurement:   0.9,
	model.SignalTypeExpansion:     0.8,
	model.SignalTypeCommissioning: 0.75,
	model.SignalTypeNews:          0.5,
	model.SignalTypeDirectory:     0.3,
}

// sizeTiers map scale phrases in the signal text to a company size proxy.
// The first tier with a matching phrase wins.
var sizeTiers = []struct {
	score   float64
	phrases []string
}{
	{1.0, []string{"billion", "mega project", "massive expansion", "integrated plant"}},
	{0.7, []string{"million", "crore", "large scale", "capacity expansion"}},
	{0.4, []string{"sme", "mid-sized", "growing"}},
}

// PriorityConfig tunes lead prioritisation.
type PriorityConfig struct {
	IntentWeight    float64 `yaml:"intent_weight" mapstructure:"intent_weight"`
	FreshnessWeight float64 `yaml:"freshness_weight" mapstructure:"freshness_weight"`
	SizeWeight      float64 `yaml:"size_weight" mapstructure:"size_weight"`
	GeographyWeight float64 `yaml:"geography_weight" mapstructure:"geography_weight"`
	DecayRate       float64 `yaml:"decay_rate" mapstructure:"decay_rate"`
	Territory       string  `yaml:"territory" mapstructure:"territory"`
}

// DefaultPriorityConfig returns the standard weights with no territory.
func DefaultPriorityConfig() PriorityConfig {
	return PriorityConfig{
		IntentWeight:    DefaultIntentWeight,
		FreshnessWeight: DefaultFreshnessWeight,
		SizeWeight:      DefaultSizeWeight,
		GeographyWeight: DefaultGeographyWeight,
		DecayRate:       DefaultDecayRate,
	}
}

// WeightSum returns the sum of all component weights.
func (c PriorityConfig) WeightSum() float64 {
	return c.IntentWeight + c.FreshnessWeight + c.SizeWeight + c.GeographyWeight
}

// Validate rejects negative weights and decay rates.
func (c PriorityConfig) Validate() error {
	var errs []string
	for name, w := range map[string]float64{
		"intent_weight":    c.IntentWeight,
		"freshness_weight": c.FreshnessWeight,
		"size_weight":      c.SizeWeight,
		"geography_weight": c.GeographyWeight,
		"decay_rate":       c.DecayRate,
	} {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			errs = append(errs, fmt.Sprintf("priority.%s must be a finite number >= 0, got %v", name, w))
		}
	}
	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("scorer: invalid priority config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// PriorityScorer ranks leads by intent, freshness, company size and
// territory fit. It is safe for concurrent use.
type PriorityScorer struct {
	cfg PriorityConfig
	now func() time.Time
}

// NewPriorityScorer validates cfg and returns a scorer. All-zero weights
// select the defaults, as does a zero decay rate.
func NewPriorityScorer(cfg PriorityConfig) (*PriorityScorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	def := DefaultPriorityConfig()
	if cfg.WeightSum() == 0 {
		cfg.IntentWeight = def.IntentWeight
		cfg.FreshnessWeight = def.FreshnessWeight
		cfg.SizeWeight = def.SizeWeight
		cfg.GeographyWeight = def.GeographyWeight
	}
	if cfg.DecayRate == 0 {
		cfg.DecayRate = def.DecayRate
	}
	return &PriorityScorer{cfg: cfg, now: time.Now}, nil
}

// Score computes the priority of a signal about a company at location.
func (s *PriorityScorer) Score(signal model.Signal, location string) model.Priority {
	components := map[string]float64{
		ComponentIntent:    scoreIntent(signal.Type),
		ComponentFreshness: scoreFreshness(signal.DetectedAt, s.now(), s.cfg.DecayRate),
		ComponentSize:      scoreSize(signal.Text),
		ComponentGeography: scoreGeography(location, s.cfg.Territory),
	}
	weights := map[string]float64{
		ComponentIntent:    s.cfg.IntentWeight,
		ComponentFreshness: s.cfg.FreshnessWeight,
		ComponentSize:      s.cfg.SizeWeight,
		ComponentGeography: s.cfg.GeographyWeight,
	}

	var total float64
	for _, k := range priorityComponents {
		total += components[k] * weights[k]
	}
	// Normalise so custom weights need not sum to 1.
	if sum := s.cfg.WeightSum(); sum > 0 {
		total /= sum
	}

	return model.Priority{
		Score:      Round2(total),
		Components: components,
	}
}

// scoreIntent returns how strongly the signal type implies a purchase.
func scoreIntent(t model.SignalType) float64 {
	if v, ok := intentScores[t]; ok {
		return v
	}
	return neutralIntent
}

// scoreFreshness decays exponentially per whole day since detection. An
// unknown detection time counts as fresh, as does one in the future.
func scoreFreshness(detectedAt, now time.Time, decayRate float64) float64 {
	if detectedAt.IsZero() {
		return 1.0
	}
	days := math.Floor(now.Sub(detectedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return Round2(math.Exp(-decayRate * days))
}

// scoreSize estimates company size from scale phrases in the text.
func scoreSize(text string) float64 {
	norm := catalog.Normalize(text)
	for _, tier := range sizeTiers {
		for _, p := range tier.phrases {
			if catalog.ContainsPhrase(norm, p) {
				return tier.score
			}
		}
	}
	return baselineSize
}

// scoreGeography returns 1.0 when the location falls in the territory and
// neutral otherwise.
func scoreGeography(location, territory string) float64 {
	location = strings.TrimSpace(location)
	territory = strings.TrimSpace(territory)
	if location == "" || territory == "" {
		return neutralGeography
	}
	if strings.Contains(catalog.Normalize(location), catalog.Normalize(territory)) {
		return 1.0
	}
	return neutralGeography
}
