// Package classifier maps a final confidence onto a routing tier.
package classifier

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/model"
)

// Default tier thresholds. Each band includes its lower bound.
const (
	DefaultAutoAssignThreshold = 0.90
	DefaultQualifiedThreshold  = 0.75
)

// Thresholds are the lower bounds of the AUTO_ASSIGNED and QUALIFIED tiers.
type Thresholds struct {
	AutoAssign float64 `yaml:"auto_assign_threshold" mapstructure:"auto_assign_threshold"`
	Qualified  float64 `yaml:"qualified_threshold" mapstructure:"qualified_threshold"`
}

// DefaultThresholds returns the production thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		AutoAssign: DefaultAutoAssignThreshold,
		Qualified:  DefaultQualifiedThreshold,
	}
}

// Validate checks 0 < qualified < auto_assign <= 1.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.AutoAssign) || math.IsNaN(t.Qualified) {
		return eris.New("classifier: thresholds must be numbers")
	}
	if t.Qualified <= 0 {
		return eris.Errorf("classifier: qualified threshold %v must be > 0", t.Qualified)
	}
	if t.AutoAssign <= t.Qualified {
		return eris.Errorf("classifier: auto-assign threshold %v must exceed qualified threshold %v", t.AutoAssign, t.Qualified)
	}
	if t.AutoAssign > 1 {
		return eris.Errorf("classifier: auto-assign threshold %v must be <= 1", t.AutoAssign)
	}
	return nil
}

// Classifier assigns tiers. The zero value is not usable; build one with New.
type Classifier struct {
	t Thresholds
}

// New validates t and returns a Classifier using it.
func New(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{t: t}, nil
}

// Thresholds returns the thresholds in use.
func (c *Classifier) Thresholds() Thresholds {
	return c.t
}

// Classify returns the tier for finalConfidence. It is total: NaN and
// out-of-range values land in REVIEW_REQUIRED or AUTO_ASSIGNED.
func (c *Classifier) Classify(finalConfidence float64) model.LeadStatus {
	switch {
	case finalConfidence >= c.t.AutoAssign:
		return model.LeadStatusAutoAssigned
	case finalConfidence >= c.t.Qualified:
		return model.LeadStatusQualified
	default:
		return model.LeadStatusReviewRequired
	}
}

// Status derives a lead's initial status from a score: discarded scores
// stay DISCARDED, everything else is classified.
func (c *Classifier) Status(res model.ScoreResult) model.LeadStatus {
	if res.Discarded() {
		return model.LeadStatusDiscarded
	}
	return c.Classify(res.FinalConfidence)
}

var defaultClassifier = &Classifier{t: DefaultThresholds()}

// Classify classifies finalConfidence with the default thresholds.
func Classify(finalConfidence float64) model.LeadStatus {
	return defaultClassifier.Classify(finalConfidence)
}
