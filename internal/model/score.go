package model

// Fixed confidence values shared by the scorer and its consumers.
const (
	ConfidenceFloor     = 0.30
	ConfidenceCeiling   = 0.95
	ConfidenceDiscarded = 0.20
)

// ScoreStatus is set only when scoring short-circuits on a disqualifier.
type ScoreStatus string

// ScoreStatusDiscarded marks a signal contraindicated by a negative keyword.
const ScoreStatusDiscarded ScoreStatus = "DISCARDED"

// ScoreResult is the output of one scoring call. FinalConfidence is the
// clamped, rounded sum of BaseConfidence and the unrounded modifier total;
// Modifiers reports that total rounded to two decimals.
type ScoreResult struct {
	FinalConfidence float64     `json:"finalConfidence"`
	Status          ScoreStatus `json:"status,omitempty"`
	ReasonCodes     []string    `json:"reasonCodes"`
	BaseConfidence  float64     `json:"baseConfidence"`
	Modifiers       float64     `json:"modifiers"`
	MatchedRule     string      `json:"matchedRule,omitempty"`
}

// Discarded reports whether a hard disqualification fired.
func (r ScoreResult) Discarded() bool {
	return r.Status == ScoreStatusDiscarded
}

// Priority ranks a lead for follow-up independently of product fit. Score
// is the weighted sum of Components, each in [0, 1].
type Priority struct {
	Score      float64            `json:"score"`
	Components map[string]float64 `json:"components,omitempty"`
}
