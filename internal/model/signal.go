package model

import (
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// SignalType categorises where a signal came from.
type SignalType string

const (
	SignalTypeTender        SignalType = "TENDER"
	SignalTypeNews          SignalType = "NEWS"
	SignalTypeWebStory      SignalType = "WEB_STORY"
	SignalTypeDirectory     SignalType = "DIRECTORY"
	SignalTypeProcurement   SignalType = "PROCUREMENT"
	SignalTypeExpansion     SignalType = "EXPANSION"
	SignalTypeCommissioning SignalType = "COMMISSIONING"
)

var knownSignalTypes = map[SignalType]bool{
	SignalTypeTender:        true,
	SignalTypeNews:          true,
	SignalTypeWebStory:      true,
	SignalTypeDirectory:     true,
	SignalTypeProcurement:   true,
	SignalTypeExpansion:     true,
	SignalTypeCommissioning: true,
}

// ParseSignalType normalises s and reports whether it names a known type.
func ParseSignalType(s string) (SignalType, bool) {
	t := SignalType(strings.ToUpper(strings.TrimSpace(s)))
	t = SignalType(strings.ReplaceAll(string(t), "-", "_"))
	return t, knownSignalTypes[t]
}

// IsKnown reports whether t is one of the enumerated signal types.
func (t SignalType) IsKnown() bool {
	return knownSignalTypes[t]
}

// Signal is a detected piece of evidence that a company may need a product.
// The boolean features are extracted upstream; the scorer never derives
// them from Text.
type Signal struct {
	Text                      string          `json:"text"`
	Type                      SignalType      `json:"type"`
	HasVolume                 bool            `json:"hasVolume"`
	HasCapacity               bool            `json:"hasCapacity"`
	HasHighConfidenceIndustry bool            `json:"hasHighConfidenceIndustry"`
	Properties                map[string]bool `json:"properties,omitempty"`
	DetectedAt                time.Time       `json:"detectedAt,omitzero"`
}

// Validate rejects malformed signals at the ingestion boundary.
func (s Signal) Validate() error {
	var errs []string
	if strings.TrimSpace(s.Text) == "" {
		errs = append(errs, "text is required")
	}
	if s.Type == "" {
		errs = append(errs, "type is required")
	} else if !s.Type.IsKnown() {
		errs = append(errs, "unknown type "+string(s.Type))
	}
	if len(errs) > 0 {
		return eris.Errorf("model: invalid signal: %s", strings.Join(errs, "; "))
	}
	return nil
}

// EnabledProperties returns the truthy property names in sorted order.
func (s Signal) EnabledProperties() []string {
	var out []string
	for k, v := range s.Properties {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}
