package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeadStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status LeadStatus
		want   string
	}{
		{LeadStatusAutoAssigned, "AUTO_ASSIGNED"},
		{LeadStatusQualified, "QUALIFIED"},
		{LeadStatusReviewRequired, "REVIEW_REQUIRED"},
		{LeadStatusDiscarded, "DISCARDED"},
		{LeadStatusAccepted, "ACCEPTED"},
		{LeadStatusRejected, "REJECTED"},
		{LeadStatusConverted, "CONVERTED"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
			assert.True(t, tt.status.IsValid())
		})
	}

	assert.False(t, LeadStatus("PENDING").IsValid())
}

func TestTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    LeadStatus
		action  ActionType
		want    LeadStatus
		wantErr bool
	}{
		{"accept auto assigned", LeadStatusAutoAssigned, ActionAccept, LeadStatusAccepted, false},
		{"accept review", LeadStatusReviewRequired, ActionAccept, LeadStatusAccepted, false},
		{"reject qualified", LeadStatusQualified, ActionReject, LeadStatusRejected, false},
		{"accept discarded", LeadStatusDiscarded, ActionAccept, LeadStatusAccepted, false},
		{"convert accepted", LeadStatusAccepted, ActionConvert, LeadStatusConverted, false},
		{"convert qualified", LeadStatusQualified, ActionConvert, LeadStatusQualified, true},
		{"accept rejected", LeadStatusRejected, ActionAccept, LeadStatusRejected, true},
		{"reject converted", LeadStatusConverted, ActionReject, LeadStatusConverted, true},
		{"unknown action", LeadStatusQualified, ActionType("ESCALATE"), LeadStatusQualified, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Transition(tt.from, tt.action)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSignalValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Signal{Text: "boiler tender", Type: SignalTypeTender}.Validate())

	err := Signal{Type: SignalTypeNews}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text is required")

	err = Signal{Text: "x", Type: "RUMOUR"}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type RUMOUR")

	err = Signal{}.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type is required")
}

func TestParseSignalType(t *testing.T) {
	t.Parallel()

	got, ok := ParseSignalType(" web-story ")
	assert.True(t, ok)
	assert.Equal(t, SignalTypeWebStory, got)

	_, ok = ParseSignalType("blog")
	assert.False(t, ok)
}

func TestSignalEnabledProperties(t *testing.T) {
	t.Parallel()

	s := Signal{Properties: map[string]bool{"urgencyIndicators": true, "capacityMentioned": true, "multipleGensets": false}}
	assert.Equal(t, []string{"capacityMentioned", "urgencyIndicators"}, s.EnabledProperties())
}

func TestScoreResultDiscarded(t *testing.T) {
	t.Parallel()

	assert.True(t, ScoreResult{Status: ScoreStatusDiscarded}.Discarded())
	assert.False(t, ScoreResult{FinalConfidence: 0.5}.Discarded())
}
