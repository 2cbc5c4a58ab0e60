package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intel/internal/model"
	"github.com/sells-group/lead-intel/internal/store"
)

const hsdTenderText = "Tender for supply of 500 KL high speed diesel to captive power plant"

func scoreAndSave(t *testing.T, dir string) scoreOutput {
	t.Helper()
	out, err := execute(t, dir, "score",
		"--product", "HSD",
		"--type", "TENDER",
		"--has-volume",
		"--company", "Acme Power",
		"--location", "Nagpur",
		"--text", hsdTenderText,
		"--save",
	)
	require.NoError(t, err)

	var results []scoreOutput
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 1)
	require.NotEmpty(t, results[0].LeadID)
	return results[0]
}

func TestLeadsLifecycle(t *testing.T) {
	dir := t.TempDir()
	scored := scoreAndSave(t, dir)
	assert.Equal(t, model.LeadStatusAutoAssigned, scored.Status)
	assert.Equal(t, 0.95, scored.Score.FinalConfidence)

	out, err := execute(t, dir, "leads", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme Power")
	assert.Contains(t, out, "AUTO_ASSIGNED")
	assert.Contains(t, out, "Showing 1 of 1 leads")

	out, err = execute(t, dir, "leads", "action", scored.LeadID, "ACCEPT", "--actor", "priya", "--follow-up", "2026-11-02", "--deal-value", "125000")
	require.NoError(t, err)
	assert.Equal(t, truncateID(scored.LeadID)+" -> ACCEPTED\n", out)

	_, err = execute(t, dir, "leads", "note", scored.LeadID, "Called the plant manager", "--author", "priya")
	require.NoError(t, err)

	out, err = execute(t, dir, "leads", "show", scored.LeadID)
	require.NoError(t, err)

	var lead model.Lead
	require.NoError(t, json.Unmarshal([]byte(out), &lead))
	assert.Equal(t, model.LeadStatusAccepted, lead.Status)
	assert.Equal(t, "priya", lead.AssignedTo)
	require.Len(t, lead.Actions, 1)
	assert.Equal(t, model.ActionAccept, lead.Actions[0].Type)
	require.NotNil(t, lead.Actions[0].EstimatedDealValue)
	assert.Equal(t, 125000.0, *lead.Actions[0].EstimatedDealValue)
	require.Len(t, lead.Notes, 1)
	assert.Equal(t, "Called the plant manager", lead.Notes[0].Body)

	out, err = execute(t, dir, "leads", "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "Total leads:")
	assert.Contains(t, out, "ACCEPTED:")

	out, err = execute(t, dir, "leads", "export", "--format", "json", "--status", "ACCEPTED")
	require.NoError(t, err)
	var exported []model.Lead
	require.NoError(t, json.Unmarshal([]byte(out), &exported))
	require.Len(t, exported, 1)
	assert.Equal(t, scored.LeadID, exported[0].ID)
}

func TestLeadsAction_InvalidTransition(t *testing.T) {
	dir := t.TempDir()
	scored := scoreAndSave(t, dir)

	_, err := execute(t, dir, "leads", "action", scored.LeadID, "CONVERT")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}

func TestLeadsShow_NotFound(t *testing.T) {
	_, err := execute(t, t.TempDir(), "leads", "show", "missing-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLeadsExport_BadFormat(t *testing.T) {
	_, err := execute(t, t.TempDir(), "leads", "export", "--format", "pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestActionRequestFromFlags(t *testing.T) {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	f.String("actor", "", "")
	f.String("notes", "", "")
	f.String("follow-up", "", "")
	f.Float64("deal-value", 0, "")
	require.NoError(t, f.Parse([]string{"--actor", "ravi", "--notes", "site visit", "--follow-up", "2026-12-01", "--deal-value", "0"}))

	req, err := actionRequestFromFlags(f, "REJECT")
	require.NoError(t, err)
	assert.Equal(t, model.ActionReject, req.Type)
	assert.Equal(t, "ravi", req.Actor)
	assert.Equal(t, "site visit", req.Notes)
	require.NotNil(t, req.NextFollowUp)
	assert.Equal(t, time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC), *req.NextFollowUp)
	require.NotNil(t, req.EstimatedDealValue, "explicit zero is kept")
	assert.Zero(t, *req.EstimatedDealValue)

	_, err = actionRequestFromFlags(f, "ESCALATE")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown action")

	bad := pflag.NewFlagSet("bad", pflag.ContinueOnError)
	bad.String("actor", "", "")
	bad.String("notes", "", "")
	bad.String("follow-up", "", "")
	bad.Float64("deal-value", 0, "")
	require.NoError(t, bad.Parse([]string{"--follow-up", "next week"}))
	_, err = actionRequestFromFlags(bad, "ACCEPT")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse follow-up date")
}

func TestLeadFilterFromFlags(t *testing.T) {
	f := pflag.NewFlagSet("test", pflag.ContinueOnError)
	addLeadFilterFlags(f)
	require.NoError(t, f.Parse([]string{"--status", "QUALIFIED", "--product", "fo", "--min-confidence", "0.7", "--sort", "confidence", "--asc"}))

	filter := leadFilterFromFlags(f)
	assert.Equal(t, store.LeadFilter{
		Status:        model.LeadStatusQualified,
		ProductCode:   "fo",
		MinConfidence: 0.7,
		SortBy:        store.SortByConfidence,
		Ascending:     true,
	}, filter)

	f = pflag.NewFlagSet("test", pflag.ContinueOnError)
	addLeadFilterFlags(f)
	require.NoError(t, f.Parse([]string{"--company-id", "co-1", "--sort", "priority"}))
	filter = leadFilterFromFlags(f)
	assert.Equal(t, "co-1", filter.CompanyID)
	assert.Equal(t, store.SortByPriority, filter.SortBy)
	assert.False(t, filter.Ascending)
}

func TestFormatLeadsList(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	page := &store.LeadPage{
		Leads: []model.Lead{
			{
				ID:          "abc12345-6789-0000-0000-000000000000",
				Company:     model.Company{Name: "A Very Long Company Name That Keeps Going Ltd"},
				ProductCode: "FO",
				Score:       model.ScoreResult{FinalConfidence: 0.6},
				Priority:    model.Priority{Score: 0.83},
				Status:      model.LeadStatusReviewRequired,
				CreatedAt:   now,
			},
		},
		Total: 7,
	}

	var buf bytes.Buffer
	formatLeadsList(&buf, page)

	output := buf.String()
	assert.Contains(t, output, "COMPANY")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "A Very Long Company Name Th...")
	assert.Contains(t, output, "0.60")
	assert.Contains(t, output, "PRIORITY")
	assert.Contains(t, output, "0.83")
	assert.Contains(t, output, "REVIEW_REQUIRED")
	assert.Contains(t, output, "2026-06-15 10:30")
	assert.Contains(t, output, "Showing 1 of 7 leads")
}

func TestFormatLeadStats(t *testing.T) {
	var buf bytes.Buffer
	formatLeadStats(&buf, &model.LeadStats{
		Total:             3,
		ByStatus:          map[model.LeadStatus]int{model.LeadStatusQualified: 2, model.LeadStatusDiscarded: 1},
		AverageConfidence: 0.6333,
	})

	output := buf.String()
	assert.Contains(t, output, "Total leads:")
	assert.Contains(t, output, "QUALIFIED:")
	assert.Contains(t, output, "0.63")

	buf.Reset()
	formatLeadStats(&buf, &model.LeadStats{})
	assert.NotContains(t, buf.String(), "Avg confidence")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
