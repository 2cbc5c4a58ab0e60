package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-intel/internal/model"
)

func TestLeadFilter_Normalize(t *testing.T) {
	f, err := LeadFilter{ProductCode: " fo ", Limit: 5000, Offset: -3}.normalize()
	require.NoError(t, err)
	assert.Equal(t, "FO", f.ProductCode)
	assert.Equal(t, SortByCreatedAt, f.SortBy)
	assert.Equal(t, maxListLimit, f.Limit)
	assert.Zero(t, f.Offset)

	f, err = LeadFilter{}.normalize()
	require.NoError(t, err)
	assert.Equal(t, defaultListLimit, f.Limit)

	_, err = LeadFilter{Status: "OPEN"}.normalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid status filter")

	_, err = LeadFilter{SortBy: "revenue"}.normalize()
	require.Error(t, err)
}

func TestBuildLeadQuery(t *testing.T) {
	pg := func(n int) string { return fmt.Sprintf("$%d", n) }

	q := buildLeadQuery(LeadFilter{SortBy: SortByCreatedAt}, pg, "ILIKE")
	assert.Empty(t, q.where)
	assert.Empty(t, q.args)
	assert.Equal(t, " ORDER BY created_at DESC, id DESC", q.orderBy)

	q = buildLeadQuery(LeadFilter{
		Status:        model.LeadStatusQualified,
		ProductCode:   "FO",
		MinConfidence: 0.75,
		Location:      "Pune",
		Search:        "steel",
		SortBy:        SortByCompany,
		Ascending:     true,
	}, pg, "ILIKE")
	assert.Equal(t,
		" WHERE status = $1 AND product_code = $2 AND confidence >= $3 AND location ILIKE $4 AND (company_name ILIKE $5 OR product_code ILIKE $5)",
		q.where)
	assert.Equal(t, []any{"QUALIFIED", "FO", 0.75, "%Pune%", "%steel%"}, q.args)
	assert.Equal(t, " ORDER BY company_name ASC, id ASC", q.orderBy)
}

func TestBuildLeadQuery_CompanyAndPriority(t *testing.T) {
	q := buildLeadQuery(LeadFilter{CompanyID: "co-1", SortBy: SortByPriority}, func(n int) string { return fmt.Sprintf("?%d", n) }, "LIKE")
	assert.Equal(t, " WHERE company_id = ?1", q.where)
	assert.Equal(t, []any{"co-1"}, q.args)
	assert.Equal(t, " ORDER BY priority DESC, id DESC", q.orderBy)
}

func TestPrepareLead(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	l := model.Lead{ProductCode: "HSD", Status: model.LeadStatusQualified}
	require.NoError(t, prepareLead(&l, now))
	assert.Len(t, l.ID, 36)
	assert.Equal(t, now, l.CreatedAt)
	assert.Equal(t, now, l.UpdatedAt)

	kept := model.Lead{ID: "fixed", ProductCode: "HSD", Status: model.LeadStatusQualified, CreatedAt: now.Add(-time.Hour)}
	require.NoError(t, prepareLead(&kept, now))
	assert.Equal(t, "fixed", kept.ID)
	assert.Equal(t, now.Add(-time.Hour), kept.UpdatedAt)
}
