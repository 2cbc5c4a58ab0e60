// Package store persists scored leads with their actions and notes.
package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/company"
	"github.com/sells-group/lead-intel/internal/model"
)

// ErrNotFound is returned when a lead does not exist.
var ErrNotFound = eris.New("store: not found")

// Sort keys accepted by LeadFilter.SortBy.
const (
	SortByConfidence = "confidence"
	SortByPriority   = "priority"
	SortByCreatedAt  = "created_at"
	SortByCompany    = "company"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status        model.LeadStatus `json:"status,omitempty"`
	ProductCode   string           `json:"product_code,omitempty"`
	CompanyID     string           `json:"company_id,omitempty"`
	MinConfidence float64          `json:"min_confidence,omitempty"`
	Location      string           `json:"location,omitempty"`
	Search        string           `json:"search,omitempty"`
	SortBy        string           `json:"sort_by,omitempty"`
	Ascending     bool             `json:"ascending,omitempty"`
	Limit         int              `json:"limit,omitempty"`
	Offset        int              `json:"offset,omitempty"`
}

// LeadPage is one page of a lead listing plus the unpaged match count.
type LeadPage struct {
	Leads []model.Lead `json:"leads"`
	Total int          `json:"total"`
}

// Store defines the persistence interface for leads.
type Store interface {
	// Leads
	CreateLead(ctx context.Context, lead *model.Lead) error
	CreateLeads(ctx context.Context, leads []model.Lead) (int64, error)
	GetLead(ctx context.Context, id string) (*model.Lead, error)
	ListLeads(ctx context.Context, filter LeadFilter) (*LeadPage, error)

	// Companies
	GetCompanyByKey(ctx context.Context, key string) (*model.CompanyRecord, error)
	SearchCompanies(ctx context.Context, key string, limit int) ([]model.CompanyRecord, error)
	CreateCompany(ctx context.Context, rec *model.CompanyRecord) error

	// Sales officer activity
	ApplyAction(ctx context.Context, leadID string, req model.ActionRequest) (*model.Lead, error)
	AddNote(ctx context.Context, leadID, author, body string) (*model.Note, error)

	// Reporting
	Stats(ctx context.Context) (*model.LeadStats, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store         = (*SQLiteStore)(nil)
	_ Store         = (*PostgresStore)(nil)
	_ company.Store = Store(nil)
)

// prepareLead fills the ID and timestamps of a new lead and checks the
// fields every backend requires.
func prepareLead(l *model.Lead, now time.Time) error {
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = now
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	if l.ProductCode == "" {
		return eris.Errorf("store: lead %s: product code is required", l.ID)
	}
	if !l.Status.IsValid() {
		return eris.Errorf("store: lead %s: invalid status %q", l.ID, l.Status)
	}
	return nil
}

// normalize applies list defaults and rejects unknown sort keys.
func (f LeadFilter) normalize() (LeadFilter, error) {
	if f.Status != "" && !f.Status.IsValid() {
		return f, eris.Errorf("store: invalid status filter %q", f.Status)
	}
	switch f.SortBy {
	case "":
		f.SortBy = SortByCreatedAt
	case SortByConfidence, SortByPriority, SortByCreatedAt, SortByCompany:
	default:
		return f, eris.Errorf("store: invalid sort key %q", f.SortBy)
	}
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	if f.Limit > maxListLimit {
		f.Limit = maxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.ProductCode = strings.ToUpper(strings.TrimSpace(f.ProductCode))
	return f, nil
}

// leadQuery renders the WHERE and ORDER BY clauses for a filter. bind
// returns the placeholder for the n-th argument (1-based); like is the
// case-insensitive match operator of the dialect.
type leadQuery struct {
	where   string
	orderBy string
	args    []any
}

func buildLeadQuery(f LeadFilter, bind func(n int) string, like string) leadQuery {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, bind(len(args))))
	}

	if f.Status != "" {
		add("status = %s", string(f.Status))
	}
	if f.ProductCode != "" {
		add("product_code = %s", f.ProductCode)
	}
	if f.CompanyID != "" {
		add("company_id = %s", f.CompanyID)
	}
	if f.MinConfidence > 0 {
		add("confidence >= %s", f.MinConfidence)
	}
	if f.Location != "" {
		add("location "+like+" %s", "%"+f.Location+"%")
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		p := bind(len(args))
		conds = append(conds, fmt.Sprintf("(company_name %s %s OR product_code %s %s)", like, p, like, p))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	col := map[string]string{
		SortByConfidence: "confidence",
		SortByPriority:   "priority",
		SortByCreatedAt:  "created_at",
		SortByCompany:    "company_name",
	}[f.SortBy]
	dir := "DESC"
	if f.Ascending {
		dir = "ASC"
	}

	return leadQuery{
		where:   where,
		orderBy: fmt.Sprintf(" ORDER BY %s %s, id %s", col, dir, dir),
		args:    args,
	}
}

// leadColumns is the column order used by inserts and selects.
var leadColumns = []string{
	"id", "company_name", "industry", "location", "source", "source_url",
	"product_code", "signal", "score", "confidence", "status", "assigned_to",
	"company_id", "priority", "priority_components",
	"created_at", "updated_at",
}

const leadSelect = `SELECT id, company_name, industry, location, source, source_url,
	product_code, signal, score, confidence, status, assigned_to,
	company_id, priority, priority_components, created_at, updated_at FROM leads`

// companySelect is the column order scanned by scanCompany.
const companySelect = `SELECT id, name, normalized_name, industry, location, created_at FROM companies`

// scanCompany reads a row selected with companySelect. Scan errors are
// returned unwrapped so callers can test for no-rows.
func scanCompany(row scannable) (*model.CompanyRecord, error) {
	var c model.CompanyRecord
	if err := row.Scan(&c.ID, &c.Name, &c.NormalizedName, &c.Industry, &c.Location, &c.CreatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListAll pages through every lead matching filter. Limit and Offset on
// filter are ignored.
func ListAll(ctx context.Context, s Store, filter LeadFilter) ([]model.Lead, error) {
	filter.Limit = maxListLimit
	filter.Offset = 0

	var out []model.Lead
	for {
		page, err := s.ListLeads(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Leads...)
		if len(page.Leads) < filter.Limit || len(out) >= page.Total {
			return out, nil
		}
		filter.Offset += len(page.Leads)
	}
}
