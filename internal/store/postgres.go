package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-intel/internal/db"
	"github.com/sells-group/lead-intel/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	pgInsertLead = `INSERT INTO leads (id, company_name, industry, location, source, source_url,
	product_code, signal, score, confidence, status, assigned_to,
	company_id, priority, priority_components, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	ON CONFLICT (id) DO UPDATE SET
		company_name = EXCLUDED.company_name, industry = EXCLUDED.industry,
		location = EXCLUDED.location, source = EXCLUDED.source, source_url = EXCLUDED.source_url,
		product_code = EXCLUDED.product_code, signal = EXCLUDED.signal, score = EXCLUDED.score,
		confidence = EXCLUDED.confidence, status = EXCLUDED.status,
		assigned_to = EXCLUDED.assigned_to, company_id = EXCLUDED.company_id,
		priority = EXCLUDED.priority, priority_components = EXCLUDED.priority_components,
		updated_at = EXCLUDED.updated_at`
	pgGetLead      = leadSelect + ` WHERE id = $1`
	pgLockStatus   = `SELECT status FROM leads WHERE id = $1 FOR UPDATE`
	pgUpdateStatus = `UPDATE leads SET status = $1, assigned_to = COALESCE(NULLIF($2, ''), assigned_to), updated_at = $3 WHERE id = $4`
	pgInsertAction = `INSERT INTO lead_actions (id, lead_id, type, from_status, to_status, actor, notes, next_follow_up, estimated_deal_value, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	pgListActions = `SELECT id, lead_id, type, from_status, to_status, actor, notes, next_follow_up, estimated_deal_value, created_at
	FROM lead_actions WHERE lead_id = $1 ORDER BY created_at, id`
	pgInsertNote = `INSERT INTO lead_notes (id, lead_id, author, body, created_at)
	SELECT $1::text, $2::text, $3::text, $4::text, $5::timestamptz WHERE EXISTS (SELECT 1 FROM leads WHERE id = $2)`
	pgListNotes = `SELECT id, lead_id, author, body, created_at FROM lead_notes WHERE lead_id = $1 ORDER BY created_at, id`

	pgGetCompany    = companySelect + ` WHERE normalized_name = $1`
	pgSearchCompany = companySelect + ` WHERE normalized_name LIKE '%' || $1::text || '%' OR $1::text LIKE '%' || normalized_name || '%'
	ORDER BY created_at, id LIMIT $2`
	pgInsertCompany = `INSERT INTO companies (id, name, normalized_name, industry, location, created_at)
	VALUES ($1, $2, $3, $4, $5, $6) ON CONFLICT (normalized_name) DO NOTHING`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_lead":    pgInsertLead,
	"get_lead":       pgGetLead,
	"lock_status":    pgLockStatus,
	"update_status":  pgUpdateStatus,
	"insert_action":  pgInsertAction,
	"list_actions":   pgListActions,
	"insert_note":    pgInsertNote,
	"list_notes":     pgListNotes,
	"get_company":    pgGetCompany,
	"search_company": pgSearchCompany,
	"insert_company": pgInsertCompany,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	company_name TEXT NOT NULL,
	industry     TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	product_code TEXT NOT NULL,
	signal       JSONB NOT NULL,
	score        JSONB NOT NULL,
	confidence   DOUBLE PRECISION NOT NULL,
	status       TEXT NOT NULL,
	assigned_to  TEXT NOT NULL DEFAULT '',
	company_id   TEXT NOT NULL DEFAULT '',
	priority     DOUBLE PRECISION NOT NULL DEFAULT 0,
	priority_components JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL UNIQUE,
	industry        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lead_actions (
	id                   TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id              TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	type                 TEXT NOT NULL,
	from_status          TEXT NOT NULL,
	to_status            TEXT NOT NULL,
	actor                TEXT NOT NULL DEFAULT '',
	notes                TEXT NOT NULL DEFAULT '',
	next_follow_up       TIMESTAMPTZ,
	estimated_deal_value DOUBLE PRECISION,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS lead_notes (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	lead_id    TEXT NOT NULL REFERENCES leads(id) ON DELETE CASCADE,
	author     TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_product_code ON leads(product_code);
CREATE INDEX IF NOT EXISTS idx_leads_confidence ON leads(confidence DESC);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_leads_priority ON leads(priority DESC);
CREATE INDEX IF NOT EXISTS idx_leads_company_id ON leads(company_id);
CREATE INDEX IF NOT EXISTS idx_lead_actions_lead_id ON lead_actions(lead_id);
CREATE INDEX IF NOT EXISTS idx_lead_notes_lead_id ON lead_notes(lead_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if err := prepareLead(lead, time.Now().UTC()); err != nil {
		return err
	}
	args, err := leadArgs(lead)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, pgInsertLead, args...)
	return eris.Wrapf(err, "postgres: insert lead %s", lead.ID)
}

// CreateLeads bulk-loads leads through COPY. Existing IDs are updated.
func (s *PostgresStore) CreateLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	now := time.Now().UTC()
	rows := make([][]any, 0, len(leads))
	for i := range leads {
		if err := prepareLead(&leads[i], now); err != nil {
			return 0, err
		}
		args, err := leadArgs(&leads[i])
		if err != nil {
			return 0, err
		}
		rows = append(rows, args)
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "leads",
		Columns:      leadColumns,
		ConflictKeys: []string{"id"},
		UpdateCols:   leadUpdateColumns(),
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: create leads")
	}
	return n, nil
}

// leadUpdateColumns is every column except the key and creation time.
func leadUpdateColumns() []string {
	cols := make([]string, 0, len(leadColumns))
	for _, c := range leadColumns {
		if c != "id" && c != "created_at" {
			cols = append(cols, c)
		}
	}
	return cols
}

func (s *PostgresStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanLead(s.pool.QueryRow(ctx, pgGetLead, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", id)
	}

	if l.Actions, err = s.listActions(ctx, id); err != nil {
		return nil, err
	}
	if l.Notes, err = s.listNotes(ctx, id); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *PostgresStore) ListLeads(ctx context.Context, filter LeadFilter) (*LeadPage, error) {
	f, err := filter.normalize()
	if err != nil {
		return nil, err
	}
	q := buildLeadQuery(f, func(n int) string { return fmt.Sprintf("$%d", n) }, "ILIKE")

	page := &LeadPage{Leads: []model.Lead{}}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`+q.where, q.args...).Scan(&page.Total); err != nil {
		return nil, eris.Wrap(err, "postgres: count leads")
	}

	n := len(q.args)
	query := leadSelect + q.where + q.orderBy + fmt.Sprintf(` LIMIT $%d OFFSET $%d`, n+1, n+2)
	rows, err := s.pool.Query(ctx, query, append(q.args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		page.Leads = append(page.Leads, *l)
	}
	return page, eris.Wrap(rows.Err(), "postgres: list leads iterate")
}

func (s *PostgresStore) GetCompanyByKey(ctx context.Context, key string) (*model.CompanyRecord, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx, pgGetCompany, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get company %q", key)
	}
	return c, nil
}

func (s *PostgresStore) SearchCompanies(ctx context.Context, key string, limit int) ([]model.CompanyRecord, error) {
	rows, err := s.pool.Query(ctx, pgSearchCompany, key, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: search companies")
	}
	defer rows.Close()

	var out []model.CompanyRecord
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: search companies iterate")
}

// CreateCompany inserts rec unless its normalised name is taken, then
// reloads rec from the stored row.
func (s *PostgresStore) CreateCompany(ctx context.Context, rec *model.CompanyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, pgInsertCompany,
		rec.ID, rec.Name, rec.NormalizedName, rec.Industry, rec.Location, rec.CreatedAt)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert company %q", rec.NormalizedName)
	}
	stored, err := s.GetCompanyByKey(ctx, rec.NormalizedName)
	if err != nil {
		return err
	}
	if stored == nil {
		return eris.Errorf("postgres: company %q vanished after insert", rec.NormalizedName)
	}
	*rec = *stored
	return nil
}

func (s *PostgresStore) ApplyAction(ctx context.Context, leadID string, req model.ActionRequest) (*model.Lead, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	var current model.LeadStatus
	err = tx.QueryRow(ctx, pgLockStatus, leadID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: lock lead %s", leadID)
	}

	next, err := model.Transition(current, req.Type)
	if err != nil {
		return nil, eris.Wrapf(err, "store: lead %s", leadID)
	}

	now := time.Now().UTC()
	if _, err := tx.Exec(ctx, pgUpdateStatus, string(next), req.Actor, now, leadID); err != nil {
		return nil, eris.Wrapf(err, "postgres: update lead status %s", leadID)
	}
	_, err = tx.Exec(ctx, pgInsertAction,
		uuid.New().String(), leadID, string(req.Type), string(current), string(next),
		req.Actor, req.Notes, req.NextFollowUp, req.EstimatedDealValue, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert action for lead %s", leadID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, eris.Wrap(err, "postgres: commit action")
	}
	return s.GetLead(ctx, leadID)
}

func (s *PostgresStore) AddNote(ctx context.Context, leadID, author, body string) (*model.Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, eris.New("store: note body is required")
	}

	n := model.Note{
		ID:        uuid.New().String(),
		LeadID:    leadID,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	tag, err := s.pool.Exec(ctx, pgInsertNote, n.ID, n.LeadID, n.Author, n.Body, n.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: insert note for lead %s", leadID)
	}
	if tag.RowsAffected() == 0 {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	return &n, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*model.LeadStats, error) {
	stats := &model.LeadStats{ByStatus: make(map[model.LeadStatus]int)}

	err := s.pool.QueryRow(ctx, `SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM leads`).
		Scan(&stats.Total, &stats.AverageConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: lead totals")
	}

	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: leads by status")
	}
	defer rows.Close()

	for rows.Next() {
		var status model.LeadStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan status count")
		}
		stats.ByStatus[status] = n
	}
	return stats, eris.Wrap(rows.Err(), "postgres: leads by status iterate")
}

func (s *PostgresStore) listActions(ctx context.Context, leadID string) ([]model.Action, error) {
	rows, err := s.pool.Query(ctx, pgListActions, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list actions for lead %s", leadID)
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		var a model.Action
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Type, &a.FromStatus, &a.ToStatus, &a.Actor, &a.Notes,
			&a.NextFollowUp, &a.EstimatedDealValue, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan action")
		}
		actions = append(actions, a)
	}
	return actions, eris.Wrap(rows.Err(), "postgres: list actions iterate")
}

func (s *PostgresStore) listNotes(ctx context.Context, leadID string) ([]model.Note, error) {
	rows, err := s.pool.Query(ctx, pgListNotes, leadID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list notes for lead %s", leadID)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "postgres: list notes iterate")
}
