package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/lead-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas below apply per connection; one connection keeps them in force
	// and serialises batch writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id           TEXT PRIMARY KEY,
	company_name TEXT NOT NULL,
	industry     TEXT NOT NULL DEFAULT '',
	location     TEXT NOT NULL DEFAULT '',
	source       TEXT NOT NULL DEFAULT '',
	source_url   TEXT NOT NULL DEFAULT '',
	product_code TEXT NOT NULL,
	signal       TEXT NOT NULL,
	score        TEXT NOT NULL,
	confidence   REAL NOT NULL,
	status       TEXT NOT NULL,
	assigned_to  TEXT NOT NULL DEFAULT '',
	company_id   TEXT NOT NULL DEFAULT '',
	priority     REAL NOT NULL DEFAULT 0,
	priority_components TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS companies (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	normalized_name TEXT NOT NULL UNIQUE,
	industry        TEXT NOT NULL DEFAULT '',
	location        TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lead_actions (
	id                   TEXT PRIMARY KEY,
	lead_id              TEXT NOT NULL REFERENCES leads(id),
	type                 TEXT NOT NULL,
	from_status          TEXT NOT NULL,
	to_status            TEXT NOT NULL,
	actor                TEXT NOT NULL DEFAULT '',
	notes                TEXT NOT NULL DEFAULT '',
	next_follow_up       DATETIME,
	estimated_deal_value REAL,
	created_at           DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lead_notes (
	id         TEXT PRIMARY KEY,
	lead_id    TEXT NOT NULL REFERENCES leads(id),
	author     TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_leads_product_code ON leads(product_code);
CREATE INDEX IF NOT EXISTS idx_leads_confidence ON leads(confidence);
CREATE INDEX IF NOT EXISTS idx_leads_created_at ON leads(created_at);
CREATE INDEX IF NOT EXISTS idx_leads_priority ON leads(priority);
CREATE INDEX IF NOT EXISTS idx_leads_company_id ON leads(company_id);
CREATE INDEX IF NOT EXISTS idx_lead_actions_lead_id ON lead_actions(lead_id);
CREATE INDEX IF NOT EXISTS idx_lead_notes_lead_id ON lead_notes(lead_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteInsertLead = `INSERT INTO leads (id, company_name, industry, location, source, source_url,
	product_code, signal, score, confidence, status, assigned_to,
	company_id, priority, priority_components, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		company_name = excluded.company_name, industry = excluded.industry,
		location = excluded.location, source = excluded.source, source_url = excluded.source_url,
		product_code = excluded.product_code, signal = excluded.signal, score = excluded.score,
		confidence = excluded.confidence, status = excluded.status,
		assigned_to = excluded.assigned_to, company_id = excluded.company_id,
		priority = excluded.priority, priority_components = excluded.priority_components,
		updated_at = excluded.updated_at`

func (s *SQLiteStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	if err := prepareLead(lead, time.Now().UTC()); err != nil {
		return err
	}
	args, err := leadArgs(lead)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, sqliteInsertLead, args...)
	return eris.Wrapf(err, "sqlite: insert lead %s", lead.ID)
}

// CreateLeads inserts leads in one transaction. Existing IDs are updated.
func (s *SQLiteStore) CreateLeads(ctx context.Context, leads []model.Lead) (int64, error) {
	if len(leads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, sqliteInsertLead)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare insert lead")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range leads {
		if err := prepareLead(&leads[i], now); err != nil {
			return 0, err
		}
		args, err := leadArgs(&leads[i])
		if err != nil {
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert lead %s", leads[i].ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit leads")
	}
	return int64(len(leads)), nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, id string) (*model.Lead, error) {
	l, err := scanLead(s.db.QueryRowContext(ctx, leadSelect+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", id)
	}

	if l.Actions, err = s.listActions(ctx, id); err != nil {
		return nil, err
	}
	if l.Notes, err = s.listNotes(ctx, id); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter LeadFilter) (*LeadPage, error) {
	f, err := filter.normalize()
	if err != nil {
		return nil, err
	}
	q := buildLeadQuery(f, func(n int) string { return fmt.Sprintf("?%d", n) }, "LIKE")

	page := &LeadPage{Leads: []model.Lead{}}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`+q.where, q.args...).Scan(&page.Total); err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads")
	}

	n := len(q.args)
	query := leadSelect + q.where + q.orderBy + fmt.Sprintf(` LIMIT ?%d OFFSET ?%d`, n+1, n+2)
	rows, err := s.db.QueryContext(ctx, query, append(q.args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		page.Leads = append(page.Leads, *l)
	}
	return page, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) GetCompanyByKey(ctx context.Context, key string) (*model.CompanyRecord, error) {
	c, err := scanCompany(s.db.QueryRowContext(ctx, companySelect+` WHERE normalized_name = ?`, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %q", key)
	}
	return c, nil
}

func (s *SQLiteStore) SearchCompanies(ctx context.Context, key string, limit int) ([]model.CompanyRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		companySelect+` WHERE normalized_name LIKE '%' || ?1 || '%' OR ?1 LIKE '%' || normalized_name || '%'
		 ORDER BY created_at, rowid LIMIT ?2`,
		key, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: search companies")
	}
	defer rows.Close()

	var out []model.CompanyRecord
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: search companies iterate")
}

// CreateCompany inserts rec unless its normalised name is taken, then
// reloads rec from the stored row.
func (s *SQLiteStore) CreateCompany(ctx context.Context, rec *model.CompanyRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, normalized_name, industry, location, created_at)
		 VALUES (?, ?, ?, ?, ?, ?) ON CONFLICT(normalized_name) DO NOTHING`,
		rec.ID, rec.Name, rec.NormalizedName, rec.Industry, rec.Location, rec.CreatedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert company %q", rec.NormalizedName)
	}
	stored, err := s.GetCompanyByKey(ctx, rec.NormalizedName)
	if err != nil {
		return err
	}
	if stored == nil {
		return eris.Errorf("sqlite: company %q vanished after insert", rec.NormalizedName)
	}
	*rec = *stored
	return nil
}

func (s *SQLiteStore) ApplyAction(ctx context.Context, leadID string, req model.ActionRequest) (*model.Lead, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var current model.LeadStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM leads WHERE id = ?`, leadID).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read lead status %s", leadID)
	}

	next, err := model.Transition(current, req.Type)
	if err != nil {
		return nil, eris.Wrapf(err, "store: lead %s", leadID)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE leads SET status = ?, assigned_to = CASE WHEN ? <> '' THEN ? ELSE assigned_to END, updated_at = ? WHERE id = ?`,
		string(next), req.Actor, req.Actor, now, leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: update lead status %s", leadID)
	}
	if err := checkRowsAffected(res, "lead", leadID); err != nil {
		return nil, err
	}

	var followUp sql.NullTime
	if req.NextFollowUp != nil {
		followUp = sql.NullTime{Time: req.NextFollowUp.UTC(), Valid: true}
	}
	var dealValue sql.NullFloat64
	if req.EstimatedDealValue != nil {
		dealValue = sql.NullFloat64{Float64: *req.EstimatedDealValue, Valid: true}
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lead_actions (id, lead_id, type, from_status, to_status, actor, notes, next_follow_up, estimated_deal_value, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), leadID, string(req.Type), string(current), string(next),
		req.Actor, req.Notes, followUp, dealValue, now,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert action for lead %s", leadID)
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit action")
	}
	return s.GetLead(ctx, leadID)
}

func (s *SQLiteStore) AddNote(ctx context.Context, leadID, author, body string) (*model.Note, error) {
	if strings.TrimSpace(body) == "" {
		return nil, eris.New("store: note body is required")
	}

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM leads WHERE id = ?`, leadID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "lead %s", leadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: check lead %s", leadID)
	}

	n := model.Note{
		ID:        uuid.New().String(),
		LeadID:    leadID,
		Author:    author,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lead_notes (id, lead_id, author, body, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.LeadID, n.Author, n.Body, n.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: insert note for lead %s", leadID)
	}
	return &n, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*model.LeadStats, error) {
	stats := &model.LeadStats{ByStatus: make(map[model.LeadStatus]int)}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(AVG(confidence), 0) FROM leads`).
		Scan(&stats.Total, &stats.AverageConfidence)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: lead totals")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM leads GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: leads by status")
	}
	defer rows.Close()

	for rows.Next() {
		var status model.LeadStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		stats.ByStatus[status] = n
	}
	return stats, eris.Wrap(rows.Err(), "sqlite: leads by status iterate")
}

func (s *SQLiteStore) listActions(ctx context.Context, leadID string) ([]model.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, type, from_status, to_status, actor, notes, next_follow_up, estimated_deal_value, created_at
		 FROM lead_actions WHERE lead_id = ? ORDER BY created_at, rowid`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list actions for lead %s", leadID)
	}
	defer rows.Close()

	var actions []model.Action
	for rows.Next() {
		var a model.Action
		var followUp sql.NullTime
		var dealValue sql.NullFloat64
		if err := rows.Scan(&a.ID, &a.LeadID, &a.Type, &a.FromStatus, &a.ToStatus, &a.Actor, &a.Notes,
			&followUp, &dealValue, &a.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan action")
		}
		if followUp.Valid {
			t := followUp.Time
			a.NextFollowUp = &t
		}
		if dealValue.Valid {
			v := dealValue.Float64
			a.EstimatedDealValue = &v
		}
		actions = append(actions, a)
	}
	return actions, eris.Wrap(rows.Err(), "sqlite: list actions iterate")
}

func (s *SQLiteStore) listNotes(ctx context.Context, leadID string) ([]model.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, lead_id, author, body, created_at FROM lead_notes WHERE lead_id = ? ORDER BY created_at, rowid`,
		leadID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list notes for lead %s", leadID)
	}
	defer rows.Close()

	var notes []model.Note
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.LeadID, &n.Author, &n.Body, &n.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan note")
		}
		notes = append(notes, n)
	}
	return notes, eris.Wrap(rows.Err(), "sqlite: list notes iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

// leadArgs flattens a lead into leadColumns order.
func leadArgs(l *model.Lead) ([]any, error) {
	signalJSON, err := json.Marshal(l.Signal)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal signal")
	}
	scoreJSON, err := json.Marshal(l.Score)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal score")
	}
	componentsJSON, err := json.Marshal(l.Priority.Components)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal priority")
	}
	return []any{
		l.ID, l.Company.Name, l.Company.Industry, l.Company.Location, l.Source, l.SourceURL,
		l.ProductCode, signalJSON, scoreJSON, l.Score.FinalConfidence, string(l.Status), l.AssignedTo,
		l.CompanyID, l.Priority.Score, componentsJSON,
		l.CreatedAt, l.UpdatedAt,
	}, nil
}

// scanLead reads a row selected with leadSelect. Scan errors are returned
// unwrapped so callers can test for no-rows.
func scanLead(row scannable) (*model.Lead, error) {
	var l model.Lead
	var signalJSON, scoreJSON, componentsJSON []byte

	err := row.Scan(&l.ID, &l.Company.Name, &l.Company.Industry, &l.Company.Location, &l.Source, &l.SourceURL,
		&l.ProductCode, &signalJSON, &scoreJSON, &l.Score.FinalConfidence, &l.Status, &l.AssignedTo,
		&l.CompanyID, &l.Priority.Score, &componentsJSON,
		&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(signalJSON, &l.Signal); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal signal")
	}
	if err := json.Unmarshal(scoreJSON, &l.Score); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal score")
	}
	if len(componentsJSON) > 0 {
		if err := json.Unmarshal(componentsJSON, &l.Priority.Components); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal priority")
		}
	}
	return &l, nil
}
