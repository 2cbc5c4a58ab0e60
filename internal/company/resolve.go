package company

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-intel/internal/model"
)

// searchLimit caps the candidates considered by the containment pass.
const searchLimit = 50

// Store is the persistence the resolver needs.
type Store interface {
	// GetCompanyByKey returns the company with the exact normalised name,
	// or nil when there is none.
	GetCompanyByKey(ctx context.Context, key string) (*model.CompanyRecord, error)
	// SearchCompanies returns companies whose key contains key or is
	// contained in it, oldest first.
	SearchCompanies(ctx context.Context, key string, limit int) ([]model.CompanyRecord, error)
	// CreateCompany inserts rec. When a company with the same key already
	// exists rec is overwritten with the stored record instead.
	CreateCompany(ctx context.Context, rec *model.CompanyRecord) error
}

// Resolver handles company deduplication.
type Resolver struct {
	store Store
}

// NewResolver creates a company resolver.
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// FindOrCreate looks up an existing company or creates a new one.
// Uses a three-pass cascade:
//  1. Exact normalised name match
//  2. Containment match on normalised names (see Similar)
//  3. Create
//
// Returns the company and whether it was newly created.
func (r *Resolver) FindOrCreate(ctx context.Context, c model.Company) (*model.CompanyRecord, bool, error) {
	if strings.TrimSpace(c.Name) == "" {
		return nil, false, eris.New("company: name is required for resolve")
	}
	key := Key(c.Name)

	// Pass 1: exact key.
	existing, err := r.store.GetCompanyByKey(ctx, key)
	if err != nil {
		return nil, false, eris.Wrap(err, "company: resolve by name")
	}
	if existing != nil {
		zap.L().Debug("resolve: matched by name",
			zap.String("key", key),
			zap.String("company_id", existing.ID),
		)
		return existing, false, nil
	}

	// Pass 2: one name contains the other.
	candidates, err := r.store.SearchCompanies(ctx, key, searchLimit)
	if err != nil {
		return nil, false, eris.Wrap(err, "company: search candidates")
	}
	for i := range candidates {
		if Similar(key, candidates[i].NormalizedName) {
			zap.L().Debug("resolve: matched by containment",
				zap.String("key", key),
				zap.String("matched", candidates[i].NormalizedName),
				zap.String("company_id", candidates[i].ID),
			)
			return &candidates[i], false, nil
		}
	}

	// Pass 3: no match found, create new.
	id := uuid.New().String()
	record := &model.CompanyRecord{
		ID:             id,
		Name:           strings.TrimSpace(c.Name),
		NormalizedName: key,
		Industry:       c.Industry,
		Location:       c.Location,
		CreatedAt:      time.Now().UTC(),
	}
	if err := r.store.CreateCompany(ctx, record); err != nil {
		return nil, false, eris.Wrap(err, "company: create")
	}

	// A concurrent resolve may have created the same key first.
	created := record.ID == id
	if created {
		zap.L().Info("resolve: created new company",
			zap.String("name", record.Name),
			zap.String("key", key),
			zap.String("company_id", record.ID),
		)
	}
	return record, created, nil
}
