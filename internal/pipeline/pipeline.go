// Package pipeline turns incoming signals into scored, classified and
// persisted leads.
package pipeline

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/lead-intel/internal/catalog"
	"github.com/sells-group/lead-intel/internal/classifier"
	"github.com/sells-group/lead-intel/internal/company"
	"github.com/sells-group/lead-intel/internal/model"
	"github.com/sells-group/lead-intel/internal/resilience"
	"github.com/sells-group/lead-intel/internal/scorer"
	"github.com/sells-group/lead-intel/internal/store"
)

// ErrNoProduct is returned when a signal names no product and none can be
// inferred from its text.
var ErrNoProduct = eris.New("pipeline: no product matched")

// Options tunes a Pipeline. Zero values select defaults.
type Options struct {
	Thresholds    classifier.Thresholds
	Inference     catalog.InferOptions
	Priority      scorer.PriorityConfig
	MaxConcurrent int
	RatePerSec    float64 // 0 = unlimited
	Burst         int
	Retry         resilience.RetryConfig
}

// Pipeline scores inputs against the current catalog. A nil store turns
// persistence and company resolution off.
type Pipeline struct {
	rules         *catalog.Holder
	scorer        *scorer.Scorer
	priority      *scorer.PriorityScorer
	classifier    *classifier.Classifier
	store         store.Store
	resolver      *company.Resolver
	inference     catalog.InferOptions
	maxConcurrent int
	limiter       *rate.Limiter
	retry         resilience.RetryConfig
	resolveRetry  resilience.RetryConfig
}

// New creates a Pipeline.
func New(rules *catalog.Holder, st store.Store, opts Options) (*Pipeline, error) {
	if rules == nil || rules.Current() == nil {
		return nil, eris.New("pipeline: catalog is required")
	}

	thresholds := opts.Thresholds
	if thresholds == (classifier.Thresholds{}) {
		thresholds = classifier.DefaultThresholds()
	}
	cl, err := classifier.New(thresholds)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: classifier")
	}

	priority, err := scorer.NewPriorityScorer(opts.Priority)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: priority")
	}

	inference := opts.Inference
	if inference.MinConfidence <= 0 {
		inference.MinConfidence = catalog.DefaultInferMinConfidence
	}

	maxConcurrent := opts.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	var limiter *rate.Limiter
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	retry := opts.Retry
	if retry.MaxAttempts <= 0 {
		retry = resilience.DefaultRetryConfig()
	}
	resolveRetry := retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("create leads")
		resolveRetry.OnRetry = resilience.RetryLogger("resolve company")
	}

	var resolver *company.Resolver
	if st != nil {
		resolver = company.NewResolver(st)
	}

	return &Pipeline{
		rules:         rules,
		scorer:        scorer.New(rules),
		priority:      priority,
		classifier:    cl,
		store:         st,
		resolver:      resolver,
		inference:     inference,
		maxConcurrent: maxConcurrent,
		limiter:       limiter,
		retry:         retry,
		resolveRetry:  resolveRetry,
	}, nil
}

// Catalog returns the catalog currently in effect.
func (p *Pipeline) Catalog() *catalog.Catalog {
	return p.rules.Current()
}

// Rules returns the holder the pipeline reads its catalog from. Reloading
// through it takes effect on the next input.
func (p *Pipeline) Rules() *catalog.Holder {
	return p.rules
}

// Evaluate scores, prioritises and classifies in without persisting it. One
// lead is returned per product: the explicit product code, or each inferred
// one. All leads share the signal's priority.
func (p *Pipeline) Evaluate(in model.LeadInput) ([]model.Lead, error) {
	if err := in.Signal.Validate(); err != nil {
		return nil, eris.Wrap(err, "pipeline: evaluate")
	}

	codes := []string{in.ProductCode}
	if in.ProductCode == "" {
		inferred := p.rules.Current().Infer(in.Signal.Text, p.inference)
		if len(inferred) == 0 {
			return nil, ErrNoProduct
		}
		codes = codes[:0]
		for _, inf := range inferred {
			codes = append(codes, inf.Code)
		}
	}

	priority := p.priority.Score(in.Signal, in.Company.Location)
	leads := make([]model.Lead, 0, len(codes))
	for _, code := range codes {
		res := p.scorer.Score(in.Signal, code)
		leads = append(leads, model.Lead{
			Company:     in.Company,
			Source:      in.Source,
			SourceURL:   in.SourceURL,
			ProductCode: code,
			Signal:      in.Signal,
			Score:       res,
			Priority:    priority,
			Status:      p.classifier.Status(res),
		})
	}
	return leads, nil
}

// Run evaluates in and persists the resulting leads.
func (p *Pipeline) Run(ctx context.Context, in model.LeadInput) ([]model.Lead, error) {
	log := zap.L().With(zap.String("company", in.Company.Name), zap.String("product", in.ProductCode))

	leads, err := p.Evaluate(in)
	if err != nil {
		return nil, err
	}

	for _, l := range leads {
		log.Debug("pipeline: scored",
			zap.String("product_code", l.ProductCode),
			zap.Float64("confidence", l.Score.FinalConfidence),
			zap.Float64("priority", l.Priority.Score),
			zap.String("status", string(l.Status)),
		)
	}

	if p.store == nil {
		return leads, nil
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "pipeline: rate limit")
		}
	}
	if err := p.resolveCompany(ctx, in.Company, leads); err != nil {
		return nil, err
	}

	// CreateLeads upserts by ID, so a retried write cannot duplicate leads.
	_, err = resilience.DoVal(ctx, p.retry, func(ctx context.Context) (int64, error) {
		return p.store.CreateLeads(ctx, leads)
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: persist leads")
	}
	return leads, nil
}

// resolveCompany links leads to the deduplicated company record. Inputs
// without a company name stay unlinked.
func (p *Pipeline) resolveCompany(ctx context.Context, c model.Company, leads []model.Lead) error {
	if p.resolver == nil || strings.TrimSpace(c.Name) == "" {
		return nil
	}
	// Creation is keyed on the normalised name, so a retry cannot duplicate.
	rec, err := resilience.DoVal(ctx, p.resolveRetry, func(ctx context.Context) (*model.CompanyRecord, error) {
		rec, _, err := p.resolver.FindOrCreate(ctx, c)
		return rec, err
	})
	if err != nil {
		return eris.Wrap(err, "pipeline: resolve company")
	}
	for i := range leads {
		leads[i].CompanyID = rec.ID
	}
	return nil
}
