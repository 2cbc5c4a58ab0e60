package pipeline

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/lead-intel/internal/model"
)

// ItemError records why one batch input produced no leads.
type ItemError struct {
	Index   int    `json:"index"`
	Company string `json:"company,omitempty"`
	Err     error  `json:"-"`
	Message string `json:"error"`
}

// BatchResult summarises a RunBatch call. Leads keep input order.
type BatchResult struct {
	Leads     []model.Lead `json:"leads"`
	Succeeded int64        `json:"succeeded"`
	Skipped   int64        `json:"skipped"`
	Failed    int64        `json:"failed"`
	Errors    []ItemError  `json:"errors,omitempty"`
}

// RunBatch runs every input with bounded concurrency. Individual failures
// are counted and reported, not returned; only context cancellation aborts
// the batch.
func (p *Pipeline) RunBatch(ctx context.Context, inputs []model.LeadInput) (*BatchResult, error) {
	if len(inputs) == 0 {
		zap.L().Info("pipeline: empty batch")
		return &BatchResult{}, nil
	}

	zap.L().Info("pipeline: processing batch",
		zap.Int("inputs", len(inputs)),
		zap.Int("concurrency", p.maxConcurrent),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxConcurrent)

	var succeeded, skipped, failed atomic.Int64
	slots := make([][]model.Lead, len(inputs))
	errs := make([]error, len(inputs))

	for i, in := range inputs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			log := zap.L().With(zap.Int("index", i), zap.String("company", in.Company.Name))

			leads, err := p.Run(gctx, in)
			switch {
			case errors.Is(err, ErrNoProduct):
				skipped.Add(1)
				errs[i] = err
				log.Info("pipeline: no product inferred")
				return nil
			case err != nil:
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				errs[i] = err
				log.Error("pipeline: input failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			slots[i] = leads
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "pipeline: batch")
	}

	res := &BatchResult{
		Succeeded: succeeded.Load(),
		Skipped:   skipped.Load(),
		Failed:    failed.Load(),
	}
	for i, leads := range slots {
		res.Leads = append(res.Leads, leads...)
		if errs[i] != nil {
			res.Errors = append(res.Errors, ItemError{
				Index:   i,
				Company: inputs[i].Company.Name,
				Err:     errs[i],
				Message: errs[i].Error(),
			})
		}
	}

	zap.L().Info("pipeline: batch complete",
		zap.Int64("succeeded", res.Succeeded),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("failed", res.Failed),
		zap.Int("leads", len(res.Leads)),
	)
	return res, nil
}

// StatusCounts tallies leads per status.
func StatusCounts(leads []model.Lead) map[model.LeadStatus]int {
	counts := make(map[model.LeadStatus]int)
	for _, l := range leads {
		counts[l.Status]++
	}
	return counts
}
