package ingest

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SeedProcessor processes one seed.
type SeedProcessor interface {
	Process(ctx context.Context, seed Seed) (*Outcome, error)
}

// BatchOptions tune RunBatch. Runs and Counters are optional.
type BatchOptions struct {
	Concurrency int
	Runs        RunStore
	Counters    *Counters
}

// CategoryCount is the per-category result of a batch.
type CategoryCount struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// BatchSummary is the result of a batch.
type BatchSummary struct {
	RunID        uuid.UUID                 `json:"run_id"`
	Total        int                       `json:"total"`
	Succeeded    int                       `json:"succeeded"`
	Failed       int                       `json:"failed"`
	Matched      int                       `json:"matched"`
	Conflicts    int                       `json:"conflicts"`
	Publications int                       `json:"publications"`
	Categories   map[string]*CategoryCount `json:"categories"`
}

// RunBatch processes seeds with at most Concurrency in flight. A failed seed
// is logged and counted; it never stops the batch. Only cancellation aborts.
func RunBatch(ctx context.Context, proc SeedProcessor, seeds []Seed, opts BatchOptions) (*BatchSummary, error) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Counters == nil {
		opts.Counters = NewCounters(nil)
	}
	log := zap.L().With(zap.String("component", "ingest.batch"))

	sum := &BatchSummary{Total: len(seeds), Categories: make(map[string]*CategoryCount)}
	for _, s := range seeds {
		if _, ok := sum.Categories[s.Category]; !ok {
			sum.Categories[s.Category] = &CategoryCount{}
		}
	}

	if opts.Runs != nil {
		id, err := opts.Runs.StartRun(ctx, len(seeds))
		if err != nil {
			return nil, err
		}
		sum.RunID = id
		log = log.With(zap.String("run", id.String()))
	}
	log.Info("ingest batch starting", zap.Int("seeds", len(seeds)), zap.Int("concurrency", opts.Concurrency))

	var mu sync.Mutex
	record := func(s Seed, out *Outcome, err error) {
		outcome := "succeeded"
		if err != nil {
			outcome = "failed"
		}
		opts.Counters.Researchers.WithLabelValues(s.Category, outcome).Inc()

		mu.Lock()
		defer mu.Unlock()
		cat := sum.Categories[s.Category]
		if err != nil {
			sum.Failed++
			cat.Failed++
			return
		}
		sum.Succeeded++
		cat.Succeeded++
		if out.ORCID != "" {
			sum.Matched++
		}
		if out.ConflictOwner != 0 {
			sum.Conflicts++
		}
		sum.Publications += out.Stored
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, s := range seeds {
		g.Go(func() error {
			out, err := proc.Process(gctx, s)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			if err != nil {
				log.Error("seed failed", zap.String("seed", s.Name), zap.String("category", s.Category), zap.Error(err))
			}
			record(s, out, err)
			return nil
		})
	}
	waitErr := g.Wait()

	if opts.Runs != nil {
		status := RunCompleted
		if waitErr != nil {
			status = RunFailed
		}
		if err := opts.Runs.FinishRun(context.WithoutCancel(ctx), sum.RunID, status, sum.Succeeded, sum.Failed); err != nil {
			log.Warn("failed to close run ledger entry", zap.Error(err))
		}
	}
	if waitErr != nil {
		return sum, eris.Wrap(waitErr, "ingest: batch")
	}

	for cat, c := range sum.Categories {
		log.Info("category complete", zap.String("category", cat), zap.Int("succeeded", c.Succeeded), zap.Int("failed", c.Failed))
	}
	log.Info("ingest batch complete",
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("failed", sum.Failed),
		zap.Int("matched", sum.Matched),
		zap.Int("conflicts", sum.Conflicts),
	)
	return sum, nil
}
