package metrics

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/publication"
	"github.com/sells-group/scholar-cli/internal/researcher"
)

// Researchers is the part of the identity store the engine writes to.
type Researchers interface {
	ListIDs(ctx context.Context, facultyOnly bool) ([]int64, error)
	UpdateMetrics(ctx context.Context, id int64, m researcher.Metrics) error
	SetReputation(ctx context.Context, id int64, score float64, components []byte) error
}

// Publications reads a researcher's publications.
type Publications interface {
	ForResearcher(ctx context.Context, researcherID int64) ([]publication.Authored, error)
}

// Snapshot is the publication-derived state of one researcher.
type Snapshot struct {
	researcher.Metrics
	LatestYear *int
}

// Summary counts the outcome of a recompute.
type Summary struct {
	Researchers int `json:"researchers"`
	Updated     int `json:"updated"`
	Scored      int `json:"scored"`
	Skipped     int `json:"skipped"`
	Failed      int `json:"failed"`
}

// Engine recomputes metrics and reputation for stored researchers.
type Engine struct {
	researchers Researchers
	pubs        Publications
	stats       Store
	weights     config.Weights
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

// NewEngine creates an Engine. concurrency bounds parallel researchers.
func NewEngine(researchers Researchers, pubs Publications, stats Store, weights config.Weights, concurrency int) *Engine {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Engine{
		researchers: researchers,
		pubs:        pubs,
		stats:       stats,
		weights:     weights,
		concurrency: concurrency,
		now:         time.Now,
		log:         zap.L().With(zap.String("component", "metrics")),
	}
}

// UpdateResearcher recomputes h-index, total citations and publication count
// from the stored publications and persists them.
func (e *Engine) UpdateResearcher(ctx context.Context, id int64) (*Snapshot, error) {
	pubs, err := e.pubs.ForResearcher(ctx, id)
	if err != nil {
		return nil, err
	}
	return e.apply(ctx, id, pubs)
}

func (e *Engine) apply(ctx context.Context, id int64, pubs []publication.Authored) (*Snapshot, error) {
	snap := &Snapshot{}
	citations := make([]int, len(pubs))
	for i, p := range pubs {
		citations[i] = p.CitationCount
		snap.TotalCitations += p.CitationCount
		if p.Year != nil && (snap.LatestYear == nil || *p.Year > *snap.LatestYear) {
			y := *p.Year
			snap.LatestYear = &y
		}
	}
	snap.HIndex = HIndex(citations)
	snap.PublicationCount = len(pubs)

	if err := e.researchers.UpdateMetrics(ctx, id, snap.Metrics); err != nil {
		return nil, err
	}
	return snap, nil
}

// RecomputeAll refreshes the metrics of every researcher with at least one
// authorship, then scores reputation against the refreshed corpus.
// Researchers without publications keep their stored values and are counted
// as skipped. A failed researcher is logged and counted.
func (e *Engine) RecomputeAll(ctx context.Context) (*Summary, error) {
	ids, err := e.researchers.ListIDs(ctx, false)
	if err != nil {
		return nil, err
	}
	sum := &Summary{Researchers: len(ids)}

	var (
		mu        sync.Mutex
		snapshots = make(map[int64]*Snapshot, len(ids))
		failed    atomic.Int64
		skipped   atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			pubs, err := e.pubs.ForResearcher(gctx, id)
			if err == nil && len(pubs) == 0 {
				skipped.Add(1)
				return nil
			}
			var snap *Snapshot
			if err == nil {
				snap, err = e.apply(gctx, id, pubs)
			}
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				e.log.Error("metrics update failed", zap.Int64("researcher", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			snapshots[id] = snap
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "metrics: recompute")
	}
	sum.Updated = len(snapshots)
	sum.Skipped = int(skipped.Load())

	scored, err := e.scoreAll(ctx, ids, snapshots)
	if err != nil {
		return nil, err
	}
	sum.Scored = scored
	sum.Failed = int(failed.Load()) + (sum.Updated - scored)

	e.log.Info("metrics recompute complete",
		zap.Int("researchers", sum.Researchers),
		zap.Int("updated", sum.Updated),
		zap.Int("scored", sum.Scored),
		zap.Int("skipped", sum.Skipped),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}

func (e *Engine) scoreAll(ctx context.Context, ids []int64, snapshots map[int64]*Snapshot) (int, error) {
	corpus, err := e.stats.CorpusMax(ctx)
	if err != nil {
		return 0, err
	}
	stats, err := e.stats.FieldStats(ctx)
	if err != nil {
		return 0, err
	}
	factors := FieldFactors(stats, e.weights.Reputation)

	var scored atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for _, id := range ids {
		snap, ok := snapshots[id]
		if !ok {
			continue
		}
		g.Go(func() error {
			if _, err := e.Score(gctx, id, snap, corpus, factors); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				e.log.Error("reputation scoring failed", zap.Int64("researcher", id), zap.Error(err))
				return nil
			}
			scored.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, eris.Wrap(err, "metrics: score")
	}
	return int(scored.Load()), nil
}

// Score computes and stores one researcher's reputation.
func (e *Engine) Score(ctx context.Context, id int64, snap *Snapshot, corpus CorpusMax, factors map[int64]float64) (*Reputation, error) {
	top, err := e.stats.TopFields(ctx, id, e.weights.Fields.TopFields)
	if err != nil {
		return nil, err
	}
	rep := ComputeReputation(Input{
		HIndex:        snap.HIndex,
		Citations:     snap.TotalCitations,
		Publications:  snap.PublicationCount,
		LatestYear:    snap.LatestYear,
		Normalization: ResearcherNormalization(top, factors, e.weights.Reputation),
	}, corpus, e.weights.Reputation, e.now().Year())

	components, err := json.Marshal(rep.Components)
	if err != nil {
		return nil, eris.Wrapf(err, "metrics: marshal components for %d", id)
	}
	if err := e.researchers.SetReputation(ctx, id, rep.Score, components); err != nil {
		return nil, err
	}
	return &rep, nil
}
