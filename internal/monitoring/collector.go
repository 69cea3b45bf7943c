// Package monitoring reports the state of the researcher database and raises
// webhook alerts when ingest health degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scholar-cli/internal/db"
	"github.com/sells-group/scholar-cli/internal/ingest"
)

// Counts are the row counts of the main tables.
type Counts struct {
	Researchers    int64 `json:"researchers"`
	Faculty        int64 `json:"faculty"`
	Publications   int64 `json:"publications"`
	Fields         int64 `json:"fields"`
	PendingMerges  int64 `json:"pending_merges"`
	ApprovedMerges int64 `json:"approved_merges"`
}

// Snapshot is a point-in-time view of the database and the last ingest.
type Snapshot struct {
	Counts
	LastRun     *ingest.Run `json:"last_run,omitempty"`
	CollectedAt time.Time   `json:"collected_at"`
}

// RunFailRate returns failed / (succeeded + failed) for the last run, or 0.
func (s *Snapshot) RunFailRate() float64 {
	if s.LastRun == nil {
		return 0
	}
	finished := s.LastRun.Succeeded + s.LastRun.Failed
	if finished == 0 {
		return 0
	}
	return float64(s.LastRun.Failed) / float64(finished)
}

// CountStore reads table counts.
type CountStore interface {
	Counts(ctx context.Context) (Counts, error)
}

// RunQuerier reads the ingest run ledger.
type RunQuerier interface {
	LastRun(ctx context.Context) (*ingest.Run, error)
}

// PostgresCountStore implements CountStore with one round trip.
type PostgresCountStore struct {
	pool db.Querier
}

// NewPostgresCountStore creates a PostgresCountStore.
func NewPostgresCountStore(pool db.Querier) *PostgresCountStore {
	return &PostgresCountStore{pool: pool}
}

// Counts implements CountStore.
func (s *PostgresCountStore) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM researchers),
			(SELECT count(*) FROM researchers WHERE is_faculty),
			(SELECT count(*) FROM publications),
			(SELECT count(*) FROM fields),
			(SELECT count(*) FROM merge_candidates WHERE status = 'pending'),
			(SELECT count(*) FROM merge_candidates WHERE status = 'approved')`,
	).Scan(&c.Researchers, &c.Faculty, &c.Publications, &c.Fields, &c.PendingMerges, &c.ApprovedMerges)
	if err != nil {
		return Counts{}, eris.Wrap(err, "monitoring: counts")
	}
	return c, nil
}

// Collector gathers snapshots and mirrors them into prometheus gauges.
type Collector struct {
	counts CountStore
	runs   RunQuerier
	now    func() time.Time

	tables  *prometheus.GaugeVec
	merges  *prometheus.GaugeVec
	lastRun *prometheus.GaugeVec
}

// NewCollector creates a Collector. Gauges are registered with reg when it
// is non-nil. runs may be nil.
func NewCollector(counts CountStore, runs RunQuerier, reg prometheus.Registerer) *Collector {
	c := &Collector{
		counts: counts,
		runs:   runs,
		now:    time.Now,
		tables: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "scholar",
			Name:      "rows",
			Help:      "Row counts by table.",
		}, []string{"table"}),
		merges: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "scholar",
			Name:      "merge_candidates",
			Help:      "Merge candidates awaiting action, by status.",
		}, []string{"status"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "scholar",
			Subsystem: "ingest",
			Name:      "last_run_seeds",
			Help:      "Seed outcomes of the most recent ingest run.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(c.tables, c.merges, c.lastRun)
	}
	return c
}

// Collect gathers a snapshot and updates the gauges.
func (c *Collector) Collect(ctx context.Context) (*Snapshot, error) {
	counts, err := c.counts.Counts(ctx)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Counts: counts, CollectedAt: c.now().UTC()}

	if c.runs != nil {
		run, err := c.runs.LastRun(ctx)
		if err != nil {
			return nil, eris.Wrap(err, "monitoring: last run")
		}
		snap.LastRun = run
	}

	c.tables.WithLabelValues("researchers").Set(float64(counts.Researchers))
	c.tables.WithLabelValues("faculty").Set(float64(counts.Faculty))
	c.tables.WithLabelValues("publications").Set(float64(counts.Publications))
	c.tables.WithLabelValues("fields").Set(float64(counts.Fields))
	c.merges.WithLabelValues("pending").Set(float64(counts.PendingMerges))
	c.merges.WithLabelValues("approved").Set(float64(counts.ApprovedMerges))
	if snap.LastRun != nil {
		c.lastRun.WithLabelValues("succeeded").Set(float64(snap.LastRun.Succeeded))
		c.lastRun.WithLabelValues("failed").Set(float64(snap.LastRun.Failed))
	}
	return snap, nil
}
