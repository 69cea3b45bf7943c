package ingest

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scholar-cli/internal/db"
)

// Run statuses.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// Run is one ingest batch in the ledger.
type Run struct {
	ID         uuid.UUID  `json:"id"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Succeeded  int        `json:"succeeded"`
	Failed     int        `json:"failed"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// RunStore records ingest batches.
type RunStore interface {
	StartRun(ctx context.Context, total int) (uuid.UUID, error)
	FinishRun(ctx context.Context, id uuid.UUID, status string, succeeded, failed int) error
	LastRun(ctx context.Context) (*Run, error)
}

// PostgresRunStore implements RunStore on the ingest_runs table.
type PostgresRunStore struct {
	pool db.Querier
}

// NewPostgresRunStore creates a PostgresRunStore.
func NewPostgresRunStore(pool db.Querier) *PostgresRunStore {
	return &PostgresRunStore{pool: pool}
}

// StartRun opens a running ledger entry.
func (s *PostgresRunStore) StartRun(ctx context.Context, total int) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs (id, status, total) VALUES ($1, $2, $3)`,
		id, RunRunning, total,
	)
	if err != nil {
		return uuid.Nil, eris.Wrap(err, "ingest: start run")
	}
	return id, nil
}

// FinishRun closes a ledger entry with its final counts.
func (s *PostgresRunStore) FinishRun(ctx context.Context, id uuid.UUID, status string, succeeded, failed int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ingest_runs SET status = $2, succeeded = $3, failed = $4, finished_at = now()
		WHERE id = $1`,
		id, status, succeeded, failed,
	)
	if err != nil {
		return eris.Wrapf(err, "ingest: finish run %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("ingest: run not found: %s", id)
	}
	return nil
}

// LastRun returns the most recently started run, or nil when none exists.
func (s *PostgresRunStore) LastRun(ctx context.Context) (*Run, error) {
	var r Run
	err := s.pool.QueryRow(ctx, `
		SELECT id, status, total, succeeded, failed, started_at, finished_at
		FROM ingest_runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&r.ID, &r.Status, &r.Total, &r.Succeeded, &r.Failed, &r.StartedAt, &r.FinishedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: last run")
	}
	return &r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *PostgresRunStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, total, succeeded, failed, started_at, finished_at
		FROM ingest_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Status, &r.Total, &r.Succeeded, &r.Failed, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "ingest: scan run")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "ingest: run rows")
}
