package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/db"
	"github.com/sells-group/scholar-cli/internal/fields"
	"github.com/sells-group/scholar-cli/internal/ingest"
	"github.com/sells-group/scholar-cli/internal/metrics"
	"github.com/sells-group/scholar-cli/internal/publication"
	"github.com/sells-group/scholar-cli/internal/researcher"
)

// storeEnv holds the Postgres-backed stores a command works with.
type storeEnv struct {
	Pool         *pgxpool.Pool
	Researchers  *researcher.PostgresStore
	Publications *publication.PostgresStore
	Fields       *fields.PostgresStore
	Stats        *metrics.PostgresStore
	Runs         *ingest.PostgresRunStore
	Weights      config.Weights
}

// initStores validates the config for mode, connects, applies migrations and
// loads the scoring weights.
func initStores(ctx context.Context, mode string) (*storeEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	weights, err := config.LoadWeights(cfg.Scoring.WeightsPath)
	if err != nil {
		return nil, err
	}

	pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, db.PoolConfig{
		MaxConns: cfg.Store.MaxConns,
		MinConns: cfg.Store.MinConns,
	})
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &storeEnv{
		Pool:         pool,
		Researchers:  researcher.NewPostgresStore(pool),
		Publications: publication.NewPostgresStore(pool),
		Fields:       fields.NewPostgresStore(pool),
		Stats:        metrics.NewPostgresStore(pool),
		Runs:         ingest.NewPostgresRunStore(pool),
		Weights:      *weights,
	}, nil
}

// Close releases the pool.
func (e *storeEnv) Close() {
	e.Pool.Close()
}

func (e *storeEnv) engine(concurrency int) *metrics.Engine {
	return metrics.NewEngine(e.Researchers, e.Publications, e.Stats, e.Weights, concurrency)
}

func (e *storeEnv) classifier(concurrency int) *fields.Classifier {
	return fields.NewClassifier(e.Fields, e.Researchers, e.Publications, e.Weights, concurrency)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
