package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/fields"
	"github.com/sells-group/scholar-cli/internal/metrics"
)

// recomputeResult is the outcome of a full field and metrics refresh.
type recomputeResult struct {
	Fields  *fields.Summary  `json:"fields,omitempty"`
	Metrics *metrics.Summary `json:"metrics"`
}

// recompute reclassifies field expertise, then refreshes metrics and
// reputation, which read the fresh expertise. An unseeded taxonomy skips
// classification.
func recompute(ctx context.Context, env *storeEnv, concurrency int) (*recomputeResult, error) {
	var res recomputeResult

	fs, err := env.classifier(concurrency).ClassifyAll(ctx)
	switch {
	case eris.Is(err, fields.ErrEmptyTaxonomy):
		zap.L().Warn("field taxonomy not seeded, skipping classification; run `fields seed`")
	case err != nil:
		return nil, err
	default:
		res.Fields = fs
	}

	ms, err := env.engine(concurrency).RecomputeAll(ctx)
	if err != nil {
		return nil, err
	}
	res.Metrics = ms
	return &res, nil
}
