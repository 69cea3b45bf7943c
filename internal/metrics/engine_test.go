package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/publication"
	"github.com/sells-group/scholar-cli/internal/researcher"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type stubResearchers struct {
	mu         sync.Mutex
	ids        []int64
	metrics    map[int64]researcher.Metrics
	scores     map[int64]float64
	components map[int64][]byte
	failScore  int64
}

func (s *stubResearchers) ListIDs(context.Context, bool) ([]int64, error) { return s.ids, nil }

func (s *stubResearchers) UpdateMetrics(_ context.Context, id int64, m researcher.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metrics == nil {
		s.metrics = make(map[int64]researcher.Metrics)
	}
	s.metrics[id] = m
	return nil
}

func (s *stubResearchers) SetReputation(_ context.Context, id int64, score float64, components []byte) error {
	if id == s.failScore {
		return errors.New("write failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scores == nil {
		s.scores = make(map[int64]float64)
		s.components = make(map[int64][]byte)
	}
	s.scores[id] = score
	s.components[id] = components
	return nil
}

type stubPublications map[int64][]publication.Authored

func (s stubPublications) ForResearcher(_ context.Context, id int64) ([]publication.Authored, error) {
	if id == 99 {
		return nil, errors.New("query failed")
	}
	return s[id], nil
}

type stubStats struct {
	corpus CorpusMax
	fields []FieldStat
	top    map[int64][]int64
}

func (s stubStats) CorpusMax(context.Context) (CorpusMax, error)    { return s.corpus, nil }
func (s stubStats) FieldStats(context.Context) ([]FieldStat, error) { return s.fields, nil }
func (s stubStats) TopFields(_ context.Context, id int64, _ int) ([]int64, error) {
	return s.top[id], nil
}

func authored(cites int, year int) publication.Authored {
	return publication.Authored{CitationCount: cites, Year: &year}
}

func TestUpdateResearcher(t *testing.T) {
	rs := &stubResearchers{}
	pubs := stubPublications{
		1: {authored(10, 2019), authored(8, 2022), authored(5, 2020), authored(4, 2018), authored(3, 2021)},
	}
	e := NewEngine(rs, pubs, stubStats{}, config.DefaultWeights(), 1)

	snap, err := e.UpdateResearcher(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, researcher.Metrics{HIndex: 4, TotalCitations: 30, PublicationCount: 5}, snap.Metrics)
	require.NotNil(t, snap.LatestYear)
	assert.Equal(t, 2022, *snap.LatestYear)
	assert.Equal(t, snap.Metrics, rs.metrics[1])
}

func TestUpdateResearcher_NoPublications(t *testing.T) {
	rs := &stubResearchers{}
	e := NewEngine(rs, stubPublications{}, stubStats{}, config.DefaultWeights(), 1)

	snap, err := e.UpdateResearcher(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, researcher.Metrics{}, snap.Metrics)
	assert.Nil(t, snap.LatestYear)
}

func TestRecomputeAll(t *testing.T) {
	rs := &stubResearchers{ids: []int64{1, 2, 99, 3}, failScore: 3}
	pubs := stubPublications{
		1: {authored(10, 2026), authored(8, 2025)},
		2: {authored(1, 2010)},
		3: {authored(2, 2020)},
	}
	stats := stubStats{
		corpus: CorpusMax{HIndex: 2, Citations: 18, Publications: 2},
		fields: []FieldStat{{ID: 7, AuthorCount: 10, AvgHIndex: 4, AvgCitations: 99}},
		top:    map[int64][]int64{1: {7}},
	}
	e := NewEngine(rs, pubs, stats, config.DefaultWeights(), 2)
	e.now = func() time.Time { return time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC) }

	sum, err := e.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Summary{Researchers: 4, Updated: 3, Scored: 2, Failed: 2}, sum)

	require.Contains(t, rs.components, int64(1))
	var c Components
	require.NoError(t, json.Unmarshal(rs.components[1], &c))
	assert.InDelta(t, 1.8, c.FieldNormalization, 1e-9)
	assert.InDelta(t, 1.0, c.Recency, 1e-9)

	assert.Greater(t, rs.scores[2], 0.0)
	assert.Greater(t, rs.scores[1], rs.scores[2])
}

func TestRecomputeAll_SkipsResearchersWithoutPublications(t *testing.T) {
	rs := &stubResearchers{ids: []int64{1, 4}}
	pubs := stubPublications{1: {authored(3, 2024)}}
	e := NewEngine(rs, pubs, stubStats{corpus: CorpusMax{HIndex: 1, Citations: 3, Publications: 1}}, config.DefaultWeights(), 1)

	sum, err := e.RecomputeAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &Summary{Researchers: 2, Updated: 1, Scored: 1, Skipped: 1}, sum)
	assert.NotContains(t, rs.metrics, int64(4))
	assert.NotContains(t, rs.scores, int64(4))
	assert.Contains(t, rs.scores, int64(1))
}

func TestRecomputeAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rs := &stubResearchers{ids: []int64{99}}
	e := NewEngine(rs, stubPublications{}, stubStats{}, config.DefaultWeights(), 1)
	_, err := e.RecomputeAll(ctx)
	assert.Error(t, err)
}
