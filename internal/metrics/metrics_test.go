package metrics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/scholar-cli/internal/config"
)

func intPtr(v int) *int           { return &v }
func int64Ptr(v int64) *int64     { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestHIndex(t *testing.T) {
	tests := []struct {
		name      string
		citations []int
		want      int
	}{
		{"empty", nil, 0},
		{"textbook", []int{10, 8, 5, 4, 3}, 4},
		{"all ones", []int{1, 1, 1}, 1},
		{"unsorted", []int{3, 10, 4, 8, 5}, 4},
		{"all zero", []int{0, 0}, 0},
		{"exact", []int{3, 3, 3}, 3},
		{"one big paper", []int{1000}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HIndex(tt.citations))
		})
	}
}

func TestHIndex_DoesNotReorderInput(t *testing.T) {
	in := []int{1, 5, 3}
	HIndex(in)
	assert.Equal(t, []int{1, 5, 3}, in)
}

func TestRecency(t *testing.T) {
	assert.InDelta(t, 1.0, Recency(intPtr(2026), 2026, 5, 0.5), 1e-9)
	assert.InDelta(t, 0.5, Recency(intPtr(2021), 2026, 5, 0.5), 1e-9)
	assert.InDelta(t, 0.25, Recency(intPtr(2016), 2026, 5, 0.5), 1e-9)
	assert.InDelta(t, 1.0, Recency(intPtr(2027), 2026, 5, 0.5), 1e-9, "future years floor at zero")
	assert.InDelta(t, 0.5, Recency(nil, 2026, 5, 0.5), 1e-9)
}

func TestComputeReputation(t *testing.T) {
	w := config.DefaultWeights().Reputation
	corpus := CorpusMax{HIndex: 20, Citations: 999, Publications: 99}

	rep := ComputeReputation(Input{
		HIndex:       10,
		Citations:    999,
		Publications: 99,
		LatestYear:   intPtr(2026),
	}, corpus, w, 2026)

	c := rep.Components
	assert.InDelta(t, 0.15, c.HIndex, 1e-9)
	assert.InDelta(t, 0.3, c.Citation, 1e-9)
	assert.InDelta(t, 0.2, c.Productivity, 1e-9)
	assert.InDelta(t, 1.0, c.Recency, 1e-9)
	assert.InDelta(t, 0.09, c.Expertise, 1e-9)
	assert.InDelta(t, 1.0, c.FieldNormalization, 1e-9, "zero normalization falls back to default")
	assert.InDelta(t, 0.74, c.Raw, 1e-9)
	assert.InDelta(t, 10*(1-math.Exp(-0.74)), rep.Score, 1e-9)
}

func TestComputeReputation_NormalizationAndRecency(t *testing.T) {
	w := config.DefaultWeights().Reputation
	corpus := CorpusMax{HIndex: 20, Citations: 999, Publications: 99}
	in := Input{HIndex: 10, Citations: 999, Publications: 99, Normalization: 2}

	rep := ComputeReputation(in, corpus, w, 2026)
	assert.InDelta(t, 0.5, rep.Components.Recency, 1e-9)
	// 0.15 + 0.3 + 0.2 + 0.2*0.45*0.5, halved
	assert.InDelta(t, 0.695/2, rep.Components.Raw, 1e-9)
}

func TestComputeReputation_BoundedAndMonotonic(t *testing.T) {
	w := config.DefaultWeights().Reputation
	corpus := CorpusMax{HIndex: 500, Citations: 5000, Publications: 500}

	empty := ComputeReputation(Input{}, corpus, w, 2026)
	assert.InDelta(t, 0, empty.Score, 1e-9)

	prev := -1.0
	for _, h := range []int{0, 1, 5, 50, 500} {
		rep := ComputeReputation(Input{HIndex: h, Citations: h * 10, Publications: h}, corpus, w, 2026)
		assert.Greater(t, rep.Score, prev)
		assert.Less(t, rep.Score, w.MaxScore)
		prev = rep.Score
	}
}

func TestFieldFactors(t *testing.T) {
	w := config.DefaultWeights().Reputation
	stats := []FieldStat{
		{ID: 1, AuthorCount: 10, AvgHIndex: 4, AvgCitations: 99},
		{ID: 2, ParentID: int64Ptr(1), AuthorCount: 2, AvgHIndex: 30, AvgCitations: 5000},
		{ID: 3, AuthorCount: 1, AvgHIndex: 9, AvgCitations: 90},
		{ID: 4, AuthorCount: 50, AvgHIndex: 20, AvgCitations: 9999},
		{ID: 5, ParentID: int64Ptr(3), AuthorCount: 2},
		{ID: 6, ParentID: int64Ptr(99), AuthorCount: 0},
	}

	got := FieldFactors(stats, w)
	assert.InDelta(t, 1.8, got[1], 1e-9)
	assert.InDelta(t, 1.8, got[2], 1e-9, "sparse field borrows its parent")
	assert.InDelta(t, 1.0, got[3], 1e-9, "sparse root keeps the default")
	assert.InDelta(t, 3.0, got[4], 1e-9, "capped at max_normalization")
	assert.InDelta(t, 1.0, got[5], 1e-9, "sparse parent is not borrowed")
	assert.InDelta(t, 1.0, got[6], 1e-9, "unknown parent")
}

func TestResearcherNormalization(t *testing.T) {
	w := config.DefaultWeights().Reputation
	factors := map[int64]float64{1: 1.8, 2: 1.8, 3: 1.0}

	assert.InDelta(t, 4.6/3, ResearcherNormalization([]int64{1, 2, 3}, factors, w), 1e-9)
	assert.InDelta(t, 1.4, ResearcherNormalization([]int64{1, 42}, factors, w), 1e-9)
	assert.InDelta(t, 1.0, ResearcherNormalization(nil, factors, w), 1e-9)
}

func TestCitationsPerWork(t *testing.T) {
	assert.InDelta(t, 0, CitationsPerWork(0, 500), 1e-9)
	assert.InDelta(t, 1000.0/100.001, CitationsPerWork(100, 1000), 1e-9)
}

func TestVenueTier(t *testing.T) {
	w := config.DefaultWeights()
	tests := []struct {
		cpw    float64
		tier   string
		weight float64
	}{
		{60, "very_high", 2.5},
		{50, "very_high", 2.5},
		{25, "high", 2.0},
		{12.5, "medium", 1.5},
		{7, "standard", 1.0},
		{0, "low", 0.7},
	}
	for _, tt := range tests {
		tier, weight := VenueTier(tt.cpw, w)
		assert.Equal(t, tt.tier, tier, "cpw %v", tt.cpw)
		assert.InDelta(t, tt.weight, weight, 1e-9)
	}
}

func TestPublicationImpact(t *testing.T) {
	w := config.DefaultWeights()

	assert.InDelta(t, 4.8, PublicationImpact("Journal-Article", floatPtr(2.0), 100, intPtr(2024), 2026, w), 1e-9)
	assert.InDelta(t, 0.5, PublicationImpact("poster", nil, 0, nil, 2026, w), 1e-9)
	assert.InDelta(t, 0.7*1.1, PublicationImpact("proceedings-article", nil, 10, intPtr(2015), 2026, w), 1e-9)
	assert.InDelta(t, 0.3*1.2, PublicationImpact("preprint", nil, 0, intPtr(2021), 2026, w), 1e-9, "threshold is inclusive")
}
