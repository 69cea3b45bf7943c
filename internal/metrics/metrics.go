// Package metrics computes researcher metrics: h-index, reputation with its
// components, field normalization factors and publication impact.
package metrics

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/scholar-cli/internal/config"
)

// venueEpsilon keeps citations-per-work finite for venues without works.
const venueEpsilon = 0.001

// HIndex returns the largest h such that h of the citation counts are each at
// least h.
func HIndex(citations []int) int {
	sorted := make([]int, len(citations))
	copy(sorted, citations)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))

	h := 0
	for i, c := range sorted {
		if c < i+1 {
			break
		}
		h = i + 1
	}
	return h
}

// Recency decays from 1.0 for a publication this year with the given
// half-life. A nil latest year yields noPublication.
func Recency(latestYear *int, currentYear int, halfLife, noPublication float64) float64 {
	if latestYear == nil || *latestYear <= 0 {
		return noPublication
	}
	years := float64(currentYear - *latestYear)
	if years < 0 {
		years = 0
	}
	return math.Exp(-math.Ln2 / halfLife * years)
}

// Input is what the reputation formula needs about one researcher.
type Input struct {
	HIndex        int
	Citations     int
	Publications  int
	LatestYear    *int
	Normalization float64
}

// CorpusMax holds corpus-wide maxima used to bound each component.
type CorpusMax struct {
	HIndex       int
	Citations    int
	Publications int
}

// Components are the parts of a reputation score, kept for transparency.
type Components struct {
	HIndex             float64 `json:"h_index_component"`
	Citation           float64 `json:"citation_component"`
	Productivity       float64 `json:"productivity_component"`
	Expertise          float64 `json:"expertise_component"`
	Recency            float64 `json:"recency_factor"`
	FieldNormalization float64 `json:"field_normalization"`
	Raw                float64 `json:"raw_score"`
}

// Reputation is a score in [0, max_score] with its components.
type Reputation struct {
	Score      float64    `json:"reputation_score"`
	Components Components `json:"components"`
}

// ComputeReputation scores one researcher. Each component is bounded by its
// weight through the corpus maxima; the weighted sum is divided by the field
// normalization and saturated into [0, max_score].
func ComputeReputation(in Input, corpus CorpusMax, w config.ReputationWeights, currentYear int) Reputation {
	maxH := float64(atLeastOne(corpus.HIndex))
	maxLogCitations := math.Log10(float64(atLeastOne(corpus.Citations)) + 1)
	maxLogPublications := math.Log10(float64(atLeastOne(corpus.Publications)) + 1)

	var c Components
	c.HIndex = float64(in.HIndex) / maxH * w.HIndexWeight
	c.Citation = math.Log10(float64(in.Citations)+1) / maxLogCitations * w.CitationWeight
	c.Productivity = math.Log10(float64(in.Publications)+1) / maxLogPublications * w.ProductivityWeight
	c.Recency = Recency(in.LatestYear, currentYear, w.HalfLifeYears, w.NoPublicationRecency)
	c.Expertise = w.ExpertiseWeight * (c.HIndex + c.Citation) * c.Recency

	c.FieldNormalization = in.Normalization
	if c.FieldNormalization <= 0 {
		c.FieldNormalization = w.DefaultNormalization
	}
	c.Raw = (c.HIndex + c.Citation + c.Productivity + c.Expertise) / c.FieldNormalization

	return Reputation{
		Score:      w.MaxScore * (1 - math.Exp(-c.Raw)),
		Components: c,
	}
}

func atLeastOne(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// FieldStat is the population of one field.
type FieldStat struct {
	ID           int64
	ParentID     *int64
	AuthorCount  int
	AvgHIndex    float64
	AvgCitations float64
}

// FieldFactors derives a normalization factor per field from its average
// h-index and citations. Fields with too few researchers borrow their parent's
// factor when the parent is populated enough, and otherwise keep the default.
// Factors are capped at max_normalization.
func FieldFactors(stats []FieldStat, w config.ReputationWeights) map[int64]float64 {
	byID := make(map[int64]FieldStat, len(stats))
	own := make(map[int64]float64, len(stats))
	for _, s := range stats {
		byID[s.ID] = s
		factor := w.DefaultNormalization
		if s.AuthorCount >= w.MinAuthorsForNormalization && s.AvgHIndex > 0 && s.AvgCitations > 0 {
			if f := s.AvgHIndex*w.HIndexWeight + math.Log10(s.AvgCitations+1)*w.CitationWeight; f > 0 {
				factor = f
			}
		}
		if w.MaxNormalization > 0 && factor > w.MaxNormalization {
			factor = w.MaxNormalization
		}
		own[s.ID] = factor
	}

	out := make(map[int64]float64, len(stats))
	for id, factor := range own {
		s := byID[id]
		if s.AuthorCount < w.MinAuthorsForNormalization && s.ParentID != nil {
			if parent, ok := byID[*s.ParentID]; ok && parent.AuthorCount >= w.MinAuthorsForNormalization {
				factor = own[parent.ID]
			}
		}
		out[id] = factor
	}
	return out
}

// ResearcherNormalization averages the factors of a researcher's top fields.
// Unknown fields count as the default; no fields yields the default.
func ResearcherNormalization(fieldIDs []int64, factors map[int64]float64, w config.ReputationWeights) float64 {
	if len(fieldIDs) == 0 {
		return w.DefaultNormalization
	}
	var sum float64
	for _, id := range fieldIDs {
		f, ok := factors[id]
		if !ok {
			f = w.DefaultNormalization
		}
		sum += f
	}
	return sum / float64(len(fieldIDs))
}

// CitationsPerWork is cited/(works+ε), or 0 for a venue without works.
func CitationsPerWork(works, cited int) float64 {
	if works <= 0 {
		return 0
	}
	return float64(cited) / (float64(works) + venueEpsilon)
}

// VenueTier classifies citations-per-work into the highest tier whose
// threshold it meets.
func VenueTier(citationsPerWork float64, w config.Weights) (string, float64) {
	for _, lvl := range w.VenueTiers() {
		if citationsPerWork >= lvl.MinCitationsPerWork {
			return lvl.Name, lvl.Weight
		}
	}
	low := w.VenueImpactLevels["low"]
	return "low", low.Weight
}

// PublicationImpact combines type weight, venue weight, citations and a
// boost for recent publications. A nil venue weight counts as 1.0.
func PublicationImpact(pubType string, venueWeight *float64, citations int, year *int, currentYear int, w config.Weights) float64 {
	base, ok := w.PublicationWeights[strings.ToLower(strings.TrimSpace(pubType))]
	if !ok {
		base = w.PublicationWeights["default"]
	}

	venue := 1.0
	if venueWeight != nil {
		venue = *venueWeight
	}

	citation := 1.0 + float64(citations)*0.01

	recency := 1.0
	if year != nil && currentYear-*year <= w.NetworkParams.RecentYearThreshold {
		recency = 1.2
	}
	return base * venue * citation * recency
}
