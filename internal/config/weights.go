package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Weights is the scoring document: reputation weights, publication and venue
// impact weights, network parameters and keyword extraction settings.
type Weights struct {
	Reputation         ReputationWeights     `yaml:"reputation"`
	PublicationWeights map[string]float64    `yaml:"publication_weights"`
	VenueImpactLevels  map[string]VenueLevel `yaml:"venue_impact_levels"`
	NetworkParams      NetworkParams         `yaml:"network_params"`
	Keywords           KeywordWeights        `yaml:"keywords"`
	Fields             FieldParams           `yaml:"fields"`
}

// ReputationWeights configures the reputation score.
type ReputationWeights struct {
	HIndexWeight               float64 `yaml:"h_index_weight"`
	CitationWeight             float64 `yaml:"citation_weight"`
	ProductivityWeight         float64 `yaml:"productivity_weight"`
	ExpertiseWeight            float64 `yaml:"expertise_weight"`
	MaxScore                   float64 `yaml:"max_score"`
	DefaultNormalization       float64 `yaml:"default_normalization"`
	MinAuthorsForNormalization int     `yaml:"min_authors_for_normalization"`
	MaxNormalization           float64 `yaml:"max_normalization"`
	HalfLifeYears              float64 `yaml:"half_life_years"`
	NoPublicationRecency       float64 `yaml:"no_publication_recency"`
}

// VenueLevel is one venue impact tier.
type VenueLevel struct {
	MinCitationsPerWork float64 `yaml:"min_citations_per_work"`
	Weight              float64 `yaml:"weight"`
}

// NetworkParams configures collaboration network export and the recency
// boost for publication impact.
type NetworkParams struct {
	MaxDepth            int `yaml:"max_depth"`
	MinCollaborations   int `yaml:"min_collaborations"`
	RecentYearThreshold int `yaml:"recent_year_threshold"`
}

// KeywordWeights configures per-researcher keyword extraction.
type KeywordWeights struct {
	DefinedKeyword   float64 `yaml:"defined_keyword"`
	TitleWord        float64 `yaml:"title_word"`
	AbstractWord     float64 `yaml:"abstract_word"`
	MinLength        int     `yaml:"min_length"`
	MinCount         int     `yaml:"min_count"`
	MaxPerResearcher int     `yaml:"max_per_researcher"`
}

// FieldParams configures field classification and taxonomy suggestions.
type FieldParams struct {
	MinRelativeScore           float64 `yaml:"min_relative_score"`
	TopFields                  int     `yaml:"top_fields"`
	MinKeywordResearchers      int     `yaml:"min_keyword_researchers"`
	MinCooccurrenceResearchers int     `yaml:"min_cooccurrence_researchers"`
}

// DefaultWeights returns the documented defaults.
func DefaultWeights() Weights {
	return Weights{
		Reputation: ReputationWeights{
			HIndexWeight:               0.3,
			CitationWeight:             0.3,
			ProductivityWeight:         0.2,
			ExpertiseWeight:            0.2,
			MaxScore:                   10,
			DefaultNormalization:       1.0,
			MinAuthorsForNormalization: 5,
			MaxNormalization:           3.0,
			HalfLifeYears:              5,
			NoPublicationRecency:       0.5,
		},
		PublicationWeights: map[string]float64{
			"journal-article":     1.0,
			"proceedings-article": 0.7,
			"book-chapter":        0.8,
			"book":                1.0,
			"dissertation":        0.5,
			"preprint":            0.3,
			"default":             0.5,
		},
		VenueImpactLevels: map[string]VenueLevel{
			"very_high": {MinCitationsPerWork: 50, Weight: 2.5},
			"high":      {MinCitationsPerWork: 25, Weight: 2.0},
			"medium":    {MinCitationsPerWork: 10, Weight: 1.5},
			"standard":  {MinCitationsPerWork: 5, Weight: 1.0},
			"low":       {MinCitationsPerWork: 0, Weight: 0.7},
		},
		NetworkParams: NetworkParams{
			MaxDepth:            2,
			MinCollaborations:   2,
			RecentYearThreshold: 5,
		},
		Keywords: KeywordWeights{
			DefinedKeyword:   3,
			TitleWord:        2,
			AbstractWord:     1,
			MinLength:        4,
			MinCount:         2,
			MaxPerResearcher: 10,
		},
		Fields: FieldParams{
			MinRelativeScore:           0.1,
			TopFields:                  3,
			MinKeywordResearchers:      3,
			MinCooccurrenceResearchers: 2,
		},
	}
}

// LoadWeights reads the weights document at path. A missing file yields the
// defaults.
func LoadWeights(path string) (*Weights, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			w := DefaultWeights()
			return &w, nil
		}
		return nil, eris.Wrapf(err, "config: read weights %s", path)
	}
	return ParseWeights(data)
}

// ParseWeights deep-merges a YAML document over the defaults key by key and
// validates the result.
func ParseWeights(data []byte) (*Weights, error) {
	base, err := toTree(DefaultWeights())
	if err != nil {
		return nil, err
	}

	var overlay map[string]any
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, eris.Wrap(err, "config: parse weights")
	}
	merged := deepMerge(base, overlay)

	raw, err := yaml.Marshal(merged)
	if err != nil {
		return nil, eris.Wrap(err, "config: encode merged weights")
	}
	var w Weights
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, eris.Wrap(err, "config: decode merged weights")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// WriteWeights writes w as YAML to path.
func WriteWeights(path string, w Weights) error {
	data, err := yaml.Marshal(w)
	if err != nil {
		return eris.Wrap(err, "config: encode weights")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "config: write weights %s", path)
	}
	return nil
}

// Validate collects every violation into one error.
func (w Weights) Validate() error {
	var errs []string

	r := w.Reputation
	for name, v := range map[string]float64{
		"reputation.h_index_weight":      r.HIndexWeight,
		"reputation.citation_weight":     r.CitationWeight,
		"reputation.productivity_weight": r.ProductivityWeight,
		"reputation.expertise_weight":    r.ExpertiseWeight,
	} {
		if v < 0 {
			errs = append(errs, name+" must be >= 0")
		}
	}
	if r.MaxScore <= 0 {
		errs = append(errs, "reputation.max_score must be > 0")
	}
	if r.DefaultNormalization <= 0 {
		errs = append(errs, "reputation.default_normalization must be > 0")
	}
	if r.MaxNormalization < r.DefaultNormalization {
		errs = append(errs, "reputation.max_normalization must be >= default_normalization")
	}
	if r.HalfLifeYears <= 0 {
		errs = append(errs, "reputation.half_life_years must be > 0")
	}
	if r.NoPublicationRecency < 0 || r.NoPublicationRecency > 1 {
		errs = append(errs, "reputation.no_publication_recency must be within [0, 1]")
	}

	if _, ok := w.PublicationWeights["default"]; !ok {
		errs = append(errs, "publication_weights.default is required")
	}
	if _, ok := w.VenueImpactLevels["low"]; !ok {
		errs = append(errs, "venue_impact_levels.low is required")
	}
	for _, tier := range sortedKeys(w.VenueImpactLevels) {
		if lvl := w.VenueImpactLevels[tier]; lvl.Weight < 0 || lvl.MinCitationsPerWork < 0 {
			errs = append(errs, fmt.Sprintf("venue_impact_levels.%s must be non-negative", tier))
		}
	}

	if w.NetworkParams.MaxDepth < 0 {
		errs = append(errs, "network_params.max_depth must be >= 0")
	}
	if w.Keywords.MinLength < 1 {
		errs = append(errs, "keywords.min_length must be >= 1")
	}
	if w.Keywords.MaxPerResearcher < 1 {
		errs = append(errs, "keywords.max_per_researcher must be >= 1")
	}
	if w.Fields.MinRelativeScore < 0 || w.Fields.MinRelativeScore > 1 {
		errs = append(errs, "fields.min_relative_score must be within [0, 1]")
	}
	if w.Fields.TopFields < 1 {
		errs = append(errs, "fields.top_fields must be >= 1")
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return eris.Errorf("config: invalid weights: %s", strings.Join(errs, "; "))
	}
	return nil
}

// VenueTiers returns the venue levels ordered from the highest threshold down.
func (w Weights) VenueTiers() []NamedVenueLevel {
	out := make([]NamedVenueLevel, 0, len(w.VenueImpactLevels))
	for name, lvl := range w.VenueImpactLevels {
		out = append(out, NamedVenueLevel{Name: name, VenueLevel: lvl})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MinCitationsPerWork != out[j].MinCitationsPerWork {
			return out[i].MinCitationsPerWork > out[j].MinCitationsPerWork
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// NamedVenueLevel is a venue level with its tier name.
type NamedVenueLevel struct {
	Name string
	VenueLevel
}

func toTree(w Weights) (map[string]any, error) {
	raw, err := yaml.Marshal(w)
	if err != nil {
		return nil, eris.Wrap(err, "config: encode default weights")
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, eris.Wrap(err, "config: decode default weights")
	}
	return tree, nil
}

// deepMerge overlays src onto dst. Nested maps merge; any other value replaces.
func deepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, sv := range src {
		sm, srcIsMap := sv.(map[string]any)
		dm, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = deepMerge(dm, sm)
			continue
		}
		dst[k] = sv
	}
	return dst
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
