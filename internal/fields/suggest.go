package fields

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/scholar-cli/internal/config"
)

// FieldSuggestion proposes a new field from keywords the taxonomy lacks.
type FieldSuggestion struct {
	Name        string   `json:"suggested_name"`
	Keywords    []string `json:"keywords"`
	Researchers int      `json:"researcher_count"`
}

// Relationship is a keyword pair that co-occurs across researchers.
type Relationship struct {
	A           string `json:"keyword_a"`
	B           string `json:"keyword_b"`
	Researchers int    `json:"researcher_count"`
}

// Suggestions are proposed taxonomy updates.
type Suggestions struct {
	NewFields     []FieldSuggestion `json:"new_fields"`
	Relationships []Relationship    `json:"relationships"`
}

var titleCaser = cases.Title(language.English)

// SuggestUpdates proposes taxonomy changes from per-researcher keywords.
// Keywords missing from the taxonomy that at least MinKeywordResearchers
// researchers share are clustered into new-field suggestions. Keyword pairs
// shared by at least MinCooccurrenceResearchers researchers become
// relationship suggestions.
func SuggestUpdates(byResearcher map[int64][]KeywordScore, existing []Keyword, p config.FieldParams) *Suggestions {
	known := make(map[string]bool, len(existing))
	for _, k := range existing {
		known[strings.ToLower(k.Keyword)] = true
	}

	sets := make(map[int64][]string, len(byResearcher))
	counts := make(map[string]int)
	for id, kws := range byResearcher {
		set := uniqueKeywords(kws)
		sets[id] = set
		for _, kw := range set {
			counts[kw]++
		}
	}

	var candidates []string
	for kw, n := range counts {
		if !known[kw] && n >= p.MinKeywordResearchers {
			candidates = append(candidates, kw)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		ci, cj := counts[candidates[i]], counts[candidates[j]]
		if ci != cj {
			return ci > cj
		}
		return candidates[i] < candidates[j]
	})

	return &Suggestions{
		NewFields:     clusterFields(candidates, sets),
		Relationships: cooccurrences(sets, p.MinCooccurrenceResearchers),
	}
}

func uniqueKeywords(kws []KeywordScore) []string {
	seen := make(map[string]bool, len(kws))
	out := make([]string, 0, len(kws))
	for _, k := range kws {
		if !seen[k.Keyword] {
			seen[k.Keyword] = true
			out = append(out, k.Keyword)
		}
	}
	sort.Strings(out)
	return out
}

// similar reports whether two keywords belong in one cluster: one contains the
// other, or both are longer than four runes and share their first four.
func similar(a, b string) bool {
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	ra, rb := []rune(a), []rune(b)
	return len(ra) > 4 && len(rb) > 4 && string(ra[:4]) == string(rb[:4])
}

// clusterFields groups ordered candidates greedily around the most frequent
// unclustered keyword.
func clusterFields(candidates []string, sets map[int64][]string) []FieldSuggestion {
	done := make(map[string]bool, len(candidates))
	var out []FieldSuggestion
	for _, head := range candidates {
		if done[head] {
			continue
		}
		done[head] = true
		cluster := []string{head}
		for _, kw := range candidates {
			if !done[kw] && similar(head, kw) {
				done[kw] = true
				cluster = append(cluster, kw)
			}
		}

		name := titleCaser.String(cluster[0])
		if len(cluster) > 1 {
			name += " & " + titleCaser.String(cluster[1])
		}
		out = append(out, FieldSuggestion{
			Name:        name,
			Keywords:    cluster,
			Researchers: researchersWithAny(cluster, sets),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Researchers > out[j].Researchers })
	return out
}

func researchersWithAny(cluster []string, sets map[int64][]string) int {
	n := 0
	for _, set := range sets {
		for _, kw := range cluster {
			i := sort.SearchStrings(set, kw)
			if i < len(set) && set[i] == kw {
				n++
				break
			}
		}
	}
	return n
}

func cooccurrences(sets map[int64][]string, minResearchers int) []Relationship {
	type pair struct{ a, b string }
	counts := make(map[pair]int)
	for _, set := range sets {
		for i := range set {
			for j := i + 1; j < len(set); j++ {
				counts[pair{set[i], set[j]}]++
			}
		}
	}

	var out []Relationship
	for pr, n := range counts {
		if n >= minResearchers {
			out = append(out, Relationship{A: pr.a, B: pr.b, Researchers: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Researchers != out[j].Researchers {
			return out[i].Researchers > out[j].Researchers
		}
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Suggest extracts keywords for every researcher and proposes taxonomy
// updates against the stored keywords.
func (c *Classifier) Suggest(ctx context.Context) (*Suggestions, error) {
	existing, err := c.store.Keywords(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := c.researchers.ListIDs(ctx, false)
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	byResearcher := make(map[int64][]KeywordScore, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			kws, err := c.Keywords(gctx, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				c.log.Warn("keyword extraction failed", zap.Int64("researcher", id), zap.Error(err))
				return nil
			}
			mu.Lock()
			byResearcher[id] = kws
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "fields: suggest")
	}
	return SuggestUpdates(byResearcher, existing, c.weights.Fields), nil
}
