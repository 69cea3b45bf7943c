package fields

import (
	"context"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/metrics"
	"github.com/sells-group/scholar-cli/internal/publication"
)

// ErrEmptyTaxonomy is returned when classification runs before any field
// keywords were seeded.
var ErrEmptyTaxonomy = eris.New("fields: taxonomy has no keywords")

// Researchers lists the researchers to classify.
type Researchers interface {
	ListIDs(ctx context.Context, facultyOnly bool) ([]int64, error)
}

// Publications reads a researcher's publications.
type Publications interface {
	ForResearcher(ctx context.Context, researcherID int64) ([]publication.Authored, error)
}

// Summary counts the outcome of a batch classification.
type Summary struct {
	Researchers  int `json:"researchers"`
	Classified   int `json:"classified"`
	Failed       int `json:"failed"`
	Associations int `json:"associations"`
}

// Classify scores publications against the taxonomy keywords. Each keyword
// found in a publication's title, concepts or keywords adds the publication's
// impact times the keyword weight to the keyword's field. Scores are relative
// to the strongest field; fields under the weights' min_relative_score are
// dropped. The result is ordered strongest first.
func Classify(pubs []publication.Authored, kws []Keyword, w config.Weights, currentYear int) []Expertise {
	scores := make(map[int64]*Expertise)
	for i := range pubs {
		p := &pubs[i]
		text := publicationText(p)
		pubType := ""
		if p.Type != nil {
			pubType = *p.Type
		}
		impact := metrics.PublicationImpact(pubType, p.VenueWeight, p.CitationCount, p.Year, currentYear, w)

		matched := make(map[int64]bool)
		for _, k := range kws {
			if k.Keyword == "" || !strings.Contains(text, k.Keyword) {
				continue
			}
			e, ok := scores[k.FieldID]
			if !ok {
				e = &Expertise{FieldID: k.FieldID}
				scores[k.FieldID] = e
			}
			e.Score += impact * k.Weight
			if !matched[k.FieldID] {
				matched[k.FieldID] = true
				e.PublicationCount++
				e.CitationCount += p.CitationCount
			}
		}
	}

	var best float64
	for _, e := range scores {
		best = max(best, e.Score)
	}
	if best <= 0 {
		return nil
	}

	cutoff := best * w.Fields.MinRelativeScore
	out := make([]Expertise, 0, len(scores))
	for _, e := range scores {
		if e.Score < cutoff {
			continue
		}
		e.Score /= best
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].FieldID < out[j].FieldID
	})
	return out
}

func publicationText(p *publication.Authored) string {
	parts := append([]string{p.Title}, p.Concepts()...)
	parts = append(parts, p.Keywords()...)
	return strings.ToLower(strings.Join(parts, " "))
}

// Classifier computes and stores field expertise.
type Classifier struct {
	store       Store
	researchers Researchers
	pubs        Publications
	weights     config.Weights
	concurrency int
	now         func() time.Time
	log         *zap.Logger
}

// NewClassifier creates a Classifier. concurrency bounds parallel researchers
// in ClassifyAll.
func NewClassifier(store Store, researchers Researchers, pubs Publications, weights config.Weights, concurrency int) *Classifier {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Classifier{
		store:       store,
		researchers: researchers,
		pubs:        pubs,
		weights:     weights,
		concurrency: concurrency,
		now:         time.Now,
		log:         zap.L().With(zap.String("component", "fields")),
	}
}

// ExpertiseScores classifies one researcher, replaces their stored expertise
// and returns field id to relative score.
func (c *Classifier) ExpertiseScores(ctx context.Context, researcherID int64) (map[int64]float64, error) {
	kws, err := c.taxonomyKeywords(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.classify(ctx, researcherID, kws)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]float64, len(rows))
	for _, r := range rows {
		out[r.FieldID] = r.Score
	}
	return out, nil
}

// ClassifyAll recomputes expertise for every researcher. Per-researcher
// failures are logged and counted.
func (c *Classifier) ClassifyAll(ctx context.Context) (*Summary, error) {
	kws, err := c.taxonomyKeywords(ctx)
	if err != nil {
		return nil, err
	}
	ids, err := c.researchers.ListIDs(ctx, false)
	if err != nil {
		return nil, err
	}

	var classified, failed, assoc atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			rows, err := c.classify(gctx, id, kws)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				c.log.Error("classification failed", zap.Int64("researcher", id), zap.Error(err))
				return nil
			}
			classified.Add(1)
			assoc.Add(int64(len(rows)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "fields: classify all")
	}

	sum := &Summary{
		Researchers:  len(ids),
		Classified:   int(classified.Load()),
		Failed:       int(failed.Load()),
		Associations: int(assoc.Load()),
	}
	c.log.Info("classification complete",
		zap.Int("researchers", sum.Researchers),
		zap.Int("classified", sum.Classified),
		zap.Int("failed", sum.Failed),
		zap.Int("associations", sum.Associations),
	)
	return sum, nil
}

// Keywords extracts a researcher's strongest keywords.
func (c *Classifier) Keywords(ctx context.Context, researcherID int64) ([]KeywordScore, error) {
	pubs, err := c.pubs.ForResearcher(ctx, researcherID)
	if err != nil {
		return nil, err
	}
	return ExtractKeywords(pubs, c.weights.Keywords), nil
}

func (c *Classifier) taxonomyKeywords(ctx context.Context) ([]Keyword, error) {
	kws, err := c.store.Keywords(ctx)
	if err != nil {
		return nil, err
	}
	if len(kws) == 0 {
		return nil, ErrEmptyTaxonomy
	}
	return kws, nil
}

func (c *Classifier) classify(ctx context.Context, researcherID int64, kws []Keyword) ([]Expertise, error) {
	pubs, err := c.pubs.ForResearcher(ctx, researcherID)
	if err != nil {
		return nil, err
	}
	now := c.now()
	rows := Classify(pubs, kws, c.weights, now.Year())
	for i := range rows {
		rows[i].LastCalculated = now
	}
	if err := c.store.ReplaceExpertise(ctx, researcherID, rows); err != nil {
		return nil, err
	}
	return rows, nil
}
