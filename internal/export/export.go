// Package export writes researcher profiles as JSON documents.
package export

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/fields"
	"github.com/sells-group/scholar-cli/internal/researcher"
)

// Researchers is the part of the identity store an export reads.
type Researchers interface {
	ListIDs(ctx context.Context, facultyOnly bool) ([]int64, error)
	Get(ctx context.Context, id int64) (*researcher.Record, error)
	Identifiers(ctx context.Context, researcherID int64) ([]researcher.Identifier, error)
}

// Expertise reads a researcher's field expertise.
type Expertise interface {
	Expertise(ctx context.Context, researcherID int64) ([]fields.Expertise, error)
}

// Coauthors counts a researcher's distinct coauthors.
type Coauthors interface {
	CoauthorCount(ctx context.Context, researcherID int64) (int, error)
}

// Metrics is the publication-derived part of a profile.
type Metrics struct {
	HIndex           *int            `json:"h_index"`
	TotalCitations   *int            `json:"total_citations"`
	PublicationCount *int            `json:"publication_count"`
	CoauthorCount    int             `json:"coauthor_count"`
	ReputationScore  *float64        `json:"reputation_score"`
	Components       json.RawMessage `json:"reputation_components,omitempty"`
}

// Profile is one exported researcher.
type Profile struct {
	ID          int64                   `json:"id"`
	DisplayName string                  `json:"display_name"`
	Department  *string                 `json:"department,omitempty"`
	Institution *string                 `json:"institution,omitempty"`
	Position    *string                 `json:"position,omitempty"`
	IsFaculty   bool                    `json:"is_faculty"`
	Identifiers []researcher.Identifier `json:"identifiers"`
	Metrics     Metrics                 `json:"metrics"`
	Expertise   []fields.Expertise      `json:"expertise"`
}

// Document is the exported file.
type Document struct {
	ExportedAt time.Time `json:"exported_at"`
	Count      int       `json:"count"`
	Profiles   []Profile `json:"profiles"`
}

// Result reports where an export went.
type Result struct {
	Location string `json:"location"`
	Profiles int    `json:"profiles"`
}

// Exporter assembles profiles and hands the document to a sink.
type Exporter struct {
	researchers Researchers
	expertise   Expertise
	coauthors   Coauthors
	sink        Sink
	now         func() time.Time
}

// NewExporter creates an Exporter.
func NewExporter(researchers Researchers, expertise Expertise, coauthors Coauthors, sink Sink) *Exporter {
	return &Exporter{
		researchers: researchers,
		expertise:   expertise,
		coauthors:   coauthors,
		sink:        sink,
		now:         time.Now,
	}
}

// Export writes the profiles of every researcher (or only faculty) as one
// document named after the export date. Records that vanish mid-export,
// e.g. merged away, are skipped.
func (e *Exporter) Export(ctx context.Context, facultyOnly bool) (*Result, error) {
	ids, err := e.researchers.ListIDs(ctx, facultyOnly)
	if err != nil {
		return nil, eris.Wrap(err, "export: list researchers")
	}

	now := e.now().UTC()
	doc := Document{ExportedAt: now, Profiles: make([]Profile, 0, len(ids))}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p, err := e.Profile(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			zap.L().Debug("export: researcher vanished", zap.Int64("researcher", id))
			continue
		}
		doc.Profiles = append(doc.Profiles, *p)
	}
	doc.Count = len(doc.Profiles)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "export: marshal")
	}
	loc, err := e.sink.Put(ctx, "profiles-"+now.Format("20060102T150405Z")+".json", data)
	if err != nil {
		return nil, err
	}
	zap.L().Info("export complete", zap.String("location", loc), zap.Int("profiles", doc.Count))
	return &Result{Location: loc, Profiles: doc.Count}, nil
}

// Profile assembles one researcher's profile, or nil when the id is unknown.
func (e *Exporter) Profile(ctx context.Context, id int64) (*Profile, error) {
	rec, err := e.researchers.Get(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "export: researcher %d", id)
	}
	if rec == nil {
		return nil, nil
	}
	ids, err := e.researchers.Identifiers(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "export: identifiers %d", id)
	}
	exp, err := e.expertise.Expertise(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "export: expertise %d", id)
	}
	coauthors, err := e.coauthors.CoauthorCount(ctx, id)
	if err != nil {
		return nil, eris.Wrapf(err, "export: coauthors %d", id)
	}

	if ids == nil {
		ids = []researcher.Identifier{}
	}
	if exp == nil {
		exp = []fields.Expertise{}
	}
	p := &Profile{
		ID:          rec.ID,
		DisplayName: rec.DisplayName,
		Department:  rec.Department,
		Institution: rec.Institution,
		Position:    rec.Position,
		IsFaculty:   rec.IsFaculty,
		Identifiers: ids,
		Expertise:   exp,
		Metrics: Metrics{
			HIndex:           rec.HIndex,
			TotalCitations:   rec.TotalCitations,
			PublicationCount: rec.PublicationCount,
			CoauthorCount:    coauthors,
			ReputationScore:  rec.ReputationScore,
		},
	}
	if len(rec.ReputationComponents) > 0 {
		p.Metrics.Components = json.RawMessage(rec.ReputationComponents)
	}
	return p, nil
}
