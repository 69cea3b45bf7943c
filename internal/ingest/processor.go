package ingest

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/config"
	"github.com/sells-group/scholar-cli/internal/matcher"
	"github.com/sells-group/scholar-cli/internal/metrics"
	"github.com/sells-group/scholar-cli/internal/name"
	"github.com/sells-group/scholar-cli/internal/pace"
	"github.com/sells-group/scholar-cli/internal/publication"
	"github.com/sells-group/scholar-cli/internal/researcher"
	"github.com/sells-group/scholar-cli/pkg/openalex"
)

// Matcher finds a seed's registry identity.
type Matcher interface {
	FindMatch(ctx context.Context, c matcher.Candidate) matcher.Result
}

// MetricsUpdater refreshes a researcher's publication metrics.
type MetricsUpdater interface {
	UpdateResearcher(ctx context.Context, id int64) (*metrics.Snapshot, error)
}

// Deps are the collaborators of a Processor.
type Deps struct {
	Matcher      Matcher
	Researchers  researcher.Store
	Publications publication.Store
	Works        openalex.Client
	Pacer        *pace.Pacer
	Metrics      MetricsUpdater
	Weights      config.Weights
	Counters     *Counters
}

// Outcome describes what processing one seed did.
type Outcome struct {
	ResearcherID int64                  `json:"researcher_id"`
	Match        researcher.MatchStatus `json:"match"`
	ORCID        string                 `json:"orcid,omitempty"`
	// ConflictOwner is set when the ORCID already belonged to another record
	// and a merge candidate was proposed.
	ConflictOwner int64 `json:"conflict_owner,omitempty"`
	Works         int   `json:"works"`
	Stored        int   `json:"stored"`
	Skipped       int   `json:"skipped"`
	Coauthors     int   `json:"coauthors"`
}

// Processor runs the per-seed workflow: match, store, identifiers, works,
// venues, coauthors and metrics.
type Processor struct {
	deps     Deps
	resolver *researcher.Resolver
	log      *zap.Logger
}

// NewProcessor creates a Processor. A nil Counters gets unregistered ones.
func NewProcessor(deps Deps) *Processor {
	if deps.Counters == nil {
		deps.Counters = NewCounters(nil)
	}
	if deps.Pacer == nil {
		deps.Pacer = pace.New(0)
	}
	return &Processor{
		deps:     deps,
		resolver: researcher.NewResolver(deps.Researchers),
		log:      zap.L().With(zap.String("component", "ingest")),
	}
}

// Process resolves one seed to a researcher record and ingests its works.
// Only failures to match the name or persist the researcher are returned;
// a failed page, venue, work or coauthor is logged and skipped.
func (p *Processor) Process(ctx context.Context, seed Seed) (*Outcome, error) {
	log := p.log.With(zap.String("seed", seed.Name))

	parsed := name.Parse(seed.Name)
	if parsed.Given == "" || parsed.Family == "" {
		return nil, eris.Wrapf(researcher.ErrUnparseableName, "ingest: seed %q", seed.Name)
	}

	match := p.deps.Matcher.FindMatch(ctx, matcher.Candidate{Name: seed.Name, Institution: seed.Institution})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := &Outcome{Match: match.Status}
	if match.Status.Matched() {
		out.ORCID = match.ORCID
	}
	log.Info("identity match",
		zap.Stringer("status", match.Status),
		zap.String("orcid", out.ORCID),
		zap.String("message", match.Message),
	)

	id, err := p.deps.Researchers.FindOrCreate(ctx, &researcher.Record{
		GivenName:   parsed.Given,
		FamilyName:  parsed.Family,
		MiddleNames: researcher.StringPtr(parsed.Middle),
		NameSuffix:  researcher.StringPtr(parsed.Suffix),
		Department:  researcher.StringPtr(seed.Department),
		Institution: researcher.StringPtr(seed.Institution),
		Position:    researcher.StringPtr(seed.Position),
		IsFaculty:   true,
	})
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: store %q", seed.Name)
	}
	out.ResearcherID = id
	log = log.With(zap.Int64("researcher", id))

	if out.ORCID != "" || strings.TrimSpace(seed.Email) != "" {
		res, err := p.deps.Researchers.StoreIdentifier(ctx, id, researcher.IdentifierInput{
			ORCID:  out.ORCID,
			Email:  seed.Email,
			Status: match.Status,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: identifiers for %q", seed.Name)
		}
		if res.ConflictOwner != 0 {
			out.ConflictOwner = res.ConflictOwner
			log.Warn("orcid held by another researcher, merge proposed",
				zap.String("orcid", out.ORCID),
				zap.Int64("holder", res.ConflictOwner),
			)
		}
	}

	if out.ORCID == "" {
		return out, nil
	}

	p.ingestWorks(ctx, log, seed, id, out)

	if p.deps.Metrics != nil {
		if _, err := p.deps.Metrics.UpdateResearcher(ctx, id); err != nil {
			log.Warn("metrics update failed", zap.Error(err))
		}
	}
	return out, nil
}

func (p *Processor) ingestWorks(ctx context.Context, log *zap.Logger, seed Seed, id int64, out *Outcome) {
	venues := make(map[string]*int64)
	cursor := openalex.FirstCursor
	for cursor != "" {
		page, err := pace.Call(ctx, p.deps.Pacer, func(ctx context.Context) (*openalex.WorksPage, error) {
			return p.deps.Works.Works(ctx, out.ORCID, cursor)
		})
		if err != nil {
			if ctx.Err() == nil {
				p.deps.Counters.registryError("openalex", err)
			}
			log.Warn("works page failed, stopping pagination", zap.String("orcid", out.ORCID), zap.Error(err))
			return
		}

		for i := range page.Works {
			if ctx.Err() != nil {
				return
			}
			out.Works++
			if p.ingestWork(ctx, log, seed, id, out, &page.Works[i], venues) {
				out.Stored++
				p.deps.Counters.Publications.WithLabelValues("stored").Inc()
			} else {
				out.Skipped++
				p.deps.Counters.Publications.WithLabelValues("skipped").Inc()
			}
		}

		if len(page.Works) == 0 {
			break
		}
		cursor = page.NextCursor
	}
}

// ingestWork stores one work with its venue, authorship and coauthors. It
// reports whether the work was stored.
func (p *Processor) ingestWork(ctx context.Context, log *zap.Logger, seed Seed, id int64, out *Outcome, w *openalex.Work, venues map[string]*int64) bool {
	pub := &publication.Publication{
		Title:         w.BestTitle(),
		VenueID:       p.venue(ctx, log, w.VenueSource(), venues),
		DOI:           w.NormalizedDOI(),
		Type:          w.Type,
		CitationCount: w.CitedByCount,
		Abstract:      w.Abstract(),
		Keywords:      w.KeywordNames(),
		Concepts:      w.ConceptNames(),
	}
	if w.PublicationYear > 0 {
		y := w.PublicationYear
		pub.Year = &y
	}

	pubID, err := p.deps.Publications.UpsertPublication(ctx, pub)
	if err != nil {
		if eris.Is(err, publication.ErrInsufficientData) {
			log.Debug("work without title or doi skipped", zap.String("work", w.ID))
		} else {
			log.Warn("store publication failed", zap.String("work", w.ID), zap.Error(err))
		}
		return false
	}

	position, role := 0, publication.RoleContributing
	for i, a := range w.Authorships {
		if p.isSelf(a, seed, out.ORCID) {
			position = i + 1
			role = roleOf(a)
			break
		}
	}
	if _, err := p.deps.Publications.AddAuthorship(ctx, id, pubID, position, role); err != nil {
		log.Warn("store authorship failed", zap.Int64("publication", pubID), zap.Error(err))
		return false
	}

	for i, a := range w.Authorships {
		if p.isSelf(a, seed, out.ORCID) {
			continue
		}
		if p.coauthor(ctx, log, id, pubID, i+1, a, pub.Year) {
			out.Coauthors++
		}
	}
	return true
}

// coauthor links an ORCID-bearing coauthor to the publication and records the
// collaboration. Coauthors without an ORCID are not tracked.
func (p *Processor) coauthor(ctx context.Context, log *zap.Logger, id, pubID int64, position int, a openalex.Authorship, year *int) bool {
	orcidID := a.Author.NormalizedORCID()
	if orcidID == "" {
		return false
	}

	var institution string
	if len(a.Institutions) > 0 {
		institution = a.Institutions[0].DisplayName
	}
	coID, err := p.resolver.ResolveCoauthor(ctx, researcher.Coauthor{
		Name:        a.Author.DisplayName,
		ORCID:       orcidID,
		Institution: institution,
	})
	if err != nil {
		log.Warn("coauthor resolution failed", zap.String("coauthor", a.Author.DisplayName), zap.String("orcid", orcidID), zap.Error(err))
		return false
	}
	if coID == id {
		return false
	}

	if _, err := p.deps.Publications.AddAuthorship(ctx, coID, pubID, position, roleOf(a)); err != nil {
		log.Warn("store coauthor authorship failed", zap.Int64("coauthor", coID), zap.Error(err))
	}
	if err := p.deps.Publications.RecordCollaboration(ctx, id, coID, year); err != nil {
		log.Warn("record collaboration failed", zap.Int64("coauthor", coID), zap.Error(err))
		return false
	}
	return true
}

// venue stores the work's venue with its impact classification, looking each
// venue up once per seed. A failed lookup leaves the work without a venue.
func (p *Processor) venue(ctx context.Context, log *zap.Logger, src *openalex.Source, seen map[string]*int64) *int64 {
	if src == nil || strings.TrimSpace(src.ID) == "" {
		return nil
	}
	key := openalex.ShortID(src.ID)
	if id, ok := seen[key]; ok {
		return id
	}

	v, err := pace.Call(ctx, p.deps.Pacer, func(ctx context.Context) (*openalex.Venue, error) {
		return p.deps.Works.Venue(ctx, key)
	})
	if err != nil {
		if ctx.Err() == nil {
			p.deps.Counters.registryError("openalex", err)
		}
		log.Warn("venue lookup failed", zap.String("venue", key), zap.Error(err))
		seen[key] = nil
		return nil
	}

	cpw := metrics.CitationsPerWork(v.WorksCount, v.CitedByCount)
	tier, weight := metrics.VenueTier(cpw, p.deps.Weights)
	displayName := v.DisplayName
	if displayName == "" {
		displayName = src.DisplayName
	}
	row := &publication.Venue{
		ExternalID:       key,
		DisplayName:      displayName,
		VenueType:        researcher.StringPtr(firstNonEmpty(v.Type, src.Type)),
		Publisher:        researcher.StringPtr(firstNonEmpty(v.Publisher, src.HostOrganizationName)),
		ISSN:             researcher.StringPtr(firstNonEmpty(v.ISSNL, src.ISSNL)),
		WorksCount:       v.WorksCount,
		CitedByCount:     v.CitedByCount,
		CitationsPerWork: cpw,
		ImpactTier:       &tier,
		ImpactWeight:     &weight,
		Subjects:         v.Subjects(),
	}
	id, err := p.deps.Publications.UpsertVenue(ctx, row)
	if err != nil {
		log.Warn("store venue failed", zap.String("venue", key), zap.Error(err))
		seen[key] = nil
		return nil
	}
	seen[key] = &id
	return &id
}

func (p *Processor) isSelf(a openalex.Authorship, seed Seed, orcidID string) bool {
	if o := a.Author.NormalizedORCID(); o != "" {
		return o == orcidID
	}
	return strings.EqualFold(strings.TrimSpace(a.Author.DisplayName), seed.Name)
}

func roleOf(a openalex.Authorship) string {
	if a.IsCorresponding {
		return publication.RoleCorresponding
	}
	return publication.RoleContributing
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
