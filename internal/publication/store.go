package publication

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scholar-cli/internal/db"
)

// Store defines persistence operations for publications and their links.
type Store interface {
	UpsertVenue(ctx context.Context, v *Venue) (int64, error)
	UpsertPublication(ctx context.Context, p *Publication) (int64, error)
	AddAuthorship(ctx context.Context, researcherID, publicationID int64, position int, role string) (bool, error)
	RecordCollaboration(ctx context.Context, a, b int64, year *int) error
	ForResearcher(ctx context.Context, researcherID int64) ([]Authored, error)
	CoauthorCount(ctx context.Context, researcherID int64) (int, error)
	Edges(ctx context.Context, minCount int) ([]Edge, error)
	Nodes(ctx context.Context, ids []int64) ([]Node, error)
}

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// UpsertVenue inserts or refreshes a venue keyed by its external id.
func (s *PostgresStore) UpsertVenue(ctx context.Context, v *Venue) (int64, error) {
	if v.ExternalID == "" {
		return 0, eris.New("publication: venue external id is required")
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO venues (
			external_id, display_name, venue_type, publisher, issn,
			works_count, cited_by_count, citations_per_work, impact_tier, impact_weight, subjects
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			venue_type = COALESCE(EXCLUDED.venue_type, venues.venue_type),
			publisher = COALESCE(EXCLUDED.publisher, venues.publisher),
			issn = COALESCE(EXCLUDED.issn, venues.issn),
			works_count = EXCLUDED.works_count,
			cited_by_count = EXCLUDED.cited_by_count,
			citations_per_work = EXCLUDED.citations_per_work,
			impact_tier = EXCLUDED.impact_tier,
			impact_weight = EXCLUDED.impact_weight,
			subjects = COALESCE(EXCLUDED.subjects, venues.subjects),
			updated_at = now()
		RETURNING id`,
		v.ExternalID, v.DisplayName, v.VenueType, v.Publisher, v.ISSN,
		v.WorksCount, v.CitedByCount, v.CitationsPerWork, v.ImpactTier, v.ImpactWeight,
		encodeList(v.Subjects),
	).Scan(&v.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "publication: upsert venue %s", v.ExternalID)
	}
	return v.ID, nil
}

// UpsertPublication stores a publication and returns its id. Publications
// with a DOI are deduplicated by DOI: a re-sighting raises citation_count
// only when larger and replaces a placeholder title with a real one.
// Publications without a DOI are deduplicated by title and year. A
// publication with neither title nor DOI is rejected with ErrInsufficientData.
func (s *PostgresStore) UpsertPublication(ctx context.Context, p *Publication) (int64, error) {
	p.Title = strings.TrimSpace(p.Title)
	p.DOI = strings.TrimSpace(p.DOI)
	if p.Title == "" && p.DOI == "" {
		return 0, ErrInsufficientData
	}
	if p.Title == "" {
		p.Title = PlaceholderTitle(p.DOI)
	}
	if p.DOI != "" {
		return s.upsertByDOI(ctx, p)
	}
	return s.upsertByTitle(ctx, p)
}

func (s *PostgresStore) upsertByDOI(ctx context.Context, p *Publication) (int64, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO publications (
			title, venue_id, publication_year, doi, publication_type,
			citation_count, abstract, keywords, concepts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (doi) WHERE doi IS NOT NULL DO UPDATE SET
			citation_count = GREATEST(publications.citation_count, EXCLUDED.citation_count),
			title = CASE
				WHEN publications.title LIKE 'Publication with DOI: %'
					AND EXCLUDED.title NOT LIKE 'Publication with DOI: %'
				THEN EXCLUDED.title
				ELSE publications.title
			END,
			venue_id = COALESCE(publications.venue_id, EXCLUDED.venue_id),
			publication_year = COALESCE(publications.publication_year, EXCLUDED.publication_year),
			publication_type = COALESCE(publications.publication_type, EXCLUDED.publication_type),
			abstract = COALESCE(publications.abstract, EXCLUDED.abstract),
			keywords = COALESCE(publications.keywords, EXCLUDED.keywords),
			concepts = COALESCE(publications.concepts, EXCLUDED.concepts),
			updated_at = now()
		RETURNING id`,
		p.Title, p.VenueID, p.Year, p.DOI, nilIfEmpty(p.Type),
		p.CitationCount, nilIfEmpty(p.Abstract), encodeList(p.Keywords), encodeList(p.Concepts),
	).Scan(&p.ID)
	if err != nil {
		return 0, eris.Wrapf(err, "publication: upsert doi %s", p.DOI)
	}
	return p.ID, nil
}

func (s *PostgresStore) upsertByTitle(ctx context.Context, p *Publication) (int64, error) {
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext(lower($1)))`, p.Title); err != nil {
			return eris.Wrap(err, "publication: lock title")
		}

		err := tx.QueryRow(ctx, `
			SELECT id FROM publications
			WHERE doi IS NULL AND lower(title) = lower($1)
				AND publication_year IS NOT DISTINCT FROM $2
			LIMIT 1`, p.Title, p.Year,
		).Scan(&p.ID)
		switch {
		case err == nil:
			_, err = tx.Exec(ctx, `
				UPDATE publications SET
					citation_count = GREATEST(citation_count, $2),
					updated_at = now()
				WHERE id = $1`, p.ID, p.CitationCount)
			return eris.Wrapf(err, "publication: refresh %d", p.ID)
		case !errors.Is(err, pgx.ErrNoRows):
			return eris.Wrap(err, "publication: lookup by title")
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO publications (
				title, venue_id, publication_year, publication_type,
				citation_count, abstract, keywords, concepts
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			p.Title, p.VenueID, p.Year, nilIfEmpty(p.Type),
			p.CitationCount, nilIfEmpty(p.Abstract), encodeList(p.Keywords), encodeList(p.Concepts),
		).Scan(&p.ID)
		return eris.Wrap(err, "publication: insert")
	})
	if err != nil {
		return 0, err
	}
	return p.ID, nil
}

// AddAuthorship links a researcher to a publication. It reports whether the
// link is new; an existing link is left untouched.
func (s *PostgresStore) AddAuthorship(ctx context.Context, researcherID, publicationID int64, position int, role string) (bool, error) {
	if role == "" {
		role = RoleContributing
	}
	var pos *int
	if position > 0 {
		pos = &position
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO authorships (researcher_id, publication_id, author_position, contribution_role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (researcher_id, publication_id) DO NOTHING`,
		researcherID, publicationID, pos, role,
	)
	if err != nil {
		return false, eris.Wrapf(err, "publication: authorship %d/%d", researcherID, publicationID)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordCollaboration counts one co-authorship between a and b. The pair is
// stored with the smaller id first; the count increments and the year range
// widens on each sighting.
func (s *PostgresStore) RecordCollaboration(ctx context.Context, a, b int64, year *int) error {
	if a == b {
		return nil
	}
	lo, hi := Canonical(a, b)
	_, err := s.pool.Exec(ctx, `
		INSERT INTO collaborations (researcher_a, researcher_b, collaboration_count, first_year, last_year)
		VALUES ($1, $2, 1, $3, $3)
		ON CONFLICT (researcher_a, researcher_b) DO UPDATE SET
			collaboration_count = collaborations.collaboration_count + 1,
			first_year = LEAST(collaborations.first_year, EXCLUDED.first_year),
			last_year = GREATEST(collaborations.last_year, EXCLUDED.last_year)`,
		lo, hi, year,
	)
	if err != nil {
		return eris.Wrapf(err, "publication: collaboration %d-%d", lo, hi)
	}
	return nil
}

// Canonical orders a collaboration pair smaller id first.
func Canonical(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// ForResearcher returns every publication authored by a researcher, newest
// first, with its venue classification.
func (s *PostgresStore) ForResearcher(ctx context.Context, researcherID int64) ([]Authored, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.id, p.title, p.publication_year, p.doi, p.publication_type, p.citation_count,
			COALESCE(p.abstract, ''), COALESCE(p.keywords::text, ''), COALESCE(p.concepts::text, ''),
			v.impact_tier, v.impact_weight, a.author_position, a.contribution_role
		FROM authorships a
		JOIN publications p ON p.id = a.publication_id
		LEFT JOIN venues v ON v.id = p.venue_id
		WHERE a.researcher_id = $1
		ORDER BY p.publication_year DESC NULLS LAST, p.id`, researcherID)
	if err != nil {
		return nil, eris.Wrapf(err, "publication: for researcher %d", researcherID)
	}
	defer rows.Close()

	var out []Authored
	for rows.Next() {
		var a Authored
		if err := rows.Scan(
			&a.ID, &a.Title, &a.Year, &a.DOI, &a.Type, &a.CitationCount,
			&a.Abstract, &a.KeywordsRaw, &a.ConceptsRaw,
			&a.VenueTier, &a.VenueWeight, &a.Position, &a.Role,
		); err != nil {
			return nil, eris.Wrap(err, "publication: scan authored")
		}
		out = append(out, a)
	}
	return out, eris.Wrap(rows.Err(), "publication: authored rows")
}

// CoauthorCount returns the number of distinct collaborators of a researcher.
func (s *PostgresStore) CoauthorCount(ctx context.Context, researcherID int64) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM collaborations
		WHERE researcher_a = $1 OR researcher_b = $1`, researcherID,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "publication: coauthor count %d", researcherID)
	}
	return n, nil
}
