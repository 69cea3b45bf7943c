package metrics

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/scholar-cli/internal/db"
)

// Store reads the corpus statistics reputation scoring depends on.
type Store interface {
	CorpusMax(ctx context.Context) (CorpusMax, error)
	FieldStats(ctx context.Context) ([]FieldStat, error)
	TopFields(ctx context.Context, researcherID int64, n int) ([]int64, error)
}

// PostgresStore implements Store.
type PostgresStore struct {
	pool db.Querier
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool db.Querier) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// CorpusMax returns the maxima over researchers with at least one publication.
func (s *PostgresStore) CorpusMax(ctx context.Context) (CorpusMax, error) {
	var m CorpusMax
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(h_index), 0), COALESCE(MAX(total_citations), 0), COALESCE(MAX(publication_count), 0)
		FROM researchers
		WHERE publication_count > 0`,
	).Scan(&m.HIndex, &m.Citations, &m.Publications)
	if err != nil {
		return CorpusMax{}, eris.Wrap(err, "metrics: corpus max")
	}
	return m, nil
}

// FieldStats returns every field with the number of researchers holding
// expertise in it and their average h-index and citations.
func (s *PostgresStore) FieldStats(ctx context.Context) ([]FieldStat, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT f.id, f.parent_field_id,
			COUNT(DISTINCT fe.researcher_id)::int,
			COALESCE(AVG(r.h_index), 0)::float8,
			COALESCE(AVG(r.total_citations), 0)::float8
		FROM fields f
		LEFT JOIN field_expertise fe ON fe.field_id = f.id
		LEFT JOIN researchers r ON r.id = fe.researcher_id
		GROUP BY f.id, f.parent_field_id
		ORDER BY f.id`)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: field stats")
	}
	defer rows.Close()

	var out []FieldStat
	for rows.Next() {
		var fs FieldStat
		if err := rows.Scan(&fs.ID, &fs.ParentID, &fs.AuthorCount, &fs.AvgHIndex, &fs.AvgCitations); err != nil {
			return nil, eris.Wrap(err, "metrics: scan field stat")
		}
		out = append(out, fs)
	}
	return out, eris.Wrap(rows.Err(), "metrics: field stats rows")
}

// TopFields returns a researcher's n strongest fields.
func (s *PostgresStore) TopFields(ctx context.Context, researcherID int64, n int) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT field_id FROM field_expertise
		WHERE researcher_id = $1
		ORDER BY expertise_score DESC, publication_count DESC, field_id
		LIMIT $2`, researcherID, n)
	if err != nil {
		return nil, eris.Wrapf(err, "metrics: top fields for %d", researcherID)
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "metrics: scan field id")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "metrics: top fields rows")
}
