// Package fields maintains the research-field taxonomy and classifies
// researchers into fields from their publications.
package fields

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/scholar-cli/internal/db"
)

// Keyword links a taxonomy keyword to a field.
type Keyword struct {
	FieldID int64   `json:"field_id"`
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// Expertise is a researcher's standing in one field. Score is relative to the
// researcher's strongest field.
type Expertise struct {
	FieldID          int64     `json:"field_id"`
	FieldName        string    `json:"field"`
	Score            float64   `json:"expertise_score"`
	PublicationCount int       `json:"publication_count"`
	CitationCount    int       `json:"citation_count"`
	LastCalculated   time.Time `json:"last_calculated"`
}

// Store persists fields, keywords and expertise.
type Store interface {
	UpsertField(ctx context.Context, name string, parentID *int64) (int64, error)
	AddKeywords(ctx context.Context, kws []Keyword) (int64, error)
	Keywords(ctx context.Context) ([]Keyword, error)
	ReplaceExpertise(ctx context.Context, researcherID int64, rows []Expertise) error
	Expertise(ctx context.Context, researcherID int64) ([]Expertise, error)
	DeleteUnused(ctx context.Context, dryRun bool) (int64, error)
}

var expertiseColumns = []string{
	"researcher_id", "field_id", "expertise_score", "publication_count", "citation_count", "last_calculated",
}

// PostgresStore implements Store.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// UpsertField creates a field or re-parents an existing one by name.
func (s *PostgresStore) UpsertField(ctx context.Context, name string, parentID *int64) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO fields (name, parent_field_id) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET parent_field_id = EXCLUDED.parent_field_id
		RETURNING id`, name, parentID,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "fields: upsert %q", name)
	}
	return id, nil
}

// AddKeywords upserts keywords, updating the weight of existing pairs.
// Duplicate pairs in kws keep the last weight.
func (s *PostgresStore) AddKeywords(ctx context.Context, kws []Keyword) (int64, error) {
	type key struct {
		field   int64
		keyword string
	}
	idx := make(map[key]int, len(kws))
	rows := make([][]any, 0, len(kws))
	for _, k := range kws {
		kk := key{k.FieldID, k.Keyword}
		if i, ok := idx[kk]; ok {
			rows[i][2] = k.Weight
			continue
		}
		idx[kk] = len(rows)
		rows = append(rows, []any{k.FieldID, k.Keyword, k.Weight})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "field_keywords",
		Columns:      []string{"field_id", "keyword", "weight"},
		ConflictKeys: []string{"field_id", "keyword"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "fields: add keywords")
	}
	return n, nil
}

// Keywords returns every taxonomy keyword.
func (s *PostgresStore) Keywords(ctx context.Context) ([]Keyword, error) {
	rows, err := s.pool.Query(ctx, `SELECT field_id, keyword, weight FROM field_keywords ORDER BY field_id, keyword`)
	if err != nil {
		return nil, eris.Wrap(err, "fields: keywords")
	}
	defer rows.Close()

	var out []Keyword
	for rows.Next() {
		var k Keyword
		if err := rows.Scan(&k.FieldID, &k.Keyword, &k.Weight); err != nil {
			return nil, eris.Wrap(err, "fields: scan keyword")
		}
		out = append(out, k)
	}
	return out, eris.Wrap(rows.Err(), "fields: keyword rows")
}

// ReplaceExpertise clears a researcher's expertise rows and writes the new
// set in one transaction.
func (s *PostgresStore) ReplaceExpertise(ctx context.Context, researcherID int64, rows []Expertise) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM field_expertise WHERE researcher_id = $1`, researcherID); err != nil {
			return eris.Wrapf(err, "fields: clear expertise for %d", researcherID)
		}

		copyRows := make([][]any, len(rows))
		for i, e := range rows {
			copyRows[i] = []any{researcherID, e.FieldID, e.Score, e.PublicationCount, e.CitationCount, e.LastCalculated}
		}
		_, err := db.CopyFrom(ctx, tx, "field_expertise", expertiseColumns, copyRows)
		return err
	})
}

// Expertise returns a researcher's fields, strongest first.
func (s *PostgresStore) Expertise(ctx context.Context, researcherID int64) ([]Expertise, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT fe.field_id, f.name, fe.expertise_score, fe.publication_count, fe.citation_count, fe.last_calculated
		FROM field_expertise fe
		JOIN fields f ON f.id = fe.field_id
		WHERE fe.researcher_id = $1
		ORDER BY fe.expertise_score DESC, f.name`, researcherID)
	if err != nil {
		return nil, eris.Wrapf(err, "fields: expertise for %d", researcherID)
	}
	defer rows.Close()

	var out []Expertise
	for rows.Next() {
		var e Expertise
		if err := rows.Scan(&e.FieldID, &e.FieldName, &e.Score, &e.PublicationCount, &e.CitationCount, &e.LastCalculated); err != nil {
			return nil, eris.Wrap(err, "fields: scan expertise")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "fields: expertise rows")
}

const unusedFieldPredicate = `
	NOT EXISTS (SELECT 1 FROM field_expertise fe WHERE fe.field_id = f.id)
	AND NOT EXISTS (SELECT 1 FROM fields c WHERE c.parent_field_id = f.id)`

// DeleteUnused removes leaf fields nobody has expertise in. Their keywords go
// with them. A dry run only counts.
func (s *PostgresStore) DeleteUnused(ctx context.Context, dryRun bool) (int64, error) {
	if dryRun {
		var n int64
		if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM fields f WHERE`+unusedFieldPredicate).Scan(&n); err != nil {
			return 0, eris.Wrap(err, "fields: count unused")
		}
		return n, nil
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM fields f WHERE`+unusedFieldPredicate)
	if err != nil {
		return 0, eris.Wrap(err, "fields: delete unused")
	}
	return tag.RowsAffected(), nil
}
