package researcher

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/db"
)

const nameInstitutionKey = "researchers_name_institution_key"

// PostgresStore implements Store using pgx.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindOrCreate returns the id of the record with the same given name, family
// name and institution, creating it when absent. A NULL institution matches
// only NULL. An existing record gains any non-empty fields supplied in r but
// never loses a value. A concurrent insert of the same identity is resolved
// by re-reading the winner.
func (s *PostgresStore) FindOrCreate(ctx context.Context, r *Record) (int64, error) {
	r.GivenName = strings.TrimSpace(r.GivenName)
	r.FamilyName = strings.TrimSpace(r.FamilyName)
	if r.GivenName == "" || r.FamilyName == "" {
		return 0, eris.New("researcher: given and family name are required")
	}
	if r.DisplayName == "" {
		r.DisplayName = DisplayNameOf(r.GivenName, deref(r.MiddleNames), r.FamilyName, deref(r.NameSuffix))
	}
	inst := StringPtr(deref(r.Institution))

	id, err := s.lookupID(ctx, r.GivenName, r.FamilyName, inst)
	if err != nil {
		return 0, err
	}
	if id != 0 {
		return id, s.fillIn(ctx, id, r)
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO researchers (
			given_name, family_name, middle_names, name_suffix, display_name,
			department, institution, position, is_faculty
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		r.GivenName, r.FamilyName, StringPtr(deref(r.MiddleNames)), StringPtr(deref(r.NameSuffix)), r.DisplayName,
		StringPtr(deref(r.Department)), inst, StringPtr(deref(r.Position)), r.IsFaculty,
	).Scan(&id)
	if err == nil {
		r.ID = id
		return id, nil
	}
	if !db.IsUniqueViolation(err, nameInstitutionKey) {
		return 0, eris.Wrap(err, "researcher: create")
	}

	zap.L().Debug("researcher: insert lost race, re-reading winner",
		zap.String("given_name", r.GivenName),
		zap.String("family_name", r.FamilyName),
	)
	id, err = s.lookupID(ctx, r.GivenName, r.FamilyName, inst)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, eris.Errorf("researcher: %s %s vanished after unique violation", r.GivenName, r.FamilyName)
	}
	return id, s.fillIn(ctx, id, r)
}

func (s *PostgresStore) lookupID(ctx context.Context, given, family string, institution *string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `
		SELECT id FROM researchers
		WHERE given_name = $1 AND family_name = $2 AND institution IS NOT DISTINCT FROM $3`,
		given, family, institution,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, eris.Wrapf(err, "researcher: lookup %s %s", given, family)
	}
	return id, nil
}

// fillIn merges supplied non-empty fields into an existing record.
func (s *PostgresStore) fillIn(ctx context.Context, id int64, r *Record) error {
	r.ID = id
	_, err := s.pool.Exec(ctx, `
		UPDATE researchers SET
			middle_names = COALESCE($2, middle_names),
			name_suffix = COALESCE($3, name_suffix),
			department = COALESCE($4, department),
			position = COALESCE($5, position),
			is_faculty = is_faculty OR $6,
			updated_at = now()
		WHERE id = $1`,
		id, StringPtr(deref(r.MiddleNames)), StringPtr(deref(r.NameSuffix)),
		StringPtr(deref(r.Department)), StringPtr(deref(r.Position)), r.IsFaculty,
	)
	if err != nil {
		return eris.Wrapf(err, "researcher: update %d", id)
	}
	return nil
}

// Get fetches a researcher by id. It returns nil, nil when absent.
func (s *PostgresStore) Get(ctx context.Context, id int64) (*Record, error) {
	r := &Record{}
	err := s.pool.QueryRow(ctx, `SELECT `+researcherColumns+` FROM researchers r WHERE r.id = $1`, id).
		Scan(researcherDests(r)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "researcher: get %d", id)
	}
	return r, nil
}

// FindByORCID returns the researcher holding an ORCID, or nil.
func (s *PostgresStore) FindByORCID(ctx context.Context, orcid string) (*Record, error) {
	r := &Record{}
	err := s.pool.QueryRow(ctx, `
		SELECT `+researcherColumns+`
		FROM researchers r
		JOIN researcher_identifiers ri ON ri.researcher_id = r.id
		WHERE ri.identifier_type = 'orcid' AND ri.identifier_value = $1`, orcid).
		Scan(researcherDests(r)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "researcher: find by orcid %s", orcid)
	}
	return r, nil
}

// List returns researchers ordered by reputation, with their publication
// count and latest publication year.
func (s *PostgresStore) List(ctx context.Context, f ListFilter) ([]Summary, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.display_name, r.department, r.institution, r.position, r.is_faculty,
			r.h_index, r.total_citations, r.reputation_score,
			COUNT(a.publication_id)::int, MAX(p.publication_year)
		FROM researchers r
		LEFT JOIN authorships a ON a.researcher_id = r.id
		LEFT JOIN publications p ON p.id = a.publication_id
		WHERE ($1::boolean = false OR r.is_faculty)
		GROUP BY r.id
		ORDER BY r.reputation_score DESC NULLS LAST, r.id
		LIMIT $2 OFFSET $3`, f.FacultyOnly, f.Limit, f.Offset)
	if err != nil {
		return nil, eris.Wrap(err, "researcher: list")
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(
			&sm.ID, &sm.DisplayName, &sm.Department, &sm.Institution, &sm.Position, &sm.IsFaculty,
			&sm.HIndex, &sm.TotalCitations, &sm.ReputationScore,
			&sm.PublicationCount, &sm.LatestYear,
		); err != nil {
			return nil, eris.Wrap(err, "researcher: scan summary")
		}
		out = append(out, sm)
	}
	return out, eris.Wrap(rows.Err(), "researcher: list rows")
}

// ListIDs returns every researcher id, or only faculty ids.
func (s *PostgresStore) ListIDs(ctx context.Context, facultyOnly bool) ([]int64, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM researchers
		WHERE ($1::boolean = false OR is_faculty)
		ORDER BY id`, facultyOnly)
	if err != nil {
		return nil, eris.Wrap(err, "researcher: list ids")
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, eris.Wrap(err, "researcher: scan id")
		}
		ids = append(ids, id)
	}
	return ids, eris.Wrap(rows.Err(), "researcher: list ids rows")
}

// MarkFaculty sets the faculty flag. The flag is never cleared.
func (s *PostgresStore) MarkFaculty(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `UPDATE researchers SET is_faculty = true, updated_at = now() WHERE id = $1 AND NOT is_faculty`, id)
	if err != nil {
		return eris.Wrapf(err, "researcher: mark faculty %d", id)
	}
	return nil
}

// UpdateMetrics stores the publication-derived aggregates.
func (s *PostgresStore) UpdateMetrics(ctx context.Context, id int64, m Metrics) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE researchers SET
			h_index = $2, total_citations = $3, publication_count = $4, updated_at = now()
		WHERE id = $1`,
		id, m.HIndex, m.TotalCitations, m.PublicationCount,
	)
	if err != nil {
		return eris.Wrapf(err, "researcher: update metrics %d", id)
	}
	return nil
}

// SetReputation stores the reputation score and its JSON components.
func (s *PostgresStore) SetReputation(ctx context.Context, id int64, score float64, components []byte) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE researchers SET
			reputation_score = $2, reputation_components = $3, updated_at = now()
		WHERE id = $1`,
		id, score, components,
	)
	if err != nil {
		return eris.Wrapf(err, "researcher: set reputation %d", id)
	}
	return nil
}

// Identifiers returns every identifier held by a researcher.
func (s *PostgresStore) Identifiers(ctx context.Context, researcherID int64) ([]Identifier, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT researcher_id, identifier_type, identifier_value, confidence,
			verification_status, verification_method, verified_at
		FROM researcher_identifiers
		WHERE researcher_id = $1
		ORDER BY identifier_type`, researcherID)
	if err != nil {
		return nil, eris.Wrapf(err, "researcher: identifiers %d", researcherID)
	}
	defer rows.Close()

	var out []Identifier
	for rows.Next() {
		var id Identifier
		if err := rows.Scan(&id.ResearcherID, &id.Type, &id.Value, &id.Confidence,
			&id.VerificationStatus, &id.VerificationMethod, &id.VerifiedAt); err != nil {
			return nil, eris.Wrap(err, "researcher: scan identifier")
		}
		out = append(out, id)
	}
	return out, eris.Wrap(rows.Err(), "researcher: identifier rows")
}

// DeleteEmpty removes researchers with no authorships and no scored field
// expertise. With dryRun set it only counts them.
func (s *PostgresStore) DeleteEmpty(ctx context.Context, dryRun bool) (int64, error) {
	const emptyWhere = `
		NOT EXISTS (SELECT 1 FROM authorships a WHERE a.researcher_id = r.id)
		AND NOT EXISTS (SELECT 1 FROM field_expertise fe WHERE fe.researcher_id = r.id AND fe.expertise_score > 0)`

	if dryRun {
		var n int64
		if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM researchers r WHERE`+emptyWhere).Scan(&n); err != nil {
			return 0, eris.Wrap(err, "researcher: count empty")
		}
		return n, nil
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM researchers r WHERE`+emptyWhere)
	if err != nil {
		return 0, eris.Wrap(err, "researcher: delete empty")
	}
	return tag.RowsAffected(), nil
}

// researcherColumns is the standard column list for researcher queries.
const researcherColumns = `r.id, r.given_name, r.family_name, r.middle_names, r.name_suffix, r.display_name,
	r.department, r.institution, r.position, r.is_faculty,
	r.h_index, r.total_citations, r.publication_count, r.reputation_score, r.reputation_components,
	r.created_at, r.updated_at`

// researcherDests returns scan destinations for a Record.
func researcherDests(r *Record) []any {
	return []any{
		&r.ID, &r.GivenName, &r.FamilyName, &r.MiddleNames, &r.NameSuffix, &r.DisplayName,
		&r.Department, &r.Institution, &r.Position, &r.IsFaculty,
		&r.HIndex, &r.TotalCitations, &r.PublicationCount, &r.ReputationScore, &r.ReputationComponents,
		&r.CreatedAt, &r.UpdatedAt,
	}
}
