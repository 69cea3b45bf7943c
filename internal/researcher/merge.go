package researcher

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/db"
)

// MergeCandidates lists candidates with the given status, or all when status
// is empty.
func (s *PostgresStore) MergeCandidates(ctx context.Context, status string) ([]MergeCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, primary_id, secondary_id, reason, confidence, status, created_at, resolved_at
		FROM merge_candidates
		WHERE ($1::text = '' OR status = $1)
		ORDER BY id`, status)
	if err != nil {
		return nil, eris.Wrap(err, "researcher: list merge candidates")
	}
	defer rows.Close()

	var out []MergeCandidate
	for rows.Next() {
		var c MergeCandidate
		if err := rows.Scan(&c.ID, &c.PrimaryID, &c.SecondaryID, &c.Reason, &c.Confidence,
			&c.Status, &c.CreatedAt, &c.ResolvedAt); err != nil {
			return nil, eris.Wrap(err, "researcher: scan merge candidate")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "researcher: merge candidate rows")
}

// ApproveMerge moves a pending candidate to approved.
func (s *PostgresStore) ApproveMerge(ctx context.Context, candidateID int64) error {
	return s.transition(ctx, candidateID, CandidateApproved, "approve")
}

// RejectMerge moves a pending or approved candidate to rejected.
func (s *PostgresStore) RejectMerge(ctx context.Context, candidateID int64) error {
	return s.transition(ctx, candidateID, CandidateRejected, "reject")
}

func (s *PostgresStore) transition(ctx context.Context, candidateID int64, to, op string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE merge_candidates SET
			status = $2,
			resolved_at = CASE WHEN $2::text = 'rejected' THEN now() ELSE resolved_at END
		WHERE id = $1 AND status IN ('pending', 'approved') AND status <> $2`,
		candidateID, to,
	)
	if err != nil {
		return eris.Wrapf(err, "researcher: %s merge %d", op, candidateID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "researcher: %s merge %d: no open candidate", op, candidateID)
	}
	return nil
}

// ApprovePending approves every pending candidate at or above minConfidence
// and returns how many were approved.
func (s *PostgresStore) ApprovePending(ctx context.Context, minConfidence float64) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE merge_candidates SET status = 'approved'
		WHERE status = 'pending' AND confidence >= $1`, minConfidence)
	if err != nil {
		return 0, eris.Wrap(err, "researcher: approve pending merges")
	}
	return tag.RowsAffected(), nil
}

// ExecuteMerge folds the secondary researcher of an approved candidate into
// the primary in a single transaction: identifiers, authorships, field
// expertise, collaborations and open merge candidates are re-pointed, the
// secondary's missing details are absorbed, the secondary is deleted and the
// candidate is marked completed. Rows the primary already has are kept in
// favour of the primary's copy.
func (s *PostgresStore) ExecuteMerge(ctx context.Context, candidateID int64) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var primary, secondary int64
		var status string
		err := tx.QueryRow(ctx, `
			SELECT primary_id, secondary_id, status
			FROM merge_candidates WHERE id = $1 FOR UPDATE`, candidateID,
		).Scan(&primary, &secondary, &status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return eris.Wrapf(ErrNotFound, "researcher: merge candidate %d", candidateID)
			}
			return eris.Wrapf(err, "researcher: load merge candidate %d", candidateID)
		}
		if status != CandidateApproved {
			return eris.Wrapf(ErrCandidateNotApproved, "researcher: merge candidate %d is %s", candidateID, status)
		}
		if primary == secondary {
			return eris.Wrapf(ErrSelfMerge, "researcher: merge candidate %d", candidateID)
		}

		var present int
		if err := tx.QueryRow(ctx, `
			SELECT count(*) FROM (
				SELECT id FROM researchers WHERE id IN ($1, $2) FOR UPDATE
			) locked`, primary, secondary,
		).Scan(&present); err != nil {
			return eris.Wrapf(err, "researcher: lock merge pair %d/%d", primary, secondary)
		}
		if present != 2 {
			return eris.Wrapf(ErrStaleCandidate, "researcher: merge candidate %d", candidateID)
		}

		for _, st := range mergeStatements {
			if _, err := tx.Exec(ctx, st.sql, st.args(primary, secondary, candidateID)...); err != nil {
				return eris.Wrapf(err, "researcher: merge %d <- %d: %s", primary, secondary, st.name)
			}
		}

		tag, err := tx.Exec(ctx, absorbSecondary, primary, secondary)
		if err != nil {
			return eris.Wrapf(err, "researcher: merge %d <- %d: absorb secondary", primary, secondary)
		}
		if tag.RowsAffected() != 1 {
			return eris.Wrapf(ErrStaleCandidate, "researcher: merge %d <- %d: absorb", primary, secondary)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE merge_candidates SET status = 'completed', resolved_at = now()
			WHERE id = $1`, candidateID,
		); err != nil {
			return eris.Wrapf(err, "researcher: complete merge candidate %d", candidateID)
		}

		zap.L().Info("researcher: merge completed",
			zap.Int64("candidate_id", candidateID),
			zap.Int64("primary_id", primary),
			zap.Int64("secondary_id", secondary),
		)
		return nil
	})
}

type mergeStatement struct {
	name string
	sql  string
	args func(primary, secondary, candidate int64) []any
}

func pairArgs(primary, secondary, _ int64) []any { return []any{primary, secondary} }

func pairCandidateArgs(primary, secondary, candidate int64) []any {
	return []any{primary, secondary, candidate}
}

// mergeStatements re-point every dependent row from the secondary to the
// primary. $1 is the primary and $2 the secondary unless the statement
// supplies its own arguments; $3 is the executing candidate.
var mergeStatements = []mergeStatement{
	{"drop duplicate identifiers", `
		DELETE FROM researcher_identifiers s
		WHERE s.researcher_id = $2
			AND EXISTS (SELECT 1 FROM researcher_identifiers p
				WHERE p.researcher_id = $1 AND p.identifier_type = s.identifier_type)`, pairArgs},
	{"move identifiers", `
		UPDATE researcher_identifiers SET researcher_id = $1
		WHERE researcher_id = $2`, pairArgs},
	{"drop duplicate authorships", `
		DELETE FROM authorships s
		WHERE s.researcher_id = $2
			AND EXISTS (SELECT 1 FROM authorships p
				WHERE p.researcher_id = $1 AND p.publication_id = s.publication_id)`, pairArgs},
	{"move authorships", `
		UPDATE authorships SET researcher_id = $1
		WHERE researcher_id = $2`, pairArgs},
	{"combine overlapping expertise", `
		UPDATE field_expertise p SET
			expertise_score = GREATEST(p.expertise_score, s.expertise_score),
			publication_count = GREATEST(p.publication_count, s.publication_count),
			citation_count = GREATEST(p.citation_count, s.citation_count)
		FROM field_expertise s
		WHERE p.researcher_id = $1 AND s.researcher_id = $2 AND s.field_id = p.field_id`, pairArgs},
	{"drop duplicate expertise", `
		DELETE FROM field_expertise s
		WHERE s.researcher_id = $2
			AND EXISTS (SELECT 1 FROM field_expertise p
				WHERE p.researcher_id = $1 AND p.field_id = s.field_id)`, pairArgs},
	{"move expertise", `
		UPDATE field_expertise SET researcher_id = $1
		WHERE researcher_id = $2`, pairArgs},
	{"fold collaborations", `
		INSERT INTO collaborations (researcher_a, researcher_b, collaboration_count, first_year, last_year)
		SELECT LEAST($1::bigint, other), GREATEST($1::bigint, other), collaboration_count, first_year, last_year
		FROM (
			SELECT CASE WHEN researcher_a = $2 THEN researcher_b ELSE researcher_a END AS other,
				collaboration_count, first_year, last_year
			FROM collaborations
			WHERE (researcher_a = $2 OR researcher_b = $2)
		) edges
		WHERE other <> $1
		ON CONFLICT (researcher_a, researcher_b) DO UPDATE SET
			collaboration_count = collaborations.collaboration_count + EXCLUDED.collaboration_count,
			first_year = LEAST(collaborations.first_year, EXCLUDED.first_year),
			last_year = GREATEST(collaborations.last_year, EXCLUDED.last_year)`, pairArgs},
	{"drop secondary collaborations", `
		DELETE FROM collaborations
		WHERE researcher_a = $1 OR researcher_b = $1`,
		func(_, secondary, _ int64) []any { return []any{secondary} }},
	{"repoint open candidates as primary", `
		UPDATE merge_candidates c SET primary_id = $1
		WHERE c.primary_id = $2 AND c.id <> $3 AND c.status IN ('pending', 'approved')
			AND c.secondary_id <> $1
			AND NOT EXISTS (SELECT 1 FROM merge_candidates o
				WHERE o.primary_id = $1 AND o.secondary_id = c.secondary_id)`, pairCandidateArgs},
	{"repoint open candidates as secondary", `
		UPDATE merge_candidates c SET secondary_id = $1
		WHERE c.secondary_id = $2 AND c.id <> $3 AND c.status IN ('pending', 'approved')
			AND c.primary_id <> $1
			AND NOT EXISTS (SELECT 1 FROM merge_candidates o
				WHERE o.primary_id = c.primary_id AND o.secondary_id = $1)`, pairCandidateArgs},
	{"drop superseded candidates", `
		DELETE FROM merge_candidates
		WHERE id <> $2 AND status IN ('pending', 'approved')
			AND (primary_id = $1 OR secondary_id = $1)`,
		func(_, secondary, candidate int64) []any { return []any{secondary, candidate} }},
}

// absorbSecondary deletes the secondary and copies its details into any
// primary field that is still NULL. Institution is part of the identity key
// and is left as is.
const absorbSecondary = `
	WITH s AS (
		DELETE FROM researchers WHERE id = $2
		RETURNING middle_names, name_suffix, department, position, is_faculty
	)
	UPDATE researchers p SET
		middle_names = COALESCE(p.middle_names, s.middle_names),
		name_suffix = COALESCE(p.name_suffix, s.name_suffix),
		department = COALESCE(p.department, s.department),
		position = COALESCE(p.position, s.position),
		is_faculty = p.is_faculty OR s.is_faculty,
		updated_at = now()
	FROM s
	WHERE p.id = $1`

// MergeSummary counts the outcome of a batch of merges.
type MergeSummary struct {
	Executed int `json:"executed"`
	Failed   int `json:"failed"`
}

// Merger executes approved merge candidates in batch.
type Merger struct {
	store Store
	log   *zap.Logger
}

// NewMerger creates a Merger.
func NewMerger(store Store) *Merger {
	return &Merger{store: store, log: zap.L().With(zap.String("component", "merger"))}
}

// ExecuteApproved runs every approved candidate. A failed merge is logged and
// counted; the rest still run.
func (m *Merger) ExecuteApproved(ctx context.Context) (MergeSummary, error) {
	var sum MergeSummary
	candidates, err := m.store.MergeCandidates(ctx, CandidateApproved)
	if err != nil {
		return sum, err
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if err := m.store.ExecuteMerge(ctx, c.ID); err != nil {
			sum.Failed++
			m.log.Error("merge failed",
				zap.Int64("candidate_id", c.ID),
				zap.Int64("primary_id", c.PrimaryID),
				zap.Int64("secondary_id", c.SecondaryID),
				zap.Error(err),
			)
			continue
		}
		sum.Executed++
	}
	return sum, nil
}
