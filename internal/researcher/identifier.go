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

// IdentifierInput carries the identifiers found for a researcher. Empty
// values are skipped.
type IdentifierInput struct {
	ORCID  string
	Email  string
	Status MatchStatus
}

// IdentifierOutcome reports what StoreIdentifier did.
type IdentifierOutcome struct {
	// ORCIDStored is false when the researcher already held the same ORCID
	// at a higher confidence and the row was left untouched.
	ORCIDStored bool
	EmailStored bool
	// ConflictOwner is the researcher already holding the ORCID when a merge
	// candidate was proposed instead of attaching it.
	ConflictOwner int64
}

// StoreIdentifier attaches an ORCID and email to a researcher. An ORCID held
// by a different researcher is never attached twice: a merge candidate
// (primary = holder, secondary = researcherID) is proposed instead. The email
// is stored regardless. Re-storing a held ORCID at a lower confidence leaves
// the row untouched and reports ORCIDStored false. All writes happen in one
// transaction.
func (s *PostgresStore) StoreIdentifier(ctx context.Context, researcherID int64, in IdentifierInput) (*IdentifierOutcome, error) {
	orcid := strings.TrimSpace(in.ORCID)
	email := strings.ToLower(strings.TrimSpace(in.Email))
	out := &IdentifierOutcome{}
	if orcid == "" && email == "" {
		return out, nil
	}

	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		if orcid != "" {
			if err := storeORCID(ctx, tx, researcherID, orcid, in.Status, out); err != nil {
				return err
			}
		}
		if email != "" {
			if _, err := tx.Exec(ctx, `
				INSERT INTO researcher_identifiers (researcher_id, identifier_type, identifier_value)
				VALUES ($1, 'email', $2)
				ON CONFLICT (researcher_id, identifier_type) DO UPDATE SET
					identifier_value = EXCLUDED.identifier_value,
					verified_at = now()`,
				researcherID, email,
			); err != nil {
				return eris.Wrapf(err, "researcher: upsert email for %d", researcherID)
			}
			out.EmailStored = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func storeORCID(ctx context.Context, tx pgx.Tx, researcherID int64, orcid string, status MatchStatus, out *IdentifierOutcome) error {
	// Serialise writers of the same ORCID so the owner check below holds until commit.
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, orcid); err != nil {
		return eris.Wrapf(err, "researcher: lock orcid %s", orcid)
	}

	var owner int64
	err := tx.QueryRow(ctx, `
		SELECT researcher_id FROM researcher_identifiers
		WHERE identifier_type = 'orcid' AND identifier_value = $1`, orcid,
	).Scan(&owner)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(err, "researcher: orcid owner %s", orcid)
	}

	if owner != 0 && owner != researcherID {
		if _, err := tx.Exec(ctx, `
			INSERT INTO merge_candidates (primary_id, secondary_id, reason, confidence)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT ON CONSTRAINT merge_candidates_pair_key DO NOTHING`,
			owner, researcherID, "ORCID conflict: "+orcid, orcidConflictConfidence,
		); err != nil {
			return eris.Wrapf(err, "researcher: propose merge %d <- %d", owner, researcherID)
		}
		out.ConflictOwner = owner
		zap.L().Info("researcher: orcid already claimed, merge proposed",
			zap.String("orcid", orcid),
			zap.Int64("primary_id", owner),
			zap.Int64("secondary_id", researcherID),
		)
		return nil
	}

	v := VerificationFor(status)
	tag, err := tx.Exec(ctx, `
		INSERT INTO researcher_identifiers (
			researcher_id, identifier_type, identifier_value,
			confidence, verification_status, verification_method, verified_at
		) VALUES ($1, 'orcid', $2, $3, $4, $5, now())
		ON CONFLICT (researcher_id, identifier_type) DO UPDATE SET
			identifier_value = EXCLUDED.identifier_value,
			confidence = EXCLUDED.confidence,
			verification_status = EXCLUDED.verification_status,
			verification_method = EXCLUDED.verification_method,
			verified_at = now()
		WHERE researcher_identifiers.identifier_value <> EXCLUDED.identifier_value
			OR EXCLUDED.confidence >= researcher_identifiers.confidence`,
		researcherID, orcid, v.Confidence, v.Status, v.Method,
	)
	if err != nil {
		return eris.Wrapf(err, "researcher: upsert orcid for %d", researcherID)
	}
	out.ORCIDStored = tag.RowsAffected() > 0
	if !out.ORCIDStored {
		zap.L().Debug("researcher: kept higher-confidence orcid",
			zap.String("orcid", orcid),
			zap.Int64("researcher_id", researcherID),
			zap.Float64("offered_confidence", v.Confidence),
		)
	}
	return nil
}
