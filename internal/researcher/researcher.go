// Package researcher is the identity store for researcher records: the
// create-or-find path used for faculty and coauthors, the one-to-one external
// identifier mapping, and the merge engine that consolidates duplicates.
package researcher

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Identifier types.
const (
	TypeORCID = "orcid"
	TypeEmail = "email"
)

// Merge candidate statuses.
const (
	CandidatePending   = "pending"
	CandidateApproved  = "approved"
	CandidateCompleted = "completed"
	CandidateRejected  = "rejected"
)

// orcidConflictConfidence is the confidence of a merge proposed by an ORCID
// collision. The registry guarantees ORCID uniqueness, so two holders are
// almost certainly one person.
const orcidConflictConfidence = 0.9

var (
	// ErrNotFound is returned when a researcher or merge candidate does not exist.
	ErrNotFound = eris.New("researcher: not found")
	// ErrCandidateNotApproved is returned when executing a merge that has not been approved.
	ErrCandidateNotApproved = eris.New("researcher: merge candidate not approved")
	// ErrStaleCandidate is returned when one side of a merge no longer exists.
	ErrStaleCandidate = eris.New("researcher: merge candidate references a missing researcher")
	// ErrSelfMerge is returned when primary and secondary are the same record.
	ErrSelfMerge = eris.New("researcher: cannot merge a record into itself")
)

// Record is a researcher row. Nullable columns are pointers; empty strings are
// stored as NULL.
type Record struct {
	ID          int64   `json:"id" db:"id"`
	GivenName   string  `json:"given_name" db:"given_name"`
	FamilyName  string  `json:"family_name" db:"family_name"`
	MiddleNames *string `json:"middle_names,omitempty" db:"middle_names"`
	NameSuffix  *string `json:"name_suffix,omitempty" db:"name_suffix"`
	DisplayName string  `json:"display_name" db:"display_name"`

	// Affiliation
	Department  *string `json:"department,omitempty" db:"department"`
	Institution *string `json:"institution,omitempty" db:"institution"`
	Position    *string `json:"position,omitempty" db:"position"`
	IsFaculty   bool    `json:"is_faculty" db:"is_faculty"`

	// Metrics
	HIndex               *int     `json:"h_index,omitempty" db:"h_index"`
	TotalCitations       *int     `json:"total_citations,omitempty" db:"total_citations"`
	PublicationCount     *int     `json:"publication_count,omitempty" db:"publication_count"`
	ReputationScore      *float64 `json:"reputation_score,omitempty" db:"reputation_score"`
	ReputationComponents []byte   `json:"reputation_components,omitempty" db:"reputation_components"` // JSONB

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// InstitutionName returns the institution or "".
func (r *Record) InstitutionName() string {
	return deref(r.Institution)
}

// Identifier links a researcher to an external identity.
type Identifier struct {
	ResearcherID       int64     `json:"researcher_id" db:"researcher_id"`
	Type               string    `json:"identifier_type" db:"identifier_type"`
	Value              string    `json:"identifier_value" db:"identifier_value"`
	Confidence         float64   `json:"confidence" db:"confidence"`
	VerificationStatus string    `json:"verification_status" db:"verification_status"`
	VerificationMethod string    `json:"verification_method" db:"verification_method"`
	VerifiedAt         time.Time `json:"verified_at" db:"verified_at"`
}

// MergeCandidate proposes folding Secondary into Primary.
type MergeCandidate struct {
	ID          int64      `json:"id" db:"id"`
	PrimaryID   int64      `json:"primary_id" db:"primary_id"`
	SecondaryID int64      `json:"secondary_id" db:"secondary_id"`
	Reason      string     `json:"reason" db:"reason"`
	Confidence  float64    `json:"confidence" db:"confidence"`
	Status      string     `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}

// Summary is a list row for the query surface.
type Summary struct {
	ID               int64    `json:"id"`
	DisplayName      string   `json:"display_name"`
	Department       *string  `json:"department,omitempty"`
	Institution      *string  `json:"institution,omitempty"`
	Position         *string  `json:"position,omitempty"`
	IsFaculty        bool     `json:"is_faculty"`
	HIndex           *int     `json:"h_index,omitempty"`
	TotalCitations   *int     `json:"total_citations,omitempty"`
	ReputationScore  *float64 `json:"reputation_score,omitempty"`
	PublicationCount int      `json:"publication_count"`
	LatestYear       *int     `json:"latest_publication_year,omitempty"`
}

// ListFilter narrows List results.
type ListFilter struct {
	FacultyOnly bool
	Limit       int
	Offset      int
}

// DisplayNameOf builds the display name from name components.
func DisplayNameOf(given, middle, family, suffix string) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{given, middle, family, suffix} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// StringPtr returns nil for an empty (after trimming) string, otherwise a
// pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
