package researcher

import "context"

// Store defines persistence operations for researcher identities.
type Store interface {
	// Records
	FindOrCreate(ctx context.Context, r *Record) (int64, error)
	Get(ctx context.Context, id int64) (*Record, error)
	FindByORCID(ctx context.Context, orcid string) (*Record, error)
	List(ctx context.Context, f ListFilter) ([]Summary, error)
	ListIDs(ctx context.Context, facultyOnly bool) ([]int64, error)
	MarkFaculty(ctx context.Context, id int64) error
	UpdateMetrics(ctx context.Context, id int64, m Metrics) error
	SetReputation(ctx context.Context, id int64, score float64, components []byte) error

	// Identifiers
	StoreIdentifier(ctx context.Context, researcherID int64, in IdentifierInput) (*IdentifierOutcome, error)
	Identifiers(ctx context.Context, researcherID int64) ([]Identifier, error)

	// Merges
	MergeCandidates(ctx context.Context, status string) ([]MergeCandidate, error)
	ApproveMerge(ctx context.Context, candidateID int64) error
	ApprovePending(ctx context.Context, minConfidence float64) (int64, error)
	RejectMerge(ctx context.Context, candidateID int64) error
	ExecuteMerge(ctx context.Context, candidateID int64) error

	// Maintenance
	DeleteEmpty(ctx context.Context, dryRun bool) (int64, error)
}

// Metrics are the publication-derived aggregates of a researcher.
type Metrics struct {
	HIndex           int
	TotalCitations   int
	PublicationCount int
}
