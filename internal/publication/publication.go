// Package publication persists venues, publications, authorships and
// collaboration edges, and reads them back for scoring and the network view.
package publication

import (
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// placeholderPrefix starts the title substituted for a DOI-only publication.
const placeholderPrefix = "Publication with DOI: "

// Contribution roles.
const (
	RoleCorresponding = "corresponding"
	RoleContributing  = "contributing"
)

// ErrInsufficientData is returned for a publication with neither title nor DOI.
var ErrInsufficientData = eris.New("publication: title and doi both missing")

// Venue is a publication venue with its impact classification.
type Venue struct {
	ID               int64    `json:"id"`
	ExternalID       string   `json:"external_id"`
	DisplayName      string   `json:"display_name"`
	VenueType        *string  `json:"venue_type,omitempty"`
	Publisher        *string  `json:"publisher,omitempty"`
	ISSN             *string  `json:"issn,omitempty"`
	WorksCount       int      `json:"works_count"`
	CitedByCount     int      `json:"cited_by_count"`
	CitationsPerWork float64  `json:"citations_per_work"`
	ImpactTier       *string  `json:"impact_tier,omitempty"`
	ImpactWeight     *float64 `json:"impact_weight,omitempty"`
	Subjects         []string `json:"subjects,omitempty"`
}

// Publication is a work to be stored. DOI is the bare lower-cased DOI.
type Publication struct {
	ID            int64
	Title         string
	VenueID       *int64
	Year          *int
	DOI           string
	Type          string
	CitationCount int
	Abstract      string
	Keywords      []string
	Concepts      []string
}

// Authored is a publication as seen from one of its authors.
type Authored struct {
	ID            int64    `json:"id"`
	Title         string   `json:"title"`
	Year          *int     `json:"year,omitempty"`
	DOI           *string  `json:"doi,omitempty"`
	Type          *string  `json:"type,omitempty"`
	CitationCount int      `json:"citation_count"`
	Abstract      string   `json:"-"`
	KeywordsRaw   string   `json:"-"`
	ConceptsRaw   string   `json:"-"`
	VenueTier     *string  `json:"venue_tier,omitempty"`
	VenueWeight   *float64 `json:"venue_weight,omitempty"`
	Position      *int     `json:"author_position,omitempty"`
	Role          string   `json:"contribution_role"`
}

// Keywords decodes the stored keyword list.
func (a *Authored) Keywords() []string { return ParseList(a.KeywordsRaw) }

// Concepts decodes the stored concept list.
func (a *Authored) Concepts() []string { return ParseList(a.ConceptsRaw) }

// PlaceholderTitle is the title stored for a publication known only by DOI.
func PlaceholderTitle(doi string) string {
	return placeholderPrefix + doi
}

// IsPlaceholderTitle reports whether title was produced by PlaceholderTitle.
func IsPlaceholderTitle(title string) bool {
	return strings.HasPrefix(title, placeholderPrefix)
}

// ParseList decodes a stored list. JSON arrays are decoded when the text
// starts with '['; anything else, including malformed JSON, is treated as
// comma-separated text. Entries are trimmed and empties dropped.
func ParseList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, "[") {
		var items []string
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return compact(items)
		}
		raw = strings.Trim(raw, "[]")
	} else if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal([]byte(raw), &s); err == nil {
			raw = s
		}
	}

	parts := strings.Split(raw, ",")
	for i, p := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(p), `"'`)
	}
	return compact(parts)
}

func compact(items []string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func encodeList(items []string) []byte {
	if len(items) == 0 {
		return nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return b
}

func nilIfEmpty(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
