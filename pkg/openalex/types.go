package openalex

import (
	"sort"
	"strings"

	"github.com/sells-group/scholar-cli/pkg/orcid"
)

// WorksPage is one cursor page of works.
type WorksPage struct {
	Works      []Work
	NextCursor string
	Count      int
}

type worksResponse struct {
	Meta struct {
		Count      int    `json:"count"`
		NextCursor string `json:"next_cursor"`
	} `json:"meta"`
	Results []Work `json:"results"`
}

// Work is a single OpenAlex work.
type Work struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	DisplayName           string           `json:"display_name"`
	PublicationYear       int              `json:"publication_year"`
	DOI                   string           `json:"doi"`
	CitedByCount          int              `json:"cited_by_count"`
	Type                  string           `json:"type"`
	PrimaryLocation       *Location        `json:"primary_location"`
	Concepts              []Concept        `json:"concepts"`
	Keywords              []Keyword        `json:"keywords"`
	Authorships           []Authorship     `json:"authorships"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

// Location is where a work was published.
type Location struct {
	Source *Source `json:"source"`
}

// Source is the venue reference embedded in a work.
type Source struct {
	ID                   string `json:"id"`
	DisplayName          string `json:"display_name"`
	Type                 string `json:"type"`
	HostOrganizationName string `json:"host_organization_name"`
	ISSNL                string `json:"issn_l"`
}

// Concept is a topic tag with its hierarchy level and relevance score.
type Concept struct {
	DisplayName string  `json:"display_name"`
	Level       int     `json:"level"`
	Score       float64 `json:"score"`
}

// Keyword is an extracted keyword with its relevance score.
type Keyword struct {
	DisplayName string  `json:"display_name"`
	Score       float64 `json:"score"`
}

// Authorship is one author entry on a work.
type Authorship struct {
	AuthorPosition  string        `json:"author_position"`
	Author          Author        `json:"author"`
	Institutions    []Institution `json:"institutions"`
	IsCorresponding bool          `json:"is_corresponding"`
}

// Author identifies a work's author.
type Author struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ORCID       string `json:"orcid"`
}

// Institution is an author's affiliation on a work.
type Institution struct {
	DisplayName string `json:"display_name"`
	CountryCode string `json:"country_code"`
}

// Venue holds the metrics of a publication venue.
type Venue struct {
	ID           string `json:"id"`
	DisplayName  string `json:"display_name"`
	Type         string `json:"type"`
	Publisher    string `json:"host_organization_name"`
	ISSNL        string `json:"issn_l"`
	WorksCount   int    `json:"works_count"`
	CitedByCount int    `json:"cited_by_count"`
	SummaryStats struct {
		HIndex int `json:"h_index"`
	} `json:"summary_stats"`
	XConcepts []Concept `json:"x_concepts"`
}

// Subjects returns the venue's concept names.
func (v *Venue) Subjects() []string {
	out := make([]string, 0, len(v.XConcepts))
	for _, c := range v.XConcepts {
		if c.DisplayName != "" {
			out = append(out, c.DisplayName)
		}
	}
	return out
}

// BestTitle returns the title, falling back to the display name.
func (w *Work) BestTitle() string {
	if t := strings.TrimSpace(w.Title); t != "" {
		return t
	}
	return strings.TrimSpace(w.DisplayName)
}

// NormalizedDOI returns the bare, lower-cased DOI or "".
func (w *Work) NormalizedDOI() string {
	return NormalizeDOI(w.DOI)
}

// VenueSource returns the primary source or nil.
func (w *Work) VenueSource() *Source {
	if w.PrimaryLocation == nil {
		return nil
	}
	return w.PrimaryLocation.Source
}

// ConceptNames returns the display names of the work's concepts.
func (w *Work) ConceptNames() []string {
	out := make([]string, 0, len(w.Concepts))
	for _, c := range w.Concepts {
		if c.DisplayName != "" {
			out = append(out, c.DisplayName)
		}
	}
	return out
}

// KeywordNames returns the display names of the work's keywords.
func (w *Work) KeywordNames() []string {
	out := make([]string, 0, len(w.Keywords))
	for _, k := range w.Keywords {
		if k.DisplayName != "" {
			out = append(out, k.DisplayName)
		}
	}
	return out
}

// Abstract rebuilds plain text from the inverted index.
func (w *Work) Abstract() string {
	if len(w.AbstractInvertedIndex) == 0 {
		return ""
	}
	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range w.AbstractInvertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].pos < pairs[j].pos })

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// NormalizedORCID returns the author's bare ORCID or "".
func (a Author) NormalizedORCID() string {
	return orcid.NormalizeID(a.ORCID)
}

// NormalizeDOI strips resolver prefixes and lower-cases a DOI.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			lower = lower[len(prefix):]
			break
		}
	}
	return lower
}
