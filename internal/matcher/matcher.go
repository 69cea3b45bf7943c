// Package matcher finds the ORCID identity of a researcher by name and
// institution, and classifies how confident the match is.
package matcher

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/name"
	"github.com/sells-group/scholar-cli/internal/pace"
	"github.com/sells-group/scholar-cli/internal/researcher"
	"github.com/sells-group/scholar-cli/pkg/orcid"
)

// Scoring for candidates when a search returns several profiles.
const (
	familyNameScore     = 0.5
	exactInitialsScore  = 0.4
	allInitialsScore    = 0.3
	firstInitialScore   = 0.2
	institutionScore    = 0.2
	acceptScore         = 0.6
	distinctiveMinScore = 0.8
)

// generationalMarkers flag family names that carry a suffix in the registry.
var generationalMarkers = []string{" Jr", " Sr", " II", " III"}

// Candidate is the person being matched.
type Candidate struct {
	Name        string
	Institution string
}

// Result is the outcome of a match.
type Result struct {
	Status          researcher.MatchStatus `json:"status"`
	ORCID           string                 `json:"orcid,omitempty"`
	Score           float64                `json:"score,omitempty"`
	Candidates      []orcid.Profile        `json:"candidates,omitempty"`
	Distinctiveness name.Distinctiveness   `json:"distinctiveness"`
	Message         string                 `json:"message"`
}

// Matcher queries the identity registry. Every registry call is paced.
type Matcher struct {
	client orcid.Client
	pacer  *pace.Pacer
	log    *zap.Logger
}

// New creates a Matcher.
func New(client orcid.Client, pacer *pace.Pacer) *Matcher {
	return &Matcher{
		client: client,
		pacer:  pacer,
		log:    zap.L().With(zap.String("component", "matcher")),
	}
}

// FindMatch searches the registry with each name variant, widest recall
// first, and stops at the first variant that accepts any profiles. The
// registry is always queried with the first given name and the family name;
// middle names and initials only narrow the returned profiles. A variant
// whose search fails is skipped. ERROR is returned only when every search
// failed; an exhausted search with no profiles is NO_MATCH.
func (m *Matcher) FindMatch(ctx context.Context, c Candidate) Result {
	res := Result{Distinctiveness: name.ScoreDistinctiveness(c.Name)}

	variants := name.Variants(c.Name)
	if len(variants) == 0 {
		res.Status = researcher.MatchNone
		res.Message = "empty name"
		return res
	}

	searched := make(map[string][]orcid.Profile, 1)
	var failures int
	var lastErr error
	for _, v := range variants {
		key := v.Given + "|" + v.Family
		found, ok := searched[key]
		if !ok {
			var err error
			found, err = pace.Call(ctx, m.pacer, func(ctx context.Context) ([]orcid.Profile, error) {
				return m.client.Search(ctx, v.Given, v.Family)
			})
			if err != nil {
				if ctx.Err() != nil {
					res.Status = researcher.MatchError
					res.Message = ctx.Err().Error()
					return res
				}
				failures++
				lastErr = err
				m.log.Warn("orcid search failed",
					zap.String("variant", v.Text),
					zap.Error(err),
				)
				continue
			}
			searched[key] = found
		}

		profiles := accepted(v, found)
		switch len(profiles) {
		case 0:
			continue
		case 1:
			return m.single(ctx, c, profiles[0], res)
		default:
			return m.disambiguate(ctx, c, profiles, res)
		}
	}

	if failures == len(variants) {
		res.Status = researcher.MatchError
		res.Message = fmt.Sprintf("all %d searches failed: %v", failures, lastErr)
		return res
	}
	res.Status = researcher.MatchNone
	res.Message = "no matches found"
	return res
}

func accepted(v name.Variant, profiles []orcid.Profile) []orcid.Profile {
	if len(v.Middle) == 0 {
		return profiles
	}
	var out []orcid.Profile
	for _, p := range profiles {
		if v.Accepts(p.GivenNames) {
			out = append(out, p)
		}
	}
	return out
}

func (m *Matcher) single(ctx context.Context, c Candidate, p orcid.Profile, res Result) Result {
	res.ORCID = orcid.NormalizeID(p.ORCID)
	res.Candidates = []orcid.Profile{p}
	if m.verifyInstitution(ctx, res.ORCID, c.Institution) {
		res.Status = researcher.MatchInstitution
		res.Message = "single match found with institutional verification"
		return res
	}
	res.Status = researcher.MatchDistinctive
	res.Message = "single match found"
	return res
}

func (m *Matcher) disambiguate(ctx context.Context, c Candidate, profiles []orcid.Profile, res Result) Result {
	for _, p := range profiles {
		if !hasGenerationalMarker(p.FamilyNames) {
			continue
		}
		id := orcid.NormalizeID(p.ORCID)
		if m.verifyInstitution(ctx, id, c.Institution) {
			res.Status = researcher.MatchInstitution
			res.ORCID = id
			res.Candidates = []orcid.Profile{p}
			res.Message = "disambiguated via institution and suffix"
			return res
		}
	}

	parsed := name.Parse(c.Name)
	best, bestScore := -1, 0.0
	for i, p := range profiles {
		if s := ScoreCandidate(parsed, c.Institution, p); s > bestScore {
			best, bestScore = i, s
		}
	}

	if best < 0 || bestScore < acceptScore {
		res.Status = researcher.MatchMultiple
		res.Candidates = profiles
		res.Message = fmt.Sprintf("found %d potential matches", len(profiles))
		return res
	}

	p := profiles[best]
	res.ORCID = orcid.NormalizeID(p.ORCID)
	res.Score = bestScore
	res.Candidates = []orcid.Profile{p}
	res.Message = fmt.Sprintf("best match found with confidence score: %.2f", bestScore)
	switch {
	case institutionOverlap(c.Institution, p.Institutions):
		res.Status = researcher.MatchInstitution
	case bestScore > distinctiveMinScore:
		res.Status = researcher.MatchDistinctive
	default:
		res.Status = researcher.MatchCommonName
	}
	return res
}

// verifyInstitution checks a profile's employment history against the
// institution. Lookup failures count as unverified.
func (m *Matcher) verifyInstitution(ctx context.Context, orcidID, institution string) bool {
	if strings.TrimSpace(institution) == "" || orcidID == "" {
		return false
	}
	orgs, err := pace.Call(ctx, m.pacer, func(ctx context.Context) ([]string, error) {
		return m.client.Employments(ctx, orcidID)
	})
	if err != nil {
		m.log.Warn("orcid employment lookup failed",
			zap.String("orcid", orcidID),
			zap.Error(err),
		)
		return false
	}
	for _, org := range orgs {
		if SameInstitution(institution, org) {
			return true
		}
	}
	return false
}

// ScoreCandidate rates a registry profile against a parsed name: +0.5 for an
// exact family name, up to +0.4 for initials (all equal 0.4, all present
// 0.3, first only 0.2) and +0.2 when an institution word appears in the
// profile's affiliations.
func ScoreCandidate(p name.Parsed, institution string, profile orcid.Profile) float64 {
	var score float64
	if name.Fold(profile.FamilyNames) == name.Fold(p.Family) && p.Family != "" {
		score += familyNameScore
	}

	want := name.Initials(strings.TrimSpace(p.Given + " " + p.Middle))
	have := name.Initials(profile.GivenNames)
	if want != "" && have != "" {
		switch {
		case want == have:
			score += exactInitialsScore
		case containsAll(have, want):
			score += allInitialsScore
		case want[0] == have[0]:
			score += firstInitialScore
		}
	}

	if strings.TrimSpace(institution) != "" && institutionOverlap(institution, profile.Institutions) {
		score += institutionScore
	}
	return score
}

func containsAll(have, want string) bool {
	for _, r := range want {
		if !strings.ContainsRune(have, r) {
			return false
		}
	}
	return true
}

func hasGenerationalMarker(family string) bool {
	for _, m := range generationalMarkers {
		if strings.Contains(family, m) {
			return true
		}
	}
	return false
}
