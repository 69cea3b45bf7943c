package matcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/internal/name"
	"github.com/sells-group/scholar-cli/internal/pace"
	"github.com/sells-group/scholar-cli/internal/researcher"
	"github.com/sells-group/scholar-cli/pkg/orcid"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeRegistry struct {
	// results by "given|family"; missing keys return no profiles.
	results     map[string][]orcid.Profile
	errs        map[string]error
	failOnce    map[string]error
	employments map[string][]string
	searches    []string
	lookups     []string
}

func (f *fakeRegistry) Search(_ context.Context, given, family string) ([]orcid.Profile, error) {
	key := given + "|" + family
	f.searches = append(f.searches, key)
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	if err := f.failOnce[key]; err != nil {
		delete(f.failOnce, key)
		return nil, err
	}
	return f.results[key], nil
}

func (f *fakeRegistry) Employments(_ context.Context, id string) ([]string, error) {
	f.lookups = append(f.lookups, id)
	return f.employments[id], nil
}

func newMatcher(reg *fakeRegistry) *Matcher {
	return New(reg, pace.New(0))
}

func TestFindMatch_SingleVerifiedByEmployment(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Gaetano|Montelione": {{ORCID: "0000-0001-1111-2222", GivenNames: "Gaetano", FamilyNames: "Montelione"}},
		},
		employments: map[string][]string{
			"0000-0001-1111-2222": {"Rensselaer Polytechnic Inst"},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{
		Name:        "Gaetano Montelione",
		Institution: "Rensselaer Polytechnic Institute",
	})
	assert.Equal(t, researcher.MatchInstitution, res.Status)
	assert.Equal(t, "0000-0001-1111-2222", res.ORCID)
	assert.Equal(t, []string{"0000-0001-1111-2222"}, reg.lookups)
}

func TestFindMatch_SingleUnverifiedIsDistinctive(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Gaetano|Montelione": {{ORCID: "https://orcid.org/0000-0001-1111-2222"}},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Gaetano Montelione", Institution: "MIT"})
	assert.Equal(t, researcher.MatchDistinctive, res.Status)
	assert.Equal(t, "0000-0001-1111-2222", res.ORCID)
}

func TestFindMatch_TriesVariantsWidestFirst(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Gaetano|Montelione": {{ORCID: "0000-0001-1111-2222"}},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Gaetano Thomas Montelione"})
	assert.Equal(t, researcher.MatchDistinctive, res.Status)
	assert.Equal(t, []string{"Gaetano|Montelione"}, reg.searches)
	assert.Empty(t, reg.lookups, "no institution means no employment lookup")
}

func TestFindMatch_MiddleInitialFiltersProfiles(t *testing.T) {
	reg := &fakeRegistry{
		failOnce: map[string]error{"Gaetano|Montelione": errors.New("timeout")},
		results: map[string][]orcid.Profile{
			"Gaetano|Montelione": {
				{ORCID: "0000-0001-1111-2222", GivenNames: "Gaetano T.", FamilyNames: "Montelione"},
				{ORCID: "0000-0001-3333-4444", GivenNames: "Gaetano R.", FamilyNames: "Montelione"},
			},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Gaetano Thomas Montelione"})
	assert.Equal(t, researcher.MatchDistinctive, res.Status)
	assert.Equal(t, "0000-0001-1111-2222", res.ORCID)
	assert.Equal(t, []string{"Gaetano|Montelione", "Gaetano|Montelione"}, reg.searches,
		"the initials variant queries with the first name only")
}

func TestFindMatch_SearchesOncePerQuery(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Gaetano|Montelione": {{ORCID: "0000-0001-3333-4444", GivenNames: "Gaetano R."}},
		},
	}

	// the first variant matches before any filtering
	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Gaetano T. Montelione"})
	assert.Equal(t, "0000-0001-3333-4444", res.ORCID)

	reg = &fakeRegistry{}
	res = newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Gaetano Tomaso Montelione"})
	assert.Equal(t, researcher.MatchNone, res.Status)
	assert.Equal(t, []string{"Gaetano|Montelione"}, reg.searches)
}

func TestFindMatch_NoMatch(t *testing.T) {
	reg := &fakeRegistry{}
	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Nobody Known"})
	assert.Equal(t, researcher.MatchNone, res.Status)
	assert.Empty(t, res.ORCID)
}

func TestFindMatch_ErrorOnlyWhenEverySearchFails(t *testing.T) {
	boom := errors.New("503 from registry")

	reg := &fakeRegistry{errs: map[string]error{"Jian|Liu": boom}}
	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Jian Liu"})
	assert.Equal(t, researcher.MatchError, res.Status)
	assert.Contains(t, res.Message, "503")

	reg = &fakeRegistry{errs: map[string]error{"Jian|Liu": boom}}
	res = newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Jian Q Liu"})
	assert.Equal(t, researcher.MatchError, res.Status)
	assert.Len(t, reg.searches, 3)

	reg = &fakeRegistry{failOnce: map[string]error{"Jian|Liu": boom}}
	res = newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Jian Q Liu"})
	assert.Equal(t, researcher.MatchNone, res.Status, "a later variant succeeded with no results")
	assert.Len(t, reg.searches, 2)
}

func TestFindMatch_ErrorFallsThroughToNextVariant(t *testing.T) {
	reg := &fakeRegistry{
		failOnce: map[string]error{"Jian|Liu": errors.New("timeout")},
		results: map[string][]orcid.Profile{
			"Jian|Liu": {{ORCID: "0000-0003-0000-0001", GivenNames: "Jian Quan"}},
		},
	}
	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Jian Quan Liu"})
	assert.Equal(t, researcher.MatchDistinctive, res.Status)
	assert.Equal(t, "0000-0003-0000-0001", res.ORCID)
}

func TestFindMatch_SuffixDisambiguation(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Robert|Smith": {
				{ORCID: "0000-0000-0000-0001", GivenNames: "Robert", FamilyNames: "Smith"},
				{ORCID: "0000-0000-0000-0002", GivenNames: "Robert", FamilyNames: "Smith Jr"},
			},
		},
		employments: map[string][]string{
			"0000-0000-0000-0002": {"University of Michigan"},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Robert Smith Jr.", Institution: "Univ of Michigan"})
	assert.Equal(t, researcher.MatchInstitution, res.Status)
	assert.Equal(t, "0000-0000-0000-0002", res.ORCID)
}

func TestFindMatch_ScoredBestCandidate(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Ada|Lovelace": {
				{ORCID: "0000-0000-0000-0010", GivenNames: "Bertha", FamilyNames: "Lovelace"},
				{ORCID: "0000-0000-0000-0011", GivenNames: "Ada", FamilyNames: "Lovelace"},
			},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Ada Lovelace"})
	assert.Equal(t, "0000-0000-0000-0011", res.ORCID)
	assert.InDelta(t, 0.9, res.Score, 1e-9)
	assert.Equal(t, researcher.MatchDistinctive, res.Status)
}

func TestFindMatch_ScoredWithInstitution(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Jian|Liu": {
				{ORCID: "0000-0000-0000-0020", GivenNames: "Jian", FamilyNames: "Liu", Institutions: []string{"Peking University"}},
				{ORCID: "0000-0000-0000-0021", GivenNames: "J.", FamilyNames: "Liu", Institutions: []string{"Rensselaer Polytechnic Institute"}},
			},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Jian Liu", Institution: "Rensselaer Polytechnic Institute"})
	assert.Equal(t, researcher.MatchInstitution, res.Status)
	assert.Equal(t, "0000-0000-0000-0021", res.ORCID)
}

func TestFindMatch_AmbiguousReturnsAllCandidates(t *testing.T) {
	reg := &fakeRegistry{
		results: map[string][]orcid.Profile{
			"Jian|Liu": {
				{ORCID: "0000-0000-0000-0030", GivenNames: "Wei", FamilyNames: "Liu"},
				{ORCID: "0000-0000-0000-0031", GivenNames: "Xiao", FamilyNames: "Liu"},
			},
		},
	}

	res := newMatcher(reg).FindMatch(context.Background(), Candidate{Name: "Jian Liu"})
	assert.Equal(t, researcher.MatchMultiple, res.Status)
	assert.Empty(t, res.ORCID)
	assert.Len(t, res.Candidates, 2)
}

func TestFindMatch_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reg := &fakeRegistry{}
	res := New(reg, pace.New(1)).FindMatch(ctx, Candidate{Name: "Jian Liu"})
	assert.Equal(t, researcher.MatchError, res.Status)
}

func TestScoreCandidate(t *testing.T) {
	faculty := name.Parse("G.T. Montelione")
	tests := []struct {
		name    string
		profile orcid.Profile
		inst    string
		want    float64
	}{
		{"exact initials", orcid.Profile{GivenNames: "Gaetano T.", FamilyNames: "Montelione"}, "", 0.9},
		{"all initials present", orcid.Profile{GivenNames: "Gaetano Thomas X", FamilyNames: "Montelione"}, "", 0.8},
		{"first initial only", orcid.Profile{GivenNames: "Gary", FamilyNames: "Montelione"}, "", 0.7},
		{"family differs", orcid.Profile{GivenNames: "Gaetano T.", FamilyNames: "Monte"}, "", 0.4},
		{"institution bonus", orcid.Profile{GivenNames: "Gary", FamilyNames: "montelione", Institutions: []string{"RPI Chemistry"}}, "RPI", 0.9},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ScoreCandidate(faculty, tt.inst, tt.profile), 1e-9)
		})
	}
}
