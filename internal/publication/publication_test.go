package publication

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseList(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"json array", `["protein NMR", "structural genomics"]`, []string{"protein NMR", "structural genomics"}},
		{"malformed json falls back to commas", `["protein NMR", structural genomics`, []string{"protein NMR", "structural genomics"}},
		{"plain delimited", "machine learning, optimization ,", []string{"machine learning", "optimization"}},
		{"json string scalar", `"graph theory, combinatorics"`, []string{"graph theory", "combinatorics"}},
		{"empty", "  ", nil},
		{"null", "null", nil},
		{"empty array", "[]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseList(tt.raw)); diff != "" {
				t.Errorf("ParseList(%q) mismatch (-want +got):\n%s", tt.raw, diff)
			}
		})
	}
}

func TestPlaceholderTitle(t *testing.T) {
	title := PlaceholderTitle("10.1000/xyz")
	assert.Equal(t, "Publication with DOI: 10.1000/xyz", title)
	assert.True(t, IsPlaceholderTitle(title))
	assert.False(t, IsPlaceholderTitle("Protein folding at scale"))
}

func TestEncodeList(t *testing.T) {
	assert.Nil(t, encodeList(nil))
	assert.JSONEq(t, `["a","b"]`, string(encodeList([]string{"a", "b"})))
}

func TestCanonical(t *testing.T) {
	a, b := Canonical(9, 3)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(9), b)
	a, b = Canonical(3, 9)
	assert.Equal(t, int64(3), a)
	assert.Equal(t, int64(9), b)
}

func TestAuthored_Lists(t *testing.T) {
	a := Authored{KeywordsRaw: `["nmr"]`, ConceptsRaw: "Biology, Chemistry"}
	assert.Equal(t, []string{"nmr"}, a.Keywords())
	assert.Equal(t, []string{"Biology", "Chemistry"}, a.Concepts())
}
