package name

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestVariants_WithMiddleNames(t *testing.T) {
	got := Variants("Gaetano Tomaso Montelione")
	want := []Variant{
		{Text: "Gaetano Montelione", Given: "Gaetano", Family: "Montelione"},
		{Text: "Gaetano T. Montelione", Given: "Gaetano", Family: "Montelione", Middle: []string{"T"}},
		{Text: "Gaetano Tomaso Montelione", Given: "Gaetano", Family: "Montelione", Middle: []string{"Tomaso"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Variants mismatch (-want +got):\n%s", diff)
	}
}

func TestVariants_MultipleInitials(t *testing.T) {
	assert.Equal(t,
		[]string{"John Smith", "John A.R. Smith", "John Alan Robert Smith"},
		VariantStrings("John Alan Robert Smith"))
}

func TestVariants_InitialMiddleDeduplicated(t *testing.T) {
	assert.Equal(t, []string{"John Smith", "John A. Smith"}, VariantStrings("John A. Smith"))
}

func TestVariants_TwoTokens(t *testing.T) {
	assert.Equal(t, []string{"John Smith"}, VariantStrings("John Smith"))
}

func TestVariants_Suffix(t *testing.T) {
	assert.Equal(t, []string{"John Smith", "John Smith Jr."}, VariantStrings("John Smith Jr."))
}

func TestVariants_SingleAndEmpty(t *testing.T) {
	assert.Equal(t, []string{"Aristotle"}, VariantStrings("Aristotle"))
	assert.Empty(t, Variants(""))
}

func TestVariants_QueryWithFirstNameOnly(t *testing.T) {
	for _, v := range Variants("John Alan Robert Smith Jr.") {
		assert.Equal(t, "John", v.Given, v.Text)
		assert.Equal(t, "Smith", v.Family, v.Text)
	}
}

func TestVariant_Accepts(t *testing.T) {
	initials := Variants("Gaetano T. Montelione")[1]
	full := Variants("Gaetano Tomaso Montelione")[2]

	tests := []struct {
		name   string
		v      Variant
		given  string
		accept bool
	}{
		{"no middle accepts all", Variants("Gaetano Montelione")[0], "", true},
		{"initial matches full middle", initials, "Gaetano Thomas", true},
		{"initial matches dotted initial", initials, "Gaetano T.", true},
		{"initial mismatch", initials, "Gaetano R.", false},
		{"profile lacks middle", initials, "Gaetano", false},
		{"full middle exact", full, "gaetano tomaso", true},
		{"full middle needs whole name", full, "Gaetano T.", false},
		{"first name is not a middle", initials, "Tomas", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.accept, tt.v.Accepts(tt.given))
		})
	}
}
