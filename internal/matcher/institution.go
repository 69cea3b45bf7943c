package matcher

import (
	"strings"

	"github.com/sells-group/scholar-cli/internal/name"
)

// abbreviations maps institution words to their common short forms.
var abbreviations = map[string][]string{
	"university": {"univ", "u"},
	"institute":  {"inst"},
	"technology": {"tech"},
}

// insignificant words never count toward an institution match.
var insignificant = map[string]bool{
	"of": true, "the": true, "and": true, "at": true, "for": true, "in": true, "&": true,
}

// minSharedWords is how many words two institution names must share.
const minSharedWords = 2

// institutionWords returns the folded significant words of an institution
// name. Punctuation around words is dropped.
func institutionWords(s string) []string {
	fields := strings.Fields(name.Fold(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,;:()'\"")
		if f == "" || insignificant[f] {
			continue
		}
		out = append(out, f)
	}
	return out
}

// expandedWords returns the significant words of s plus their abbreviations
// and the full forms of any abbreviations.
func expandedWords(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range institutionWords(s) {
		set[w] = true
		for full, abbrevs := range abbreviations {
			if w == full {
				for _, a := range abbrevs {
					set[a] = true
				}
			}
			for _, a := range abbrevs {
				if w == a {
					set[full] = true
				}
			}
		}
	}
	return set
}

// SameInstitution reports whether an employment organisation name matches an
// institution: at least two significant words in common after abbreviation
// expansion.
func SameInstitution(institution, organization string) bool {
	want := expandedWords(institution)
	if len(want) == 0 {
		return false
	}
	shared := make(map[string]bool)
	for _, w := range institutionWords(organization) {
		if want[w] {
			shared[w] = true
		}
	}
	return len(shared) >= minSharedWords
}

// institutionOverlap reports whether any significant word of institution
// appears in one of the candidate's affiliations.
func institutionOverlap(institution string, affiliations []string) bool {
	words := institutionWords(institution)
	if len(words) == 0 {
		return false
	}
	for _, aff := range affiliations {
		have := make(map[string]bool)
		for _, w := range institutionWords(aff) {
			have[w] = true
		}
		for _, w := range words {
			if have[w] {
				return true
			}
		}
	}
	return false
}
