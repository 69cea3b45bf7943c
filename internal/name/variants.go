package name

import (
	"strings"
	"unicode"
)

// Variant is one search form of a name. The registry is queried with Given
// and Family only; Middle lists the middle names or initials a returned
// profile's given names must carry for the variant to accept it.
type Variant struct {
	Text   string
	Given  string
	Family string
	Middle []string
}

// Variants returns the search forms of a name ordered from widest recall to
// narrowest: "first last", "first M.N. last" when middle names exist, then
// the full name. Duplicate forms are dropped.
func Variants(full string) []Variant {
	tokens := strings.Fields(full)
	switch len(tokens) {
	case 0:
		return nil
	case 1:
		return []Variant{{Text: tokens[0], Given: tokens[0], Family: tokens[0]}}
	}

	p := Parse(full)

	given := strings.Trim(p.Given, ".")
	base := joinNonEmpty(given, p.Family)
	if given == p.Family {
		base = given
	}
	out := []Variant{{Text: base, Given: given, Family: p.Family}}

	if middle := p.MiddleTokens(); len(middle) > 0 {
		initials := make([]string, 0, len(middle))
		names := make([]string, 0, len(middle))
		for _, m := range middle {
			m = strings.Trim(m, ".")
			if r := []rune(m); len(r) > 0 {
				initials = append(initials, string(r[0]))
				names = append(names, m)
			}
		}
		if len(initials) > 0 {
			text := joinNonEmpty(given+" "+strings.Join(initials, ".")+".", p.Family)
			out = append(out, Variant{Text: text, Given: given, Family: p.Family, Middle: initials})
		}
		out = append(out, Variant{
			Text:   joinNonEmpty(given, p.Middle, p.Family, p.Suffix),
			Given:  given,
			Family: p.Family,
			Middle: names,
		})
	} else if p.Suffix != "" {
		out = append(out, Variant{Text: joinNonEmpty(given, p.Family, p.Suffix), Given: given, Family: p.Family})
	}

	seen := make(map[string]bool, len(out))
	uniq := out[:0]
	for _, v := range out {
		if seen[v.Text] {
			continue
		}
		seen[v.Text] = true
		uniq = append(uniq, v)
	}
	return uniq
}

// Accepts reports whether a profile's given names satisfy the variant's
// middle names. A one-letter entry matches any later given name starting
// with that letter; a longer entry must match a later given name exactly.
// Variants without middle names accept everything.
func (v Variant) Accepts(givenNames string) bool {
	if len(v.Middle) == 0 {
		return true
	}
	have := strings.FieldsFunc(Fold(givenNames), func(r rune) bool {
		return unicode.IsSpace(r) || r == '.'
	})
	if len(have) < 2 {
		return false
	}
	have = have[1:]
	for _, want := range v.Middle {
		w := Fold(want)
		found := false
		for _, h := range have {
			if w == h || (len([]rune(w)) == 1 && strings.HasPrefix(h, w)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// VariantStrings returns just the text of each variant.
func VariantStrings(full string) []string {
	vs := Variants(full)
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.Text
	}
	return out
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
