// Package name parses free-text personal names into structured components and
// derives the distinctiveness scores and search variants used for identity
// matching.
package name

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Parsed holds the components of a personal name. Middle and Suffix are empty
// when absent.
type Parsed struct {
	Given  string `json:"given_name"`
	Family string `json:"family_name"`
	Middle string `json:"middle_names,omitempty"`
	Suffix string `json:"name_suffix,omitempty"`
}

// suffixes are the generational suffixes recognised at the end of a name,
// compared lower-cased with periods removed.
var suffixes = map[string]bool{
	"jr":  true,
	"sr":  true,
	"ii":  true,
	"iii": true,
	"iv":  true,
	"v":   true,
}

// Parse splits a full name into given, middle, family and suffix. A single
// token is used as both given and family name. Hyphenated family names stay
// whole.
func Parse(full string) Parsed {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return Parsed{}
	case 1:
		return Parsed{Given: parts[0], Family: parts[0]}
	}

	var p Parsed
	if IsSuffix(parts[len(parts)-1]) {
		p.Suffix = parts[len(parts)-1]
		parts = parts[:len(parts)-1]
	}

	p.Given = parts[0]
	p.Family = parts[len(parts)-1]
	if len(parts) > 2 {
		p.Middle = strings.Join(parts[1:len(parts)-1], " ")
	}
	return p
}

// IsSuffix reports whether token is a generational suffix such as "Jr." or "III".
func IsSuffix(token string) bool {
	return suffixes[strings.ToLower(strings.ReplaceAll(token, ".", ""))]
}

// Normalize collapses runs of whitespace and trims the ends.
func Normalize(full string) string {
	return strings.Join(strings.Fields(full), " ")
}

// MiddleTokens returns the individual middle-name tokens.
func (p Parsed) MiddleTokens() []string {
	return strings.Fields(p.Middle)
}

// Initials returns the upper-cased first letter of every word in s, treating
// periods and hyphens as word breaks, so "G.T." and "Gaetano T" both yield "GT".
func Initials(s string) string {
	var b strings.Builder
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '.' || r == '-'
	}) {
		r := []rune(Fold(w))
		if len(r) > 0 {
			b.WriteRune(unicode.ToUpper(r[0]))
		}
	}
	return b.String()
}

// Fold lower-cases s and strips combining marks so that "José" and "Jose"
// compare equal.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(strings.TrimSpace(out))
}
