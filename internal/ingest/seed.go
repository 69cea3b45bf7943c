// Package ingest resolves faculty seeds to researcher records and pulls their
// publications, venues and coauthors from the registries.
package ingest

import (
	"encoding/json"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Faculty categories, in processing order.
const (
	CategoryCore       = "core_faculty"
	CategoryAffiliated = "affiliated_faculty"
	CategoryEmeritus   = "emeritus"
)

var categoryOrder = []string{CategoryCore, CategoryAffiliated, CategoryEmeritus}

// Seed is one faculty member from a listing.
type Seed struct {
	Name        string `json:"name"`
	Position    string `json:"position,omitempty"`
	Email       string `json:"email,omitempty"`
	Department  string `json:"department,omitempty"`
	Institution string `json:"institution,omitempty"`
	Category    string `json:"-"`
}

// seedFile groups seeds by category. A top-level institution and department
// fill in seeds that omit them.
type seedFile struct {
	Institution string
	Department  string
	Categories  map[string][]Seed
}

func (f *seedFile) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Categories = make(map[string][]Seed)
	for key, msg := range raw {
		switch key {
		case "institution":
			if err := json.Unmarshal(msg, &f.Institution); err != nil {
				return eris.Wrap(err, "institution")
			}
		case "department":
			if err := json.Unmarshal(msg, &f.Department); err != nil {
				return eris.Wrap(err, "department")
			}
		default:
			var seeds []Seed
			if err := json.Unmarshal(msg, &seeds); err != nil {
				return eris.Wrapf(err, "category %s", key)
			}
			f.Categories[key] = seeds
		}
	}
	return nil
}

// LoadSeeds reads a seed file.
func LoadSeeds(path string) ([]Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: read seeds %s", path)
	}
	return ParseSeeds(data)
}

// ParseSeeds decodes a seed document: an object of category name to seed
// list, optionally with top-level "institution" and "department" defaults.
// Known categories come first in their fixed order, then any others by name.
// Seeds without a name are dropped.
func ParseSeeds(data []byte) ([]Seed, error) {
	var f seedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "ingest: parse seeds")
	}

	order := append([]string(nil), categoryOrder...)
	var extra []string
	for cat := range f.Categories {
		if !slices.Contains(categoryOrder, cat) {
			extra = append(extra, cat)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)

	var out []Seed
	for _, cat := range order {
		for _, s := range f.Categories[cat] {
			s.Name = strings.TrimSpace(s.Name)
			if s.Name == "" {
				continue
			}
			s.Category = cat
			if strings.TrimSpace(s.Institution) == "" {
				s.Institution = f.Institution
			}
			if strings.TrimSpace(s.Department) == "" {
				s.Department = f.Department
			}
			out = append(out, s)
		}
	}
	return out, nil
}
