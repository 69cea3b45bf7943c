package fields

import (
	"context"
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// FieldDef is one node of the field taxonomy. Weight applies to every keyword
// of the field and defaults to 1.
type FieldDef struct {
	Name      string     `yaml:"name"`
	Weight    float64    `yaml:"weight,omitempty"`
	Keywords  []string   `yaml:"keywords,omitempty"`
	Subfields []FieldDef `yaml:"subfields,omitempty"`
}

// Taxonomy is the field hierarchy seeded into the database.
type Taxonomy struct {
	Fields []FieldDef `yaml:"fields"`
}

// SeedResult counts what SeedTaxonomy wrote.
type SeedResult struct {
	Fields   int   `json:"fields"`
	Keywords int64 `json:"keywords"`
}

// DefaultTaxonomy returns the built-in taxonomy.
func DefaultTaxonomy() *Taxonomy {
	t, err := ParseTaxonomy(defaultTaxonomy)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadTaxonomy reads a taxonomy file. A missing file yields the built-in
// taxonomy.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("taxonomy file not found, using built-in taxonomy", zap.String("path", path))
		return DefaultTaxonomy(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "fields: read taxonomy %s", path)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes a taxonomy document. Field names must be present and
// unique across the whole tree; keywords are lower-cased.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var t Taxonomy
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, eris.Wrap(err, "fields: parse taxonomy")
	}

	seen := make(map[string]bool)
	var check func(defs []FieldDef) error
	check = func(defs []FieldDef) error {
		for i := range defs {
			d := &defs[i]
			d.Name = strings.TrimSpace(d.Name)
			if d.Name == "" {
				return eris.New("fields: taxonomy field without a name")
			}
			key := strings.ToLower(d.Name)
			if seen[key] {
				return eris.Errorf("fields: duplicate taxonomy field %q", d.Name)
			}
			seen[key] = true
			if d.Weight < 0 {
				return eris.Errorf("fields: negative weight for %q", d.Name)
			}
			if d.Weight == 0 {
				d.Weight = 1
			}
			for j, kw := range d.Keywords {
				d.Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
			}
			if err := check(d.Subfields); err != nil {
				return err
			}
		}
		return nil
	}
	if err := check(t.Fields); err != nil {
		return nil, err
	}
	return &t, nil
}

// SeedTaxonomy upserts every field, parents before children, then its
// keywords. Seeding is idempotent.
func SeedTaxonomy(ctx context.Context, s Store, t *Taxonomy) (*SeedResult, error) {
	res := &SeedResult{}
	var kws []Keyword

	var walk func(defs []FieldDef, parent *int64) error
	walk = func(defs []FieldDef, parent *int64) error {
		for _, d := range defs {
			id, err := s.UpsertField(ctx, d.Name, parent)
			if err != nil {
				return err
			}
			res.Fields++
			for _, kw := range d.Keywords {
				if kw == "" {
					continue
				}
				kws = append(kws, Keyword{FieldID: id, Keyword: kw, Weight: d.Weight})
			}
			if err := walk(d.Subfields, &id); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(t.Fields, nil); err != nil {
		return nil, err
	}

	n, err := s.AddKeywords(ctx, kws)
	if err != nil {
		return nil, err
	}
	res.Keywords = n

	zap.L().Info("taxonomy seeded", zap.Int("fields", res.Fields), zap.Int64("keywords", res.Keywords))
	return res, nil
}
