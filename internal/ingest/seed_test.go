package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const seedDoc = `{
  "institution": "Rensselaer Polytechnic Institute",
  "department": "Biological Sciences",
  "visiting": [{"name": "Ada Visitor"}],
  "emeritus": [{"name": "Old Guard", "position": "Professor Emeritus"}],
  "core_faculty": [
    {"name": "  Gaetano Montelione ", "email": "gtm@rpi.edu"},
    {"name": ""},
    {"name": "Blanca Barquera", "department": "Chemistry", "institution": "RPI"}
  ],
  "affiliated_faculty": [{"name": "Jian Liu"}]
}`

func TestParseSeeds(t *testing.T) {
	seeds, err := ParseSeeds([]byte(seedDoc))
	require.NoError(t, err)
	require.Len(t, seeds, 5)

	var names, cats []string
	for _, s := range seeds {
		names = append(names, s.Name)
		cats = append(cats, s.Category)
	}
	assert.Equal(t, []string{"Gaetano Montelione", "Blanca Barquera", "Jian Liu", "Old Guard", "Ada Visitor"}, names)
	assert.Equal(t, []string{CategoryCore, CategoryCore, CategoryAffiliated, CategoryEmeritus, "visiting"}, cats)

	assert.Equal(t, "Rensselaer Polytechnic Institute", seeds[0].Institution)
	assert.Equal(t, "Biological Sciences", seeds[0].Department)
	assert.Equal(t, "gtm@rpi.edu", seeds[0].Email)
	assert.Equal(t, "RPI", seeds[1].Institution)
	assert.Equal(t, "Chemistry", seeds[1].Department)
	assert.Equal(t, "Professor Emeritus", seeds[3].Position)
}

func TestParseSeeds_Invalid(t *testing.T) {
	_, err := ParseSeeds([]byte(`{"core_faculty": {"name": "x"}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "core_faculty")

	_, err = ParseSeeds([]byte(`[`))
	require.Error(t, err)
}

func TestLoadSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faculty.json")
	require.NoError(t, os.WriteFile(path, []byte(seedDoc), 0o600))

	seeds, err := LoadSeeds(path)
	require.NoError(t, err)
	assert.Len(t, seeds, 5)

	_, err = LoadSeeds(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
