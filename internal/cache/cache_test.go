package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/pkg/openalex"
	"github.com/sells-group/scholar-cli/pkg/orcid"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() }) //nolint:errcheck
	return c
}

func TestCache_SetAndGet(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "k", []string{"MIT", "RPI"}, time.Hour))

	var got []string
	hit, err := c.Get(ctx, "ns", "k", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"MIT", "RPI"}, got)
}

func TestCache_Missing(t *testing.T) {
	c := newTestCache(t)

	var got []string
	hit, err := c.Get(context.Background(), "ns", "nope", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Nil(t, got)
}

func TestCache_NamespacesAreSeparate(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "a", "k", 1, time.Hour))

	var n int
	hit, err := c.Get(ctx, "b", "k", &n)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCache_Overwrite(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "ns", "k", 1, time.Hour))
	require.NoError(t, c.Set(ctx, "ns", "k", 2, time.Hour))

	var n int
	hit, err := c.Get(ctx, "ns", "k", &n)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 2, n)
}

func TestCache_ExpiredAndPurge(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ns", "old", 1, -time.Hour))
	require.NoError(t, c.Set(ctx, "ns", "fresh", 2, time.Hour))

	var n int
	hit, err := c.Get(ctx, "ns", "old", &n)
	require.NoError(t, err)
	assert.False(t, hit)

	purged, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, purged)

	hit, err = c.Get(ctx, "ns", "fresh", &n)
	require.NoError(t, err)
	assert.True(t, hit)
}

type countingORCID struct {
	employments int
	fail        bool
}

func (c *countingORCID) Search(context.Context, string, string) ([]orcid.Profile, error) {
	return nil, nil
}

func (c *countingORCID) Employments(context.Context, string) ([]string, error) {
	c.employments++
	if c.fail {
		return nil, errors.New("503")
	}
	return []string{"Rensselaer Polytechnic Institute"}, nil
}

func TestORCID_CachesEmployments(t *testing.T) {
	upstream := &countingORCID{}
	client := ORCID(upstream, newTestCache(t), time.Hour)
	ctx := context.Background()

	for _, id := range []string{"https://orcid.org/0000-0001-2345-678x", "0000-0001-2345-678X"} {
		orgs, err := client.Employments(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, []string{"Rensselaer Polytechnic Institute"}, orgs)
	}
	assert.Equal(t, 1, upstream.employments)
}

func TestORCID_ErrorsAreNotCached(t *testing.T) {
	upstream := &countingORCID{fail: true}
	client := ORCID(upstream, newTestCache(t), time.Hour)
	ctx := context.Background()

	_, err := client.Employments(ctx, "0000-0001")
	require.Error(t, err)
	_, err = client.Employments(ctx, "0000-0001")
	require.Error(t, err)
	assert.Equal(t, 2, upstream.employments)
}

type countingOpenAlex struct {
	venues int
}

func (c *countingOpenAlex) Works(context.Context, string, string) (*openalex.WorksPage, error) {
	return &openalex.WorksPage{}, nil
}

func (c *countingOpenAlex) Venue(_ context.Context, id string) (*openalex.Venue, error) {
	c.venues++
	return &openalex.Venue{
		ID:           id,
		DisplayName:  "Nature",
		WorksCount:   100,
		CitedByCount: 5000,
		XConcepts:    []openalex.Concept{{DisplayName: "Biology", Level: 0}},
	}, nil
}

func TestOpenAlex_CachesVenues(t *testing.T) {
	upstream := &countingOpenAlex{}
	client := OpenAlex(upstream, newTestCache(t), time.Hour)
	ctx := context.Background()

	first, err := client.Venue(ctx, "https://openalex.org/S137773608")
	require.NoError(t, err)
	second, err := client.Venue(ctx, "S137773608")
	require.NoError(t, err)

	assert.Equal(t, 1, upstream.venues)
	assert.Equal(t, first, second)
	assert.Equal(t, []string{"Biology"}, second.Subjects())
}
