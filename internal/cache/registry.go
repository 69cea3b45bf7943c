package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/scholar-cli/pkg/openalex"
	"github.com/sells-group/scholar-cli/pkg/orcid"
)

const (
	nsEmployments = "orcid.employments"
	nsVenues      = "openalex.venue"
)

// cachedORCID serves Employments from the cache. Search always goes upstream.
type cachedORCID struct {
	orcid.Client
	cache *Cache
	ttl   time.Duration
}

// ORCID wraps client so employment histories are cached for ttl.
func ORCID(client orcid.Client, c *Cache, ttl time.Duration) orcid.Client {
	return &cachedORCID{Client: client, cache: c, ttl: ttl}
}

func (o *cachedORCID) Employments(ctx context.Context, orcidID string) ([]string, error) {
	key := orcid.NormalizeID(orcidID)
	var orgs []string
	if hit, err := o.cache.Get(ctx, nsEmployments, key, &orgs); err != nil {
		zap.L().Warn("cache read failed", zap.String("orcid", key), zap.Error(err))
	} else if hit {
		return orgs, nil
	}

	orgs, err := o.Client.Employments(ctx, orcidID)
	if err != nil {
		return nil, err
	}
	if err := o.cache.Set(ctx, nsEmployments, key, orgs, o.ttl); err != nil {
		zap.L().Warn("cache write failed", zap.String("orcid", key), zap.Error(err))
	}
	return orgs, nil
}

// cachedOpenAlex serves Venue from the cache. Works always goes upstream.
type cachedOpenAlex struct {
	openalex.Client
	cache *Cache
	ttl   time.Duration
}

// OpenAlex wraps client so venue metrics are cached for ttl.
func OpenAlex(client openalex.Client, c *Cache, ttl time.Duration) openalex.Client {
	return &cachedOpenAlex{Client: client, cache: c, ttl: ttl}
}

func (o *cachedOpenAlex) Venue(ctx context.Context, venueID string) (*openalex.Venue, error) {
	key := openalex.ShortID(venueID)
	var v openalex.Venue
	if hit, err := o.cache.Get(ctx, nsVenues, key, &v); err != nil {
		zap.L().Warn("cache read failed", zap.String("venue", key), zap.Error(err))
	} else if hit {
		return &v, nil
	}

	venue, err := o.Client.Venue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if err := o.cache.Set(ctx, nsVenues, key, venue, o.ttl); err != nil {
		zap.L().Warn("cache write failed", zap.String("venue", key), zap.Error(err))
	}
	return venue, nil
}
