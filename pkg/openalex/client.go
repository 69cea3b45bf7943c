// Package openalex provides a client for the OpenAlex works and sources API.
package openalex

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/scholar-cli/internal/resilience"
	"github.com/sells-group/scholar-cli/pkg/orcid"
)

// FirstCursor starts cursor pagination.
const FirstCursor = "*"

// Client defines the OpenAlex operations.
type Client interface {
	// Works fetches one page of works authored by the given ORCID. Pass
	// FirstCursor for the first page; an empty NextCursor ends pagination.
	Works(ctx context.Context, orcidID, cursor string) (*WorksPage, error)
	// Venue fetches metrics for a publication venue (OpenAlex source).
	Venue(ctx context.Context, venueID string) (*Venue, error)
}

// Option configures the OpenAlex client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithMailto identifies the caller for the OpenAlex polite pool.
func WithMailto(email string) Option {
	return func(c *httpClient) {
		c.mailto = email
	}
}

// WithPerPage sets the page size for works pagination (max 200).
func WithPerPage(n int) Option {
	return func(c *httpClient) {
		if n > 0 && n <= 200 {
			c.perPage = n
		}
	}
}

type httpClient struct {
	baseURL string
	mailto  string
	perPage int
	http    *http.Client
}

// NewClient creates a new OpenAlex client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://api.openalex.org",
		perPage: 100,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Works(ctx context.Context, orcidID, cursor string) (*WorksPage, error) {
	if cursor == "" {
		cursor = FirstCursor
	}
	params := url.Values{
		"filter":   {"author.orcid:" + orcid.NormalizeID(orcidID)},
		"per-page": {fmt.Sprintf("%d", c.perPage)},
		"cursor":   {cursor},
	}
	if c.mailto != "" {
		params.Set("mailto", c.mailto)
	}

	var resp worksResponse
	if err := c.getJSON(ctx, c.baseURL+"/works?"+params.Encode(), &resp); err != nil {
		return nil, eris.Wrapf(err, "openalex: works for %s", orcidID)
	}

	page := &WorksPage{
		Works:      resp.Results,
		NextCursor: resp.Meta.NextCursor,
		Count:      resp.Meta.Count,
	}
	if len(resp.Results) == 0 {
		page.NextCursor = ""
	}
	return page, nil
}

func (c *httpClient) Venue(ctx context.Context, venueID string) (*Venue, error) {
	id := ShortID(venueID)
	if id == "" {
		return nil, eris.New("openalex: empty venue id")
	}
	reqURL := c.baseURL + "/sources/" + url.PathEscape(id)
	if c.mailto != "" {
		reqURL += "?" + url.Values{"mailto": {c.mailto}}.Encode()
	}

	var v Venue
	if err := c.getJSON(ctx, reqURL, &v); err != nil {
		return nil, eris.Wrapf(err, "openalex: venue %s", id)
	}
	return &v, nil
}

func (c *httpClient) getJSON(ctx context.Context, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return eris.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "request failed"), 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return resilience.StatusError("openalex", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// ShortID strips the "https://openalex.org/" prefix from an entity id.
func ShortID(id string) string {
	id = strings.TrimSpace(id)
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	return id
}
