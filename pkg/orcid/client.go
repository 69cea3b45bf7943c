// Package orcid provides a client for the ORCID public registry API.
package orcid

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
)

// Client defines the ORCID registry operations.
type Client interface {
	// Search finds registry profiles by given and family name.
	Search(ctx context.Context, given, family string) ([]Profile, error)
	// Employments returns the organisation names from a profile's employment history.
	Employments(ctx context.Context, orcidID string) ([]string, error)
}

// Profile is one candidate from an expanded search.
type Profile struct {
	ORCID        string   `json:"orcid-id"`
	GivenNames   string   `json:"given-names"`
	FamilyNames  string   `json:"family-names"`
	Institutions []string `json:"institution-name"`
}

type searchResponse struct {
	NumFound int       `json:"num-found"`
	Results  []Profile `json:"expanded-result"`
}

type organization struct {
	Name string `json:"name"`
}

type employmentSummary struct {
	Organization organization `json:"organization"`
}

type employmentsResponse struct {
	AffiliationGroups []struct {
		Summaries []struct {
			Employment employmentSummary `json:"employment-summary"`
		} `json:"summaries"`
	} `json:"affiliation-group"`
	// Older payloads list summaries directly.
	Summaries []employmentSummary `json:"employment-summary"`
}

// Option configures the ORCID client.
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

type httpClient struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a new ORCID public API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
		baseURL: "https://pub.orcid.org/v3.0",
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Search(ctx context.Context, given, family string) ([]Profile, error) {
	q := fmt.Sprintf("given-names:%s AND family-name:%s", solrTerm(given), solrTerm(family))
	reqURL := c.baseURL + "/expanded-search?" + url.Values{"q": {q}}.Encode()

	var resp searchResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, eris.Wrapf(err, "orcid: search %s %s", given, family)
	}

	out := make([]Profile, 0, len(resp.Results))
	for _, p := range resp.Results {
		p.ORCID = NormalizeID(p.ORCID)
		if p.ORCID == "" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *httpClient) Employments(ctx context.Context, orcidID string) ([]string, error) {
	reqURL := fmt.Sprintf("%s/%s/employments", c.baseURL, url.PathEscape(NormalizeID(orcidID)))

	var resp employmentsResponse
	if err := c.getJSON(ctx, reqURL, &resp); err != nil {
		return nil, eris.Wrapf(err, "orcid: employments %s", orcidID)
	}

	var names []string
	for _, g := range resp.AffiliationGroups {
		for _, s := range g.Summaries {
			if n := strings.TrimSpace(s.Employment.Organization.Name); n != "" {
				names = append(names, n)
			}
		}
	}
	for _, s := range resp.Summaries {
		if n := strings.TrimSpace(s.Organization.Name); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
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
		return resilience.StatusError("orcid", resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "decode response")
	}
	return nil
}

// NormalizeID strips URL prefixes from an ORCID so "https://orcid.org/0000-..."
// and "0000-..." compare equal.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	for _, prefix := range []string{"https://orcid.org/", "http://orcid.org/", "orcid.org/"} {
		if strings.HasPrefix(strings.ToLower(id), prefix) {
			id = id[len(prefix):]
			break
		}
	}
	return strings.ToUpper(id)
}

// solrTerm quotes multi-word values for the registry's query syntax.
func solrTerm(s string) string {
	s = strings.TrimSpace(s)
	if strings.ContainsAny(s, " \t") {
		return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
	}
	return s
}
