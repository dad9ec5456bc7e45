// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pdiddy/paper-finder/internal/httputil"
	"github.com/pdiddy/paper-finder/pkg/types"
)

// semanticAPIBase is the Semantic Scholar graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

// SemanticScholarClient implements Lookuper against the Semantic Scholar API.
// Every request is followed by a fixed sleep to respect the 1 req/s budget.
type SemanticScholarClient struct {
	Client *http.Client
	Cfg    types.EnrichConfig
}

// Available reports whether lookups can be issued. Without an API key the
// enricher skips both tiers.
func (c *SemanticScholarClient) Available() bool {
	return c.Cfg.APIKey != ""
}

func (c *SemanticScholarClient) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", c.Cfg.UserAgent)
	req.Header.Set("x-api-key", c.Cfg.APIKey)
	resp, err := httputil.DoWithRetry(ctx, c.Client, req, 0)

	// Sleep after every request, success or not, to stay inside the
	// request budget. Cancellation cuts the sleep short.
	if c.Cfg.RequestInterval > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(c.Cfg.RequestInterval):
		}
	}
	return resp, err
}

// BatchLookup fetches abstracts for the given DOIs via the paper/batch
// endpoint, chunked by the configured batch size. It returns a map keyed by
// lowercase DOI. Chunk failures are skipped: a partial map is still useful,
// and the single-lookup tier covers the remainder.
func (c *SemanticScholarClient) BatchLookup(ctx context.Context, dois []string) (map[string]string, error) {
	unique := dedupe(dois)
	if len(unique) == 0 {
		return map[string]string{}, nil
	}

	batchSize := c.Cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	abstracts := make(map[string]string)
	for start := 0; start < len(unique); start += batchSize {
		end := min(start+batchSize, len(unique))
		chunk := unique[start:end]

		ids := make([]string, len(chunk))
		for i, d := range chunk {
			ids[i] = "DOI:" + d
		}
		body, err := json.Marshal(map[string][]string{"ids": ids})
		if err != nil {
			return abstracts, fmt.Errorf("encoding batch request: %w", err)
		}

		reqURL := semanticAPIBase + "/paper/batch?fields=abstract"
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
		if err != nil {
			return abstracts, fmt.Errorf("creating batch request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.do(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return abstracts, ctx.Err()
			}
			continue
		}
		func() {
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return
			}
			// The response is order-aligned with the requested ids; null
			// entries mark papers the API does not know.
			var papers []*struct {
				Abstract string `json:"abstract"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&papers); err != nil {
				return
			}
			for i, paper := range papers {
				if i >= len(chunk) || paper == nil || paper.Abstract == "" {
					continue
				}
				abstracts[strings.ToLower(chunk[i])] = paper.Abstract
			}
		}()
	}
	return abstracts, nil
}

// SingleLookup fetches one abstract: by DOI when present, then by title
// search. A title match is accepted only if expectYear is zero or the
// matched year lies within ±2 of it. An empty result with nil error means
// no abstract was found.
func (c *SemanticScholarClient) SingleLookup(ctx context.Context, doi, title string, expectYear int) (string, error) {
	if doi != "" {
		abs, err := c.lookupByDOI(ctx, doi)
		if err != nil {
			return "", err
		}
		if abs != "" {
			return abs, nil
		}
	}
	if title != "" {
		return c.lookupByTitle(ctx, title, expectYear)
	}
	return "", nil
}

func (c *SemanticScholarClient) lookupByDOI(ctx context.Context, doi string) (string, error) {
	reqURL := semanticAPIBase + "/paper/DOI:" + url.PathEscape(doi) + "?fields=title,abstract,year"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating lookup request: %w", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("DOI lookup: %w", err)
	}
	defer resp.Body.Close()

	// 404 means the DOI is unknown; the caller falls back to title search.
	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var paper struct {
		Abstract string `json:"abstract"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&paper); err != nil {
		return "", fmt.Errorf("parsing lookup response: %w", err)
	}
	return paper.Abstract, nil
}

func (c *SemanticScholarClient) lookupByTitle(ctx context.Context, title string, expectYear int) (string, error) {
	params := url.Values{
		"query":  {title},
		"limit":  {"1"},
		"fields": {"title,abstract,year"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, semanticAPIBase+"/paper/search?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("creating search request: %w", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("title search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}

	var sr struct {
		Data []struct {
			Abstract string `json:"abstract"`
			Year     int    `json:"year"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("parsing search response: %w", err)
	}
	if len(sr.Data) == 0 {
		return "", nil
	}

	match := sr.Data[0]
	if expectYear != 0 && match.Year != 0 && abs(match.Year-expectYear) > 2 {
		return "", nil
	}
	return match.Abstract, nil
}

// dedupe drops empty and repeated DOIs while preserving order.
func dedupe(dois []string) []string {
	seen := make(map[string]bool, len(dois))
	var out []string
	for _, d := range dois {
		if d == "" || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	return out
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
