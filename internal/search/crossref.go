// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/pdiddy/paper-finder/internal/httputil"
	"github.com/pdiddy/paper-finder/pkg/types"
)

// crossRefAPIBase is the CrossRef works endpoint. Declared as a var so tests
// can substitute an httptest server.
var crossRefAPIBase = "https://api.crossref.org/works"

// Conference venues over-fetch by this factor before local name filtering.
const conferenceOverfetch = 3

// CrossRefBackend queries the CrossRef works API, one call per venue.
type CrossRefBackend struct {
	Client *http.Client
	Cfg    types.SearchConfig
}

// Name returns the backend identifier.
func (b *CrossRefBackend) Name() string { return "crossref" }

// Search queries CrossRef for one venue. Journals filter server-side on the
// exact container title; conferences query the container title loosely,
// over-fetch, and filter locally against the venue's name patterns.
func (b *CrossRefBackend) Search(ctx context.Context, job Job) ([]types.Paper, error) {
	var filters []string
	if job.FromYear > 0 {
		filters = append(filters, fmt.Sprintf("from-pub-date:%d", job.FromYear))
	}
	if job.ToYear > 0 {
		filters = append(filters, fmt.Sprintf("until-pub-date:%d", job.ToYear))
	}

	params := url.Values{}
	params.Set("query", job.Query)
	switch job.Venue.Category {
	case types.CategoryJournal:
		filters = append(filters, "type:journal-article", "container-title:"+job.Venue.Name)
		params.Set("rows", fmt.Sprintf("%d", job.Rows))
	case types.CategoryConference:
		filters = append(filters, "type:proceedings-article")
		params.Set("query.container-title", job.Venue.Name)
		params.Set("rows", fmt.Sprintf("%d", job.Rows*conferenceOverfetch))
	default:
		return nil, fmt.Errorf("unknown venue category %q", job.Venue.Category)
	}
	if len(filters) > 0 {
		params.Set("filter", strings.Join(filters, ","))
	}
	if b.Cfg.Mailto != "" {
		params.Set("mailto", b.Cfg.Mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, crossRefAPIBase+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", b.Cfg.UserAgent)

	resp, err := httputil.DoWithRetry(ctx, b.Client, req, 0)
	if err != nil {
		return nil, fmt.Errorf("CrossRef API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CrossRef API returned HTTP %d", resp.StatusCode)
	}

	var cr crossRefResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("parsing CrossRef response: %w", err)
	}

	var papers []types.Paper
	for _, item := range cr.Message.Items {
		title := "<no title>"
		if len(item.Title) > 0 {
			title = item.Title[0]
		}
		container := ""
		if len(item.ContainerTitle) > 0 {
			container = item.ContainerTitle[0]
		}

		// Conference results get a local container-title check because the
		// loose query.container-title match pulls in sibling workshops.
		if job.Venue.Category == types.CategoryConference &&
			!matchConference(job.Venue, container) {
			continue
		}

		p := types.Paper{
			VenueCode:     job.Venue.Code,
			VenueCategory: job.Venue.Category,
			Title:         title,
			Container:     container,
			DOI:           item.DOI,
		}

		if item.URL != "" {
			p.URL = item.URL
		} else if item.DOI != "" {
			p.URL = "https://doi.org/" + item.DOI
		}

		if len(item.Issued.DateParts) > 0 && len(item.Issued.DateParts[0]) > 0 {
			p.Year = item.Issued.DateParts[0][0]
		}

		for _, a := range item.Author {
			full := strings.TrimSpace(a.Given + " " + a.Family)
			if full != "" {
				p.Authors = append(p.Authors, full)
			}
		}

		p.SetAbstract(cleanHTML(item.Abstract), types.AbstractFromCrossRef)

		papers = append(papers, p)
		if len(papers) >= job.Rows {
			break
		}
	}
	return papers, nil
}

// matchConference reports whether a container title belongs to the venue.
// A venue with no configured patterns accepts everything.
func matchConference(v types.Venue, container string) bool {
	if container == "" {
		return false
	}
	if len(v.NameFilters) == 0 {
		return true
	}
	text := strings.ToLower(container)
	for _, pat := range v.NameFilters {
		if strings.Contains(text, pat) {
			return true
		}
	}
	return false
}

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// cleanHTML strips JATS/HTML markup that CrossRef embeds in abstracts.
func cleanHTML(raw string) string {
	if raw == "" {
		return ""
	}
	text := htmlTagPattern.ReplaceAllString(raw, " ")
	text = whitespacePattern.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// CrossRef API JSON structures.
type crossRefResponse struct {
	Message struct {
		Items []crossRefItem `json:"items"`
	} `json:"message"`
}

type crossRefItem struct {
	Title          []string        `json:"title"`
	ContainerTitle []string        `json:"container-title"`
	DOI            string          `json:"DOI"`
	URL            string          `json:"URL"`
	Abstract       string          `json:"abstract"`
	Author         []crossRefName  `json:"author"`
	Issued         crossRefPartial `json:"issued"`
}

type crossRefName struct {
	Given  string `json:"given"`
	Family string `json:"family"`
}

type crossRefPartial struct {
	DateParts [][]int `json:"date-parts"`
}
