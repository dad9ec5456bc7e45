// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pdiddy/paper-finder/internal/pipeline"
	"github.com/pdiddy/paper-finder/internal/quota"
	"github.com/pdiddy/paper-finder/internal/search"
	"github.com/pdiddy/paper-finder/internal/venue"
	"github.com/pdiddy/paper-finder/pkg/types"
)

const anonID = "123e4567-e89b-12d3-a456-426614174000"

type fakeRewriter struct{}

func (f *fakeRewriter) Rewrite(ctx context.Context, query string) string {
	return "keywords for " + query
}

type fakeSearcher struct {
	calls atomic.Int32
}

func (f *fakeSearcher) Dispatch(ctx context.Context, query string, venues []types.Venue, fromYear, toYear, rows int) search.Output {
	f.calls.Add(1)
	return search.Output{
		Papers: []types.Paper{
			{VenueCode: "JMLR", Title: "Paper One", DOI: "10.1/1"},
			{VenueCode: "ICML", Title: "Paper Two", DOI: "10.1/2"},
		},
		VenueErrors: map[string]error{},
	}
}

type fakeEnricher struct{}

func (f *fakeEnricher) Enrich(ctx context.Context, papers []*types.Paper, notify func(message string)) []*types.Paper {
	for _, p := range papers {
		p.SetAbstract("An abstract.", types.AbstractFromBatch)
	}
	return papers
}

type fakeFilter struct{}

func (f *fakeFilter) Apply(ctx context.Context, query string, papers []*types.Paper) []*types.Paper {
	return papers
}

// newTestServer wires fake stages behind a live HTTP listener with a real
// SQLite quota store.
func newTestServer(t *testing.T) (*httptest.Server, *fakeSearcher) {
	t.Helper()

	store, err := quota.NewStore(types.QuotaConfig{
		DBPath:    filepath.Join(t.TempDir(), "quota.db"),
		AnonLimit: 3,
		UserLimit: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	catalog, err := venue.Load("")
	if err != nil {
		t.Fatal(err)
	}

	searcher := &fakeSearcher{}
	enricher := &fakeEnricher{}
	filter := &fakeFilter{}
	rewriter := &fakeRewriter{}

	s := New(Deps{
		Orchestrator: pipeline.New(rewriter, searcher, enricher, filter),
		Rewriter:     rewriter,
		Searcher:     searcher,
		Enricher:     enricher,
		Filter:       filter,
		Catalog:      catalog,
		Quota:        store,
	}, types.ServerConfig{})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return srv, searcher
}

func postJSON(t *testing.T, url string, body any, headers map[string]string) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	Type string
	Data map[string]any
}

func parseSSE(t *testing.T, body io.Reader) []sseEvent {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatal(err)
	}

	var events []sseEvent
	for _, frame := range strings.Split(string(raw), "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		var ev sseEvent
		for _, line := range strings.Split(frame, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Type = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev.Data); err != nil {
					t.Fatalf("bad event data %q: %v", line, err)
				}
			}
		}
		events = append(events, ev)
	}
	return events
}

func TestPaperSearchStream(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/paper_search",
		map[string]any{"query": "causal inference"},
		map[string]string{"X-Anon-Id": anonID})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
	if got := resp.Header.Get("X-Quota-Remaining"); got != "2" {
		t.Errorf("X-Quota-Remaining = %q, want 2", got)
	}

	events := parseSSE(t, resp.Body)
	if len(events) < 2 {
		t.Fatalf("got %d events", len(events))
	}

	// Exactly one result event, and it is last.
	results := 0
	for _, e := range events {
		if e.Type == "result" {
			results++
		}
	}
	if results != 1 {
		t.Fatalf("%d result events, want 1", results)
	}
	last := events[len(events)-1]
	if last.Type != "result" {
		t.Fatalf("last event type = %s, want result", last.Type)
	}

	if last.Data["success"] != true {
		t.Errorf("result success = %v", last.Data["success"])
	}
	if last.Data["keywords"] != "keywords for causal inference" {
		t.Errorf("result keywords = %v", last.Data["keywords"])
	}
	if got := last.Data["total_papers_before_filter"].(float64); got != 2 {
		t.Errorf("total before = %v", got)
	}
	if got := last.Data["quota_remaining"].(float64); got != 2 {
		t.Errorf("result quota_remaining = %v", got)
	}

	// Earlier events are progress frames; the first carries the allowance.
	first := events[0]
	if first.Type != "progress" {
		t.Fatalf("first event type = %s", first.Type)
	}
	if got := first.Data["quota_remaining"].(float64); got != 2 {
		t.Errorf("first progress quota_remaining = %v", got)
	}
	for _, e := range events[:len(events)-1] {
		if e.Type != "progress" {
			t.Errorf("non-progress event %q before the result", e.Type)
		}
	}
}

func TestPaperSearchQuotaExceeded(t *testing.T) {
	srv, searcher := newTestServer(t)
	headers := map[string]string{"X-Anon-Id": anonID}

	for i := 0; i < 3; i++ {
		resp := postJSON(t, srv.URL+"/v1/paper_search", map[string]any{"query": "q"}, headers)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("run %d status = %d", i+1, resp.StatusCode)
		}
	}
	callsBefore := searcher.calls.Load()

	resp := postJSON(t, srv.URL+"/v1/paper_search", map[string]any{"query": "q"}, headers)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("denial Content-Type = %q, want plain JSON", ct)
	}
	var denial struct {
		Code      string `json:"code"`
		Message   string `json:"message"`
		Remaining int    `json:"remaining"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&denial); err != nil {
		t.Fatal(err)
	}
	if denial.Code != "QUOTA_EXCEEDED" || denial.Remaining != 0 || denial.Message == "" {
		t.Errorf("denial = %+v", denial)
	}

	// The denied run must not reach any pipeline stage.
	if searcher.calls.Load() != callsBefore {
		t.Error("denied request reached the search stage")
	}
}

func TestPaperSearchNoIdentity(t *testing.T) {
	srv, _ := newTestServer(t)

	// No identity headers: the run passes without consuming quota.
	for i := 0; i < 5; i++ {
		resp := postJSON(t, srv.URL+"/v1/paper_search", map[string]any{"query": "q"}, nil)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("run %d status = %d", i+1, resp.StatusCode)
		}
	}
}

func TestQuotaEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	// Info is read-only: repeated calls report the same allowance.
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/quota", nil)
		req.Header.Set("X-Anon-Id", anonID)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		var body struct {
			UserType  string `json:"user_type"`
			Remaining int    `json:"remaining"`
			Limit     int    `json:"limit"`
		}
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatal(err)
		}
		if body.UserType != "anon" || body.Remaining != 3 || body.Limit != 3 {
			t.Errorf("quota info = %+v", body)
		}
	}
}

func TestQueryRewriteEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/query_rewrite", map[string]any{"query": "q"}, nil)
	defer resp.Body.Close()

	var body struct {
		OriginalQuery string `json:"original_query"`
		Keywords      string `json:"keywords"`
		Success       bool   `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.Keywords != "keywords for q" || body.OriginalQuery != "q" {
		t.Errorf("rewrite response = %+v", body)
	}
}

func TestRetrievalEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/v1/paper_retrieval", map[string]any{"query": "q"}, nil)
	defer resp.Body.Close()

	var body struct {
		TotalPapers int            `json:"total_papers"`
		Papers      []*types.Paper `json:"papers"`
		Success     bool           `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.TotalPapers != 2 {
		t.Errorf("retrieval response = %+v", body)
	}
	for _, p := range body.Papers {
		if !p.HasAbstract() {
			t.Errorf("paper %q not enriched", p.Title)
		}
	}
}

func TestFilteringEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	papers := []map[string]any{{"title": "A", "abstract": "x"}}
	resp := postJSON(t, srv.URL+"/v1/paper_filtering",
		map[string]any{"user_query": "q", "papers": papers}, nil)
	defer resp.Body.Close()

	var body struct {
		OriginalCount int  `json:"original_count"`
		FilteredCount int  `json:"filtered_count"`
		Success       bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if !body.Success || body.OriginalCount != 1 || body.FilteredCount != 1 {
		t.Errorf("filtering response = %+v", body)
	}
}

func TestBadRequestBody(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/v1/paper_search", "application/json",
		strings.NewReader("not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestIdentityFromRequest(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		wantKind quota.Kind
		wantID   string
	}{
		{"bearer token", map[string]string{"Authorization": "Bearer tok-123"}, quota.KindUser, "tok-123"},
		{"anon uuid", map[string]string{"X-Anon-Id": anonID}, quota.KindAnon, anonID},
		{"bearer wins over anon", map[string]string{
			"Authorization": "Bearer tok-123",
			"X-Anon-Id":     anonID,
		}, quota.KindUser, "tok-123"},
		{"malformed anon id", map[string]string{"X-Anon-Id": "not-a-uuid"}, quota.KindNone, ""},
		{"empty bearer", map[string]string{"Authorization": "Bearer "}, quota.KindNone, ""},
		{"no headers", nil, quota.KindNone, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/v1/paper_search", nil)
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			id := identityFromRequest(r)
			if id.Kind != tt.wantKind || id.ID != tt.wantID {
				t.Errorf("identity = %+v, want kind %q id %q", id, tt.wantKind, tt.wantID)
			}
		})
	}
}

func TestLooksLikeUUID(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{anonID, true},
		{"", false},
		{"short", false},
		{strings.Repeat("a", 36), false},
		{fmt.Sprintf("%36s", "x-y-z-w"), false},
	}
	for _, tt := range tests {
		if got := looksLikeUUID(tt.in); got != tt.want {
			t.Errorf("looksLikeUUID(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
