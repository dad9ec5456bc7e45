// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/pdiddy/paper-finder/internal/pipeline"
	"github.com/pdiddy/paper-finder/internal/quota"
	"github.com/pdiddy/paper-finder/internal/venue"
	"github.com/pdiddy/paper-finder/pkg/types"
)

// searchRequest is the request body shared by the retrieval and full-search
// endpoints.
type searchRequest struct {
	Query            string   `json:"query"`
	Venues           []string `json:"venues"`
	StartYear        int      `json:"start_year"`
	EndYear          int      `json:"end_year"`
	RowsEach         int      `json:"rows_each"`
	SearchJournal    *bool    `json:"search_journal"`
	SearchConference *bool    `json:"search_conference"`
}

// selection converts request toggles to a venue selection. Absent toggles
// default to true.
func (r *searchRequest) selection() venue.Selection {
	journals, conferences := true, true
	if r.SearchJournal != nil {
		journals = *r.SearchJournal
	}
	if r.SearchConference != nil {
		conferences = *r.SearchConference
	}
	return venue.Selection{Codes: r.Venues, Journals: journals, Conferences: conferences}
}

func (r *searchRequest) years() (from, to int) {
	from, to = r.StartYear, r.EndYear
	if from == 0 {
		from = 2024
	}
	if to == 0 {
		to = 2025
	}
	return from, to
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "paper-finder API",
		"endpoints": map[string]string{
			"v1/paper_search":    "POST - full pipeline run, streamed as SSE",
			"v1/query_rewrite":   "POST - query rewrite only",
			"v1/paper_retrieval": "POST - venue search plus enrichment",
			"v1/paper_filtering": "POST - relevance filtering only",
			"v1/quota":           "GET - remaining allowance, no consumption",
		},
	})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	id := identityFromRequest(r)
	decision, err := s.deps.Quota.Info(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "quota lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user_type":  string(decision.Kind),
		"remaining":  decision.Remaining,
		"limit":      decision.Limit,
		"used_count": decision.Used,
		"plan":       decision.Plan,
	})
}

func (s *Server) handleQueryRewrite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	keywords := s.deps.Rewriter.Rewrite(r.Context(), req.Query)
	writeJSON(w, http.StatusOK, map[string]any{
		"original_query": req.Query,
		"keywords":       keywords,
		"success":        true,
	})
}

// handleRetrieval runs venue search plus enrichment without rewriting or
// filtering.
func (s *Server) handleRetrieval(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	venues := s.deps.Catalog.Select(req.selection())
	from, to := req.years()
	out := s.deps.Searcher.Dispatch(r.Context(), req.Query, venues, from, to, req.RowsEach)

	papers := make([]*types.Paper, len(out.Papers))
	for i := range out.Papers {
		papers[i] = &out.Papers[i]
	}
	papers = s.deps.Enricher.Enrich(r.Context(), papers, nil)

	writeJSON(w, http.StatusOK, map[string]any{
		"query":        req.Query,
		"total_papers": len(papers),
		"papers":       papers,
		"success":      true,
	})
}

func (s *Server) handleFiltering(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserQuery string         `json:"user_query"`
		Papers    []*types.Paper `json:"papers"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	kept := s.deps.Filter.Apply(r.Context(), req.UserQuery, req.Papers)
	if kept == nil {
		kept = []*types.Paper{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"original_count": len(req.Papers),
		"filtered_count": len(kept),
		"papers":         kept,
		"success":        true,
	})
}

// handlePaperSearch runs the full pipeline and streams progress over SSE.
// The quota is checked, and consumed, before any stage runs; a denial is a
// plain 402 JSON response, not a stream.
func (s *Server) handlePaperSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	id := identityFromRequest(r)
	if id.Kind == quota.KindNone {
		s.logger.Warn("request without identity, quota not enforced")
	}
	decision, err := s.deps.Quota.CheckAndConsume(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "quota check failed")
		return
	}
	if !decision.Allowed {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"code":      "QUOTA_EXCEEDED",
			"message":   quota.DeniedMessage(decision.Kind),
			"remaining": 0,
		})
		return
	}

	w.Header().Set("X-Quota-Remaining", strconv.Itoa(decision.Remaining))
	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	from, to := req.years()
	remaining := decision.Remaining
	result, err := s.deps.Orchestrator.Run(r.Context(), pipeline.Request{
		Query:          req.Query,
		Venues:         s.deps.Catalog.Select(req.selection()),
		FromYear:       from,
		ToYear:         to,
		RowsPerVenue:   req.RowsEach,
		QuotaRemaining: &remaining,
	}, func(e types.ProgressEvent) {
		sse.event("progress", e)
	})
	if err != nil {
		s.logger.Error("pipeline run failed", "err", err)
		sse.terminalEvent("error", map[string]any{
			"error":   err.Error(),
			"message": fmt.Sprintf("search failed: %v", err),
		})
		return
	}

	papers := result.Papers
	if papers == nil {
		papers = []*types.Paper{}
	}
	sse.terminalEvent("result", map[string]any{
		"original_query":             result.OriginalQuery,
		"keywords":                   result.Keywords,
		"total_papers_before_filter": result.TotalBefore,
		"total_papers_after_filter":  result.TotalAfter,
		"papers":                     papers,
		"success":                    true,
		"message": fmt.Sprintf("search finished: %d papers found, %d kept after filtering",
			result.TotalBefore, result.TotalAfter),
		"quota_remaining": decision.Remaining,
	})
}
