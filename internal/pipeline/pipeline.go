// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences the paper search stages: query rewrite, venue
// search fan-out, abstract enrichment, and relevance filtering. One
// orchestrator serves both the streaming and one-shot entry points; the
// latter just pass a no-op progress sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pdiddy/paper-finder/internal/search"
	"github.com/pdiddy/paper-finder/pkg/types"
)

// Rewriter rewrites a free-form query into search keywords. Failure inside
// the implementation degrades to returning the query unchanged.
type Rewriter interface {
	Rewrite(ctx context.Context, query string) string
}

// Searcher fans a query out across venues. *search.Dispatcher is the
// production implementation.
type Searcher interface {
	Dispatch(ctx context.Context, query string, venues []types.Venue, fromYear, toYear, rows int) search.Output
}

// Enricher fills missing abstracts, reporting fine-grained progress.
type Enricher interface {
	Enrich(ctx context.Context, papers []*types.Paper, notify func(message string)) []*types.Paper
}

// Filter keeps the papers relevant to the query.
type Filter interface {
	Apply(ctx context.Context, query string, papers []*types.Paper) []*types.Paper
}

// Orchestrator wires the four stages together. Construct one at process
// start and share it across runs; it holds no per-run state.
type Orchestrator struct {
	rewriter Rewriter
	searcher Searcher
	enricher Enricher
	filter   Filter
	logger   *slog.Logger
}

// New returns an Orchestrator over the given stage implementations.
func New(rewriter Rewriter, searcher Searcher, enricher Enricher, filter Filter) *Orchestrator {
	return &Orchestrator{
		rewriter: rewriter,
		searcher: searcher,
		enricher: enricher,
		filter:   filter,
		logger:   slog.Default().With("component", "pipeline"),
	}
}

// Request holds the parameters of one pipeline run.
type Request struct {
	Query    string
	Venues   []types.Venue
	FromYear int
	ToYear   int

	// RowsPerVenue caps each venue's contribution; zero uses the
	// configured default.
	RowsPerVenue int

	// QuotaRemaining, when non-nil, is attached to the run's first
	// progress event.
	QuotaRemaining *int
}

// Result is the consolidated output of one run.
type Result struct {
	OriginalQuery string
	Keywords      string
	TotalBefore   int
	TotalAfter    int
	Papers        []*types.Paper
}

// Run executes the pipeline. Progress events are delivered to sink in order
// from the calling goroutine; stages running on background workers hand
// events through the progress bridge. Stage-level failures degrade: the
// rewrite falls back to the original query, failed venues contribute zero
// records, filtering falls back to the unfiltered set. Only a failure with
// no degraded behavior returns an error, and no events follow it.
func (o *Orchestrator) Run(ctx context.Context, req Request, sink types.ProgressSink) (*Result, error) {
	if sink == nil {
		sink = types.DiscardProgress
	}

	// Rewrite. The first event of the run carries the quota allowance.
	sink(types.ProgressEvent{
		Step: types.StepRewrite, Message: "Rewriting query...",
		Status: types.StatusRunning, QuotaRemaining: req.QuotaRemaining,
	})
	keywords := o.rewriter.Rewrite(ctx, req.Query)
	sink(types.ProgressEvent{Step: types.StepRewrite, Message: "Query rewritten", Status: types.StatusCompleted})

	result := &Result{OriginalQuery: req.Query, Keywords: keywords}

	// An empty venue selection completes immediately with zero papers.
	if len(req.Venues) == 0 {
		sink(types.ProgressEvent{Step: types.StepCompleted, Message: "Search finished", Status: types.StatusCompleted})
		return result, nil
	}

	// Search fan-out.
	sink(types.ProgressEvent{Step: types.StepSearch, Message: "Searching venues...", Status: types.StatusRunning})
	out := o.searcher.Dispatch(ctx, keywords, req.Venues, req.FromYear, req.ToYear, req.RowsPerVenue)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled during search: %w", err)
	}
	papers := make([]*types.Paper, len(out.Papers))
	for i := range out.Papers {
		papers[i] = &out.Papers[i]
	}
	o.logger.Info("search done", "papers", len(papers), "venue_errors", len(out.VenueErrors))
	sink(types.ProgressEvent{Step: types.StepSearch, Message: "Venue search finished", Status: types.StatusCompleted})

	// Enrichment runs bridged: it is the slowest stage and the only one
	// reporting per-record progress.
	sink(types.ProgressEvent{Step: types.StepAbstract, Message: "Fetching abstracts...", Status: types.StatusRunning})
	err := runBridged(sink, func(notify func(types.ProgressEvent)) error {
		o.enricher.Enrich(ctx, papers, func(message string) {
			notify(types.ProgressEvent{Step: types.StepAbstract, Message: message, Status: types.StatusRunning})
		})
		return ctx.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("run cancelled during enrichment: %w", err)
	}
	sink(types.ProgressEvent{Step: types.StepAbstract, Message: "Abstracts fetched", Status: types.StatusCompleted})

	// Filtering. Papers without an abstract never reach the classifier.
	sink(types.ProgressEvent{Step: types.StepFilter, Message: "Filtering papers...", Status: types.StatusRunning})
	var withAbstract []*types.Paper
	for _, p := range papers {
		if p.HasAbstract() {
			withAbstract = append(withAbstract, p)
		}
	}
	kept := o.filter.Apply(ctx, req.Query, withAbstract)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("run cancelled during filtering: %w", err)
	}
	sink(types.ProgressEvent{Step: types.StepFilter, Message: "Papers filtered", Status: types.StatusCompleted})

	result.TotalBefore = len(papers)
	result.TotalAfter = len(kept)
	result.Papers = kept

	sink(types.ProgressEvent{Step: types.StepCompleted, Message: "Search finished", Status: types.StatusCompleted})
	return result, nil
}
