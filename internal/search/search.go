// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search fans a query out across venues and gathers the results.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pdiddy/paper-finder/pkg/types"
)

// Backend searches a single venue. The CrossRef implementation is the
// production backend; tests substitute mocks.
type Backend interface {
	Name() string
	Search(ctx context.Context, job Job) ([]types.Paper, error)
}

// Job holds the parameters for one venue search. Jobs are created per venue
// per run and discarded once the dispatch completes.
type Job struct {
	Query    string
	Venue    types.Venue
	FromYear int
	ToYear   int
	Rows     int
}

// Output holds the flattened records and per-venue errors of one dispatch.
type Output struct {
	// Papers is the union of all succeeding venues' records. Cross-venue
	// order follows completion order, not submission order; within one
	// venue, upstream result order is preserved.
	Papers []types.Paper

	// VenueErrors maps venue code to the error that venue's search hit.
	// A venue in error contributes zero records; the dispatch itself
	// still succeeds.
	VenueErrors map[string]error
}

// Dispatcher fans a single query out to N venue searches concurrently.
type Dispatcher struct {
	backend Backend
	cfg     types.SearchConfig
	logger  *slog.Logger
}

// NewDispatcher returns a Dispatcher over the given backend.
func NewDispatcher(backend Backend, cfg types.SearchConfig) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		cfg:     cfg,
		logger:  slog.Default().With("component", "search"),
	}
}

// Dispatch searches every venue concurrently, bounded by MaxWorkers, and
// returns the flattened results. rows caps each venue's contribution; zero
// falls back to the configured default. Individual venue failures are
// recorded and logged but never abort sibling searches; Dispatch returns
// successfully even when every venue fails.
func (d *Dispatcher) Dispatch(ctx context.Context, query string, venues []types.Venue, fromYear, toYear, rows int) Output {
	if len(venues) == 0 {
		return Output{VenueErrors: map[string]error{}}
	}
	if rows <= 0 {
		rows = d.cfg.RowsPerVenue
	}

	workers := d.cfg.MaxWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(venues) {
		workers = len(venues)
	}

	// Each venue owns one slot, written by exactly one goroutine, so the
	// slices need no locking beyond the WaitGroup barrier.
	perVenue := make([][]types.Paper, len(venues))
	errs := make([]error, len(venues))

	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, v := range venues {
		wg.Add(1)
		go func(i int, v types.Venue) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			job := Job{
				Query:    query,
				Venue:    v,
				FromYear: fromYear,
				ToYear:   toYear,
				Rows:     rows,
			}
			papers, err := d.backend.Search(ctx, job)
			if err != nil {
				errs[i] = fmt.Errorf("venue %s: %w", v.Code, err)
				d.logger.Error("venue search failed", "venue", v.Code, "err", err)
				return
			}
			perVenue[i] = papers
		}(i, v)
	}
	wg.Wait()

	out := Output{VenueErrors: map[string]error{}}
	for i, papers := range perVenue {
		out.Papers = append(out.Papers, papers...)
		if errs[i] != nil {
			out.VenueErrors[venues[i].Code] = errs[i]
		}
	}
	return out
}
