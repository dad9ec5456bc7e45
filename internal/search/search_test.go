// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pdiddy/paper-finder/pkg/types"
)

// mockBackend returns canned results or errors per venue code.
type mockBackend struct {
	mu      sync.Mutex
	results map[string][]types.Paper
	errs    map[string]error
	jobs    []Job

	// concurrency accounting
	active  atomic.Int32
	peak    atomic.Int32
	blockMS int
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Search(ctx context.Context, job Job) ([]types.Paper, error) {
	n := m.active.Add(1)
	for {
		p := m.peak.Load()
		if n <= p || m.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if m.blockMS > 0 {
		time.Sleep(time.Duration(m.blockMS) * time.Millisecond)
	}
	m.active.Add(-1)

	m.mu.Lock()
	m.jobs = append(m.jobs, job)
	m.mu.Unlock()

	if err := m.errs[job.Venue.Code]; err != nil {
		return nil, err
	}
	return m.results[job.Venue.Code], nil
}

func venueList(codes ...string) []types.Venue {
	venues := make([]types.Venue, len(codes))
	for i, c := range codes {
		venues[i] = types.Venue{Code: c, Name: c, Category: types.CategoryJournal}
	}
	return venues
}

func papersFor(code string, n int) []types.Paper {
	out := make([]types.Paper, n)
	for i := range out {
		out[i] = types.Paper{VenueCode: code, Title: fmt.Sprintf("%s paper %d", code, i)}
	}
	return out
}

func TestDispatchPartialFailure(t *testing.T) {
	backend := &mockBackend{
		results: map[string][]types.Paper{
			"A": papersFor("A", 2),
			"C": papersFor("C", 3),
		},
		errs: map[string]error{"B": fmt.Errorf("HTTP 500")},
	}
	d := NewDispatcher(backend, types.SearchConfig{MaxWorkers: 4, RowsPerVenue: 3})

	out := d.Dispatch(context.Background(), "q", venueList("A", "B", "C"), 2024, 2025, 0)

	if len(out.Papers) != 5 {
		t.Errorf("got %d papers, want 5", len(out.Papers))
	}
	if len(out.VenueErrors) != 1 {
		t.Fatalf("got %d venue errors, want 1", len(out.VenueErrors))
	}
	if _, ok := out.VenueErrors["B"]; !ok {
		t.Errorf("venue errors = %v, want entry for B", out.VenueErrors)
	}
	for _, p := range out.Papers {
		if p.VenueCode == "B" {
			t.Errorf("failed venue contributed paper %q", p.Title)
		}
	}
}

func TestDispatchAllVenuesFail(t *testing.T) {
	backend := &mockBackend{
		errs: map[string]error{
			"A": fmt.Errorf("boom"),
			"B": fmt.Errorf("boom"),
		},
	}
	d := NewDispatcher(backend, types.SearchConfig{MaxWorkers: 2, RowsPerVenue: 3})

	out := d.Dispatch(context.Background(), "q", venueList("A", "B"), 0, 0, 0)

	if len(out.Papers) != 0 {
		t.Errorf("got %d papers, want 0", len(out.Papers))
	}
	if len(out.VenueErrors) != 2 {
		t.Errorf("got %d venue errors, want 2", len(out.VenueErrors))
	}
}

func TestDispatchEmptyVenues(t *testing.T) {
	d := NewDispatcher(&mockBackend{}, types.SearchConfig{MaxWorkers: 2, RowsPerVenue: 3})
	out := d.Dispatch(context.Background(), "q", nil, 0, 0, 0)
	if len(out.Papers) != 0 || len(out.VenueErrors) != 0 {
		t.Errorf("empty dispatch returned %d papers, %d errors", len(out.Papers), len(out.VenueErrors))
	}
}

func TestDispatchBoundsConcurrency(t *testing.T) {
	backend := &mockBackend{blockMS: 20}
	d := NewDispatcher(backend, types.SearchConfig{MaxWorkers: 2, RowsPerVenue: 3})

	d.Dispatch(context.Background(), "q", venueList("A", "B", "C", "D", "E", "F"), 0, 0, 0)

	if peak := backend.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency %d exceeds MaxWorkers 2", peak)
	}
	if len(backend.jobs) != 6 {
		t.Errorf("%d venues searched, want 6", len(backend.jobs))
	}
}

func TestDispatchRows(t *testing.T) {
	tests := []struct {
		name     string
		rows     int
		wantRows int
	}{
		{"explicit rows", 7, 7},
		{"zero falls back to config", 0, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{}
			d := NewDispatcher(backend, types.SearchConfig{MaxWorkers: 1, RowsPerVenue: 3})
			d.Dispatch(context.Background(), "q", venueList("A"), 2024, 2025, tt.rows)

			if len(backend.jobs) != 1 {
				t.Fatalf("%d jobs, want 1", len(backend.jobs))
			}
			job := backend.jobs[0]
			if job.Rows != tt.wantRows {
				t.Errorf("job.Rows = %d, want %d", job.Rows, tt.wantRows)
			}
			if job.FromYear != 2024 || job.ToYear != 2025 {
				t.Errorf("job years = %d..%d, want 2024..2025", job.FromYear, job.ToYear)
			}
		})
	}
}
