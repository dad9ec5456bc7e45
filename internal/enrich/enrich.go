// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package enrich fills missing paper abstracts from a secondary source using
// a two-tier, cost-ordered strategy: one batched DOI lookup first, then
// per-paper lookups for the remainder.
package enrich

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pdiddy/paper-finder/pkg/types"
)

// Lookuper is the abstract-lookup capability the enricher consumes.
type Lookuper interface {
	Available() bool
	BatchLookup(ctx context.Context, dois []string) (map[string]string, error)
	SingleLookup(ctx context.Context, doi, title string, expectYear int) (string, error)
}

// Enricher fills missing abstracts without ever overwriting present ones.
// Re-running it over an already-enriched set is a no-op.
type Enricher struct {
	lookups Lookuper
	logger  *slog.Logger
}

// New returns an Enricher over the given lookup capability.
func New(lookups Lookuper) *Enricher {
	return &Enricher{
		lookups: lookups,
		logger:  slog.Default().With("component", "enrich"),
	}
}

// Enrich mutates papers in place, filling as many missing abstracts as
// possible, and returns the same slice. Tier one issues one batched lookup
// for all papers that have a DOI; tier two walks the remainder sequentially.
// Per-paper failures in tier two are logged and skipped.
// The notify callback, when non-nil, receives a fine-grained progress
// message after each paper in the sequential tier.
func (e *Enricher) Enrich(ctx context.Context, papers []*types.Paper, notify func(message string)) []*types.Paper {
	var missing []*types.Paper
	for _, p := range papers {
		if !p.HasAbstract() {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return papers
	}
	if !e.lookups.Available() {
		e.logger.Warn("abstract lookup unavailable, skipping enrichment", "missing", len(missing))
		return papers
	}
	e.logger.Info("enriching abstracts", "missing", len(missing))

	e.batchTier(ctx, missing)
	e.singleTier(ctx, missing, notify)

	filled := 0
	for _, p := range missing {
		if p.HasAbstract() {
			filled++
		}
	}
	e.logger.Info("enrichment done", "filled", filled, "missing", len(missing))
	return papers
}

// batchTier resolves every paper with a DOI through one batched lookup.
func (e *Enricher) batchTier(ctx context.Context, missing []*types.Paper) {
	var withDOI []*types.Paper
	var dois []string
	for _, p := range missing {
		if p.DOI != "" {
			withDOI = append(withDOI, p)
			dois = append(dois, p.DOI)
		}
	}
	if len(withDOI) == 0 {
		return
	}

	abstracts, err := e.lookups.BatchLookup(ctx, dois)
	if err != nil {
		e.logger.Warn("batch lookup failed, falling back to single lookups", "err", err)
		return
	}

	updated := 0
	for _, p := range withDOI {
		// Re-check before writing: the abstract may have been set by the
		// search backend on a duplicate record with the same DOI.
		if p.HasAbstract() {
			continue
		}
		if p.SetAbstract(abstracts[strings.ToLower(p.DOI)], types.AbstractFromBatch) {
			updated++
		}
	}
	e.logger.Info("batch tier done", "filled", updated, "requested", len(withDOI))
}

// singleTier walks every still-missing paper sequentially, looking up by DOI
// first and by title as a last resort. The loop stops only on cancellation.
func (e *Enricher) singleTier(ctx context.Context, missing []*types.Paper, notify func(message string)) {
	var rest []*types.Paper
	for _, p := range missing {
		if !p.HasAbstract() {
			rest = append(rest, p)
		}
	}
	if len(rest) == 0 {
		return
	}

	updated := 0
	for i, p := range rest {
		if ctx.Err() != nil {
			e.logger.Warn("single tier cancelled", "done", i, "total", len(rest))
			return
		}

		text, err := e.lookups.SingleLookup(ctx, p.DOI, p.Title, p.Year)
		if err != nil {
			e.logger.Debug("single lookup failed", "title", p.Title, "err", err)
		} else {
			source := types.AbstractFromTitle
			if p.DOI != "" {
				source = types.AbstractFromSingle
			}
			// SetAbstract re-checks that the abstract is still unset.
			if p.SetAbstract(text, source) {
				updated++
			}
		}

		if notify != nil {
			notify(fmt.Sprintf("Fetching abstracts... (%d/%d)", i+1, len(rest)))
		}
	}
	e.logger.Info("single tier done", "filled", updated, "total", len(rest))
}
