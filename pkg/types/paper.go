// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the paper-finder pipeline.
package types

// AbstractSource tags which stage or lookup tier populated a paper's abstract.
type AbstractSource string

const (
	// AbstractFromCrossRef means the search response itself carried the abstract.
	AbstractFromCrossRef AbstractSource = "crossref"

	// AbstractFromBatch means the batched DOI lookup supplied the abstract.
	AbstractFromBatch AbstractSource = "batch"

	// AbstractFromSingle means a per-paper DOI lookup supplied the abstract.
	AbstractFromSingle AbstractSource = "single"

	// AbstractFromTitle means a title search supplied the abstract.
	AbstractFromTitle AbstractSource = "title"
)

// Paper is one bibliographic record flowing through the pipeline.
// Identity is structural: venue code plus DOI, or venue code plus title when
// the DOI is absent. Records never merge across venues.
type Paper struct {
	// VenueCode identifies the venue this record was found in (e.g. "NeurIPS").
	VenueCode string `json:"venue_code" yaml:"venue_code"`

	// VenueCategory is the venue's category: journal or conference.
	VenueCategory VenueCategory `json:"venue_category" yaml:"venue_category"`

	// Title is the paper title as returned by the search backend.
	Title string `json:"title" yaml:"title"`

	// Year is the publication year, zero when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Container is the journal or proceedings name.
	Container string `json:"container" yaml:"container"`

	// DOI is the paper's DOI, empty when the backend supplied none.
	DOI string `json:"doi,omitempty" yaml:"doi,omitempty"`

	// URL links to the paper, typically via doi.org.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Authors lists the paper authors in source order.
	Authors []string `json:"authors" yaml:"authors"`

	// Abstract is set at most once: either by the search backend or by one
	// enrichment tier. Once populated it is never overwritten.
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// AbstractSource records which tier populated Abstract.
	AbstractSource AbstractSource `json:"abstract_source,omitempty" yaml:"abstract_source,omitempty"`
}

// HasAbstract reports whether the record already carries an abstract.
func (p *Paper) HasAbstract() bool {
	return p.Abstract != ""
}

// SetAbstract populates the abstract exactly once and reports whether the
// write happened. A record whose abstract is already set is left untouched,
// so re-running enrichment on the same record is a no-op.
func (p *Paper) SetAbstract(text string, source AbstractSource) bool {
	if p.Abstract != "" || text == "" {
		return false
	}
	p.Abstract = text
	p.AbstractSource = source
	return true
}
