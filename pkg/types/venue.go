// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// VenueCategory distinguishes journals from conference proceedings. The two
// categories need different query shaping against the search backend.
type VenueCategory string

const (
	CategoryJournal    VenueCategory = "JOURNAL"
	CategoryConference VenueCategory = "CONFERENCE"
)

// Venue describes one searchable publication outlet. Venues are loaded once
// at process start and never mutated.
type Venue struct {
	// Code is the short identifier used in requests and results (e.g. "ICML").
	Code string `json:"code" yaml:"code"`

	// Name is the full display name used to build container-title queries.
	Name string `json:"name" yaml:"name"`

	// Category selects journal or conference query shaping.
	Category VenueCategory `json:"category" yaml:"category"`

	// NameFilters holds lowercase substrings used to locally filter
	// conference results whose container title does not belong to this
	// venue. Empty means no local filtering. Journals never set it.
	NameFilters []string `json:"name_filters,omitempty" yaml:"name_filters,omitempty"`
}
