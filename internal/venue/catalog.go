// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package venue holds the static catalog of searchable publication outlets
// and venue selection logic.
package venue

import (
	"fmt"
	"os"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paper-finder/pkg/types"
)

// Built-in catalog. A YAML catalog file can replace it entirely (see Load).
// Ordering matters: journals first, then conferences, each in declaration
// order, so venue selection is deterministic.
var builtin = []types.Venue{
	{Code: "JMLR", Name: "Journal of Machine Learning Research", Category: types.CategoryJournal},
	{Code: "TPAMI", Name: "IEEE Transactions on Pattern Analysis and Machine Intelligence", Category: types.CategoryJournal},
	{Code: "TMLR", Name: "Transactions on Machine Learning Research", Category: types.CategoryJournal},
	{Code: "AOS", Name: "Annals of Statistics", Category: types.CategoryJournal},
	{Code: "JASA", Name: "Journal of the American Statistical Association", Category: types.CategoryJournal},
	{Code: "NMI", Name: "Nature Machine Intelligence", Category: types.CategoryJournal},

	{Code: "NeurIPS", Name: "Neural Information Processing Systems", Category: types.CategoryConference,
		NameFilters: []string{"neural information processing"}},
	{Code: "ICML", Name: "International Conference on Machine Learning", Category: types.CategoryConference,
		NameFilters: []string{"international conference on machine learning"}},
	{Code: "ICLR", Name: "International Conference on Learning Representations", Category: types.CategoryConference,
		NameFilters: []string{"learning representations"}},
	{Code: "AAAI", Name: "AAAI Conference on Artificial Intelligence", Category: types.CategoryConference,
		NameFilters: []string{"aaai"}},
	{Code: "KDD", Name: "ACM SIGKDD Conference on Knowledge Discovery and Data Mining", Category: types.CategoryConference,
		NameFilters: []string{"knowledge discovery", "sigkdd"}},
	{Code: "ACL", Name: "Annual Meeting of the Association for Computational Linguistics", Category: types.CategoryConference,
		NameFilters: []string{"computational linguistics"}},
}

// Catalog is an immutable list of searchable venues.
type Catalog struct {
	venues []types.Venue
}

// Load returns the catalog from path, or the built-in catalog when path is
// empty. The file holds a YAML list of venue descriptors.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return &Catalog{venues: builtin}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading venue catalog %s: %w", path, err)
	}

	var venues []types.Venue
	if err := yaml.Unmarshal(data, &venues); err != nil {
		return nil, fmt.Errorf("parsing venue catalog %s: %w", path, err)
	}
	for i, v := range venues {
		if v.Code == "" || v.Name == "" {
			return nil, fmt.Errorf("venue catalog %s: entry %d missing code or name", path, i)
		}
		if v.Category != types.CategoryJournal && v.Category != types.CategoryConference {
			return nil, fmt.Errorf("venue catalog %s: entry %q has unknown category %q", path, v.Code, v.Category)
		}
	}
	return &Catalog{venues: venues}, nil
}

// All returns every venue in catalog order.
func (c *Catalog) All() []types.Venue {
	return c.venues
}

// Selection narrows a catalog to the venues one run should search.
type Selection struct {
	// Codes lists chosen venue codes; nil means all venues.
	Codes []string

	// Journals and Conferences toggle the two categories.
	Journals    bool
	Conferences bool
}

// Select returns the venues matching sel, preserving catalog order. An
// empty result is valid: the pipeline proceeds and produces zero records.
func (c *Catalog) Select(sel Selection) []types.Venue {
	var chosen map[string]bool
	if sel.Codes != nil {
		chosen = make(map[string]bool, len(sel.Codes))
		for _, code := range sel.Codes {
			chosen[code] = true
		}
	}

	var out []types.Venue
	for _, v := range c.venues {
		if v.Category == types.CategoryJournal && !sel.Journals {
			continue
		}
		if v.Category == types.CategoryConference && !sel.Conferences {
			continue
		}
		if chosen != nil && !chosen[v.Code] {
			continue
		}
		out = append(out, v)
	}
	return out
}
