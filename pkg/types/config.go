// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "paper-finder/0.1 (mailto:ops@example.org)").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// SearchConfig holds settings for the venue search fan-out.
type SearchConfig struct {
	HTTPConfig `yaml:",inline"`

	// RowsPerVenue caps the number of results each venue contributes (default 3).
	RowsPerVenue int `json:"rows_per_venue" yaml:"rows_per_venue"`

	// MaxWorkers bounds the number of concurrent venue searches (default 8).
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`

	// Mailto is appended to the CrossRef User-Agent for polite pool access.
	Mailto string `json:"mailto,omitempty" yaml:"mailto,omitempty"`

	// CatalogFile optionally overrides the built-in venue catalog with a
	// YAML file of venue descriptors.
	CatalogFile string `json:"catalog_file,omitempty" yaml:"catalog_file,omitempty"`
}

// EnrichConfig holds settings for the abstract enrichment stage.
type EnrichConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey is the Semantic Scholar API key. Without it the enricher
	// skips both tiers and leaves abstracts untouched.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BatchSize caps the DOIs per batched lookup request (default 100).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// RequestInterval is the fixed delay after each lookup request,
	// respecting the upstream 1 req/s budget (default 1100ms).
	RequestInterval time.Duration `json:"request_interval" yaml:"request_interval"`
}

// AIConfig holds shared settings for stages that call a chat-completion API.
type AIConfig struct {
	// BaseURL is the OpenAI-compatible endpoint.
	BaseURL string `json:"base_url" yaml:"base_url"`

	// Model is the model identifier.
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key. Empty disables the AI stages:
	// rewrite passes the query through and filtering keeps everything.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// FilterConfig holds settings for the relevance filter.
type FilterConfig struct {
	// MaxWorkers bounds concurrent classification calls (default 5).
	MaxWorkers int `json:"max_workers" yaml:"max_workers"`

	// FailOpen keeps a paper when its classification call fails. Disabling
	// it drops papers on classification errors instead.
	FailOpen bool `json:"fail_open" yaml:"fail_open"`
}

// QuotaConfig holds settings for the quota store.
type QuotaConfig struct {
	// DBPath is the SQLite database file for usage counters.
	DBPath string `json:"db_path" yaml:"db_path"`

	// AnonLimit is the run allowance per anonymous visitor (default 3).
	AnonLimit int `json:"anon_limit" yaml:"anon_limit"`

	// UserLimit is the run allowance per free registered user (default 50).
	UserLimit int `json:"user_limit" yaml:"user_limit"`
}

// ServerConfig holds settings for the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address (default ":8000").
	Addr string `json:"addr" yaml:"addr"`

	// AllowedOrigins lists CORS origins; empty allows all.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// PipelineConfig groups all stage configurations.
type PipelineConfig struct {
	Search SearchConfig `json:"search" yaml:"search"`
	Enrich EnrichConfig `json:"enrich" yaml:"enrich"`
	AI     AIConfig     `json:"ai" yaml:"ai"`
	Filter FilterConfig `json:"filter" yaml:"filter"`
	Quota  QuotaConfig  `json:"quota" yaml:"quota"`
	Server ServerConfig `json:"server" yaml:"server"`
}

// Defaults fills zero-valued fields with production defaults.
func (c *PipelineConfig) Defaults() {
	if c.Search.Timeout == 0 {
		c.Search.Timeout = 30 * time.Second
	}
	if c.Search.UserAgent == "" {
		c.Search.UserAgent = "paper-finder/0.1"
	}
	if c.Search.RowsPerVenue == 0 {
		c.Search.RowsPerVenue = 3
	}
	if c.Search.MaxWorkers == 0 {
		c.Search.MaxWorkers = 8
	}
	if c.Enrich.Timeout == 0 {
		c.Enrich.Timeout = 20 * time.Second
	}
	if c.Enrich.UserAgent == "" {
		c.Enrich.UserAgent = c.Search.UserAgent
	}
	if c.Enrich.BatchSize == 0 {
		c.Enrich.BatchSize = 100
	}
	if c.Enrich.RequestInterval == 0 {
		c.Enrich.RequestInterval = 1100 * time.Millisecond
	}
	if c.Filter.MaxWorkers == 0 {
		c.Filter.MaxWorkers = 5
	}
	if c.Quota.DBPath == "" {
		c.Quota.DBPath = "paper-finder.db"
	}
	if c.Quota.AnonLimit == 0 {
		c.Quota.AnonLimit = 3
	}
	if c.Quota.UserLimit == 0 {
		c.Quota.UserLimit = 50
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8000"
	}
}
