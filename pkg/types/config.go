// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "helpsync/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// ScrapeConfig holds settings for the help-center scrape stage.
type ScrapeConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the help-center articles endpoint
	// (e.g. "https://support.example.com/api/v2/help_center/en-us/articles").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// PerPage is the page size used when listing articles (default 30).
	PerPage int `json:"per_page" yaml:"per_page"`

	// MirrorDir is the directory where rendered markdown is persisted
	// before reconciliation (default "articles").
	MirrorDir string `json:"mirror_dir" yaml:"mirror_dir"`
}

// CorpusConfig holds settings for the remote corpus (file store + search index).
type CorpusConfig struct {
	HTTPConfig `yaml:",inline"`

	// BaseURL is the remote API root (e.g. "https://api.example.com/v1").
	BaseURL string `json:"base_url" yaml:"base_url"`

	// IndexID identifies the search index entries are added to.
	IndexID string `json:"index_id" yaml:"index_id"`

	// APIKey is the bearer token for the remote API. Usually loaded
	// from .secrets/corpus-api-key rather than the config file.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// SyncConfig holds settings for the reconciliation stage.
type SyncConfig struct {
	// Workers is the size of the reconciliation worker pool (default 5).
	Workers int `json:"workers" yaml:"workers"`

	// LedgerPath is the tracking ledger file (default "upload_tracking.json").
	LedgerPath string `json:"ledger_path" yaml:"ledger_path"`
}

// JobLogConfig holds settings for the job history store.
type JobLogConfig struct {
	// Dir is the directory holding the job history database (default "logs").
	Dir string `json:"dir" yaml:"dir"`
}

// JobConfig groups all stage configurations for the sync job.
type JobConfig struct {
	Scrape ScrapeConfig `json:"scrape" yaml:"scrape"`
	Corpus CorpusConfig `json:"corpus" yaml:"corpus"`
	Sync   SyncConfig   `json:"sync" yaml:"sync"`
	JobLog JobLogConfig `json:"job_log" yaml:"job_log"`
}
