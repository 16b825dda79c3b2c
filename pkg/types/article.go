// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types holds shared data structures used across pipeline stages.
package types

import "time"

// Article is one help-center document as returned by the source API.
// ID is assigned by the source system and is stable across runs; it is
// the join key between the source, the local mirror, the tracking
// ledger, and the remote corpus.
type Article struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	URL       string    `json:"html_url" yaml:"url"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// Body is the rendered markdown payload. This is what gets
	// fingerprinted and uploaded, not the raw HTML.
	Body string `json:"-" yaml:"-"`
}

// LogicalName returns the filename an article is known by locally and
// in the remote corpus lookup table.
func (a Article) LogicalName() string {
	return a.ID + ".md"
}
