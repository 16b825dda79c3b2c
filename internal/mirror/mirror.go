// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mirror persists fetched article content to disk before
// reconciliation. Fingerprints are computed from the mirrored copy, not
// the transient fetch buffer, so repeated runs hash identical bytes.
package mirror

import (
	"fmt"
	"os"
	"path/filepath"
)

// Mirror is a flat on-disk cache of rendered markdown, one file per
// article id.
type Mirror struct {
	dir string
}

// New returns a Mirror rooted at dir, creating it if needed.
func New(dir string) (*Mirror, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating mirror directory %s: %w", dir, err)
	}
	return &Mirror{dir: dir}, nil
}

// Dir returns the mirror root.
func (m *Mirror) Dir() string { return m.dir }

// Path returns the on-disk location for an article id.
func (m *Mirror) Path(id string) string {
	return filepath.Join(m.dir, id+".md")
}

// Write persists payload for an article id via a temp file and rename,
// so a crash mid-write never leaves a truncated mirror copy.
func (m *Mirror) Write(id string, payload []byte) error {
	tmp, err := os.CreateTemp(m.dir, ".mirror-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(payload)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing article %s: %w", id, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, m.Path(id)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming article %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a mirrored copy exists for an article id.
func (m *Mirror) Exists(id string) bool {
	_, err := os.Stat(m.Path(id))
	return err == nil
}

// Read returns the mirrored payload for an article id.
func (m *Mirror) Read(id string) ([]byte, error) {
	data, err := os.ReadFile(m.Path(id))
	if err != nil {
		return nil, fmt.Errorf("reading article %s: %w", id, err)
	}
	return data, nil
}
