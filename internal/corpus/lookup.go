// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package corpus

import (
	"context"
	"fmt"
	"log/slog"
)

// Lookup is an in-memory table of live index entries keyed by remote
// filename. Built once per run so per-article existence checks are map
// hits instead of remote round-trips.
type Lookup map[string]Entry

// Find resolves a logical markdown name to its index entry, applying
// the remote suffix mapping.
func (l Lookup) Find(logicalName string) (Entry, bool) {
	e, ok := l[RemoteName(logicalName)]
	return e, ok
}

// BuildLookup lists every index entry and resolves each to its store
// filename. An entry whose file record is gone is skipped: it cannot be
// matched to any article and the engine will re-create what it needs.
// Listing failure aborts, since every reconciliation decision depends
// on this table.
func (c *Client) BuildLookup(ctx context.Context) (Lookup, error) {
	entries, err := c.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing index entries: %w", err)
	}

	lookup := make(Lookup, len(entries))
	for _, e := range entries {
		info, err := c.FileInfo(ctx, e.FileID)
		if err != nil {
			if IsNotFound(err) {
				slog.Warn("index entry references missing file", "entry", e.EntryID, "file", e.FileID)
				continue
			}
			return nil, fmt.Errorf("resolving file %s: %w", e.FileID, err)
		}
		lookup[info.Filename] = e
	}
	return lookup, nil
}

// DeleteAllEntries removes every entry from the search index, returning
// how many removals succeeded and failed. Used by the cleanup command;
// individual failures do not stop the pass.
func (c *Client) DeleteAllEntries(ctx context.Context) (deleted, failed int, err error) {
	entries, err := c.ListEntries(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("listing index entries: %w", err)
	}
	for _, e := range entries {
		if _, err := c.IndexRemove(ctx, e.EntryID); err != nil {
			slog.Error("index entry removal failed", "entry", e.EntryID, "error", err)
			failed++
			continue
		}
		deleted++
	}
	return deleted, failed, nil
}
