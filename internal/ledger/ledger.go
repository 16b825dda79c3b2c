// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger tracks what has been uploaded to the remote corpus and
// with what content fingerprint. The ledger is the only durable state of
// the sync job and the single shared-mutation boundary for concurrent
// reconciliation workers.
package ledger

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Record describes the last successful sync of one article. The remote
// ids refer to entries that exist remotely, except during the brief
// window between delete and re-create while a changed article is being
// replaced.
type Record struct {
	ArticleID    string    `json:"article_id"`
	RemoteFileID string    `json:"remote_file_id"`
	IndexEntryID string    `json:"index_entry_id"`
	Fingerprint  string    `json:"fingerprint"`
	LocalPath    string    `json:"local_path"`
	UploadedAt   time.Time `json:"uploaded_at"`
}

// Ledger is a durable article-id → Record store backed by a single JSON
// file. The whole file is read at open and rewritten on every Put; all
// mutations serialize on one mutex.
type Ledger struct {
	path string

	mu      sync.Mutex
	records map[string]Record
}

// Open loads the ledger at path. A missing file yields an empty ledger.
// An unreadable or corrupt file also yields an empty ledger, with a
// warning: the cost is re-uploading everything, which beats refusing to
// start.
func Open(path string) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		slog.Warn("ledger unreadable, starting fresh", "path", path, "error", err)
		return l, nil
	}

	if err := json.Unmarshal(data, &l.records); err != nil {
		slog.Warn("ledger corrupt, starting fresh", "path", path, "error", err)
		l.records = make(map[string]Record)
	}
	return l, nil
}

// Get returns the record for an article id, if one exists.
func (l *Ledger) Get(articleID string) (Record, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[articleID]
	return rec, ok
}

// Put upserts a record and rewrites the backing file. Callers must only
// invoke Put after the remote mutation it describes has succeeded, so a
// crash leaves the ledger stale, never ahead of remote state.
func (l *Ledger) Put(rec Record) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.ArticleID] = rec
	return l.save()
}

// Clear atomically replaces the ledger with an empty one. Used for full
// resync.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = make(map[string]Record)
	return l.save()
}

// Len returns the number of tracked articles.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// IDs returns the tracked article ids in sorted order.
func (l *Ledger) IDs() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	ids := make([]string, 0, len(l.records))
	for id := range l.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// save writes the full record map to a temp file and renames it into
// place, so readers never observe a partially-written ledger. Caller
// holds l.mu.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	dir := filepath.Dir(l.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating ledger directory: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp ledger: %w", err)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing ledger: %w", writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp ledger: %w", closeErr)
	}

	if err := os.Rename(tmpPath, l.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}
