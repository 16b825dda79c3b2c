// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mvanek/helpsync/internal/corpus"
	"github.com/mvanek/helpsync/internal/ledger"
	"github.com/mvanek/helpsync/internal/mirror"
	"github.com/mvanek/helpsync/pkg/types"
)

// fakeCorpus is an in-memory CorpusIndex with failure injection.
type fakeCorpus struct {
	mu        sync.Mutex
	files     map[string][]byte // file id → payload
	names     map[string]string // file id → remote filename
	entries   map[string]string // entry id → file id
	nextFile  int
	nextEntry int

	uploads int // Upload call count

	failUploadFor   map[string]bool // keyed by remote filename
	failIndexAddFor map[string]bool // keyed by remote filename of the file
	lookupErr       error
}

func newFakeCorpus() *fakeCorpus {
	return &fakeCorpus{
		files:           make(map[string][]byte),
		names:           make(map[string]string),
		entries:         make(map[string]string),
		failUploadFor:   make(map[string]bool),
		failIndexAddFor: make(map[string]bool),
	}
}

func (f *fakeCorpus) BuildLookup(context.Context) (corpus.Lookup, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	lookup := make(corpus.Lookup, len(f.entries))
	for entryID, fileID := range f.entries {
		name, ok := f.names[fileID]
		if !ok {
			continue
		}
		lookup[name] = corpus.Entry{EntryID: entryID, FileID: fileID}
	}
	return lookup, nil
}

func (f *fakeCorpus) Upload(_ context.Context, logicalName string, payload []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := corpus.RemoteName(logicalName)
	f.uploads++
	if f.failUploadFor[name] {
		return "", &corpus.APIError{Op: "upload", Status: 503, Body: "injected"}
	}
	f.nextFile++
	id := fmt.Sprintf("file-%d", f.nextFile)
	f.files[id] = append([]byte(nil), payload...)
	f.names[id] = name
	return id, nil
}

func (f *fakeCorpus) IndexAdd(_ context.Context, fileID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failIndexAddFor[f.names[fileID]] {
		return "", &corpus.APIError{Op: "index-add", Status: 503, Body: "injected"}
	}
	f.nextEntry++
	id := fmt.Sprintf("entry-%d", f.nextEntry)
	f.entries[id] = fileID
	return id, nil
}

func (f *fakeCorpus) IndexRemove(_ context.Context, entryID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, entryID)
	return true, nil
}

func (f *fakeCorpus) Delete(_ context.Context, fileID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileID)
	delete(f.names, fileID)
	return true, nil
}

// liveEntries returns how many index entries resolve to remoteName.
func (f *fakeCorpus) liveEntries(remoteName string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, fileID := range f.entries {
		if f.names[fileID] == remoteName {
			n++
		}
	}
	return n
}

func (f *fakeCorpus) hasFile(fileID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[fileID]
	return ok
}

// removeRemotely simulates out-of-band deletion of an article's entry
// and file.
func (f *fakeCorpus) removeRemotely(remoteName string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for entryID, fileID := range f.entries {
		if f.names[fileID] == remoteName {
			delete(f.entries, entryID)
			delete(f.files, fileID)
			delete(f.names, fileID)
		}
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T, fc *fakeCorpus, workers int) (*Engine, *ledger.Ledger, *mirror.Mirror) {
	t.Helper()
	dir := t.TempDir()
	lg, err := ledger.Open(filepath.Join(dir, "tracking.json"))
	require.NoError(t, err)
	m, err := mirror.New(filepath.Join(dir, "articles"))
	require.NoError(t, err)
	return NewEngine(fc, lg, m, workers, testLogger()), lg, m
}

func article(id, body string) types.Article {
	return types.Article{ID: id, Title: "Article " + id, Body: body}
}

func TestRunFirstSyncUploadsAll(t *testing.T) {
	fc := newFakeCorpus()
	e, lg, _ := testEngine(t, fc, 0)

	tally, err := e.Run(context.Background(), []types.Article{
		article("1001", "hello"),
		article("1002", "world"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Uploaded)
	assert.Equal(t, 0, tally.Updated)
	assert.Equal(t, 0, tally.Skipped)
	assert.Equal(t, 0, tally.Failed)
	assert.Equal(t, 2, lg.Len())
	assert.Equal(t, 1, fc.liveEntries("1001.txt"))
	assert.Equal(t, 1, fc.liveEntries("1002.txt"))

	// Ledger fingerprints match the mirrored bytes.
	rec, ok := lg.Get("1001")
	require.True(t, ok)
	assert.Equal(t, ledger.FingerprintBytes([]byte("hello")), rec.Fingerprint)
	assert.NotEmpty(t, rec.RemoteFileID)
	assert.NotEmpty(t, rec.IndexEntryID)
}

func TestRunIdempotent(t *testing.T) {
	fc := newFakeCorpus()
	e, _, _ := testEngine(t, fc, 0)
	articles := []types.Article{article("1001", "hello"), article("1002", "world")}

	_, err := e.Run(context.Background(), articles)
	require.NoError(t, err)
	uploadsAfterFirst := fc.uploads

	tally, err := e.Run(context.Background(), articles)
	require.NoError(t, err)

	assert.Equal(t, 0, tally.Uploaded)
	assert.Equal(t, 0, tally.Updated)
	assert.Equal(t, 2, tally.Skipped)
	assert.Equal(t, uploadsAfterFirst, fc.uploads, "second run must not upload")
}

func TestRunReplacesChangedArticle(t *testing.T) {
	fc := newFakeCorpus()
	e, lg, _ := testEngine(t, fc, 0)
	ctx := context.Background()

	_, err := e.Run(ctx, []types.Article{article("1001", "hello"), article("1002", "world")})
	require.NoError(t, err)

	oldRec, ok := lg.Get("1002")
	require.True(t, ok)

	tally, err := e.Run(ctx, []types.Article{article("1001", "hello"), article("1002", "WORLD!")})
	require.NoError(t, err)

	assert.Equal(t, 0, tally.Uploaded)
	assert.Equal(t, 1, tally.Updated)
	assert.Equal(t, 1, tally.Skipped)

	newRec, ok := lg.Get("1002")
	require.True(t, ok)
	assert.NotEqual(t, oldRec.Fingerprint, newRec.Fingerprint)
	assert.NotEqual(t, oldRec.RemoteFileID, newRec.RemoteFileID)
	assert.Equal(t, ledger.FingerprintBytes([]byte("WORLD!")), newRec.Fingerprint)

	// Exactly one live entry remains and the old file id no longer
	// resolves.
	assert.Equal(t, 1, fc.liveEntries("1002.txt"))
	assert.False(t, fc.hasFile(oldRec.RemoteFileID))
}

func TestRunSelfHealsRemoteDrift(t *testing.T) {
	fc := newFakeCorpus()
	e, lg, _ := testEngine(t, fc, 0)
	ctx := context.Background()
	articles := []types.Article{article("1001", "hello"), article("1002", "world")}

	_, err := e.Run(ctx, articles)
	require.NoError(t, err)
	oldRec, _ := lg.Get("1002")

	// Someone deletes 1002 remotely; the local fingerprint still
	// matches.
	fc.removeRemotely("1002.txt")

	tally, err := e.Run(ctx, articles)
	require.NoError(t, err)

	assert.Equal(t, 1, tally.Uploaded, "missing remote entry must be re-uploaded")
	assert.Equal(t, 1, tally.Skipped)
	assert.Equal(t, 1, fc.liveEntries("1002.txt"))

	newRec, ok := lg.Get("1002")
	require.True(t, ok)
	assert.NotEqual(t, oldRec.RemoteFileID, newRec.RemoteFileID, "fresh ledger record expected")
}

func TestRunConcurrentSafety(t *testing.T) {
	fc := newFakeCorpus()
	e, lg, _ := testEngine(t, fc, 3)

	const n = 20
	articles := make([]types.Article, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%04d", i)
		articles = append(articles, article(id, "body of "+id))
	}

	tally, err := e.Run(context.Background(), articles)
	require.NoError(t, err)

	assert.Equal(t, n, tally.Uploaded)
	assert.Equal(t, 0, tally.Failed)
	assert.Equal(t, n, lg.Len(), "no lost ledger updates")
}

func TestRunUploadFailureDoesNotAbortBatch(t *testing.T) {
	fc := newFakeCorpus()
	fc.failUploadFor["1002.txt"] = true
	e, lg, _ := testEngine(t, fc, 0)

	tally, err := e.Run(context.Background(), []types.Article{
		article("1001", "a"), article("1002", "b"), article("1003", "c"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Uploaded)
	assert.Equal(t, 1, tally.Failed)
	assert.Equal(t, 2, lg.Len())
	_, ok := lg.Get("1002")
	assert.False(t, ok, "failed article must not be recorded")
}

func TestRunPartialReplaceFailure(t *testing.T) {
	fc := newFakeCorpus()
	e, lg, _ := testEngine(t, fc, 0)
	ctx := context.Background()

	_, err := e.Run(ctx, []types.Article{article("1001", "hello")})
	require.NoError(t, err)
	oldRec, _ := lg.Get("1001")

	// The replacement upload succeeds but adding it to the index fails.
	fc.failIndexAddFor["1001.txt"] = true

	tally, err := e.Run(ctx, []types.Article{article("1001", "changed")})
	require.NoError(t, err)

	assert.Equal(t, 1, tally.Failed)
	assert.Equal(t, 0, tally.Updated)

	// Ledger still points at the previous state and the old file is
	// still resolvable.
	rec, ok := lg.Get("1001")
	require.True(t, ok)
	assert.Equal(t, oldRec.Fingerprint, rec.Fingerprint)
	assert.Equal(t, oldRec.RemoteFileID, rec.RemoteFileID)
	assert.True(t, fc.hasFile(oldRec.RemoteFileID))
}

func TestRunReportsRemovedUpstream(t *testing.T) {
	fc := newFakeCorpus()
	e, lg, _ := testEngine(t, fc, 0)
	ctx := context.Background()

	_, err := e.Run(ctx, []types.Article{article("1001", "a"), article("1002", "b")})
	require.NoError(t, err)

	// 1002 disappears from the source; its remote copy must survive.
	tally, err := e.Run(ctx, []types.Article{article("1001", "a")})
	require.NoError(t, err)

	assert.Equal(t, 1, tally.RemovedUpstream)
	assert.Equal(t, 1, fc.liveEntries("1002.txt"))
	assert.Equal(t, 2, lg.Len(), "ledger keeps the record; no tombstones")
}

func TestRunLookupFailureAborts(t *testing.T) {
	fc := newFakeCorpus()
	fc.lookupErr = &corpus.APIError{Op: "list", Status: 503, Body: "down"}
	e, _, _ := testEngine(t, fc, 0)

	_, err := e.Run(context.Background(), []types.Article{article("1001", "a")})
	require.Error(t, err)
	assert.Equal(t, 0, fc.uploads, "no mutations after failed pre-flight")
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "uploaded", OutcomeUploaded.String())
	assert.Equal(t, "updated", OutcomeUpdated.String())
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "failed", OutcomeFailed.String())
}

func TestTallyTotals(t *testing.T) {
	tally := Tally{Uploaded: 1, Updated: 2, Skipped: 3, Failed: 4}
	assert.Equal(t, 10, tally.Total())
	assert.True(t, tally.HasFailures())
	assert.False(t, Tally{Uploaded: 5}.HasFailures())
}
