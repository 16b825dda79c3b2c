// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvanek/helpsync/internal/corpus"
	"github.com/mvanek/helpsync/internal/ledger"
	"github.com/mvanek/helpsync/internal/mirror"
	"github.com/mvanek/helpsync/pkg/types"
)

// DefaultWorkers is the worker pool size when none is configured.
const DefaultWorkers = 5

// Outcome is the terminal result of reconciling one article.
type Outcome int

const (
	OutcomeUploaded Outcome = iota
	OutcomeUpdated
	OutcomeSkipped
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUploaded:
		return "uploaded"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Tally aggregates per-article outcomes for one run.
type Tally struct {
	Uploaded        int           `json:"uploaded"`
	Updated         int           `json:"updated"`
	Skipped         int           `json:"skipped"`
	Failed          int           `json:"failed"`
	MissingLocal    int           `json:"missing_local"`
	RemovedUpstream int           `json:"removed_upstream"`
	Duration        time.Duration `json:"duration"`
}

// Total returns the number of articles that went through the planner.
func (t Tally) Total() int {
	return t.Uploaded + t.Updated + t.Skipped + t.Failed
}

// HasFailures reports whether any article failed reconciliation.
func (t Tally) HasFailures() bool {
	return t.Failed > 0
}

func (t *Tally) add(o Outcome) {
	switch o {
	case OutcomeUploaded:
		t.Uploaded++
	case OutcomeUpdated:
		t.Updated++
	case OutcomeSkipped:
		t.Skipped++
	case OutcomeFailed:
		t.Failed++
	}
}

// CorpusIndex is the remote surface the engine drives. *corpus.Client
// implements it; tests substitute an in-memory fake.
type CorpusIndex interface {
	BuildLookup(ctx context.Context) (corpus.Lookup, error)
	Upload(ctx context.Context, logicalName string, payload []byte) (string, error)
	IndexAdd(ctx context.Context, fileID string) (string, error)
	IndexRemove(ctx context.Context, entryID string) (bool, error)
	Delete(ctx context.Context, fileID string) (bool, error)
}

// Engine converges the remote corpus to match the local article set.
// All remote I/O runs in parallel across articles; ledger writes
// serialize inside the ledger itself.
type Engine struct {
	corpus  CorpusIndex
	ledger  *ledger.Ledger
	mirror  *mirror.Mirror
	workers int
	log     *slog.Logger
}

// NewEngine wires an engine. A nil logger falls back to slog.Default;
// workers ≤ 0 falls back to DefaultWorkers.
func NewEngine(ci CorpusIndex, lg *ledger.Ledger, m *mirror.Mirror, workers int, log *slog.Logger) *Engine {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		corpus:  ci,
		ledger:  lg,
		mirror:  m,
		workers: workers,
		log:     log,
	}
}

// Run mirrors the fetched articles to disk, plans per-article actions
// against the ledger and a freshly built remote lookup table, and
// executes the plan with a bounded worker pool. Only pre-flight
// failures (mirroring was already attempted per-item; building the
// lookup) abort the run — individual article failures are tallied and
// the batch drains regardless.
func (e *Engine) Run(ctx context.Context, articles []types.Article) (Tally, error) {
	start := time.Now()
	var tally Tally

	for _, a := range articles {
		if err := e.mirror.Write(a.ID, []byte(a.Body)); err != nil {
			// The planner will exclude it as missing-local.
			e.log.Error("mirror write failed", "article", a.ID, "error", err)
		}
	}

	lookup, err := e.corpus.BuildLookup(ctx)
	if err != nil {
		return Tally{}, fmt.Errorf("building remote lookup: %w", err)
	}
	e.log.Info("remote lookup built", "entries", len(lookup))

	items, missingLocal := Plan(articles, e.ledger, e.mirror, lookup, e.log)
	tally.MissingLocal = missingLocal

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(e.workers)
	for _, item := range items {
		g.Go(func() error {
			outcome := e.reconcileOne(ctx, item)
			mu.Lock()
			tally.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	tally.RemovedUpstream = e.countRemovedUpstream(articles)
	tally.Duration = time.Since(start)
	return tally, nil
}

// countRemovedUpstream reports ledger entries whose article id no
// longer appears in the source set. They are detected and logged only;
// the remote copies are left in place.
func (e *Engine) countRemovedUpstream(articles []types.Article) int {
	current := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		current[a.ID] = struct{}{}
	}
	removed := 0
	for _, id := range e.ledger.IDs() {
		if _, ok := current[id]; !ok {
			e.log.Warn("article removed upstream, remote copy retained", "article", id)
			removed++
		}
	}
	return removed
}

// reconcileOne drives one article through its state machine. Steps for
// a single article run strictly sequentially; the ledger write always
// follows the remote mutations it records.
func (e *Engine) reconcileOne(ctx context.Context, item Item) Outcome {
	switch item.Action {
	case ActionSkip:
		e.log.Debug("sync", "op", "skip", "article", item.Article.ID)
		return OutcomeSkipped
	case ActionCreate:
		return e.create(ctx, item)
	case ActionReplace:
		return e.replace(ctx, item)
	default:
		e.log.Error("sync", "op", "plan", "article", item.Article.ID, "error", "unknown action")
		return OutcomeFailed
	}
}

func (e *Engine) create(ctx context.Context, item Item) Outcome {
	id := item.Article.ID

	payload, err := e.mirror.Read(id)
	if err != nil {
		e.log.Error("sync", "op", "read", "article", id, "error", err)
		return OutcomeFailed
	}

	fileID, err := e.corpus.Upload(ctx, item.Article.LogicalName(), payload)
	if err != nil {
		e.log.Error("sync", "op", "upload", "article", id, "error", err)
		return OutcomeFailed
	}

	entryID, err := e.corpus.IndexAdd(ctx, fileID)
	if err != nil {
		e.log.Error("sync", "op", "index-add", "article", id, "file", fileID, "error", err)
		return OutcomeFailed
	}

	if err := e.put(item, fileID, entryID); err != nil {
		e.log.Error("sync", "op", "ledger-put", "article", id, "error", err)
		return OutcomeFailed
	}

	e.log.Info("sync", "op", "upload", "article", id, "file", fileID)
	return OutcomeUploaded
}

// replace uploads the new content before touching the old entry, so the
// corpus never goes briefly empty for this article if a later step
// fails. The transient duplicate resolves when the old entry is
// removed.
func (e *Engine) replace(ctx context.Context, item Item) Outcome {
	id := item.Article.ID

	payload, err := e.mirror.Read(id)
	if err != nil {
		e.log.Error("sync", "op", "read", "article", id, "error", err)
		return OutcomeFailed
	}

	newFileID, err := e.corpus.Upload(ctx, item.Article.LogicalName(), payload)
	if err != nil {
		e.log.Error("sync", "op", "upload", "article", id, "error", err)
		return OutcomeFailed
	}

	// Retire the old index entry. Best-effort: a failure here leaves a
	// transient duplicate, not an inconsistency.
	if item.Prev.IndexEntryID != "" {
		if _, err := e.corpus.IndexRemove(ctx, item.Prev.IndexEntryID); err != nil {
			e.log.Warn("sync", "op", "index-remove", "article", id, "entry", item.Prev.IndexEntryID, "error", err)
		}
	}

	entryID, err := e.corpus.IndexAdd(ctx, newFileID)
	if err != nil {
		// The new file is orphaned; the ledger still points at the
		// previous state.
		e.log.Error("sync", "op", "index-add", "article", id, "file", newFileID, "error", err)
		return OutcomeFailed
	}

	if err := e.put(item, newFileID, entryID); err != nil {
		e.log.Error("sync", "op", "ledger-put", "article", id, "error", err)
		return OutcomeFailed
	}

	// Only now is the old store file garbage; until the ledger points
	// at the new ids, the previous upload stays resolvable.
	if item.Prev.RemoteFileID != "" {
		if _, err := e.corpus.Delete(ctx, item.Prev.RemoteFileID); err != nil {
			e.log.Warn("sync", "op", "delete-old", "article", id, "file", item.Prev.RemoteFileID, "error", err)
		}
	}

	e.log.Info("sync", "op", "update", "article", id, "file", newFileID)
	return OutcomeUpdated
}

// put records a completed remote mutation. The record is fully built
// before entering the ledger's critical section.
func (e *Engine) put(item Item, fileID, entryID string) error {
	return e.ledger.Put(ledger.Record{
		ArticleID:    item.Article.ID,
		RemoteFileID: fileID,
		IndexEntryID: entryID,
		Fingerprint:  item.Fingerprint,
		LocalPath:    item.LocalPath,
		UploadedAt:   time.Now().UTC(),
	})
}
