// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package reconcile computes and applies the minimal diff between the
// local article set and the remote corpus. Change detection is purely
// fingerprint-based; the tracking ledger is the only durable state.
package reconcile

import (
	"log/slog"

	"github.com/mvanek/helpsync/internal/corpus"
	"github.com/mvanek/helpsync/internal/ledger"
	"github.com/mvanek/helpsync/internal/mirror"
	"github.com/mvanek/helpsync/pkg/types"
)

// Action is the planned reconciliation step for one article.
type Action int

const (
	// ActionCreate uploads an article the corpus has no record of.
	ActionCreate Action = iota

	// ActionSkip leaves an unchanged article alone.
	ActionSkip

	// ActionReplace uploads new content and retires the previous
	// remote entry for a changed article.
	ActionReplace
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionSkip:
		return "skip"
	case ActionReplace:
		return "replace"
	default:
		return "unknown"
	}
}

// Item is one article's planned reconciliation step. Prev is set only
// for ActionReplace.
type Item struct {
	Article     types.Article
	Action      Action
	Fingerprint string
	LocalPath   string
	Prev        *ledger.Record
}

// Plan decides, per article, whether it is new, unchanged, or changed.
// Articles with no readable mirrored copy are excluded and counted in
// missingLocal. For fingerprint matches the previously recorded remote
// entry must still resolve in the lookup table; when it does not, the
// action escalates to create so out-of-band remote deletion heals
// itself.
func Plan(articles []types.Article, lg *ledger.Ledger, m *mirror.Mirror, lookup corpus.Lookup, log *slog.Logger) (items []Item, missingLocal int) {
	for _, a := range articles {
		if !m.Exists(a.ID) {
			log.Warn("article has no local copy, excluding", "article", a.ID)
			missingLocal++
			continue
		}

		localPath := m.Path(a.ID)
		fp, err := ledger.FingerprintFile(localPath)
		if err != nil {
			log.Warn("article unreadable locally, excluding", "article", a.ID, "error", err)
			missingLocal++
			continue
		}

		item := Item{
			Article:     a,
			Fingerprint: fp,
			LocalPath:   localPath,
		}

		rec, tracked := lg.Get(a.ID)
		switch {
		case !tracked:
			item.Action = ActionCreate
		case rec.Fingerprint == fp:
			if _, live := lookup.Find(a.LogicalName()); live {
				item.Action = ActionSkip
			} else {
				// Ledger says synced but the remote entry is gone;
				// re-create rather than silently skipping.
				log.Warn("tracked entry missing remotely, re-uploading", "article", a.ID)
				item.Action = ActionCreate
			}
		default:
			prev := rec
			item.Action = ActionReplace
			item.Prev = &prev
		}

		items = append(items, item)
	}
	return items, missingLocal
}
