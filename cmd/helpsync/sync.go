// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvanek/helpsync/internal/corpus"
	"github.com/mvanek/helpsync/internal/joblog"
	"github.com/mvanek/helpsync/internal/ledger"
	"github.com/mvanek/helpsync/internal/mirror"
	"github.com/mvanek/helpsync/internal/reconcile"
	"github.com/mvanek/helpsync/internal/scrape"
	"github.com/mvanek/helpsync/pkg/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scrape articles and reconcile them with the remote corpus",
	Long: `Sync runs the full job: fetch all articles from the help center, render
them to markdown, and reconcile the set against the remote corpus. Unchanged
articles are skipped, new ones uploaded, and changed ones replaced
(upload first, then the stale copy is removed). The run summary is
persisted to the job history.`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().Int("workers", 0, "reconciliation worker pool size (default 5)")
	syncCmd.Flags().String("mirror-dir", "", "directory for mirrored markdown (default articles)")
	syncCmd.Flags().String("ledger", "", "tracking ledger file (default upload_tracking.json)")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg := jobConfig()
	applySyncFlags(cmd, &cfg)
	if err := validateSync(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	started := time.Now()

	articles, err := fetchArticles(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}

	lg, err := ledger.Open(cfg.Sync.LedgerPath)
	if err != nil {
		return err
	}
	m, err := mirror.New(cfg.Scrape.MirrorDir)
	if err != nil {
		return err
	}

	engine := reconcile.NewEngine(corpus.NewClient(cfg.Corpus), lg, m, cfg.Sync.Workers, slog.Default())
	tally, err := engine.Run(ctx, articles)
	if err != nil {
		return err
	}

	printTally(os.Stdout, tally)
	saveSummary(ctx, cfg.JobLog, tally, started)

	if tally.HasFailures() {
		return fmt.Errorf("%d article(s) failed to sync", tally.Failed)
	}
	return nil
}

func applySyncFlags(cmd *cobra.Command, cfg *types.JobConfig) {
	if workers, _ := cmd.Flags().GetInt("workers"); workers > 0 {
		cfg.Sync.Workers = workers
	}
	if dir, _ := cmd.Flags().GetString("mirror-dir"); dir != "" {
		cfg.Scrape.MirrorDir = dir
	}
	if path, _ := cmd.Flags().GetString("ledger"); path != "" {
		cfg.Sync.LedgerPath = path
	}
}

func validateSync(cfg types.JobConfig) error {
	if cfg.Scrape.BaseURL == "" {
		return fmt.Errorf("scrape.base_url is not configured: set it in helpsync.yaml or HELPSYNC_SCRAPE_BASE_URL")
	}
	if cfg.Corpus.APIKey == "" {
		return fmt.Errorf("corpus API key missing: add .secrets/corpus-api-key")
	}
	if cfg.Corpus.IndexID == "" {
		return fmt.Errorf("corpus index id missing: set corpus.index_id or add .secrets/corpus-index-id")
	}
	return nil
}

// fetchArticles fetches every article from the help center and writes a
// metadata record per article. Mirror writes happen later, inside the engine.
func fetchArticles(ctx context.Context, cfg types.JobConfig, w io.Writer) ([]types.Article, error) {
	scraper, err := scrape.New(cfg.Scrape)
	if err != nil {
		return nil, err
	}

	articles, err := scraper.FetchAll(ctx, w)
	if err != nil {
		return nil, err
	}

	metadataDir := viper.GetString("scrape.metadata_dir")
	for _, a := range articles {
		if err := scrape.WriteMetadata(metadataDir, a); err != nil {
			slog.Warn("could not write metadata", "article", a.ID, "error", err)
		}
	}
	return articles, nil
}

func printTally(w io.Writer, t reconcile.Tally) {
	fmt.Fprintf(w, "\nSync complete in %s\n", t.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  Uploaded:  %d\n", t.Uploaded)
	fmt.Fprintf(w, "  Updated:   %d\n", t.Updated)
	fmt.Fprintf(w, "  Skipped:   %d\n", t.Skipped)
	fmt.Fprintf(w, "  Failed:    %d\n", t.Failed)
	if t.MissingLocal > 0 {
		fmt.Fprintf(w, "  Missing local copies: %d\n", t.MissingLocal)
	}
	if t.RemovedUpstream > 0 {
		fmt.Fprintf(w, "  Removed upstream (still in corpus): %d\n", t.RemovedUpstream)
	}
}

// saveSummary records the run in the job history. History is advisory, so a
// write failure is logged rather than failing an otherwise successful sync.
func saveSummary(ctx context.Context, cfg types.JobLogConfig, t reconcile.Tally, started time.Time) {
	store, err := joblog.Open(cfg)
	if err != nil {
		slog.Warn("could not open job history", "error", err)
		return
	}
	defer store.Close()

	if err := store.Save(ctx, joblog.FromTally(t, started)); err != nil {
		slog.Warn("could not save job summary", "error", err)
	}
}
