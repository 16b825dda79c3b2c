// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mvanek/helpsync/internal/corpus"
	"github.com/mvanek/helpsync/internal/ledger"
	"github.com/mvanek/helpsync/internal/reconcile"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove all remote corpus content and reset the ledger",
	Long: `Cleanup deletes every entry from the search index, deletes the backing
store files, and clears the tracking ledger. The next sync re-uploads
everything from scratch. Use --yes to skip the confirmation prompt.`,
	RunE: runCleanup,
}

func init() {
	cleanupCmd.Flags().Bool("yes", false, "skip the confirmation prompt")
	cleanupCmd.Flags().Int("workers", 0, "deletion worker pool size (default 5)")
	cleanupCmd.Flags().String("ledger", "", "tracking ledger file (default upload_tracking.json)")

	rootCmd.AddCommand(cleanupCmd)
}

func runCleanup(cmd *cobra.Command, args []string) error {
	cfg := jobConfig()
	if path, _ := cmd.Flags().GetString("ledger"); path != "" {
		cfg.Sync.LedgerPath = path
	}
	if cfg.Corpus.APIKey == "" {
		return fmt.Errorf("corpus API key missing: add .secrets/corpus-api-key")
	}
	if cfg.Corpus.IndexID == "" {
		return fmt.Errorf("corpus index id missing: set corpus.index_id or add .secrets/corpus-index-id")
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Printf("This deletes ALL entries from index %s and their store files. Continue? [y/N] ", cfg.Corpus.IndexID)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	ctx := cmd.Context()
	client := corpus.NewClient(cfg.Corpus)

	// Files must outlive their index entries, so entries go first.
	entriesDeleted, entriesFailed, err := client.DeleteAllEntries(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d index entries (%d failed)\n", entriesDeleted, entriesFailed)

	files, err := client.ListFiles(ctx)
	if err != nil {
		return err
	}

	workers, _ := cmd.Flags().GetInt("workers")
	if workers <= 0 {
		workers = reconcile.DefaultWorkers
	}

	var mu sync.Mutex
	var filesDeleted, filesFailed int
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, f := range files {
		g.Go(func() error {
			_, err := client.Delete(gctx, f.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				slog.Warn("could not delete store file", "file", f.ID, "error", err)
				filesFailed++
				return nil
			}
			filesDeleted++
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	fmt.Printf("Deleted %d store files (%d failed)\n", filesDeleted, filesFailed)

	lg, err := ledger.Open(cfg.Sync.LedgerPath)
	if err != nil {
		return err
	}
	if err := lg.Clear(); err != nil {
		return fmt.Errorf("clearing ledger: %w", err)
	}
	fmt.Println("Tracking ledger cleared.")

	if entriesFailed > 0 || filesFailed > 0 {
		return fmt.Errorf("cleanup finished with %d failure(s)", entriesFailed+filesFailed)
	}
	return nil
}
