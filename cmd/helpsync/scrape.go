// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mvanek/helpsync/internal/mirror"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch help-center articles and mirror them locally",
	Long: `Scrape fetches every article from the help center, renders each to
markdown, and writes the result to the local mirror directory along with a
metadata record. No remote corpus operations are performed.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().String("mirror-dir", "", "directory for mirrored markdown (default articles)")

	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	cfg := jobConfig()
	if dir, _ := cmd.Flags().GetString("mirror-dir"); dir != "" {
		cfg.Scrape.MirrorDir = dir
	}
	if cfg.Scrape.BaseURL == "" {
		return fmt.Errorf("scrape.base_url is not configured: set it in helpsync.yaml or HELPSYNC_SCRAPE_BASE_URL")
	}

	articles, err := fetchArticles(cmd.Context(), cfg, os.Stdout)
	if err != nil {
		return err
	}

	m, err := mirror.New(cfg.Scrape.MirrorDir)
	if err != nil {
		return err
	}
	var written int
	for _, a := range articles {
		if err := m.Write(a.ID, []byte(a.Body)); err != nil {
			fmt.Fprintf(os.Stderr, "mirror write failed for %s: %v\n", a.ID, err)
			continue
		}
		written++
	}

	fmt.Printf("Mirrored %d article(s) to %s\n", written, m.Dir())
	return nil
}
