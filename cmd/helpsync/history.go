// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mvanek/helpsync/internal/joblog"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent sync job summaries",
	Long: `History prints recent sync runs from the local job log, newest first.
Each row shows when the job ran and its outcome counts.`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().Int("limit", 10, "maximum number of runs to show")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := jobConfig()

	store, err := joblog.Open(cfg.JobLog)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	sums, err := store.History(cmd.Context(), limit)
	if err != nil {
		return err
	}

	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sums)
	}

	if len(sums) == 0 {
		fmt.Println("No sync runs recorded yet.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-20s  %8s  %8s  %8s  %8s  %8s  %10s\n",
		"Started", "Uploaded", "Updated", "Skipped", "Failed", "Missing", "Duration")
	for _, s := range sums {
		fmt.Fprintf(os.Stdout, "%-20s  %8d  %8d  %8d  %8d  %8d  %10s\n",
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Uploaded, s.Updated, s.Skipped, s.Failed, s.MissingLocal,
			(time.Duration(s.DurationSeconds * float64(time.Second))).Round(time.Millisecond))
	}
	return nil
}
