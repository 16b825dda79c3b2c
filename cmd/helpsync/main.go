// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the helpsync CLI.
// helpsync mirrors help-center articles locally and reconciles them
// against a remote search corpus.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mvanek/helpsync/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the helpsync CLI.
var rootCmd = &cobra.Command{
	Use:   "helpsync",
	Short: "Sync help-center articles to a remote search corpus",
	Long: `helpsync scrapes help-center articles, renders them to markdown, and
reconciles the local set against a remote search corpus (file store plus
search index). Only new or changed articles are uploaded; a local tracking
ledger records what the remote side already holds.

Each stage is a subcommand: scrape fetches and mirrors articles, sync runs
the full reconciliation job, cleanup resets the remote corpus, and history
shows recent job outcomes.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(cmd)

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func setupLogging(cmd *cobra.Command) {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./helpsync.yaml or ~/.config/helpsync/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("helpsync")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "helpsync"))
		}
	}

	viper.SetEnvPrefix("HELPSYNC")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
