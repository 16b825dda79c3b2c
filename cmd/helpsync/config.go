// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"time"

	"github.com/spf13/viper"

	"github.com/mvanek/helpsync/internal/reconcile"
	"github.com/mvanek/helpsync/internal/secrets"
	"github.com/mvanek/helpsync/pkg/types"
)

const (
	defaultTimeout   = 60 * time.Second
	defaultUserAgent = "helpsync/0.1"
)

func init() {
	viper.SetDefault("scrape.base_url", "")
	viper.SetDefault("scrape.per_page", 30)
	viper.SetDefault("scrape.mirror_dir", "articles")
	viper.SetDefault("scrape.metadata_dir", "metadata")
	viper.SetDefault("corpus.base_url", "https://api.openai.com/v1")
	viper.SetDefault("corpus.index_id", "")
	viper.SetDefault("sync.workers", reconcile.DefaultWorkers)
	viper.SetDefault("sync.ledger_path", "upload_tracking.json")
	viper.SetDefault("job_log.dir", "logs")
	viper.SetDefault("http.timeout", defaultTimeout)
}

// jobConfig assembles stage configuration from the config file, environment,
// and loaded secrets. Secrets win over config-file values for credentials.
func jobConfig() types.JobConfig {
	httpCfg := types.HTTPConfig{
		Timeout:   viper.GetDuration("http.timeout"),
		UserAgent: defaultUserAgent,
	}

	return types.JobConfig{
		Scrape: types.ScrapeConfig{
			HTTPConfig: httpCfg,
			BaseURL:    viper.GetString("scrape.base_url"),
			PerPage:    viper.GetInt("scrape.per_page"),
			MirrorDir:  viper.GetString("scrape.mirror_dir"),
		},
		Corpus: types.CorpusConfig{
			HTTPConfig: httpCfg,
			BaseURL:    viper.GetString("corpus.base_url"),
			IndexID:    secretDefault(secrets.CorpusIndexID, viper.GetString("corpus.index_id")),
			APIKey:     secretDefault(secrets.CorpusAPIKey, viper.GetString("corpus.api_key")),
		},
		Sync: types.SyncConfig{
			Workers:    viper.GetInt("sync.workers"),
			LedgerPath: viper.GetString("sync.ledger_path"),
		},
		JobLog: types.JobLogConfig{
			Dir: viper.GetString("job_log.dir"),
		},
	}
}
