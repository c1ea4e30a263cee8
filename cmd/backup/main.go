// Command backup exports a user's full ledger to CSV and uploads it to the
// configured GCS bucket. Meant to run on a schedule (cron, Cloud Scheduler).
package main

import (
	"context"
	"flag"

	"github.com/dvloznov/ledger-bot/internal/backup"
	"github.com/dvloznov/ledger-bot/internal/config"
	"github.com/dvloznov/ledger-bot/internal/logger"
	storebq "github.com/dvloznov/ledger-bot/internal/store/bigquery"
)

func main() {
	var (
		userID = flag.String("user", "", "User ID whose ledger to back up (required)")
		bucket = flag.String("bucket", "", "GCS bucket (overrides GCS_BUCKET env)")
	)
	flag.Parse()

	log := logger.New()

	if *userID == "" {
		log.Fatal().Msg("user is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *bucket != "" {
		cfg.BackupBucket = *bucket
	}
	if cfg.BackupBucket == "" {
		log.Fatal().Msg("GCS_BUCKET (or -bucket) is required")
	}
	if cfg.BigQueryProject == "" {
		log.Fatal().Msg("BQ_PROJECT is required")
	}

	ctx := logger.WithContext(context.Background(), log)

	store, err := storebq.NewStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery store")
	}
	defer store.Close()

	object, err := backup.Run(ctx, store, cfg.BackupBucket, *userID)
	if err != nil {
		log.Fatal().Err(err).Msg("Backup failed")
	}

	log.Info().Str("object", object).Msg("Backup completed")
}
