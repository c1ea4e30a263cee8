// Command sync-notion mirrors a user's transactions for a date range into a
// Notion database. Pages are matched on the "Ledger ID" property, so reruns
// update instead of duplicating.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/dvloznov/ledger-bot/internal/config"
	"github.com/dvloznov/ledger-bot/internal/logger"
	"github.com/dvloznov/ledger-bot/internal/notionsync"
	storebq "github.com/dvloznov/ledger-bot/internal/store/bigquery"
)

func main() {
	var (
		startDate   = flag.String("start-date", "", "Start date in YYYY-MM-DD format (required)")
		endDate     = flag.String("end-date", "", "End date in YYYY-MM-DD format (required)")
		userID      = flag.String("user", "", "User ID whose ledger to sync (required)")
		notionToken = flag.String("notion-token", os.Getenv("NOTION_TOKEN"), "Notion API token")
		notionDBID  = flag.String("notion-db-id", os.Getenv("NOTION_DB_ID"), "Notion database ID")
		dryRun      = flag.Bool("dry-run", false, "Log the plan without writing to Notion")
	)
	flag.Parse()

	log := logger.New()

	if *startDate == "" || *endDate == "" || *userID == "" {
		log.Fatal().Msg("start-date, end-date and user are required")
	}
	if *notionToken == "" || *notionDBID == "" {
		log.Fatal().Msg("notion-token and notion-db-id are required (flags or NOTION_TOKEN/NOTION_DB_ID env)")
	}

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatal().Err(err).Str("start_date", *startDate).Msg("Invalid start date")
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatal().Err(err).Str("end_date", *endDate).Msg("Invalid end date")
	}
	if end.Before(start) {
		log.Fatal().Msg("end-date must not be before start-date")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
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

	notion := notionsync.NewNotionClient(*notionToken)

	if err := notionsync.SyncTransactions(ctx, store, notion, *notionDBID, *userID, start, end, *dryRun); err != nil {
		log.Fatal().Err(err).Msg("Sync failed")
	}
}
