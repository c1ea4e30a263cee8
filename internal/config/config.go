package config

import (
	"fmt"
	"os"
	"time"
)

// Config carries every external setting the bot reads. All of it comes from
// the environment; missing LLM credentials are a normal state (the classifier
// is disabled and the deterministic reply path takes over), missing LINE
// credentials are fatal only for the webhook binary.
type Config struct {
	Port string

	// LINE messaging platform.
	LineChannelSecret string
	LineChannelToken  string

	// Gemini. Empty APIKey means the NLU layer is disabled.
	GeminiAPIKey string
	GeminiModel  string

	// BigQuery ledger store. Empty project means the in-memory store is used.
	BigQueryProject string
	BigQueryDataset string

	// GCS bucket for ledger backups.
	BackupBucket string

	// Location used to resolve "today"/"yesterday" in user messages.
	Location *time.Location
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:              getenv("PORT", "8080"),
		LineChannelSecret: os.Getenv("LINE_CHANNEL_SECRET"),
		LineChannelToken:  os.Getenv("LINE_CHANNEL_TOKEN"),
		GeminiAPIKey:      os.Getenv("GEMINI_API_KEY"),
		GeminiModel:       getenv("GEMINI_MODEL", "gemini-2.0-flash"),
		BigQueryProject:   os.Getenv("BQ_PROJECT"),
		BigQueryDataset:   getenv("BQ_DATASET", "ledger"),
		BackupBucket:      os.Getenv("GCS_BUCKET"),
	}

	tz := getenv("BOT_TIMEZONE", "Local")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("config: invalid BOT_TIMEZONE %q: %w", tz, err)
	}
	cfg.Location = loc

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
