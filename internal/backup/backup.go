// Package backup exports a user's full ledger as CSV and uploads it to a
// GCS bucket.
package backup

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/logger"
)

// Run exports every transaction the user owns and uploads the CSV to
// gs://<bucket>/backups/<user>/<date>.csv. Returns the object name.
func Run(ctx context.Context, store ledger.Store, bucket, userID string) (string, error) {
	log := logger.FromContext(ctx)

	txs, err := store.FindMany(ctx, ledger.TransactionFilter{UserID: userID})
	if err != nil {
		return "", fmt.Errorf("backup: query transactions: %w", err)
	}

	data, err := RenderCSV(txs)
	if err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	objectName := fmt.Sprintf("backups/%s/%s.csv", userID, time.Now().Format("2006-01-02"))
	if err := upload(ctx, bucket, objectName, data); err != nil {
		return "", fmt.Errorf("backup: %w", err)
	}

	log.Info().
		Str("user_id", userID).
		Str("object", objectName).
		Int("transaction_count", len(txs)).
		Msg("Ledger backup uploaded")

	return objectName, nil
}

// RenderCSV renders transactions in a stable column order, header first.
func RenderCSV(txs []domain.Transaction) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"id", "date", "type", "category", "amount", "description"}); err != nil {
		return nil, fmt.Errorf("RenderCSV: write header: %w", err)
	}

	for _, tx := range txs {
		record := []string{
			strconv.FormatInt(tx.ID, 10),
			tx.Date.Format("2006-01-02"),
			string(tx.Type),
			tx.Category,
			strconv.FormatFloat(tx.Amount, 'f', -1, 64),
			tx.Description,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("RenderCSV: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("RenderCSV: %w", err)
	}
	return buf.Bytes(), nil
}

// upload writes the CSV bytes to the bucket. Assumes Application Default
// Credentials are configured.
func upload(ctx context.Context, bucketName, objectName string, data []byte) error {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("create storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucketName).Object(objectName).NewWriter(ctx)
	w.ContentType = "text/csv"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload: %w", err)
	}
	return nil
}
