package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"

	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/logger"
)

// SyncTransactions mirrors one user's transactions in [startDate, endDate]
// into a Notion database. Existing pages are matched by their "Ledger ID"
// property and updated in place; everything else is created. In dry-run
// mode the plan is logged and nothing is written.
func SyncTransactions(ctx context.Context, store ledger.Store, notion NotionService, notionDBID, userID string, startDate, endDate time.Time, dryRun bool) error {
	log := logger.FromContext(ctx)

	log.Info().
		Str("user_id", userID).
		Time("start_date", startDate).
		Time("end_date", endDate).
		Bool("dry_run", dryRun).
		Msg("Starting transaction sync to Notion")

	txs, err := store.FindMany(ctx, ledger.TransactionFilter{
		UserID: userID,
		Start:  startDate,
		End:    endDate.Add(24*time.Hour - time.Nanosecond),
	})
	if err != nil {
		return fmt.Errorf("SyncTransactions: query transactions: %w", err)
	}

	log.Info().Int("transaction_count", len(txs)).Msg("Retrieved transactions from ledger store")

	existing, err := existingPagesByLedgerID(ctx, notion, notionDBID)
	if err != nil {
		return fmt.Errorf("SyncTransactions: %w", err)
	}

	var created, updated int
	for _, tx := range txs {
		props := TransactionToNotionProperties(tx)

		if pgID, ok := existing[tx.ID]; ok {
			if dryRun {
				log.Info().Int64("transaction_id", tx.ID).Msg("Dry run: would update page")
				continue
			}
			if _, err := notion.UpdatePage(ctx, pgID, props); err != nil {
				return fmt.Errorf("SyncTransactions: update page for transaction %d: %w", tx.ID, err)
			}
			updated++
			continue
		}

		if dryRun {
			log.Info().Int64("transaction_id", tx.ID).Msg("Dry run: would create page")
			continue
		}
		if _, err := notion.CreatePage(ctx, notionDBID, props); err != nil {
			return fmt.Errorf("SyncTransactions: create page for transaction %d: %w", tx.ID, err)
		}
		created++
	}

	log.Info().
		Int("created", created).
		Int("updated", updated).
		Msg("Transaction sync to Notion completed")

	return nil
}

// existingPagesByLedgerID walks the Notion database and maps Ledger ID to
// page id.
func existingPagesByLedgerID(ctx context.Context, notion NotionService, notionDBID string) (map[int64]string, error) {
	result := make(map[int64]string)

	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		resp, err := notion.QueryDatabase(ctx, notionDBID, req)
		if err != nil {
			return nil, fmt.Errorf("existingPagesByLedgerID: %w", err)
		}

		for _, page := range resp.Results {
			if id := pageLedgerID(page); id != 0 {
				result[id] = pageID(page)
			}
		}

		if !resp.HasMore {
			break
		}
		cursor = resp.NextCursor
	}

	return result, nil
}
