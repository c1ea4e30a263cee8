package ledger

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

const (
	// ContextWindowSize bounds the recent-record history handed to the
	// classifier for reference resolution.
	ContextWindowSize = 5

	// NoRecentRecords is rendered instead of an empty context window so the
	// classifier can tell "new user" apart from "window omitted".
	NoRecentRecords = "(no recent records)"
)

// Service implements the ledger operations the dispatcher acts through:
// building the context window, recording, resolving, modifying, deleting
// and querying transactions.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Store exposes the underlying gateway for collaborators that read the
// ledger directly (handlers, sync, backup).
func (s *Service) Store() Store {
	return s.store
}

// TouchUser creates the user on first contact.
func (s *Service) TouchUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.store.UpsertUser(ctx, domain.User{ID: userID})
}

// RecentContext renders the user's most recent transactions, newest first,
// one per line:
//
//	[ID:12] 2026-08-20 food $120 (lunch)
//
// An empty history renders as the NoRecentRecords marker.
func (s *Service) RecentContext(ctx context.Context, userID string) (string, error) {
	recent, err := s.store.FindRecent(ctx, userID, ContextWindowSize)
	if err != nil {
		return "", fmt.Errorf("RecentContext: %w", err)
	}
	if len(recent) == 0 {
		return NoRecentRecords, nil
	}

	lines := make([]string, 0, len(recent))
	for _, tx := range recent {
		desc := tx.Description
		if desc == "" {
			desc = "none"
		}
		lines = append(lines, fmt.Sprintf("[ID:%d] %s %s $%s (%s)",
			tx.ID, tx.Date.Format("2006-01-02"), tx.Category, formatAmount(tx.Amount), desc))
	}
	return strings.Join(lines, "\n"), nil
}

// Record validates and persists a new transaction from a RECORD intent.
// A zero or missing amount is rejected with ErrZeroAmount and nothing is
// written. The stored amount is always the magnitude; the sign is carried
// by the type.
func (s *Service) Record(ctx context.Context, userID string, in domain.Intent, now time.Time) (*domain.Transaction, error) {
	if in.Amount == 0 {
		return nil, ErrZeroAmount
	}

	tx := domain.Transaction{
		UserID:      userID,
		Amount:      math.Abs(in.Amount),
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		Type:        in.TxType,
	}
	if tx.Category == "" {
		tx.Category = domain.CatchAllCategory
	}
	if tx.Date.IsZero() {
		tx.Date = now
	}
	if tx.Type != domain.TxIncome {
		tx.Type = domain.TxExpense
	}

	created, err := s.store.Create(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("Record: %w", err)
	}
	return created, nil
}

// Resolve maps a MODIFY/DELETE target reference to a concrete owned record.
// An explicit id the classifier extracted always outranks the recency
// fallback, but only after ownership is verified: a record belonging to
// another user is treated exactly like a missing one.
func (s *Service) Resolve(ctx context.Context, userID string, targetID int64) (*domain.Transaction, error) {
	var explicit *domain.Transaction
	if targetID != 0 {
		tx, err := s.store.FindUnique(ctx, targetID)
		if err != nil && err != ErrNotFound {
			return nil, fmt.Errorf("Resolve: %w", err)
		}
		explicit = tx
	}

	var latest *domain.Transaction
	if explicit == nil || explicit.UserID != userID {
		tx, err := s.store.FindFirst(ctx, userID)
		if err != nil && err != ErrNotFound {
			return nil, fmt.Errorf("Resolve: %w", err)
		}
		latest = tx
	}

	resolved := resolveTarget(explicit, latest, userID)
	if resolved == nil {
		return nil, ErrNotFound
	}
	return resolved, nil
}

// resolveTarget encodes the resolution policy as a pure function so it can
// be tested apart from the lookups: explicit owned record first, then the
// recency fallback, never a record owned by someone else.
func resolveTarget(explicit, latest *domain.Transaction, userID string) *domain.Transaction {
	if explicit != nil && explicit.UserID == userID {
		return explicit
	}
	if latest != nil && latest.UserID == userID {
		return latest
	}
	return nil
}

// Modify resolves the target record and applies the fields the intent
// carries; absent fields stay untouched.
func (s *Service) Modify(ctx context.Context, userID string, in domain.Intent) (*domain.Transaction, error) {
	target, err := s.Resolve(ctx, userID, in.TargetID)
	if err != nil {
		return nil, err
	}

	patch := TransactionPatch{}
	if in.Amount != 0 {
		amount := math.Abs(in.Amount)
		patch.Amount = &amount
	}
	if in.Category != "" {
		patch.Category = &in.Category
	}
	if in.Description != "" {
		patch.Description = &in.Description
	}
	if !in.Date.IsZero() {
		patch.Date = &in.Date
	}

	updated, err := s.store.Update(ctx, target.ID, patch)
	if err != nil {
		return nil, fmt.Errorf("Modify: %w", err)
	}
	return updated, nil
}

// Remove resolves the target record and deletes it, returning the deleted
// record so the reply can describe it.
func (s *Service) Remove(ctx context.Context, userID string, targetID int64) (*domain.Transaction, error) {
	target, err := s.Resolve(ctx, userID, targetID)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, target.ID); err != nil {
		return nil, fmt.Errorf("Remove: %w", err)
	}
	return target, nil
}

// formatAmount trims trailing zeros so whole amounts render as "$100",
// not "$100.00".
func formatAmount(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return strings.TrimRight(fmt.Sprintf("%.2f", v), "0")
}
