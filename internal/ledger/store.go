package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

// ErrNotFound is returned by store lookups that match nothing. The resolver
// also maps "record owned by someone else" to this error so that callers can
// never distinguish the two cases.
var ErrNotFound = errors.New("record not found")

// ErrZeroAmount rejects a RECORD with a missing or zero amount. Nothing is
// written when it is returned.
var ErrZeroAmount = errors.New("amount must be non-zero")

// TransactionFilter selects transactions for FindMany/Count. Zero-value
// fields are not applied. Start/End bound the transaction date inclusively;
// expanding End to the end of its calendar day is the query engine's job,
// the store applies the bounds as given.
type TransactionFilter struct {
	UserID   string
	Start    time.Time
	End      time.Time
	Type     domain.TxType
	Category string
}

// TransactionPatch carries the fields a modify changes. Nil pointers leave
// the stored value untouched.
type TransactionPatch struct {
	Amount      *float64
	Category    *string
	Description *string
	Date        *time.Time
}

// Store is the ledger persistence gateway. Each call is transactional on its
// own; the pipeline never needs a cross-call transaction.
type Store interface {
	// FindMany returns transactions matching the filter, ordered by date
	// descending.
	FindMany(ctx context.Context, f TransactionFilter) ([]domain.Transaction, error)

	// FindRecent returns up to limit transactions for the user, ordered by
	// id descending.
	FindRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)

	// FindUnique returns the transaction with the given id regardless of
	// owner, or ErrNotFound. Ownership checks are the caller's concern.
	FindUnique(ctx context.Context, id int64) (*domain.Transaction, error)

	// FindFirst returns the user's most recent transaction (highest id),
	// or ErrNotFound.
	FindFirst(ctx context.Context, userID string) (*domain.Transaction, error)

	// Create persists a new transaction and returns it with its assigned id.
	Create(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)

	// Update applies the patch and returns the updated transaction.
	Update(ctx context.Context, id int64, patch TransactionPatch) (*domain.Transaction, error)

	// Delete removes the transaction with the given id.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of transactions matching the filter.
	Count(ctx context.Context, f TransactionFilter) (int64, error)

	// UpsertUser creates the user on first contact or returns the existing
	// one. DisplayName is only written on create unless it is non-empty.
	UpsertUser(ctx context.Context, user domain.User) (*domain.User, error)

	// FindUser returns the user with the given platform id, or ErrNotFound.
	FindUser(ctx context.Context, id string) (*domain.User, error)
}
