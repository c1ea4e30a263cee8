// Package memory is an in-memory implementation of the ledger Store.
// It backs the CLI and the test suite; data is lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/ledger"
)

// Store keeps transactions and users in maps guarded by a RWMutex. IDs are
// assigned from a monotonic counter. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	nextID int64
	txs    map[int64]domain.Transaction
	users  map[string]domain.User
}

func NewStore() *Store {
	return &Store{
		nextID: 1,
		txs:    make(map[int64]domain.Transaction),
		users:  make(map[string]domain.User),
	}
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) FindMany(ctx context.Context, f ledger.TransactionFilter) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, tx := range s.txs {
		if matches(tx, f) {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].ID > result[j].ID
	})
	return result, nil
}

func (s *Store) FindRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.Transaction
	for _, tx := range s.txs {
		if tx.UserID == userID {
			result = append(result, tx)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) FindUnique(ctx context.Context, id int64) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &tx, nil
}

func (s *Store) FindFirst(ctx context.Context, userID string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.Transaction
	for id, tx := range s.txs {
		if tx.UserID != userID {
			continue
		}
		if latest == nil || id > latest.ID {
			txCopy := tx
			latest = &txCopy
		}
	}
	if latest == nil {
		return nil, ledger.ErrNotFound
	}
	return latest, nil
}

func (s *Store) Create(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx.ID = s.nextID
	s.nextID++
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}
	s.txs[tx.ID] = tx
	return &tx, nil
}

func (s *Store) Update(ctx context.Context, id int64, patch ledger.TransactionPatch) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.txs[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	if patch.Amount != nil {
		tx.Amount = *patch.Amount
	}
	if patch.Category != nil {
		tx.Category = *patch.Category
	}
	if patch.Description != nil {
		tx.Description = *patch.Description
	}
	if patch.Date != nil {
		tx.Date = *patch.Date
	}
	s.txs[id] = tx
	return &tx, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txs[id]; !ok {
		return ledger.ErrNotFound
	}
	delete(s.txs, id)
	return nil
}

func (s *Store) Count(ctx context.Context, f ledger.TransactionFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, tx := range s.txs {
		if matches(tx, f) {
			n++
		}
	}
	return n, nil
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.ID]
	if ok {
		if user.DisplayName != "" {
			existing.DisplayName = user.DisplayName
			s.users[user.ID] = existing
		}
		return &existing, nil
	}

	if user.DisplayName == "" {
		user.DisplayName = user.ID
	}
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return &user, nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &user, nil
}

func matches(tx domain.Transaction, f ledger.TransactionFilter) bool {
	if f.UserID != "" && tx.UserID != f.UserID {
		return false
	}
	if !f.Start.IsZero() && tx.Date.Before(f.Start) {
		return false
	}
	if !f.End.IsZero() && tx.Date.After(f.End) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Category != "" && tx.Category != f.Category {
		return false
	}
	return true
}
