// Package bigquery implements the ledger Store on BigQuery. One transactions
// table and one users table; every read and mutation is a single
// parameterized query or streaming insert.
package bigquery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/ledger"
)

const (
	transactionsTable = "transactions"
	usersTable        = "users"
)

// TransactionRow is the transactions table schema. date_day duplicates the
// calendar day of date_ts so the table can be partitioned on it.
type TransactionRow struct {
	TransactionID int64      `bigquery:"transaction_id"`
	UserID        string     `bigquery:"user_id"`
	Amount        float64    `bigquery:"amount"`
	Category      string     `bigquery:"category"`
	Description   string     `bigquery:"description"`
	DateTS        time.Time  `bigquery:"date_ts"`
	DateDay       civil.Date `bigquery:"date_day"`
	TxType        string     `bigquery:"tx_type"`
	CreatedTS     time.Time  `bigquery:"created_ts"`
}

// UserRow is the users table schema.
type UserRow struct {
	UserID      string    `bigquery:"user_id"`
	DisplayName string    `bigquery:"display_name"`
	CreatedTS   time.Time `bigquery:"created_ts"`
}

// Store implements ledger.Store over BigQuery. ID assignment reads
// MAX(transaction_id)+1 under a process-local mutex, which assumes a
// single-writer deployment (same assumption the streaming inserts make).
type Store struct {
	client    *bigquery.Client
	projectID string
	datasetID string

	idMu sync.Mutex
}

func NewStore(ctx context.Context, projectID, datasetID string) (*Store, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewStore: bigquery client: %w", err)
	}
	return &Store{client: client, projectID: projectID, datasetID: datasetID}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

var _ ledger.Store = (*Store)(nil)

func (s *Store) FindMany(ctx context.Context, f ledger.TransactionFilter) ([]domain.Transaction, error) {
	where, params := buildWhere(f)

	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, user_id, amount, category, description, date_ts, tx_type, created_ts
		FROM %s.%s
		WHERE %s
		ORDER BY date_ts DESC, transaction_id DESC
	`, s.datasetID, transactionsTable, where))
	q.Parameters = params

	return s.readTransactions(ctx, q, "FindMany")
}

func (s *Store) FindRecent(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, user_id, amount, category, description, date_ts, tx_type, created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY transaction_id DESC
		LIMIT @row_limit
	`, s.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "row_limit", Value: int64(limit)},
	}

	return s.readTransactions(ctx, q, "FindRecent")
}

func (s *Store) FindUnique(ctx context.Context, id int64) (*domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, user_id, amount, category, description, date_ts, tx_type, created_ts
		FROM %s.%s
		WHERE transaction_id = @transaction_id
	`, s.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	}

	txs, err := s.readTransactions(ctx, q, "FindUnique")
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ledger.ErrNotFound
	}
	return &txs[0], nil
}

func (s *Store) FindFirst(ctx context.Context, userID string) (*domain.Transaction, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT transaction_id, user_id, amount, category, description, date_ts, tx_type, created_ts
		FROM %s.%s
		WHERE user_id = @user_id
		ORDER BY transaction_id DESC
		LIMIT 1
	`, s.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	txs, err := s.readTransactions(ctx, q, "FindFirst")
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, ledger.ErrNotFound
	}
	return &txs[0], nil
}

func (s *Store) Create(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	id, err := s.nextTransactionID(ctx)
	if err != nil {
		return nil, fmt.Errorf("Create: %w", err)
	}

	tx.ID = id
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	row := &TransactionRow{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Amount:        tx.Amount,
		Category:      tx.Category,
		Description:   tx.Description,
		DateTS:        tx.Date,
		DateDay:       civil.DateOf(tx.Date),
		TxType:        string(tx.Type),
		CreatedTS:     tx.CreatedAt,
	}

	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(transactionsTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return nil, fmt.Errorf("Create: inserting row: %w", err)
	}

	return &tx, nil
}

func (s *Store) Update(ctx context.Context, id int64, patch ledger.TransactionPatch) (*domain.Transaction, error) {
	sets := make([]string, 0, 5)
	params := []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	}

	if patch.Amount != nil {
		sets = append(sets, "amount = @amount")
		params = append(params, bigquery.QueryParameter{Name: "amount", Value: *patch.Amount})
	}
	if patch.Category != nil {
		sets = append(sets, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: *patch.Category})
	}
	if patch.Description != nil {
		sets = append(sets, "description = @description")
		params = append(params, bigquery.QueryParameter{Name: "description", Value: *patch.Description})
	}
	if patch.Date != nil {
		sets = append(sets, "date_ts = @date_ts", "date_day = @date_day")
		params = append(params,
			bigquery.QueryParameter{Name: "date_ts", Value: *patch.Date},
			bigquery.QueryParameter{Name: "date_day", Value: civil.DateOf(*patch.Date)},
		)
	}

	if len(sets) > 0 {
		q := s.client.Query(fmt.Sprintf(`
			UPDATE %s.%s
			SET %s
			WHERE transaction_id = @transaction_id
		`, s.datasetID, transactionsTable, strings.Join(sets, ", ")))
		q.Parameters = params

		if err := s.runDML(ctx, q); err != nil {
			return nil, fmt.Errorf("Update: %w", err)
		}
	}

	return s.FindUnique(ctx, id)
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	q := s.client.Query(fmt.Sprintf(`
		DELETE FROM %s.%s
		WHERE transaction_id = @transaction_id
	`, s.datasetID, transactionsTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "transaction_id", Value: id},
	}

	if err := s.runDML(ctx, q); err != nil {
		return fmt.Errorf("Delete: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context, f ledger.TransactionFilter) (int64, error) {
	where, params := buildWhere(f)

	q := s.client.Query(fmt.Sprintf(`
		SELECT COUNT(*) AS n
		FROM %s.%s
		WHERE %s
	`, s.datasetID, transactionsTable, where))
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("Count: running query: %w", err)
	}

	var row struct {
		N int64 `bigquery:"n"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("Count: reading row: %w", err)
	}
	return row.N, nil
}

func (s *Store) UpsertUser(ctx context.Context, user domain.User) (*domain.User, error) {
	existing, err := s.FindUser(ctx, user.ID)
	if err == nil {
		if user.DisplayName != "" && user.DisplayName != existing.DisplayName {
			q := s.client.Query(fmt.Sprintf(`
				UPDATE %s.%s
				SET display_name = @display_name
				WHERE user_id = @user_id
			`, s.datasetID, usersTable))
			q.Parameters = []bigquery.QueryParameter{
				{Name: "display_name", Value: user.DisplayName},
				{Name: "user_id", Value: user.ID},
			}
			if err := s.runDML(ctx, q); err != nil {
				return nil, fmt.Errorf("UpsertUser: %w", err)
			}
			existing.DisplayName = user.DisplayName
		}
		return existing, nil
	}
	if err != ledger.ErrNotFound {
		return nil, err
	}

	if user.DisplayName == "" {
		user.DisplayName = user.ID
	}
	user.CreatedAt = time.Now()

	row := &UserRow{
		UserID:      user.ID,
		DisplayName: user.DisplayName,
		CreatedTS:   user.CreatedAt,
	}
	table := s.client.DatasetInProject(s.projectID, s.datasetID).Table(usersTable)
	if err := table.Inserter().Put(ctx, row); err != nil {
		return nil, fmt.Errorf("UpsertUser: inserting row: %w", err)
	}
	return &user, nil
}

func (s *Store) FindUser(ctx context.Context, id string) (*domain.User, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT user_id, display_name, created_ts
		FROM %s.%s
		WHERE user_id = @user_id
	`, s.datasetID, usersTable))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: id},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindUser: running query: %w", err)
	}

	var row UserRow
	if err := it.Next(&row); err == iterator.Done {
		return nil, ledger.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("FindUser: reading row: %w", err)
	}

	return &domain.User{
		ID:          row.UserID,
		DisplayName: row.DisplayName,
		CreatedAt:   row.CreatedTS,
	}, nil
}

// nextTransactionID reserves the next monotonic id. Caller holds idMu.
func (s *Store) nextTransactionID(ctx context.Context) (int64, error) {
	q := s.client.Query(fmt.Sprintf(`
		SELECT IFNULL(MAX(transaction_id), 0) + 1 AS next_id
		FROM %s.%s
	`, s.datasetID, transactionsTable))

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("nextTransactionID: running query: %w", err)
	}

	var row struct {
		NextID int64 `bigquery:"next_id"`
	}
	if err := it.Next(&row); err != nil {
		return 0, fmt.Errorf("nextTransactionID: reading row: %w", err)
	}
	return row.NextID, nil
}

func (s *Store) readTransactions(ctx context.Context, q *bigquery.Query, op string) ([]domain.Transaction, error) {
	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: running query: %w", op, err)
	}

	var result []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: reading row: %w", op, err)
		}
		result = append(result, domain.Transaction{
			ID:          row.TransactionID,
			UserID:      row.UserID,
			Amount:      row.Amount,
			Category:    row.Category,
			Description: row.Description,
			Date:        row.DateTS,
			Type:        domain.TxType(row.TxType),
			CreatedAt:   row.CreatedTS,
		})
	}
	return result, nil
}

func (s *Store) runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}

func buildWhere(f ledger.TransactionFilter) (string, []bigquery.QueryParameter) {
	conds := []string{"TRUE"}
	var params []bigquery.QueryParameter

	if f.UserID != "" {
		conds = append(conds, "user_id = @user_id")
		params = append(params, bigquery.QueryParameter{Name: "user_id", Value: f.UserID})
	}
	if !f.Start.IsZero() {
		conds = append(conds, "date_ts >= @start_ts")
		params = append(params, bigquery.QueryParameter{Name: "start_ts", Value: f.Start})
	}
	if !f.End.IsZero() {
		conds = append(conds, "date_ts <= @end_ts")
		params = append(params, bigquery.QueryParameter{Name: "end_ts", Value: f.End})
	}
	if f.Type != "" {
		conds = append(conds, "tx_type = @tx_type")
		params = append(params, bigquery.QueryParameter{Name: "tx_type", Value: string(f.Type)})
	}
	if f.Category != "" {
		conds = append(conds, "category = @category")
		params = append(params, bigquery.QueryParameter{Name: "category", Value: f.Category})
	}

	return strings.Join(conds, " AND "), params
}
