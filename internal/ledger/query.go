package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

// TopCategoryCount is how many per-category totals a reply shows.
const TopCategoryCount = 3

// CategoryTotal is one entry of the per-category breakdown.
type CategoryTotal struct {
	Category string
	Total    float64
}

// QueryResult is the matching set plus the aggregates every reply needs.
type QueryResult struct {
	Transactions []domain.Transaction
	Count        int
	IncomeTotal  float64
	ExpenseTotal float64
	Balance      float64
	ByCategory   []CategoryTotal
}

// Query turns a QUERY intent into a store filter, executes it and computes
// aggregates. An empty result set is a valid outcome, not an error.
func (s *Service) Query(ctx context.Context, userID string, in domain.Intent) (*QueryResult, error) {
	filter := buildFilter(userID, in)

	txs, err := s.store.FindMany(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	return aggregate(txs), nil
}

// buildFilter maps intent fields to store filter fields. The end date is
// inclusive: it expands to the last instant of that calendar day so a
// same-day query includes records stored with any time-of-day.
func buildFilter(userID string, in domain.Intent) TransactionFilter {
	f := TransactionFilter{UserID: userID}

	if !in.QueryStart.IsZero() {
		f.Start = in.QueryStart
	}
	if !in.QueryEnd.IsZero() {
		f.End = endOfDay(in.QueryEnd)
	}
	if in.QueryType == domain.QueryExpense || in.QueryType == domain.QueryIncome {
		f.Type = domain.TxType(in.QueryType)
	}
	if in.Category != "" && in.Category != domain.CatchAllCategory {
		f.Category = in.Category
	}

	return f
}

// endOfDay expands a calendar date to 23:59:59.999999999 in its location.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

func aggregate(txs []domain.Transaction) *QueryResult {
	res := &QueryResult{
		Transactions: txs,
		Count:        len(txs),
	}

	byCategory := make(map[string]float64)
	for _, tx := range txs {
		if tx.Type == domain.TxIncome {
			res.IncomeTotal += tx.Amount
		} else {
			res.ExpenseTotal += tx.Amount
		}
		byCategory[tx.Category] += tx.Amount
	}
	res.Balance = res.IncomeTotal - res.ExpenseTotal

	for cat, total := range byCategory {
		res.ByCategory = append(res.ByCategory, CategoryTotal{Category: cat, Total: total})
	}
	sort.Slice(res.ByCategory, func(i, j int) bool {
		if res.ByCategory[i].Total != res.ByCategory[j].Total {
			return res.ByCategory[i].Total > res.ByCategory[j].Total
		}
		return res.ByCategory[i].Category < res.ByCategory[j].Category
	})
	if len(res.ByCategory) > TopCategoryCount {
		res.ByCategory = res.ByCategory[:TopCategoryCount]
	}

	return res
}
