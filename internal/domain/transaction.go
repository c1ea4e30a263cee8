package domain

import (
	"time"
)

// TxType is the direction of a ledger transaction. The stored amount is
// always a non-negative magnitude; the sign lives here.
type TxType string

const (
	TxExpense TxType = "EXPENSE"
	TxIncome  TxType = "INCOME"
)

// CatchAllCategory is the default label for records the classifier could not
// place. It is a bucket, not a real category: a query filtered on it is
// treated as unfiltered.
const CatchAllCategory = "other"

// Transaction is the unit of ledger truth. IDs are assigned monotonically by
// the store and are the identity used for modify/delete targeting.
type Transaction struct {
	ID          int64
	UserID      string
	Amount      float64
	Category    string
	Description string
	Date        time.Time
	Type        TxType
	CreatedAt   time.Time
}

// Signed returns the amount with the sign implied by the type
// (income positive, expense negative).
func (t Transaction) Signed() float64 {
	if t.Type == TxExpense {
		return -t.Amount
	}
	return t.Amount
}

// User is a ledger owner, keyed by the messaging platform's stable user id.
// Users are created on first contact and never deleted.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}
