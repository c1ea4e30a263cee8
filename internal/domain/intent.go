package domain

import (
	"time"
)

// IntentType identifies the action a classified message maps to.
type IntentType string

const (
	IntentRecord  IntentType = "RECORD"
	IntentQuery   IntentType = "QUERY"
	IntentModify  IntentType = "MODIFY"
	IntentDelete  IntentType = "DELETE"
	IntentChat    IntentType = "CHAT"
	IntentUnknown IntentType = "UNKNOWN"
)

// QueryType narrows a QUERY intent to one transaction direction.
type QueryType string

const (
	QueryExpense QueryType = "EXPENSE"
	QueryIncome  QueryType = "INCOME"
	QueryAll     QueryType = "ALL"
)

// Intent is the structured result of classifying one inbound message. It is
// ephemeral: produced per message, acted on, never persisted.
//
// Field presence follows the classifier contract: zero values mean "not set".
// Amount is zero for every intent except RECORD (and MODIFY when the user is
// changing the amount).
type Intent struct {
	Type IntentType

	// RECORD / MODIFY fields.
	Amount      float64
	Category    string
	Description string
	Date        time.Time
	TxType      TxType

	// QUERY fields. Zero times mean an unbounded range.
	QueryStart time.Time
	QueryEnd   time.Time
	QueryType  QueryType

	// MODIFY / DELETE target. Zero means "no explicit reference" and the
	// resolver falls back to the user's most recent record.
	TargetID int64

	// Reply is the classifier's suggested natural-language reply, if any.
	Reply string
}
