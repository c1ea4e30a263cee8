package nlu

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

// intentFromMap converts the model's decoded JSON object into an Intent.
// Unknown intent tags map to IntentUnknown rather than failing, so the
// dispatcher can still send the fallback reply. Amounts on non-RECORD,
// non-MODIFY intents are forced to zero regardless of what the model
// returned.
func intentFromMap(m map[string]interface{}) (*domain.Intent, error) {
	tag, err := getStringField(m, "intent", true)
	if err != nil {
		return nil, err
	}

	intent := &domain.Intent{}

	switch domain.IntentType(strings.ToUpper(strings.TrimSpace(tag))) {
	case domain.IntentRecord:
		intent.Type = domain.IntentRecord
	case domain.IntentQuery:
		intent.Type = domain.IntentQuery
	case domain.IntentModify:
		intent.Type = domain.IntentModify
	case domain.IntentDelete:
		intent.Type = domain.IntentDelete
	case domain.IntentChat:
		intent.Type = domain.IntentChat
	default:
		intent.Type = domain.IntentUnknown
	}

	amount, err := getFloat64Field(m, "amount", false)
	if err != nil {
		return nil, err
	}
	if intent.Type == domain.IntentRecord || intent.Type == domain.IntentModify {
		intent.Amount = amount
	}

	if intent.Category, err = getStringField(m, "category", false); err != nil {
		return nil, err
	}
	if intent.Description, err = getStringField(m, "description", false); err != nil {
		return nil, err
	}
	if intent.Reply, err = getStringField(m, "reply", false); err != nil {
		return nil, err
	}

	if intent.Date, err = getDateField(m, "date"); err != nil {
		return nil, err
	}
	if intent.QueryStart, err = getDateField(m, "query_start_date"); err != nil {
		return nil, err
	}
	if intent.QueryEnd, err = getDateField(m, "query_end_date"); err != nil {
		return nil, err
	}

	txType, err := getStringField(m, "type", false)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(txType, string(domain.TxIncome)) {
		intent.TxType = domain.TxIncome
	} else if txType != "" {
		intent.TxType = domain.TxExpense
	}

	queryType, err := getStringField(m, "query_type", false)
	if err != nil {
		return nil, err
	}
	switch strings.ToUpper(strings.TrimSpace(queryType)) {
	case string(domain.QueryExpense):
		intent.QueryType = domain.QueryExpense
	case string(domain.QueryIncome):
		intent.QueryType = domain.QueryIncome
	default:
		intent.QueryType = domain.QueryAll
	}

	targetID, err := getFloat64Field(m, "target_id", false)
	if err != nil {
		return nil, err
	}
	if intent.Type == domain.IntentModify || intent.Type == domain.IntentDelete {
		intent.TargetID = int64(targetID)
	}

	return intent, nil
}

func getStringField(m map[string]interface{}, key string, required bool) (string, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("missing required field %q", key)
		}
		return "", nil
	}
	switch val := v.(type) {
	case string:
		if required && strings.TrimSpace(val) == "" {
			return "", fmt.Errorf("required field %q is empty", key)
		}
		return strings.TrimSpace(val), nil
	default:
		return "", fmt.Errorf("field %q has type %T, want string", key, v)
	}
}

func getFloat64Field(m map[string]interface{}, key string, required bool) (float64, error) {
	v, ok := m[key]
	if !ok || v == nil {
		if required {
			return 0, fmt.Errorf("missing required field %q", key)
		}
		return 0, nil
	}
	switch val := v.(type) {
	case float64:
		return val, nil
	case int: // unlikely from encoding/json, but harmless to support
		return float64(val), nil
	default:
		return 0, fmt.Errorf("field %q has type %T, want number", key, v)
	}
}

// getDateField parses an optional "YYYY-MM-DD" string; empty means unset.
func getDateField(m map[string]interface{}, key string) (time.Time, error) {
	s, err := getStringField(m, key, false)
	if err != nil {
		return time.Time{}, err
	}
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %q: invalid date %q: %w", key, s, err)
	}
	return t, nil
}
