package backup

import (
	"strings"
	"testing"
	"time"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

func TestRenderCSV(t *testing.T) {
	txs := []domain.Transaction{
		{ID: 1, UserID: "u1", Amount: 120, Category: "food", Description: "lunch",
			Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Type: domain.TxExpense},
		{ID: 2, UserID: "u1", Amount: 5000.5, Category: "salary", Description: "a \"quoted\" note",
			Date: time.Date(2026, 8, 25, 0, 0, 0, 0, time.UTC), Type: domain.TxIncome},
	}

	data, err := RenderCSV(txs)
	if err != nil {
		t.Fatalf("RenderCSV() error = %v", err)
	}

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), data)
	}
	if lines[0] != "id,date,type,category,amount,description" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[1] != "1,2026-08-20,EXPENSE,food,120,lunch" {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "2,2026-08-25,INCOME,salary,5000.5,") {
		t.Errorf("row 2 = %q", lines[2])
	}
	if !strings.Contains(lines[2], `""quoted""`) {
		t.Errorf("quotes not escaped: %q", lines[2])
	}
}

func TestRenderCSVEmpty(t *testing.T) {
	data, err := RenderCSV(nil)
	if err != nil {
		t.Fatalf("RenderCSV() error = %v", err)
	}
	if got := strings.TrimRight(string(data), "\n"); got != "id,date,type,category,amount,description" {
		t.Errorf("empty ledger CSV = %q, want header only", got)
	}
}
