package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/jobs"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/store/memory"
)

type fakePublisher struct {
	jobs []*jobs.ProcessMessageJob
	err  error
}

func (f *fakePublisher) PublishMessage(_ context.Context, job *jobs.ProcessMessageJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func webhookBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"destination": "bot",
		"events": []map[string]interface{}{
			{
				"type":       "message",
				"replyToken": "token-1",
				"timestamp":  1756100000000,
				"source":     map[string]string{"type": "user", "userId": "u1"},
				"message":    map[string]string{"id": "m1", "type": "text", "text": "lunch 100"},
			},
			{
				// Sticker message: must be skipped.
				"type":       "message",
				"replyToken": "token-2",
				"timestamp":  1756100000001,
				"source":     map[string]string{"type": "user", "userId": "u1"},
				"message":    map[string]string{"id": "m2", "type": "sticker"},
			},
			{
				// Follow event: must be skipped.
				"type":       "follow",
				"replyToken": "token-3",
				"source":     map[string]string{"type": "user", "userId": "u1"},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal webhook body: %v", err)
	}
	return body
}

func TestWebhookHandler(t *testing.T) {
	const secret = "channel-secret"

	t.Run("valid delivery enqueues text messages only", func(t *testing.T) {
		pub := &fakePublisher{}
		h := NewWebhookHandler(secret, pub, zerolog.Nop())

		body := webhookBody(t)
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		req.Header.Set("x-line-signature", sign(secret, body))
		rec := httptest.NewRecorder()

		h.Handle(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if len(pub.jobs) != 1 {
			t.Fatalf("enqueued %d jobs, want 1", len(pub.jobs))
		}
		job := pub.jobs[0]
		if job.UserID != "u1" || job.Text != "lunch 100" || job.ReplyToken != "token-1" {
			t.Errorf("job = %+v", job)
		}
	})

	t.Run("bad signature is rejected before parsing", func(t *testing.T) {
		pub := &fakePublisher{}
		h := NewWebhookHandler(secret, pub, zerolog.Nop())

		body := webhookBody(t)
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		req.Header.Set("x-line-signature", sign("wrong-secret", body))
		rec := httptest.NewRecorder()

		h.Handle(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
		if len(pub.jobs) != 0 {
			t.Errorf("enqueued %d jobs, want 0", len(pub.jobs))
		}
	})

	t.Run("missing signature is rejected", func(t *testing.T) {
		pub := &fakePublisher{}
		h := NewWebhookHandler(secret, pub, zerolog.Nop())

		body := webhookBody(t)
		req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(body))
		rec := httptest.NewRecorder()

		h.Handle(rec, req)

		if rec.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", rec.Code)
		}
	})
}

func TestTransactionsHandler(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, tx := range []domain.Transaction{
		{UserID: "u1", Amount: 100, Category: "food", Type: domain.TxExpense, Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{UserID: "u1", Amount: 30, Category: "transport", Type: domain.TxExpense, Date: time.Date(2026, 8, 22, 0, 0, 0, 0, time.UTC)},
		{UserID: "u2", Amount: 999, Category: "rent", Type: domain.TxExpense, Date: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)},
	} {
		if _, err := store.Create(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	h := NewTransactionsHandler(store, zerolog.Nop())

	t.Run("requires user_id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/transactions", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("filters by user and range", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?user_id=u1&start_date=2026-08-21&end_date=2026-08-22", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		var resp struct {
			Count int `json:"count"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if resp.Count != 1 {
			t.Errorf("count = %d, want 1", resp.Count)
		}
	})

	t.Run("rejects malformed dates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, httptest.NewRequest(http.MethodGet, "/api/transactions?user_id=u1&start_date=21-08-2026", nil))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestStatsHandler(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, tx := range []domain.Transaction{
		{UserID: "u1", Amount: 100, Category: "food", Type: domain.TxExpense, Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{UserID: "u1", Amount: 5000, Category: "salary", Type: domain.TxIncome, Date: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)},
	} {
		if _, err := store.Create(ctx, tx); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	h := NewStatsHandler(ledger.NewService(store), zerolog.Nop())

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest(http.MethodGet, "/api/stats?user_id=u1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Count        int     `json:"count"`
		IncomeTotal  float64 `json:"income_total"`
		ExpenseTotal float64 `json:"expense_total"`
		Balance      float64 `json:"balance"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Count != 2 || resp.IncomeTotal != 5000 || resp.ExpenseTotal != 100 || resp.Balance != 4900 {
		t.Errorf("stats = %+v", resp)
	}
}

func TestUsersHandler(t *testing.T) {
	store := memory.NewStore()
	h := NewUsersHandler(store, zerolog.Nop())

	t.Run("registers a display name", func(t *testing.T) {
		body := bytes.NewBufferString(`{"user_id":"u1","display_name":"Alice"}`)
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/users/register", body))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}

		user, err := store.FindUser(context.Background(), "u1")
		if err != nil {
			t.Fatalf("FindUser() error = %v", err)
		}
		if user.DisplayName != "Alice" {
			t.Errorf("DisplayName = %q", user.DisplayName)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		body := bytes.NewBufferString(`{"user_id":"u1"}`)
		rec := httptest.NewRecorder()
		h.Register(rec, httptest.NewRequest(http.MethodPost, "/api/users/register", body))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}
