package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/nlu"
	"github.com/dvloznov/ledger-bot/internal/store/memory"
)

// fakeClassifier returns a fixed intent or error.
type fakeClassifier struct {
	intent *domain.Intent
	err    error

	lastMessage string
	lastWindow  string
}

func (f *fakeClassifier) Classify(_ context.Context, message, contextWindow string, _ time.Time) (*domain.Intent, error) {
	f.lastMessage = message
	f.lastWindow = contextWindow
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

// fakeSummarizer fails or answers with fixed text.
type fakeSummarizer struct {
	text string
	err  error
}

func (f *fakeSummarizer) Summarize(_ context.Context, _ nlu.SummaryRequest) (string, error) {
	return f.text, f.err
}

// captureReplier records every delivered message.
type captureReplier struct {
	messages []string
	err      error
}

func (c *captureReplier) Reply(_ context.Context, _ string, messages []string) error {
	c.messages = append(c.messages, messages...)
	return c.err
}

func newTestDispatcher(store ledger.Store, classifier nlu.Classifier) (*Dispatcher, *captureReplier) {
	log := zerolog.Nop()
	replier := &captureReplier{}
	svc := ledger.NewService(store)
	composer := NewComposer(&fakeSummarizer{err: nlu.ErrDisabled}, log)
	d := NewDispatcher(svc, classifier, composer, replier, log, time.UTC)
	d.now = func() time.Time { return time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC) }
	return d, replier
}

func lastReply(t *testing.T, r *captureReplier) string {
	t.Helper()
	if len(r.messages) == 0 {
		t.Fatal("no reply delivered")
	}
	return r.messages[len(r.messages)-1]
}

func TestHandleMessageClassifierFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("classifier error sends fallback", func(t *testing.T) {
		d, replier := newTestDispatcher(memory.NewStore(), &fakeClassifier{err: errors.New("model unavailable")})
		d.HandleMessage(ctx, "user-1", "lunch 100", "token")

		if got := lastReply(t, replier); got != fallbackReply {
			t.Errorf("reply = %q, want fallback", got)
		}
	})

	t.Run("disabled classifier sends fallback", func(t *testing.T) {
		d, replier := newTestDispatcher(memory.NewStore(), &fakeClassifier{err: nlu.ErrDisabled})
		d.HandleMessage(ctx, "user-1", "lunch 100", "token")

		if got := lastReply(t, replier); got != fallbackReply {
			t.Errorf("reply = %q, want fallback", got)
		}
	})

	t.Run("unknown intent sends fallback", func(t *testing.T) {
		d, replier := newTestDispatcher(memory.NewStore(), &fakeClassifier{intent: &domain.Intent{Type: domain.IntentUnknown}})
		d.HandleMessage(ctx, "user-1", "asdfgh", "token")

		if got := lastReply(t, replier); got != fallbackReply {
			t.Errorf("reply = %q, want fallback", got)
		}
	})
}

func TestHandleMessageRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("lunch 100 records an expense", func(t *testing.T) {
		store := memory.NewStore()
		classifier := &fakeClassifier{intent: &domain.Intent{
			Type:        domain.IntentRecord,
			Amount:      100,
			Category:    "food",
			Description: "lunch",
		}}
		d, replier := newTestDispatcher(store, classifier)

		d.HandleMessage(ctx, "user-1", "lunch 100", "token")

		txs, err := store.FindMany(ctx, ledger.TransactionFilter{UserID: "user-1"})
		if err != nil {
			t.Fatalf("FindMany() error = %v", err)
		}
		if len(txs) != 1 {
			t.Fatalf("got %d transactions, want 1", len(txs))
		}
		tx := txs[0]
		if tx.Amount != 100 || tx.Category != "food" || tx.Type != domain.TxExpense {
			t.Errorf("recorded %+v", tx)
		}
		if !tx.Date.Equal(time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("Date = %v, want the injected now", tx.Date)
		}
		if lastReply(t, replier) == "" {
			t.Error("reply is empty")
		}
	})

	t.Run("zero amount mutates nothing and corrects the user", func(t *testing.T) {
		store := memory.NewStore()
		classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentRecord, Category: "food"}}
		d, replier := newTestDispatcher(store, classifier)

		d.HandleMessage(ctx, "user-1", "lunch", "token")

		n, err := store.Count(ctx, ledger.TransactionFilter{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 0 {
			t.Errorf("store has %d transactions, want 0", n)
		}
		if got := lastReply(t, replier); got != zeroAmountReply {
			t.Errorf("reply = %q, want zero-amount correction", got)
		}
	})
}

func TestHandleMessageModifyDelete(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, store ledger.Store) {
		t.Helper()
		for _, tx := range []domain.Transaction{
			{UserID: "user-1", Amount: 120, Category: "food", Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Type: domain.TxExpense},
			{UserID: "user-1", Amount: 30, Category: "transport", Date: time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), Type: domain.TxExpense},
		} {
			if _, err := store.Create(ctx, tx); err != nil {
				t.Fatalf("seed: %v", err)
			}
		}
	}

	t.Run("modify without target updates the latest record only", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store)
		classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentModify, Amount: 45}}
		d, _ := newTestDispatcher(store, classifier)

		d.HandleMessage(ctx, "user-1", "make that 45", "token")

		latest, err := store.FindFirst(ctx, "user-1")
		if err != nil {
			t.Fatalf("FindFirst() error = %v", err)
		}
		if latest.Amount != 45 {
			t.Errorf("latest amount = %v, want 45", latest.Amount)
		}

		first, err := store.FindUnique(ctx, 1)
		if err != nil {
			t.Fatalf("FindUnique() error = %v", err)
		}
		if first.Amount != 120 {
			t.Errorf("older record changed: amount = %v", first.Amount)
		}
	})

	t.Run("delete without target removes the latest record", func(t *testing.T) {
		store := memory.NewStore()
		seed(t, store)
		classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentDelete}}
		d, _ := newTestDispatcher(store, classifier)

		d.HandleMessage(ctx, "user-1", "delete the last one", "token")

		n, err := store.Count(ctx, ledger.TransactionFilter{UserID: "user-1"})
		if err != nil {
			t.Fatalf("Count() error = %v", err)
		}
		if n != 1 {
			t.Errorf("store has %d transactions, want 1", n)
		}
		if _, err := store.FindUnique(ctx, 2); err != ledger.ErrNotFound {
			t.Errorf("record 2 still present, err = %v", err)
		}
	})

	t.Run("delete with nothing to act on says so", func(t *testing.T) {
		classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentDelete}}
		d, replier := newTestDispatcher(memory.NewStore(), classifier)

		d.HandleMessage(ctx, "user-1", "delete the last one", "token")

		if got := lastReply(t, replier); got != noRecordReply {
			t.Errorf("reply = %q, want no-record reply", got)
		}
	})
}

func TestHandleMessageQueryAndChat(t *testing.T) {
	ctx := context.Background()

	t.Run("query reply is non-empty without any model", func(t *testing.T) {
		store := memory.NewStore()
		if _, err := store.Create(ctx, domain.Transaction{UserID: "user-1", Amount: 100, Category: "food", Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Type: domain.TxExpense}); err != nil {
			t.Fatalf("seed: %v", err)
		}
		classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentQuery, QueryType: domain.QueryExpense}}
		d, replier := newTestDispatcher(store, classifier)

		d.HandleMessage(ctx, "user-1", "how much did I spend?", "token")

		if got := lastReply(t, replier); got == "" {
			t.Error("query reply is empty")
		}
	})

	t.Run("chat passes the suggested reply through", func(t *testing.T) {
		classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentChat, Reply: "Hello there!"}}
		d, replier := newTestDispatcher(memory.NewStore(), classifier)

		d.HandleMessage(ctx, "user-1", "hi", "token")

		if got := lastReply(t, replier); got != "Hello there!" {
			t.Errorf("reply = %q", got)
		}
	})
}

func TestHandleMessageContextWindow(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	if _, err := store.Create(ctx, domain.Transaction{UserID: "user-1", Amount: 120, Category: "food", Description: "lunch", Date: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), Type: domain.TxExpense}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentChat, Reply: "ok"}}
	d, _ := newTestDispatcher(store, classifier)

	d.HandleMessage(ctx, "user-1", "hi", "token")

	if classifier.lastWindow != "[ID:1] 2026-08-20 food $120 (lunch)" {
		t.Errorf("context window = %q", classifier.lastWindow)
	}
	if classifier.lastMessage != "hi" {
		t.Errorf("message = %q", classifier.lastMessage)
	}
}

func TestHandleMessageDeliveryFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	classifier := &fakeClassifier{intent: &domain.Intent{Type: domain.IntentChat, Reply: "hello"}}
	d, replier := newTestDispatcher(memory.NewStore(), classifier)
	replier.err = errors.New("LINE unavailable")

	// Must not panic or retry.
	d.HandleMessage(ctx, "user-1", "hi", "token")

	if len(replier.messages) != 1 {
		t.Errorf("delivery attempted %d times, want 1", len(replier.messages))
	}
}
