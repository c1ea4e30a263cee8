package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-bot/internal/api/middleware"
	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/jobs"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/line"
)

// WebhookHandler validates and unpacks LINE webhook deliveries, turning
// each text-message event into a job. It answers 200 immediately; the
// pipeline runs on the queue's workers.
type WebhookHandler struct {
	channelSecret string
	publisher     jobs.Publisher
	log           zerolog.Logger
}

func NewWebhookHandler(channelSecret string, publisher jobs.Publisher, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		channelSecret: channelSecret,
		publisher:     publisher,
		log:           log,
	}
}

// Handle handles POST /webhook
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	signature := r.Header.Get("x-line-signature")
	if !line.ValidateSignature(h.channelSecret, body, signature) {
		h.log.Warn().Msg("Webhook signature mismatch")
		middleware.WriteError(w, http.StatusForbidden, "Invalid signature")
		return
	}

	var req line.WebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	for _, event := range req.Events {
		if event.Type != "message" || event.Message.Type != "text" || event.Source.UserID == "" {
			continue
		}

		job := &jobs.ProcessMessageJob{
			UserID:     event.Source.UserID,
			ReplyToken: event.ReplyToken,
			Text:       event.Message.Text,
			ReceivedAt: time.UnixMilli(event.Timestamp),
		}
		if err := h.publisher.PublishMessage(ctx, job); err != nil {
			h.log.Error().Err(err).Str("user_id", event.Source.UserID).Msg("Failed to enqueue message job")
			continue
		}
		h.log.Info().Str("job_id", job.JobID).Str("user_id", job.UserID).Msg("Message job enqueued")
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"message": "OK"})
}

// TransactionsHandler serves the dashboard's raw transaction list.
type TransactionsHandler struct {
	store ledger.Store
	log   zerolog.Logger
}

func NewTransactionsHandler(store ledger.Store, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: store, log: log}
}

// List handles GET /api/transactions?user_id&start_date&end_date
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	filter, ok := rangeFilter(w, r, userID)
	if !ok {
		return
	}

	transactions, err := h.store.FindMany(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to query transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to query transactions")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// StatsHandler serves the dashboard's aggregate summary.
type StatsHandler struct {
	svc *ledger.Service
	log zerolog.Logger
}

func NewStatsHandler(svc *ledger.Service, log zerolog.Logger) *StatsHandler {
	return &StatsHandler{svc: svc, log: log}
}

// Get handles GET /api/stats?user_id&start_date&end_date
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	in := domain.Intent{Type: domain.IntentQuery, QueryType: domain.QueryAll}
	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
		in.QueryStart = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
		in.QueryEnd = t
	}

	res, err := h.svc.Query(ctx, userID, in)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to compute stats")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to compute stats")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count":         res.Count,
		"income_total":  res.IncomeTotal,
		"expense_total": res.ExpenseTotal,
		"balance":       res.Balance,
		"by_category":   res.ByCategory,
	})
}

// UsersHandler serves user registration (display-name assignment).
type UsersHandler struct {
	store ledger.Store
	log   zerolog.Logger
}

func NewUsersHandler(store ledger.Store, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{store: store, log: log}
}

// Register handles POST /api/users/register
func (h *UsersHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"user_id"`
		DisplayName string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.UserID == "" || req.DisplayName == "" {
		middleware.WriteError(w, http.StatusBadRequest, "user_id and display_name are required")
		return
	}

	user, err := h.store.UpsertUser(r.Context(), domain.User{
		ID:          req.UserID,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		h.log.Error().Err(err).Str("user_id", req.UserID).Msg("Failed to register user")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to register user")
		return
	}

	h.log.Info().Str("user_id", user.ID).Msg("User registered")
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"user_id":      user.ID,
		"display_name": user.DisplayName,
	})
}

func rangeFilter(w http.ResponseWriter, r *http.Request, userID string) (ledger.TransactionFilter, bool) {
	filter := ledger.TransactionFilter{UserID: userID}

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return filter, false
		}
		filter.Start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse("2006-01-02", s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return filter, false
		}
		// Inclusive end of day, matching the query engine.
		filter.End = t.Add(24*time.Hour - time.Nanosecond)
	}

	return filter, true
}
