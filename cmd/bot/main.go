package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/ledger-bot/internal/api/handlers"
	"github.com/dvloznov/ledger-bot/internal/api/middleware"
	"github.com/dvloznov/ledger-bot/internal/bot"
	"github.com/dvloznov/ledger-bot/internal/config"
	"github.com/dvloznov/ledger-bot/internal/jobs"
	"github.com/dvloznov/ledger-bot/internal/jobs/inmemory"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/line"
	"github.com/dvloznov/ledger-bot/internal/logger"
	"github.com/dvloznov/ledger-bot/internal/nlu"
	storebq "github.com/dvloznov/ledger-bot/internal/store/bigquery"
	"github.com/dvloznov/ledger-bot/internal/store/memory"
)

func main() {
	var (
		port    = flag.String("port", "", "HTTP server port (overrides PORT env)")
		workers = flag.Int("workers", 5, "Number of concurrent message workers")
	)
	flag.Parse()

	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	if cfg.LineChannelSecret == "" || cfg.LineChannelToken == "" {
		log.Fatal().Msg("LINE_CHANNEL_SECRET and LINE_CHANNEL_TOKEN are required")
	}
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set - classifier disabled, every message gets the fallback reply")
	}

	ctx := context.Background()

	// Store selection: BigQuery when configured, in-memory otherwise.
	var store ledger.Store
	if cfg.BigQueryProject != "" {
		bqStore, err := storebq.NewStore(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery store")
		}
		defer bqStore.Close()
		store = bqStore
	} else {
		log.Warn().Msg("BQ_PROJECT not set - using in-memory store, ledger data will not survive restarts")
		store = memory.NewStore()
	}

	svc := ledger.NewService(store)
	gemini := nlu.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	composer := bot.NewComposer(gemini, log)
	lineClient := line.NewClient(cfg.LineChannelToken)
	dispatcher := bot.NewDispatcher(svc, gemini, composer, lineClient, log, cfg.Location)

	// Message queue: one job per inbound message, same-user jobs serialized.
	queue := inmemory.NewQueue(100, *workers)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	handler := func(ctx context.Context, job *jobs.ProcessMessageJob) error {
		ctx = logger.WithContext(ctx, log)
		dispatcher.HandleMessage(ctx, job.UserID, job.Text, job.ReplyToken)
		return nil
	}

	go func() {
		log.Info().Int("workers", *workers).Msg("Starting message workers")
		if err := queue.Start(workerCtx, handler); err != nil {
			log.Error().Err(err).Msg("Message workers stopped with error")
		}
	}()

	webhookHandler := handlers.NewWebhookHandler(cfg.LineChannelSecret, queue, log)
	transactionsHandler := handlers.NewTransactionsHandler(store, log)
	statsHandler := handlers.NewStatsHandler(svc, log)
	usersHandler := handlers.NewUsersHandler(store, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			webhookHandler.Handle(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			transactionsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			statsHandler.Get(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/users/register", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			usersHandler.Register(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	httpHandler := middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(mux),
		),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting webhook server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	if err := queue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping message queue")
	}

	log.Info().Msg("Server exited")
}
