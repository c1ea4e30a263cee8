// Command cli runs the message pipeline as a local REPL: type a message,
// get the bot's reply on stdout. Uses the in-memory store, so the ledger
// lives only for the session. Useful for prompt and pipeline debugging
// without a LINE channel.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/ledger-bot/internal/bot"
	"github.com/dvloznov/ledger-bot/internal/config"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/logger"
	"github.com/dvloznov/ledger-bot/internal/nlu"
	"github.com/dvloznov/ledger-bot/internal/store/memory"
)

// stdoutReplier prints replies instead of calling the messaging API.
type stdoutReplier struct{}

func (stdoutReplier) Reply(_ context.Context, _ string, messages []string) error {
	for _, m := range messages {
		fmt.Printf("bot> %s\n", m)
	}
	return nil
}

func main() {
	var (
		userID  = flag.String("user", "cli-user", "User ID to run the session as")
		verbose = flag.Bool("verbose", false, "Log pipeline internals to stderr")
	)
	flag.Parse()

	log := logger.New()
	if !*verbose {
		log = logger.NewWithWriter(io.Discard)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if cfg.GeminiAPIKey == "" {
		fmt.Println("note: GEMINI_API_KEY not set; every message gets the fallback reply")
	}

	svc := ledger.NewService(memory.NewStore())
	gemini := nlu.NewGemini(cfg.GeminiAPIKey, cfg.GeminiModel)
	composer := bot.NewComposer(gemini, log)
	dispatcher := bot.NewDispatcher(svc, gemini, composer, stdoutReplier{}, log, cfg.Location)

	ctx := logger.WithContext(context.Background(), log)

	fmt.Printf("ledger-bot REPL (user %s). Ctrl-D to exit.\n", *userID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("you> ")
		if !scanner.Scan() {
			break
		}
		text := scanner.Text()
		if text == "" {
			continue
		}
		dispatcher.HandleMessage(ctx, *userID, text, "")
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "read stdin: %v\n", err)
		os.Exit(1)
	}
	fmt.Println()
}
