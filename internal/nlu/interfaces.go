// Package nlu adapts the external natural-language understanding service.
// The rest of the pipeline only ever sees the Intent type: one method, two
// outcomes (a structured intent, or an error). Any error — missing
// credentials, transport failure, unparseable output — is the same normal
// branch to the dispatcher.
package nlu

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/ledger-bot/internal/domain"
)

// ErrDisabled is returned when no credentials are configured. No network
// call is attempted in that state.
var ErrDisabled = errors.New("nlu: not configured")

// Classifier turns a free-text message plus the recent-record context window
// into a structured intent. now is the user-local reference time, injected
// so "today"/"yesterday" resolve deterministically in tests.
type Classifier interface {
	Classify(ctx context.Context, message, contextWindow string, now time.Time) (*domain.Intent, error)
}

// SummaryRequest is the payload for the optional conversational summary of a
// query result.
type SummaryRequest struct {
	QueryType domain.QueryType
	Start     time.Time
	End       time.Time

	// Lines is the rendered result rows, or a pre-aggregated summary when
	// the result set was too large to send raw.
	Lines []string
}

// Summarizer produces the Tier-1 conversational reply for query results.
// An empty string or an error both mean "fall back to the template".
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}
