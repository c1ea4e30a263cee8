package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/nlu"
)

// Canned replies for the paths that never reach the language model. Every
// path through the composer ends in non-empty text.
const (
	fallbackReply = "Sorry, I didn't catch that. Try something like \"lunch 100\", " +
		"\"how much did I spend this week?\", or \"delete the last one\"."
	chatFallback     = "Hi! Tell me about an expense or ask about your spending."
	noRecordReply    = "I couldn't find a record to act on."
	zeroAmountReply  = "I need an amount to record that. Try \"lunch 100\"."
	storeFailReply   = "Something went wrong on my side. Please try again."
	noDataLabel      = "no data"
	summarizeMaxRows = 50
)

// Composer produces the user-facing reply text. Query replies are two-tier:
// an optional conversational summary from the language model, then a
// deterministic template that needs no external call.
type Composer struct {
	summarizer nlu.Summarizer
	log        zerolog.Logger
}

func NewComposer(summarizer nlu.Summarizer, log zerolog.Logger) *Composer {
	return &Composer{summarizer: summarizer, log: log}
}

// QueryReply renders a query result. The summarizer gets the raw rows when
// the set is small, a pre-aggregated summary otherwise, and its non-empty
// output wins; the template is the backstop.
func (c *Composer) QueryReply(ctx context.Context, in domain.Intent, res *ledger.QueryResult) string {
	if c.summarizer != nil {
		req := nlu.SummaryRequest{
			QueryType: in.QueryType,
			Start:     in.QueryStart,
			End:       in.QueryEnd,
			Lines:     summaryLines(res),
		}
		summary, err := c.summarizer.Summarize(ctx, req)
		if err != nil {
			if err != nlu.ErrDisabled {
				c.log.Warn().Err(err).Msg("Conversational summary failed, using template")
			}
		} else if summary != "" {
			return summary
		}
	}

	return c.queryTemplate(in, res)
}

// queryTemplate is the deterministic Tier-2 reply.
func (c *Composer) queryTemplate(in domain.Intent, res *ledger.QueryResult) string {
	var b strings.Builder
	b.WriteString("📊 " + queryLabel(in.QueryType) + " summary\n")

	switch in.QueryType {
	case domain.QueryExpense:
		fmt.Fprintf(&b, "Total: $%s\n", amount(res.ExpenseTotal))
	case domain.QueryIncome:
		fmt.Fprintf(&b, "Total: $%s\n", amount(res.IncomeTotal))
	default:
		fmt.Fprintf(&b, "Income: $%s\n", amount(res.IncomeTotal))
		fmt.Fprintf(&b, "Expense: $%s\n", amount(res.ExpenseTotal))
		fmt.Fprintf(&b, "Balance: $%s\n", amount(res.Balance))
	}
	fmt.Fprintf(&b, "Records: %d\n", res.Count)

	if len(res.ByCategory) > 0 {
		b.WriteString("Top categories:\n")
		for _, ct := range res.ByCategory {
			fmt.Fprintf(&b, "  %s: $%s\n", ct.Category, amount(ct.Total))
		}
	} else {
		b.WriteString(noDataLabel + "\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

// RecordReply confirms a recorded transaction, preferring the classifier's
// suggested reply.
func (c *Composer) RecordReply(in domain.Intent, tx *domain.Transaction) string {
	if in.Reply != "" {
		return in.Reply
	}
	return fmt.Sprintf("Recorded: %s $%s on %s ✅",
		tx.Category, amount(tx.Amount), tx.Date.Format("2006-01-02"))
}

// ModifyReply confirms an updated transaction.
func (c *Composer) ModifyReply(in domain.Intent, tx *domain.Transaction) string {
	if in.Reply != "" {
		return in.Reply
	}
	return fmt.Sprintf("Updated [%s]: now $%s on %s ✅",
		tx.Category, amount(tx.Amount), tx.Date.Format("2006-01-02"))
}

// DeleteReply confirms a deleted transaction.
func (c *Composer) DeleteReply(in domain.Intent, tx *domain.Transaction) string {
	if in.Reply != "" {
		return in.Reply
	}
	return fmt.Sprintf("Deleted [%s] $%s from %s 🗑️",
		tx.Category, amount(tx.Amount), tx.Date.Format("2006-01-02"))
}

// ChatReply passes through the classifier's suggested text, with a greeting
// backstop.
func (c *Composer) ChatReply(in domain.Intent) string {
	if in.Reply != "" {
		return in.Reply
	}
	return chatFallback
}

// summaryLines renders the payload for the summarizer. Raw rows when the
// set is small; aggregates only, to bound the payload, when it is not.
func summaryLines(res *ledger.QueryResult) []string {
	var lines []string
	if res.Count <= summarizeMaxRows {
		for _, tx := range res.Transactions {
			desc := tx.Description
			if desc == "" {
				desc = "-"
			}
			lines = append(lines, fmt.Sprintf("%s %s %s $%s (%s)",
				tx.Date.Format("2006-01-02"), tx.Type, tx.Category, amount(tx.Amount), desc))
		}
	}

	lines = append(lines,
		fmt.Sprintf("records: %d", res.Count),
		fmt.Sprintf("income total: $%s", amount(res.IncomeTotal)),
		fmt.Sprintf("expense total: $%s", amount(res.ExpenseTotal)),
		fmt.Sprintf("balance: $%s", amount(res.Balance)),
	)
	for _, ct := range res.ByCategory {
		lines = append(lines, fmt.Sprintf("category %s: $%s", ct.Category, amount(ct.Total)))
	}
	return lines
}

func queryLabel(qt domain.QueryType) string {
	switch qt {
	case domain.QueryExpense:
		return "Expense"
	case domain.QueryIncome:
		return "Income"
	default:
		return "Ledger"
	}
}

func amount(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "" || s == "-" {
		return "0"
	}
	return s
}
