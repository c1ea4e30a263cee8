// Package bot ties the pipeline together: context window, classification,
// the per-intent branch, and the reply. One inbound message runs straight
// through; the terminal state is always a delivered reply, failure replies
// included.
package bot

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/ledger-bot/internal/domain"
	"github.com/dvloznov/ledger-bot/internal/ledger"
	"github.com/dvloznov/ledger-bot/internal/nlu"
)

// Replier delivers reply text to the messaging platform. Fire-and-forget
// from the dispatcher's perspective: a delivery failure is logged, never
// retried, never escalated — the ledger mutation already happened.
type Replier interface {
	Reply(ctx context.Context, replyToken string, messages []string) error
}

// Dispatcher is the per-message state machine. The reference time and
// location are injected so date-relative parsing is testable with fixed
// dates.
type Dispatcher struct {
	ledger     *ledger.Service
	classifier nlu.Classifier
	composer   *Composer
	replier    Replier
	log        zerolog.Logger

	now func() time.Time
	loc *time.Location
}

func NewDispatcher(svc *ledger.Service, classifier nlu.Classifier, composer *Composer, replier Replier, log zerolog.Logger, loc *time.Location) *Dispatcher {
	if loc == nil {
		loc = time.Local
	}
	return &Dispatcher{
		ledger:     svc,
		classifier: classifier,
		composer:   composer,
		replier:    replier,
		log:        log,
		now:        time.Now,
		loc:        loc,
	}
}

// HandleMessage processes one inbound message to completion. It never
// returns an error: every failure mode collapses into a reply.
func (d *Dispatcher) HandleMessage(ctx context.Context, userID, text, replyToken string) {
	log := d.log.With().Str("user_id", userID).Logger()
	now := d.now().In(d.loc)

	if _, err := d.ledger.TouchUser(ctx, userID); err != nil {
		log.Error().Err(err).Msg("Upserting user failed")
		d.reply(ctx, log, replyToken, storeFailReply)
		return
	}

	window, err := d.ledger.RecentContext(ctx, userID)
	if err != nil {
		log.Error().Err(err).Msg("Building context window failed")
		d.reply(ctx, log, replyToken, storeFailReply)
		return
	}

	intent, err := d.classifier.Classify(ctx, text, window, now)
	if err != nil {
		if err == nlu.ErrDisabled {
			log.Debug().Msg("Classifier disabled, sending fallback")
		} else {
			log.Warn().Err(err).Msg("Classification failed, sending fallback")
		}
		d.reply(ctx, log, replyToken, fallbackReply)
		return
	}

	log.Info().Str("intent", string(intent.Type)).Msg("Message classified")

	var replyText string
	switch intent.Type {
	case domain.IntentRecord:
		replyText = d.handleRecord(ctx, log, userID, *intent, now)
	case domain.IntentQuery:
		replyText = d.handleQuery(ctx, log, userID, *intent)
	case domain.IntentModify:
		replyText = d.handleModify(ctx, log, userID, *intent)
	case domain.IntentDelete:
		replyText = d.handleDelete(ctx, log, userID, *intent)
	case domain.IntentChat:
		replyText = d.composer.ChatReply(*intent)
	default:
		replyText = fallbackReply
	}

	d.reply(ctx, log, replyToken, replyText)
}

func (d *Dispatcher) handleRecord(ctx context.Context, log zerolog.Logger, userID string, in domain.Intent, now time.Time) string {
	tx, err := d.ledger.Record(ctx, userID, in, now)
	if err == ledger.ErrZeroAmount {
		log.Info().Msg("Record rejected: zero amount")
		return zeroAmountReply
	}
	if err != nil {
		log.Error().Err(err).Msg("Recording transaction failed")
		return storeFailReply
	}

	log.Info().Int64("transaction_id", tx.ID).Str("category", tx.Category).Msg("Transaction recorded")
	return d.composer.RecordReply(in, tx)
}

func (d *Dispatcher) handleQuery(ctx context.Context, log zerolog.Logger, userID string, in domain.Intent) string {
	res, err := d.ledger.Query(ctx, userID, in)
	if err != nil {
		log.Error().Err(err).Msg("Query failed")
		return storeFailReply
	}

	log.Info().Int("count", res.Count).Msg("Query executed")
	return d.composer.QueryReply(ctx, in, res)
}

func (d *Dispatcher) handleModify(ctx context.Context, log zerolog.Logger, userID string, in domain.Intent) string {
	tx, err := d.ledger.Modify(ctx, userID, in)
	if err == ledger.ErrNotFound {
		return noRecordReply
	}
	if err != nil {
		log.Error().Err(err).Msg("Modifying transaction failed")
		return storeFailReply
	}

	log.Info().Int64("transaction_id", tx.ID).Msg("Transaction modified")
	return d.composer.ModifyReply(in, tx)
}

func (d *Dispatcher) handleDelete(ctx context.Context, log zerolog.Logger, userID string, in domain.Intent) string {
	tx, err := d.ledger.Remove(ctx, userID, in.TargetID)
	if err == ledger.ErrNotFound {
		return noRecordReply
	}
	if err != nil {
		log.Error().Err(err).Msg("Deleting transaction failed")
		return storeFailReply
	}

	log.Info().Int64("transaction_id", tx.ID).Msg("Transaction deleted")
	return d.composer.DeleteReply(in, tx)
}

func (d *Dispatcher) reply(ctx context.Context, log zerolog.Logger, replyToken, text string) {
	if err := d.replier.Reply(ctx, replyToken, []string{text}); err != nil {
		log.Warn().Err(err).Msg("Reply delivery failed")
	}
}
