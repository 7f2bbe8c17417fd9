// Package engine wires normalization, extraction, validation and commit into
// the message pipeline the chat gateway calls.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/extract"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/normalize"
	"github.com/Veraticus/chat-ledger/internal/reply"
	"github.com/Veraticus/chat-ledger/internal/service"
	"github.com/Veraticus/chat-ledger/internal/validate"
)

// Pipeline processes one chat message at a time. Everything but the
// committer is stateless, so a Pipeline is safe for concurrent use.
type Pipeline struct {
	normalizer *normalize.Normalizer
	extractor  *extract.Extractor
	validator  *validate.Validator
	committer  service.Committer
	composer   *reply.Composer
	logger     *slog.Logger
}

// Evaluation is the dry-run result of reading a message.
type Evaluation struct {
	MessageDate time.Time
	Tokens      []model.Token
	Candidates  model.Candidates
	Outcome     model.Outcome
	Correction  bool
	// Cancel is set when the message withdraws the sender's latest entry.
	Cancel bool
}

// reasonNothingToCancel is reported when a cancel finds no recent row.
const reasonNothingToCancel = "no recent entry to cancel"

// New assembles a pipeline. A nil logger uses slog.Default.
func New(
	normalizer *normalize.Normalizer,
	extractor *extract.Extractor,
	validator *validate.Validator,
	committer service.Committer,
	composer *reply.Composer,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		normalizer: normalizer,
		extractor:  extractor,
		validator:  validator,
		committer:  committer,
		composer:   composer,
		logger:     common.OrDefault(logger),
	}
}

// Evaluate reads msg without committing anything. A cancel marker takes
// precedence over any amount in the message.
func (p *Pipeline) Evaluate(msg model.InboundMessage) Evaluation {
	tokens := p.normalizer.Normalize(msg.Raw())
	messageDate := p.normalizer.MessageDate(msg.Timestamp)
	if normalize.HasKind(tokens, model.KindCancel) {
		return Evaluation{
			MessageDate: messageDate,
			Tokens:      tokens,
			Outcome:     model.Cancelled(),
			Cancel:      true,
		}
	}

	cands := p.extractor.Extract(tokens)
	outcome := p.validator.Validate(cands, validate.Envelope{
		SenderID:    msg.SenderID,
		MessageDate: messageDate,
	})
	return Evaluation{
		MessageDate: messageDate,
		Tokens:      tokens,
		Candidates:  cands,
		Outcome:     outcome,
		Correction:  msg.IsCorrectionHint || normalize.HasKind(tokens, model.KindCorrection),
	}
}

// Process reads msg, commits it when it is unambiguous and returns the reply
// for the sender. It never returns an error: failures are reported in the
// reply status.
func (p *Pipeline) Process(ctx context.Context, msg model.InboundMessage) model.Reply {
	eval := p.Evaluate(msg)
	view := reply.View{
		MessageDate: eval.MessageDate,
		SenderName:  msg.SenderName,
		Status:      eval.Outcome.Status,
		Reasons:     eval.Outcome.Reasons,
		Candidates:  eval.Outcome.Candidates,
		Record:      eval.Outcome.Record,
	}

	if eval.Cancel {
		return p.cancel(ctx, msg, view)
	}
	if eval.Outcome.Status != model.StatusAccepted {
		p.logger.Info("message not committed",
			"message_id", msg.MessageID,
			"sender", msg.SenderID,
			"status", eval.Outcome.Status,
			"cause", validate.Cause(eval.Outcome),
			"reasons", eval.Outcome.Reasons)
		return model.Reply{
			Status:       eval.Outcome.Status,
			HumanMessage: p.composer.Compose(ctx, view),
		}
	}

	record := *eval.Outcome.Record
	receipt, err := p.committer.Commit(ctx, record, model.Session{
		MessageID:  msg.MessageID,
		Correction: eval.Correction,
	})
	if err != nil {
		p.logger.Error("failed to commit record",
			"message_id", msg.MessageID,
			"sender", msg.SenderID,
			"transient", errors.Is(err, common.ErrCommitTransient),
			"cancelled", errors.Is(err, common.ErrCancelled),
			"error", err)
		view.Status = model.StatusCommitError
		view.Err = err
		return model.Reply{
			Status:       model.StatusCommitError,
			Record:       &record,
			HumanMessage: p.composer.Compose(ctx, view),
		}
	}

	view.Receipt = receipt
	ref := receipt.Ref
	return model.Reply{
		Status:       model.StatusAccepted,
		LedgerRef:    &ref,
		Record:       &record,
		Duplicate:    receipt.Duplicate,
		HumanMessage: p.composer.Compose(ctx, view),
	}
}

// cancel voids the sender's latest recent entry.
func (p *Pipeline) cancel(ctx context.Context, msg model.InboundMessage, view reply.View) model.Reply {
	receipt, err := p.committer.Void(ctx, msg.SenderID, model.Session{MessageID: msg.MessageID})
	switch {
	case errors.Is(err, common.ErrNotFound):
		p.logger.Info("nothing to cancel",
			"message_id", msg.MessageID,
			"sender", msg.SenderID)
		view.Status = model.StatusRejected
		view.Reasons = []string{reasonNothingToCancel}
		return model.Reply{
			Status:       model.StatusRejected,
			HumanMessage: p.composer.Compose(ctx, view),
		}
	case err != nil:
		p.logger.Error("failed to cancel entry",
			"message_id", msg.MessageID,
			"sender", msg.SenderID,
			"transient", errors.Is(err, common.ErrCommitTransient),
			"error", err)
		view.Status = model.StatusCommitError
		view.Err = err
		return model.Reply{
			Status:       model.StatusCommitError,
			HumanMessage: p.composer.Compose(ctx, view),
		}
	}

	view.Receipt = receipt
	ref := receipt.Ref
	return model.Reply{
		Status:       model.StatusCancelled,
		LedgerRef:    &ref,
		Duplicate:    receipt.Duplicate,
		HumanMessage: p.composer.Compose(ctx, view),
	}
}
