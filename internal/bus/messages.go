// Package bus connects the pipeline to the chat gateway over RabbitMQ:
// inbound chat events are consumed from a topic exchange and replies are
// published to a reply exchange.
package bus

import (
	"errors"
	"strings"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
)

// ErrPoison marks a delivery that can never be processed.
var ErrPoison = errors.New("poison message")

// ReplyEvent is published for every processed inbound message.
type ReplyEvent struct {
	RepliedAt time.Time        `json:"replied_at"`
	LedgerRef *model.LedgerRef `json:"ledger_ref,omitempty"`
	// Record is set whenever the message was read as an entry, including
	// COMMIT_ERROR replies so the sender can re-submit it.
	Record    *RecordPayload `json:"record,omitempty"`
	MessageID string         `json:"message_id"`
	ChatID    string         `json:"chat_id,omitempty"`
	SenderID  string         `json:"sender_id"`
	Status    model.Status   `json:"status"`
	Text      string         `json:"text"`
	Duplicate bool           `json:"duplicate,omitempty"`
}

// RecordPayload is the wire form of a ledger entry.
type RecordPayload struct {
	Date     string `json:"date"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
	Note     string `json:"note,omitempty"`
}

func newRecordPayload(r *model.Record) *RecordPayload {
	if r == nil {
		return nil
	}
	return &RecordPayload{
		Date:     r.Date.Format(model.DateLayout),
		Amount:   r.Amount.String(),
		Category: r.Category,
		Note:     r.Note,
	}
}

func newReplyEvent(msg model.InboundMessage, r model.Reply, at time.Time) ReplyEvent {
	return ReplyEvent{
		RepliedAt: at,
		LedgerRef: r.LedgerRef,
		Record:    newRecordPayload(r.Record),
		MessageID: msg.MessageID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Status:    r.Status,
		Text:      r.HumanMessage,
		Duplicate: r.Duplicate,
	}
}

// replyKey routes a reply back to the chat it came from.
func replyKey(msg model.InboundMessage) string {
	target := msg.ChatID
	if target == "" {
		target = msg.SenderID
	}
	return "reply." + strings.ReplaceAll(target, ".", "_")
}

func checkInbound(msg model.InboundMessage) error {
	switch {
	case strings.TrimSpace(msg.MessageID) == "":
		return errors.New("missing message_id")
	case strings.TrimSpace(msg.SenderID) == "":
		return errors.New("missing sender_id")
	}
	return nil
}
