// Package model defines the core domain models used throughout the application.
package model

import "time"

// InboundMessage is a single chat delivery handed to the core.
type InboundMessage struct {
	Timestamp        time.Time `json:"timestamp"`
	MessageID        string    `json:"message_id"`
	SenderID         string    `json:"sender_id"`
	SenderName       string    `json:"sender_name,omitempty"`
	ChatID           string    `json:"chat_id,omitempty"`
	Text             string    `json:"text"`
	IsCorrectionHint bool      `json:"correction,omitempty"`
}

// RawMessage is the immutable text view of a delivery used by extraction.
type RawMessage struct {
	Timestamp time.Time
	Text      string
	SenderID  string
}

// Raw returns the extraction view of the message.
func (m InboundMessage) Raw() RawMessage {
	return RawMessage{
		Text:      m.Text,
		SenderID:  m.SenderID,
		Timestamp: m.Timestamp,
	}
}

// Session carries per-delivery commit context.
type Session struct {
	MessageID  string
	Correction bool
}
