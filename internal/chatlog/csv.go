// Package chatlog reads exported chat histories for replay.
package chatlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/gocarina/gocsv"
)

// timestampLayouts are tried in order; layouts without a zone use the
// reader's location.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
}

// row is one line of a chat export.
type row struct {
	MessageID  string `csv:"message_id"`
	SenderID   string `csv:"sender_id"`
	SenderName string `csv:"sender_name,omitempty"`
	ChatID     string `csv:"chat_id,omitempty"`
	Text       string `csv:"text"`
	Timestamp  string `csv:"timestamp"`
	Correction string `csv:"correction,omitempty"`
}

// RowError reports a line that could not be turned into a message.
type RowError struct {
	Err  error
	Line int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// ReadFile reads a CSV export from path.
func ReadFile(path string, loc *time.Location) ([]model.InboundMessage, error) {
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("error opening chat export: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Read(f, loc)
}

// Read parses a CSV export with a header row naming at least message_id,
// sender_id, text and timestamp. All row errors are reported together.
func Read(r io.Reader, loc *time.Location) ([]model.InboundMessage, error) {
	if loc == nil {
		loc = time.UTC
	}

	var rows []row
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("error parsing chat export: %w", err)
	}

	msgs := make([]model.InboundMessage, 0, len(rows))
	var errs []error
	for i, rw := range rows {
		msg, err := rw.message(loc)
		if err != nil {
			// Line 1 is the header.
			errs = append(errs, &RowError{Line: i + 2, Err: err})
			continue
		}
		msgs = append(msgs, msg)
	}
	if len(errs) > 0 {
		return msgs, errors.Join(errs...)
	}
	return msgs, nil
}

func (rw row) message(loc *time.Location) (model.InboundMessage, error) {
	msg := model.InboundMessage{
		MessageID:  strings.TrimSpace(rw.MessageID),
		SenderID:   strings.TrimSpace(rw.SenderID),
		SenderName: strings.TrimSpace(rw.SenderName),
		ChatID:     strings.TrimSpace(rw.ChatID),
		Text:       rw.Text,
	}
	if msg.MessageID == "" {
		return msg, errors.New("missing message_id")
	}
	if msg.SenderID == "" {
		return msg, errors.New("missing sender_id")
	}

	ts, err := parseTimestamp(rw.Timestamp, loc)
	if err != nil {
		return msg, err
	}
	msg.Timestamp = ts

	if c := strings.TrimSpace(rw.Correction); c != "" {
		hint, err := strconv.ParseBool(c)
		if err != nil {
			return msg, fmt.Errorf("invalid correction flag %q", rw.Correction)
		}
		msg.IsCorrectionHint = hint
	}
	return msg, nil
}

func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("missing timestamp")
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).In(loc), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
