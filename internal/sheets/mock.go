package sheets

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/model"
)

// MockRow is a row held by MockLedger.
type MockRow struct {
	Fields   model.Fields
	RowKey   string
	Revision int
}

// MockLedger is an in-memory service.Ledger for tests and dry runs.
type MockLedger struct {
	Now            func() time.Time
	active         map[string]int
	appendFailures []error
	updateFailures []error
	findFailures   []error
	Rows           []MockRow
	AppendCalls    int
	UpdateCalls    int
	FindCalls      int
	// MaxConcurrent is the highest number of overlapping writes seen for one sender.
	MaxConcurrent int
	// Delay is how long each write holds before completing.
	Delay time.Duration
	mu    sync.Mutex
}

// NewMockLedger creates an empty mock ledger.
func NewMockLedger() *MockLedger {
	return &MockLedger{
		Now:    time.Now,
		active: make(map[string]int),
	}
}

// FailAppend queues errors returned by the next AppendRow calls, in order.
func (m *MockLedger) FailAppend(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendFailures = append(m.appendFailures, errs...)
}

// FailUpdate queues errors returned by the next UpdateRow calls, in order.
func (m *MockLedger) FailUpdate(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateFailures = append(m.updateFailures, errs...)
}

// FailFind queues errors returned by the next FindRecent calls, in order.
func (m *MockLedger) FailFind(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findFailures = append(m.findFailures, errs...)
}

// AppendRow implements service.Ledger.
func (m *MockLedger) AppendRow(ctx context.Context, fields model.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	m.AppendCalls++
	if err := pop(&m.appendFailures); err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.mu.Unlock()

	if err := m.hold(ctx, fields[model.ColumnSender]); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.Rows) + 2
	row := MockRow{
		Fields:   copyFields(fields),
		RowKey:   fmt.Sprintf("Mock!A%d:%s%d", n, lastColumn, n),
		Revision: 1,
	}
	m.Rows = append(m.Rows, row)
	return row.RowKey, nil
}

// UpdateRow implements service.Ledger.
func (m *MockLedger) UpdateRow(ctx context.Context, rowKey string, fields model.Fields) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.UpdateCalls++
	if err := pop(&m.updateFailures); err != nil {
		m.mu.Unlock()
		return 0, err
	}
	m.mu.Unlock()

	if err := m.hold(ctx, fields[model.ColumnSender]); err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Rows {
		if m.Rows[i].RowKey == rowKey {
			m.Rows[i].Revision++
			m.Rows[i].Fields = copyFields(fields)
			return m.Rows[i].Revision, nil
		}
	}
	return 0, common.Permanent(fmt.Errorf("row %s: %w", rowKey, common.ErrNotFound))
}

// FindRecent implements service.Ledger.
func (m *MockLedger) FindRecent(ctx context.Context, senderID string, within time.Duration) (model.LedgerRef, bool, error) {
	if err := ctx.Err(); err != nil {
		return model.LedgerRef{}, false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FindCalls++
	if err := pop(&m.findFailures); err != nil {
		return model.LedgerRef{}, false, err
	}

	cutoff := m.Now().Add(-within)
	for i := len(m.Rows) - 1; i >= 0; i-- {
		row := m.Rows[i]
		if row.Fields[model.ColumnSender] != senderID || row.Fields[model.ColumnStatus] == model.RowVoid {
			continue
		}
		at, err := time.Parse(time.RFC3339, row.Fields[model.ColumnCommittedAt])
		if err != nil || at.Before(cutoff) {
			continue
		}
		return model.LedgerRef{RowKey: row.RowKey, Revision: row.Revision}, true, nil
	}
	return model.LedgerRef{}, false, nil
}

// ReadRow implements service.Ledger.
func (m *MockLedger) ReadRow(ctx context.Context, rowKey string) (model.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.Rows {
		if row.RowKey == rowKey {
			return withRevision(row.Fields, row.Revision), nil
		}
	}
	return nil, common.Permanent(fmt.Errorf("row %s: %w", rowKey, common.ErrNotFound))
}

// RowsOn implements service.Ledger.
func (m *MockLedger) RowsOn(ctx context.Context, day time.Time) ([]model.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	want := day.Format(model.DateLayout)
	var out []model.Fields
	for _, row := range m.Rows {
		if row.Fields[model.ColumnDate] == want {
			out = append(out, withRevision(row.Fields, row.Revision))
		}
	}
	return out, nil
}

// Snapshot returns a copy of the stored rows.
func (m *MockLedger) Snapshot() []MockRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows := make([]MockRow, len(m.Rows))
	for i, r := range m.Rows {
		rows[i] = MockRow{Fields: copyFields(r.Fields), RowKey: r.RowKey, Revision: r.Revision}
	}
	return rows
}

// Calls returns the append, update and find call counts.
func (m *MockLedger) Calls() (appends, updates, finds int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.AppendCalls, m.UpdateCalls, m.FindCalls
}

// Concurrency returns the highest overlap of writes seen for one sender.
func (m *MockLedger) Concurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MaxConcurrent
}

// hold tracks overlapping writes for sender and waits Delay.
func (m *MockLedger) hold(ctx context.Context, sender string) error {
	m.mu.Lock()
	m.active[sender]++
	if m.active[sender] > m.MaxConcurrent {
		m.MaxConcurrent = m.active[sender]
	}
	delay := m.Delay
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.active[sender]--
		m.mu.Unlock()
	}()
	return common.SleepContext(ctx, delay)
}

func pop(queue *[]error) error {
	if len(*queue) == 0 {
		return nil
	}
	err := (*queue)[0]
	*queue = (*queue)[1:]
	return err
}

func copyFields(f model.Fields) model.Fields {
	out := make(model.Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}
