package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/chat-ledger/internal/common"
	"github.com/Veraticus/chat-ledger/internal/model"
	"github.com/Veraticus/chat-ledger/internal/service"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Header is the first row of every ledger tab.
var Header = []string{"Committed At", "Sender", "Date", "Amount", "Category", "Note", "Message ID", "Revision", "Status"}

var (
	lastColumn  = string(rune('A' + len(model.Columns) - 1))
	revisionCol = slices.Index(model.Columns, model.ColumnRevision)
	statusCol   = slices.Index(model.Columns, model.ColumnStatus)
	dateCol     = slices.Index(model.Columns, model.ColumnDate)
)

// Ledger implements service.Ledger on a Google Sheets spreadsheet.
type Ledger struct {
	service *sheets.Service
	logger  *slog.Logger
	now     func() time.Time
	ready   map[string]bool
	config  Config
	mu      sync.Mutex
}

var _ service.Ledger = (*Ledger)(nil)

// NewLedger creates a ledger authenticated with the configured credentials.
func NewLedger(ctx context.Context, config Config, logger *slog.Logger) (*Ledger, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	srv, err := createSheetsService(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return newLedger(srv, config, logger), nil
}

func newLedger(srv *sheets.Service, config Config, logger *slog.Logger) *Ledger {
	if config.TabTemplate == "" {
		config.TabTemplate = DefaultConfig().TabTemplate
	}
	return &Ledger{
		service: srv,
		config:  config,
		logger:  common.OrDefault(logger),
		now:     time.Now,
		ready:   make(map[string]bool),
	}
}

// createSheetsService creates a Google Sheets API service.
func createSheetsService(ctx context.Context, config Config) (*sheets.Service, error) {
	var tokenSource oauth2.TokenSource

	if config.ServiceAccountPath != "" {
		jsonKey, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}

		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}

		tokenSource = jwtConfig.TokenSource(ctx)
	} else {
		client := &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{sheets.SpreadsheetsScope},
		}

		token := &oauth2.Token{
			RefreshToken: config.RefreshToken,
			TokenType:    "Bearer",
		}

		tokenSource = client.TokenSource(ctx, token)
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	if config.Timeout > 0 {
		httpClient.Timeout = config.Timeout
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return srv, nil
}

// AppendRow implements service.Ledger. The row key is the A1 range written.
func (l *Ledger) AppendRow(ctx context.Context, fields model.Fields) (string, error) {
	tab := l.tabFor(fields)
	if err := l.ensureTab(ctx, tab); err != nil {
		return "", err
	}
	if fields[model.ColumnRevision] == "" {
		fields = withRevision(fields, 1)
	}

	resp, err := l.service.Spreadsheets.Values.
		Append(l.config.SpreadsheetID, a1(tab, "A1"), rowValues(fields)).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify(fmt.Errorf("failed to append to %s: %w", tab, err))
	}
	if resp.Updates == nil || resp.Updates.UpdatedRange == "" {
		return "", common.Permanent(fmt.Errorf("append to %s returned no range", tab))
	}

	l.logger.Debug("appended ledger row", "range", resp.Updates.UpdatedRange)
	return resp.Updates.UpdatedRange, nil
}

// UpdateRow implements service.Ledger.
func (l *Ledger) UpdateRow(ctx context.Context, rowKey string, fields model.Fields) (int, error) {
	current, err := l.service.Spreadsheets.Values.Get(l.config.SpreadsheetID, rowKey).Context(ctx).Do()
	if err != nil {
		return 0, classify(fmt.Errorf("failed to read %s: %w", rowKey, err))
	}
	if len(current.Values) == 0 || len(current.Values[0]) == 0 {
		return 0, common.Permanent(fmt.Errorf("row %s: %w", rowKey, common.ErrNotFound))
	}

	revision := parseRevision(current.Values[0]) + 1
	_, err = l.service.Spreadsheets.Values.
		Update(l.config.SpreadsheetID, rowKey, rowValues(withRevision(fields, revision))).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return 0, classify(fmt.Errorf("failed to update %s: %w", rowKey, err))
	}

	l.logger.Debug("updated ledger row", "range", rowKey, "revision", revision)
	return revision, nil
}

// FindRecent implements service.Ledger. Monthly ledgers search the current
// and previous month's tabs. Void rows are passed over.
func (l *Ledger) FindRecent(ctx context.Context, senderID string, within time.Duration) (model.LedgerRef, bool, error) {
	existing, err := l.tabs(ctx)
	if err != nil {
		return model.LedgerRef{}, false, err
	}

	cutoff := l.now().Add(-within)
	var (
		best   model.LedgerRef
		bestAt time.Time
		found  bool
	)
	for _, tab := range l.searchTabs() {
		if !existing[tab] {
			continue
		}
		resp, err := l.service.Spreadsheets.Values.
			Get(l.config.SpreadsheetID, a1(tab, "A2:"+lastColumn)).
			Context(ctx).
			Do()
		if err != nil {
			return model.LedgerRef{}, false, classify(fmt.Errorf("failed to read %s: %w", tab, err))
		}

		for i := len(resp.Values) - 1; i >= 0; i-- {
			row := resp.Values[i]
			if cell(row, 1) != senderID || cell(row, statusCol) == model.RowVoid {
				continue
			}
			at, err := time.Parse(time.RFC3339, cell(row, 0))
			if err != nil || at.Before(cutoff) {
				continue
			}
			if !found || at.After(bestAt) {
				n := i + 2
				best = model.LedgerRef{
					RowKey:   a1(tab, fmt.Sprintf("A%d:%s%d", n, lastColumn, n)),
					Revision: parseRevision(row),
				}
				bestAt, found = at, true
			}
			break
		}
	}
	return best, found, nil
}

// ReadRow implements service.Ledger.
func (l *Ledger) ReadRow(ctx context.Context, rowKey string) (model.Fields, error) {
	resp, err := l.service.Spreadsheets.Values.Get(l.config.SpreadsheetID, rowKey).Context(ctx).Do()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read %s: %w", rowKey, err))
	}
	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return nil, common.Permanent(fmt.Errorf("row %s: %w", rowKey, common.ErrNotFound))
	}
	return rowFields(resp.Values[0]), nil
}

// RowsOn implements service.Ledger. Only the tab holding day is read.
func (l *Ledger) RowsOn(ctx context.Context, day time.Time) ([]model.Fields, error) {
	tab := l.config.TabName
	if tab == TabAuto {
		tab = fmt.Sprintf(l.config.TabTemplate, int(day.Month()))
	}
	existing, err := l.tabs(ctx)
	if err != nil {
		return nil, err
	}
	if !existing[tab] {
		return nil, nil
	}

	resp, err := l.service.Spreadsheets.Values.
		Get(l.config.SpreadsheetID, a1(tab, "A2:"+lastColumn)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(fmt.Errorf("failed to read %s: %w", tab, err))
	}

	want := day.Format(model.DateLayout)
	var out []model.Fields
	for _, row := range resp.Values {
		if cell(row, dateCol) == want {
			out = append(out, rowFields(row))
		}
	}
	return out, nil
}

func (l *Ledger) tabFor(fields model.Fields) string {
	if l.config.TabName != TabAuto {
		return l.config.TabName
	}
	date, err := time.Parse(model.DateLayout, fields[model.ColumnDate])
	if err != nil {
		date = l.now()
	}
	return fmt.Sprintf(l.config.TabTemplate, int(date.Month()))
}

func (l *Ledger) searchTabs() []string {
	if l.config.TabName != TabAuto {
		return []string{l.config.TabName}
	}
	now := l.now()
	current := fmt.Sprintf(l.config.TabTemplate, int(now.Month()))
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	previous := fmt.Sprintf(l.config.TabTemplate, int(first.AddDate(0, -1, 0).Month()))
	return []string{current, previous}
}

// tabs lists the spreadsheet's tab titles.
func (l *Ledger) tabs(ctx context.Context) (map[string]bool, error) {
	ss, err := l.service.Spreadsheets.Get(l.config.SpreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify(fmt.Errorf("unable to access spreadsheet %s: %w", l.config.SpreadsheetID, err))
	}
	titles := make(map[string]bool, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles[s.Properties.Title] = true
		}
	}
	return titles, nil
}

// ensureTab creates tab with a header row unless it was already prepared.
func (l *Ledger) ensureTab(ctx context.Context, tab string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready[tab] {
		return nil
	}

	existing, err := l.tabs(ctx)
	if err != nil {
		return err
	}
	if !existing[tab] {
		_, err := l.service.Spreadsheets.BatchUpdate(l.config.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: tab}},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return classify(fmt.Errorf("failed to create tab %s: %w", tab, err))
		}
		l.logger.Info("created ledger tab", "tab", tab)
	}

	headerRange := a1(tab, "A1:"+lastColumn+"1")
	resp, err := l.service.Spreadsheets.Values.Get(l.config.SpreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return classify(fmt.Errorf("failed to read header of %s: %w", tab, err))
	}
	if len(resp.Values) == 0 {
		header := make([]any, len(Header))
		for i, h := range Header {
			header[i] = h
		}
		_, err := l.service.Spreadsheets.Values.
			Update(l.config.SpreadsheetID, headerRange, &sheets.ValueRange{Values: [][]any{header}}).
			ValueInputOption("RAW").
			Context(ctx).
			Do()
		if err != nil {
			return classify(fmt.Errorf("failed to write header of %s: %w", tab, err))
		}
	}

	l.ready[tab] = true
	return nil
}

func rowValues(fields model.Fields) *sheets.ValueRange {
	row := make([]any, len(model.Columns))
	for i, col := range model.Columns {
		row[i] = fields[col]
	}
	return &sheets.ValueRange{Values: [][]any{row}}
}

func rowFields(row []any) model.Fields {
	fields := make(model.Fields, len(model.Columns))
	for i, col := range model.Columns {
		fields[col] = cell(row, i)
	}
	fields[model.ColumnRevision] = strconv.Itoa(parseRevision(row))
	return fields
}

func withRevision(fields model.Fields, revision int) model.Fields {
	out := make(model.Fields, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[model.ColumnRevision] = strconv.Itoa(revision)
	return out
}

func parseRevision(row []any) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell(row, revisionCol)))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func cell(row []any, i int) string {
	if i >= len(row) || row[i] == nil {
		return ""
	}
	return fmt.Sprint(row[i])
}

// a1 builds an A1 reference, quoting the tab title.
func a1(tab, ref string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + ref
}

// classify marks Sheets API failures as transient or permanent.
func classify(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return common.Transient(fmt.Errorf("%w: %w", common.ErrRateLimit, err))
		case apiErr.Code == http.StatusRequestTimeout || apiErr.Code >= 500:
			return common.Transient(err)
		default:
			return common.Permanent(err)
		}
	}

	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) {
		return common.Transient(err)
	}
	return common.Permanent(err)
}
