// Package google keeps the cash book in a hosted Google spreadsheet
// instead of a local workbook file. It implements the same ledger ports;
// rows use the same 12 columns, but new entries append at the bottom (the
// Sheets API has no cheap insert-at-top), so listings read from the tail.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"kasboek/internal/core"
	"kasboek/internal/ledger"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheet         string
}

var (
	_ ledger.Store           = (*Client)(nil)
	_ ledger.HeaderValidator = (*Client)(nil)
)

// NewFromEnv creates a Sheets-backed ledger from environment variables.
// Required: KASBOEK_SPREADSHEET_ID. Credentials come from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS.
func NewFromEnv(ctx context.Context, sheet string) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("KASBOEK_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing KASBOEK_SPREADSHEET_ID")
	}
	if strings.TrimSpace(sheet) == "" {
		sheet = "Transacties"
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheet: sheet}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	inlineJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	credFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if inlineJSON == "" && credFile == "" {
		credFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentials []byte
	switch {
	case inlineJSON != "":
		credentials = []byte(inlineJSON)
	case credFile != "":
		b, err := os.ReadFile(credFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentials = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentials),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Append writes the transaction after the last row of the sheet.
func (c *Client) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}

	vr := &gsheet.ValueRange{Values: [][]any{t.Row()}}
	rng := fmt.Sprintf("%s!A:L", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to sheet %s: %w", c.sheet, err)
	}
	ref := rng
	if resp.Updates != nil && resp.Updates.UpdatedRange != "" {
		ref = resp.Updates.UpdatedRange
	}
	slog.InfoContext(ctx, "Transaction appended to spreadsheet", "range", ref)
	return ref, nil
}

func (c *Client) Recent(ctx context.Context, limit int) ([]core.Transaction, error) {
	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// All reads every data row and returns them newest-first, i.e. reversed
// from sheet order since this backend appends at the bottom.
func (c *Client) All(ctx context.Context) ([]core.Transaction, error) {
	rows, err := c.dataRows(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		t, ok := parseRow(rows[i])
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (c *Client) Balance(ctx context.Context) (core.Money, error) {
	rows, err := c.dataRows(ctx)
	if err != nil {
		return core.Money{}, err
	}
	var total int64
	for _, row := range rows {
		cents, ok := parseAmountCents(col(row, 6))
		if !ok {
			continue
		}
		switch core.Direction(strings.TrimSpace(col(row, 5))) {
		case core.Debit:
			total -= cents
		case core.Credit:
			total += cents
		}
	}
	return core.Money{Cents: total}, nil
}

func (c *Client) ValidateHeaders(ctx context.Context, sheet string) error {
	if sheet == "" {
		sheet = c.sheet
	}
	rng := fmt.Sprintf("%s!A1:L1", sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read %s: %w", rng, err)
	}
	var first []any
	if len(resp.Values) > 0 {
		first = resp.Values[0]
	}
	for i, want := range core.Headers {
		got := ""
		if i < len(first) {
			got = strings.TrimSpace(fmt.Sprint(first[i]))
		}
		if got != strings.TrimSpace(want) {
			return fmt.Errorf("header column %d is %q, want %q", i+1, got, want)
		}
	}
	return nil
}

func (c *Client) dataRows(ctx context.Context) ([][]any, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:L", c.sheet)
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, err)
	}
	if len(resp.Values) <= 1 {
		return nil, nil
	}
	return resp.Values[1:], nil
}

func parseRow(row []any) (core.Transaction, bool) {
	dateStr := strings.TrimSpace(col(row, 0))
	if dateStr == "" {
		return core.Transaction{}, false
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		date = core.Date{}
	}
	cents, _ := parseAmountCents(col(row, 6))
	return core.Transaction{
		Date:           date,
		Description:    strings.TrimSpace(col(row, 1)),
		Account:        strings.TrimSpace(col(row, 2)),
		CounterAccount: strings.TrimSpace(col(row, 3)),
		Code:           strings.TrimSpace(col(row, 4)),
		Direction:      core.Direction(strings.TrimSpace(col(row, 5))),
		Amount:         core.Money{Cents: cents},
		MutationKind:   strings.TrimSpace(col(row, 7)),
		Remarks:        strings.TrimSpace(col(row, 8)),
		BalanceAfter:   strings.TrimSpace(col(row, 9)),
		Tag:            strings.TrimSpace(col(row, 11)),
	}, true
}

func parseAmountCents(s string) (int64, bool) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if f < 0 {
		return int64(f*100.0 - 0.5), true
	}
	return int64(f*100.0 + 0.5), true
}

func col(row []any, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return fmt.Sprint(row[idx])
}
