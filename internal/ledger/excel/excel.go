// Package excel implements the ledger ports against a local .xlsx
// workbook. The workbook is the source of truth: every call re-opens the
// file, so there is no state to invalidate when the settings page moves
// the workbook or another tool edits it between requests.
package excel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"kasboek/internal/core"
	"kasboek/internal/ledger"
)

// ErrNoWorkbook reports that no workbook path is configured yet. The
// handlers turn it into a hint to visit the settings page.
var ErrNoWorkbook = errors.New("no workbook configured")

// Store reads and writes the configured workbook. The locate func returns
// the current path and sheet name so settings changes apply immediately.
type Store struct {
	locate func() (path, sheet string)
}

var (
	_ ledger.Store           = (*Store)(nil)
	_ ledger.HeaderValidator = (*Store)(nil)
)

func New(locate func() (path, sheet string)) *Store {
	return &Store{locate: locate}
}

// Append inserts the transaction as row 2, directly under the headers, so
// listings read newest-first without sorting. A missing workbook is
// created with the canonical headers.
func (s *Store) Append(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", err
	}
	path, sheet := s.locate()
	if strings.TrimSpace(path) == "" {
		return "", ErrNoWorkbook
	}

	f, created, err := openOrCreate(path, sheet)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if err := f.InsertRows(sheet, 2, 1); err != nil {
		return "", fmt.Errorf("insert row: %w", err)
	}
	row := t.Row()
	if err := f.SetSheetRow(sheet, "A2", &row); err != nil {
		return "", fmt.Errorf("write row: %w", err)
	}
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}

	if created {
		slog.InfoContext(ctx, "Workbook created", "path", path, "sheet", sheet)
	}
	return fmt.Sprintf("%s!A2", sheet), nil
}

// Balance sums credits minus debits over the amount column. A missing
// workbook or sheet is an empty cash book, not an error.
func (s *Store) Balance(ctx context.Context) (core.Money, error) {
	rows, err := s.dataRows()
	if err != nil {
		return core.Money{}, err
	}
	var total int64
	for _, row := range rows {
		cents, ok := parseAmountCents(cell(row, 6))
		if !ok {
			continue
		}
		switch core.Direction(strings.TrimSpace(cell(row, 5))) {
		case core.Debit:
			total -= cents
		case core.Credit:
			total += cents
		}
	}
	return core.Money{Cents: total}, nil
}

// Recent returns up to limit transactions from the top of the sheet,
// which holds the newest entries.
func (s *Store) Recent(ctx context.Context, limit int) ([]core.Transaction, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) All(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.dataRows()
	if err != nil {
		return nil, err
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, ok := parseRow(row)
		if !ok {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// ValidateHeaders compares the first row of the named sheet against the
// canonical cash-book headers, padded and trimmed since hand-edited
// workbooks vary in trailing whitespace and blank cells.
func (s *Store) ValidateHeaders(ctx context.Context, sheet string) error {
	path, current := s.locate()
	if sheet == "" {
		sheet = current
	}
	return ValidateFileHeaders(path, sheet)
}

// ValidateFileHeaders checks an arbitrary workbook, used when the settings
// page points the app at a new file before the switch is committed.
func ValidateFileHeaders(path, sheet string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("workbook not found: %s", path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	idx, _ := f.GetSheetIndex(sheet)
	if sheet == "" || idx < 0 {
		if sheet != "" {
			return fmt.Errorf("sheet %q not found (available: %s)", sheet, strings.Join(f.GetSheetList(), ", "))
		}
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	var first []string
	if len(rows) > 0 {
		first = rows[0]
	}
	for i, want := range core.Headers {
		got := strings.TrimSpace(cell(first, i))
		if got != strings.TrimSpace(want) {
			return fmt.Errorf("header column %d is %q, want %q", i+1, got, want)
		}
	}
	return nil
}

// SheetExists reports whether the named sheet is present in the current
// workbook.
func (s *Store) SheetExists(sheet string) (bool, error) {
	path, _ := s.locate()
	if _, err := os.Stat(path); err != nil {
		return false, fmt.Errorf("workbook not found: %s", path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return false, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()
	idx, _ := f.GetSheetIndex(sheet)
	return idx >= 0, nil
}

// dataRows returns every row below the header of the configured sheet, or
// nil when the workbook or sheet does not exist.
func (s *Store) dataRows() ([][]string, error) {
	path, sheet := s.locate()
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
		return nil, nil
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func openOrCreate(path, sheet string) (f *excelize.File, created bool, err error) {
	if _, statErr := os.Stat(path); statErr == nil {
		f, err = excelize.OpenFile(path)
		if err != nil {
			return nil, false, fmt.Errorf("open workbook: %w", err)
		}
		if idx, _ := f.GetSheetIndex(sheet); idx < 0 {
			if _, err = f.NewSheet(sheet); err != nil {
				f.Close()
				return nil, false, fmt.Errorf("create sheet %q: %w", sheet, err)
			}
			if err = writeHeaders(f, sheet); err != nil {
				f.Close()
				return nil, false, err
			}
		}
		return f, false, nil
	}

	f = excelize.NewFile()
	if err = f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		f.Close()
		return nil, false, fmt.Errorf("name sheet %q: %w", sheet, err)
	}
	if err = writeHeaders(f, sheet); err != nil {
		f.Close()
		return nil, false, err
	}
	return f, true, nil
}

func writeHeaders(f *excelize.File, sheet string) error {
	headers := make([]any, len(core.Headers))
	for i, h := range core.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	return nil
}

// parseRow maps one workbook row onto a Transaction. Rows without a date
// are not transactions and are skipped.
func parseRow(row []string) (core.Transaction, bool) {
	dateStr := strings.TrimSpace(cell(row, 0))
	if dateStr == "" {
		return core.Transaction{}, false
	}
	date, err := core.ParseDate(dateStr)
	if err != nil {
		// Rows with unparseable dates stay visible under a zero date.
		date = core.Date{}
	}
	cents, _ := parseAmountCents(cell(row, 6))
	return core.Transaction{
		Date:           date,
		Description:    strings.TrimSpace(cell(row, 1)),
		Account:        strings.TrimSpace(cell(row, 2)),
		CounterAccount: strings.TrimSpace(cell(row, 3)),
		Code:           strings.TrimSpace(cell(row, 4)),
		Direction:      core.Direction(strings.TrimSpace(cell(row, 5))),
		Amount:         core.Money{Cents: cents},
		MutationKind:   strings.TrimSpace(cell(row, 7)),
		Remarks:        strings.TrimSpace(cell(row, 8)),
		BalanceAfter:   strings.TrimSpace(cell(row, 9)),
		Tag:            strings.TrimSpace(cell(row, 11)),
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

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
