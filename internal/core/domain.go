package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// Debit and Credit are the two mutation directions of the cash book.
	// The workbook stores them verbatim in the "Af Bij" column.
	Debit  Direction = "Af"
	Credit Direction = "Bij"

	// DefaultMutationKind is used when the entry form leaves the field empty.
	DefaultMutationKind = "Kas"

	maxDescriptionLen = 200
)

// Headers is the canonical first row of the transactions sheet. Column 11
// is intentionally blank in the source workbooks.
var Headers = []string{
	"Datum",
	"Naam / Omschrijving",
	"Rekening",
	"Tegenrekening",
	"Code",
	"Af Bij",
	"Bedrag (EUR)",
	"Mutatiesoort",
	"Mededelingen",
	"Saldo na mutatie",
	"",
	"Tag",
}

type (
	Direction string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Transaction is one row of the cash book.
	Transaction struct {
		Date           Date
		Description    string
		Account        string
		CounterAccount string
		Code           string
		Direction      Direction
		Amount         Money
		MutationKind   string
		Remarks        string
		// BalanceAfter is carried as entered; the app never derives it.
		BalanceAfter string
		Tag          string
	}
)

var (
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDirection = errors.New("invalid direction")
	ErrEmptyDescription = errors.New("empty description")
	ErrDescriptionLen   = errors.New("description too long (max 200 characters)")
)

// NewDate creates a Date from year, month, day in UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the YYYY-MM-DD form the entry form submits.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String renders the date the way listings display it.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (dir Direction) Validate() error {
	switch dir {
	case Debit, Credit:
		return nil
	}
	return ErrInvalidDirection
}

// Signed returns the cents with the sign the direction implies: credits
// add to the balance, debits subtract.
func (dir Direction) Signed(m Money) int64 {
	if dir == Debit {
		return -m.Cents
	}
	return m.Cents
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t Transaction) Validate() error {
	if err := t.Date.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(t.Description) > maxDescriptionLen {
		return ErrDescriptionLen
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if err := t.Direction.Validate(); err != nil {
		return err
	}
	return nil
}

// Row renders the transaction as the 12 workbook columns in header order.
func (t Transaction) Row() []any {
	kind := t.MutationKind
	if strings.TrimSpace(kind) == "" {
		kind = DefaultMutationKind
	}
	remarks := t.Remarks
	if strings.TrimSpace(remarks) == "" {
		remarks = t.Description
	}
	return []any{
		t.Date.String(),
		t.Description,
		t.Account,
		t.CounterAccount,
		t.Code,
		string(t.Direction),
		t.Amount.Euros(),
		kind,
		remarks,
		t.BalanceAfter,
		"",
		t.Tag,
	}
}
