package core

import (
	"strings"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2026-01-03")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2026-01-03" {
		t.Fatalf("roundtrip got %q", d.String())
	}
	for _, bad := range []string{"", "03-01-2026", "2026-13-01", "gisteren"} {
		if _, err := ParseDate(bad); err == nil {
			t.Fatalf("%q expected error", bad)
		}
	}
}

func TestDirectionSigned(t *testing.T) {
	m := Money{Cents: 500}
	if got := Credit.Signed(m); got != 500 {
		t.Fatalf("credit signed = %d", got)
	}
	if got := Debit.Signed(m); got != -500 {
		t.Fatalf("debit signed = %d", got)
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:        NewDate(2026, 1, 3),
		Description: "koffie voor training",
		Direction:   Debit,
		Amount:      Money{Cents: 1250},
		Tag:         "Training",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Date: Date{Time: time.Time{}}, Description: "a", Direction: Debit, Amount: Money{Cents: 1}},
		{Date: NewDate(2026, 1, 3), Description: "", Direction: Debit, Amount: Money{Cents: 1}},
		{Date: NewDate(2026, 1, 3), Description: "a", Direction: Debit, Amount: Money{Cents: 0}},
		{Date: NewDate(2026, 1, 3), Description: "a", Direction: "Misschien", Amount: Money{Cents: 1}},
	}
	for i, tr := range bads {
		if err := tr.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDescriptionLimitCountsCharacters(t *testing.T) {
	tr := Transaction{
		Date:      NewDate(2026, 1, 3),
		Direction: Debit,
		Amount:    Money{Cents: 1},
	}

	// 200 two-byte characters are within the limit.
	tr.Description = strings.Repeat("é", 200)
	if err := tr.Validate(); err != nil {
		t.Fatalf("200-character description rejected: %v", err)
	}

	tr.Description = strings.Repeat("é", 201)
	if err := tr.Validate(); err != ErrDescriptionLen {
		t.Fatalf("expected ErrDescriptionLen, got %v", err)
	}
}

func TestTransactionRow(t *testing.T) {
	tr := Transaction{
		Date:        NewDate(2026, 1, 3),
		Description: "huur zaal",
		Direction:   Debit,
		Amount:      Money{Cents: 2500},
		Tag:         "Evenement",
	}
	row := tr.Row()
	if len(row) != len(Headers) {
		t.Fatalf("row has %d columns, want %d", len(row), len(Headers))
	}
	if row[5] != "Af" {
		t.Fatalf("direction column = %v", row[5])
	}
	if row[6] != 25.0 {
		t.Fatalf("amount column = %v", row[6])
	}
	// Remarks falls back to the description, mutation kind to "Kas".
	if row[8] != "huur zaal" || row[7] != "Kas" {
		t.Fatalf("defaults not applied: %v / %v", row[8], row[7])
	}
}
