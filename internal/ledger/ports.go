package ledger

import (
	"context"

	"kasboek/internal/core"
)

// Ports for the workbook adapters. The excel, google and memory packages
// implement these against their respective stores.
type (
	// TransactionAppender records a transaction as the newest entry and
	// returns a row reference for display and journaling.
	TransactionAppender interface {
		Append(ctx context.Context, t core.Transaction) (rowRef string, err error)
	}

	// TransactionLister reads transactions newest-first. A missing or
	// empty store yields an empty slice, not an error.
	TransactionLister interface {
		Recent(ctx context.Context, limit int) ([]core.Transaction, error)
		All(ctx context.Context) ([]core.Transaction, error)
	}

	// BalanceReader returns the running balance in cents: credits minus
	// debits over every row.
	BalanceReader interface {
		Balance(ctx context.Context) (core.Money, error)
	}

	// HeaderValidator reports whether a sheet's first row matches the
	// canonical cash-book headers.
	HeaderValidator interface {
		ValidateHeaders(ctx context.Context, sheet string) error
	}
)

// Store bundles the ports a full backend provides.
type Store interface {
	TransactionAppender
	TransactionLister
	BalanceReader
}
