package sheets

import (
	"context"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerMirror keeps an append-only, human-readable copy of the ledger
	// history. It never feeds back into balances.
	LedgerMirror interface {
		AppendTransaction(ctx context.Context, t core.Transaction) error
		AppendWriteOff(ctx context.Context, through core.Date, deleted int64) error
		AppendGifts(ctx context.Context, group string, gifts []core.Gift) error
	}
)
