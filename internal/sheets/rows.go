package sheets

import (
	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// Row layouts shared by every mirror, one cell per column.

// TransactionRow renders t as Date, Borrower, Lender, Amount, ID.
func TransactionRow(t core.Transaction) []any {
	return []any{t.Date.String(), t.Borrower.Name, t.Lender.Name, t.Amount.String(), t.ID}
}

// WriteOffRow renders a write-off as Through, Deleted.
func WriteOffRow(through core.Date, deleted int64) []any {
	return []any{through.String(), deleted}
}

// GiftRows renders one Group, Giver, Receiver row per gift.
func GiftRows(group string, gifts []core.Gift) [][]any {
	rows := make([][]any, len(gifts))
	for i, g := range gifts {
		rows[i] = []any{group, g.Giver.Name, g.Receiver.Name}
	}
	return rows
}
