package memory

import (
	"context"
	"sync"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/sheets"
)

// Ensure interface conformance
var _ sheets.LedgerMirror = (*Mirror)(nil)

// Sheet names used by Mirror.
const (
	TransactionsSheet = "Transactions"
	WriteOffsSheet    = "Write-offs"
	GiftsSheet        = "Secret Santa"
)

// Mirror keeps mirrored rows in memory, keyed by sheet name.
type Mirror struct {
	mu   sync.Mutex
	rows map[string][][]any
}

func New() *Mirror {
	return &Mirror{rows: make(map[string][][]any)}
}

func (m *Mirror) AppendTransaction(_ context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return err
	}
	m.append(TransactionsSheet, sheets.TransactionRow(t))
	return nil
}

func (m *Mirror) AppendWriteOff(_ context.Context, through core.Date, deleted int64) error {
	if err := through.Validate(); err != nil {
		return err
	}
	m.append(WriteOffsSheet, sheets.WriteOffRow(through, deleted))
	return nil
}

func (m *Mirror) AppendGifts(_ context.Context, group string, gifts []core.Gift) error {
	m.append(GiftsSheet, sheets.GiftRows(group, gifts)...)
	return nil
}

func (m *Mirror) append(sheet string, rows ...[]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[sheet] = append(m.rows[sheet], rows...)
}

// Rows returns a copy of the rows appended to sheet.
func (m *Mirror) Rows(sheet string) [][]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]any(nil), m.rows[sheet]...)
}
