package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// pair is a directed (borrower, lender) key, by user name.
type pair struct {
	borrower string
	lender   string
}

// NetDebts reduces the transactions dated on or before asOf to pairwise net
// debts. A non-empty filter keeps only transactions whose borrower is in the
// filter; the lender is not checked.
func NetDebts(ctx context.Context, store LedgerStore, asOf core.Date, filter []core.User) ([]core.Debt, error) {
	var (
		txs []core.Transaction
		err error
	)
	if len(filter) > 0 {
		txs, err = store.FindUpToForBorrowers(ctx, asOf, filter)
	} else {
		txs, err = store.FindUpTo(ctx, asOf)
	}
	if err != nil {
		return nil, fmt.Errorf("find transactions up to %s: %w", asOf, err)
	}
	return Aggregate(txs), nil
}

// Aggregate nets transactions per pair of users. Every transaction adds its
// amount to (borrower, lender) and subtracts it from (lender, borrower), so
// only the direction with a positive balance survives. There is no netting
// across three or more users.
func Aggregate(txs []core.Transaction) []core.Debt {
	sums := make(map[pair]core.Amount)
	users := make(map[string]core.User)
	for _, t := range txs {
		users[t.Borrower.Name] = t.Borrower
		users[t.Lender.Name] = t.Lender
		forward := pair{borrower: t.Borrower.Name, lender: t.Lender.Name}
		backward := pair{borrower: t.Lender.Name, lender: t.Borrower.Name}
		sums[forward] = sums[forward].Add(t.Amount)
		sums[backward] = sums[backward].Add(t.Amount.Neg())
	}

	debts := make([]core.Debt, 0, len(sums)/2)
	for p, amount := range sums {
		if !amount.IsPositive() {
			continue
		}
		debts = append(debts, core.Debt{
			Borrower: users[p.borrower],
			Lender:   users[p.lender],
			Amount:   amount,
		})
	}
	SortDebts(debts)
	return debts
}

// SortDebts orders debts by borrower name, then lender name.
func SortDebts(debts []core.Debt) {
	sort.Slice(debts, func(i, j int) bool {
		if debts[i].Borrower.Name != debts[j].Borrower.Name {
			return debts[i].Borrower.Name < debts[j].Borrower.Name
		}
		return debts[i].Lender.Name < debts[j].Lender.Name
	})
}

// FormatDebts renders one "A owes B amount" line per debt, sorted by
// borrower then lender name.
func FormatDebts(debts []core.Debt) []string {
	sorted := append([]core.Debt(nil), debts...)
	SortDebts(sorted)
	lines := make([]string, len(sorted))
	for i, d := range sorted {
		lines[i] = d.String()
	}
	return lines
}
