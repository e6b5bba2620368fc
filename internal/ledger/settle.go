package ledger

import (
	"fmt"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// Transfer is one payment of a settlement plan.
type Transfer struct {
	From   core.User
	To     core.User
	Amount core.Amount
}

func (t Transfer) String() string {
	return fmt.Sprintf("%s owes %s %s", t.From.Name, t.To.Name, t.Amount)
}

// Balances returns each user's net position over debts: what they lent
// minus what they borrowed.
func Balances(debts []core.Debt) map[string]core.Amount {
	balances := make(map[string]core.Amount)
	for _, d := range debts {
		balances[d.Borrower.Name] = balances[d.Borrower.Name].Sub(d.Amount)
		balances[d.Lender.Name] = balances[d.Lender.Name].Add(d.Amount)
	}
	return balances
}

// Settle plans transfers that bring every balance to zero. Each step matches
// the largest debtor with the largest creditor, ties broken by name, and
// moves the smaller of the two amounts. The extremes are found again by value
// on every step since balances change as transfers are planned.
func Settle(debts []core.Debt) []Transfer {
	users := make(map[string]core.User)
	for _, d := range debts {
		users[d.Borrower.Name] = d.Borrower
		users[d.Lender.Name] = d.Lender
	}

	debtors := make(map[string]core.Amount)
	creditors := make(map[string]core.Amount)
	for name, balance := range Balances(debts) {
		switch {
		case balance.IsNegative():
			debtors[name] = balance.Neg()
		case balance.IsPositive():
			creditors[name] = balance
		}
	}

	var plan []Transfer
	for len(debtors) > 0 && len(creditors) > 0 {
		debtor := largest(debtors)
		creditor := largest(creditors)
		debt, credit := debtors[debtor], creditors[creditor]
		amount := core.Min(debt, credit)

		plan = append(plan, Transfer{From: users[debtor], To: users[creditor], Amount: amount})

		if rest := debt.Sub(amount); rest.IsPositive() {
			debtors[debtor] = rest
		} else {
			delete(debtors, debtor)
		}
		if rest := credit.Sub(amount); rest.IsPositive() {
			creditors[creditor] = rest
		} else {
			delete(creditors, creditor)
		}
	}
	return plan
}

// largest returns the name with the biggest amount, the smallest name on ties.
func largest(amounts map[string]core.Amount) string {
	var (
		best   string
		bestAm core.Amount
		found  bool
	)
	for name, am := range amounts {
		c := am.Cmp(bestAm)
		if !found || c > 0 || (c == 0 && name < best) {
			best, bestAm, found = name, am, true
		}
	}
	return best
}

// FormatTransfers renders the plan in emission order.
func FormatTransfers(plan []Transfer) []string {
	lines := make([]string, len(plan))
	for i, t := range plan {
		lines[i] = t.String()
	}
	return lines
}
