package ledger

import (
	"fmt"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// Share is one participant's part of an equal split.
type Share struct {
	User   core.User
	Amount core.Amount
}

// SplitEqually divides total between participants in whole cents. Everyone
// gets the truncated equal share; the leftover cents go one each to the
// first participants in name order. Shares always add up to total.
func SplitEqually(total core.Amount, participants []core.User) ([]Share, error) {
	if len(participants) == 0 {
		return nil, core.ErrEmptyGroup
	}
	if err := total.Validate(); err != nil {
		return nil, err
	}

	ordered := append([]core.User(nil), participants...)
	core.SortUsers(ordered)

	n := int64(len(ordered))
	cents := total.Cents()
	base, remainder := cents/n, cents%n

	shares := make([]Share, len(ordered))
	for i, u := range ordered {
		c := base
		if int64(i) < remainder {
			c++
		}
		shares[i] = Share{User: u, Amount: core.AmountFromCents(c)}
	}
	return shares, nil
}

func (s Share) String() string {
	return fmt.Sprintf("%s %s", s.User.Name, s.Amount)
}
