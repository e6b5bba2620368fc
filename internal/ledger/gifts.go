package ledger

import (
	"sort"
	"strings"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// giftOffset is how far receivers are rotated from givers.
const giftOffset = 2

// MinGiftGroup is the smallest group a rotation by giftOffset can pair
// without anyone drawing themselves.
const MinGiftGroup = giftOffset + 1

// Shuffler is the source of randomness for gift pairing. *rand.Rand from
// math/rand and math/rand/v2 both satisfy it.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// PairGifts assigns every member a receiver. Members are shuffled, then each
// giver order[i] is paired with order[i-2] (the order rotated right by two).
// Groups smaller than MinGiftGroup are rejected.
func PairGifts(members []core.User, rng Shuffler) ([]core.Gift, error) {
	switch {
	case len(members) == 0:
		return nil, core.ErrEmptyGroup
	case len(members) < MinGiftGroup:
		return nil, core.ErrGroupTooSmall
	}

	order := append([]core.User(nil), members...)
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	n := len(order)
	gifts := make([]core.Gift, n)
	for i, giver := range order {
		receiver := order[((i-giftOffset)%n+n)%n]
		gifts[i] = core.Gift{Giver: giver, Receiver: receiver}
	}
	return gifts, nil
}

// SortGifts orders gifts by giver name, then receiver name, ignoring case.
func SortGifts(gifts []core.Gift) {
	sort.SliceStable(gifts, func(i, j int) bool {
		gi, gj := strings.ToLower(gifts[i].Giver.Name), strings.ToLower(gifts[j].Giver.Name)
		if gi != gj {
			return gi < gj
		}
		return strings.ToLower(gifts[i].Receiver.Name) < strings.ToLower(gifts[j].Receiver.Name)
	})
}
