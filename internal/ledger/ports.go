// Package ledger implements the ledger computation layer: membership
// resolution, pairwise debt aggregation, settlement planning, equal splits and
// gift pairing.
package ledger

import (
	"context"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// Ports for the stores the computation layer reads and writes.
type (
	// LedgerStore is the durable record of transactions.
	LedgerStore interface {
		Insert(ctx context.Context, t core.Transaction) (core.Transaction, error)
		// InsertBatch stores all transactions. It returns the transactions
		// that were persisted, which on error may be a prefix of txs.
		InsertBatch(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error)
		// DeleteBefore removes every transaction dated strictly before date.
		DeleteBefore(ctx context.Context, date core.Date) (int64, error)
		// FindUpTo returns every transaction dated on or before date.
		FindUpTo(ctx context.Context, date core.Date) ([]core.Transaction, error)
		// FindUpToForBorrowers is FindUpTo restricted to the given borrowers.
		FindUpToForBorrowers(ctx context.Context, date core.Date, borrowers []core.User) ([]core.Transaction, error)
	}

	// DirectoryStore holds users, groups and their membership edges.
	DirectoryStore interface {
		FindOrCreateUser(ctx context.Context, name string) (core.User, error)
		FindGroup(ctx context.Context, name string) (core.Group, bool, error)
		GroupExists(ctx context.Context, name string) (bool, error)
		// CreateOrReplaceGroup deletes any group with this name, membership
		// edges included, and creates an empty one.
		CreateOrReplaceGroup(ctx context.Context, name string) (core.Group, error)
		GetOrCreateGroup(ctx context.Context, name string) (core.Group, error)
		AddMembers(ctx context.Context, g core.Group, users []core.User) (int, error)
		RemoveMembers(ctx context.Context, g core.Group, users []core.User) (int, error)
		MembersOf(ctx context.Context, g core.Group) ([]core.User, error)
		// MembersOfGroupNamed returns no users when the group does not exist.
		MembersOfGroupNamed(ctx context.Context, name string) ([]core.User, error)
	}

	GiftStore interface {
		SaveGift(ctx context.Context, g core.Gift) (core.Gift, error)
	}

	// Store bundles every port; each backend implements all of them.
	Store interface {
		LedgerStore
		DirectoryStore
		GiftStore
		Close() error
	}
)
