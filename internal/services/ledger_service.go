package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/ledger"
	"github.com/nivanenko/shared-expenses-tracker/internal/log"
)

// EventPublisher announces ledger mutations to other processes.
type EventPublisher interface {
	PublishTransactionRecorded(ctx context.Context, t core.Transaction) error
	PublishWriteOff(ctx context.Context, through core.Date, deleted int64) error
	PublishGiftsAssigned(ctx context.Context, group string, gifts []core.Gift) error
}

// BalanceMode selects the cutoff of a balance query.
type BalanceMode string

const (
	// BalanceClose includes everything up to and including the given date.
	BalanceClose BalanceMode = "close"
	// BalanceOpen stops at the last day of the month before the given date.
	BalanceOpen BalanceMode = "open"
)

// ParseBalanceMode accepts "open", "close" or an empty string (close).
func ParseBalanceMode(s string) (BalanceMode, error) {
	switch BalanceMode(s) {
	case "", BalanceClose:
		return BalanceClose, nil
	case BalanceOpen:
		return BalanceOpen, nil
	default:
		return "", fmt.Errorf("%w: balance mode %q", core.ErrInvalidSelection, s)
	}
}

func (m BalanceMode) cutoff(date core.Date) core.Date {
	if m == BalanceOpen {
		return date.EndOfPreviousMonth()
	}
	return date
}

type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// LedgerService runs ledger commands against a store. Mutations are saved
// first and announced afterwards; a failed announcement never fails the command.
type LedgerService struct {
	store     ledger.Store
	resolver  *ledger.Resolver
	publisher EventPublisher
	now       func() time.Time
	rng       ledger.Shuffler
}

type Option func(*LedgerService)

// WithClock replaces time.Now as the source of today's date.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

// WithShuffler replaces the randomness used for gift pairing.
func WithShuffler(rng ledger.Shuffler) Option {
	return func(s *LedgerService) { s.rng = rng }
}

// NewLedgerService wires a service to store. publisher may be nil.
func NewLedgerService(store ledger.Store, publisher EventPublisher, opts ...Option) *LedgerService {
	s := &LedgerService{
		store:     store,
		resolver:  ledger.NewResolver(store),
		publisher: publisher,
		now:       time.Now,
		rng:       globalShuffler{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the date commands use when none is given.
func (s *LedgerService) Today() core.Date {
	return core.DateOf(s.now())
}

// Borrow records that borrower owes lender amount.
func (s *LedgerService) Borrow(ctx context.Context, date core.Date, borrower, lender string, amount core.Amount) (core.Transaction, error) {
	return s.record(ctx, log.OpBorrow, date, borrower, lender, amount)
}

// Repay records that payer gave amount back to payee, which reduces what
// payer owes payee.
func (s *LedgerService) Repay(ctx context.Context, date core.Date, payer, payee string, amount core.Amount) (core.Transaction, error) {
	return s.record(ctx, log.OpRepay, date, payee, payer, amount)
}

// record validates everything before any user is created, so a rejected
// command leaves no trace in the store.
func (s *LedgerService) record(ctx context.Context, op string, date core.Date, borrowerName, lenderName string, amount core.Amount) (core.Transaction, error) {
	if !core.IsUserName(borrowerName) || !core.IsUserName(lenderName) {
		return core.Transaction{}, fmt.Errorf("%w: user names %q, %q", core.ErrInvalidSelection, borrowerName, lenderName)
	}
	if err := amount.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := date.Validate(); err != nil {
		return core.Transaction{}, err
	}
	borrower, err := s.store.FindOrCreateUser(ctx, borrowerName)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get borrower: %w", err)
	}
	lender, err := s.store.FindOrCreateUser(ctx, lenderName)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get lender: %w", err)
	}

	saved, err := s.store.Insert(ctx, core.Transaction{Borrower: borrower, Lender: lender, Amount: amount, Date: date})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}
	slog.DebugContext(ctx, "Transaction recorded",
		log.NewFields().WithOperation(op).WithTransaction(saved).ToSlice()...)
	s.publishTransactions(ctx, op, []core.Transaction{saved})
	return saved, nil
}

// Purchase splits amount equally among the selected participants. Every
// participant other than buyer then owes buyer their share.
func (s *LedgerService) Purchase(ctx context.Context, date core.Date, buyer string, amount core.Amount, tokens []string) ([]core.Transaction, error) {
	return s.split(ctx, log.OpPurchase, date, buyer, amount, tokens, false)
}

// CashBack splits a refund equally among the selected participants; refunder
// then owes every other participant their share.
func (s *LedgerService) CashBack(ctx context.Context, date core.Date, refunder string, amount core.Amount, tokens []string) ([]core.Transaction, error) {
	return s.split(ctx, log.OpCashBack, date, refunder, amount, tokens, true)
}

func (s *LedgerService) split(ctx context.Context, op string, date core.Date, payerName string, amount core.Amount, tokens []string, reverse bool) ([]core.Transaction, error) {
	if !core.IsUserName(payerName) || len(tokens) == 0 {
		return nil, fmt.Errorf("%w: payer %q with %d participants", core.ErrInvalidSelection, payerName, len(tokens))
	}
	if err := amount.Validate(); err != nil {
		return nil, err
	}

	participants, err := s.resolver.ResolveSelection(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("resolve participants: %w", err)
	}
	payer, err := s.store.FindOrCreateUser(ctx, payerName)
	if err != nil {
		return nil, fmt.Errorf("get payer: %w", err)
	}
	shares, err := ledger.SplitEqually(amount, participants)
	if err != nil {
		return nil, err
	}

	txs := make([]core.Transaction, 0, len(shares))
	for _, share := range shares {
		// The payer's own share and sub-cent shares produce no debt.
		if share.User.Name == payer.Name || share.Amount.IsZero() {
			continue
		}
		t := core.Transaction{Borrower: share.User, Lender: payer, Amount: share.Amount, Date: date}
		if reverse {
			t.Borrower, t.Lender = payer, share.User
		}
		txs = append(txs, t)
	}
	if len(txs) == 0 {
		return nil, nil
	}

	saved, err := s.store.InsertBatch(ctx, txs)
	if err != nil {
		if len(saved) > 0 {
			s.publishTransactions(ctx, op, saved)
			return saved, fmt.Errorf("%w: recorded %d of %d transactions: %w", core.ErrPartialWrite, len(saved), len(txs), err)
		}
		return nil, fmt.Errorf("save transactions: %w", err)
	}
	slog.DebugContext(ctx, "Split recorded",
		append(log.NewFields().WithOperation(op).ToSlice(), "payer", payer.Name, "count", len(saved))...)
	s.publishTransactions(ctx, op, saved)
	return saved, nil
}

// Balance lists the pairwise net debts up to the cutoff selected by mode.
// A non-empty token list restricts the result to debts of the selected
// borrowers.
func (s *LedgerService) Balance(ctx context.Context, date core.Date, mode BalanceMode, tokens []string) ([]string, error) {
	debts, err := s.debts(ctx, date, mode, tokens)
	if err != nil {
		return nil, err
	}
	return ledger.FormatDebts(debts), nil
}

// BalancePerfect is Balance reduced to a minimal list of transfers.
func (s *LedgerService) BalancePerfect(ctx context.Context, date core.Date, mode BalanceMode, tokens []string) ([]string, error) {
	debts, err := s.debts(ctx, date, mode, tokens)
	if err != nil {
		return nil, err
	}
	plan := ledger.Settle(debts)
	if len(plan) == 0 {
		return nil, core.ErrEmptyResult
	}
	return ledger.FormatTransfers(plan), nil
}

func (s *LedgerService) debts(ctx context.Context, date core.Date, mode BalanceMode, tokens []string) ([]core.Debt, error) {
	filter, err := s.balanceFilter(ctx, tokens)
	if err != nil {
		return nil, err
	}
	cutoff := mode.cutoff(date)
	debts, err := ledger.NetDebts(ctx, s.store, cutoff, filter)
	if err != nil {
		return nil, err
	}
	slog.DebugContext(ctx, "Balance computed",
		append(log.NewFields().WithOperation(log.OpBalance).ToSlice(),
			log.FieldDate, cutoff.String(), "filtered", len(filter) > 0, "debts", len(debts))...)
	if len(debts) == 0 {
		return nil, core.ErrEmptyResult
	}
	return debts, nil
}

// balanceFilter resolves tokens to the borrowers a balance is restricted to.
// An empty result means no restriction, unless the tokens name a missing
// group or a single group without members.
func (s *LedgerService) balanceFilter(ctx context.Context, tokens []string) ([]core.User, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	users, err := s.resolver.ResolveSelection(ctx, tokens)
	if err != nil {
		return nil, fmt.Errorf("resolve selection: %w", err)
	}
	if len(users) > 0 {
		return users, nil
	}
	for _, raw := range tokens {
		tok := core.ParseToken(raw)
		if tok.Kind != core.KindGroup {
			continue
		}
		exists, err := s.store.GroupExists(ctx, tok.Name)
		if err != nil {
			return nil, fmt.Errorf("check group %s: %w", tok.Name, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", core.ErrUnknownGroup, tok.Name)
		}
		if len(tokens) == 1 {
			return nil, fmt.Errorf("%w: %s", core.ErrEmptyGroup, tok.Name)
		}
	}
	return nil, nil
}

// GroupCreate replaces any group called name with one holding the selection.
// The selection is resolved after the old group is gone, so a token naming
// the group itself contributes nobody.
func (s *LedgerService) GroupCreate(ctx context.Context, name string, tokens []string) (int, error) {
	if err := validateGroupArgs(name, tokens); err != nil {
		return 0, err
	}
	g, err := s.store.CreateOrReplaceGroup(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("create group: %w", err)
	}
	return s.addSelection(ctx, g, tokens)
}

// GroupAdd adds the selection to an existing group.
func (s *LedgerService) GroupAdd(ctx context.Context, name string, tokens []string) (int, error) {
	if err := validateGroupArgs(name, tokens); err != nil {
		return 0, err
	}
	g, ok, err := s.store.FindGroup(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("find group: %w", err)
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownGroup, name)
	}
	return s.addSelection(ctx, g, tokens)
}

func (s *LedgerService) addSelection(ctx context.Context, g core.Group, tokens []string) (int, error) {
	users, err := s.resolver.ResolveSelection(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("resolve selection: %w", err)
	}
	added, err := s.store.AddMembers(ctx, g, users)
	if err != nil {
		return added, fmt.Errorf("add members to %s: %w", g.Name, err)
	}
	slog.DebugContext(ctx, "Group members added",
		append(log.NewFields().WithOperation(log.OpGroup).WithGroup(g.Name).ToSlice(), "added", added)...)
	return added, nil
}

// GroupRemove removes the removal-mode resolution of tokens from the group,
// creating the group first if it does not exist.
func (s *LedgerService) GroupRemove(ctx context.Context, name string, tokens []string) (int, error) {
	if err := validateGroupArgs(name, tokens); err != nil {
		return 0, err
	}
	g, err := s.store.GetOrCreateGroup(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("get group: %w", err)
	}
	users, err := s.resolver.ResolveRemoval(ctx, tokens)
	if err != nil {
		return 0, fmt.Errorf("resolve removal: %w", err)
	}
	removed, err := s.store.RemoveMembers(ctx, g, users)
	if err != nil {
		return removed, fmt.Errorf("remove members from %s: %w", name, err)
	}
	slog.DebugContext(ctx, "Group members removed",
		append(log.NewFields().WithOperation(log.OpGroup).WithGroup(name).ToSlice(), "removed", removed)...)
	return removed, nil
}

// GroupShow returns the member names of the group, sorted.
func (s *LedgerService) GroupShow(ctx context.Context, name string) ([]string, error) {
	if !core.IsGroupName(name) {
		return nil, fmt.Errorf("%w: group name %q", core.ErrInvalidSelection, name)
	}
	exists, err := s.store.GroupExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check group: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownGroup, name)
	}
	members, err := s.store.MembersOfGroupNamed(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", name, err)
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("%w: %s", core.ErrEmptyGroup, name)
	}
	return core.UserNames(members), nil
}

// SecretSanta pairs every member of the group with another member to give a
// gift to, stores the pairs and returns them as "A gift to B" lines.
func (s *LedgerService) SecretSanta(ctx context.Context, name string) ([]string, error) {
	if !core.IsGroupName(name) {
		return nil, fmt.Errorf("%w: group name %q", core.ErrInvalidSelection, name)
	}
	g, err := s.store.GetOrCreateGroup(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	members, err := s.store.MembersOf(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("members of %s: %w", name, err)
	}
	gifts, err := ledger.PairGifts(members, s.rng)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, name)
	}

	saved := make([]core.Gift, 0, len(gifts))
	for _, gift := range gifts {
		sg, err := s.store.SaveGift(ctx, gift)
		if err != nil {
			return nil, fmt.Errorf("save gift: %w", err)
		}
		saved = append(saved, sg)
	}
	ledger.SortGifts(saved)

	fields := log.NewFields().WithOperation(log.OpSecretSanta).WithGroup(name)
	slog.DebugContext(ctx, "Gifts assigned", append(fields.ToSlice(), "count", len(saved))...)
	if s.publisher != nil {
		if err := s.publisher.PublishGiftsAssigned(ctx, name, saved); err != nil {
			slog.ErrorContext(ctx, "Failed to publish gifts", fields.WithError(err).ToSlice()...)
		}
	}

	lines := make([]string, len(saved))
	for i, gift := range saved {
		lines[i] = gift.String()
	}
	return lines, nil
}

// WriteOff deletes every transaction dated on or before date.
func (s *LedgerService) WriteOff(ctx context.Context, date core.Date) (int64, error) {
	deleted, err := s.store.DeleteBefore(ctx, date.AddDays(1))
	if err != nil {
		return 0, fmt.Errorf("write off: %w", err)
	}
	slog.DebugContext(ctx, "Transactions written off",
		append(log.NewFields().WithOperation(log.OpWriteOff).ToSlice(), "through", date.String(), "deleted", deleted)...)
	if s.publisher != nil {
		if err := s.publisher.PublishWriteOff(ctx, date, deleted); err != nil {
			slog.ErrorContext(ctx, "Failed to publish write-off",
				append(log.NewFields().WithOperation(log.OpWriteOff).WithError(err).ToSlice(), "through", date.String())...)
		}
	}
	return deleted, nil
}

func (s *LedgerService) publishTransactions(ctx context.Context, op string, txs []core.Transaction) {
	if s.publisher == nil {
		return
	}
	for _, t := range txs {
		if err := s.publisher.PublishTransactionRecorded(ctx, t); err != nil {
			// Don't fail the command - the transaction is saved locally
			slog.ErrorContext(ctx, "Failed to publish transaction",
				log.NewFields().WithOperation(op).WithTransaction(t).WithError(err).ToSlice()...)
		}
	}
}

func validateGroupArgs(name string, tokens []string) error {
	if !core.IsGroupName(name) || len(tokens) == 0 {
		return fmt.Errorf("%w: group %q with %d tokens", core.ErrInvalidSelection, name, len(tokens))
	}
	return nil
}
