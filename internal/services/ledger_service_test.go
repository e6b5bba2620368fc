package services

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/storage/memory"
)

type fakePublisher struct {
	txs      []core.Transaction
	writeOff []core.Date
	gifts    map[string][]core.Gift
	err      error
}

func (p *fakePublisher) PublishTransactionRecorded(_ context.Context, t core.Transaction) error {
	p.txs = append(p.txs, t)
	return p.err
}

func (p *fakePublisher) PublishWriteOff(_ context.Context, through core.Date, _ int64) error {
	p.writeOff = append(p.writeOff, through)
	return p.err
}

func (p *fakePublisher) PublishGiftsAssigned(_ context.Context, group string, gifts []core.Gift) error {
	if p.gifts == nil {
		p.gifts = make(map[string][]core.Gift)
	}
	p.gifts[group] = gifts
	return p.err
}

// identity keeps member order, which makes gift pairing deterministic.
type identity struct{}

func (identity) Shuffle(int, func(i, j int)) {}

var (
	june10 = core.NewDate(2024, 6, 10)
	june15 = core.NewDate(2024, 6, 15)
)

func newTestService(t *testing.T) (*LedgerService, *fakePublisher) {
	t.Helper()
	pub := &fakePublisher{}
	svc := NewLedgerService(memory.New(), pub, WithShuffler(identity{}))
	return svc, pub
}

func amount(t *testing.T, s string) core.Amount {
	t.Helper()
	a, err := core.ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return a
}

func balance(t *testing.T, svc *LedgerService, tokens ...string) []string {
	t.Helper()
	lines, err := svc.Balance(context.Background(), june15, BalanceClose, tokens)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return lines
}

func assertLines(t *testing.T, got []string, want ...string) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLedgerService_BorrowAndRepay(t *testing.T) {
	ctx := context.Background()

	t.Run("counter borrow nets out", func(t *testing.T) {
		svc, pub := newTestService(t)
		if _, err := svc.Borrow(ctx, june10, "Alice", "Bob", amount(t, "10")); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Borrow(ctx, june10, "Bob", "Alice", amount(t, "4")); err != nil {
			t.Fatal(err)
		}
		assertLines(t, balance(t, svc), "Alice owes Bob 6.00")
		if len(pub.txs) != 2 {
			t.Errorf("expected 2 published transactions, got %d", len(pub.txs))
		}
	})

	t.Run("repay reduces the debt", func(t *testing.T) {
		svc, _ := newTestService(t)
		svc.Borrow(ctx, june10, "Alice", "Bob", amount(t, "10"))
		tx, err := svc.Repay(ctx, june10, "Alice", "Bob", amount(t, "4"))
		if err != nil {
			t.Fatal(err)
		}
		if tx.Borrower.Name != "Bob" || tx.Lender.Name != "Alice" {
			t.Errorf("repay stored %s -> %s", tx.Borrower.Name, tx.Lender.Name)
		}
		assertLines(t, balance(t, svc), "Alice owes Bob 6.00")
	})

	t.Run("invalid names", func(t *testing.T) {
		svc, _ := newTestService(t)
		_, err := svc.Borrow(ctx, june10, "Al-ice", "Bob", amount(t, "1"))
		if !errors.Is(err, core.ErrInvalidSelection) {
			t.Errorf("expected ErrInvalidSelection, got %v", err)
		}
	})

	t.Run("publish failure does not fail the command", func(t *testing.T) {
		svc, pub := newTestService(t)
		pub.err = errors.New("broker down")
		if _, err := svc.Borrow(ctx, june10, "Alice", "Bob", amount(t, "1")); err != nil {
			t.Fatalf("Borrow: %v", err)
		}
		assertLines(t, balance(t, svc), "Alice owes Bob 1.00")
	})
}

func TestLedgerService_PurchaseAndCashBack(t *testing.T) {
	ctx := context.Background()

	t.Run("purchase splits with remainder to first name", func(t *testing.T) {
		svc, pub := newTestService(t)
		txs, err := svc.Purchase(ctx, june10, "Alice", amount(t, "10"), []string{"Alice", "Bob", "Carol"})
		if err != nil {
			t.Fatal(err)
		}
		if len(txs) != 2 || len(pub.txs) != 2 {
			t.Fatalf("expected 2 transactions, got %d saved and %d published", len(txs), len(pub.txs))
		}
		assertLines(t, balance(t, svc), "Bob owes Alice 3.33", "Carol owes Alice 3.33")
	})

	t.Run("purchase over a group minus a member", func(t *testing.T) {
		svc, _ := newTestService(t)
		if _, err := svc.GroupCreate(ctx, "TEAM", []string{"Alice", "Bob", "Carol", "Dave"}); err != nil {
			t.Fatal(err)
		}
		if _, err := svc.Purchase(ctx, june10, "Alice", amount(t, "9"), []string{"TEAM", "-Dave"}); err != nil {
			t.Fatal(err)
		}
		assertLines(t, balance(t, svc), "Bob owes Alice 3.00", "Carol owes Alice 3.00")
	})

	t.Run("cash back reverses direction", func(t *testing.T) {
		svc, _ := newTestService(t)
		if _, err := svc.CashBack(ctx, june10, "Alice", amount(t, "10"), []string{"Bob", "Carol"}); err != nil {
			t.Fatal(err)
		}
		assertLines(t, balance(t, svc), "Alice owes Bob 5.00", "Alice owes Carol 5.00")
	})

	t.Run("tiny total skips zero shares", func(t *testing.T) {
		svc, _ := newTestService(t)
		txs, err := svc.Purchase(ctx, june10, "Zed", amount(t, "0.01"), []string{"Alice", "Bob", "Carol"})
		if err != nil {
			t.Fatal(err)
		}
		if len(txs) != 1 || txs[0].Borrower.Name != "Alice" {
			t.Errorf("expected only Alice to owe a cent, got %+v", txs)
		}
	})

	errs := []struct {
		name   string
		tokens []string
		want   error
	}{
		{"no tokens", nil, core.ErrInvalidSelection},
		{"everyone excluded", []string{"Bob", "-Bob"}, core.ErrEmptyGroup},
		{"empty group", []string{"NOBODY"}, core.ErrEmptyGroup},
	}
	for _, tt := range errs {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t)
			_, err := svc.Purchase(ctx, june10, "Alice", amount(t, "10"), tt.tokens)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLedgerService_Balance(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.Borrow(ctx, core.NewDate(2024, 5, 20), "Alice", "Bob", amount(t, "10"))
	svc.Borrow(ctx, june10, "Carol", "Bob", amount(t, "5"))
	svc.GroupCreate(ctx, "EMPTY", []string{"-Alice"})
	svc.GroupCreate(ctx, "DEBTORS", []string{"Carol"})

	tests := []struct {
		name    string
		mode    BalanceMode
		tokens  []string
		want    []string
		wantErr error
	}{
		{"close includes everything", BalanceClose, nil, []string{"Alice owes Bob 10.00", "Carol owes Bob 5.00"}, nil},
		{"open stops at previous month", BalanceOpen, nil, []string{"Alice owes Bob 10.00"}, nil},
		{"filter by borrower", BalanceClose, []string{"Alice"}, []string{"Alice owes Bob 10.00"}, nil},
		{"filter by group", BalanceClose, []string{"DEBTORS"}, []string{"Carol owes Bob 5.00"}, nil},
		{"filter on lender only finds nothing", BalanceClose, []string{"Bob"}, nil, core.ErrEmptyResult},
		{"unknown group", BalanceClose, []string{"GHOST"}, nil, core.ErrUnknownGroup},
		{"single empty group", BalanceClose, []string{"EMPTY"}, nil, core.ErrEmptyGroup},
		{"empty selection falls back to everyone", BalanceClose, []string{"EMPTY", "-Alice"}, []string{"Alice owes Bob 10.00", "Carol owes Bob 5.00"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Balance(ctx, june15, tt.mode, tt.tokens)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Balance: %v", err)
			}
			assertLines(t, got, tt.want...)
		})
	}

	t.Run("idempotent", func(t *testing.T) {
		first := balance(t, svc)
		second := balance(t, svc)
		assertLines(t, second, first...)
	})

	t.Run("no transactions", func(t *testing.T) {
		empty, _ := newTestService(t)
		_, err := empty.Balance(ctx, june15, BalanceClose, nil)
		if !errors.Is(err, core.ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", err)
		}
	})
}

func TestLedgerService_BalancePerfect(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	svc.Borrow(ctx, june10, "Alice", "Bob", amount(t, "10"))
	svc.Borrow(ctx, june10, "Bob", "Carol", amount(t, "10"))

	got, err := svc.BalancePerfect(ctx, june15, BalanceClose, nil)
	if err != nil {
		t.Fatal(err)
	}
	assertLines(t, got, "Alice owes Carol 10.00")

	t.Run("cycle settles to nothing", func(t *testing.T) {
		svc.Borrow(ctx, june10, "Carol", "Alice", amount(t, "10"))
		_, err := svc.BalancePerfect(ctx, june15, BalanceClose, nil)
		if !errors.Is(err, core.ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", err)
		}
	})
}

func TestLedgerService_Groups(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	show := func(name string) []string {
		t.Helper()
		names, err := svc.GroupShow(ctx, name)
		if err != nil {
			t.Fatalf("GroupShow(%s): %v", name, err)
		}
		return names
	}

	if n, err := svc.GroupCreate(ctx, "TEAM", []string{"Bob", "Alice"}); err != nil || n != 2 {
		t.Fatalf("GroupCreate: n=%d err=%v", n, err)
	}
	assertLines(t, show("TEAM"), "Alice", "Bob")

	if _, err := svc.GroupAdd(ctx, "GHOST", []string{"Alice"}); !errors.Is(err, core.ErrUnknownGroup) {
		t.Errorf("GroupAdd on missing group: %v", err)
	}
	if n, _ := svc.GroupAdd(ctx, "TEAM", []string{"Carol", "Alice"}); n != 1 {
		t.Errorf("expected 1 new member, got %d", n)
	}

	// A lone protected user is removed.
	if n, _ := svc.GroupRemove(ctx, "TEAM", []string{"-Bob"}); n != 1 {
		t.Errorf("expected 1 removed, got %d", n)
	}
	assertLines(t, show("TEAM"), "Alice", "Carol")

	if _, err := svc.GroupCreate(ctx, "TEAM", []string{"Dave"}); err != nil {
		t.Fatal(err)
	}
	assertLines(t, show("TEAM"), "Dave")

	// Removing from a missing group creates it empty.
	if _, err := svc.GroupRemove(ctx, "LATER", []string{"Alice"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GroupShow(ctx, "LATER"); !errors.Is(err, core.ErrEmptyGroup) {
		t.Errorf("expected ErrEmptyGroup, got %v", err)
	}

	invalid := []struct {
		name string
		err  error
	}{
		{"lowercase name", func() error { _, err := svc.GroupShow(ctx, "team"); return err }()},
		{"create without tokens", func() error { _, err := svc.GroupCreate(ctx, "TEAM", nil); return err }()},
		{"unknown group", func() error { _, err := svc.GroupShow(ctx, "GHOST"); return err }()},
	}
	want := []error{core.ErrInvalidSelection, core.ErrInvalidSelection, core.ErrUnknownGroup}
	for i, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, want[i]) {
				t.Errorf("expected %v, got %v", want[i], tt.err)
			}
		})
	}
}

func TestLedgerService_SecretSanta(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)
	svc.GroupCreate(ctx, "FAMILY", []string{"dave", "Alice", "Carol", "Bob"})

	got, err := svc.SecretSanta(ctx, "FAMILY")
	if err != nil {
		t.Fatal(err)
	}
	// Members come back as Alice, Bob, Carol, dave; receivers are rotated by two.
	assertLines(t, got,
		"Alice gift to Carol",
		"Bob gift to dave",
		"Carol gift to Alice",
		"dave gift to Bob",
	)
	if len(pub.gifts["FAMILY"]) != 4 {
		t.Errorf("expected 4 published gifts, got %d", len(pub.gifts["FAMILY"]))
	}

	svc.GroupCreate(ctx, "PAIR", []string{"Alice", "Bob"})
	if _, err := svc.SecretSanta(ctx, "PAIR"); !errors.Is(err, core.ErrGroupTooSmall) {
		t.Errorf("expected ErrGroupTooSmall, got %v", err)
	}
	if _, err := svc.SecretSanta(ctx, "NOBODY"); !errors.Is(err, core.ErrEmptyGroup) {
		t.Errorf("expected ErrEmptyGroup, got %v", err)
	}
}

func TestLedgerService_WriteOff(t *testing.T) {
	ctx := context.Background()
	svc, pub := newTestService(t)
	svc.Borrow(ctx, core.NewDate(2024, 6, 1), "Alice", "Bob", amount(t, "10"))
	svc.Borrow(ctx, june10, "Carol", "Bob", amount(t, "5"))

	n, err := svc.WriteOff(ctx, core.NewDate(2024, 6, 1))
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 written off, got %d", n)
	}
	assertLines(t, balance(t, svc), "Carol owes Bob 5.00")
	if len(pub.writeOff) != 1 || !pub.writeOff[0].Equal(core.NewDate(2024, 6, 1).Time) {
		t.Errorf("unexpected write-off events %v", pub.writeOff)
	}
}

// partialStore persists only the first row of every batch.
type partialStore struct {
	*memory.Store
}

func (s partialStore) InsertBatch(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	saved, err := s.Store.InsertBatch(ctx, txs[:1])
	if err != nil {
		return nil, err
	}
	return saved, errors.New("connection lost")
}

func TestLedgerService_PartialWrite(t *testing.T) {
	svc := NewLedgerService(partialStore{memory.New()}, nil)
	saved, err := svc.Purchase(context.Background(), june10, "Alice", amount(t, "9"), []string{"Alice", "Bob", "Carol"})
	if !errors.Is(err, core.ErrPartialWrite) {
		t.Fatalf("expected ErrPartialWrite, got %v", err)
	}
	if len(saved) != 1 {
		t.Errorf("expected 1 saved transaction, got %d", len(saved))
	}
}

// userCountingStore records every user the service asks to create.
type userCountingStore struct {
	*memory.Store
	created []string
}

func (s *userCountingStore) FindOrCreateUser(ctx context.Context, name string) (core.User, error) {
	s.created = append(s.created, name)
	return s.Store.FindOrCreateUser(ctx, name)
}

func TestLedgerService_RejectedTransferCreatesNoUsers(t *testing.T) {
	ctx := context.Background()
	huge := core.NewAmount(decimal.RequireFromString("184467440737095516.17"))

	tests := []struct {
		name    string
		date    core.Date
		amount  core.Amount
		wantErr error
	}{
		{"zero amount", june10, core.Zero, core.ErrInvalidAmount},
		{"negative amount", june10, core.AmountFromCents(-500), core.ErrInvalidAmount},
		{"amount beyond cents range", june10, huge, core.ErrInvalidAmount},
		{"zero date", core.Date{}, core.AmountFromCents(500), core.ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &userCountingStore{Store: memory.New()}
			pub := &fakePublisher{}
			svc := NewLedgerService(store, pub)

			if _, err := svc.Borrow(ctx, tt.date, "Alice", "Bob", tt.amount); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Borrow: expected %v, got %v", tt.wantErr, err)
			}
			if _, err := svc.Repay(ctx, tt.date, "Carol", "Dave", tt.amount); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Repay: expected %v, got %v", tt.wantErr, err)
			}
			if len(store.created) != 0 {
				t.Errorf("expected no users created, got %v", store.created)
			}
			if len(pub.txs) != 0 {
				t.Errorf("expected nothing published, got %v", pub.txs)
			}
		})
	}
}

func TestLedgerService_Today(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC) }
	svc := NewLedgerService(memory.New(), nil, WithClock(clock))
	if got := svc.Today().String(); got != "2024.02.29" {
		t.Errorf("Today() = %s", got)
	}
}

func TestParseBalanceMode(t *testing.T) {
	tests := []struct {
		in      string
		want    BalanceMode
		wantErr bool
	}{
		{"", BalanceClose, false},
		{"close", BalanceClose, false},
		{"open", BalanceOpen, false},
		{"OPEN", "", true},
		{"middle", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBalanceMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
