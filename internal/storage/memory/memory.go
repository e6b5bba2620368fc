package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/ledger"
)

// Ensure interface conformance
var _ ledger.Store = (*Store)(nil)

// Store keeps the whole ledger in process memory.
type Store struct {
	mu sync.Mutex

	nextID  int64
	users   map[string]core.User
	groups  map[string]core.Group
	members map[int64]map[string]core.User // group ID -> members by name
	txs     []core.Transaction
	gifts   []core.Gift
}

func New() *Store {
	return &Store{
		users:   make(map[string]core.User),
		groups:  make(map[string]core.Group),
		members: make(map[int64]map[string]core.User),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Close() error { return nil }

// Insert stores the transaction and assigns it an ID.
func (s *Store) Insert(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = s.id()
	s.txs = append(s.txs, t)
	return t, nil
}

// InsertBatch validates the whole batch before storing any of it.
func (s *Store) InsertBatch(_ context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, len(txs))
	for i, t := range txs {
		t.ID = s.id()
		s.txs = append(s.txs, t)
		out[i] = t
	}
	return out, nil
}

func (s *Store) DeleteBefore(_ context.Context, date core.Date) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.txs[:0]
	var deleted int64
	for _, t := range s.txs {
		if t.Date.Before(date.Time) {
			deleted++
			continue
		}
		kept = append(kept, t)
	}
	s.txs = kept
	return deleted, nil
}

func (s *Store) FindUpTo(_ context.Context, date core.Date) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if !t.Date.After(date.Time) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) FindUpToForBorrowers(_ context.Context, date core.Date, borrowers []core.User) ([]core.Transaction, error) {
	wanted := make(map[string]bool, len(borrowers))
	for _, u := range borrowers {
		wanted[u.Name] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.txs {
		if !t.Date.After(date.Time) && wanted[t.Borrower.Name] {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) FindOrCreateUser(_ context.Context, name string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[name]; ok {
		return u, nil
	}
	u := core.User{ID: s.id(), Name: name}
	s.users[name] = u
	return u, nil
}

func (s *Store) FindGroup(_ context.Context, name string) (core.Group, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	return g, ok, nil
}

func (s *Store) GroupExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := s.FindGroup(ctx, name)
	return ok, err
}

func (s *Store) CreateOrReplaceGroup(_ context.Context, name string) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.groups[name]; ok {
		delete(s.members, old.ID)
	}
	g := core.Group{ID: s.id(), Name: name}
	s.groups[name] = g
	s.members[g.ID] = make(map[string]core.User)
	return g, nil
}

func (s *Store) GetOrCreateGroup(_ context.Context, name string) (core.Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.groups[name]; ok {
		return g, nil
	}
	g := core.Group{ID: s.id(), Name: name}
	s.groups[name] = g
	s.members[g.ID] = make(map[string]core.User)
	return g, nil
}

// AddMembers returns how many users were not members yet.
func (s *Store) AddMembers(_ context.Context, g core.Group, users []core.User) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[g.ID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", core.ErrUnknownGroup, g.Name)
	}
	added := 0
	for _, u := range users {
		if _, exists := m[u.Name]; !exists {
			m[u.Name] = u
			added++
		}
	}
	return added, nil
}

func (s *Store) RemoveMembers(_ context.Context, g core.Group, users []core.User) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.members[g.ID]
	removed := 0
	for _, u := range users {
		if _, exists := m[u.Name]; exists {
			delete(m, u.Name)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) MembersOf(_ context.Context, g core.Group) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedMembers(s.members[g.ID]), nil
}

func (s *Store) MembersOfGroupNamed(_ context.Context, name string) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[name]
	if !ok {
		return nil, nil
	}
	return sortedMembers(s.members[g.ID]), nil
}

func (s *Store) SaveGift(_ context.Context, g core.Gift) (core.Gift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.ID = s.id()
	s.gifts = append(s.gifts, g)
	return g, nil
}

// Gifts returns every gift saved so far.
func (s *Store) Gifts() []core.Gift {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Gift(nil), s.gifts...)
}

func sortedMembers(m map[string]core.User) []core.User {
	out := make([]core.User, 0, len(m))
	for _, u := range m {
		out = append(out, u)
	}
	core.SortUsers(out)
	return out
}
