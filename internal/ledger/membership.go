package ledger

import (
	"context"
	"fmt"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
)

// Resolver turns signed user and group tokens into concrete user sets.
type Resolver struct {
	dir DirectoryStore
}

func NewResolver(dir DirectoryStore) *Resolver {
	return &Resolver{dir: dir}
}

// userSet is keyed by name; names are unique.
type userSet map[string]core.User

func (s userSet) add(users ...core.User) {
	for _, u := range users {
		s[u.Name] = u
	}
}

func (s userSet) minus(other userSet) userSet {
	out := userSet{}
	for name, u := range s {
		if _, ok := other[name]; !ok {
			out[name] = u
		}
	}
	return out
}

func (s userSet) sorted() []core.User {
	out := make([]core.User, 0, len(s))
	for _, u := range s {
		out = append(out, u)
	}
	core.SortUsers(out)
	return out
}

// ResolveSelection returns included minus excluded users, where "-" tokens
// are excluded and all others included. Group tokens expand to the group's
// current members; unknown users are created.
func (r *Resolver) ResolveSelection(ctx context.Context, tokens []string) ([]core.User, error) {
	included, excluded, err := r.partition(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return included.minus(excluded).sorted(), nil
}

// ResolveRemoval picks the users to remove from a group. Unsigned and "+"
// tokens are removal targets, "-" tokens are protected. When nothing is left
// after protection the protected users themselves are removed.
func (r *Resolver) ResolveRemoval(ctx context.Context, tokens []string) ([]core.User, error) {
	included, excluded, err := r.partition(ctx, tokens)
	if err != nil {
		return nil, err
	}
	target := included.minus(excluded)
	if len(target) == 0 {
		target = excluded
	}
	return target.sorted(), nil
}

func (r *Resolver) partition(ctx context.Context, tokens []string) (userSet, userSet, error) {
	included, excluded := userSet{}, userSet{}
	for _, raw := range tokens {
		tok := core.ParseToken(raw)
		if tok.Kind == core.KindUnknown {
			continue
		}
		users, err := r.expand(ctx, tok)
		if err != nil {
			return nil, nil, err
		}
		if tok.Sign == core.SignMinus {
			excluded.add(users...)
		} else {
			included.add(users...)
		}
	}
	return included, excluded, nil
}

func (r *Resolver) expand(ctx context.Context, tok core.Token) ([]core.User, error) {
	if tok.Kind == core.KindGroup {
		members, err := r.dir.MembersOfGroupNamed(ctx, tok.Name)
		if err != nil {
			return nil, fmt.Errorf("members of group %s: %w", tok.Name, err)
		}
		return members, nil
	}
	u, err := r.dir.FindOrCreateUser(ctx, tok.Name)
	if err != nil {
		return nil, fmt.Errorf("find or create user %s: %w", tok.Name, err)
	}
	return []core.User{u}, nil
}
