// Package postgres stores the ledger in PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/ledger"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ensure interface conformance
var _ ledger.Store = (*Repository)(nil)

type Repository struct {
	pool *pgxpool.Pool
}

// New connects to dsn, checks the connection and migrates the schema.
func New(ctx context.Context, dsn string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := RunMigrations(pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Repository{pool: pool}, nil
}

// RunMigrations applies the embedded schema through a database/sql view of pool.
func RunMigrations(pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return fmt.Errorf("create pgx migrate driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create iofs source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Insert(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	saved, err := insertTransaction(ctx, r.pool, t)
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction saved to Postgres",
		"id", saved.ID,
		"borrower", saved.Borrower.Name,
		"lender", saved.Lender.Name,
		"amount_cents", saved.Amount.Cents())
	return saved, nil
}

// InsertBatch writes all rows in one transaction; nothing is kept on error.
func (r *Repository) InsertBatch(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	var out []core.Transaction
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		out = make([]core.Transaction, 0, len(txs))
		for _, t := range txs {
			saved, err := insertTransaction(ctx, tx, t)
			if err != nil {
				return err
			}
			out = append(out, saved)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "Transaction batch saved to Postgres", "count", len(out))
	return out, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertTransaction(ctx context.Context, q querier, t core.Transaction) (core.Transaction, error) {
	err := q.QueryRow(ctx, `
		INSERT INTO transactions(borrower_id, lender_id, amount_cents, tx_date)
		VALUES($1, $2, $3, $4)
		RETURNING id
	`, t.Borrower.ID, t.Lender.ID, t.Amount.Cents(), t.Date.Time).Scan(&t.ID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

func (r *Repository) DeleteBefore(ctx context.Context, date core.Date) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM transactions WHERE tx_date < $1`, date.Time)
	if err != nil {
		return 0, fmt.Errorf("delete transactions before %s: %w", date, err)
	}
	slog.InfoContext(ctx, "Transactions written off", "before", date.String(), "count", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

const selectTransactions = `
	SELECT t.id, t.amount_cents, t.tx_date, b.id, b.name, l.id, l.name
	FROM transactions t
	JOIN users b ON b.id = t.borrower_id
	JOIN users l ON l.id = t.lender_id
	WHERE t.tx_date <= $1`

func (r *Repository) FindUpTo(ctx context.Context, date core.Date) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, selectTransactions+` ORDER BY t.id`, date.Time)
}

func (r *Repository) FindUpToForBorrowers(ctx context.Context, date core.Date, borrowers []core.User) ([]core.Transaction, error) {
	if len(borrowers) == 0 {
		return nil, nil
	}
	ids := make([]int64, len(borrowers))
	for i, u := range borrowers {
		ids[i] = u.ID
	}
	return r.queryTransactions(ctx, selectTransactions+` AND t.borrower_id = ANY($2) ORDER BY t.id`, date.Time, ids)
}

func (r *Repository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.Transaction, error) {
		var (
			t     core.Transaction
			cents int64
			date  time.Time
		)
		if err := row.Scan(&t.ID, &cents, &date, &t.Borrower.ID, &t.Borrower.Name, &t.Lender.ID, &t.Lender.Name); err != nil {
			return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
		}
		t.Amount = core.AmountFromCents(cents)
		t.Date = core.DateOf(date)
		return t, nil
	})
}

func (r *Repository) FindOrCreateUser(ctx context.Context, name string) (core.User, error) {
	u := core.User{Name: name}
	// DO UPDATE makes RETURNING yield the existing row too.
	err := r.pool.QueryRow(ctx, `
		INSERT INTO users(name) VALUES($1)
		ON CONFLICT(name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&u.ID)
	if err != nil {
		return core.User{}, fmt.Errorf("find or create user %s: %w", name, err)
	}
	return u, nil
}

func (r *Repository) FindGroup(ctx context.Context, name string) (core.Group, bool, error) {
	g := core.Group{Name: name}
	err := r.pool.QueryRow(ctx, `SELECT id FROM ledger_groups WHERE name = $1`, name).Scan(&g.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Group{}, false, nil
	}
	if err != nil {
		return core.Group{}, false, fmt.Errorf("get group %s: %w", name, err)
	}
	return g, true, nil
}

func (r *Repository) GroupExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM ledger_groups WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check group %s: %w", name, err)
	}
	return exists, nil
}

// CreateOrReplaceGroup relies on ON DELETE CASCADE to drop old membership edges.
func (r *Repository) CreateOrReplaceGroup(ctx context.Context, name string) (core.Group, error) {
	g := core.Group{Name: name}
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM ledger_groups WHERE name = $1`, name); err != nil {
			return fmt.Errorf("delete group %s: %w", name, err)
		}
		if err := tx.QueryRow(ctx, `INSERT INTO ledger_groups(name) VALUES($1) RETURNING id`, name).Scan(&g.ID); err != nil {
			return fmt.Errorf("insert group %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return core.Group{}, err
	}
	slog.InfoContext(ctx, "Group created", "group", name, "id", g.ID)
	return g, nil
}

func (r *Repository) GetOrCreateGroup(ctx context.Context, name string) (core.Group, error) {
	g := core.Group{Name: name}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO ledger_groups(name) VALUES($1)
		ON CONFLICT(name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name).Scan(&g.ID)
	if err != nil {
		return core.Group{}, fmt.Errorf("get or create group %s: %w", name, err)
	}
	return g, nil
}

func (r *Repository) AddMembers(ctx context.Context, g core.Group, users []core.User) (int, error) {
	added := 0
	for _, u := range users {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO group_members(group_id, user_id) VALUES($1, $2)
			ON CONFLICT DO NOTHING
		`, g.ID, u.ID)
		if err != nil {
			return added, fmt.Errorf("add %s to group %s: %w", u.Name, g.Name, err)
		}
		added += int(tag.RowsAffected())
	}
	return added, nil
}

func (r *Repository) RemoveMembers(ctx context.Context, g core.Group, users []core.User) (int, error) {
	removed := 0
	for _, u := range users {
		tag, err := r.pool.Exec(ctx, `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`, g.ID, u.ID)
		if err != nil {
			return removed, fmt.Errorf("remove %s from group %s: %w", u.Name, g.Name, err)
		}
		removed += int(tag.RowsAffected())
	}
	return removed, nil
}

func (r *Repository) MembersOf(ctx context.Context, g core.Group) ([]core.User, error) {
	return r.queryUsers(ctx, `
		SELECT u.id, u.name FROM users u
		JOIN group_members m ON m.user_id = u.id
		WHERE m.group_id = $1
		ORDER BY u.name
	`, g.ID)
}

func (r *Repository) MembersOfGroupNamed(ctx context.Context, name string) ([]core.User, error) {
	return r.queryUsers(ctx, `
		SELECT u.id, u.name FROM users u
		JOIN group_members m ON m.user_id = u.id
		JOIN ledger_groups g ON g.id = m.group_id
		WHERE g.name = $1
		ORDER BY u.name
	`, name)
}

func (r *Repository) queryUsers(ctx context.Context, query string, args ...any) ([]core.User, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (core.User, error) {
		var u core.User
		err := row.Scan(&u.ID, &u.Name)
		return u, err
	})
}

func (r *Repository) SaveGift(ctx context.Context, g core.Gift) (core.Gift, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO gifts(giver_id, receiver_id) VALUES($1, $2) RETURNING id
	`, g.Giver.ID, g.Receiver.ID).Scan(&g.ID)
	if err != nil {
		return core.Gift{}, fmt.Errorf("insert gift: %w", err)
	}
	return g, nil
}
