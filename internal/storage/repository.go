package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nivanenko/shared-expenses-tracker/internal/core"
	"github.com/nivanenko/shared-expenses-tracker/internal/ledger"

	_ "modernc.org/sqlite"
)

// sqlDateLayout keeps dates sortable as text.
const sqlDateLayout = "2006-01-02"

// Ensure interface conformance
var _ ledger.Store = (*SQLiteRepository)(nil)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time keeps SQLite from returning SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Insert implements ledger.LedgerStore
func (r *SQLiteRepository) Insert(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	saved, err := insertTransaction(ctx, r.db, t)
	if err != nil {
		return core.Transaction{}, err
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", saved.ID,
		"borrower", saved.Borrower.Name,
		"lender", saved.Lender.Name,
		"amount_cents", saved.Amount.Cents(),
		"date", saved.Date.String())

	return saved, nil
}

// InsertBatch implements ledger.LedgerStore. The batch is written in a single
// database transaction, so on error nothing is persisted.
func (r *SQLiteRepository) InsertBatch(ctx context.Context, txs []core.Transaction) ([]core.Transaction, error) {
	for i, t := range txs {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		saved, err := insertTransaction(ctx, tx, t)
		if err != nil {
			return nil, err
		}
		out = append(out, saved)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction batch: %w", err)
	}

	slog.InfoContext(ctx, "Transaction batch saved to SQLite", "count", len(out))
	return out, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertTransaction(ctx context.Context, db execer, t core.Transaction) (core.Transaction, error) {
	res, err := db.ExecContext(ctx, `
		INSERT INTO transactions(borrower_id, lender_id, amount_cents, tx_date)
		VALUES(?, ?, ?, ?)
	`, t.Borrower.ID, t.Lender.ID, t.Amount.Cents(), t.Date.Format(sqlDateLayout))
	if err != nil {
		return core.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction id: %w", err)
	}
	t.ID = id
	return t, nil
}

// DeleteBefore implements ledger.LedgerStore
func (r *SQLiteRepository) DeleteBefore(ctx context.Context, date core.Date) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE tx_date < ?`, date.Format(sqlDateLayout))
	if err != nil {
		return 0, fmt.Errorf("delete transactions before %s: %w", date, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Transactions written off", "before", date.String(), "count", n)
	return n, nil
}

const selectTransactions = `
	SELECT t.id, t.amount_cents, t.tx_date, b.id, b.name, l.id, l.name
	FROM transactions t
	JOIN users b ON b.id = t.borrower_id
	JOIN users l ON l.id = t.lender_id
	WHERE t.tx_date <= ?`

// FindUpTo implements ledger.LedgerStore
func (r *SQLiteRepository) FindUpTo(ctx context.Context, date core.Date) ([]core.Transaction, error) {
	return r.queryTransactions(ctx, selectTransactions+` ORDER BY t.id`, date.Format(sqlDateLayout))
}

// FindUpToForBorrowers implements ledger.LedgerStore
func (r *SQLiteRepository) FindUpToForBorrowers(ctx context.Context, date core.Date, borrowers []core.User) ([]core.Transaction, error) {
	if len(borrowers) == 0 {
		return nil, nil
	}
	args := []any{date.Format(sqlDateLayout)}
	marks := make([]string, len(borrowers))
	for i, u := range borrowers {
		marks[i] = "?"
		args = append(args, u.ID)
	}
	query := selectTransactions + ` AND t.borrower_id IN (` + strings.Join(marks, ",") + `) ORDER BY t.id`
	return r.queryTransactions(ctx, query, args...)
}

func (r *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t     core.Transaction
			cents int64
			date  string
		)
		if err := rows.Scan(&t.ID, &cents, &date, &t.Borrower.ID, &t.Borrower.Name, &t.Lender.ID, &t.Lender.Name); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		parsed, err := time.Parse(sqlDateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d has malformed date %q: %w", t.ID, date, err)
		}
		t.Amount = core.AmountFromCents(cents)
		t.Date = core.DateOf(parsed)
		out = append(out, t)
	}
	return out, rows.Err()
}

// FindOrCreateUser implements ledger.DirectoryStore
func (r *SQLiteRepository) FindOrCreateUser(ctx context.Context, name string) (core.User, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO users(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return core.User{}, fmt.Errorf("insert user %s: %w", name, err)
	}
	u := core.User{Name: name}
	if err := r.db.QueryRowContext(ctx, `SELECT id FROM users WHERE name = ?`, name).Scan(&u.ID); err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", name, err)
	}
	return u, nil
}

// FindGroup implements ledger.DirectoryStore
func (r *SQLiteRepository) FindGroup(ctx context.Context, name string) (core.Group, bool, error) {
	g := core.Group{Name: name}
	err := r.db.QueryRowContext(ctx, `SELECT id FROM ledger_groups WHERE name = ?`, name).Scan(&g.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Group{}, false, nil
	}
	if err != nil {
		return core.Group{}, false, fmt.Errorf("get group %s: %w", name, err)
	}
	return g, true, nil
}

// GroupExists implements ledger.DirectoryStore
func (r *SQLiteRepository) GroupExists(ctx context.Context, name string) (bool, error) {
	_, ok, err := r.FindGroup(ctx, name)
	return ok, err
}

// CreateOrReplaceGroup implements ledger.DirectoryStore
func (r *SQLiteRepository) CreateOrReplaceGroup(ctx context.Context, name string) (core.Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Group{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM group_members
		WHERE group_id IN (SELECT id FROM ledger_groups WHERE name = ?)
	`, name); err != nil {
		return core.Group{}, fmt.Errorf("delete members of group %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_groups WHERE name = ?`, name); err != nil {
		return core.Group{}, fmt.Errorf("delete group %s: %w", name, err)
	}
	res, err := tx.ExecContext(ctx, `INSERT INTO ledger_groups(name) VALUES(?)`, name)
	if err != nil {
		return core.Group{}, fmt.Errorf("insert group %s: %w", name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Group{}, fmt.Errorf("group id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return core.Group{}, fmt.Errorf("commit group %s: %w", name, err)
	}

	slog.InfoContext(ctx, "Group created", "group", name, "id", id)
	return core.Group{ID: id, Name: name}, nil
}

// GetOrCreateGroup implements ledger.DirectoryStore
func (r *SQLiteRepository) GetOrCreateGroup(ctx context.Context, name string) (core.Group, error) {
	if _, err := r.db.ExecContext(ctx, `INSERT INTO ledger_groups(name) VALUES(?) ON CONFLICT(name) DO NOTHING`, name); err != nil {
		return core.Group{}, fmt.Errorf("insert group %s: %w", name, err)
	}
	g, _, err := r.FindGroup(ctx, name)
	return g, err
}

// AddMembers implements ledger.DirectoryStore
func (r *SQLiteRepository) AddMembers(ctx context.Context, g core.Group, users []core.User) (int, error) {
	added := 0
	for _, u := range users {
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO group_members(group_id, user_id) VALUES(?, ?)
			ON CONFLICT(group_id, user_id) DO NOTHING
		`, g.ID, u.ID)
		if err != nil {
			return added, fmt.Errorf("add %s to group %s: %w", u.Name, g.Name, err)
		}
		n, _ := res.RowsAffected()
		added += int(n)
	}
	return added, nil
}

// RemoveMembers implements ledger.DirectoryStore
func (r *SQLiteRepository) RemoveMembers(ctx context.Context, g core.Group, users []core.User) (int, error) {
	removed := 0
	for _, u := range users {
		res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ? AND user_id = ?`, g.ID, u.ID)
		if err != nil {
			return removed, fmt.Errorf("remove %s from group %s: %w", u.Name, g.Name, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	return removed, nil
}

// MembersOf implements ledger.DirectoryStore
func (r *SQLiteRepository) MembersOf(ctx context.Context, g core.Group) ([]core.User, error) {
	return r.queryUsers(ctx, `
		SELECT u.id, u.name FROM users u
		JOIN group_members m ON m.user_id = u.id
		WHERE m.group_id = ?
		ORDER BY u.name
	`, g.ID)
}

// MembersOfGroupNamed implements ledger.DirectoryStore
func (r *SQLiteRepository) MembersOfGroupNamed(ctx context.Context, name string) ([]core.User, error) {
	return r.queryUsers(ctx, `
		SELECT u.id, u.name FROM users u
		JOIN group_members m ON m.user_id = u.id
		JOIN ledger_groups g ON g.id = m.group_id
		WHERE g.name = ?
		ORDER BY u.name
	`, name)
}

func (r *SQLiteRepository) queryUsers(ctx context.Context, query string, args ...any) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var out []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SaveGift implements ledger.GiftStore
func (r *SQLiteRepository) SaveGift(ctx context.Context, g core.Gift) (core.Gift, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO gifts(giver_id, receiver_id) VALUES(?, ?)`, g.Giver.ID, g.Receiver.ID)
	if err != nil {
		return core.Gift{}, fmt.Errorf("insert gift: %w", err)
	}
	if g.ID, err = res.LastInsertId(); err != nil {
		return core.Gift{}, fmt.Errorf("gift id: %w", err)
	}
	return g, nil
}
