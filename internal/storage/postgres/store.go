package postgres

// Package postgres is the remote variant of ledger.Store, backed by a pgx pool.
//
// The expenses table is created by the embedded migrations (see Migrate).
// Every statement is scoped by user_id so one owner can never read or change
// another owner's rows.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
)

var _ ledger.Store = (*Store)(nil)

const expenseColumns = `id, user_id, amount, category, description, date, created_at, updated_at`

// Store holds a pgx connection pool. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

// Backend names the variant for logs and metrics.
func (s *Store) Backend() string { return "remote" }

// List returns the owner's expenses, newest first. Without an owner there is
// nothing to list and no query is issued.
func (s *Store) List(ctx context.Context, owner string) ([]ledger.Expense, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return []ledger.Expense{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		select `+expenseColumns+`
		from expenses
		where user_id = $1
		order by date desc, created_at desc
	`, owner)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	defer rows.Close()
	out := make([]ledger.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, errs.Unavailable(err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Unavailable(err)
	}
	return out, nil
}

// Create inserts a row; id and timestamps come from column defaults.
func (s *Store) Create(ctx context.Context, owner string, f ledger.Fields) (ledger.Expense, error) {
	if err := f.Validate(); err != nil {
		return ledger.Expense{}, err
	}
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return ledger.Expense{}, fmt.Errorf("%w: an authenticated owner is required", errs.ErrValidation)
	}
	row := s.pool.QueryRow(ctx, `
		insert into expenses (user_id, amount, category, description, date)
		values ($1, $2, $3, $4, $5)
		returning `+expenseColumns, owner, *f.Amount, string(f.Category), f.Description, f.Date.Time)
	e, err := scanExpense(row)
	if err != nil {
		return ledger.Expense{}, errs.Unavailable(err)
	}
	return e, nil
}

// Update replaces the mutable columns and refreshes updated_at in the same statement.
func (s *Store) Update(ctx context.Context, owner string, id uuid.UUID, f ledger.Fields) (ledger.Expense, error) {
	if err := f.Validate(); err != nil {
		return ledger.Expense{}, err
	}
	row := s.pool.QueryRow(ctx, `
		update expenses
		set amount = $1, category = $2, description = $3, date = $4, updated_at = now()
		where id = $5 and user_id = $6
		returning `+expenseColumns, *f.Amount, string(f.Category), f.Description, f.Date.Time, id, strings.TrimSpace(owner))
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return ledger.Expense{}, fmt.Errorf("expense %s: %w", id, errs.ErrNotFound)
	}
	if err != nil {
		return ledger.Expense{}, errs.Unavailable(err)
	}
	return e, nil
}

// Delete removes the row. Zero rows affected reports ErrNotFound.
func (s *Store) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `delete from expenses where id = $1 and user_id = $2`, id, strings.TrimSpace(owner))
	if err != nil {
		return errs.Unavailable(err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("expense %s: %w", id, errs.ErrNotFound)
	}
	return nil
}

func scanExpense(row pgx.Row) (ledger.Expense, error) {
	var (
		e                ledger.Expense
		category         string
		date             time.Time
		created, updated time.Time
	)
	if err := row.Scan(&e.ID, &e.Owner, &e.Amount, &category, &e.Description, &date, &created, &updated); err != nil {
		return ledger.Expense{}, err
	}
	e.Category = ledger.Category(category)
	e.Date = ledger.NewDate(date)
	created, updated = created.UTC(), updated.UTC()
	e.CreatedAt, e.UpdatedAt = &created, &updated
	return e, nil
}
