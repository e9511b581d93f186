package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store persists the expense ledger of an owner.
//
// Implementations return errors wrapping errs.ErrValidation, errs.ErrNotFound
// or errs.ErrUnavailable. Delete reports errs.ErrNotFound for unknown ids;
// callers decide whether that matters.
type Store interface {
	List(ctx context.Context, owner string) ([]Expense, error)
	Create(ctx context.Context, owner string, f Fields) (Expense, error)
	Update(ctx context.Context, owner string, id uuid.UUID, f Fields) (Expense, error)
	Delete(ctx context.Context, owner string, id uuid.UUID) error
}

// ReadyChecker is optionally implemented by stores to indicate readiness.
type ReadyChecker interface {
	Ready(ctx context.Context) error
}
