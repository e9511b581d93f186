// Package notify delivers user-facing outcome notices for ledger operations.
// Delivery is best effort: a failing notifier never fails the operation it reports on.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Level is the severity of a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one outcome message.
type Notice struct {
	Level     Level     `json:"level"`
	Op        string    `json:"op"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Owner     string    `json:"owner"`
	ExpenseID uuid.UUID `json:"expense_id"`
	At        time.Time `json:"at"`
}

// Notifier receives notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Success builds a success notice.
func Success(op, owner, message string, id uuid.UUID) Notice {
	return Notice{Level: LevelSuccess, Op: op, Title: "Success", Message: message, Owner: owner, ExpenseID: id, At: time.Now().UTC()}
}

// Failure builds an error notice.
func Failure(op, owner, message string, id uuid.UUID) Notice {
	return Notice{Level: LevelError, Op: op, Title: "Error", Message: message, Owner: owner, ExpenseID: id, At: time.Now().UTC()}
}

// Log writes notices to a slog logger.
type Log struct {
	L *slog.Logger
}

func (l Log) Notify(ctx context.Context, n Notice) error {
	lvl := slog.LevelInfo
	if n.Level == LevelError {
		lvl = slog.LevelWarn
	}
	l.L.Log(ctx, lvl, "notice", "op", n.Op, "level", string(n.Level), "owner", n.Owner, "expense_id", n.ExpenseID, "message", n.Message)
	return nil
}

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notice) error {
	var all []error
	for _, x := range m {
		if x == nil {
			continue
		}
		if err := x.Notify(ctx, n); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

// Nop drops every notice.
type Nop struct{}

func (Nop) Notify(context.Context, Notice) error { return nil }
