// Package instrumented decorates a ledger.Store with Prometheus metrics and debug logs.
package instrumented

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
)

var (
	storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "expenses",
			Name:      "store_operations_total",
			Help:      "Total number of ledger store operations",
		},
		[]string{"backend", "op", "result"},
	)
	storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "expenses",
			Name:      "store_operation_duration_seconds",
			Help:      "Duration of ledger store operations in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)
)

var _ ledger.Store = (*Store)(nil)

// Store wraps another ledger.Store.
type Store struct {
	next    ledger.Store
	backend string
	log     *slog.Logger
}

// Wrap instruments next under the given backend label.
func Wrap(next ledger.Store, backend string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{next: next, backend: backend, log: logger}
}

// Backend returns the backend label.
func (s *Store) Backend() string { return s.backend }

// Ready forwards to the wrapped store when it supports readiness checks.
func (s *Store) Ready(ctx context.Context) error {
	if rc, ok := s.next.(ledger.ReadyChecker); ok {
		return rc.Ready(ctx)
	}
	return nil
}

func (s *Store) List(ctx context.Context, owner string) ([]ledger.Expense, error) {
	start := time.Now()
	out, err := s.next.List(ctx, owner)
	s.observe(ctx, "list", start, err, "count", len(out))
	return out, err
}

func (s *Store) Create(ctx context.Context, owner string, f ledger.Fields) (ledger.Expense, error) {
	start := time.Now()
	e, err := s.next.Create(ctx, owner, f)
	s.observe(ctx, "create", start, err, "expense_id", e.ID)
	return e, err
}

func (s *Store) Update(ctx context.Context, owner string, id uuid.UUID, f ledger.Fields) (ledger.Expense, error) {
	start := time.Now()
	e, err := s.next.Update(ctx, owner, id, f)
	s.observe(ctx, "update", start, err, "expense_id", id)
	return e, err
}

func (s *Store) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	start := time.Now()
	err := s.next.Delete(ctx, owner, id)
	s.observe(ctx, "delete", start, err, "expense_id", id)
	return err
}

func (s *Store) observe(ctx context.Context, op string, start time.Time, err error, attrs ...any) {
	d := time.Since(start)
	result := resultLabel(err)
	storeOpsTotal.WithLabelValues(s.backend, op, result).Inc()
	storeOpDuration.WithLabelValues(s.backend, op).Observe(d.Seconds())
	args := append([]any{"backend", s.backend, "op", op, "result", result, "duration", d.String()}, attrs...)
	if err != nil && errors.Is(err, errs.ErrUnavailable) {
		s.log.WarnContext(ctx, "store operation failed", append(args, "err", err)...)
		return
	}
	s.log.DebugContext(ctx, "store operation", args...)
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return errs.Code(err)
}
