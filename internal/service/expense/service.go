// Package expense orchestrates the expense ledger for clients: validation before
// any write, a reload after every write, a last-known snapshot when the backend
// is down, and a notice for every outcome.
package expense

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
	"github.com/tinoosan/expenses/internal/notify"
	"github.com/tinoosan/expenses/internal/summary"
)

// Snapshot is the ledger as last loaded for an owner, newest first.
// Stale is set when the backend could not be read and an older copy is served.
type Snapshot struct {
	Items    []ledger.Expense `json:"items"`
	Stale    bool             `json:"stale"`
	LoadedAt time.Time        `json:"loaded_at"`
}

// Report is a summary computed over a snapshot.
type Report struct {
	summary.Summary
	Stale bool `json:"stale"`
}

type Service interface {
	// List loads the ledger. On failure it returns the last-known (or empty)
	// snapshot marked stale together with the error.
	List(ctx context.Context, owner string) (Snapshot, error)
	Create(ctx context.Context, owner string, f ledger.Fields) (ledger.Expense, error)
	Update(ctx context.Context, owner string, id uuid.UUID, f ledger.Fields) (ledger.Expense, error)
	// Delete succeeds when the record is gone afterwards, including when it never existed.
	Delete(ctx context.Context, owner string, id uuid.UUID) error
	Summary(ctx context.Context, owner string) (Report, error)
}

const (
	msgLoadFailed   = "Failed to load expenses from storage"
	msgAdded        = "Expense added successfully"
	msgAddFailed    = "Failed to add expense"
	msgUpdated      = "Expense updated successfully"
	msgUpdateFailed = "Failed to update expense"
	msgDeleted      = "Expense deleted successfully"
	msgDeleteFailed = "Failed to delete expense"
)

type service struct {
	store    ledger.Store
	notifier notify.Notifier
	log      *slog.Logger
	currency string

	loads       singleflight.Group
	loadTimeout time.Duration

	mu       sync.Mutex
	last     map[string]Snapshot
	gen      map[string]uint64 // bumped by every successful write
	inFlight map[uuid.UUID]struct{}
}

const defaultLoadTimeout = 10 * time.Second

// Option customizes the service.
type Option func(*service)

func WithLogger(l *slog.Logger) Option { return func(s *service) { s.log = l } }

// WithCurrency sets the currency used for summaries.
func WithCurrency(code string) Option { return func(s *service) { s.currency = code } }

// WithLoadTimeout bounds a shared ledger load, which outlives any single caller.
func WithLoadTimeout(d time.Duration) Option { return func(s *service) { s.loadTimeout = d } }

func New(store ledger.Store, notifier notify.Notifier, opts ...Option) Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	s := &service{
		store:    store,
		notifier: notifier,
		log:      slog.Default(),
		currency:    summary.DefaultCurrency,
		loadTimeout: defaultLoadTimeout,
		last:        make(map[string]Snapshot),
		gen:         make(map[string]uint64),
		inFlight:    make(map[uuid.UUID]struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *service) List(ctx context.Context, owner string) (Snapshot, error) {
	snap, err := s.load(ctx, owner)
	if err != nil {
		s.log.WarnContext(ctx, "ledger load failed", "owner", owner, "err", err)
		s.emit(ctx, notify.Failure("list", owner, msgLoadFailed, uuid.Nil))
		return s.lastKnown(owner), err
	}
	// callers own their copy
	snap.Items = append([]ledger.Expense(nil), snap.Items...)
	return snap, nil
}

// load shares one backend read per owner among concurrent callers. The read is
// detached from the first caller's context; each caller stops waiting when its
// own context ends. A read that started before a write never becomes last-known.
func (s *service) load(ctx context.Context, owner string) (Snapshot, error) {
	ch := s.loads.DoChan(owner, func() (any, error) {
		s.mu.Lock()
		g := s.gen[owner]
		s.mu.Unlock()

		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.loadTimeout)
		defer cancel()
		items, err := s.store.List(lctx, owner)
		if err != nil {
			return nil, err
		}
		if items == nil {
			items = []ledger.Expense{}
		}
		ledger.SortByDateDesc(items)
		snap := Snapshot{Items: items, LoadedAt: time.Now().UTC()}
		s.mu.Lock()
		if s.gen[owner] == g {
			s.last[owner] = snap
		}
		s.mu.Unlock()
		return snap, nil
	})
	select {
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Snapshot{}, res.Err
		}
		return res.Val.(Snapshot), nil
	}
}

// written records a successful write for owner so the next load starts fresh.
func (s *service) written(owner string) {
	s.mu.Lock()
	s.gen[owner]++
	s.mu.Unlock()
	s.loads.Forget(owner)
}

func (s *service) Create(ctx context.Context, owner string, f ledger.Fields) (ledger.Expense, error) {
	if err := f.Validate(); err != nil {
		s.emit(ctx, notify.Failure("create", owner, err.Error(), uuid.Nil))
		return ledger.Expense{}, err
	}
	created, err := s.store.Create(ctx, owner, f)
	if err != nil {
		s.log.ErrorContext(ctx, "create expense failed", "owner", owner, "err", err)
		s.emit(ctx, notify.Failure("create", owner, msgAddFailed, uuid.Nil))
		return ledger.Expense{}, err
	}
	s.emit(ctx, notify.Success("create", owner, msgAdded, created.ID))
	return s.reconcile(ctx, owner, created), nil
}

func (s *service) Update(ctx context.Context, owner string, id uuid.UUID, f ledger.Fields) (ledger.Expense, error) {
	if err := f.Validate(); err != nil {
		s.emit(ctx, notify.Failure("update", owner, err.Error(), id))
		return ledger.Expense{}, err
	}
	release, err := s.claim(id)
	if err != nil {
		return ledger.Expense{}, err
	}
	defer release()

	updated, err := s.store.Update(ctx, owner, id, f)
	if err != nil {
		s.log.ErrorContext(ctx, "update expense failed", "owner", owner, "expense_id", id, "err", err)
		s.emit(ctx, notify.Failure("update", owner, msgUpdateFailed, id))
		return ledger.Expense{}, err
	}
	s.emit(ctx, notify.Success("update", owner, msgUpdated, id))
	return s.reconcile(ctx, owner, updated), nil
}

func (s *service) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	release, err := s.claim(id)
	if err != nil {
		return err
	}
	defer release()

	err = s.store.Delete(ctx, owner, id)
	if errors.Is(err, errs.ErrNotFound) {
		s.log.DebugContext(ctx, "delete of unknown expense treated as done", "owner", owner, "expense_id", id)
		err = nil
	}
	if err != nil {
		s.log.ErrorContext(ctx, "delete expense failed", "owner", owner, "expense_id", id, "err", err)
		s.emit(ctx, notify.Failure("delete", owner, msgDeleteFailed, id))
		return err
	}
	s.written(owner)
	s.emit(ctx, notify.Success("delete", owner, msgDeleted, id))
	_, _ = s.List(ctx, owner)
	return nil
}

func (s *service) Summary(ctx context.Context, owner string) (Report, error) {
	snap, loadErr := s.List(ctx, owner)
	sum, err := summary.Summarize(snap.Items, s.currency)
	if err != nil {
		return Report{}, fmt.Errorf("summarize: %w", err)
	}
	return Report{Summary: sum, Stale: snap.Stale}, loadErr
}

// reconcile reloads the ledger and returns the stored copy of e, so fields the
// backend filled in are what the caller sees. If the reload fails e is returned as is.
func (s *service) reconcile(ctx context.Context, owner string, e ledger.Expense) ledger.Expense {
	s.written(owner)
	snap, err := s.List(ctx, owner)
	if err != nil {
		return e
	}
	for _, it := range snap.Items {
		if it.ID == e.ID {
			return it
		}
	}
	return e
}

// claim marks id as being changed. A second claim for the same id fails with ErrConflict.
func (s *service) claim(id uuid.UUID) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return nil, fmt.Errorf("expense %s is already being changed: %w", id, errs.ErrConflict)
	}
	s.inFlight[id] = struct{}{}
	return func() {
		s.mu.Lock()
		delete(s.inFlight, id)
		s.mu.Unlock()
	}, nil
}

func (s *service) lastKnown(owner string) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.last[owner]
	if !ok {
		return Snapshot{Items: []ledger.Expense{}, Stale: true}
	}
	snap.Items = append([]ledger.Expense{}, snap.Items...)
	snap.Stale = true
	return snap
}

func (s *service) emit(ctx context.Context, n notify.Notice) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.log.WarnContext(ctx, "notification delivery failed", "op", n.Op, "err", err)
	}
}
