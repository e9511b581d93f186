// Package local keeps the whole expense ledger as one JSON document in a
// key/value medium. Every write rewrites the full document.
//
// Read-modify-write cycles are serialized within one process only. Two
// processes sharing the same medium can interleave and the later write wins,
// silently dropping the other's change.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
	"github.com/tinoosan/expenses/internal/storage"
)

// StorageKey is the fixed key holding the serialized ledger.
const StorageKey = "expense-tracker-expenses"

var _ ledger.Store = (*Store)(nil)

// Store is the local variant of ledger.Store. Owner arguments are ignored:
// every record belongs to ledger.LocalOwner.
type Store struct {
	mu  sync.Mutex
	kv  storage.KV
	log *slog.Logger
	now func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger used for decode warnings.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.log = l } }

// New returns a Store over kv.
func New(kv storage.KV, opts ...Option) *Store {
	s := &Store{kv: kv, log: slog.Default(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Backend names the variant for logs and metrics.
func (s *Store) Backend() string { return "local" }

// Ready reports whether the medium answers.
func (s *Store) Ready(ctx context.Context) error {
	if rc, ok := s.kv.(ledger.ReadyChecker); ok {
		return rc.Ready(ctx)
	}
	_, _, err := s.kv.Get(ctx, StorageKey)
	return err
}

// List returns the stored ledger in insertion order. A blob that cannot be
// decoded yields an empty ledger together with an ErrUnavailable error.
func (s *Store) List(ctx context.Context, _ string) ([]ledger.Expense, error) {
	items, err := s.load(ctx)
	if err != nil {
		return []ledger.Expense{}, err
	}
	return items, nil
}

// Create appends a new record with a fresh id and timestamps.
func (s *Store) Create(ctx context.Context, _ string, f ledger.Fields) (ledger.Expense, error) {
	if err := f.Validate(); err != nil {
		return ledger.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx)
	if err != nil {
		return ledger.Expense{}, err
	}
	now := s.now().UTC()
	e := ledger.Expense{
		ID:        uuid.New(),
		Owner:     ledger.LocalOwner,
		CreatedAt: &now,
		UpdatedAt: &now,
	}.Apply(f)
	if err := s.save(ctx, append(items, e)); err != nil {
		return ledger.Expense{}, err
	}
	return e, nil
}

// Update replaces the mutable fields of the record with id.
func (s *Store) Update(ctx context.Context, _ string, id uuid.UUID, f ledger.Fields) (ledger.Expense, error) {
	if err := f.Validate(); err != nil {
		return ledger.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx)
	if err != nil {
		return ledger.Expense{}, err
	}
	i := slices.IndexFunc(items, func(e ledger.Expense) bool { return e.ID == id })
	if i < 0 {
		return ledger.Expense{}, fmt.Errorf("expense %s: %w", id, errs.ErrNotFound)
	}
	now := s.now().UTC()
	updated := items[i].Apply(f)
	updated.UpdatedAt = &now
	items[i] = updated
	if err := s.save(ctx, items); err != nil {
		return ledger.Expense{}, err
	}
	return updated, nil
}

// Delete removes the record with id. An unknown id leaves the blob untouched
// and reports ErrNotFound.
func (s *Store) Delete(ctx context.Context, _ string, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx)
	if err != nil {
		return err
	}
	before := len(items)
	kept := slices.DeleteFunc(items, func(e ledger.Expense) bool { return e.ID == id })
	if len(kept) == before {
		return fmt.Errorf("expense %s: %w", id, errs.ErrNotFound)
	}
	return s.save(ctx, kept)
}

func (s *Store) load(ctx context.Context) ([]ledger.Expense, error) {
	raw, ok, err := s.kv.Get(ctx, StorageKey)
	if err != nil {
		return nil, errs.Unavailable(err)
	}
	if !ok || raw == "" {
		return []ledger.Expense{}, nil
	}
	var items []ledger.Expense
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		s.log.Warn("local ledger is not valid JSON", "key", StorageKey, "err", err)
		return nil, errs.Unavailable(fmt.Errorf("decode %s: %w", StorageKey, err))
	}
	if items == nil {
		items = []ledger.Expense{}
	}
	return items, nil
}

func (s *Store) save(ctx context.Context, items []ledger.Expense) error {
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode %s: %w", StorageKey, err)
	}
	if err := s.kv.Set(ctx, StorageKey, string(b)); err != nil {
		return errs.Unavailable(err)
	}
	return nil
}
