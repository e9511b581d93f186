package local

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
	"github.com/tinoosan/expenses/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func fields(t *testing.T, amount float64, c ledger.Category, date string) ledger.Fields {
	t.Helper()
	d, err := ledger.ParseDate(date)
	require.NoError(t, err)
	return ledger.Fields{Amount: ledger.Amount(amount), Category: c, Date: d}
}

func newStore(t *testing.T) (*Store, *memory.KV) {
	t.Helper()
	kv := memory.New()
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	return New(kv, WithLogger(testLogger()), WithClock(func() time.Time { return fixed })), kv
}

func blob(t *testing.T, kv *memory.KV) []ledger.Expense {
	t.Helper()
	raw, ok, err := kv.Get(context.Background(), StorageKey)
	require.NoError(t, err)
	require.True(t, ok, "blob missing")
	var out []ledger.Expense
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestList_EmptyWhenAbsent(t *testing.T) {
	s, _ := newStore(t)
	got, err := s.List(context.Background(), "anyone")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCreate_AppendsAndPersists(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)

	first, err := s.Create(ctx, "ignored", fields(t, 12.5, ledger.CategoryFood, "2024-03-01"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, first.ID)
	assert.Equal(t, ledger.LocalOwner, first.Owner)
	require.NotNil(t, first.CreatedAt)
	require.NotNil(t, first.UpdatedAt)

	second, err := s.Create(ctx, "", fields(t, 3, ledger.CategoryTransport, "2024-03-02"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	stored := blob(t, kv)
	require.Len(t, stored, 2)
	assert.Equal(t, first.ID, stored[0].ID)
	assert.Equal(t, second.ID, stored[1].ID)
	assert.Equal(t, 12.5, stored[0].Amount)
	assert.Equal(t, "2024-03-01", stored[0].Date.String())

	listed, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, stored, listed)
}

func TestCreate_ValidationLeavesBlobUntouched(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	kv.Seed(StorageKey, `[]`)

	_, err := s.Create(ctx, "", ledger.Fields{Category: ledger.CategoryFood})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	raw, _, _ := kv.Get(ctx, StorageKey)
	assert.Equal(t, `[]`, raw)
}

func TestUpdate_ReplacesFieldsKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	kv := memory.New()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s := New(kv, WithLogger(testLogger()), WithClock(func() time.Time { return clock }))

	created, err := s.Create(ctx, "", fields(t, 10, ledger.CategoryFood, "2024-03-01"))
	require.NoError(t, err)
	other, err := s.Create(ctx, "", fields(t, 99, ledger.CategoryOther, "2024-03-05"))
	require.NoError(t, err)

	clock = clock.Add(time.Hour)
	upd := fields(t, 15, ledger.CategoryBills, "2024-04-01")
	upd.Description = "power"
	got, err := s.Update(ctx, "", created.ID, upd)
	require.NoError(t, err)

	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, created.Owner, got.Owner)
	assert.Equal(t, *created.CreatedAt, *got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(*created.UpdatedAt))
	assert.Equal(t, 15.0, got.Amount)
	assert.Equal(t, ledger.CategoryBills, got.Category)
	assert.Equal(t, "power", got.Description)

	stored := blob(t, kv)
	require.Len(t, stored, 2)
	assert.Equal(t, got.ID, stored[0].ID)
	assert.Equal(t, 15.0, stored[0].Amount)
	assert.Equal(t, other.ID, stored[1].ID)
	assert.Equal(t, other.Amount, stored[1].Amount)
}

func TestUpdate_UnknownID(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	_, err := s.Create(ctx, "", fields(t, 1, ledger.CategoryFood, "2024-03-01"))
	require.NoError(t, err)
	before, _, _ := kv.Get(ctx, StorageKey)

	_, err = s.Update(ctx, "", uuid.New(), fields(t, 2, ledger.CategoryFood, "2024-03-01"))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	after, _, _ := kv.Get(ctx, StorageKey)
	assert.Equal(t, before, after)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	a, err := s.Create(ctx, "", fields(t, 1, ledger.CategoryFood, "2024-03-01"))
	require.NoError(t, err)
	b, err := s.Create(ctx, "", fields(t, 2, ledger.CategoryBills, "2024-03-02"))
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, "", a.ID))
	stored := blob(t, kv)
	require.Len(t, stored, 1)
	assert.Equal(t, b.ID, stored[0].ID)

	err = s.Delete(ctx, "", a.ID)
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Len(t, blob(t, kv), 1)
}

func TestCorruptBlob(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	kv.Seed(StorageKey, `{not json`)

	got, err := s.List(ctx, "")
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
	assert.NotNil(t, got)
	assert.Empty(t, got)

	// a write must not clobber data it could not read
	_, err = s.Create(ctx, "", fields(t, 1, ledger.CategoryFood, "2024-03-01"))
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
	raw, _, _ := kv.Get(ctx, StorageKey)
	assert.Equal(t, `{not json`, raw)
}

func TestMediumFailure(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	kv.Fail(errors.New("quota exceeded"))

	_, err := s.Create(ctx, "", fields(t, 1, ledger.CategoryFood, "2024-03-01"))
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
	assert.Error(t, s.Ready(ctx))

	kv.Fail(nil)
	got, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestConcurrentCreatesInOneProcess(t *testing.T) {
	ctx := context.Background()
	s, kv := newStore(t)
	f := fields(t, 1, ledger.CategoryOther, "2024-01-01")
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create(ctx, "", f)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, blob(t, kv), 20)
}

// TestListMatchesNetSurvivors replays seeded sequences of mixed writes against
// a map model and checks List after every step.
func TestListMatchesNetSurvivors(t *testing.T) {
	type rec struct {
		Amount   float64
		Category ledger.Category
		Date     string
	}
	dates := []string{"2024-01-01", "2024-02-15", "2024-03-31"}

	for seed := uint64(1); seed <= 5; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			ctx := context.Background()
			s, _ := newStore(t)
			rng := rand.New(rand.NewPCG(seed, seed*7))
			model := map[uuid.UUID]rec{}
			var ids []uuid.UUID // every id ever created, deleted ones included

			randFields := func() (ledger.Fields, rec) {
				r := rec{
					Amount:   float64(rng.IntN(10000)) / 100,
					Category: ledger.Categories[rng.IntN(len(ledger.Categories))],
					Date:     dates[rng.IntN(len(dates))],
				}
				return fields(t, r.Amount, r.Category, r.Date), r
			}
			pick := func() uuid.UUID {
				if len(ids) == 0 || rng.IntN(5) == 0 {
					return uuid.New()
				}
				return ids[rng.IntN(len(ids))]
			}

			for step := 0; step < 60; step++ {
				switch rng.IntN(3) {
				case 0:
					f, r := randFields()
					e, err := s.Create(ctx, "", f)
					require.NoError(t, err)
					model[e.ID] = r
					ids = append(ids, e.ID)
				case 1:
					id := pick()
					f, r := randFields()
					_, err := s.Update(ctx, "", id, f)
					if _, live := model[id]; live {
						require.NoError(t, err)
						model[id] = r
					} else {
						require.ErrorIs(t, err, errs.ErrNotFound)
					}
				case 2:
					id := pick()
					err := s.Delete(ctx, "", id)
					if _, live := model[id]; live {
						require.NoError(t, err)
						delete(model, id)
					} else {
						require.ErrorIs(t, err, errs.ErrNotFound)
					}
				}

				got, err := s.List(ctx, "")
				require.NoError(t, err)
				seen := make(map[uuid.UUID]rec, len(got))
				for _, e := range got {
					seen[e.ID] = rec{Amount: e.Amount, Category: e.Category, Date: e.Date.String()}
				}
				require.Len(t, got, len(seen), "duplicate ids at step %d", step)
				require.Equal(t, model, seen, "step %d", step)
			}
		})
	}
}
