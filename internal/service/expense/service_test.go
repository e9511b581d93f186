package expense

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinoosan/expenses/internal/errs"
	"github.com/tinoosan/expenses/internal/ledger"
	"github.com/tinoosan/expenses/internal/notify"
	"github.com/tinoosan/expenses/internal/storage/local"
	"github.com/tinoosan/expenses/internal/storage/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// spyStore counts calls and can hold Update open until released.
type spyStore struct {
	ledger.Store
	lists, creates, updates, deletes atomic.Int32
	block                            chan struct{}
	entered                          chan struct{}

	// holdNext parks the next List after it has read the ledger, until hold is closed.
	holdNext atomic.Bool
	held     chan struct{}
	hold     chan struct{}
	listErr  chan error
}

func (s *spyStore) List(ctx context.Context, owner string) ([]ledger.Expense, error) {
	s.lists.Add(1)
	items, err := s.Store.List(ctx, owner)
	if s.holdNext.CompareAndSwap(true, false) {
		s.held <- struct{}{}
		<-s.hold
		if s.listErr != nil {
			s.listErr <- ctx.Err()
		}
	}
	return items, err
}

// armHold makes the next List park until the returned release func is called.
func (s *spyStore) armHold() (release func()) {
	s.held = make(chan struct{}, 1)
	s.hold = make(chan struct{})
	s.listErr = make(chan error, 1)
	s.holdNext.Store(true)
	return func() { close(s.hold) }
}

func (s *spyStore) Create(ctx context.Context, owner string, f ledger.Fields) (ledger.Expense, error) {
	s.creates.Add(1)
	return s.Store.Create(ctx, owner, f)
}

func (s *spyStore) Update(ctx context.Context, owner string, id uuid.UUID, f ledger.Fields) (ledger.Expense, error) {
	s.updates.Add(1)
	if s.block != nil {
		s.entered <- struct{}{}
		<-s.block
	}
	return s.Store.Update(ctx, owner, id, f)
}

func (s *spyStore) Delete(ctx context.Context, owner string, id uuid.UUID) error {
	s.deletes.Add(1)
	return s.Store.Delete(ctx, owner, id)
}

type fixture struct {
	svc Service
	kv  *memory.KV
	spy *spyStore
	rec *notify.Recorder
}

func setup(t *testing.T) fixture {
	t.Helper()
	kv := memory.New()
	spy := &spyStore{Store: local.New(kv, local.WithLogger(testLogger()))}
	rec := &notify.Recorder{}
	return fixture{svc: New(spy, rec, WithLogger(testLogger())), kv: kv, spy: spy, rec: rec}
}

func fields(t *testing.T, amount float64, c ledger.Category, date string) ledger.Fields {
	t.Helper()
	d, err := ledger.ParseDate(date)
	require.NoError(t, err)
	return ledger.Fields{Amount: ledger.Amount(amount), Category: c, Date: d}
}

func lastNotice(t *testing.T, rec *notify.Recorder) notify.Notice {
	t.Helper()
	all := rec.All()
	require.NotEmpty(t, all)
	return all[len(all)-1]
}

func TestCreate_ReloadsAndNotifies(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	created, err := fx.svc.Create(ctx, "", fields(t, 20, ledger.CategoryFood, "2024-03-01"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, int32(1), fx.spy.creates.Load())
	assert.Equal(t, int32(1), fx.spy.lists.Load(), "create must be followed by a reload")

	n := lastNotice(t, fx.rec)
	assert.Equal(t, notify.LevelSuccess, n.Level)
	assert.Equal(t, "Expense added successfully", n.Message)
	assert.Equal(t, created.ID, n.ExpenseID)

	snap, err := fx.svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, created.ID, snap.Items[0].ID)
	assert.False(t, snap.Stale)
}

func TestCreate_ValidationNeverReachesStore(t *testing.T) {
	fx := setup(t)
	_, err := fx.svc.Create(context.Background(), "", ledger.Fields{Category: ledger.CategoryFood})
	assert.True(t, errors.Is(err, errs.ErrValidation))
	assert.Equal(t, int32(0), fx.spy.creates.Load())
	assert.Equal(t, notify.LevelError, lastNotice(t, fx.rec).Level)
}

func TestList_SortedNewestFirst(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	_, err := fx.svc.Create(ctx, "", fields(t, 1, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, "", fields(t, 2, ledger.CategoryFood, "2024-03-01"))
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, "", fields(t, 3, ledger.CategoryFood, "2024-02-01"))
	require.NoError(t, err)

	snap, err := fx.svc.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, snap.Items, 3)
	assert.Equal(t, []float64{2, 3, 1}, []float64{snap.Items[0].Amount, snap.Items[1].Amount, snap.Items[2].Amount})
}

func TestList_FailureServesLastKnown(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	// nothing loaded yet: empty and stale
	fx.kv.Fail(errors.New("offline"))
	snap, err := fx.svc.List(ctx, "")
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
	assert.True(t, snap.Stale)
	assert.Empty(t, snap.Items)
	n := lastNotice(t, fx.rec)
	assert.Equal(t, "Failed to load expenses from storage", n.Message)

	fx.kv.Fail(nil)
	_, err = fx.svc.Create(ctx, "", fields(t, 5, ledger.CategoryBills, "2024-01-01"))
	require.NoError(t, err)

	fx.kv.Fail(errors.New("offline"))
	snap, err = fx.svc.List(ctx, "")
	assert.Error(t, err)
	assert.True(t, snap.Stale)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5.0, snap.Items[0].Amount)
}

func TestCreate_BackendFailureLeavesLedgerUnchanged(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	fx.kv.Fail(errors.New("quota"))
	_, err := fx.svc.Create(ctx, "", fields(t, 5, ledger.CategoryBills, "2024-01-01"))
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
	assert.Equal(t, "Failed to add expense", lastNotice(t, fx.rec).Message)

	fx.kv.Fail(nil)
	snap, err := fx.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
}

func TestUpdate_NotFound(t *testing.T) {
	fx := setup(t)
	_, err := fx.svc.Update(context.Background(), "", uuid.New(), fields(t, 1, ledger.CategoryFood, "2024-01-01"))
	assert.True(t, errors.Is(err, errs.ErrNotFound))
	assert.Equal(t, "Failed to update expense", lastNotice(t, fx.rec).Message)
}

func TestUpdate_ReturnsReconciledRecord(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	created, err := fx.svc.Create(ctx, "", fields(t, 10, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)

	got, err := fx.svc.Update(ctx, "", created.ID, fields(t, 11, ledger.CategoryOther, "2024-01-02"))
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, 11.0, got.Amount)
	assert.Equal(t, "Expense updated successfully", lastNotice(t, fx.rec).Message)
}

func TestDelete_Idempotent(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	created, err := fx.svc.Create(ctx, "", fields(t, 10, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)

	require.NoError(t, fx.svc.Delete(ctx, "", created.ID))
	require.NoError(t, fx.svc.Delete(ctx, "", created.ID))
	require.NoError(t, fx.svc.Delete(ctx, "", uuid.New()))
	assert.Equal(t, int32(3), fx.spy.deletes.Load())

	snap, err := fx.svc.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Equal(t, "Expense deleted successfully", lastNotice(t, fx.rec).Message)
}

func TestDelete_BackendFailure(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	created, err := fx.svc.Create(ctx, "", fields(t, 10, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)
	fx.kv.Fail(errors.New("gone"))
	err = fx.svc.Delete(ctx, "", created.ID)
	assert.True(t, errors.Is(err, errs.ErrUnavailable))
	assert.Equal(t, "Failed to delete expense", lastNotice(t, fx.rec).Message)
}

func TestConcurrentMutationOfSameRecordConflicts(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	created, err := fx.svc.Create(ctx, "", fields(t, 10, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)

	fx.spy.block = make(chan struct{})
	fx.spy.entered = make(chan struct{}, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := fx.svc.Update(ctx, "", created.ID, fields(t, 12, ledger.CategoryFood, "2024-01-01"))
		assert.NoError(t, err)
	}()
	<-fx.spy.entered

	err = fx.svc.Delete(ctx, "", created.ID)
	assert.True(t, errors.Is(err, errs.ErrConflict))

	close(fx.spy.block)
	wg.Wait()
	fx.spy.block = nil
	require.NoError(t, fx.svc.Delete(ctx, "", created.ID))
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	_, err := fx.svc.Create(ctx, "", fields(t, 20, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)
	_, err = fx.svc.Create(ctx, "", fields(t, 80, ledger.CategoryBills, "2024-01-02"))
	require.NoError(t, err)

	rep, err := fx.svc.Summary(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 100.0, rep.Total)
	assert.Equal(t, 2, rep.Count)
	require.Len(t, rep.Breakdown, 2)
	assert.Equal(t, ledger.CategoryBills, rep.Breakdown[0].Category)
	assert.Equal(t, 80.0, rep.Breakdown[0].Percentage)
	assert.Equal(t, ledger.CategoryFood, rep.Breakdown[1].Category)
	assert.False(t, rep.Stale)

	fx.kv.Fail(errors.New("offline"))
	rep, err = fx.svc.Summary(ctx, "")
	assert.Error(t, err)
	assert.True(t, rep.Stale)
	assert.Equal(t, 100.0, rep.Total)
}

func TestList_CallerCancelDoesNotFailOthers(t *testing.T) {
	fx := setup(t)
	_, err := fx.svc.Create(context.Background(), "", fields(t, 7, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)
	release := fx.spy.armHold()

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := fx.svc.List(ctxA, "")
		errA <- err
	}()
	<-fx.spy.held

	type result struct {
		snap Snapshot
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		snap, err := fx.svc.List(context.Background(), "")
		resB <- result{snap, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	release()
	assert.NoError(t, <-fx.spy.listErr, "shared load must not inherit a caller's cancellation")
	b := <-resB
	require.NoError(t, b.err)
	assert.False(t, b.snap.Stale)
	assert.Len(t, b.snap.Items, 1)
}

func TestDelete_RelistIgnoresLoadStartedBeforeWrite(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)
	e, err := fx.svc.Create(ctx, "", fields(t, 7, ledger.CategoryFood, "2024-01-01"))
	require.NoError(t, err)

	release := fx.spy.armHold()
	early := make(chan Snapshot, 1)
	go func() {
		snap, _ := fx.svc.List(ctx, "")
		early <- snap
	}()
	<-fx.spy.held

	done := make(chan error, 1)
	go func() { done <- fx.svc.Delete(ctx, "", e.ID) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		release()
		t.Fatal("delete waited on a load that read the ledger before the write")
	}

	release()
	assert.Len(t, (<-early).Items, 1, "the early reader still sees what it read")

	fx.kv.Fail(errors.New("offline"))
	snap, err := fx.svc.List(ctx, "")
	require.Error(t, err)
	assert.True(t, snap.Stale)
	assert.Empty(t, snap.Items, "last-known must reflect the delete")
}
