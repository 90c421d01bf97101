package txn

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Compensator that remembers the order of compensations.
type recorder struct {
	mu    sync.Mutex
	calls []uuid.UUID
	fail  map[uuid.UUID]error
}

func (r *recorder) Compensate(_ context.Context, c Compensation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c.EntityID)
	return r.fail[c.EntityID]
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	m := New(Options{})
	var seen *Transaction

	err := m.Run(context.Background(), map[string]any{"op": "seed"}, func(ctx context.Context) error {
		assert.True(t, m.IsInTransaction(ctx))
		tx, ok := m.Current(ctx)
		require.True(t, ok)
		seen = tx
		_, err := m.AddOperation(ctx, Operation{Type: "create_node", Compensation: Compensation{Kind: DeleteNode}})
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, Committed, seen.Status())
	assert.Len(t, seen.Operations(), 1)
	assert.False(t, m.IsInTransaction(context.Background()))

	st := m.Stats()
	assert.Equal(t, 1, st.Total)
	assert.Equal(t, 1, st.Committed)
	assert.Equal(t, 0, st.Active)

	recent := m.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "committed", recent[0].Status)
	assert.Equal(t, "seed", recent[0].Metadata["op"])
}

func TestAddOperation_KeepsForwardData(t *testing.T) {
	m := New(Options{})
	cmdID := uuid.New()
	payload := map[string]any{"label": "A"}
	var tx *Transaction

	err := m.Run(context.Background(), nil, func(ctx context.Context) error {
		tx, _ = m.Current(ctx)
		id, err := m.AddOperation(ctx, Operation{
			Type:         "create_node",
			Data:         payload,
			CommandID:    cmdID,
			Compensation: Compensation{Kind: DeleteNode},
		})
		assert.NotEqual(t, uuid.Nil, id)
		return err
	})
	require.NoError(t, err)

	ops := tx.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, payload, ops[0].Data)
	assert.Equal(t, cmdID, ops[0].CommandID)
	assert.False(t, ops[0].Timestamp.IsZero())

	recent := m.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, 1, recent[0].Operations)
	assert.Equal(t, []string{"create_node"}, recent[0].OperationTypes)
}

func TestRun_RollsBackInReverseOrder(t *testing.T) {
	m := New(Options{})
	var order []int
	boom := errors.New("forced failure")

	err := m.Run(context.Background(), nil, func(ctx context.Context) error {
		for i := 1; i <= 3; i++ {
			_, err := m.AddOperation(ctx, Operation{
				Type: "step",
				Rollback: func(context.Context, Compensation) error {
					order = append(order, i)
					return nil
				},
			})
			require.NoError(t, err)
		}
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, []int{3, 2, 1}, order)
	st := m.Stats()
	assert.Equal(t, 1, st.RolledBack)
	assert.Equal(t, 0, st.RollbackFailures)
}

func TestRun_FallsBackToCompensator(t *testing.T) {
	rec := &recorder{}
	m := New(Options{Compensator: rec})
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	err := m.Run(context.Background(), nil, func(ctx context.Context) error {
		for _, id := range ids {
			_, err := m.AddOperation(ctx, Operation{Compensation: Compensation{Kind: DeleteNode, EntityID: id}})
			require.NoError(t, err)
		}
		return errors.New("fail")
	})
	require.Error(t, err)
	assert.Equal(t, []uuid.UUID{ids[1], ids[0]}, rec.calls)
}

func TestRun_RollbackFailuresAreRecordedNotReturned(t *testing.T) {
	logs := &testutil.SafeBuffer{}
	ctx := ctxlog.WithLogger(context.Background(), testutil.NewLogger(logs))

	broken := uuid.New()
	rec := &recorder{fail: map[uuid.UUID]error{broken: errors.New("store unavailable")}}
	m := New(Options{Compensator: rec})
	original := errors.New("original")
	var tx *Transaction

	err := m.Run(ctx, nil, func(ctx context.Context) error {
		tx, _ = m.Current(ctx)
		_, _ = m.AddOperation(ctx, Operation{Compensation: Compensation{Kind: DeleteNode, EntityID: uuid.New()}})
		_, _ = m.AddOperation(ctx, Operation{Compensation: Compensation{Kind: DeleteNode, EntityID: broken}})
		_, _ = m.AddOperation(ctx, Operation{
			Rollback: func(context.Context, Compensation) error { panic("compensation exploded") },
		})
		return original
	})

	assert.Same(t, original, err)
	assert.Len(t, rec.calls, 2, "rollback continues past failures")

	rbErrs := tx.RollbackErrors()
	require.Len(t, rbErrs, 2)
	for _, e := range rbErrs {
		assert.ErrorIs(t, e, fault.ErrRollbackFailure)
	}
	assert.Same(t, original, tx.Err())
	assert.Equal(t, 2, m.Stats().RollbackFailures)
	testutil.AssertLogged(t, logs, "Rollback operation failed", "entity_id="+broken.String(), "integrity=compromised")
}

func TestRun_PanicRollsBackAndRepanics(t *testing.T) {
	m := New(Options{})
	rolledBack := false

	assert.PanicsWithValue(t, "kaboom", func() {
		_ = m.Run(context.Background(), nil, func(ctx context.Context) error {
			_, _ = m.AddOperation(ctx, Operation{
				Rollback: func(context.Context, Compensation) error {
					rolledBack = true
					return nil
				},
			})
			panic("kaboom")
		})
	})

	assert.True(t, rolledBack)
	st := m.Stats()
	assert.Equal(t, 1, st.RolledBack)
	assert.Equal(t, 0, st.Active)
	assert.Contains(t, m.Recent(1)[0].Error, "kaboom")
}

func TestRun_RejectsNesting(t *testing.T) {
	m := New(Options{})
	var inner error

	err := m.Run(context.Background(), nil, func(ctx context.Context) error {
		inner = m.Run(ctx, nil, func(context.Context) error { return nil })
		return nil
	})

	require.NoError(t, err)
	assert.ErrorIs(t, inner, ErrNested)
	assert.ErrorIs(t, inner, fault.ErrIllegalState)
	assert.Equal(t, 1, m.Stats().Total)
}

func TestAddOperation_OutsideTransaction(t *testing.T) {
	m := New(Options{})
	_, err := m.AddOperation(context.Background(), Operation{})
	assert.ErrorIs(t, err, ErrNoTransaction)

	// A finished transaction in the context is terminal.
	var done context.Context
	require.NoError(t, m.Run(context.Background(), nil, func(ctx context.Context) error {
		done = ctx
		return nil
	}))
	_, err = m.AddOperation(done, Operation{})
	assert.ErrorIs(t, err, fault.ErrIllegalState)
	assert.False(t, m.IsInTransaction(done))
}

func TestHistoryIsTrimmedToNewestHalf(t *testing.T) {
	m := New(Options{HistoryLimit: 4})
	for i := 0; i < 5; i++ {
		require.NoError(t, m.Run(context.Background(), map[string]any{"i": i}, func(context.Context) error { return nil }))
	}

	recent := m.Recent(0)
	require.Len(t, recent, 2)
	assert.Equal(t, 3, recent[0].Metadata["i"])
	assert.Equal(t, 4, recent[1].Metadata["i"])
	assert.Equal(t, 5, m.Stats().Total)
}

func TestConcurrentTransactionsAreIsolated(t *testing.T) {
	m := New(Options{})
	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Run(context.Background(), nil, func(ctx context.Context) error {
				tx, _ := m.Current(ctx)
				_, _ = m.AddOperation(ctx, Operation{Rollback: func(context.Context, Compensation) error { return nil }})
				if len(tx.Operations()) != 1 {
					t.Errorf("transaction saw %d operations", len(tx.Operations()))
				}
				if i%2 == 0 {
					return errors.New("fail")
				}
				return nil
			})
		}()
	}
	wg.Wait()

	st := m.Stats()
	assert.Equal(t, n, st.Total)
	assert.Equal(t, n/2, st.Committed)
	assert.Equal(t, n/2, st.RolledBack)
	assert.Equal(t, 0, st.Active)
}
