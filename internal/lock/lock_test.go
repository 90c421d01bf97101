package lock

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonical_SortsAndDeduplicates(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")
	c := uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

	assert.Equal(t, []uuid.UUID{a, b, c}, Canonical(c, a, b, a))
	assert.Equal(t, []uuid.UUID{a}, Canonical(a, a))
	assert.Empty(t, Canonical())
}

func TestLockPair_SelfLoopTakesOneLock(t *testing.T) {
	m := New()
	var count atomic.Int32
	m.Observe(func(uuid.UUID, Type) { count.Add(1) })

	id := uuid.New()
	s := m.LockPair(id, id, Write)
	assert.Equal(t, int32(1), count.Load())
	assert.Equal(t, []uuid.UUID{id}, s.IDs())
	s.Release()

	st := m.Stats()
	assert.Equal(t, int64(1), st.Acquired)
	assert.Equal(t, int64(1), st.Released)
}

func TestRelease_IsIdempotent(t *testing.T) {
	m := New()
	id := uuid.New()

	s := m.LockEntity(id, Write)
	s.Release()
	s.Release()

	st := m.Stats()
	assert.Equal(t, int64(1), st.Released)
	assert.Equal(t, 0, st.ActiveEntities, "entry must be dropped once unused")

	var nilScope *Scoped
	assert.NotPanics(t, nilScope.Release)
}

func TestReadLocksCoexist(t *testing.T) {
	m := New()
	id := uuid.New()

	r1 := m.LockEntity(id, Read)
	r2 := m.LockEntity(id, Read)

	info, ok := m.Info(id)
	require.True(t, ok)
	assert.Equal(t, 2, info.Readers)
	assert.False(t, info.Writer)

	r1.Release()
	r2.Release()
	_, ok = m.Info(id)
	assert.False(t, ok)
}

func TestWriteExcludesOthers(t *testing.T) {
	m := New()
	id := uuid.New()

	w := m.LockEntity(id, Write)

	acquired := make(chan struct{})
	go func() {
		r := m.LockEntity(id, Read)
		close(acquired)
		r.Release()
	}()

	// The reader must still be waiting while the writer holds the lock.
	assert.Eventually(t, func() bool {
		info, _ := m.Info(id)
		return info.Waiting == 1
	}, time.Second, time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("reader acquired while writer held the lock")
	default:
	}

	info, ok := m.Info(id)
	require.True(t, ok)
	assert.True(t, info.Writer)

	w.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after writer released")
	}
}

func TestOppositeOrderPairsDoNotDeadlock(t *testing.T) {
	m := New()
	a, b := uuid.New(), uuid.New()
	var inside atomic.Int32
	var maxInside atomic.Int32

	const rounds = 200
	var wg sync.WaitGroup
	work := func(x, y uuid.UUID) {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			s := m.LockPair(x, y, Write)
			n := inside.Add(1)
			if n > maxInside.Load() {
				maxInside.Store(n)
			}
			inside.Add(-1)
			s.Release()
		}
	}

	wg.Add(2)
	go work(a, b)
	go work(b, a)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("opposite-order lock pairs deadlocked")
	}

	assert.Equal(t, int32(1), maxInside.Load(), "critical sections must not overlap")
	st := m.Stats()
	assert.Equal(t, int64(4*rounds), st.Acquired)
	assert.Equal(t, st.Acquired, st.Released)
	assert.Equal(t, 0, st.ActiveEntities)
}

func TestLockEntities_AcquiresInCanonicalOrder(t *testing.T) {
	m := New()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	s := m.LockEntities(Write, ids...)
	assert.Equal(t, Canonical(ids...), s.IDs())
	assert.Equal(t, 3, m.Stats().ActiveWriters)

	var order []uuid.UUID
	var mu sync.Mutex
	m.Observe(func(id uuid.UUID, _ Type) {
		mu.Lock()
		order = append(order, id)
		mu.Unlock()
	})
	s.Release()
	assert.Equal(t, 0, m.Stats().ActiveEntities)

	again := m.LockEntities(Write, ids[2], ids[0], ids[1])
	defer again.Release()
	assert.Equal(t, Canonical(ids...), order)
}

func TestHold_WriteLocksUntilReleased(t *testing.T) {
	m := New()
	id := uuid.New()

	release := m.Hold([]uuid.UUID{id, id})
	info, ok := m.Info(id)
	require.True(t, ok)
	assert.True(t, info.Writer)

	release()
	_, ok = m.Info(id)
	assert.False(t, ok)
}
