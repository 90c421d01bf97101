package lock

import (
	"bytes"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Type selects shared or exclusive access.
type Type int

const (
	// Read locks coexist with other Read locks on the same entity.
	Read Type = iota
	// Write locks exclude every other lock on the same entity.
	Write
)

func (t Type) String() string {
	if t == Write {
		return "write"
	}
	return "read"
}

// entry is the lock of a single entity. refs, readers and writer are
// guarded by Manager.mu; rw is the lock itself.
type entry struct {
	rw      sync.RWMutex
	refs    int
	readers int
	writer  bool
}

// Stats is a point-in-time summary of lock activity.
type Stats struct {
	Acquired       int64 `json:"locks_acquired"`
	Released       int64 `json:"locks_released"`
	ActiveEntities int   `json:"active_entity_locks"`
	ActiveReaders  int   `json:"active_readers"`
	ActiveWriters  int   `json:"active_writers"`
}

// Info describes the lock state of one entity.
type Info struct {
	ID      uuid.UUID `json:"entity_id"`
	Readers int       `json:"readers"`
	Writer  bool      `json:"writer"`
	// Waiting is the number of goroutines blocked on this entity.
	Waiting int `json:"waiting"`
}

// Manager hands out entity locks. The zero value is not usable; call New.
type Manager struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*entry
	acquired  int64
	released  int64
	observers []func(uuid.UUID, Type)
}

// New returns an empty lock manager.
func New() *Manager {
	return &Manager{entries: make(map[uuid.UUID]*entry)}
}

// Scoped is a set of held locks. Release it exactly once, typically with
// defer; further calls are no-ops.
type Scoped struct {
	m    *Manager
	held []held
	once sync.Once
}

type held struct {
	id uuid.UUID
	e  *entry
	t  Type
}

// Release frees every lock in reverse acquisition order.
func (s *Scoped) Release() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		for i := len(s.held) - 1; i >= 0; i-- {
			s.m.release(s.held[i])
		}
	})
}

// IDs returns the locked ids in acquisition order.
func (s *Scoped) IDs() []uuid.UUID {
	ids := make([]uuid.UUID, len(s.held))
	for i, h := range s.held {
		ids[i] = h.id
	}
	return ids
}

// LockEntity blocks until id is locked with the given type.
func (m *Manager) LockEntity(id uuid.UUID, t Type) *Scoped {
	return &Scoped{m: m, held: []held{m.acquire(id, t)}}
}

// LockEntities locks every id in canonical order. Duplicates are locked once.
func (m *Manager) LockEntities(t Type, ids ...uuid.UUID) *Scoped {
	ordered := Canonical(ids...)
	s := &Scoped{m: m, held: make([]held, 0, len(ordered))}
	for _, id := range ordered {
		s.held = append(s.held, m.acquire(id, t))
	}
	return s
}

// LockPair locks the two endpoints of a relationship. When a == b a single
// lock is taken.
func (m *Manager) LockPair(a, b uuid.UUID, t Type) *Scoped {
	return m.LockEntities(t, a, b)
}

// Hold write-locks ids and returns the release function. It lets the
// command history hold entity locks while replaying a command.
func (m *Manager) Hold(ids []uuid.UUID) func() {
	return m.LockEntities(Write, ids...).Release
}

// Observe registers fn to be called after every successful acquisition.
func (m *Manager) Observe(fn func(id uuid.UUID, t Type)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Stats returns a snapshot of lock counters.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{Acquired: m.acquired, Released: m.released, ActiveEntities: len(m.entries)}
	for _, e := range m.entries {
		st.ActiveReaders += e.readers
		if e.writer {
			st.ActiveWriters++
		}
	}
	return st
}

// Info returns the lock state of id, or false when nobody holds or waits
// on it.
func (m *Manager) Info(id uuid.UUID) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[id]
	if !ok {
		return Info{}, false
	}
	holders := e.readers
	if e.writer {
		holders++
	}
	return Info{ID: id, Readers: e.readers, Writer: e.writer, Waiting: e.refs - holders}, true
}

// Canonical returns ids sorted by their raw bytes with duplicates removed.
// It is the global acquisition order.
func Canonical(ids ...uuid.UUID) []uuid.UUID {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return slices.Compact(out)
}

func (m *Manager) acquire(id uuid.UUID, t Type) held {
	m.mu.Lock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{}
		m.entries[id] = e
	}
	e.refs++
	m.mu.Unlock()

	if t == Write {
		e.rw.Lock()
	} else {
		e.rw.RLock()
	}

	m.mu.Lock()
	if t == Write {
		e.writer = true
	} else {
		e.readers++
	}
	m.acquired++
	observers := m.observers
	m.mu.Unlock()

	for _, fn := range observers {
		fn(id, t)
	}
	return held{id: id, e: e, t: t}
}

func (m *Manager) release(h held) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h.t == Write {
		h.e.writer = false
		h.e.rw.Unlock()
	} else {
		h.e.readers--
		h.e.rw.RUnlock()
	}
	h.e.refs--
	if h.e.refs == 0 {
		delete(m.entries, h.id)
	}
	m.released++
}
