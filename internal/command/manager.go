package command

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
)

// DefaultMaxHistory is used when Options.MaxHistory is not positive.
const DefaultMaxHistory = 100

// Guard holds entity locks on behalf of the Manager while it undoes or
// redoes a command. lock.Manager implements it.
type Guard interface {
	Hold(ids []uuid.UUID) (release func())
}

// Options configures a Manager.
type Options struct {
	// MaxHistory bounds the number of undoable commands kept.
	MaxHistory int
	// Guard, when set, is used to lock a command's entities during undo and
	// redo.
	Guard Guard
	// Clock stamps metadata. Defaults to time.Now.
	Clock func() time.Time
}

// Metadata describes one command in the history or the failure log.
type Metadata struct {
	ID          uuid.UUID     `json:"id"`
	Type        string        `json:"type"`
	Description string        `json:"description"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"execution_time_ns"`
	Executed    bool          `json:"executed"`
	Undone      bool          `json:"undone"`
	Error       string        `json:"error_message,omitempty"`
}

// Stats summarises the Manager's activity.
type Stats struct {
	Total         int           `json:"total_commands"`
	Succeeded     int           `json:"successful_commands"`
	Failed        int           `json:"failed_commands"`
	Cursor        int           `json:"current_index"`
	HistorySize   int           `json:"history_size"`
	MaxHistory    int           `json:"max_history"`
	CanUndo       bool          `json:"can_undo"`
	CanRedo       bool          `json:"can_redo"`
	MeanExecution time.Duration `json:"average_execution_time_ns"`
}

type record struct {
	cmd  Command
	meta Metadata
}

// Manager executes commands and keeps a bounded, linear undo/redo history.
// It is safe for concurrent use.
type Manager struct {
	maxHistory int
	guard      Guard
	clock      func() time.Time

	mu        sync.Mutex
	history   []*record
	applied   int // history[:applied] is applied, history[applied:] is redoable
	failures  []Metadata
	total     int
	succeeded int
	failed    int
	execTime  time.Duration
}

// NewManager returns an empty Manager.
func NewManager(opts Options) *Manager {
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = DefaultMaxHistory
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Manager{maxHistory: opts.MaxHistory, guard: opts.Guard, clock: opts.Clock}
}

// Execute runs cmd and, on success, appends it to the history. Any redo tail
// is discarded. The caller must already hold cmd's entity locks.
func (m *Manager) Execute(ctx context.Context, cmd Command) error {
	if cmd == nil {
		panic("command: nil command")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)

	meta := Metadata{
		ID:          cmd.ID(),
		Type:        typeName(cmd),
		Description: cmd.Description(),
		Timestamp:   m.clock(),
	}
	start := time.Now()
	err := cmd.Execute(ctx)
	meta.Duration = time.Since(start)

	m.mu.Lock()
	m.total++
	if err != nil {
		m.failed++
		meta.Error = err.Error()
		m.failures = append(m.failures, meta)
		if len(m.failures) > m.maxHistory {
			m.failures = m.failures[1:]
		}
		m.mu.Unlock()
		logger.Debug("Command failed.", "command", meta.Type, "command_id", meta.ID, "error", err)
		return err
	}

	meta.Executed = true
	m.succeeded++
	m.execTime += meta.Duration
	for i := m.applied; i < len(m.history); i++ {
		m.history[i] = nil
	}
	m.history = append(m.history[:m.applied], &record{cmd: cmd, meta: meta})
	m.applied++
	if len(m.history) > m.maxHistory {
		evicted := m.history[0]
		m.history[0] = nil
		m.history = m.history[1:]
		m.applied--
		logger.Debug("Evicted oldest command from history.", "command_id", evicted.meta.ID)
	}
	m.mu.Unlock()

	logger.Debug("Command executed.", "command", meta.Type, "command_id", meta.ID, "duration", meta.Duration)
	return nil
}

// Undo reverses the most recently applied command. It returns false when
// there is nothing to undo or the command refuses.
func (m *Manager) Undo(ctx context.Context) bool {
	return m.step(ctx, true)
}

// Redo re-applies the most recently undone command. It returns false when
// there is nothing to redo or the command refuses.
func (m *Manager) Redo(ctx context.Context) bool {
	return m.step(ctx, false)
}

func (m *Manager) step(ctx context.Context, undo bool) bool {
	logger := ctxlog.FromContext(ctx)
	op := "redo"
	if undo {
		op = "undo"
	}

	for {
		m.mu.Lock()
		target := m.peek(undo)
		m.mu.Unlock()
		if target == nil {
			logger.Debug("Nothing to "+op+".", "op", op)
			return false
		}

		// Entity locks come before the history mutex, as on the execute path.
		release := func() {}
		if m.guard != nil {
			release = m.guard.Hold(target.cmd.Entities())
		}

		m.mu.Lock()
		if m.peek(undo) != target {
			m.mu.Unlock()
			release()
			continue
		}
		ok := m.apply(ctx, target, undo)
		m.mu.Unlock()
		release()
		return ok
	}
}

// peek must be called with mu held.
func (m *Manager) peek(undo bool) *record {
	if undo {
		if m.applied == 0 {
			return nil
		}
		return m.history[m.applied-1]
	}
	if m.applied >= len(m.history) {
		return nil
	}
	return m.history[m.applied]
}

// apply must be called with mu held.
func (m *Manager) apply(ctx context.Context, r *record, undo bool) bool {
	logger := ctxlog.FromContext(ctx).With("command", r.meta.Type, "command_id", r.meta.ID)

	if undo {
		if !r.cmd.CanUndo() {
			logger.Warn("Command cannot be undone.")
			return false
		}
		if err := r.cmd.Undo(ctx); err != nil {
			logger.Warn("Undo failed.", "error", err)
			return false
		}
		r.meta.Undone = true
		m.applied--
		logger.Debug("Command undone.")
		return true
	}

	if err := r.cmd.Execute(ctx); err != nil {
		logger.Warn("Redo failed.", "error", err)
		return false
	}
	r.meta.Undone = false
	r.meta.Executed = true
	m.applied++
	logger.Debug("Command redone.")
	return true
}

// History returns metadata for every command in the history, oldest first.
func (m *Manager) History() []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metas(m.history)
}

// UndoStack returns metadata for the applied commands, oldest first.
func (m *Manager) UndoStack() []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metas(m.history[:m.applied])
}

// RedoStack returns metadata for the undone commands that can be redone.
func (m *Manager) RedoStack() []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metas(m.history[m.applied:])
}

// Failures returns metadata for recent failed executions, oldest first.
func (m *Manager) Failures() []Metadata {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Metadata(nil), m.failures...)
}

// Current returns the most recently applied command.
func (m *Manager) Current() (Command, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.applied == 0 {
		return nil, false
	}
	return m.history[m.applied-1].cmd, true
}

// Discard removes the commands with the given ids from the history, applied
// or undone, without running them. The cursor keeps pointing past the same
// surviving commands. It returns how many entries were removed.
func (m *Manager) Discard(ctx context.Context, ids ...uuid.UUID) int {
	if len(ids) == 0 {
		return 0
	}
	drop := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	m.mu.Lock()
	kept := m.history[:0]
	applied := m.applied
	for i, r := range m.history {
		if _, ok := drop[r.meta.ID]; ok {
			if i < m.applied {
				applied--
			}
			continue
		}
		kept = append(kept, r)
	}
	removed := len(m.history) - len(kept)
	for i := len(kept); i < len(m.history); i++ {
		m.history[i] = nil
	}
	m.history = kept
	m.applied = applied
	m.mu.Unlock()

	if removed > 0 {
		ctxlog.FromContext(ctx).Debug("Discarded commands from history.", "requested", len(ids), "removed", removed)
	}
	return removed
}

// Clear drops the history and the failure log. Counters are kept.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = nil
	m.failures = nil
	m.applied = 0
}

// Statistics returns a snapshot of the Manager's counters.
func (m *Manager) Statistics() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		Total:       m.total,
		Succeeded:   m.succeeded,
		Failed:      m.failed,
		Cursor:      m.applied - 1,
		HistorySize: len(m.history),
		MaxHistory:  m.maxHistory,
		CanUndo:     m.applied > 0,
		CanRedo:     m.applied < len(m.history),
	}
	if m.succeeded > 0 {
		st.MeanExecution = m.execTime / time.Duration(m.succeeded)
	}
	return st
}

func metas(records []*record) []Metadata {
	out := make([]Metadata, len(records))
	for i, r := range records {
		out[i] = r.meta
	}
	return out
}

func typeName(cmd Command) string {
	if n, ok := cmd.(Named); ok {
		return n.Name()
	}
	name := fmt.Sprintf("%T", cmd)
	return name[strings.LastIndex(name, ".")+1:]
}
