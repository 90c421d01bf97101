package command

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/graphstore"
)

// Command is a reversible graph mutation.
type Command interface {
	ID() uuid.UUID
	Timestamp() time.Time
	Execute(ctx context.Context) error
	Undo(ctx context.Context) error
	CanUndo() bool
	Description() string
	// Entities returns the ids that must be write-locked while the command
	// is executed or undone.
	Entities() []uuid.UUID
}

// Named is implemented by commands that report a short type name for
// history metadata. Commands without it are recorded by their Go type.
type Named interface {
	Name() string
}

// state tracks the single-shot lifecycle shared by every command.
type state struct {
	id       uuid.UUID
	ts       time.Time
	executed bool
	undone   bool
}

func newState() state {
	return state{id: uuid.New(), ts: time.Now()}
}

func (s *state) ID() uuid.UUID        { return s.id }
func (s *state) Timestamp() time.Time { return s.ts }

// Executed reports whether the command is currently applied.
func (s *state) Executed() bool { return s.executed && !s.undone }

func (s *state) checkExecutable(op string) error {
	if s.executed && !s.undone {
		return fault.IllegalState(op, s.id, "command already executed")
	}
	return nil
}

func (s *state) checkUndoable(op string) error {
	if !s.executed || s.undone {
		return fault.IllegalState(op, s.id, "command is not executed")
	}
	return nil
}

func (s *state) markExecuted() {
	s.executed = true
	s.undone = false
}

func (s *state) markUndone() {
	s.undone = true
}

func mustStore(store graphstore.Store) {
	if store == nil {
		panic("command: nil graph store")
	}
}
