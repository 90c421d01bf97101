package command

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/lock"
)

// Macro runs a sequence of commands as one unit. If any sub-command fails,
// the ones that already succeeded are undone in reverse order.
type Macro struct {
	state
	description string
	commands    []Command
	done        []Command
}

// NewMacro groups cmds under a single history entry.
func NewMacro(description string, cmds ...Command) *Macro {
	for _, c := range cmds {
		if c == nil {
			panic("command: nil sub-command in macro")
		}
	}
	return &Macro{state: newState(), description: description, commands: cmds}
}

func (m *Macro) Name() string        { return "Macro" }
func (m *Macro) Description() string { return m.description }

// Commands returns the sub-commands in execution order.
func (m *Macro) Commands() []Command { return append([]Command(nil), m.commands...) }

// Entities is the union of the sub-commands' entities.
func (m *Macro) Entities() []uuid.UUID {
	var ids []uuid.UUID
	for _, c := range m.commands {
		ids = append(ids, c.Entities()...)
	}
	return lock.Canonical(ids...)
}

// CanUndo is true when every executed sub-command can be undone.
func (m *Macro) CanUndo() bool {
	if !m.Executed() {
		return false
	}
	for _, c := range m.done {
		if !c.CanUndo() {
			return false
		}
	}
	return true
}

func (m *Macro) Execute(ctx context.Context) error {
	if err := m.checkExecutable("Macro.Execute"); err != nil {
		return err
	}
	logger := ctxlog.FromContext(ctx)
	m.done = m.done[:0]

	for i, c := range m.commands {
		err := c.Execute(ctx)
		if err == nil {
			m.done = append(m.done, c)
			continue
		}
		logger.Debug("Macro step failed, undoing completed steps.", "macro", m.description, "step", i, "error", err)

		var undoErrs []error
		for j := len(m.done) - 1; j >= 0; j-- {
			if uerr := m.done[j].Undo(ctx); uerr != nil {
				logger.Error("Could not undo macro step.", "macro", m.description, "step", j, "error", uerr)
				undoErrs = append(undoErrs, fault.Wrap(fault.KindRollbackFailure, "Macro.Execute", m.done[j].ID(), uerr))
			}
		}
		m.done = m.done[:0]
		return errors.Join(append([]error{err}, undoErrs...)...)
	}

	m.markExecuted()
	return nil
}

// Undo reverses every sub-command in reverse order. It stops at the first
// failure and leaves the macro executed.
func (m *Macro) Undo(ctx context.Context) error {
	if err := m.checkUndoable("Macro.Undo"); err != nil {
		return err
	}
	for i := len(m.done) - 1; i >= 0; i-- {
		if err := m.done[i].Undo(ctx); err != nil {
			// Re-apply what was already reversed so the macro stays whole.
			for j := i + 1; j < len(m.done); j++ {
				if rerr := m.done[j].Execute(ctx); rerr != nil {
					ctxlog.FromContext(ctx).Error("Could not re-apply macro step.", "macro", m.description, "step", j, "error", rerr)
				}
			}
			return err
		}
	}
	m.markUndone()
	return nil
}
