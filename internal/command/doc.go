// Package command implements reversible graph mutations and the bounded
// undo/redo history that records them.
//
// Each mutation is a Command value that knows how to apply itself to a
// graphstore.Store and how to reverse that effect. Commands are
// single-shot: a command that has been executed must be undone before it can
// be executed again, and a second Execute is an fault.ErrIllegalState error.
//
// The Manager keeps a linear history with a cursor. Executing a new command
// discards everything after the cursor, so redo is only possible directly
// after undo.
//
// Commands do not lock anything themselves. The caller holds the entity
// locks named by Entities() while a command runs; the Manager does the same
// through its Guard when it replays or reverses history.
package command
