// Package coordinator is the single entry point for mutating the graph.
//
// A Coordinator owns the entity lock manager, the command history and the
// transaction manager for one graph store and ties them together:
//
//  1. it takes the entity locks an operation needs, always in canonical
//     order, and holds them until the operation returns;
//  2. it verifies preconditions under those locks and builds a command;
//  3. it executes the command through the command history;
//  4. inside a transaction it registers the compensation for the mutation.
//
// Creating a relationship write-locks both endpoints, so concurrent creators
// on the same pair serialize regardless of argument order. A self-loop takes
// a single lock. Removing a node locks the node and every neighbour.
//
// The Coordinator is also the transaction Compensator: rollbacks apply their
// compensations directly to the store under the same locking rules. The
// commands of a rolled-back transaction are then dropped from the history,
// so they can be neither undone nor redone.
package coordinator
