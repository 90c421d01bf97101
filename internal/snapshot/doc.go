// Package snapshot persists a point-in-time copy of the graph in a Badger
// database so that a restarted service can pick up where it stopped.
//
// A snapshot is the full set of nodes and relationships. It is not a log:
// saving replaces the previous snapshot, and neither the command history
// nor the transaction log is stored.
package snapshot
