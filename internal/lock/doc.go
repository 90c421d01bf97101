// Package lock provides per-entity reader/writer locks for the graph.
//
// # Why Entity Locks Exist
//
// The graph store makes each individual call atomic, but graph mutations are
// check-then-act sequences: "both endpoints exist, so insert the
// relationship". Another goroutine must not delete an endpoint in between.
// The Manager gives every entity id its own RW lock so that operations on
// disjoint entities proceed in parallel while operations on shared entities
// serialize.
//
// # Ordering
//
// A goroutine that needs several locks must take them through LockEntities
// (or LockPair). Ids are sorted by their raw bytes and deduplicated before
// acquisition, so every caller acquires in the same global order and two
// opposite-order requests for (A, B) and (B, A) cannot deadlock. A self-loop
// collapses to a single lock.
//
// # Lifetime
//
// Lock entries are created on first use and reference counted by holders
// and waiters. An entry is dropped as soon as nobody holds or waits on it,
// so the table only grows with live contention, never with graph size.
//
// There are no timeouts and no deadlock detection. Acquisition blocks the
// calling goroutine.
package lock
