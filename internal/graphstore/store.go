// Package graphstore defines the interface for storing and retrieving the
// nodes and relationships of the shared property graph.
//
// # Why Graph Store Exists
//
// The graph store is the single shared mutable resource of the system. It is
// deliberately dumb: it keeps entities, enforces referential integrity on
// every write, and answers lookups. It knows nothing about commands, undo,
// transactions or entity locks. Those concerns live one layer up, in the
// command, txn, lock and coordinator packages, which are the only callers
// allowed to write to a store.
//
// # Concurrency
//
// Implementations MUST be safe for concurrent use; every method may be
// called from many goroutines at once. Internal synchronisation only makes
// each single call atomic. Check-then-act sequences spanning several calls
// (verify both endpoints exist, then insert a relationship) are made atomic
// by the entity locks held by the caller, not by the store.
//
// # Values, not pointers
//
// All methods take and return entity values. Implementations must store and
// return clones so that callers never alias the canonical copy.
package graphstore

import (
	"context"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/entity"
)

// Store is the interface of the shared property graph.
//
// Errors returned by writes are classified with the fault package:
//   - fault.ErrAlreadyExists when inserting an id that is present
//   - fault.ErrNotFound when the target (or a relationship endpoint) is absent
//   - fault.ErrIllegalState when deleting a node that still has relationships
type Store interface {
	// InsertNode adds a node. The id must not be present yet.
	InsertNode(ctx context.Context, n entity.Node) error

	// UpdateNode replaces an existing node, keyed by n.ID.
	UpdateNode(ctx context.Context, n entity.Node) error

	// DeleteNode removes a node. The node must have no incident relationships
	// left; callers remove those first so nothing dangles.
	DeleteNode(ctx context.Context, id uuid.UUID) error

	// GetNode returns a node and true, or the zero value and false if absent.
	// Absence is never an error.
	GetNode(ctx context.Context, id uuid.UUID) (entity.Node, bool)

	// InsertRelationship adds a relationship. Both endpoints must exist.
	InsertRelationship(ctx context.Context, r entity.Relationship) error

	// DeleteRelationship removes a relationship by id.
	DeleteRelationship(ctx context.Context, id uuid.UUID) error

	// GetRelationship returns a relationship and true, or false if absent.
	GetRelationship(ctx context.Context, id uuid.UUID) (entity.Relationship, bool)

	// ListIncidentRelationships returns every relationship that starts or
	// ends at nodeID. A self-loop is listed once. Unknown ids yield an empty
	// slice.
	ListIncidentRelationships(ctx context.Context, nodeID uuid.UUID) []entity.Relationship

	// AllNodes returns a snapshot of every node, ordered by creation time.
	AllNodes(ctx context.Context) []entity.Node

	// AllRelationships returns a snapshot of every relationship, ordered by
	// creation time.
	AllRelationships(ctx context.Context) []entity.Relationship

	// Counts returns the number of nodes and relationships.
	Counts(ctx context.Context) (nodes, relationships int)
}
