// Package inmemorygraph provides a simple, thread-safe, in-memory
// implementation of the graphstore.Store interface.
package inmemorygraph

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/graphstore"
)

// Store implements the graphstore.Store interface using maps and a mutex
// for thread-safe concurrent access.
type Store struct {
	mu            sync.RWMutex
	nodes         map[uuid.UUID]entity.Node
	relationships map[uuid.UUID]entity.Relationship
	// incident indexes relationship ids by each of their endpoints.
	incident map[uuid.UUID]map[uuid.UUID]struct{}
}

// New creates a new, empty in-memory graph store.
func New() *Store {
	return &Store{
		nodes:         make(map[uuid.UUID]entity.Node),
		relationships: make(map[uuid.UUID]entity.Relationship),
		incident:      make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

var _ graphstore.Store = (*Store)(nil)

// InsertNode adds a new node to the store.
func (s *Store) InsertNode(ctx context.Context, n entity.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; exists {
		return &fault.Error{Kind: fault.KindAlreadyExists, Op: "graph.InsertNode", ID: n.ID, Msg: "node already exists"}
	}
	s.nodes[n.ID] = n.Clone()
	ctxlog.FromContext(ctx).Debug("Node inserted.", "entity_id", n.ID)
	return nil
}

// UpdateNode replaces an existing node.
func (s *Store) UpdateNode(ctx context.Context, n entity.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; !exists {
		return fault.NotFound("graph.UpdateNode", n.ID, "node")
	}
	s.nodes[n.ID] = n.Clone()
	ctxlog.FromContext(ctx).Debug("Node updated.", "entity_id", n.ID)
	return nil
}

// DeleteNode removes a node that has no remaining relationships.
func (s *Store) DeleteNode(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[id]; !exists {
		return fault.NotFound("graph.DeleteNode", id, "node")
	}
	if len(s.incident[id]) > 0 {
		return fault.IllegalState("graph.DeleteNode", id, "node still has %d relationships", len(s.incident[id]))
	}
	delete(s.nodes, id)
	delete(s.incident, id)
	ctxlog.FromContext(ctx).Debug("Node deleted.", "entity_id", id)
	return nil
}

// GetNode retrieves a single node by id.
func (s *Store) GetNode(ctx context.Context, id uuid.UUID) (entity.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return entity.Node{}, false
	}
	return n.Clone(), true
}

// InsertRelationship adds a relationship between two existing nodes.
func (s *Store) InsertRelationship(ctx context.Context, r entity.Relationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.relationships[r.ID]; exists {
		return &fault.Error{Kind: fault.KindAlreadyExists, Op: "graph.InsertRelationship", ID: r.ID, Msg: "relationship already exists"}
	}
	if _, exists := s.nodes[r.SourceID]; !exists {
		return fault.NotFound("graph.InsertRelationship", r.SourceID, "source node")
	}
	if _, exists := s.nodes[r.TargetID]; !exists {
		return fault.NotFound("graph.InsertRelationship", r.TargetID, "target node")
	}

	s.relationships[r.ID] = r.Clone()
	s.index(r.SourceID, r.ID)
	s.index(r.TargetID, r.ID)
	ctxlog.FromContext(ctx).Debug("Relationship inserted.", "entity_id", r.ID, "source", r.SourceID, "target", r.TargetID)
	return nil
}

// DeleteRelationship removes a relationship by id.
func (s *Store) DeleteRelationship(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, exists := s.relationships[id]
	if !exists {
		return fault.NotFound("graph.DeleteRelationship", id, "relationship")
	}
	delete(s.relationships, id)
	s.unindex(r.SourceID, id)
	s.unindex(r.TargetID, id)
	ctxlog.FromContext(ctx).Debug("Relationship deleted.", "entity_id", id)
	return nil
}

// GetRelationship retrieves a single relationship by id.
func (s *Store) GetRelationship(ctx context.Context, id uuid.UUID) (entity.Relationship, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.relationships[id]
	if !ok {
		return entity.Relationship{}, false
	}
	return r.Clone(), true
}

// ListIncidentRelationships returns the relationships touching nodeID.
func (s *Store) ListIncidentRelationships(ctx context.Context, nodeID uuid.UUID) []entity.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.incident[nodeID]
	rels := make([]entity.Relationship, 0, len(ids))
	for id := range ids {
		rels = append(rels, s.relationships[id].Clone())
	}
	sortRelationships(rels)
	return rels
}

// AllNodes returns a snapshot of all nodes.
func (s *Store) AllNodes(ctx context.Context) []entity.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	nodes := make([]entity.Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n.Clone())
	}
	slices.SortFunc(nodes, func(a, b entity.Node) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return nodes
}

// AllRelationships returns a snapshot of all relationships.
func (s *Store) AllRelationships(ctx context.Context) []entity.Relationship {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rels := make([]entity.Relationship, 0, len(s.relationships))
	for _, r := range s.relationships {
		rels = append(rels, r.Clone())
	}
	sortRelationships(rels)
	return rels
}

// Counts returns the number of stored nodes and relationships.
func (s *Store) Counts(ctx context.Context) (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes), len(s.relationships)
}

// index and unindex must be called with mu held for writing.
func (s *Store) index(nodeID, relID uuid.UUID) {
	if s.incident[nodeID] == nil {
		s.incident[nodeID] = make(map[uuid.UUID]struct{})
	}
	s.incident[nodeID][relID] = struct{}{}
}

func (s *Store) unindex(nodeID, relID uuid.UUID) {
	set := s.incident[nodeID]
	delete(set, relID)
	if len(set) == 0 {
		delete(s.incident, nodeID)
	}
}

func sortRelationships(rels []entity.Relationship) {
	slices.SortFunc(rels, func(a, b entity.Relationship) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
