package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/graphstore"
)

// AddNode inserts a node.
type AddNode struct {
	state
	store    graphstore.Store
	node     entity.Node
	inserted bool
}

// NewAddNode returns a command that inserts a clone of node.
func NewAddNode(store graphstore.Store, node entity.Node) *AddNode {
	mustStore(store)
	return &AddNode{state: newState(), store: store, node: node.Clone()}
}

func (c *AddNode) Name() string { return "AddNode" }

func (c *AddNode) Description() string {
	return fmt.Sprintf("Add %s node '%s'", c.node.Type, c.node.Label)
}

// Node returns the node this command inserts.
func (c *AddNode) Node() entity.Node { return c.node.Clone() }

func (c *AddNode) Entities() []uuid.UUID { return []uuid.UUID{c.node.ID} }

func (c *AddNode) CanUndo() bool { return c.Executed() }

func (c *AddNode) Execute(ctx context.Context) error {
	if err := c.checkExecutable("AddNode.Execute"); err != nil {
		return err
	}
	if err := c.store.InsertNode(ctx, c.node); err != nil {
		return err
	}
	c.inserted = true
	c.markExecuted()
	return nil
}

// Undo removes the node if this command inserted it and it is still there.
// Otherwise it only records the transition.
func (c *AddNode) Undo(ctx context.Context) error {
	if err := c.checkUndoable("AddNode.Undo"); err != nil {
		return err
	}
	if c.inserted {
		if _, ok := c.store.GetNode(ctx, c.node.ID); ok {
			if err := c.store.DeleteNode(ctx, c.node.ID); err != nil {
				return err
			}
		} else {
			ctxlog.FromContext(ctx).Debug("Node already gone, nothing to undo.", "entity_id", c.node.ID)
		}
	}
	c.inserted = false
	c.markUndone()
	return nil
}

// NodeSnapshot is the state removed by RemoveNode: the node and every
// relationship incident to it at the moment of removal.
type NodeSnapshot struct {
	Node     entity.Node
	Incident []entity.Relationship
}

// RemoveNode deletes a node together with its incident relationships.
type RemoveNode struct {
	state
	store    graphstore.Store
	nodeID   uuid.UUID
	snapshot *NodeSnapshot
}

// NewRemoveNode returns a command that removes the node with the given id.
// The snapshot is captured when the command executes.
func NewRemoveNode(store graphstore.Store, id uuid.UUID) *RemoveNode {
	mustStore(store)
	return &RemoveNode{state: newState(), store: store, nodeID: id}
}

func (c *RemoveNode) Name() string { return "RemoveNode" }

func (c *RemoveNode) Description() string {
	if c.snapshot != nil {
		return fmt.Sprintf("Remove node '%s'", c.snapshot.Node.Label)
	}
	return fmt.Sprintf("Remove node %s", c.nodeID)
}

// Snapshot returns the captured state, or false before the first execute.
func (c *RemoveNode) Snapshot() (NodeSnapshot, bool) {
	if c.snapshot == nil {
		return NodeSnapshot{}, false
	}
	return *c.snapshot, true
}

// Entities is the node plus every neighbour known from the snapshot.
func (c *RemoveNode) Entities() []uuid.UUID {
	ids := []uuid.UUID{c.nodeID}
	if c.snapshot != nil {
		for _, r := range c.snapshot.Incident {
			ids = append(ids, r.Other(c.nodeID))
		}
	}
	return ids
}

func (c *RemoveNode) CanUndo() bool { return c.Executed() && c.snapshot != nil }

func (c *RemoveNode) Execute(ctx context.Context) error {
	if err := c.checkExecutable("RemoveNode.Execute"); err != nil {
		return err
	}
	node, ok := c.store.GetNode(ctx, c.nodeID)
	if !ok {
		return fault.NotFound("RemoveNode.Execute", c.nodeID, "node")
	}
	snap := &NodeSnapshot{Node: node, Incident: c.store.ListIncidentRelationships(ctx, c.nodeID)}

	for i, r := range snap.Incident {
		if err := c.store.DeleteRelationship(ctx, r.ID); err != nil {
			restoreRelationships(ctx, c.store, snap.Incident[:i])
			return err
		}
	}
	if err := c.store.DeleteNode(ctx, c.nodeID); err != nil {
		restoreRelationships(ctx, c.store, snap.Incident)
		return err
	}

	c.snapshot = snap
	c.markExecuted()
	return nil
}

// Undo restores the node and its relationships. A partial restore is
// reverted before the error is returned.
func (c *RemoveNode) Undo(ctx context.Context) error {
	if err := c.checkUndoable("RemoveNode.Undo"); err != nil {
		return err
	}
	if c.snapshot == nil {
		return fault.IllegalState("RemoveNode.Undo", c.nodeID, "no snapshot captured")
	}
	if err := c.store.InsertNode(ctx, c.snapshot.Node); err != nil {
		return err
	}
	for i, r := range c.snapshot.Incident {
		if err := c.store.InsertRelationship(ctx, r); err != nil {
			revert := deleteRelationships(ctx, c.store, c.snapshot.Incident[:i])
			revert = errors.Join(revert, c.store.DeleteNode(ctx, c.nodeID))
			if revert != nil {
				ctxlog.FromContext(ctx).Error("Could not revert partial node restore.", "entity_id", c.nodeID, "error", revert)
			}
			return err
		}
	}
	c.markUndone()
	return nil
}

// UpdateNode replaces a node with a new version and remembers the previous
// one.
type UpdateNode struct {
	state
	store    graphstore.Store
	next     entity.Node
	previous *entity.Node
}

// NewUpdateNode returns a command that replaces the stored node with next.
func NewUpdateNode(store graphstore.Store, next entity.Node) *UpdateNode {
	mustStore(store)
	return &UpdateNode{state: newState(), store: store, next: next.Clone()}
}

func (c *UpdateNode) Name() string { return "UpdateNode" }

func (c *UpdateNode) Description() string {
	return fmt.Sprintf("Update node '%s'", c.next.Label)
}

// Previous returns the node as it was before the update.
func (c *UpdateNode) Previous() (entity.Node, bool) {
	if c.previous == nil {
		return entity.Node{}, false
	}
	return c.previous.Clone(), true
}

func (c *UpdateNode) Entities() []uuid.UUID { return []uuid.UUID{c.next.ID} }

func (c *UpdateNode) CanUndo() bool { return c.Executed() && c.previous != nil }

func (c *UpdateNode) Execute(ctx context.Context) error {
	if err := c.checkExecutable("UpdateNode.Execute"); err != nil {
		return err
	}
	prev, ok := c.store.GetNode(ctx, c.next.ID)
	if !ok {
		return fault.NotFound("UpdateNode.Execute", c.next.ID, "node")
	}
	if err := c.store.UpdateNode(ctx, c.next); err != nil {
		return err
	}
	c.previous = &prev
	c.markExecuted()
	return nil
}

func (c *UpdateNode) Undo(ctx context.Context) error {
	if err := c.checkUndoable("UpdateNode.Undo"); err != nil {
		return err
	}
	if err := c.store.UpdateNode(ctx, *c.previous); err != nil {
		return err
	}
	c.markUndone()
	return nil
}

func restoreRelationships(ctx context.Context, store graphstore.Store, rels []entity.Relationship) {
	for _, r := range rels {
		if err := store.InsertRelationship(ctx, r); err != nil {
			ctxlog.FromContext(ctx).Error("Could not restore relationship.", "entity_id", r.ID, "error", err)
		}
	}
}

func deleteRelationships(ctx context.Context, store graphstore.Store, rels []entity.Relationship) error {
	var errs []error
	for i := len(rels) - 1; i >= 0; i-- {
		if err := store.DeleteRelationship(ctx, rels[i].ID); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
