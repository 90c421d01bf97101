package command

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/graphstore"
)

// AddRelationship inserts a relationship between two existing nodes.
type AddRelationship struct {
	state
	store    graphstore.Store
	rel      entity.Relationship
	inserted bool
}

// NewAddRelationship returns a command that inserts a clone of rel.
func NewAddRelationship(store graphstore.Store, rel entity.Relationship) *AddRelationship {
	mustStore(store)
	return &AddRelationship{state: newState(), store: store, rel: rel.Clone()}
}

func (c *AddRelationship) Name() string { return "AddRelationship" }

func (c *AddRelationship) Description() string {
	return fmt.Sprintf("Add %s relationship %s -> %s", c.rel.Kind, c.rel.SourceID, c.rel.TargetID)
}

// Relationship returns the relationship this command inserts.
func (c *AddRelationship) Relationship() entity.Relationship { return c.rel.Clone() }

func (c *AddRelationship) Entities() []uuid.UUID {
	return []uuid.UUID{c.rel.SourceID, c.rel.TargetID}
}

func (c *AddRelationship) CanUndo() bool { return c.Executed() }

func (c *AddRelationship) Execute(ctx context.Context) error {
	if err := c.checkExecutable("AddRelationship.Execute"); err != nil {
		return err
	}
	if err := c.store.InsertRelationship(ctx, c.rel); err != nil {
		return err
	}
	c.inserted = true
	c.markExecuted()
	return nil
}

func (c *AddRelationship) Undo(ctx context.Context) error {
	if err := c.checkUndoable("AddRelationship.Undo"); err != nil {
		return err
	}
	if c.inserted {
		if _, ok := c.store.GetRelationship(ctx, c.rel.ID); ok {
			if err := c.store.DeleteRelationship(ctx, c.rel.ID); err != nil {
				return err
			}
		} else {
			ctxlog.FromContext(ctx).Debug("Relationship already gone, nothing to undo.", "entity_id", c.rel.ID)
		}
	}
	c.inserted = false
	c.markUndone()
	return nil
}

// RemoveRelationship deletes a relationship and keeps a full copy of it for
// undo.
type RemoveRelationship struct {
	state
	store   graphstore.Store
	relID   uuid.UUID
	removed *entity.Relationship
}

// NewRemoveRelationship returns a command that removes the relationship
// with the given id.
func NewRemoveRelationship(store graphstore.Store, id uuid.UUID) *RemoveRelationship {
	mustStore(store)
	return &RemoveRelationship{state: newState(), store: store, relID: id}
}

func (c *RemoveRelationship) Name() string { return "RemoveRelationship" }

func (c *RemoveRelationship) Description() string {
	if c.removed != nil {
		return fmt.Sprintf("Remove %s relationship %s -> %s", c.removed.Kind, c.removed.SourceID, c.removed.TargetID)
	}
	return fmt.Sprintf("Remove relationship %s", c.relID)
}

// Removed returns the deleted relationship, or false before execute.
func (c *RemoveRelationship) Removed() (entity.Relationship, bool) {
	if c.removed == nil {
		return entity.Relationship{}, false
	}
	return c.removed.Clone(), true
}

// Entities returns the endpoints once they are known.
func (c *RemoveRelationship) Entities() []uuid.UUID {
	if c.removed == nil {
		return nil
	}
	return []uuid.UUID{c.removed.SourceID, c.removed.TargetID}
}

func (c *RemoveRelationship) CanUndo() bool { return c.Executed() && c.removed != nil }

func (c *RemoveRelationship) Execute(ctx context.Context) error {
	if err := c.checkExecutable("RemoveRelationship.Execute"); err != nil {
		return err
	}
	rel, ok := c.store.GetRelationship(ctx, c.relID)
	if !ok {
		return fault.NotFound("RemoveRelationship.Execute", c.relID, "relationship")
	}
	if err := c.store.DeleteRelationship(ctx, c.relID); err != nil {
		return err
	}
	c.removed = &rel
	c.markExecuted()
	return nil
}

func (c *RemoveRelationship) Undo(ctx context.Context) error {
	if err := c.checkUndoable("RemoveRelationship.Undo"); err != nil {
		return err
	}
	if err := c.store.InsertRelationship(ctx, *c.removed); err != nil {
		return err
	}
	c.markUndone()
	return nil
}
