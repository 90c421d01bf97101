package coordinator

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/lock"
	"github.com/specialistvlad/graphmut/internal/txn"
)

var _ txn.Compensator = (*Coordinator)(nil)

// Compensate applies a transaction compensation directly to the store under
// write locks on the affected entities. Compensating an entity that is
// already in the target state is not an error.
func (c *Coordinator) Compensate(ctx context.Context, comp txn.Compensation) error {
	logger := ctxlog.FromContext(ctx).With("compensation", comp.Kind.String(), "entity_id", comp.EntityID)
	logger.Debug("Applying compensation.")

	switch comp.Kind {
	case txn.DeleteNode:
		return c.compensateDeleteNode(ctx, comp.EntityID)

	case txn.DeleteRelationship:
		rel, ok := c.store.GetRelationship(ctx, comp.EntityID)
		if !ok {
			logger.Debug("Relationship already gone.")
			return nil
		}
		scope := c.locks.LockPair(rel.SourceID, rel.TargetID, lock.Write)
		defer scope.Release()
		if err := c.store.DeleteRelationship(ctx, rel.ID); err != nil && !errors.Is(err, fault.ErrNotFound) {
			return err
		}
		return nil

	case txn.RestoreNode:
		if comp.Node == nil {
			return fault.New(fault.KindInvalid, "Compensate", comp.EntityID, "restore_node without node state")
		}
		ids := []uuid.UUID{comp.EntityID}
		for _, r := range comp.Relationships {
			ids = append(ids, r.SourceID, r.TargetID)
		}
		scope := c.locks.LockEntities(lock.Write, ids...)
		defer scope.Release()

		if err := c.store.InsertNode(ctx, *comp.Node); err != nil && !errors.Is(err, fault.ErrAlreadyExists) {
			return err
		}
		var errs []error
		for _, r := range comp.Relationships {
			if err := c.store.InsertRelationship(ctx, r); err != nil && !errors.Is(err, fault.ErrAlreadyExists) {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)

	case txn.RestoreRelationship:
		var errs []error
		for _, r := range comp.Relationships {
			scope := c.locks.LockPair(r.SourceID, r.TargetID, lock.Write)
			if err := c.store.InsertRelationship(ctx, r); err != nil && !errors.Is(err, fault.ErrAlreadyExists) {
				errs = append(errs, err)
			}
			scope.Release()
		}
		return errors.Join(errs...)

	case txn.RestoreNodeState:
		if comp.Node == nil {
			return fault.New(fault.KindInvalid, "Compensate", comp.EntityID, "restore_node_state without node state")
		}
		scope := c.locks.LockEntity(comp.EntityID, lock.Write)
		defer scope.Release()
		return c.store.UpdateNode(ctx, *comp.Node)

	default:
		return fault.New(fault.KindInvalid, "Compensate", comp.EntityID, "unknown compensation kind %d", int(comp.Kind))
	}
}

// compensateDeleteNode removes a node created inside a failed transaction,
// together with any relationship still attached to it.
func (c *Coordinator) compensateDeleteNode(ctx context.Context, id uuid.UUID) error {
	scope := c.lockNeighbourhood(ctx, id)
	defer scope.Release()

	if _, ok := c.store.GetNode(ctx, id); !ok {
		return nil
	}
	for _, r := range c.store.ListIncidentRelationships(ctx, id) {
		if err := c.store.DeleteRelationship(ctx, r.ID); err != nil && !errors.Is(err, fault.ErrNotFound) {
			return err
		}
	}
	if err := c.store.DeleteNode(ctx, id); err != nil && !errors.Is(err, fault.ErrNotFound) {
		return err
	}
	return nil
}
