package coordinator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/command"
	"github.com/specialistvlad/graphmut/internal/ctxlog"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/graphstore"
	"github.com/specialistvlad/graphmut/internal/lock"
	"github.com/specialistvlad/graphmut/internal/txn"
)

// Options configures a Coordinator.
type Options struct {
	// MaxHistory bounds the undo/redo history. Zero means
	// command.DefaultMaxHistory.
	MaxHistory int
	// TransactionHistory bounds the finished-transaction log. Zero means
	// txn.DefaultHistoryLimit.
	TransactionHistory int
	// Clock stamps entities and history entries. Defaults to time.Now.
	Clock func() time.Time
}

// Coordinator serialises concurrent mutations of one graph store.
type Coordinator struct {
	store    graphstore.Store
	locks    *lock.Manager
	commands *command.Manager
	txns     *txn.Manager
	clock    func() time.Time
}

// New wires a Coordinator around store.
func New(store graphstore.Store, opts Options) *Coordinator {
	if store == nil {
		panic("coordinator: nil graph store")
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	locks := lock.New()
	c := &Coordinator{
		store: store,
		locks: locks,
		commands: command.NewManager(command.Options{
			MaxHistory: opts.MaxHistory,
			Guard:      locks,
			Clock:      opts.Clock,
		}),
		clock: opts.Clock,
	}
	c.txns = txn.New(txn.Options{Compensator: c, HistoryLimit: opts.TransactionHistory})
	return c
}

// Locks returns the entity lock manager.
func (c *Coordinator) Locks() *lock.Manager { return c.locks }

// Commands returns the command history.
func (c *Coordinator) Commands() *command.Manager { return c.commands }

// Transactions returns the transaction manager.
func (c *Coordinator) Transactions() *txn.Manager { return c.txns }

// CreateNode creates a node.
func (c *Coordinator) CreateNode(ctx context.Context, in NodeInput) (entity.Node, error) {
	node, err := in.build(c.clock())
	if err != nil {
		return entity.Node{}, err
	}

	scope := c.locks.LockEntity(node.ID, lock.Write)
	defer scope.Release()

	cmd := command.NewAddNode(c.store, node)
	if err := c.commands.Execute(ctx, cmd); err != nil {
		return entity.Node{}, err
	}
	c.register(ctx, cmd, "create_node", node, txn.Compensation{Kind: txn.DeleteNode, EntityID: node.ID})

	ctxlog.FromContext(ctx).Info("Node created.", "entity_id", node.ID, "type", node.Type, "label", node.Label)
	return node, nil
}

// UpdateNode applies patch to an existing node.
func (c *Coordinator) UpdateNode(ctx context.Context, id uuid.UUID, patch NodePatch) (entity.Node, error) {
	scope := c.locks.LockEntity(id, lock.Write)
	defer scope.Release()

	current, ok := c.store.GetNode(ctx, id)
	if !ok {
		return entity.Node{}, fault.NotFound("UpdateNode", id, "node")
	}
	next, err := patch.apply(current, c.clock())
	if err != nil {
		return entity.Node{}, err
	}

	cmd := command.NewUpdateNode(c.store, next)
	if err := c.commands.Execute(ctx, cmd); err != nil {
		return entity.Node{}, err
	}
	c.register(ctx, cmd, "update_node", next, txn.Compensation{Kind: txn.RestoreNodeState, EntityID: id, Node: &current})

	ctxlog.FromContext(ctx).Info("Node updated.", "entity_id", id)
	return next, nil
}

// RemoveNode removes a node and every relationship touching it.
func (c *Coordinator) RemoveNode(ctx context.Context, id uuid.UUID) error {
	scope := c.lockNeighbourhood(ctx, id)
	defer scope.Release()

	cmd := command.NewRemoveNode(c.store, id)
	if err := c.commands.Execute(ctx, cmd); err != nil {
		return err
	}
	snap, _ := cmd.Snapshot()
	c.register(ctx, cmd, "remove_node", snap, txn.Compensation{
		Kind:          txn.RestoreNode,
		EntityID:      id,
		Node:          &snap.Node,
		Relationships: snap.Incident,
	})

	ctxlog.FromContext(ctx).Info("Node removed.", "entity_id", id, "relationships_removed", len(snap.Incident))
	return nil
}

// CreateRelationship creates a relationship between two existing nodes.
func (c *Coordinator) CreateRelationship(ctx context.Context, in RelationshipInput) (entity.Relationship, error) {
	rel, err := in.build(c.clock())
	if err != nil {
		return entity.Relationship{}, err
	}

	scope := c.locks.LockPair(rel.SourceID, rel.TargetID, lock.Write)
	defer scope.Release()

	if _, ok := c.store.GetNode(ctx, rel.SourceID); !ok {
		return entity.Relationship{}, fault.NotFound("CreateRelationship", rel.SourceID, "source node")
	}
	if _, ok := c.store.GetNode(ctx, rel.TargetID); !ok {
		return entity.Relationship{}, fault.NotFound("CreateRelationship", rel.TargetID, "target node")
	}

	cmd := command.NewAddRelationship(c.store, rel)
	if err := c.commands.Execute(ctx, cmd); err != nil {
		return entity.Relationship{}, err
	}
	c.register(ctx, cmd, "create_relationship", rel, txn.Compensation{Kind: txn.DeleteRelationship, EntityID: rel.ID})

	ctxlog.FromContext(ctx).Info("Relationship created.",
		"entity_id", rel.ID, "source", rel.SourceID, "target", rel.TargetID, "kind", rel.Kind)
	return rel, nil
}

// RemoveRelationship removes a relationship.
func (c *Coordinator) RemoveRelationship(ctx context.Context, id uuid.UUID) error {
	rel, ok := c.store.GetRelationship(ctx, id)
	if !ok {
		return fault.NotFound("RemoveRelationship", id, "relationship")
	}

	scope := c.locks.LockPair(rel.SourceID, rel.TargetID, lock.Write)
	defer scope.Release()

	cmd := command.NewRemoveRelationship(c.store, id)
	if err := c.commands.Execute(ctx, cmd); err != nil {
		return err
	}
	removed, _ := cmd.Removed()
	c.register(ctx, cmd, "remove_relationship", removed, txn.Compensation{
		Kind:          txn.RestoreRelationship,
		EntityID:      id,
		Relationships: []entity.Relationship{removed},
	})

	ctxlog.FromContext(ctx).Info("Relationship removed.", "entity_id", id)
	return nil
}

// Transaction runs fn atomically: if fn fails, every mutation it made
// through this Coordinator is compensated and dropped from the undo history.
func (c *Coordinator) Transaction(ctx context.Context, metadata map[string]any, fn func(ctx context.Context) error) error {
	var tx *txn.Transaction
	defer func() {
		if tx != nil && tx.Status() == txn.RolledBack {
			c.discard(ctx, tx)
		}
	}()
	return c.txns.Run(ctx, metadata, func(ctx context.Context) error {
		tx, _ = c.txns.Current(ctx)
		return fn(ctx)
	})
}

// discard removes the commands of a rolled-back transaction from the
// history so they can be neither undone nor redone.
func (c *Coordinator) discard(ctx context.Context, tx *txn.Transaction) {
	var ids []uuid.UUID
	for _, op := range tx.Operations() {
		if op.CommandID != uuid.Nil {
			ids = append(ids, op.CommandID)
		}
	}
	removed := c.commands.Discard(ctx, ids...)
	ctxlog.FromContext(ctx).Debug("Rolled-back commands dropped from history.", "transaction_id", tx.ID, "removed", removed)
}

// Undo reverses the most recent mutation in the history.
func (c *Coordinator) Undo(ctx context.Context) bool { return c.commands.Undo(ctx) }

// Redo re-applies the most recently undone mutation.
func (c *Coordinator) Redo(ctx context.Context) bool { return c.commands.Redo(ctx) }

// History returns the command history, oldest first.
func (c *Coordinator) History() []command.Metadata { return c.commands.History() }

// Statistics returns the command history counters.
func (c *Coordinator) Statistics() command.Stats { return c.commands.Statistics() }

// LockStats returns the entity lock counters.
func (c *Coordinator) LockStats() lock.Stats { return c.locks.Stats() }

// TransactionStats returns the transaction counters.
func (c *Coordinator) TransactionStats() txn.Stats { return c.txns.Stats() }

// RecentTransactions returns up to n finished transactions, newest last.
func (c *Coordinator) RecentTransactions(n int) []txn.Summary { return c.txns.Recent(n) }

// Overview returns the graph size and every component's counters.
func (c *Coordinator) Overview(ctx context.Context) Overview {
	nodes, rels := c.store.Counts(ctx)
	return Overview{
		Nodes:         nodes,
		Relationships: rels,
		Commands:      c.commands.Statistics(),
		Locks:         c.locks.Stats(),
		Transactions:  c.txns.Stats(),
	}
}

// GetNode returns a node or a fault.ErrNotFound error.
func (c *Coordinator) GetNode(ctx context.Context, id uuid.UUID) (entity.Node, error) {
	n, ok := c.store.GetNode(ctx, id)
	if !ok {
		return entity.Node{}, fault.NotFound("GetNode", id, "node")
	}
	return n, nil
}

// GetRelationship returns a relationship or a fault.ErrNotFound error.
func (c *Coordinator) GetRelationship(ctx context.Context, id uuid.UUID) (entity.Relationship, error) {
	r, ok := c.store.GetRelationship(ctx, id)
	if !ok {
		return entity.Relationship{}, fault.NotFound("GetRelationship", id, "relationship")
	}
	return r, nil
}

// ListNodes returns every node, or only those of type typ when it is set.
func (c *Coordinator) ListNodes(ctx context.Context, typ entity.NodeType) []entity.Node {
	all := c.store.AllNodes(ctx)
	if typ == "" {
		return all
	}
	out := all[:0]
	for _, n := range all {
		if n.Type == typ {
			out = append(out, n)
		}
	}
	return out
}

// ListRelationships returns every relationship, or only those touching
// nodeID when it is set.
func (c *Coordinator) ListRelationships(ctx context.Context, nodeID uuid.UUID) []entity.Relationship {
	if nodeID == uuid.Nil {
		return c.store.AllRelationships(ctx)
	}
	return c.store.ListIncidentRelationships(ctx, nodeID)
}

// register records a compensation when ctx carries a transaction.
func (c *Coordinator) register(ctx context.Context, cmd command.Command, opType string, data any, comp txn.Compensation) {
	if !c.txns.IsInTransaction(ctx) {
		return
	}
	op := txn.Operation{Type: opType, Data: data, CommandID: cmd.ID(), Compensation: comp}
	if _, err := c.txns.AddOperation(ctx, op); err != nil {
		ctxlog.FromContext(ctx).Error("Could not register rollback operation.", "operation", opType, "entity_id", comp.EntityID, "error", err)
	}
}

// lockNeighbourhood write-locks id and every node adjacent to it. The
// incident set is re-read under the locks; if a neighbour appeared in
// between, the locks are dropped and taken again.
func (c *Coordinator) lockNeighbourhood(ctx context.Context, id uuid.UUID) *lock.Scoped {
	for {
		want := neighbourhood(id, c.store.ListIncidentRelationships(ctx, id))
		scope := c.locks.LockEntities(lock.Write, want...)

		locked := make(map[uuid.UUID]struct{}, len(want))
		for _, lid := range scope.IDs() {
			locked[lid] = struct{}{}
		}
		covered := true
		for _, nid := range neighbourhood(id, c.store.ListIncidentRelationships(ctx, id)) {
			if _, ok := locked[nid]; !ok {
				covered = false
				break
			}
		}
		if covered {
			return scope
		}
		scope.Release()
		ctxlog.FromContext(ctx).Debug("Neighbourhood changed while locking, retrying.", "entity_id", id)
	}
}

func neighbourhood(id uuid.UUID, rels []entity.Relationship) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(rels)+1)
	ids = append(ids, id)
	for _, r := range rels {
		ids = append(ids, r.Other(id))
	}
	return ids
}
