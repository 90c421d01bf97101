package coordinator

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
)

// Op is the kind of a batch mutation.
type Op string

const (
	OpCreateNode         Op = "create_node"
	OpUpdateNode         Op = "update_node"
	OpRemoveNode         Op = "remove_node"
	OpCreateRelationship Op = "create_relationship"
	OpRemoveRelationship Op = "remove_relationship"
)

// Mutation is one step of a batch. Entities are addressed either by uuid or
// by the Ref of an earlier create step in the same batch.
type Mutation struct {
	Op Op `json:"op"`
	// Ref names the entity created by this step.
	Ref string `json:"ref,omitempty"`
	// ID addresses the target of update and remove steps.
	ID string `json:"id,omitempty"`

	Node  NodeInput `json:"node,omitzero"`
	Patch NodePatch `json:"patch,omitzero"`

	From   string         `json:"from,omitempty"`
	To     string         `json:"to,omitempty"`
	Kind   string         `json:"kind,omitempty"`
	Weight *float64       `json:"weight,omitempty"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// BatchResult lists what a committed batch created.
type BatchResult struct {
	Refs          map[string]uuid.UUID  `json:"refs"`
	Nodes         []entity.Node         `json:"nodes"`
	Relationships []entity.Relationship `json:"relationships"`
}

// ApplyBatch applies every mutation in a single transaction. Either all of
// them take effect or, on the first failure, none do.
func (c *Coordinator) ApplyBatch(ctx context.Context, metadata map[string]any, muts []Mutation) (BatchResult, error) {
	res := BatchResult{Refs: make(map[string]uuid.UUID)}

	err := c.Transaction(ctx, metadata, func(ctx context.Context) error {
		for i, m := range muts {
			if err := c.applyOne(ctx, m, &res); err != nil {
				return fmt.Errorf("mutation %d (%s): %w", i, m.Op, err)
			}
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return res, nil
}

func (c *Coordinator) applyOne(ctx context.Context, m Mutation, res *BatchResult) error {
	if m.Ref != "" {
		if m.Op != OpCreateNode && m.Op != OpCreateRelationship {
			return fault.New(fault.KindInvalid, "ApplyBatch", uuid.Nil, "ref %q is only allowed on create steps", m.Ref)
		}
		if _, dup := res.Refs[m.Ref]; dup {
			return fault.New(fault.KindInvalid, "ApplyBatch", uuid.Nil, "duplicate ref %q", m.Ref)
		}
	}

	switch m.Op {
	case OpCreateNode:
		n, err := c.CreateNode(ctx, m.Node)
		if err != nil {
			return err
		}
		res.Nodes = append(res.Nodes, n)
		c.remember(res, m.Ref, n.ID)
		return nil

	case OpUpdateNode:
		id, err := resolve(m.ID, res.Refs)
		if err != nil {
			return err
		}
		_, err = c.UpdateNode(ctx, id, m.Patch)
		return err

	case OpRemoveNode:
		id, err := resolve(m.ID, res.Refs)
		if err != nil {
			return err
		}
		return c.RemoveNode(ctx, id)

	case OpCreateRelationship:
		from, err := resolve(m.From, res.Refs)
		if err != nil {
			return err
		}
		to, err := resolve(m.To, res.Refs)
		if err != nil {
			return err
		}
		r, err := c.CreateRelationship(ctx, RelationshipInput{
			SourceID: from,
			TargetID: to,
			Kind:     m.Kind,
			Weight:   m.Weight,
			Meta:     m.Meta,
		})
		if err != nil {
			return err
		}
		res.Relationships = append(res.Relationships, r)
		c.remember(res, m.Ref, r.ID)
		return nil

	case OpRemoveRelationship:
		id, err := resolve(m.ID, res.Refs)
		if err != nil {
			return err
		}
		return c.RemoveRelationship(ctx, id)

	default:
		return fault.New(fault.KindInvalid, "ApplyBatch", uuid.Nil, "unknown op %q", m.Op)
	}
}

func (c *Coordinator) remember(res *BatchResult, ref string, id uuid.UUID) {
	if ref != "" {
		res.Refs[ref] = id
	}
}

// resolve turns a ref or a uuid string into an id.
func resolve(s string, refs map[string]uuid.UUID) (uuid.UUID, error) {
	if id, ok := refs[s]; ok {
		return id, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fault.New(fault.KindInvalid, "ApplyBatch", uuid.Nil, "%q is neither a known ref nor a uuid", s)
	}
	return id, nil
}
