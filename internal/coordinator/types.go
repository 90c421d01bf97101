package coordinator

import (
	"maps"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/graphmut/internal/command"
	"github.com/specialistvlad/graphmut/internal/entity"
	"github.com/specialistvlad/graphmut/internal/fault"
	"github.com/specialistvlad/graphmut/internal/lock"
	"github.com/specialistvlad/graphmut/internal/txn"
)

// NodeInput describes a node to create. A zero ID is replaced by a fresh
// one; an empty Type defaults to generic.
type NodeInput struct {
	ID          uuid.UUID       `json:"id,omitempty"`
	Type        entity.NodeType `json:"type"`
	Label       string          `json:"label"`
	Description string          `json:"description,omitempty"`
	Properties  map[string]any  `json:"properties,omitempty"`
}

func (in NodeInput) build(now time.Time) (entity.Node, error) {
	if in.Type == "" {
		in.Type = entity.NodeGeneric
	}
	if !in.Type.Valid() {
		return entity.Node{}, fault.New(fault.KindInvalid, "CreateNode", in.ID, "unknown node type %q", in.Type)
	}
	if strings.TrimSpace(in.Label) == "" {
		return entity.Node{}, fault.New(fault.KindInvalid, "CreateNode", in.ID, "label is required")
	}
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return entity.Node{
		ID:          id,
		Type:        in.Type,
		Label:       in.Label,
		Description: in.Description,
		Properties:  maps.Clone(in.Properties),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// NodePatch is a partial node update. Nil fields are left unchanged.
// Properties are merged key by key; a nil value deletes the key.
type NodePatch struct {
	Type        *entity.NodeType `json:"type,omitempty"`
	Label       *string          `json:"label,omitempty"`
	Description *string          `json:"description,omitempty"`
	Properties  map[string]any   `json:"properties,omitempty"`
}

func (p NodePatch) apply(n entity.Node, now time.Time) (entity.Node, error) {
	n = n.Clone()
	if p.Type != nil {
		if !p.Type.Valid() {
			return entity.Node{}, fault.New(fault.KindInvalid, "UpdateNode", n.ID, "unknown node type %q", *p.Type)
		}
		n.Type = *p.Type
	}
	if p.Label != nil {
		if strings.TrimSpace(*p.Label) == "" {
			return entity.Node{}, fault.New(fault.KindInvalid, "UpdateNode", n.ID, "label cannot be empty")
		}
		n.Label = *p.Label
	}
	if p.Description != nil {
		n.Description = *p.Description
	}
	if len(p.Properties) > 0 && n.Properties == nil {
		n.Properties = make(map[string]any, len(p.Properties))
	}
	for k, v := range p.Properties {
		if v == nil {
			delete(n.Properties, k)
			continue
		}
		n.Properties[k] = v
	}
	n.UpdatedAt = now
	return n, nil
}

// RelationshipInput describes a relationship to create. Kind defaults to
// entity.DefaultKind and Weight to entity.DefaultWeight.
type RelationshipInput struct {
	ID       uuid.UUID      `json:"id,omitempty"`
	SourceID uuid.UUID      `json:"source_id"`
	TargetID uuid.UUID      `json:"target_id"`
	Kind     string         `json:"kind,omitempty"`
	Weight   *float64       `json:"weight,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

func (in RelationshipInput) build(now time.Time) (entity.Relationship, error) {
	if in.SourceID == uuid.Nil || in.TargetID == uuid.Nil {
		return entity.Relationship{}, fault.New(fault.KindInvalid, "CreateRelationship", in.ID, "source and target are required")
	}
	weight := entity.DefaultWeight
	if in.Weight != nil {
		weight = *in.Weight
	}
	if math.IsNaN(weight) || math.IsInf(weight, 0) {
		return entity.Relationship{}, fault.New(fault.KindInvalid, "CreateRelationship", in.ID, "weight must be a finite number")
	}
	kind := strings.ToUpper(strings.TrimSpace(in.Kind))
	if kind == "" {
		kind = entity.DefaultKind
	}
	id := in.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	return entity.Relationship{
		ID:        id,
		SourceID:  in.SourceID,
		TargetID:  in.TargetID,
		Kind:      kind,
		Weight:    weight,
		Meta:      maps.Clone(in.Meta),
		CreatedAt: now,
	}, nil
}

// Overview aggregates the sizes and counters of every component.
type Overview struct {
	Nodes         int           `json:"nodes"`
	Relationships int           `json:"relationships"`
	Commands      command.Stats `json:"commands"`
	Locks         lock.Stats    `json:"locks"`
	Transactions  txn.Stats     `json:"transactions"`
}
