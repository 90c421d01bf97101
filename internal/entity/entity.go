// Package entity defines the value types stored in the property graph:
// typed nodes and weighted, directed relationships between them.
//
// Entities are plain values. The graph store owns the canonical copy and
// hands out clones, so a caller can never mutate shared state except by
// going through a command.
package entity

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// NodeType is the domain type of a node.
type NodeType string

const (
	NodeActor       NodeType = "actor"
	NodeInstitution NodeType = "institution"
	NodePolicy      NodeType = "policy"
	NodeResource    NodeType = "resource"
	NodeProcess     NodeType = "process"
	NodeFlow        NodeType = "flow"
	NodeGeneric     NodeType = "generic"
)

var nodeTypes = map[NodeType]struct{}{
	NodeActor: {}, NodeInstitution: {}, NodePolicy: {}, NodeResource: {},
	NodeProcess: {}, NodeFlow: {}, NodeGeneric: {},
}

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	_, ok := nodeTypes[t]
	return ok
}

// DefaultKind is used when a relationship is created without a kind.
const DefaultKind = "AFFECTS"

// DefaultWeight is used when a relationship is created without a weight.
const DefaultWeight = 1.0

// Node is a vertex of the property graph.
type Node struct {
	ID          uuid.UUID      `json:"id"`
	Type        NodeType       `json:"type"`
	Label       string         `json:"label"`
	Description string         `json:"description,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a deep copy of the node. Nested maps and slices inside
// Properties are copied as well.
func (n Node) Clone() Node {
	n.Properties = cloneMap(n.Properties)
	return n
}

// Relationship is a directed, weighted edge between two nodes.
type Relationship struct {
	ID        uuid.UUID      `json:"id"`
	SourceID  uuid.UUID      `json:"source_id"`
	TargetID  uuid.UUID      `json:"target_id"`
	Kind      string         `json:"kind"`
	Weight    float64        `json:"weight"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Clone returns a deep copy of the relationship.
func (r Relationship) Clone() Relationship {
	r.Meta = cloneMap(r.Meta)
	return r
}

// IsSelfLoop reports whether the relationship starts and ends at the same node.
func (r Relationship) IsSelfLoop() bool {
	return r.SourceID == r.TargetID
}

// Touches reports whether id is one of the relationship's endpoints.
func (r Relationship) Touches(id uuid.UUID) bool {
	return r.SourceID == id || r.TargetID == id
}

// Other returns the endpoint that is not id. For a self-loop it returns id.
func (r Relationship) Other(id uuid.UUID) uuid.UUID {
	if r.SourceID == id {
		return r.TargetID
	}
	return r.SourceID
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	default:
		return v
	}
}
