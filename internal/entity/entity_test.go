package entity

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNode_CloneIsDeep(t *testing.T) {
	original := Node{
		ID:    uuid.New(),
		Type:  NodeActor,
		Label: "Treasury",
		Properties: map[string]any{
			"sector": "public",
			"tags":   []any{"a", "b"},
			"nested": map[string]any{"level": 1.0},
		},
	}

	clone := original.Clone()
	clone.Properties["sector"] = "private"
	clone.Properties["tags"].([]any)[0] = "z"
	clone.Properties["nested"].(map[string]any)["level"] = 2.0

	assert.Equal(t, "public", original.Properties["sector"])
	assert.Equal(t, "a", original.Properties["tags"].([]any)[0])
	assert.Equal(t, 1.0, original.Properties["nested"].(map[string]any)["level"])
}

func TestNode_CloneNilProperties(t *testing.T) {
	n := Node{ID: uuid.New()}
	assert.Nil(t, n.Clone().Properties)
}

func TestRelationship_CloneIsDeep(t *testing.T) {
	r := Relationship{ID: uuid.New(), Weight: 0.3, Meta: map[string]any{"note": "x"}}
	c := r.Clone()
	c.Meta["note"] = "y"

	assert.Equal(t, "x", r.Meta["note"])
	assert.Equal(t, 0.3, c.Weight)
}

func TestRelationship_Endpoints(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	r := Relationship{SourceID: a, TargetID: b}

	assert.False(t, r.IsSelfLoop())
	assert.True(t, r.Touches(a))
	assert.True(t, r.Touches(b))
	assert.False(t, r.Touches(uuid.New()))
	assert.Equal(t, b, r.Other(a))
	assert.Equal(t, a, r.Other(b))

	loop := Relationship{SourceID: a, TargetID: a}
	assert.True(t, loop.IsSelfLoop())
	assert.Equal(t, a, loop.Other(a))
}

func TestNodeType_Valid(t *testing.T) {
	assert.True(t, NodePolicy.Valid())
	assert.True(t, NodeGeneric.Valid())
	assert.False(t, NodeType("spaceship").Valid())
	assert.False(t, NodeType("").Valid())
}
