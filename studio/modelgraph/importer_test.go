package modelgraph

import (
	"testing"

	"modelstudio/studio/schema"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSwapsJoinEndpoint(t *testing.T) {
	entities := []SerializedEntity{
		{Id: "e1", Name: "Student"},
		{Id: "e2", Name: "StudentCourse", EntityType: schema.JoinEntity},
		{Id: "e3", Name: "Course"},
	}
	relationships := []SerializedRelationship{
		{
			SourceEntityId:    "e2",
			TargetEntityId:    "e1",
			SourceAttributeId: "a1",
			TargetAttributeId: "a2",
			RelationshipType:  schema.OneToMany,
			Name:              "StudentCourse to Student",
		},
	}

	out := NormalizeRelationships(entities, relationships)

	assert.Equal(t, "e1", out[0].SourceEntityId)
	assert.Equal(t, "e2", out[0].TargetEntityId)
	assert.Equal(t, "a2", out[0].SourceAttributeId)
	assert.Equal(t, "a1", out[0].TargetAttributeId)
	assert.Equal(t, "Student to StudentCourse", out[0].Name)
}

func TestNormalizeLeavesRegularRelationships(t *testing.T) {
	entities := []SerializedEntity{
		{Id: "e1", Name: "Customer"},
		{Id: "e2", Name: "Order"},
	}
	relationships := []SerializedRelationship{
		{SourceEntityId: "e1", TargetEntityId: "e2", RelationshipType: schema.OneToMany, Name: "Customer to Order"},
	}

	out := NormalizeRelationships(entities, relationships)

	assert.Equal(t, relationships, out)
}

func TestNormalizeLeavesOtherRelationshipTypes(t *testing.T) {
	entities := []SerializedEntity{
		{Id: "e1", Name: "A", EntityType: schema.JoinEntity},
		{Id: "e2", Name: "B"},
	}
	relationships := []SerializedRelationship{
		{SourceEntityId: "e1", TargetEntityId: "e2", RelationshipType: schema.ManyToMany, Name: "A to B"},
		{SourceEntityId: "e1", TargetEntityId: "e2", RelationshipType: schema.OneToOne, Name: "A to B"},
	}

	out := NormalizeRelationships(entities, relationships)

	assert.Equal(t, relationships, out)
}

func TestNormalizeBothEndpointsJoinSwapsOnce(t *testing.T) {
	// Ambiguous case: the rule is endpoint-existential, so even a relationship
	// between two join entities is swapped exactly once.
	entities := []SerializedEntity{
		{Id: "e1", Name: "A", EntityType: schema.JoinEntity},
		{Id: "e2", Name: "B", EntityType: schema.JoinEntity},
	}
	relationships := []SerializedRelationship{
		{SourceEntityId: "e1", TargetEntityId: "e2", RelationshipType: schema.OneToMany, Name: "A to B"},
	}

	out := NormalizeRelationships(entities, relationships)

	assert.Equal(t, "e2", out[0].SourceEntityId)
	assert.Equal(t, "e1", out[0].TargetEntityId)
	assert.Equal(t, "B to A", out[0].Name)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	entities := []SerializedEntity{
		{Id: "e1", Name: "A", EntityType: schema.JoinEntity},
		{Id: "e2", Name: "B"},
	}
	relationships := []SerializedRelationship{
		{SourceEntityId: "e1", TargetEntityId: "e2", RelationshipType: schema.OneToMany, Name: "A to B"},
	}

	NormalizeRelationships(entities, relationships)

	assert.Equal(t, "e1", relationships[0].SourceEntityId)
	assert.Equal(t, "A to B", relationships[0].Name)
}

func TestSwapRelationshipName(t *testing.T) {
	assert.Equal(t, "B to A", swapRelationshipName("A to B"))
	assert.Equal(t, "unnamed", swapRelationshipName("unnamed"))
	assert.Equal(t, "", swapRelationshipName(""))
}
