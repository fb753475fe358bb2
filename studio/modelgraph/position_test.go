package modelgraph

import (
	"testing"

	"modelstudio/studio/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func testEntities() []schema.Entity {
	return []schema.Entity{
		{Id: uuid.New(), Name: "Customer", PositionX: 100, PositionY: 200},
		{Id: uuid.New(), Name: "Order", PositionX: 400, PositionY: 200},
		{Id: uuid.New(), Name: "Order Line", PositionX: 700, PositionY: 300},
	}
}

func TestPositionHintById(t *testing.T) {
	entities := testEntities()

	pos := ResolvePositionHint(entities, &entities[1].Id, "")
	assert.NotNil(t, pos)
	assert.Equal(t, entities[1].PositionX+hintOffsetX, pos.X)
	assert.Equal(t, entities[1].PositionY+hintOffsetY, pos.Y)
}

func TestPositionHintExactNameCaseInsensitive(t *testing.T) {
	entities := testEntities()

	pos := ResolvePositionHint(entities, nil, "cUsToMeR")
	assert.NotNil(t, pos)
	assert.Equal(t, entities[0].PositionX+hintOffsetX, pos.X)
}

func TestPositionHintSubstring(t *testing.T) {
	entities := testEntities()

	pos := ResolvePositionHint(entities, nil, "line")
	assert.NotNil(t, pos)
	assert.Equal(t, entities[2].PositionX+hintOffsetX, pos.X)
}

func TestPositionHintSignificantWord(t *testing.T) {
	entities := testEntities()

	pos := ResolvePositionHint(entities, nil, "the customer table")
	assert.NotNil(t, pos)
	assert.Equal(t, entities[0].PositionX+hintOffsetX, pos.X)
}

func TestPositionHintFallsBackToFirstEntity(t *testing.T) {
	entities := testEntities()

	pos := ResolvePositionHint(entities, nil, "zzz no match")
	assert.NotNil(t, pos)
	assert.Equal(t, entities[0].PositionX+hintOffsetX, pos.X)

	unknown := uuid.New()
	pos = ResolvePositionHint(entities, &unknown, "")
	assert.NotNil(t, pos)
	assert.Equal(t, entities[0].PositionX+hintOffsetX, pos.X)
}

func TestPositionHintEmptyModel(t *testing.T) {
	pos := ResolvePositionHint(nil, nil, "anything")
	assert.Nil(t, pos)
}
