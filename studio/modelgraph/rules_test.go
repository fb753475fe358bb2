package modelgraph

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCheckRuleCyclesAcyclic(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	deps := map[uuid.UUID][]uuid.UUID{
		a: {b, c},
		b: {c},
		c: {},
	}

	assert.NoError(t, CheckRuleCycles(deps))
}

func TestCheckRuleCyclesSelfDependency(t *testing.T) {
	a := uuid.New()

	err := CheckRuleCycles(map[uuid.UUID][]uuid.UUID{a: {a}})
	assert.ErrorIs(t, err, ErrRuleDependencyCycle)
}

func TestCheckRuleCyclesIndirectCycle(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	deps := map[uuid.UUID][]uuid.UUID{
		a: {b},
		b: {c},
		c: {a},
	}

	err := CheckRuleCycles(deps)
	assert.ErrorIs(t, err, ErrRuleDependencyCycle)
}

func TestRuleDependencySets(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	forward, reverse := RuleDependencySets(map[uuid.UUID][]uuid.UUID{
		a: {b, c},
		b: {c},
		c: {},
	})

	assert.ElementsMatch(t, []uuid.UUID{b, c}, forward[a])
	assert.ElementsMatch(t, []uuid.UUID{c}, forward[b])
	assert.Empty(t, forward[c])

	assert.ElementsMatch(t, []uuid.UUID{a}, reverse[b])
	assert.ElementsMatch(t, []uuid.UUID{a, b}, reverse[c])
	assert.Empty(t, reverse[a])
}
