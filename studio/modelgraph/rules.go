package modelgraph

import (
	"fmt"

	"github.com/google/uuid"
)

// CheckRuleCycles validates the dependency lists of a rule set. The graph maps each
// rule to the rules it depends on; the list view derives both forward and reverse
// dependency sets from it, and neither is well defined if the input contains a cycle,
// so cyclic input is rejected at write time.
func CheckRuleCycles(dependencies map[uuid.UUID][]uuid.UUID) error {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[uuid.UUID]int, len(dependencies))

	var visit func(uuid.UUID) error
	visit = func(rule uuid.UUID) error {
		switch state[rule] {
		case inStack:
			return fmt.Errorf("rule %v: %w", rule, ErrRuleDependencyCycle)
		case done:
			return nil
		}

		state[rule] = inStack
		for _, dep := range dependencies[rule] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[rule] = done
		return nil
	}

	for rule := range dependencies {
		if err := visit(rule); err != nil {
			return err
		}
	}

	return nil
}

// RuleDependencySets computes, for each rule, the rules it depends on (forward) and
// the rules that depend on it (reverse). Input is assumed acyclic; CheckRuleCycles
// runs on every write.
func RuleDependencySets(dependencies map[uuid.UUID][]uuid.UUID) (forward, reverse map[uuid.UUID][]uuid.UUID) {
	forward = make(map[uuid.UUID][]uuid.UUID, len(dependencies))
	reverse = make(map[uuid.UUID][]uuid.UUID, len(dependencies))

	for rule, deps := range dependencies {
		forward[rule] = append(forward[rule], deps...)
		for _, dep := range deps {
			reverse[dep] = append(reverse[dep], rule)
		}
	}

	return forward, reverse
}
