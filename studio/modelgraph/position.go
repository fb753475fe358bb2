package modelgraph

import (
	"strings"

	"modelstudio/studio/schema"

	"github.com/google/uuid"
)

type Position struct {
	X float64
	Y float64
}

// New entities placed relative to a reference entity are offset right and slightly
// down so they do not stack on top of it.
const (
	hintOffsetX = 250.0
	hintOffsetY = 60.0
)

// Words too generic to identify an entity on their own.
var insignificantWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {},
	"data": {}, "table": {}, "entity": {}, "model": {},
}

func significantWords(name string) []string {
	words := strings.Fields(strings.ToLower(name))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, skip := insignificantWords[w]; !skip {
			out = append(out, w)
		}
	}
	return out
}

// ResolvePositionHint finds a canvas position for a new entity near a reference
// entity given by id or name. This is a best-effort UX convenience, not a data
// relationship: resolution falls through id match, case-insensitive exact name,
// substring, longest significant word, and finally the model's first entity. It
// never fails; a nil result means the caller should place the entity at the origin.
func ResolvePositionHint(entities []schema.Entity, referenceId *uuid.UUID, referenceName string) *Position {
	if len(entities) == 0 {
		return nil
	}

	offset := func(e *schema.Entity) *Position {
		return &Position{X: e.PositionX + hintOffsetX, Y: e.PositionY + hintOffsetY}
	}

	if referenceId != nil {
		for i := range entities {
			if entities[i].Id == *referenceId {
				return offset(&entities[i])
			}
		}
	}

	if referenceName == "" {
		if referenceId != nil {
			// An id was given but not found: fall back to the first entity.
			return offset(&entities[0])
		}
		return nil
	}

	lowered := strings.ToLower(referenceName)

	for i := range entities {
		if strings.ToLower(entities[i].Name) == lowered {
			return offset(&entities[i])
		}
	}

	for i := range entities {
		name := strings.ToLower(entities[i].Name)
		if strings.Contains(name, lowered) || strings.Contains(lowered, name) {
			return offset(&entities[i])
		}
	}

	// Match on the longest significant word shared with an entity name.
	words := significantWords(referenceName)
	var best *schema.Entity
	bestLen := 0
	for i := range entities {
		name := strings.ToLower(entities[i].Name)
		for _, w := range words {
			if len(w) > bestLen && strings.Contains(name, w) {
				best = &entities[i]
				bestLen = len(w)
			}
		}
	}
	if best != nil {
		return offset(best)
	}

	return offset(&entities[0])
}
