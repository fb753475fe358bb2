// Package modelgraph enforces the consistency rules of the entity graph: entities,
// attributes, relationships, and referentials. Every mutation that touches more than
// one of these tables goes through this package so that the rules live in one place
// instead of being scattered through route handlers.
package modelgraph

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrEntityNameRequired     = errors.New("entity name must be specified")
	ErrEndpointModelMismatch  = errors.New("relationship endpoints must belong to the same data model as the relationship")
	ErrForeignKeyTargetNotKey = errors.New("foreign keys may only reference primary key attributes")
	ErrRuleDependencyCycle    = errors.New("rule dependencies contain a cycle")
	ErrRuleScopeConflict      = errors.New("a rule may be scoped to an entity or an attribute, not both")
)

// Policy records, per multi-step mutation, whether the steps are applied atomically
// or best-effort. Best-effort operations keep earlier steps when a later step fails;
// the failure is logged and reported in the response, never silently dropped.
type Policy struct {
	Operation string
	Atomic    bool
}

var (
	// Entity creation plus its synthesized primary key commit together.
	EntityCreatePolicy = Policy{Operation: "entity-create", Atomic: true}

	// The relationship created alongside a foreign key attribute is a side effect;
	// losing it leaves a usable attribute, so the attribute insert is kept.
	ForeignKeyAttributePolicy = Policy{Operation: "attribute-create-with-foreign-key", Atomic: false}

	// Dangling referential_id pointers silently break the diagram, so the null-out
	// and the delete commit together or not at all.
	ReferentialDeletePolicy = Policy{Operation: "referential-delete", Atomic: true}

	// A model without every relationship is still usable; a model with half its
	// entities is not. Entity failures abort and clean up, relationship failures skip.
	ImportPolicy = Policy{Operation: "model-import", Atomic: false}

	AttributeReplacePolicy = Policy{Operation: "attribute-bulk-replace", Atomic: true}
)

// Graph applies entity-graph mutations against the store. It is independent of the
// http layer; services translate its errors into response codes.
type Graph struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Graph {
	return &Graph{db: db}
}

func (g *Graph) DB() *gorm.DB {
	return g.db
}
