package modelgraph

import (
	"fmt"
	"log/slog"

	"modelstudio/studio/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AttributeSpec struct {
	// Nil id means insert; a present id must match an existing attribute.
	Id *uuid.UUID

	Name     string
	DataType string

	IsPrimaryKey bool
	IsForeignKey bool
	IsUnique     bool
	IsRequired   bool

	DefaultValue *string
	Length       *int

	ReferencedEntityId *uuid.UUID
	// Optional: the attribute on the referenced entity the foreign key points at.
	// When given it must be a primary key; non-key attributes are not valid targets.
	ReferencedAttributeId *uuid.UUID
}

type CreateAttributeResult struct {
	Attribute schema.Attribute

	// Set when a relationship was inserted as a side effect of the foreign key.
	Relationship *schema.Relationship

	// Non-fatal failure of the side-effect relationship insert, per
	// ForeignKeyAttributePolicy. The attribute itself was created.
	RelationshipErr error
}

// CreateAttribute inserts an attribute on an entity. When the attribute is a foreign
// key with a referenced entity, a one-to-many relationship from the owning entity to
// the referenced entity is inserted as well, recording the new attribute as the
// relationship's source attribute. Failure of that second insert does not roll back
// the attribute.
func (g *Graph) CreateAttribute(entityId uuid.UUID, spec AttributeSpec) (CreateAttributeResult, error) {
	entity, err := schema.GetEntity(entityId, g.db, false)
	if err != nil {
		return CreateAttributeResult{}, err
	}

	attribute := schema.Attribute{
		Id:           uuid.New(),
		EntityId:     entityId,
		Name:         spec.Name,
		DataType:     spec.DataType,
		IsPrimaryKey: spec.IsPrimaryKey,
		IsForeignKey: spec.IsForeignKey,
		IsUnique:     spec.IsUnique,
		IsRequired:   spec.IsRequired,
		DefaultValue: spec.DefaultValue,
		Length:       spec.Length,
	}

	sideEffect := spec.IsForeignKey && spec.ReferencedEntityId != nil

	var referenced schema.Entity
	if sideEffect {
		referenced, err = schema.GetEntity(*spec.ReferencedEntityId, g.db, false)
		if err != nil {
			return CreateAttributeResult{}, err
		}

		if spec.ReferencedAttributeId != nil {
			target, err := schema.GetAttribute(*spec.ReferencedAttributeId, g.db)
			if err != nil {
				return CreateAttributeResult{}, err
			}
			if !target.IsPrimaryKey {
				return CreateAttributeResult{}, fmt.Errorf("attribute %v: %w", target.Id, ErrForeignKeyTargetNotKey)
			}
		}

		attribute.ReferencedEntityId = spec.ReferencedEntityId
	}

	result := g.db.Create(&attribute)
	if result.Error != nil {
		slog.Error("sql error creating attribute", "entity_id", entityId, "error", result.Error)
		return CreateAttributeResult{}, schema.ErrDbAccessFailed
	}

	res := CreateAttributeResult{Attribute: attribute}

	if sideEffect {
		relationship := schema.Relationship{
			Id:                uuid.New(),
			DataModelId:       entity.DataModelId,
			SourceEntityId:    entity.Id,
			TargetEntityId:    referenced.Id,
			SourceAttributeId: &attribute.Id,
			TargetAttributeId: spec.ReferencedAttributeId,
			RelationshipType:  schema.OneToMany,
			Name:              fmt.Sprintf("%v to %v", entity.Name, referenced.Name),
		}

		result := g.db.Create(&relationship)
		if result.Error != nil {
			// Tolerated per ForeignKeyAttributePolicy: the attribute stands on its own.
			slog.Error("sql error creating relationship for foreign key attribute",
				"operation", ForeignKeyAttributePolicy.Operation,
				"attribute_id", attribute.Id, "entity_id", entity.Id, "referenced_entity_id", referenced.Id, "error", result.Error)
			res.RelationshipErr = schema.ErrDbAccessFailed
		} else {
			res.Relationship = &relationship
		}
	}

	return res, nil
}

// DeleteAttribute removes an attribute. If the attribute is a foreign key with a
// referenced entity, the first relationship found between the owning entity and the
// referenced entity (in either direction) is removed first.
//
// Known limitation: when an entity pair has several relationships, only the first
// match is removed and it may not be the one created for this attribute.
func (g *Graph) DeleteAttribute(attributeId uuid.UUID) (removedRelationship bool, err error) {
	err = g.db.Transaction(func(txn *gorm.DB) error {
		attribute, err := schema.GetAttribute(attributeId, txn)
		if err != nil {
			return err
		}

		if attribute.IsForeignKey && attribute.ReferencedEntityId != nil {
			owning, referenced := attribute.EntityId, *attribute.ReferencedEntityId

			var relationship schema.Relationship
			result := txn.Limit(1).Find(&relationship,
				"(source_entity_id = ? AND target_entity_id = ?) OR (source_entity_id = ? AND target_entity_id = ?)",
				owning, referenced, referenced, owning)
			if result.Error != nil {
				slog.Error("sql error finding relationship for foreign key attribute", "attribute_id", attributeId, "error", result.Error)
				return schema.ErrDbAccessFailed
			}

			if result.RowsAffected != 0 {
				result := txn.Delete(&schema.Relationship{Id: relationship.Id})
				if result.Error != nil {
					slog.Error("sql error deleting relationship for foreign key attribute",
						"attribute_id", attributeId, "relationship_id", relationship.Id, "error", result.Error)
					return schema.ErrDbAccessFailed
				}
				removedRelationship = true
			}
		}

		result := txn.Delete(&schema.Attribute{Id: attributeId})
		if result.Error != nil {
			slog.Error("sql error deleting attribute", "attribute_id", attributeId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})

	return removedRelationship, err
}

// ReplaceAttributes reconciles an entity's attributes against a full desired list:
// existing ids absent from the list are deleted, matching ids are updated with every
// field from the spec, and specs without ids are inserted. Callers must resend all
// fields they want retained; this is a replacement, not a patch.
func (g *Graph) ReplaceAttributes(entityId uuid.UUID, desired []AttributeSpec) ([]schema.Attribute, error) {
	var final []schema.Attribute

	err := g.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetEntity(entityId, txn, false); err != nil {
			return err
		}

		var existing []schema.Attribute
		result := txn.Find(&existing, "entity_id = ?", entityId)
		if result.Error != nil {
			slog.Error("sql error loading attributes for replace", "entity_id", entityId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		keep := make(map[uuid.UUID]struct{}, len(desired))
		for _, spec := range desired {
			if spec.Id != nil {
				keep[*spec.Id] = struct{}{}
			}
		}

		for _, attribute := range existing {
			if _, ok := keep[attribute.Id]; ok {
				continue
			}
			result := txn.Delete(&schema.Attribute{Id: attribute.Id})
			if result.Error != nil {
				slog.Error("sql error deleting removed attribute", "attribute_id", attribute.Id, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
		}

		existingIds := make(map[uuid.UUID]struct{}, len(existing))
		for _, attribute := range existing {
			existingIds[attribute.Id] = struct{}{}
		}

		for _, spec := range desired {
			attribute := schema.Attribute{
				EntityId:           entityId,
				Name:               spec.Name,
				DataType:           spec.DataType,
				IsPrimaryKey:       spec.IsPrimaryKey,
				IsForeignKey:       spec.IsForeignKey,
				IsUnique:           spec.IsUnique,
				IsRequired:         spec.IsRequired,
				DefaultValue:       spec.DefaultValue,
				Length:             spec.Length,
				ReferencedEntityId: spec.ReferencedEntityId,
			}

			if spec.Id != nil {
				if _, ok := existingIds[*spec.Id]; !ok {
					return fmt.Errorf("attribute %v: %w", *spec.Id, schema.ErrAttributeNotFound)
				}
				attribute.Id = *spec.Id
				result := txn.Save(&attribute)
				if result.Error != nil {
					slog.Error("sql error updating attribute", "attribute_id", attribute.Id, "error", result.Error)
					return schema.ErrDbAccessFailed
				}
			} else {
				attribute.Id = uuid.New()
				result := txn.Create(&attribute)
				if result.Error != nil {
					slog.Error("sql error inserting attribute", "entity_id", entityId, "error", result.Error)
					return schema.ErrDbAccessFailed
				}
			}

			final = append(final, attribute)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return final, nil
}
