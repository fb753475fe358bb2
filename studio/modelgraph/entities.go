package modelgraph

import (
	"fmt"
	"log/slog"

	"modelstudio/studio/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CreateEntityArgs struct {
	DataModelId uuid.UUID
	Name        string
	Description string
	EntityType  string

	// Optional primary key to synthesize at creation time.
	PrimaryKeyName string
	PrimaryKeyType string

	// Optional reference entity used only to compute the default canvas position.
	ReferenceEntityId   *uuid.UUID
	ReferenceEntityName string

	// Explicit position, used when no reference entity is given.
	PositionX *float64
	PositionY *float64

	ReferentialId *uuid.UUID
}

// CreateEntity inserts an entity and, when a primary key name/type is requested,
// synthesizes exactly one primary key attribute in the same transaction.
func (g *Graph) CreateEntity(args CreateEntityArgs) (schema.Entity, error) {
	if args.Name == "" {
		return schema.Entity{}, ErrEntityNameRequired
	}

	entityType := args.EntityType
	if entityType == "" {
		entityType = schema.RegularEntity
	}

	entity := schema.Entity{
		Id:            uuid.New(),
		DataModelId:   args.DataModelId,
		Name:          args.Name,
		Description:   args.Description,
		EntityType:    entityType,
		ReferentialId: args.ReferentialId,
	}

	if args.PositionX != nil {
		entity.PositionX = *args.PositionX
	}
	if args.PositionY != nil {
		entity.PositionY = *args.PositionY
	}

	err := g.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetDataModel(args.DataModelId, txn); err != nil {
			return err
		}

		if args.ReferenceEntityId != nil || args.ReferenceEntityName != "" {
			var siblings []schema.Entity
			result := txn.Order("created_at").Find(&siblings, "data_model_id = ?", args.DataModelId)
			if result.Error != nil {
				slog.Error("sql error loading entities for position hint", "data_model_id", args.DataModelId, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			if pos := ResolvePositionHint(siblings, args.ReferenceEntityId, args.ReferenceEntityName); pos != nil {
				entity.PositionX = pos.X
				entity.PositionY = pos.Y
			}
		}

		result := txn.Create(&entity)
		if result.Error != nil {
			slog.Error("sql error creating entity", "data_model_id", args.DataModelId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		if args.PrimaryKeyName != "" || args.PrimaryKeyType != "" {
			pk := synthesizePrimaryKey(entity.Id, args.PrimaryKeyName, args.PrimaryKeyType)
			result := txn.Create(&pk)
			if result.Error != nil {
				slog.Error("sql error creating synthesized primary key", "entity_id", entity.Id, "error", result.Error)
				return schema.ErrDbAccessFailed
			}
			entity.Attributes = []schema.Attribute{pk}
		}

		return nil
	})

	if err != nil {
		return schema.Entity{}, err
	}

	return entity, nil
}

func synthesizePrimaryKey(entityId uuid.UUID, name, dataType string) schema.Attribute {
	if name == "" {
		name = "id"
	}
	if dataType == "" {
		dataType = "uuid"
	}
	return schema.Attribute{
		Id:           uuid.New(),
		EntityId:     entityId,
		Name:         name,
		DataType:     dataType,
		IsPrimaryKey: true,
		IsRequired:   true,
		IsUnique:     true,
	}
}

// DeleteEntity removes an entity, its attributes, and any relationship touching it.
func (g *Graph) DeleteEntity(entityId uuid.UUID) error {
	return g.db.Transaction(func(txn *gorm.DB) error {
		if _, err := schema.GetEntity(entityId, txn, false); err != nil {
			return err
		}

		result := txn.Where("source_entity_id = ? OR target_entity_id = ?", entityId, entityId).Delete(&schema.Relationship{})
		if result.Error != nil {
			slog.Error("sql error deleting relationships for entity", "entity_id", entityId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		result = txn.Where("entity_id = ?", entityId).Delete(&schema.Attribute{})
		if result.Error != nil {
			slog.Error("sql error deleting attributes for entity", "entity_id", entityId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		result = txn.Delete(&schema.Entity{Id: entityId})
		if result.Error != nil {
			slog.Error("sql error deleting entity", "entity_id", entityId, "error", result.Error)
			return schema.ErrDbAccessFailed
		}

		return nil
	})
}

// CheckRelationshipEndpoints verifies both endpoints exist and belong to the given
// data model. Every relationship must live in the same model as its endpoints.
func CheckRelationshipEndpoints(txn *gorm.DB, dataModelId, sourceEntityId, targetEntityId uuid.UUID) error {
	for _, entityId := range []uuid.UUID{sourceEntityId, targetEntityId} {
		entity, err := schema.GetEntity(entityId, txn, false)
		if err != nil {
			return err
		}
		if entity.DataModelId != dataModelId {
			return fmt.Errorf("entity %v belongs to data model %v: %w", entityId, entity.DataModelId, ErrEndpointModelMismatch)
		}
	}
	return nil
}
