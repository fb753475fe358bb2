package modelgraph

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modelstudio/studio/schema"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Serialized model format used by export and import. Ids are the ids of the source
// system; they are remapped to fresh ids on insert.

type SerializedAttribute struct {
	Id       string `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string `json:"name" yaml:"name"`
	DataType string `json:"data_type" yaml:"data_type"`

	IsPrimaryKey bool `json:"is_primary_key,omitempty" yaml:"is_primary_key,omitempty"`
	IsForeignKey bool `json:"is_foreign_key,omitempty" yaml:"is_foreign_key,omitempty"`
	IsUnique     bool `json:"is_unique,omitempty" yaml:"is_unique,omitempty"`
	IsRequired   bool `json:"is_required,omitempty" yaml:"is_required,omitempty"`

	DefaultValue *string `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	Length       *int    `json:"length,omitempty" yaml:"length,omitempty"`

	ReferencedEntityId string `json:"referenced_entity_id,omitempty" yaml:"referenced_entity_id,omitempty"`
}

type SerializedEntity struct {
	Id          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	EntityType  string `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`

	ReferentialId string `json:"referential_id,omitempty" yaml:"referential_id,omitempty"`

	PositionX float64 `json:"position_x,omitempty" yaml:"position_x,omitempty"`
	PositionY float64 `json:"position_y,omitempty" yaml:"position_y,omitempty"`

	Attributes []SerializedAttribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
}

type SerializedRelationship struct {
	Id string `json:"id,omitempty" yaml:"id,omitempty"`

	SourceEntityId string `json:"source_entity_id" yaml:"source_entity_id"`
	TargetEntityId string `json:"target_entity_id" yaml:"target_entity_id"`

	SourceAttributeId string `json:"source_attribute_id,omitempty" yaml:"source_attribute_id,omitempty"`
	TargetAttributeId string `json:"target_attribute_id,omitempty" yaml:"target_attribute_id,omitempty"`

	RelationshipType string `json:"relationship_type" yaml:"relationship_type"`

	SourceCardinality *string `json:"source_cardinality,omitempty" yaml:"source_cardinality,omitempty"`
	TargetCardinality *string `json:"target_cardinality,omitempty" yaml:"target_cardinality,omitempty"`

	Name string `json:"name,omitempty" yaml:"name,omitempty"`
}

type SerializedReferential struct {
	Id          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
}

type SerializedModel struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Version     string `json:"version,omitempty" yaml:"version,omitempty"`

	Entities      []SerializedEntity       `json:"entities" yaml:"entities"`
	Relationships []SerializedRelationship `json:"relationships,omitempty" yaml:"relationships,omitempty"`
	Referentials  []SerializedReferential  `json:"referentials,omitempty" yaml:"referentials,omitempty"`
}

// NormalizeRelationships corrects the orientation of one-to-many relationships that
// touch a join entity: serialized models sometimes store the junction table as the
// source even though it is conceptually the "many" side, which renders cardinality
// backwards. For any one-to-many relationship where either endpoint is tagged as a
// join entity, source and target entity ids are swapped, the attribute ids with them,
// and a two-part "A to B" name becomes "B to A". The swap applies once even when
// both endpoints are join entities.
func NormalizeRelationships(entities []SerializedEntity, relationships []SerializedRelationship) []SerializedRelationship {
	joins := make(map[string]struct{})
	for _, entity := range entities {
		if entity.EntityType == schema.JoinEntity {
			joins[entity.Id] = struct{}{}
		}
	}

	out := make([]SerializedRelationship, len(relationships))
	copy(out, relationships)

	for i := range out {
		rel := &out[i]
		if rel.RelationshipType != schema.OneToMany {
			continue
		}

		_, sourceIsJoin := joins[rel.SourceEntityId]
		_, targetIsJoin := joins[rel.TargetEntityId]
		if !sourceIsJoin && !targetIsJoin {
			continue
		}

		rel.SourceEntityId, rel.TargetEntityId = rel.TargetEntityId, rel.SourceEntityId
		rel.SourceAttributeId, rel.TargetAttributeId = rel.TargetAttributeId, rel.SourceAttributeId
		rel.Name = swapRelationshipName(rel.Name)
	}

	return out
}

func swapRelationshipName(name string) string {
	parts := strings.SplitN(name, " to ", 2)
	if len(parts) != 2 {
		return name
	}
	return parts[1] + " to " + parts[0]
}

type ImportReport struct {
	DataModelId uuid.UUID `json:"data_model_id"`

	EntitiesCreated      int `json:"entities_created"`
	AttributesCreated    int `json:"attributes_created"`
	ReferentialsCreated  int `json:"referentials_created"`
	RelationshipsCreated int `json:"relationships_created"`

	// Relationships whose insert failed; the model is usable without them.
	RelationshipsSkipped []string `json:"relationships_skipped,omitempty"`
}

// Import materializes a serialized model as a new data model in the given project.
// Any entity insert failure aborts the import and removes the partially created data
// model; a failed relationship insert is logged and skipped per ImportPolicy.
func (g *Graph) Import(projectId uuid.UUID, model SerializedModel) (ImportReport, error) {
	dataModel := schema.DataModel{
		Id:          uuid.New(),
		ProjectId:   projectId,
		Name:        model.Name,
		Description: model.Description,
		Version:     model.Version,
		CreatedAt:   time.Now().UTC(),
	}

	report := ImportReport{DataModelId: dataModel.Id}

	result := g.db.Create(&dataModel)
	if result.Error != nil {
		slog.Error("sql error creating data model for import", "project_id", projectId, "error", result.Error)
		return report, schema.ErrDbAccessFailed
	}

	referentialIds := make(map[string]uuid.UUID, len(model.Referentials))
	entityIds := make(map[string]uuid.UUID, len(model.Entities))
	attributeIds := make(map[string]uuid.UUID)

	cleanup := func() {
		if err := g.DeleteDataModel(dataModel.Id); err != nil {
			slog.Error("error cleaning up partially imported data model", "data_model_id", dataModel.Id, "error", err)
		}
	}

	for _, ref := range model.Referentials {
		referential := schema.Referential{
			Id:          uuid.New(),
			DataModelId: dataModel.Id,
			Name:        ref.Name,
			Description: ref.Description,
			Color:       ref.Color,
		}
		result := g.db.Create(&referential)
		if result.Error != nil {
			slog.Error("sql error importing referential", "data_model_id", dataModel.Id, "name", ref.Name, "error", result.Error)
			cleanup()
			return report, schema.ErrDbAccessFailed
		}
		referentialIds[ref.Id] = referential.Id
		report.ReferentialsCreated++
	}

	// Entity ids must all be known before attributes can resolve their foreign key
	// targets, so entities insert in two passes.
	for _, se := range model.Entities {
		entityType := se.EntityType
		if entityType == "" {
			entityType = schema.RegularEntity
		}

		entity := schema.Entity{
			Id:          uuid.New(),
			DataModelId: dataModel.Id,
			Name:        se.Name,
			Description: se.Description,
			EntityType:  entityType,
			PositionX:   se.PositionX,
			PositionY:   se.PositionY,
		}
		if refId, ok := referentialIds[se.ReferentialId]; ok {
			entity.ReferentialId = &refId
		}

		result := g.db.Create(&entity)
		if result.Error != nil {
			slog.Error("sql error importing entity", "data_model_id", dataModel.Id, "name", se.Name, "error", result.Error)
			cleanup()
			return report, fmt.Errorf("error importing entity '%v': %w", se.Name, schema.ErrDbAccessFailed)
		}
		entityIds[se.Id] = entity.Id
		report.EntitiesCreated++
	}

	for _, se := range model.Entities {
		for _, sa := range se.Attributes {
			attribute := schema.Attribute{
				Id:           uuid.New(),
				EntityId:     entityIds[se.Id],
				Name:         sa.Name,
				DataType:     sa.DataType,
				IsPrimaryKey: sa.IsPrimaryKey,
				IsForeignKey: sa.IsForeignKey,
				IsUnique:     sa.IsUnique,
				IsRequired:   sa.IsRequired,
				DefaultValue: sa.DefaultValue,
				Length:       sa.Length,
			}
			if refEntity, ok := entityIds[sa.ReferencedEntityId]; ok && sa.IsForeignKey {
				attribute.ReferencedEntityId = &refEntity
			}

			result := g.db.Create(&attribute)
			if result.Error != nil {
				slog.Error("sql error importing attribute", "entity", se.Name, "attribute", sa.Name, "error", result.Error)
				cleanup()
				return report, fmt.Errorf("error importing attribute '%v' of entity '%v': %w", sa.Name, se.Name, schema.ErrDbAccessFailed)
			}
			if sa.Id != "" {
				attributeIds[sa.Id] = attribute.Id
			}
			report.AttributesCreated++
		}
	}

	for _, sr := range NormalizeRelationships(model.Entities, model.Relationships) {
		sourceId, sourceOk := entityIds[sr.SourceEntityId]
		targetId, targetOk := entityIds[sr.TargetEntityId]
		if !sourceOk || !targetOk {
			slog.Warn("skipping relationship with unknown endpoint", "data_model_id", dataModel.Id, "name", sr.Name)
			report.RelationshipsSkipped = append(report.RelationshipsSkipped, sr.Name)
			continue
		}

		relType := sr.RelationshipType
		if relType == "" {
			relType = schema.OneToMany
		}

		relationship := schema.Relationship{
			Id:                uuid.New(),
			DataModelId:       dataModel.Id,
			SourceEntityId:    sourceId,
			TargetEntityId:    targetId,
			RelationshipType:  relType,
			SourceCardinality: sr.SourceCardinality,
			TargetCardinality: sr.TargetCardinality,
			Name:              sr.Name,
		}
		if attrId, ok := attributeIds[sr.SourceAttributeId]; ok {
			relationship.SourceAttributeId = &attrId
		}
		if attrId, ok := attributeIds[sr.TargetAttributeId]; ok {
			relationship.TargetAttributeId = &attrId
		}

		result := g.db.Create(&relationship)
		if result.Error != nil {
			// The model is usable without every relationship; skip and report.
			slog.Error("sql error importing relationship",
				"operation", ImportPolicy.Operation, "data_model_id", dataModel.Id, "name", sr.Name, "error", result.Error)
			report.RelationshipsSkipped = append(report.RelationshipsSkipped, sr.Name)
			continue
		}
		report.RelationshipsCreated++
	}

	return report, nil
}

// DeleteDataModel removes a data model and everything it contains in one
// transaction. Also used to clean up after a failed import.
func (g *Graph) DeleteDataModel(dataModelId uuid.UUID) error {
	return g.db.Transaction(func(txn *gorm.DB) error {
		var entityIds []uuid.UUID
		if err := txn.Model(&schema.Entity{}).Where("data_model_id = ?", dataModelId).Pluck("id", &entityIds).Error; err != nil {
			return err
		}

		if len(entityIds) > 0 {
			if err := txn.Where("entity_id IN ?", entityIds).Delete(&schema.Attribute{}).Error; err != nil {
				return err
			}
		}

		for _, model := range []interface{}{&schema.Relationship{}, &schema.Entity{}, &schema.Referential{}, &schema.Rule{}} {
			if err := txn.Where("data_model_id = ?", dataModelId).Delete(model).Error; err != nil {
				return err
			}
		}

		return txn.Delete(&schema.DataModel{Id: dataModelId}).Error
	})
}
