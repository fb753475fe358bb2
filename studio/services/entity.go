package services

import (
	"fmt"
	"log/slog"
	"modelstudio/studio/modelgraph"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

type AttributeInfo struct {
	Id       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	DataType string    `json:"data_type"`

	IsPrimaryKey bool `json:"is_primary_key"`
	IsForeignKey bool `json:"is_foreign_key"`
	IsUnique     bool `json:"is_unique"`
	IsRequired   bool `json:"is_required"`

	DefaultValue *string `json:"default_value,omitempty"`
	Length       *int    `json:"length,omitempty"`

	ReferencedEntityId *uuid.UUID `json:"referenced_entity_id,omitempty"`
}

func convertToAttributeInfo(attribute *schema.Attribute) AttributeInfo {
	return AttributeInfo{
		Id:                 attribute.Id,
		Name:               attribute.Name,
		DataType:           attribute.DataType,
		IsPrimaryKey:       attribute.IsPrimaryKey,
		IsForeignKey:       attribute.IsForeignKey,
		IsUnique:           attribute.IsUnique,
		IsRequired:         attribute.IsRequired,
		DefaultValue:       attribute.DefaultValue,
		Length:             attribute.Length,
		ReferencedEntityId: attribute.ReferencedEntityId,
	}
}

type EntityInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	EntityType  string    `json:"entity_type"`

	ReferentialId *uuid.UUID `json:"referential_id,omitempty"`

	PositionX float64 `json:"position_x"`
	PositionY float64 `json:"position_y"`

	Attributes []AttributeInfo `json:"attributes"`
}

func convertToEntityInfo(entity *schema.Entity) EntityInfo {
	attributes := make([]AttributeInfo, 0, len(entity.Attributes))
	for _, attribute := range entity.Attributes {
		attributes = append(attributes, convertToAttributeInfo(&attribute))
	}

	return EntityInfo{
		Id:            entity.Id,
		Name:          entity.Name,
		Description:   entity.Description,
		EntityType:    entity.EntityType,
		ReferentialId: entity.ReferentialId,
		PositionX:     entity.PositionX,
		PositionY:     entity.PositionY,
		Attributes:    attributes,
	}
}

type createEntityRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	EntityType  string `json:"entity_type"`

	PrimaryKeyName string `json:"primary_key_name"`
	PrimaryKeyType string `json:"primary_key_type"`

	ReferenceEntityId   *uuid.UUID `json:"reference_entity_id"`
	ReferenceEntityName string     `json:"reference_entity_name"`

	PositionX *float64 `json:"position_x"`
	PositionY *float64 `json:"position_y"`

	ReferentialId *uuid.UUID `json:"referential_id"`
}

func (s *ModelService) CreateEntity(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(entityCreateMetric)
	defer timer.ObserveDuration()

	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createEntityRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.EntityType != "" && params.EntityType != schema.RegularEntity && params.EntityType != schema.JoinEntity {
		http.Error(w, fmt.Sprintf("invalid entity type '%v'", params.EntityType), http.StatusUnprocessableEntity)
		return
	}

	if _, err := getProjectDataModel(s.db, modelId, projectId); err != nil {
		http.Error(w, fmt.Sprintf("error creating entity: %v", err), GetResponseCode(err))
		return
	}

	entity, err := s.graph.CreateEntity(modelgraph.CreateEntityArgs{
		DataModelId:         modelId,
		Name:                params.Name,
		Description:         params.Description,
		EntityType:          params.EntityType,
		PrimaryKeyName:      params.PrimaryKeyName,
		PrimaryKeyType:      params.PrimaryKeyType,
		ReferenceEntityId:   params.ReferenceEntityId,
		ReferenceEntityName: params.ReferenceEntityName,
		PositionX:           params.PositionX,
		PositionY:           params.PositionY,
		ReferentialId:       params.ReferentialId,
	})
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error creating entity: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToEntityInfo(&entity))
}

type updateEntityRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`

	PositionX *float64 `json:"position_x"`
	PositionY *float64 `json:"position_y"`
}

func (s *ModelService) UpdateEntity(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entityId, err := utils.URLParamUUID(r, "entity_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateEntityRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		entity, err := getModelEntity(txn, entityId, modelId, false)
		if err != nil {
			return err
		}

		if params.Name != nil {
			if *params.Name == "" {
				return CodedError(modelgraph.ErrEntityNameRequired, http.StatusBadRequest)
			}
			entity.Name = *params.Name
		}
		if params.Description != nil {
			entity.Description = *params.Description
		}
		if params.PositionX != nil {
			entity.PositionX = *params.PositionX
		}
		if params.PositionY != nil {
			entity.PositionY = *params.PositionY
		}

		result := txn.Save(&entity)
		if result.Error != nil {
			slog.Error("sql error updating entity", "entity_id", entityId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating entity: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ModelService) DeleteEntity(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entityId, err := utils.URLParamUUID(r, "entity_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := getModelEntity(s.db, entityId, modelId, false); err != nil {
		http.Error(w, fmt.Sprintf("error deleting entity: %v", err), GetResponseCode(err))
		return
	}

	if err := s.graph.DeleteEntity(entityId); err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error deleting entity: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
