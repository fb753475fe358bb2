package services

import (
	"fmt"
	"log/slog"
	"modelstudio/studio/modelgraph"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RelationshipInfo struct {
	Id uuid.UUID `json:"id"`

	SourceEntityId uuid.UUID `json:"source_entity_id"`
	TargetEntityId uuid.UUID `json:"target_entity_id"`

	SourceAttributeId *uuid.UUID `json:"source_attribute_id,omitempty"`
	TargetAttributeId *uuid.UUID `json:"target_attribute_id,omitempty"`

	RelationshipType string `json:"relationship_type"`

	SourceCardinality *string `json:"source_cardinality,omitempty"`
	TargetCardinality *string `json:"target_cardinality,omitempty"`

	Name string `json:"name"`
}

func convertToRelationshipInfo(relationship *schema.Relationship) RelationshipInfo {
	return RelationshipInfo{
		Id:                relationship.Id,
		SourceEntityId:    relationship.SourceEntityId,
		TargetEntityId:    relationship.TargetEntityId,
		SourceAttributeId: relationship.SourceAttributeId,
		TargetAttributeId: relationship.TargetAttributeId,
		RelationshipType:  relationship.RelationshipType,
		SourceCardinality: relationship.SourceCardinality,
		TargetCardinality: relationship.TargetCardinality,
		Name:              relationship.Name,
	}
}

type createRelationshipRequest struct {
	SourceEntityId uuid.UUID `json:"source_entity_id"`
	TargetEntityId uuid.UUID `json:"target_entity_id"`

	SourceAttributeId *uuid.UUID `json:"source_attribute_id"`
	TargetAttributeId *uuid.UUID `json:"target_attribute_id"`

	RelationshipType string `json:"relationship_type"`

	SourceCardinality *string `json:"source_cardinality"`
	TargetCardinality *string `json:"target_cardinality"`

	Name string `json:"name"`
}

func (s *ModelService) CreateRelationship(w http.ResponseWriter, r *http.Request) {
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

	var params createRelationshipRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	relType := params.RelationshipType
	if relType == "" {
		relType = schema.OneToMany
	}
	if err := schema.CheckValidRelationshipType(relType); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	relationship := schema.Relationship{
		Id:                uuid.New(),
		DataModelId:       modelId,
		SourceEntityId:    params.SourceEntityId,
		TargetEntityId:    params.TargetEntityId,
		SourceAttributeId: params.SourceAttributeId,
		TargetAttributeId: params.TargetAttributeId,
		RelationshipType:  relType,
		SourceCardinality: params.SourceCardinality,
		TargetCardinality: params.TargetCardinality,
		Name:              params.Name,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getProjectDataModel(txn, modelId, projectId); err != nil {
			return err
		}

		if err := modelgraph.CheckRelationshipEndpoints(txn, modelId, params.SourceEntityId, params.TargetEntityId); err != nil {
			return graphError(err)
		}

		result := txn.Create(&relationship)
		if result.Error != nil {
			slog.Error("sql error creating relationship", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating relationship: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToRelationshipInfo(&relationship))
}

type updateRelationshipRequest struct {
	RelationshipType *string `json:"relationship_type"`

	SourceCardinality *string `json:"source_cardinality"`
	TargetCardinality *string `json:"target_cardinality"`

	Name *string `json:"name"`
}

func (s *ModelService) UpdateRelationship(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	relationshipId, err := utils.URLParamUUID(r, "relationship_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateRelationshipRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.RelationshipType != nil {
		if err := schema.CheckValidRelationshipType(*params.RelationshipType); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		relationship, err := schema.GetRelationship(relationshipId, txn)
		if err != nil {
			return graphError(err)
		}
		if relationship.DataModelId != modelId {
			return CodedError(schema.ErrRelationshipNotFound, http.StatusNotFound)
		}

		if params.RelationshipType != nil {
			relationship.RelationshipType = *params.RelationshipType
		}
		if params.SourceCardinality != nil {
			relationship.SourceCardinality = params.SourceCardinality
		}
		if params.TargetCardinality != nil {
			relationship.TargetCardinality = params.TargetCardinality
		}
		if params.Name != nil {
			relationship.Name = *params.Name
		}

		result := txn.Save(&relationship)
		if result.Error != nil {
			slog.Error("sql error updating relationship", "relationship_id", relationshipId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating relationship: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ModelService) DeleteRelationship(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	relationshipId, err := utils.URLParamUUID(r, "relationship_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		relationship, err := schema.GetRelationship(relationshipId, txn)
		if err != nil {
			return graphError(err)
		}
		if relationship.DataModelId != modelId {
			return CodedError(schema.ErrRelationshipNotFound, http.StatusNotFound)
		}

		result := txn.Delete(&schema.Relationship{Id: relationshipId})
		if result.Error != nil {
			slog.Error("sql error deleting relationship", "relationship_id", relationshipId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting relationship: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
