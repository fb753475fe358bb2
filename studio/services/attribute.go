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

type attributeSpecRequest struct {
	Id *uuid.UUID `json:"id"`

	Name     string `json:"name"`
	DataType string `json:"data_type"`

	IsPrimaryKey bool `json:"is_primary_key"`
	IsForeignKey bool `json:"is_foreign_key"`
	IsUnique     bool `json:"is_unique"`
	IsRequired   bool `json:"is_required"`

	DefaultValue *string `json:"default_value"`
	Length       *int    `json:"length"`

	ReferencedEntityId    *uuid.UUID `json:"referenced_entity_id"`
	ReferencedAttributeId *uuid.UUID `json:"referenced_attribute_id"`
}

func (req *attributeSpecRequest) toSpec() modelgraph.AttributeSpec {
	return modelgraph.AttributeSpec{
		Id:                    req.Id,
		Name:                  req.Name,
		DataType:              req.DataType,
		IsPrimaryKey:          req.IsPrimaryKey,
		IsForeignKey:          req.IsForeignKey,
		IsUnique:              req.IsUnique,
		IsRequired:            req.IsRequired,
		DefaultValue:          req.DefaultValue,
		Length:                req.Length,
		ReferencedEntityId:    req.ReferencedEntityId,
		ReferencedAttributeId: req.ReferencedAttributeId,
	}
}

func (req *attributeSpecRequest) validate() error {
	if req.Name == "" {
		return fmt.Errorf("attribute name must be specified")
	}
	if req.DataType == "" {
		return fmt.Errorf("attribute data type must be specified")
	}
	if req.IsForeignKey && req.ReferencedEntityId == nil {
		return fmt.Errorf("foreign key attribute must name a referenced entity")
	}
	return nil
}

type createAttributeResponse struct {
	Attribute AttributeInfo `json:"attribute"`

	Relationship *RelationshipInfo `json:"relationship,omitempty"`

	// Set when the foreign key relationship could not be created; the attribute
	// itself was still inserted.
	RelationshipError string `json:"relationship_error,omitempty"`
}

func (s *ModelService) CreateAttribute(w http.ResponseWriter, r *http.Request) {
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

	var params attributeSpecRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := params.validate(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if _, err := getModelEntity(s.db, entityId, modelId, false); err != nil {
		http.Error(w, fmt.Sprintf("error creating attribute: %v", err), GetResponseCode(err))
		return
	}

	result, err := s.graph.CreateAttribute(entityId, params.toSpec())
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error creating attribute: %v", err), GetResponseCode(err))
		return
	}

	res := createAttributeResponse{Attribute: convertToAttributeInfo(&result.Attribute)}
	if result.Relationship != nil {
		info := convertToRelationshipInfo(result.Relationship)
		res.Relationship = &info
	}
	if result.RelationshipErr != nil {
		res.RelationshipError = result.RelationshipErr.Error()
	}

	utils.WriteJsonResponse(w, res)
}

type replaceAttributesRequest struct {
	Attributes []attributeSpecRequest `json:"attributes"`
}

// ReplaceAttributes swaps an entity's full attribute list for the provided one.
// Attributes omitted from the list are deleted.
func (s *ModelService) ReplaceAttributes(w http.ResponseWriter, r *http.Request) {
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

	var params replaceAttributesRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	specs := make([]modelgraph.AttributeSpec, 0, len(params.Attributes))
	for _, attribute := range params.Attributes {
		if err := attribute.validate(); err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		specs = append(specs, attribute.toSpec())
	}

	if _, err := getModelEntity(s.db, entityId, modelId, false); err != nil {
		http.Error(w, fmt.Sprintf("error replacing attributes: %v", err), GetResponseCode(err))
		return
	}

	final, err := s.graph.ReplaceAttributes(entityId, specs)
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error replacing attributes: %v", err), GetResponseCode(err))
		return
	}

	infos := make([]AttributeInfo, 0, len(final))
	for _, attribute := range final {
		infos = append(infos, convertToAttributeInfo(&attribute))
	}

	utils.WriteJsonResponse(w, infos)
}

type updateAttributeRequest struct {
	Name     *string `json:"name"`
	DataType *string `json:"data_type"`

	IsUnique   *bool `json:"is_unique"`
	IsRequired *bool `json:"is_required"`

	DefaultValue *string `json:"default_value"`
	Length       *int    `json:"length"`
}

func (s *ModelService) UpdateAttribute(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	attributeId, err := utils.URLParamUUID(r, "attribute_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateAttributeRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		attribute, err := schema.GetAttribute(attributeId, txn)
		if err != nil {
			return graphError(err)
		}

		if _, err := getModelEntity(txn, attribute.EntityId, modelId, false); err != nil {
			return err
		}

		if params.Name != nil {
			if *params.Name == "" {
				return CodedError(fmt.Errorf("attribute name must not be empty"), http.StatusBadRequest)
			}
			attribute.Name = *params.Name
		}
		if params.DataType != nil {
			if *params.DataType == "" {
				return CodedError(fmt.Errorf("attribute data type must not be empty"), http.StatusBadRequest)
			}
			attribute.DataType = *params.DataType
		}
		if params.IsUnique != nil {
			attribute.IsUnique = *params.IsUnique
		}
		if params.IsRequired != nil {
			attribute.IsRequired = *params.IsRequired
		}
		if params.DefaultValue != nil {
			attribute.DefaultValue = params.DefaultValue
		}
		if params.Length != nil {
			attribute.Length = params.Length
		}

		result := txn.Save(&attribute)
		if result.Error != nil {
			slog.Error("sql error updating attribute", "attribute_id", attributeId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating attribute: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type deleteAttributeResponse struct {
	RemovedRelationship bool `json:"removed_relationship"`
}

func (s *ModelService) DeleteAttribute(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	attributeId, err := utils.URLParamUUID(r, "attribute_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	attribute, err := schema.GetAttribute(attributeId, s.db)
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error deleting attribute: %v", err), GetResponseCode(err))
		return
	}
	if _, err := getModelEntity(s.db, attribute.EntityId, modelId, false); err != nil {
		http.Error(w, fmt.Sprintf("error deleting attribute: %v", err), GetResponseCode(err))
		return
	}

	removedRelationship, err := s.graph.DeleteAttribute(attributeId)
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error deleting attribute: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, deleteAttributeResponse{RemovedRelationship: removedRelationship})
}
