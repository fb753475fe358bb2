package services

import (
	"fmt"
	"log/slog"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ReferentialInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
}

func convertToReferentialInfo(referential *schema.Referential) ReferentialInfo {
	return ReferentialInfo{
		Id:          referential.Id,
		Name:        referential.Name,
		Description: referential.Description,
		Color:       referential.Color,
	}
}

type createReferentialRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

func (s *ModelService) CreateReferential(w http.ResponseWriter, r *http.Request) {
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

	var params createReferentialRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "referential name must be specified", http.StatusBadRequest)
		return
	}

	referential := schema.Referential{
		Id:          uuid.New(),
		DataModelId: modelId,
		Name:        params.Name,
		Description: params.Description,
		Color:       params.Color,
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if _, err := getProjectDataModel(txn, modelId, projectId); err != nil {
			return err
		}

		result := txn.Create(&referential)
		if result.Error != nil {
			slog.Error("sql error creating referential", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating referential: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToReferentialInfo(&referential))
}

type updateReferentialRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

func (s *ModelService) UpdateReferential(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	referentialId, err := utils.URLParamUUID(r, "referential_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateReferentialRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		referential, err := schema.GetReferential(referentialId, txn)
		if err != nil {
			return graphError(err)
		}
		if referential.DataModelId != modelId {
			return CodedError(schema.ErrReferentialNotFound, http.StatusNotFound)
		}

		if params.Name != nil {
			if *params.Name == "" {
				return CodedError(fmt.Errorf("referential name must not be empty"), http.StatusBadRequest)
			}
			referential.Name = *params.Name
		}
		if params.Description != nil {
			referential.Description = *params.Description
		}
		if params.Color != nil {
			referential.Color = *params.Color
		}

		result := txn.Save(&referential)
		if result.Error != nil {
			slog.Error("sql error updating referential", "referential_id", referentialId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating referential: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

// DeleteReferential detaches every entity from the referential and removes it.
// Entities are kept; only the grouping disappears.
func (s *ModelService) DeleteReferential(w http.ResponseWriter, r *http.Request) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	referentialId, err := utils.URLParamUUID(r, "referential_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	referential, err := schema.GetReferential(referentialId, s.db)
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error deleting referential: %v", err), GetResponseCode(err))
		return
	}
	if referential.DataModelId != modelId {
		http.Error(w, schema.ErrReferentialNotFound.Error(), http.StatusNotFound)
		return
	}

	if err := s.graph.DeleteReferential(referentialId); err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error deleting referential: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ModelService) AssignReferential(w http.ResponseWriter, r *http.Request) {
	s.setEntityReferential(w, r, true)
}

func (s *ModelService) UnassignReferential(w http.ResponseWriter, r *http.Request) {
	s.setEntityReferential(w, r, false)
}

func (s *ModelService) setEntityReferential(w http.ResponseWriter, r *http.Request, assign bool) {
	modelId, err := utils.URLParamUUID(r, "model_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	referentialId, err := utils.URLParamUUID(r, "referential_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entityId, err := utils.URLParamUUID(r, "entity_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		referential, err := schema.GetReferential(referentialId, txn)
		if err != nil {
			return graphError(err)
		}
		if referential.DataModelId != modelId {
			return CodedError(schema.ErrReferentialNotFound, http.StatusNotFound)
		}

		if _, err := getModelEntity(txn, entityId, modelId, false); err != nil {
			return err
		}

		var value interface{}
		if assign {
			value = referentialId
		}

		result := txn.Model(&schema.Entity{}).Where("id = ?", entityId).Update("referential_id", value)
		if result.Error != nil {
			slog.Error("sql error setting entity referential", "entity_id", entityId, "referential_id", referentialId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating entity referential: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
