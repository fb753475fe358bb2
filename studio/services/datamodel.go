package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"modelstudio/studio/assistant"
	"modelstudio/studio/auth"
	"modelstudio/studio/modelgraph"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// ModelService serves the data models of a project and everything inside them:
// entities, attributes, relationships, referentials, and rules. It is mounted
// under the project router so every route carries a project_id to authorize on.
type ModelService struct {
	db    *gorm.DB
	graph *modelgraph.Graph

	// Nil when no assistant provider is configured.
	llm assistant.Provider
}

func (s *ModelService) Routes() chi.Router {
	r := chi.NewRouter()

	view := auth.ProjectPermissionOnly(s.db, auth.ViewerPermission)
	edit := auth.ProjectPermissionOnly(s.db, auth.EditorPermission)

	r.With(edit).Post("/create", s.CreateModel)
	r.With(edit).Post("/import", s.Import)
	r.With(view).Get("/list", s.List)

	r.Route("/{model_id}", func(r chi.Router) {
		r.With(view).Get("/", s.GetModel)
		r.With(view).Get("/export", s.Export)
		r.With(edit).Put("/", s.UpdateModel)
		r.With(edit).Delete("/", s.DeleteModel)

		r.With(edit).Post("/entity", s.CreateEntity)
		r.Route("/entity/{entity_id}", func(r chi.Router) {
			r.With(edit).Put("/", s.UpdateEntity)
			r.With(edit).Delete("/", s.DeleteEntity)

			r.With(edit).Post("/attribute", s.CreateAttribute)
			r.With(edit).Put("/attributes", s.ReplaceAttributes)
		})

		r.With(edit).Put("/attribute/{attribute_id}", s.UpdateAttribute)
		r.With(edit).Delete("/attribute/{attribute_id}", s.DeleteAttribute)

		r.With(edit).Post("/relationship", s.CreateRelationship)
		r.With(edit).Put("/relationship/{relationship_id}", s.UpdateRelationship)
		r.With(edit).Delete("/relationship/{relationship_id}", s.DeleteRelationship)

		r.With(edit).Post("/referential", s.CreateReferential)
		r.With(edit).Put("/referential/{referential_id}", s.UpdateReferential)
		r.With(edit).Delete("/referential/{referential_id}", s.DeleteReferential)
		r.With(edit).Post("/referential/{referential_id}/entity/{entity_id}", s.AssignReferential)
		r.With(edit).Delete("/referential/{referential_id}/entity/{entity_id}", s.UnassignReferential)

		r.With(edit).Post("/rule", s.CreateRule)
		r.With(view).Get("/rule/list", s.ListRules)
		r.With(edit).Put("/rule/{rule_id}", s.UpdateRule)
		r.With(edit).Delete("/rule/{rule_id}", s.DeleteRule)

		r.With(edit).Post("/assistant", s.Assistant)
	})

	return r
}

type createModelRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type createModelResponse struct {
	ModelId uuid.UUID `json:"model_id"`
}

func (s *ModelService) CreateModel(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params createModelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "data model name must be specified", http.StatusBadRequest)
		return
	}

	model := schema.DataModel{
		Id:          uuid.New(),
		ProjectId:   projectId,
		Name:        params.Name,
		Description: params.Description,
		Version:     params.Version,
		CreatedAt:   time.Now().UTC(),
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkProjectExists(txn, projectId); err != nil {
			return err
		}

		result := txn.Create(&model)
		if result.Error != nil {
			slog.Error("sql error creating data model", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating data model: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createModelResponse{ModelId: model.Id})
}

type DataModelInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

func convertToDataModelInfo(model *schema.DataModel) DataModelInfo {
	return DataModelInfo{
		Id:          model.Id,
		Name:        model.Name,
		Description: model.Description,
		Version:     model.Version,
		CreatedAt:   model.CreatedAt,
	}
}

func (s *ModelService) List(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var models []schema.DataModel
	result := s.db.Where("project_id = ?", projectId).Order("created_at").Find(&models)
	if result.Error != nil {
		slog.Error("sql error listing data models", "project_id", projectId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing data models: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]DataModelInfo, 0, len(models))
	for _, model := range models {
		infos = append(infos, convertToDataModelInfo(&model))
	}

	utils.WriteJsonResponse(w, infos)
}

// DataModelContents is the aggregate view the diagram editor loads in one request.
type DataModelContents struct {
	DataModelInfo

	Entities      []EntityInfo       `json:"entities"`
	Relationships []RelationshipInfo `json:"relationships"`
	Referentials  []ReferentialInfo  `json:"referentials"`
	Rules         []RuleInfo         `json:"rules"`
}

func (s *ModelService) loadContents(modelId, projectId uuid.UUID) (DataModelContents, error) {
	var contents DataModelContents

	err := s.db.Transaction(func(txn *gorm.DB) error {
		model, err := getProjectDataModel(txn, modelId, projectId)
		if err != nil {
			return err
		}
		contents.DataModelInfo = convertToDataModelInfo(&model)

		var entities []schema.Entity
		result := txn.Preload("Attributes").Where("data_model_id = ?", modelId).Order("created_at").Find(&entities)
		if result.Error != nil {
			slog.Error("sql error loading entities", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		contents.Entities = make([]EntityInfo, 0, len(entities))
		for _, entity := range entities {
			contents.Entities = append(contents.Entities, convertToEntityInfo(&entity))
		}

		var relationships []schema.Relationship
		result = txn.Where("data_model_id = ?", modelId).Find(&relationships)
		if result.Error != nil {
			slog.Error("sql error loading relationships", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		contents.Relationships = make([]RelationshipInfo, 0, len(relationships))
		for _, relationship := range relationships {
			contents.Relationships = append(contents.Relationships, convertToRelationshipInfo(&relationship))
		}

		var referentials []schema.Referential
		result = txn.Where("data_model_id = ?", modelId).Find(&referentials)
		if result.Error != nil {
			slog.Error("sql error loading referentials", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		contents.Referentials = make([]ReferentialInfo, 0, len(referentials))
		for _, referential := range referentials {
			contents.Referentials = append(contents.Referentials, convertToReferentialInfo(&referential))
		}

		var rules []schema.Rule
		result = txn.Where("data_model_id = ?", modelId).Find(&rules)
		if result.Error != nil {
			slog.Error("sql error loading rules", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		contents.Rules = make([]RuleInfo, 0, len(rules))
		for _, rule := range rules {
			info, err := convertToRuleInfo(&rule)
			if err != nil {
				return CodedError(err, http.StatusInternalServerError)
			}
			contents.Rules = append(contents.Rules, info)
		}

		return nil
	})

	return contents, err
}

func (s *ModelService) GetModel(w http.ResponseWriter, r *http.Request) {
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

	contents, err := s.loadContents(modelId, projectId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error getting data model: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, contents)
}

type updateModelRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Version     *string `json:"version"`
}

func (s *ModelService) UpdateModel(w http.ResponseWriter, r *http.Request) {
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

	var params updateModelRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		model, err := getProjectDataModel(txn, modelId, projectId)
		if err != nil {
			return err
		}

		if params.Name != nil {
			if *params.Name == "" {
				return CodedError(fmt.Errorf("data model name must not be empty"), http.StatusBadRequest)
			}
			model.Name = *params.Name
		}
		if params.Description != nil {
			model.Description = *params.Description
		}
		if params.Version != nil {
			model.Version = *params.Version
		}

		result := txn.Save(&model)
		if result.Error != nil {
			slog.Error("sql error updating data model", "data_model_id", modelId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating data model: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ModelService) DeleteModel(w http.ResponseWriter, r *http.Request) {
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

	if _, err := getProjectDataModel(s.db, modelId, projectId); err != nil {
		http.Error(w, fmt.Sprintf("error deleting data model: %v", err), GetResponseCode(err))
		return
	}

	if err := s.graph.DeleteDataModel(modelId); err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error deleting data model: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ModelService) serialize(modelId, projectId uuid.UUID) (modelgraph.SerializedModel, error) {
	contents, err := s.loadContents(modelId, projectId)
	if err != nil {
		return modelgraph.SerializedModel{}, err
	}

	serialized := modelgraph.SerializedModel{
		Name:        contents.Name,
		Description: contents.Description,
		Version:     contents.Version,
	}

	for _, entity := range contents.Entities {
		se := modelgraph.SerializedEntity{
			Id:          entity.Id.String(),
			Name:        entity.Name,
			Description: entity.Description,
			EntityType:  entity.EntityType,
			PositionX:   entity.PositionX,
			PositionY:   entity.PositionY,
		}
		if entity.ReferentialId != nil {
			se.ReferentialId = entity.ReferentialId.String()
		}
		for _, attribute := range entity.Attributes {
			sa := modelgraph.SerializedAttribute{
				Id:           attribute.Id.String(),
				Name:         attribute.Name,
				DataType:     attribute.DataType,
				IsPrimaryKey: attribute.IsPrimaryKey,
				IsForeignKey: attribute.IsForeignKey,
				IsUnique:     attribute.IsUnique,
				IsRequired:   attribute.IsRequired,
				DefaultValue: attribute.DefaultValue,
				Length:       attribute.Length,
			}
			if attribute.ReferencedEntityId != nil {
				sa.ReferencedEntityId = attribute.ReferencedEntityId.String()
			}
			se.Attributes = append(se.Attributes, sa)
		}
		serialized.Entities = append(serialized.Entities, se)
	}

	for _, relationship := range contents.Relationships {
		sr := modelgraph.SerializedRelationship{
			Id:                relationship.Id.String(),
			SourceEntityId:    relationship.SourceEntityId.String(),
			TargetEntityId:    relationship.TargetEntityId.String(),
			RelationshipType:  relationship.RelationshipType,
			SourceCardinality: relationship.SourceCardinality,
			TargetCardinality: relationship.TargetCardinality,
			Name:              relationship.Name,
		}
		if relationship.SourceAttributeId != nil {
			sr.SourceAttributeId = relationship.SourceAttributeId.String()
		}
		if relationship.TargetAttributeId != nil {
			sr.TargetAttributeId = relationship.TargetAttributeId.String()
		}
		serialized.Relationships = append(serialized.Relationships, sr)
	}

	for _, referential := range contents.Referentials {
		serialized.Referentials = append(serialized.Referentials, modelgraph.SerializedReferential{
			Id:          referential.Id.String(),
			Name:        referential.Name,
			Description: referential.Description,
			Color:       referential.Color,
		})
	}

	return serialized, nil
}

func (s *ModelService) Export(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(modelExportMetric)
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

	serialized, err := s.serialize(modelId, projectId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error exporting data model: %v", err), GetResponseCode(err))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", serialized.Name+".json"))
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(serialized); err != nil {
			slog.Error("error serializing exported model", "data_model_id", modelId, "error", err)
		}
	case "yaml":
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", serialized.Name+".yaml"))
		if err := yaml.NewEncoder(w).Encode(serialized); err != nil {
			slog.Error("error serializing exported model", "data_model_id", modelId, "error", err)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", serialized.Name+".csv"))
		if err := writeCsvExport(w, serialized); err != nil {
			slog.Error("error serializing exported model", "data_model_id", modelId, "error", err)
		}
	default:
		http.Error(w, fmt.Sprintf("unsupported export format '%v', must be 'json', 'yaml', or 'csv'", format), http.StatusBadRequest)
	}
}

// writeCsvExport flattens the model into one row per attribute. Spreadsheet
// consumers only care about the entity/attribute table, not the graph.
func writeCsvExport(w io.Writer, serialized modelgraph.SerializedModel) error {
	entityNames := make(map[string]string, len(serialized.Entities))
	for _, entity := range serialized.Entities {
		entityNames[entity.Id] = entity.Name
	}

	out := csv.NewWriter(w)

	header := []string{
		"entity", "entity_type", "attribute", "data_type",
		"is_primary_key", "is_foreign_key", "is_unique", "is_required",
		"default_value", "length", "referenced_entity",
	}
	if err := out.Write(header); err != nil {
		return err
	}

	for _, entity := range serialized.Entities {
		if len(entity.Attributes) == 0 {
			row := []string{entity.Name, entity.EntityType, "", "", "", "", "", "", "", "", ""}
			if err := out.Write(row); err != nil {
				return err
			}
			continue
		}

		for _, attribute := range entity.Attributes {
			defaultValue := ""
			if attribute.DefaultValue != nil {
				defaultValue = *attribute.DefaultValue
			}
			length := ""
			if attribute.Length != nil {
				length = strconv.Itoa(*attribute.Length)
			}

			row := []string{
				entity.Name, entity.EntityType, attribute.Name, attribute.DataType,
				strconv.FormatBool(attribute.IsPrimaryKey), strconv.FormatBool(attribute.IsForeignKey),
				strconv.FormatBool(attribute.IsUnique), strconv.FormatBool(attribute.IsRequired),
				defaultValue, length, entityNames[attribute.ReferencedEntityId],
			}
			if err := out.Write(row); err != nil {
				return err
			}
		}
	}

	out.Flush()
	return out.Error()
}

const maxImportSize = 10 << 20

func parseImportFile(file multipart.File, filename string) (modelgraph.SerializedModel, error) {
	var model modelgraph.SerializedModel

	data, err := io.ReadAll(io.LimitReader(file, maxImportSize))
	if err != nil {
		return model, fmt.Errorf("error reading import file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &model); err != nil {
			return model, fmt.Errorf("error parsing yaml import file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &model); err != nil {
			return model, fmt.Errorf("error parsing json import file: %w", err)
		}
	}

	return model, nil
}

// Import accepts either a multipart upload under the "file" field (json or yaml,
// chosen by extension) or a raw json body.
func (s *ModelService) Import(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(modelImportMetric)
	defer timer.ObserveDuration()

	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var model modelgraph.SerializedModel

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxImportSize); err != nil {
			http.Error(w, fmt.Sprintf("error parsing multipart form: %v", err), http.StatusBadRequest)
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "import requires a 'file' form field", http.StatusBadRequest)
			return
		}
		defer file.Close()

		model, err = parseImportFile(file, header.Filename)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		if !utils.ParseRequestBody(w, r, &model) {
			return
		}
	}

	if model.Name == "" {
		http.Error(w, "imported model must have a name", http.StatusBadRequest)
		return
	}
	if len(model.Entities) == 0 {
		http.Error(w, "imported model must contain at least one entity", http.StatusBadRequest)
		return
	}

	if err := checkProjectExists(s.db, projectId); err != nil {
		http.Error(w, fmt.Sprintf("error importing data model: %v", err), GetResponseCode(err))
		return
	}

	report, err := s.graph.Import(projectId, model)
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error importing data model: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, report)
}

func (s *ModelService) Assistant(w http.ResponseWriter, r *http.Request) {
	timer := prometheus.NewTimer(assistantMetric)
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

	if s.llm == nil {
		http.Error(w, "no assistant provider is configured", http.StatusServiceUnavailable)
		return
	}

	var params assistantRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Instruction == "" {
		http.Error(w, "instruction must be specified", http.StatusBadRequest)
		return
	}

	snapshot, err := s.serialize(modelId, projectId)
	if err != nil {
		http.Error(w, fmt.Sprintf("error loading model for assistant: %v", err), GetResponseCode(err))
		return
	}

	systemPrompt, err := assistant.BuildSystemPrompt(snapshot)
	if err != nil {
		http.Error(w, fmt.Sprintf("error building assistant prompt: %v", err), http.StatusInternalServerError)
		return
	}

	raw, err := s.llm.Complete(r.Context(), systemPrompt, params.History, params.Instruction)
	if err != nil {
		assistantFailures.Inc()
		slog.Error("assistant completion failed", "data_model_id", modelId, "error", err)
		utils.WriteErrorResponse(w, "assistant request failed", err, http.StatusBadGateway)
		return
	}

	reply := assistant.ParseReply(raw)
	utils.WriteJsonResponse(w, reply)
}

type assistantRequest struct {
	Instruction string              `json:"instruction"`
	History     []assistant.Message `json:"history,omitempty"`
}
