package services

import (
	"errors"
	"log/slog"
	"modelstudio/studio/modelgraph"
	"modelstudio/studio/schema"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	return e.err.Error()
}

func (e *codedError) Unwrap() error {
	return e.err
}

func CodedError(err error, code int) error {
	return &codedError{err: err, code: code}
}

func GetResponseCode(err error) int {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return cerr.code
	}
	slog.Error("non coded error passed to GetResponseCode", "error", err)
	return http.StatusInternalServerError
}

var notFoundErrors = []error{
	schema.ErrUserNotFound, schema.ErrProjectNotFound, schema.ErrMemberNotFound,
	schema.ErrDataModelNotFound, schema.ErrEntityNotFound, schema.ErrAttributeNotFound,
	schema.ErrRelationshipNotFound, schema.ErrReferentialNotFound, schema.ErrRuleNotFound,
}

var validationErrors = []error{
	modelgraph.ErrEntityNameRequired, modelgraph.ErrEndpointModelMismatch,
	modelgraph.ErrForeignKeyTargetNotKey, modelgraph.ErrRuleDependencyCycle,
	modelgraph.ErrRuleScopeConflict,
}

// graphError assigns a response code to errors coming out of the schema and
// modelgraph layers, which are http-agnostic.
func graphError(err error) error {
	var cerr *codedError
	if errors.As(err, &cerr) {
		return err
	}

	for _, notFound := range notFoundErrors {
		if errors.Is(err, notFound) {
			return CodedError(err, http.StatusNotFound)
		}
	}

	for _, invalid := range validationErrors {
		if errors.Is(err, invalid) {
			return CodedError(err, http.StatusUnprocessableEntity)
		}
	}

	return CodedError(err, http.StatusInternalServerError)
}

func checkUserExists(txn *gorm.DB, userId uuid.UUID) error {
	if _, err := schema.GetUser(userId, txn); err != nil {
		return graphError(err)
	}
	return nil
}

func checkProjectExists(txn *gorm.DB, projectId uuid.UUID) error {
	if _, err := schema.GetProject(projectId, txn, false); err != nil {
		return graphError(err)
	}
	return nil
}

// getProjectDataModel loads a data model and verifies it belongs to the project
// named in the url, so that permission on one project cannot be used to reach
// models of another.
func getProjectDataModel(txn *gorm.DB, modelId, projectId uuid.UUID) (schema.DataModel, error) {
	model, err := schema.GetDataModel(modelId, txn)
	if err != nil {
		return model, graphError(err)
	}
	if model.ProjectId != projectId {
		return model, CodedError(schema.ErrDataModelNotFound, http.StatusNotFound)
	}
	return model, nil
}

func getModelEntity(txn *gorm.DB, entityId, modelId uuid.UUID, loadAttributes bool) (schema.Entity, error) {
	entity, err := schema.GetEntity(entityId, txn, loadAttributes)
	if err != nil {
		return entity, graphError(err)
	}
	if entity.DataModelId != modelId {
		return entity, CodedError(schema.ErrEntityNotFound, http.StatusNotFound)
	}
	return entity, nil
}
