package schema

import (
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrProjectNotFound      = errors.New("project not found")
	ErrMemberNotFound       = errors.New("user is not a member of project")
	ErrDataModelNotFound    = errors.New("data model not found")
	ErrEntityNotFound       = errors.New("entity not found")
	ErrAttributeNotFound    = errors.New("attribute not found")
	ErrRelationshipNotFound = errors.New("relationship not found")
	ErrReferentialNotFound  = errors.New("referential not found")
	ErrRuleNotFound         = errors.New("rule not found")
	ErrDbAccessFailed       = errors.New("db access failed")
)

func GetUser(userId uuid.UUID, db *gorm.DB) (User, error) {
	var user User

	result := db.First(&user, "id = ?", userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		slog.Error("sql error in get user", "user_id", userId, "error", result.Error)
		return user, ErrDbAccessFailed
	}

	return user, nil
}

func GetProject(projectId uuid.UUID, db *gorm.DB, loadMembers bool) (Project, error) {
	var project Project

	query := db
	if loadMembers {
		query = query.Preload("Members").Preload("Members.User")
	}
	result := query.First(&project, "id = ?", projectId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return project, ErrProjectNotFound
		}
		slog.Error("sql error in get project", "project_id", projectId, "error", result.Error)
		return project, ErrDbAccessFailed
	}

	return project, nil
}

func GetProjectMember(projectId, userId uuid.UUID, db *gorm.DB) (ProjectMember, error) {
	var member ProjectMember

	result := db.First(&member, "project_id = ? and user_id = ?", projectId, userId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return member, ErrMemberNotFound
		}
		slog.Error("sql error in get project member", "project_id", projectId, "user_id", userId, "error", result.Error)
		return member, ErrDbAccessFailed
	}

	return member, nil
}

func GetDataModel(modelId uuid.UUID, db *gorm.DB) (DataModel, error) {
	var model DataModel

	result := db.First(&model, "id = ?", modelId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return model, ErrDataModelNotFound
		}
		slog.Error("sql error in get data model", "data_model_id", modelId, "error", result.Error)
		return model, ErrDbAccessFailed
	}

	return model, nil
}

func GetEntity(entityId uuid.UUID, db *gorm.DB, loadAttributes bool) (Entity, error) {
	var entity Entity

	query := db
	if loadAttributes {
		query = query.Preload("Attributes")
	}
	result := query.First(&entity, "id = ?", entityId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return entity, ErrEntityNotFound
		}
		slog.Error("sql error in get entity", "entity_id", entityId, "error", result.Error)
		return entity, ErrDbAccessFailed
	}

	return entity, nil
}

func GetAttribute(attributeId uuid.UUID, db *gorm.DB) (Attribute, error) {
	var attribute Attribute

	result := db.First(&attribute, "id = ?", attributeId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return attribute, ErrAttributeNotFound
		}
		slog.Error("sql error in get attribute", "attribute_id", attributeId, "error", result.Error)
		return attribute, ErrDbAccessFailed
	}

	return attribute, nil
}

func GetRelationship(relationshipId uuid.UUID, db *gorm.DB) (Relationship, error) {
	var relationship Relationship

	result := db.First(&relationship, "id = ?", relationshipId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return relationship, ErrRelationshipNotFound
		}
		slog.Error("sql error in get relationship", "relationship_id", relationshipId, "error", result.Error)
		return relationship, ErrDbAccessFailed
	}

	return relationship, nil
}

func GetReferential(referentialId uuid.UUID, db *gorm.DB) (Referential, error) {
	var referential Referential

	result := db.First(&referential, "id = ?", referentialId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return referential, ErrReferentialNotFound
		}
		slog.Error("sql error in get referential", "referential_id", referentialId, "error", result.Error)
		return referential, ErrDbAccessFailed
	}

	return referential, nil
}

func GetRule(ruleId uuid.UUID, db *gorm.DB) (Rule, error) {
	var rule Rule

	result := db.First(&rule, "id = ?", ruleId)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return rule, ErrRuleNotFound
		}
		slog.Error("sql error in get rule", "rule_id", ruleId, "error", result.Error)
		return rule, ErrDbAccessFailed
	}

	return rule, nil
}

func GetUserProjectIds(userId uuid.UUID, db *gorm.DB) ([]uuid.UUID, error) {
	var members []ProjectMember
	result := db.Find(&members, "user_id = ?", userId)
	if result.Error != nil {
		slog.Error("sql error in get user project ids", "user_id", userId, "error", result.Error)
		return nil, ErrDbAccessFailed
	}
	ids := make([]uuid.UUID, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.ProjectId)
	}
	return ids, nil
}
