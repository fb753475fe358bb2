package services

import (
	"fmt"
	"log/slog"
	"modelstudio/studio/auth"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ProjectService struct {
	db       *gorm.DB
	userAuth auth.IdentityProvider

	model    *ModelService
	presence *PresenceService
}

func (s *ProjectService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(s.userAuth.AuthMiddleware()...)

	r.Post("/create", s.CreateProject)
	r.Get("/list", s.List)

	r.Route("/{project_id}", func(r chi.Router) {
		r.With(auth.ProjectPermissionOnly(s.db, auth.ViewerPermission)).Get("/", s.GetProject)
		r.With(auth.ProjectPermissionOnly(s.db, auth.OwnerPermission)).Put("/", s.UpdateProject)
		r.With(auth.ProjectPermissionOnly(s.db, auth.OwnerPermission)).Delete("/", s.DeleteProject)

		r.With(auth.ProjectPermissionOnly(s.db, auth.ViewerPermission)).Get("/members", s.ListMembers)

		r.Group(func(r chi.Router) {
			r.Use(auth.ProjectPermissionOnly(s.db, auth.OwnerPermission))

			r.Post("/members/{user_id}", s.AddMember)
			r.Put("/members/{user_id}", s.UpdateMemberRole)
			r.Delete("/members/{user_id}", s.RemoveMember)
		})

		r.Mount("/presence", s.presence.Routes())
		r.Mount("/model", s.model.Routes())
	})

	return r
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type createProjectResponse struct {
	ProjectId uuid.UUID `json:"project_id"`
}

func (s *ProjectService) CreateProject(w http.ResponseWriter, r *http.Request) {
	var params createProjectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Name == "" {
		http.Error(w, "project name must be specified", http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	newProject := schema.Project{
		Id:          uuid.New(),
		Name:        params.Name,
		Description: params.Description,
		CreatedAt:   time.Now().UTC(),
		CreatedBy:   user.Id,
	}

	// The creator becomes an owner member in the same transaction so a project
	// can never exist without someone able to manage it.
	err = s.db.Transaction(func(txn *gorm.DB) error {
		result := txn.Create(&newProject)
		if result.Error != nil {
			slog.Error("sql error creating new project", "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		member := schema.ProjectMember{ProjectId: newProject.Id, UserId: user.Id, Role: schema.RoleOwner}
		result = txn.Create(&member)
		if result.Error != nil {
			slog.Error("sql error creating owner membership for new project", "project_id", newProject.Id, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error creating project: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, createProjectResponse{ProjectId: newProject.Id})
}

type ProjectInfo struct {
	Id          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

func convertToProjectInfo(project *schema.Project) ProjectInfo {
	return ProjectInfo{
		Id:          project.Id,
		Name:        project.Name,
		Description: project.Description,
		CreatedBy:   project.CreatedBy,
		CreatedAt:   project.CreatedAt,
	}
}

func (s *ProjectService) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var projects []schema.Project
	var result *gorm.DB
	if user.IsAdmin {
		result = s.db.Find(&projects)
	} else {
		projectIds, err := schema.GetUserProjectIds(user.Id, s.db)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		result = s.db.Where("id IN ?", projectIds).Find(&projects)
	}

	if result.Error != nil {
		slog.Error("sql error listing accessible projects", "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing projects: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]ProjectInfo, 0, len(projects))
	for _, project := range projects {
		infos = append(infos, convertToProjectInfo(&project))
	}

	utils.WriteJsonResponse(w, infos)
}

func (s *ProjectService) GetProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	project, err := schema.GetProject(projectId, s.db, false)
	if err != nil {
		err = graphError(err)
		http.Error(w, fmt.Sprintf("error getting project: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteJsonResponse(w, convertToProjectInfo(&project))
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (s *ProjectService) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params updateProjectRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		project, err := schema.GetProject(projectId, txn, false)
		if err != nil {
			return graphError(err)
		}

		if params.Name != nil {
			if *params.Name == "" {
				return CodedError(fmt.Errorf("project name must not be empty"), http.StatusBadRequest)
			}
			project.Name = *params.Name
		}
		if params.Description != nil {
			project.Description = *params.Description
		}

		result := txn.Save(&project)
		if result.Error != nil {
			slog.Error("sql error updating project", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating project: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ProjectService) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkProjectExists(txn, projectId); err != nil {
			return err
		}

		var modelIds []uuid.UUID
		if err := txn.Model(&schema.DataModel{}).Where("project_id = ?", projectId).Pluck("id", &modelIds).Error; err != nil {
			slog.Error("sql error listing data models of project", "project_id", projectId, "error", err)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		if len(modelIds) > 0 {
			var entityIds []uuid.UUID
			if err := txn.Model(&schema.Entity{}).Where("data_model_id IN ?", modelIds).Pluck("id", &entityIds).Error; err != nil {
				slog.Error("sql error listing entities of project", "project_id", projectId, "error", err)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}

			if len(entityIds) > 0 {
				if err := txn.Where("entity_id IN ?", entityIds).Delete(&schema.Attribute{}).Error; err != nil {
					slog.Error("sql error deleting attributes of project", "project_id", projectId, "error", err)
					return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
				}
			}

			for _, model := range []interface{}{&schema.Relationship{}, &schema.Entity{}, &schema.Referential{}, &schema.Rule{}} {
				if err := txn.Where("data_model_id IN ?", modelIds).Delete(model).Error; err != nil {
					slog.Error("sql error deleting data model contents of project", "project_id", projectId, "error", err)
					return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
				}
			}

			if err := txn.Where("project_id = ?", projectId).Delete(&schema.DataModel{}).Error; err != nil {
				slog.Error("sql error deleting data models of project", "project_id", projectId, "error", err)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		for _, model := range []interface{}{&schema.ProjectMember{}, &schema.Presence{}} {
			if err := txn.Where("project_id = ?", projectId).Delete(model).Error; err != nil {
				slog.Error("sql error deleting project memberships", "project_id", projectId, "error", err)
				return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
			}
		}

		result := txn.Delete(&schema.Project{Id: projectId})
		if result.Error != nil {
			slog.Error("sql error deleting project", "project_id", projectId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error deleting project: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

type MemberInfo struct {
	UserId   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
}

func (s *ProjectService) ListMembers(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var members []schema.ProjectMember
	result := s.db.Preload("User").Where("project_id = ?", projectId).Find(&members)
	if result.Error != nil {
		slog.Error("sql error listing project members", "project_id", projectId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing project members: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]MemberInfo, 0, len(members))
	for _, member := range members {
		info := MemberInfo{UserId: member.UserId, Role: member.Role}
		if member.User != nil {
			info.Username = member.User.Username
			info.Email = member.User.Email
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}

type memberRoleRequest struct {
	Role string `json:"role"`
}

func (s *ProjectService) AddMember(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params memberRoleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if params.Role == "" {
		params.Role = schema.RoleViewer
	}
	if err := schema.CheckValidRole(params.Role); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		if err := checkProjectExists(txn, projectId); err != nil {
			return err
		}

		if err := checkUserExists(txn, userId); err != nil {
			return err
		}

		var existing schema.ProjectMember
		result := txn.Limit(1).Find(&existing, "project_id = ? and user_id = ?", projectId, userId)
		if result.Error != nil {
			slog.Error("sql error checking for existing membership", "project_id", projectId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}
		if result.RowsAffected != 0 {
			return CodedError(fmt.Errorf("user %v is already a member of project %v", userId, projectId), http.StatusConflict)
		}

		member := schema.ProjectMember{ProjectId: projectId, UserId: userId, Role: params.Role}
		result = txn.Create(&member)
		if result.Error != nil {
			slog.Error("sql error creating project membership", "project_id", projectId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error adding project member: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func countOwners(txn *gorm.DB, projectId uuid.UUID) (int64, error) {
	var count int64
	result := txn.Model(&schema.ProjectMember{}).Where("project_id = ? and role = ?", projectId, schema.RoleOwner).Count(&count)
	if result.Error != nil {
		slog.Error("sql error counting project owners", "project_id", projectId, "error", result.Error)
		return 0, CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
	}
	return count, nil
}

func (s *ProjectService) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var params memberRoleRequest
	if !utils.ParseRequestBody(w, r, &params) {
		return
	}

	if err := schema.CheckValidRole(params.Role); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		member, err := schema.GetProjectMember(projectId, userId, txn)
		if err != nil {
			return graphError(err)
		}

		if member.Role == schema.RoleOwner && params.Role != schema.RoleOwner {
			owners, err := countOwners(txn, projectId)
			if err != nil {
				return err
			}
			if owners < 2 {
				return CodedError(fmt.Errorf("cannot demote the last owner of project %v", projectId), http.StatusUnprocessableEntity)
			}
		}

		result := txn.Model(&schema.ProjectMember{}).
			Where("project_id = ? and user_id = ?", projectId, userId).
			Update("role", params.Role)
		if result.Error != nil {
			slog.Error("sql error updating project member role", "project_id", projectId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error updating member role: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}

func (s *ProjectService) RemoveMember(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	userId, err := utils.URLParamUUID(r, "user_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = s.db.Transaction(func(txn *gorm.DB) error {
		member, err := schema.GetProjectMember(projectId, userId, txn)
		if err != nil {
			return graphError(err)
		}

		if member.Role == schema.RoleOwner {
			owners, err := countOwners(txn, projectId)
			if err != nil {
				return err
			}
			if owners < 2 {
				return CodedError(fmt.Errorf("cannot remove the last owner of project %v", projectId), http.StatusUnprocessableEntity)
			}
		}

		result := txn.Delete(&schema.ProjectMember{ProjectId: projectId, UserId: userId})
		if result.Error != nil {
			slog.Error("sql error deleting project membership", "project_id", projectId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		result = txn.Delete(&schema.Presence{ProjectId: projectId, UserId: userId})
		if result.Error != nil {
			slog.Error("sql error deleting presence of removed member", "project_id", projectId, "user_id", userId, "error", result.Error)
			return CodedError(schema.ErrDbAccessFailed, http.StatusInternalServerError)
		}

		return nil
	})

	if err != nil {
		http.Error(w, fmt.Sprintf("error removing project member: %v", err), GetResponseCode(err))
		return
	}

	utils.WriteSuccess(w)
}
