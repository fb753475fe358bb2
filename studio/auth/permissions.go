package auth

import (
	"errors"
	"fmt"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func AdminOnly(db *gorm.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if !user.IsAdmin {
				http.Error(w, fmt.Sprintf("user %v is not an admin", user.Id), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
		return http.HandlerFunc(hfn)
	}
}

type projectPermission int // Private so that no other permissions can be defined

const (
	NoPermission     projectPermission = 0
	ViewerPermission projectPermission = 1
	EditorPermission projectPermission = 2
	OwnerPermission  projectPermission = 3
)

func projectPermissionToString(perm projectPermission) string {
	switch perm {
	case NoPermission:
		return "None"
	case ViewerPermission:
		return "Viewer"
	case EditorPermission:
		return "Editor"
	case OwnerPermission:
		return "Owner"
	default:
		return "invalid permission"
	}
}

func roleToPermission(role string) projectPermission {
	switch role {
	case schema.RoleOwner:
		return OwnerPermission
	case schema.RoleEditor:
		return EditorPermission
	case schema.RoleViewer:
		return ViewerPermission
	default:
		return NoPermission
	}
}

// GetProjectPermissions resolves the permission a user holds on a project.
// Admins hold owner permission on every project without a membership row.
func GetProjectPermissions(projectId uuid.UUID, user schema.User, db *gorm.DB) (projectPermission, error) {
	if user.IsAdmin {
		return OwnerPermission, nil
	}

	_, err := schema.GetProject(projectId, db, false)
	if err != nil {
		return NoPermission, err
	}

	member, err := schema.GetProjectMember(projectId, user.Id, db)
	if err != nil {
		if errors.Is(err, schema.ErrMemberNotFound) {
			return NoPermission, nil
		}
		return NoPermission, err
	}

	return roleToPermission(member.Role), nil
}

func ProjectPermissionOnly(db *gorm.DB, minPermission projectPermission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		hfn := func(w http.ResponseWriter, r *http.Request) {
			projectId, err := utils.URLParamUUID(r, "project_id")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			user, err := UserFromContext(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			permission, err := GetProjectPermissions(projectId, user, db)
			if err != nil {
				if errors.Is(err, schema.ErrProjectNotFound) {
					http.Error(w, err.Error(), http.StatusNotFound)
					return
				}
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}

			if permission >= minPermission {
				next.ServeHTTP(w, r)
				return
			}

			required, actual := projectPermissionToString(minPermission), projectPermissionToString(permission)
			http.Error(w, fmt.Sprintf("user %v does not have required permission for project %v (required=%v, actual=%v)", user.Id, projectId, required, actual), http.StatusForbidden)
		}
		return http.HandlerFunc(hfn)
	}
}
