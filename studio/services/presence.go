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

// PresenceService tracks which members are currently looking at a project.
// Clients send periodic heartbeats; anyone whose last heartbeat is older than
// schema.PresenceStaleAfter is reported offline.
type PresenceService struct {
	db *gorm.DB
}

func (s *PresenceService) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(auth.ProjectPermissionOnly(s.db, auth.ViewerPermission))

	r.Post("/heartbeat", s.Heartbeat)
	r.Delete("/", s.Offline)
	r.Get("/", s.Online)

	return r
}

func (s *PresenceService) Heartbeat(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	presence := schema.Presence{ProjectId: projectId, UserId: user.Id, LastSeen: time.Now().UTC()}
	result := s.db.Save(&presence)
	if result.Error != nil {
		slog.Error("sql error recording presence heartbeat", "project_id", projectId, "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error recording heartbeat: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}

func (s *PresenceService) Offline(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := auth.UserFromContext(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	result := s.db.Delete(&schema.Presence{ProjectId: projectId, UserId: user.Id})
	if result.Error != nil {
		slog.Error("sql error removing presence entry", "project_id", projectId, "user_id", user.Id, "error", result.Error)
		http.Error(w, fmt.Sprintf("error going offline: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	utils.WriteSuccess(w)
}

type PresenceInfo struct {
	UserId   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	LastSeen time.Time `json:"last_seen"`
}

func (s *PresenceService) Online(w http.ResponseWriter, r *http.Request) {
	projectId, err := utils.URLParamUUID(r, "project_id")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	cutoff := time.Now().UTC().Add(-schema.PresenceStaleAfter)

	var entries []schema.Presence
	result := s.db.Preload("User").Where("project_id = ? and last_seen > ?", projectId, cutoff).Find(&entries)
	if result.Error != nil {
		slog.Error("sql error listing online members", "project_id", projectId, "error", result.Error)
		http.Error(w, fmt.Sprintf("error listing online members: %v", schema.ErrDbAccessFailed), http.StatusInternalServerError)
		return
	}

	infos := make([]PresenceInfo, 0, len(entries))
	for _, entry := range entries {
		info := PresenceInfo{UserId: entry.UserId, LastSeen: entry.LastSeen}
		if entry.User != nil {
			info.Username = entry.User.Username
		}
		infos = append(infos, info)
	}

	utils.WriteJsonResponse(w, infos)
}
