package services

import (
	"log"
	"log/slog"
	"modelstudio/studio/assistant"
	"modelstudio/studio/auth"
	"modelstudio/studio/modelgraph"
	"modelstudio/studio/schema"
	"modelstudio/utils"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// Presence rows older than this are deleted outright by the sweep. The online
// listing already filters on schema.PresenceStaleAfter, so the sweep only has
// to keep the table from accumulating rows for long-gone sessions.
const presenceSweepCutoff = 10 * schema.PresenceStaleAfter

type Platform struct {
	user    UserService
	project ProjectService

	db   *gorm.DB
	stop chan bool
}

func NewPlatform(db *gorm.DB, userAuth auth.IdentityProvider, llm assistant.Provider) Platform {
	return Platform{
		user: UserService{db: db, userAuth: userAuth},
		project: ProjectService{
			db:       db,
			userAuth: userAuth,
			model: &ModelService{
				db:    db,
				graph: modelgraph.New(db),
				llm:   llm,
			},
			presence: &PresenceService{db: db},
		},
		db:   db,
		stop: make(chan bool, 1),
	}
}

func (p *Platform) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger: log.New(os.Stderr, "", log.LstdFlags), NoColor: false,
	}))

	r.Mount("/user", p.user.Routes())
	r.Mount("/project", p.project.Routes())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		utils.WriteSuccess(w)
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (p *Platform) sweepPresence() {
	cutoff := time.Now().UTC().Add(-presenceSweepCutoff)

	result := p.db.Where("last_seen < ?", cutoff).Delete(&schema.Presence{})
	if result.Error != nil {
		slog.Error("presence sweep: sql error deleting stale rows", "error", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		slog.Info("presence sweep: removed stale rows", "rows", result.RowsAffected)
	}
}

func (p *Platform) PresenceSweep(interval time.Duration) {
	slog.Info("presence sweep: starting")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.sweepPresence()
		case <-p.stop:
			slog.Info("presence sweep: process stopped")
			return
		}
	}
}

func (p *Platform) StopPresenceSweep() {
	close(p.stop)
}
