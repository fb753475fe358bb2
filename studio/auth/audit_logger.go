package auth

import (
	"io"
	"log/slog"
	"modelstudio/studio/schema"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func clientIp(r *http.Request) string {
	// https://stackoverflow.com/questions/27234861/correct-way-of-getting-clients-ip-addresses-from-http-request
	if ip := r.Header.Get("X-Real-Ip"); len(ip) > 0 {
		return ip
	}
	if ip := r.Header.Get("X-Forwarded-For"); len(ip) > 0 {
		return ip
	}
	if len(r.RemoteAddr) > 0 {
		return r.RemoteAddr
	}
	return "Unknown"
}

func protocol(r *http.Request) string {
	protocol := r.Header.Get("X-Forwarded-Proto")
	if len(protocol) > 0 {
		return protocol
	}
	return r.URL.Scheme
}

func pathParams(r *http.Request) []interface{} {
	params := make([]interface{}, 0)

	ctx := r.Context()
	if ctx == nil {
		return params
	}

	rctx := chi.RouteContext(ctx)
	for i := range rctx.URLParams.Keys {
		if rctx.URLParams.Keys[i] != "*" {
			params = append(params, slog.String(rctx.URLParams.Keys[i], rctx.URLParams.Values[i]))
		}
	}

	return params
}

func queryParams(r *http.Request) []interface{} {
	params := make([]interface{}, 0)
	for k, v := range r.URL.Query() {
		params = append(params, slog.String(k, strings.Join(v, ";")))
	}
	return params
}

// AuditLogger records every authenticated request twice: as a json line on the
// configured stream, and as a request_audits row carrying the response status
// and latency. Persistence failures are logged and do not fail the request.
type AuditLogger struct {
	logger *slog.Logger
	db     *gorm.DB
}

func NewAuditLogger(stream io.Writer, db *gorm.DB) AuditLogger {
	logger := slog.New(slog.NewJSONHandler(stream, nil))
	return AuditLogger{logger: logger, db: db}
}

func (log *AuditLogger) Middleware(next http.Handler) http.Handler {
	handler := func(w http.ResponseWriter, r *http.Request) {
		user, err := UserFromContext(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		log.logger.Info("",
			"username", user.Username,
			"user_id", user.Id,
			"client_ip", clientIp(r),
			"protocol", protocol(r),
			"method", r.Method,
			"url", r.URL.Path,
			slog.Group("path_params", pathParams(r)...),
			slog.Group("query_params", queryParams(r)...),
		)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.record(r, user.Id, ww.Status(), time.Since(start))
	}
	return http.HandlerFunc(handler)
}

func (log *AuditLogger) record(r *http.Request, userId uuid.UUID, status int, latency time.Duration) {
	if log.db == nil {
		return
	}

	entry := schema.RequestAudit{
		Id:        uuid.New(),
		Path:      r.URL.Path,
		Method:    r.Method,
		Status:    status,
		LatencyMs: latency.Milliseconds(),
		ClientIp:  clientIp(r),
		UserAgent: r.UserAgent(),
		UserId:    &userId,
		CreatedAt: time.Now().UTC(),
	}

	result := log.db.Create(&entry)
	if result.Error != nil {
		slog.Error("sql error persisting request audit entry", "error", result.Error)
	}
}
