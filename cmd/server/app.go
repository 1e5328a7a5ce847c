package main

import (
	"context"
	"net/http"
	"time"

	"github.com/diewo77/go-quotations/auth"
	"github.com/diewo77/go-quotations/httpx"
	"github.com/diewo77/go-quotations/internal/handlers"
	"github.com/diewo77/go-quotations/internal/policy"
	"github.com/diewo77/go-quotations/internal/services"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const requestIDHeader = "X-Request-ID"

// App is the main application handler that sets up all routes.
type App struct {
	mux *http.ServeMux
	db  *gorm.DB
	log *logrus.Logger
}

// NewApp creates a new application with all routes configured.
func NewApp(db *gorm.DB, svc *services.QuotationService, log *logrus.Logger) *App {
	app := &App{
		mux: http.NewServeMux(),
		db:  db,
		log: log,
	}
	app.mux.HandleFunc("GET /healthz", app.health)
	handlers.NewQuotationHandler(svc, policy.NewGate(), log).Register(app.mux)
	return app
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	auth.Middleware(withLogging(a.log, a.mux)).ServeHTTP(w, r)
}

func (a *App) health(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := a.db.DB()
	if err == nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		httpx.JSONError(w, http.StatusServiceUnavailable, "database_unavailable", nil)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// withLogging tags each request with an id and logs it once served.
func withLogging(log *logrus.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := logrus.Fields{
			"request_id": id,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(start).String(),
		}
		if uid, ok := auth.UserIDFromContext(r.Context()); ok {
			fields["actor"] = uid
		}
		log.WithFields(fields).Info("request")
	})
}
