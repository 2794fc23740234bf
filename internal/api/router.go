package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/trifund/internal/api/handlers"
	"github.com/wonny/trifund/pkg/database"
	"github.com/wonny/trifund/pkg/logger"
	"github.com/wonny/trifund/pkg/metrics"
)

// HealthChecker reports backing store health
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// Routes bundles everything the router mounts; nil members are skipped
type Routes struct {
	Portfolio *handlers.PortfolioHandler
	Runs      *handlers.RunHandler
	Config    *handlers.ConfigHandler
	Audit     *handlers.AuditHandler
	Stream    *Hub
	Metrics   *metrics.Registry
	Health    HealthChecker
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler(routes.Health)).Methods("GET")

	if routes.Metrics != nil {
		r.Handle("/metrics", routes.Metrics.Handler()).Methods("GET")
	}

	if routes.Stream != nil {
		r.Handle("/ws/portfolio", routes.Stream).Methods("GET")
	}

	// API v1
	api := r.PathPrefix("/api/v1").Subrouter()

	if routes.Portfolio != nil {
		api.HandleFunc("/portfolio/latest", routes.Portfolio.GetLatest).Methods("GET")
		api.HandleFunc("/portfolio/latest/{strategy}", routes.Portfolio.GetLatestStrategy).Methods("GET")
		api.HandleFunc("/portfolio/{runID}", routes.Portfolio.GetByRunID).Methods("GET")
		api.HandleFunc("/runs", routes.Portfolio.ListRuns).Methods("GET")
	}

	if routes.Runs != nil {
		api.HandleFunc("/runs", routes.Runs.Trigger).Methods("POST")
		api.HandleFunc("/runs/current", routes.Runs.Current).Methods("GET")
	}

	if routes.Config != nil {
		api.HandleFunc("/config", routes.Config.Get).Methods("GET")
	}

	if routes.Audit != nil {
		api.HandleFunc("/config/{hash}", routes.Audit.GetConfigSnapshot).Methods("GET")
		api.HandleFunc("/runs/{runID}/report", routes.Audit.GetRunReport).Methods("GET")
	}

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := map[string]interface{}{
			"status":  "ok",
			"service": "trifund-api",
		}
		status := http.StatusOK

		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
			defer cancel()

			db, err := checker.HealthCheck(ctx)
			body["database"] = db
			if err != nil {
				body["status"] = "degraded"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
