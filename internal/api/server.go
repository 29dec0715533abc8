// Package api provides the HTTP server for Pulse.
// It serves metric snapshots to dashboards and accepts raw tracker rows.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/pulse-metrics/pulse/internal/app/ingest"
	"github.com/pulse-metrics/pulse/internal/app/report"
	"github.com/pulse-metrics/pulse/internal/domain"
	"github.com/pulse-metrics/pulse/internal/health"
	"github.com/pulse-metrics/pulse/internal/infra/metrics"
)

// ImportLog lists past import batches.
type ImportLog interface {
	ListImports(ctx context.Context, limit int) ([]domain.ImportBatch, error)
	LastImport(ctx context.Context) (domain.ImportBatch, bool, error)
}

// Server is the Pulse HTTP API server.
type Server struct {
	reports        *report.Service
	importer       *ingest.Importer
	imports        ImportLog       // nil disables /api/imports
	health         *health.Checker // nil disables /api/health/checks
	metricsEnabled bool
	version        string
}

// NewServer creates a new API server.
func NewServer(reports *report.Service, importer *ingest.Importer) *Server {
	return &Server{reports: reports, importer: importer, version: "dev"}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth sets the checker served at /api/health/checks.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetImportLog sets the import history served at /api/imports and the
// last import reported by /api/challenge.
func (s *Server) SetImportLog(l ImportLog) { s.imports = l }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/funnel", s.handleFunnel)
		r.Get("/streaks", s.handleStreaks)
		r.Get("/projection", s.handleProjection)
		r.Get("/achievements", s.handleAchievements)
		r.Get("/achievements/catalog", s.handleCatalog)
		r.Get("/summary", s.handleSummary)
		r.Get("/challenge", s.handleChallenge)

		r.Post("/records/daily", s.handleImportDaily)
		r.Post("/records/habits", s.handleImportHabits)

		if s.imports != nil {
			r.Get("/imports", s.handleImports)
		}
		if s.health != nil {
			r.Get("/health/checks", s.handleHealthChecks)
		}
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps configuration mistakes to 400 and everything else to 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidConfig), errors.Is(err, domain.ErrInvalidMapping):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger logs each request and records it in the HTTP metrics, keyed
// by the matched route pattern so that path parameters do not explode
// label cardinality.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		began := time.Now()
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(began)

		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())

		log.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     status,
			"duration":   elapsed.String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("http request")
	})
}
