// Package kernel exposes the ingress HTTP API: upload, status, stats,
// health. It delegates all real work to the fingerprinting, job store, and
// orchestrator components.
package kernel

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/hemolens/hemolens/internal/core/ports"
	"github.com/hemolens/hemolens/internal/core/services"
)

const apiVersion = "1.0.0"

type Server struct {
	logger       *slog.Logger
	store        ports.JobStore
	orchestrator *services.Orchestrator
	dataDir      string
}

func NewServer(logger *slog.Logger, store ports.JobStore, orchestrator *services.Orchestrator, dataDir string) *Server {
	return &Server{
		logger:       logger,
		store:        store,
		orchestrator: orchestrator,
		dataDir:      dataDir,
	}
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /status/{job_id}", s.handleStatus)
	mux.HandleFunc("GET /jobs/stats", s.handleJobStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /test", s.handleTest)
	mux.HandleFunc("GET /{$}", s.handleRoot)

	return s.withRequestID(mux)
}

// withRequestID tags every request with a correlation id for log grouping.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		w.Header().Set("X-Request-Id", reqID)
		s.logger.Info("request", "method", r.Method, "path", r.URL.Path, "request_id", reqID)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// handleRoot serves the static service description.
// GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Blood Test Analyzer API",
		"version": apiVersion,
		"endpoints": map[string]string{
			"upload":     "/upload - POST - Upload PDF for analysis",
			"status":     "/status/{job_id} - GET - Check job status",
			"health":     "/health - GET - Health check",
			"jobs_stats": "/jobs/stats - GET - Job statistics",
			"test":       "/test - POST - Test with sample data",
		},
	})
}
