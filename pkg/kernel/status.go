package kernel

import (
	"net/http"
	"time"

	"github.com/hemolens/hemolens/internal/core/domain"
)

// handleStatus returns the stored record verbatim.
// GET /status/{job_id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")

	rec, err := s.store.FindJob(r.Context(), jobID)
	if err == domain.ErrJobNotFound {
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status":  "not_found",
			"message": "Job not found.",
		})
		return
	}
	if err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	s.respondJSON(w, http.StatusOK, rec)
}

// handleJobStats reports per-status record counts.
// GET /jobs/stats
func (s *Server) handleJobStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.CountJobsByStatus(r.Context())
	if err != nil {
		s.logger.Error("failed to count jobs", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	s.logger.Info("job stats",
		"total", stats.Total, "processing", stats.Processing,
		"finished", stats.Finished, "failed", stats.Failed)

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_jobs":      stats.Total,
		"processing_jobs": stats.Processing,
		"finished_jobs":   stats.Finished,
		"failed_jobs":     stats.Failed,
		"status":          "healthy",
	})
}

// handleHealth pings the job store backend.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Error("health check failed", "error", err)
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":    "unhealthy",
			"error":     err.Error(),
			"timestamp": time.Now().Format(time.RFC3339),
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"store":     "connected",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
