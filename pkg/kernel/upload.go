package kernel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hemolens/hemolens/internal/core/domain"
)

const defaultQuery = "Summarise my Blood Test Report"

// handleUpload accepts a multipart report upload, deduplicates it by
// content fingerprint, and runs the analysis pipeline synchronously.
// A fingerprint with an existing record short-circuits to its cached
// status: terminal records are never re-processed, and a record already
// processing never starts a second pipeline run.
// POST /upload
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid multipart form"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "file is required"})
		return
	}
	defer file.Close()

	if !strings.HasSuffix(strings.ToLower(header.Filename), ".pdf") {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "Only PDF files are supported."})
		return
	}

	content, err := io.ReadAll(file)
	if err != nil {
		s.respondJSON(w, http.StatusBadRequest, map[string]string{"detail": "failed to read upload"})
		return
	}

	query := strings.TrimSpace(r.FormValue("query"))
	if query == "" {
		query = defaultQuery
	}

	fingerprint := domain.Fingerprint(content)

	existing, err := s.store.FindJob(r.Context(), fingerprint)
	if err != nil && err != domain.ErrJobNotFound {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "failed",
			"message": err.Error(),
			"job_id":  fingerprint,
		})
		return
	}
	if existing != nil {
		s.respondCached(w, existing)
		return
	}

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "failed",
			"message": err.Error(),
			"job_id":  fingerprint,
		})
		return
	}
	filePath := filepath.Join(s.dataDir, fingerprint+".pdf")
	if err := os.WriteFile(filePath, content, 0o644); err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "failed",
			"message": err.Error(),
			"job_id":  fingerprint,
		})
		return
	}

	if err := s.store.UpsertJob(r.Context(), fingerprint, domain.JobUpdate{
		Status:    domain.Ptr(domain.JobStatusProcessing),
		Message:   domain.Ptr("Job is being processed."),
		FileName:  domain.Ptr(header.Filename),
		StartedAt: domain.Ptr(time.Now()),
	}); err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "failed",
			"message": err.Error(),
			"job_id":  fingerprint,
		})
		return
	}

	// The run must reach a terminal state even if the client disconnects
	// while it is in flight.
	result, err := s.orchestrator.Run(context.WithoutCancel(r.Context()), query, filePath, fingerprint)
	if err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "failed",
			"message": err.Error(),
			"job_id":  fingerprint,
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Analysis completed.",
		"result":  result,
		"job_id":  fingerprint,
	})
}

// respondCached maps an existing record to the upload response envelope
// without touching the pipeline.
func (s *Server) respondCached(w http.ResponseWriter, rec *domain.JobRecord) {
	switch rec.Status {
	case domain.JobStatusFinished:
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status":  "success",
			"message": "Result found in database.",
			"result":  rec.Result,
			"job_id":  rec.Fingerprint,
		})
	case domain.JobStatusProcessing:
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status":  "processing",
			"message": "Job is still processing.",
			"job_id":  rec.Fingerprint,
		})
	default:
		message := rec.Message
		if message == "" {
			message = "Job failed."
		}
		s.respondJSON(w, http.StatusOK, map[string]string{
			"status":  "failed",
			"message": message,
			"job_id":  rec.Fingerprint,
		})
	}
}

// handleTest synthesizes a placeholder document and fingerprint and runs
// the full pipeline, for smoke-testing the deployment.
// POST /test
func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	testQuery := "Analyze my blood test report"
	testFilePath := filepath.Join(s.dataDir, "sample.pdf")
	testFingerprint := fmt.Sprintf("api_test_%d", time.Now().Unix())

	s.logger.Info("starting api test", "job_id", testFingerprint)

	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Test failed: " + err.Error(),
		})
		return
	}
	if _, err := os.Stat(testFilePath); os.IsNotExist(err) {
		if err := os.WriteFile(testFilePath, []byte("%PDF-1.4\n%Dummy PDF for testing\n"), 0o644); err != nil {
			s.respondJSON(w, http.StatusInternalServerError, map[string]string{
				"status":  "error",
				"message": "Test failed: " + err.Error(),
			})
			return
		}
	}

	if err := s.store.UpsertJob(r.Context(), testFingerprint, domain.JobUpdate{
		Status:    domain.Ptr(domain.JobStatusProcessing),
		Message:   domain.Ptr("Test job is being processed."),
		TestMode:  domain.Ptr(true),
		StartedAt: domain.Ptr(time.Now()),
	}); err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Test failed: " + err.Error(),
		})
		return
	}

	result, err := s.orchestrator.Run(context.WithoutCancel(r.Context()), testQuery, testFilePath, testFingerprint)
	if err != nil {
		s.respondJSON(w, http.StatusInternalServerError, map[string]string{
			"status":  "error",
			"message": "Test failed: " + err.Error(),
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "success",
		"message": "Test job completed successfully.",
		"job_id":  testFingerprint,
		"result":  result,
		"test_parameters": map[string]string{
			"query":     testQuery,
			"file_path": testFilePath,
			"hash":      testFingerprint,
		},
	})
}
