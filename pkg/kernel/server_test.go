package kernel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemolens/hemolens/internal/core/domain"
	"github.com/hemolens/hemolens/internal/core/ports"
	"github.com/hemolens/hemolens/internal/core/services"
)

// fileReader reads the stored upload from disk and treats anything that
// does not start with a PDF header as unreadable, mimicking extraction
// failure on corrupt documents.
type fileReader struct{}

func (fileReader) Read(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrDocumentUnreadable, err)
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		return "", fmt.Errorf("%w: pdftotext failed for %s", domain.ErrDocumentUnreadable, path)
	}
	return string(data), nil
}

type countingEngine struct {
	mu    sync.Mutex
	calls int
}

func (e *countingEngine) GenerateText(ctx context.Context, prompt string) (string, error) {
	return e.GenerateTextWithModel(ctx, prompt, "")
}

func (e *countingEngine) GenerateTextWithModel(ctx context.Context, prompt string, modelID string) (string, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	return "stage output", nil
}

func (e *countingEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type memoryStore struct {
	mu      sync.Mutex
	records map[string]*domain.JobRecord
}

func newMemoryStore() *memoryStore {
	return &memoryStore{records: make(map[string]*domain.JobRecord)}
}

func (m *memoryStore) FindJob(ctx context.Context, fingerprint string) (*domain.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[fingerprint]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *memoryStore) UpsertJob(ctx context.Context, fingerprint string, update domain.JobUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[fingerprint]
	if !ok {
		rec = &domain.JobRecord{Fingerprint: fingerprint}
		m.records[fingerprint] = rec
	}
	if update.Status != nil {
		rec.Status = *update.Status
	}
	if update.Stage != nil {
		rec.Stage = *update.Stage
	}
	if update.Message != nil {
		rec.Message = *update.Message
	}
	if update.Result != nil {
		rec.Result = *update.Result
	}
	if update.ErrorDetails != nil {
		rec.ErrorDetails = *update.ErrorDetails
	}
	if update.FileName != nil {
		rec.FileName = *update.FileName
	}
	if update.TestMode != nil {
		rec.TestMode = *update.TestMode
	}
	if update.StartedAt != nil {
		rec.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		rec.CompletedAt = update.CompletedAt
	}
	if update.FailedAt != nil {
		rec.FailedAt = update.FailedAt
	}
	return nil
}

func (m *memoryStore) CountJobsByStatus(ctx context.Context) (domain.JobStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stats domain.JobStats
	for _, rec := range m.records {
		switch rec.Status {
		case domain.JobStatusProcessing:
			stats.Processing++
		case domain.JobStatusFinished:
			stats.Finished++
		case domain.JobStatusFailed:
			stats.Failed++
		}
		stats.Total++
	}
	return stats, nil
}

func (m *memoryStore) Ping(ctx context.Context) error { return nil }

func newTestServer(t *testing.T, store *memoryStore, engine ports.AnalysisEngine) http.Handler {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	registry := domain.NewToolRegistry()
	require.NoError(t, registry.Register(services.NewReadBloodReportTool(fileReader{})))
	require.NoError(t, registry.Register(services.NewNutritionRulesTool()))
	require.NoError(t, registry.Register(services.NewExerciseRulesTool()))

	// lift the per-minute call ceiling so sequential requests do not stall
	specialists := domain.BuiltinSpecialists()
	for i := range specialists {
		specialists[i].CallsPerMinute = 0
	}

	pipeline := services.NewAnalysisPipeline(logger, engine, registry, specialists, domain.AnalysisStages())
	orchestrator := services.NewOrchestrator(logger, store, pipeline)
	return NewServer(logger, store, orchestrator, t.TempDir()).Handler()
}

func multipartUpload(t *testing.T, filename string, content []byte, query string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if query != "" {
		require.NoError(t, writer.WriteField("query", query))
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func postUpload(t *testing.T, handler http.Handler, filename string, content []byte, query string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartUpload(t, filename, content, query)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestUpload_HappyPath(t *testing.T) {
	store := newMemoryStore()
	engine := &countingEngine{}
	handler := newTestServer(t, store, engine)

	content := []byte("%PDF-1.4\nHemoglobin 9.1 g/dL suggests anemia\n")
	rr := postUpload(t, handler, "report.pdf", content, "is my iron low?")

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Analysis completed.", body["message"])
	assert.Equal(t, domain.Fingerprint(content), body["job_id"])
	assert.Contains(t, body["result"], "## Verification")

	rec, err := store.FindJob(context.Background(), domain.Fingerprint(content))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFinished, rec.Status)
	assert.Equal(t, "report.pdf", rec.FileName)
	assert.Equal(t, 4, engine.callCount())
}

func TestUpload_DuplicateShortCircuits(t *testing.T) {
	store := newMemoryStore()
	engine := &countingEngine{}
	handler := newTestServer(t, store, engine)

	content := []byte("%PDF-1.4\nGlucose 92 mg/dL\n")
	first := postUpload(t, handler, "report.pdf", content, "")
	require.Equal(t, http.StatusOK, first.Code)
	callsAfterFirst := engine.callCount()

	// same bytes under a different filename hit the cache
	second := postUpload(t, handler, "renamed.pdf", content, "")
	require.Equal(t, http.StatusOK, second.Code)
	body := decodeBody(t, second)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Result found in database.", body["message"])
	assert.NotEmpty(t, body["result"])
	assert.Equal(t, callsAfterFirst, engine.callCount())
}

// disconnectingEngine cancels the request context on its first invocation,
// modeling a client that walks away mid-run.
type disconnectingEngine struct {
	countingEngine
	cancel context.CancelFunc
}

func (e *disconnectingEngine) GenerateTextWithModel(ctx context.Context, prompt string, modelID string) (string, error) {
	e.cancel()
	return e.countingEngine.GenerateTextWithModel(ctx, prompt, modelID)
}

func TestUpload_RunsToCompletionAfterClientDisconnect(t *testing.T) {
	store := newMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	engine := &disconnectingEngine{cancel: cancel}
	handler := newTestServer(t, store, engine)

	content := []byte("%PDF-1.4\nCholesterol 240 mg/dL\n")
	body, contentType := multipartUpload(t, "report.pdf", content, "")
	req := httptest.NewRequest(http.MethodPost, "/upload", body).WithContext(ctx)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	rec, err := store.FindJob(context.Background(), domain.Fingerprint(content))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFinished, rec.Status)
	assert.NotEmpty(t, rec.Result)
	assert.Equal(t, 4, engine.callCount())
}

func TestUpload_ProcessingDuplicateDoesNotRerun(t *testing.T) {
	store := newMemoryStore()
	engine := &countingEngine{}
	handler := newTestServer(t, store, engine)

	content := []byte("%PDF-1.4\nreport body\n")
	fingerprint := domain.Fingerprint(content)
	require.NoError(t, store.UpsertJob(context.Background(), fingerprint, domain.JobUpdate{
		Status: domain.Ptr(domain.JobStatusProcessing),
	}))

	rr := postUpload(t, handler, "report.pdf", content, "")
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, "Job is still processing.", body["message"])
	assert.Zero(t, engine.callCount())
}

func TestUpload_RejectsNonPDF(t *testing.T) {
	handler := newTestServer(t, newMemoryStore(), &countingEngine{})

	rr := postUpload(t, handler, "report.txt", []byte("plain text"), "")

	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Only PDF files are supported.", body["detail"])
}

func TestUpload_CorruptDocumentRecordsFailure(t *testing.T) {
	store := newMemoryStore()
	engine := &countingEngine{}
	handler := newTestServer(t, store, engine)

	content := []byte("not a pdf at all, despite the name")
	rr := postUpload(t, handler, "report.pdf", content, "")

	require.Equal(t, http.StatusInternalServerError, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "failed", body["status"])
	assert.Equal(t, domain.Fingerprint(content), body["job_id"])

	rec, err := store.FindJob(context.Background(), domain.Fingerprint(content))
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, rec.Status)
	assert.NotEmpty(t, rec.ErrorDetails)
	assert.NotNil(t, rec.FailedAt)
	assert.Zero(t, engine.callCount())
}

func TestStatus_KnownAndUnknownJobs(t *testing.T) {
	store := newMemoryStore()
	handler := newTestServer(t, store, &countingEngine{})

	require.NoError(t, store.UpsertJob(context.Background(), "fp-known", domain.JobUpdate{
		Status:  domain.Ptr(domain.JobStatusFinished),
		Stage:   domain.Ptr(domain.StageCompleted),
		Message: domain.Ptr("Analysis complete."),
		Result:  domain.Ptr("## Verification\n\nok"),
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status/fp-known", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "finished", body["status"])
	assert.Equal(t, "completed", body["current_stage"])
	assert.Equal(t, "## Verification\n\nok", body["result"])

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/status/fp-unknown", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body = decodeBody(t, rr)
	assert.Equal(t, "not_found", body["status"])
	assert.Equal(t, "Job not found.", body["message"])
}

func TestJobStats(t *testing.T) {
	store := newMemoryStore()
	handler := newTestServer(t, store, &countingEngine{})
	ctx := context.Background()

	require.NoError(t, store.UpsertJob(ctx, "a", domain.JobUpdate{Status: domain.Ptr(domain.JobStatusFinished)}))
	require.NoError(t, store.UpsertJob(ctx, "b", domain.JobUpdate{Status: domain.Ptr(domain.JobStatusFinished)}))
	require.NoError(t, store.UpsertJob(ctx, "c", domain.JobUpdate{Status: domain.Ptr(domain.JobStatusFailed)}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/stats", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.EqualValues(t, 3, body["total_jobs"])
	assert.EqualValues(t, 2, body["finished_jobs"])
	assert.EqualValues(t, 1, body["failed_jobs"])
	assert.EqualValues(t, 0, body["processing_jobs"])
	assert.Equal(t, "healthy", body["status"])
}

func TestHealth(t *testing.T) {
	handler := newTestServer(t, newMemoryStore(), &countingEngine{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "connected", body["store"])
	assert.NotEmpty(t, body["timestamp"])
	assert.NotEmpty(t, rr.Header().Get("X-Request-Id"))
}

func TestRoot_ServiceDescription(t *testing.T) {
	handler := newTestServer(t, newMemoryStore(), &countingEngine{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "Blood Test Analyzer API", body["message"])
	assert.Equal(t, apiVersion, body["version"])
	endpoints, ok := body["endpoints"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, endpoints, "upload")
	assert.Contains(t, endpoints, "status")
}

func TestTestEndpoint_RunsPipelineOnSample(t *testing.T) {
	store := newMemoryStore()
	engine := &countingEngine{}
	handler := newTestServer(t, store, engine)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/test", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "Test job completed successfully.", body["message"])
	jobID, _ := body["job_id"].(string)
	assert.True(t, strings.HasPrefix(jobID, "api_test_"))
	assert.NotEmpty(t, body["result"])

	rec, err := store.FindJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.True(t, rec.TestMode)
	assert.Equal(t, domain.JobStatusFinished, rec.Status)
}
