package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hemolens/hemolens/internal/core/domain"
)

type stubReader struct {
	text string
	err  error
}

func (r *stubReader) Read(ctx context.Context, path string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}

type stubEngine struct {
	mu      sync.Mutex
	prompts []string
	respond func(prompt string) (string, error)
}

func (e *stubEngine) GenerateText(ctx context.Context, prompt string) (string, error) {
	return e.GenerateTextWithModel(ctx, prompt, "")
}

func (e *stubEngine) GenerateTextWithModel(ctx context.Context, prompt string, modelID string) (string, error) {
	e.mu.Lock()
	e.prompts = append(e.prompts, prompt)
	e.mu.Unlock()
	if e.respond != nil {
		return e.respond(prompt)
	}
	return "stage output", nil
}

func (e *stubEngine) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.prompts)
}

// testSpecialists lifts the per-minute call ceiling so sequential test
// runs do not stall on the rate limiter.
func testSpecialists() []domain.Specialist {
	specs := domain.BuiltinSpecialists()
	for i := range specs {
		specs[i].CallsPerMinute = 0
	}
	return specs
}

func newTestPipeline(t *testing.T, engine *stubEngine, reader *stubReader) *AnalysisPipeline {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	registry := domain.NewToolRegistry()
	require.NoError(t, registry.Register(NewReadBloodReportTool(reader)))
	require.NoError(t, registry.Register(NewNutritionRulesTool()))
	require.NoError(t, registry.Register(NewExerciseRulesTool()))

	return NewAnalysisPipeline(logger, engine, registry, testSpecialists(), domain.AnalysisStages())
}

func TestAnalysisPipeline_RunsStagesInOrder(t *testing.T) {
	engine := &stubEngine{}
	reader := &stubReader{text: "Hemoglobin 14.1 g/dL\nGlucose 92 mg/dL\n"}
	pipeline := newTestPipeline(t, engine, reader)

	result, err := pipeline.Run(context.Background(), "Summarise my Blood Test Report", "/tmp/report.pdf")
	require.NoError(t, err)

	titles := []string{"## Verification", "## Medical Interpretation", "## Nutrition Analysis", "## Exercise Planning"}
	last := -1
	for _, title := range titles {
		idx := strings.Index(result, title)
		require.GreaterOrEqual(t, idx, 0, "missing section %q", title)
		assert.Greater(t, idx, last, "section %q out of order", title)
		last = idx
	}

	require.Equal(t, 4, engine.callCount())
	assert.Contains(t, engine.prompts[0], "Blood Report Verifier")
	assert.Contains(t, engine.prompts[1], "Senior Experienced Doctor")
	assert.Contains(t, engine.prompts[2], "Clinical Nutrition Specialist")
	assert.Contains(t, engine.prompts[3], "Certified Fitness Coach")
}

func TestAnalysisPipeline_EmbedsReportAndQuery(t *testing.T) {
	engine := &stubEngine{}
	reader := &stubReader{text: "Hemoglobin 9.1 g/dL suggests anemia"}
	pipeline := newTestPipeline(t, engine, reader)

	_, err := pipeline.Run(context.Background(), "is my iron low?", "/tmp/r.pdf")
	require.NoError(t, err)

	for _, prompt := range engine.prompts {
		assert.Contains(t, prompt, "Hemoglobin 9.1 g/dL")
	}
	// Query placeholder expanded in the medical stage task
	assert.Contains(t, engine.prompts[1], "is my iron low?")
	// Keyword-rule tool output is surfaced to the nutrition specialist
	assert.Contains(t, engine.prompts[2], "iron-rich foods")
}

func TestAnalysisPipeline_SkipsToolsOutsideSpecialistAllowance(t *testing.T) {
	engine := &stubEngine{}
	reader := &stubReader{text: "Hemoglobin 9.1 g/dL suggests anemia"}

	// strip the nutrition rules tool from the nutritionist's allowance; the
	// stage still names it, but the specialist may no longer run it
	specs := testSpecialists()
	for i := range specs {
		if specs[i].Role == domain.RoleNutritionist {
			specs[i].AllowedTools = []string{domain.ToolReadBloodReport}
		}
	}

	registry := domain.NewToolRegistry()
	require.NoError(t, registry.Register(NewReadBloodReportTool(reader)))
	require.NoError(t, registry.Register(NewNutritionRulesTool()))
	require.NoError(t, registry.Register(NewExerciseRulesTool()))
	pipeline := NewAnalysisPipeline(slog.New(slog.DiscardHandler), engine, registry, specs, domain.AnalysisStages())

	_, err := pipeline.Run(context.Background(), "q", "/tmp/r.pdf")
	require.NoError(t, err)

	assert.NotContains(t, engine.prompts[2], "iron-rich foods")
	// the exercise specialist keeps its allowance, so its rule output is
	// still surfaced
	assert.Contains(t, engine.prompts[3], "walking")
}

func TestAnalysisPipeline_TruncatesLongReportsOnRuneBoundary(t *testing.T) {
	engine := &stubEngine{}
	// the leading single-byte rune puts every following two-byte rune across
	// the truncation offset
	long := "a" + strings.Repeat("é", 13000)
	pipeline := newTestPipeline(t, engine, &stubReader{text: long})

	_, err := pipeline.Run(context.Background(), "q", "/tmp/r.pdf")
	require.NoError(t, err)

	for i, prompt := range engine.prompts {
		assert.True(t, utf8.ValidString(prompt), "prompt %d is not valid UTF-8", i)
	}
	assert.Contains(t, engine.prompts[0], "(report truncated)")
}

func TestAnalysisPipeline_FailureNamesTheStage(t *testing.T) {
	engine := &stubEngine{
		respond: func(prompt string) (string, error) {
			if strings.Contains(prompt, "Clinical Nutrition Specialist") {
				return "", fmt.Errorf("engine unavailable")
			}
			return "ok", nil
		},
	}
	pipeline := newTestPipeline(t, engine, &stubReader{text: "report text"})

	_, err := pipeline.Run(context.Background(), "q", "/tmp/r.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stage nutrition_analysis")
	// earlier stages ran, later ones never started
	assert.Equal(t, 3, engine.callCount())
}

func TestAnalysisPipeline_ReaderFailureAbortsRun(t *testing.T) {
	engine := &stubEngine{}
	reader := &stubReader{err: fmt.Errorf("%w: boom", domain.ErrDocumentUnreadable)}
	pipeline := newTestPipeline(t, engine, reader)

	_, err := pipeline.Run(context.Background(), "q", "/tmp/r.pdf")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDocumentUnreadable)
	assert.Contains(t, err.Error(), "read blood report")
	assert.Zero(t, engine.callCount())
}

func TestAnalysisPipeline_RejectsEmptyEngineOutput(t *testing.T) {
	engine := &stubEngine{
		respond: func(string) (string, error) { return "   \n", nil },
	}
	pipeline := newTestPipeline(t, engine, &stubReader{text: "report"})

	_, err := pipeline.Run(context.Background(), "q", "/tmp/r.pdf")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty output")
}
