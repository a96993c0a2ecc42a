package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/hemolens/hemolens/internal/core/domain"
	"github.com/hemolens/hemolens/internal/core/ports"
)

// Engine prompts embed the extracted report text; cap it so a scanned
// multi-page report does not blow the model context.
const maxReportChars = 24000

// AnalysisPipeline runs the fixed sequence of analysis stages over one
// document and aggregates their outputs into a single report.
//
// Stages run strictly one after another. Their engine invocations are
// independent (no stage consumes another's output), but the sequential
// order keeps failure attribution trivial: an error names the stage that
// produced it. Each specialist is bounded to MaxIterations engine calls,
// throttled by a per-specialist rate limiter.
type AnalysisPipeline struct {
	logger      *slog.Logger
	engine      ports.AnalysisEngine
	tools       *domain.ToolRegistry
	specialists map[domain.Role]domain.Specialist
	stages      []domain.StageSpec
	limiters    map[domain.Role]*rate.Limiter
}

func NewAnalysisPipeline(
	logger *slog.Logger,
	engine ports.AnalysisEngine,
	tools *domain.ToolRegistry,
	specialists []domain.Specialist,
	stages []domain.StageSpec,
) *AnalysisPipeline {
	byRole := make(map[domain.Role]domain.Specialist, len(specialists))
	limiters := make(map[domain.Role]*rate.Limiter, len(specialists))
	for _, s := range specialists {
		byRole[s.Role] = s
		limit := rate.Inf
		if s.CallsPerMinute > 0 {
			limit = rate.Every(time.Minute / time.Duration(s.CallsPerMinute))
		}
		limiters[s.Role] = rate.NewLimiter(limit, 1)
	}
	return &AnalysisPipeline{
		logger:      logger,
		engine:      engine,
		tools:       tools,
		specialists: byRole,
		stages:      stages,
		limiters:    limiters,
	}
}

// Run extracts the report text once, then drives every stage over it and
// returns the aggregated result. Any stage failure aborts the run.
func (p *AnalysisPipeline) Run(ctx context.Context, query, filePath string) (string, error) {
	reportText, err := p.tools.Execute(ctx, domain.ToolReadBloodReport, map[string]interface{}{
		"path": filePath,
	})
	if err != nil {
		return "", fmt.Errorf("read blood report: %w", err)
	}
	if len(reportText) > maxReportChars {
		cut := maxReportChars
		for cut > 0 && !utf8.RuneStart(reportText[cut]) {
			cut--
		}
		reportText = reportText[:cut] + "\n... (report truncated)"
	}

	sections := make([]string, 0, len(p.stages))
	for _, stage := range p.stages {
		out, err := p.runStage(ctx, stage, query, filePath, reportText)
		if err != nil {
			return "", fmt.Errorf("stage %s: %w", stage.Name, err)
		}
		sections = append(sections, "## "+stage.Title+"\n\n"+strings.TrimSpace(out))
		p.logger.Info("stage completed", "stage", stage.Name, "output_chars", len(out))
	}

	return strings.Join(sections, "\n\n"), nil
}

// runStage performs one specialist invocation: gather auxiliary tool
// outputs, render the prompt, and call the engine within the specialist's
// iteration and rate limits.
func (p *AnalysisPipeline) runStage(ctx context.Context, stage domain.StageSpec, query, filePath, reportText string) (string, error) {
	spec, ok := p.specialists[stage.Specialist]
	if !ok {
		return "", fmt.Errorf("no specialist configured for role %s", stage.Specialist)
	}

	allowed := p.tools.FilterByNames(spec.AllowedTools)
	toolNotes := p.gatherToolOutputs(ctx, allowed, stage, query, reportText)
	prompt := renderStagePrompt(spec, stage, query, filePath, reportText, toolNotes)

	limiter := p.limiters[spec.Role]
	iterations := spec.MaxIterations
	if iterations < 1 {
		iterations = 1
	}

	var (
		out     string
		lastErr error
	)
	for i := 0; i < iterations; i++ {
		if err := limiter.Wait(ctx); err != nil {
			return "", err
		}
		out, lastErr = p.engine.GenerateTextWithModel(ctx, prompt, spec.Model)
		if lastErr == nil {
			break
		}
		p.logger.Warn("engine invocation failed", "stage", stage.Name, "iteration", i+1, "error", lastErr)
	}
	if lastErr != nil {
		return "", lastErr
	}
	if strings.TrimSpace(out) == "" {
		return "", fmt.Errorf("engine returned empty output")
	}
	return out, nil
}

// gatherToolOutputs pre-executes the stage's auxiliary tools and returns
// their outputs for prompt inclusion. Only tools within the specialist's
// allowance run; the report reader is skipped (its text is already
// embedded), and a reference lookup failure is tolerated since citations
// only augment the medical stage.
func (p *AnalysisPipeline) gatherToolOutputs(ctx context.Context, allowed *domain.ToolRegistry, stage domain.StageSpec, query, reportText string) []string {
	var notes []string
	for _, name := range stage.Tools {
		if name == domain.ToolReadBloodReport {
			continue
		}
		if _, ok := allowed.GetTool(name); !ok {
			p.logger.Warn("tool outside specialist allowance", "tool", name, "stage", stage.Name)
			continue
		}
		switch name {
		case domain.ToolNutritionRules, domain.ToolExerciseRules:
			out, err := allowed.Execute(ctx, name, map[string]interface{}{
				"blood_report_data": reportText,
			})
			if err != nil {
				p.logger.Warn("rule tool failed", "tool", name, "stage", stage.Name, "error", err)
				continue
			}
			notes = append(notes, fmt.Sprintf("Output of %s:\n%s", name, out))
		case domain.ToolReferenceLookup:
			lookupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			out, err := allowed.Execute(lookupCtx, name, map[string]interface{}{
				"query": query,
			})
			cancel()
			if err != nil {
				p.logger.Warn("reference lookup unavailable", "stage", stage.Name, "error", err)
				continue
			}
			notes = append(notes, "External references found:\n"+out)
		}
	}
	return notes
}

func renderStagePrompt(spec domain.Specialist, stage domain.StageSpec, query, filePath, reportText string, toolNotes []string) string {
	expand := strings.NewReplacer("{query}", query, "{file_path}", filePath)

	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s.\n\n", spec.Title)
	b.WriteString(spec.Backstory)
	b.WriteString("\n\nYour goal: ")
	b.WriteString(spec.Goal)
	b.WriteString("\n\n# Task\n")
	b.WriteString(expand.Replace(stage.Description))
	b.WriteString("\n\n# Expected output\n")
	b.WriteString(expand.Replace(stage.ExpectedOutput))
	b.WriteString("\n\n# Blood test report (extracted text)\n")
	b.WriteString(reportText)
	for _, note := range toolNotes {
		b.WriteString("\n\n# Auxiliary tool output\n")
		b.WriteString(note)
	}
	b.WriteString("\n\nRespond with the expected output only.")
	return b.String()
}
