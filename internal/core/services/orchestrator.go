package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/hemolens/hemolens/internal/core/domain"
	"github.com/hemolens/hemolens/internal/core/ports"
)

// Orchestrator drives a fingerprint through its full lifecycle: it owns the
// status bookkeeping around one pipeline run and nothing else. All domain
// reasoning lives in the AnalysisPipeline.
type Orchestrator struct {
	logger   *slog.Logger
	store    ports.JobStore
	pipeline *AnalysisPipeline
}

func NewOrchestrator(logger *slog.Logger, store ports.JobStore, pipeline *AnalysisPipeline) *Orchestrator {
	return &Orchestrator{
		logger:   logger,
		store:    store,
		pipeline: pipeline,
	}
}

// Run executes the analysis pipeline for one fingerprint, persisting stage
// transitions along the way. There is exactly one failure boundary: any
// pipeline error is durably recorded (message + full diagnostic trace) and
// then returned to the caller. No retry, no cancellation mid-run.
func (o *Orchestrator) Run(ctx context.Context, query, filePath, fingerprint string) (string, error) {
	logger := o.logger.With("job_id", fingerprint, "run_id", uuid.NewString())
	logger.Info("starting analysis", "query", query, "file_path", filePath)

	if err := o.store.UpsertJob(ctx, fingerprint, domain.JobUpdate{
		Status:    domain.Ptr(domain.JobStatusProcessing),
		Stage:     domain.Ptr(domain.StageInitializing),
		Message:   domain.Ptr("Analysis in progress..."),
		StartedAt: domain.Ptr(time.Now()),
	}); err != nil {
		return "", fmt.Errorf("record processing state: %w", err)
	}

	// The specialist roster is fixed at construction; this transition is
	// kept so pollers observe the same stage sequence the system has
	// always reported.
	if err := o.store.UpsertJob(ctx, fingerprint, domain.JobUpdate{
		Stage:   domain.Ptr(domain.StageCrewCreation),
		Message: domain.Ptr("Creating analysis crew..."),
	}); err != nil {
		return "", fmt.Errorf("record crew creation state: %w", err)
	}

	if err := o.store.UpsertJob(ctx, fingerprint, domain.JobUpdate{
		Status:  domain.Ptr(domain.JobStatusProcessing),
		Stage:   domain.Ptr(domain.StageAnalysisRunning),
		Message: domain.Ptr("Running analysis..."),
	}); err != nil {
		return "", fmt.Errorf("record analysis state: %w", err)
	}

	result, err := o.pipeline.Run(ctx, query, filePath)
	if err != nil {
		o.recordFailure(ctx, logger, fingerprint, err)
		return "", err
	}

	if err := o.store.UpsertJob(ctx, fingerprint, domain.JobUpdate{
		Status:      domain.Ptr(domain.JobStatusFinished),
		Stage:       domain.Ptr(domain.StageCompleted),
		Message:     domain.Ptr("Analysis complete."),
		Result:      domain.Ptr(result),
		CompletedAt: domain.Ptr(time.Now()),
	}); err != nil {
		return "", fmt.Errorf("record finished state: %w", err)
	}

	logger.Info("analysis completed", "result_chars", len(result))
	return result, nil
}

// recordFailure writes the terminal failed record. Best effort: if the
// store itself is down the original pipeline error still propagates.
func (o *Orchestrator) recordFailure(ctx context.Context, logger *slog.Logger, fingerprint string, runErr error) {
	// The run may have failed because ctx itself was canceled; the terminal
	// record must still land, so the upsert is detached from that cancellation.
	ctx = context.WithoutCancel(ctx)

	trace := fmt.Sprintf("%v\n\n%s", runErr, debug.Stack())
	logger.Error("analysis failed", "error", runErr)

	if err := o.store.UpsertJob(ctx, fingerprint, domain.JobUpdate{
		Status:       domain.Ptr(domain.JobStatusFailed),
		Stage:        domain.Ptr(domain.StageFailed),
		Message:      domain.Ptr("Error: " + runErr.Error()),
		Result:       domain.Ptr(""),
		ErrorDetails: domain.Ptr(trace),
		FailedAt:     domain.Ptr(time.Now()),
	}); err != nil {
		logger.Error("failed to record failure state", "error", err)
	}
}
