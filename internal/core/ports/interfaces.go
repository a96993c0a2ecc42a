package ports

import (
	"context"

	"github.com/hemolens/hemolens/internal/core/domain"
)

// JobStore abstracts the persistent job record storage (DuckDB).
//
// UpsertJob must be atomic per fingerprint: concurrent readers never observe
// a partially applied update. The store does not enforce state-machine
// legality; callers are responsible for not mutating terminal records.
type JobStore interface {
	// FindJob retrieves a record by fingerprint.
	// Returns domain.ErrJobNotFound if no record exists.
	FindJob(ctx context.Context, fingerprint string) (*domain.JobRecord, error)

	// UpsertJob merges the non-nil fields of update into the record for
	// fingerprint, creating the record if absent.
	UpsertJob(ctx context.Context, fingerprint string, update domain.JobUpdate) error

	// CountJobsByStatus returns per-status record counts.
	CountJobsByStatus(ctx context.Context) (domain.JobStats, error)

	// Ping is a liveness probe independent of job data.
	Ping(ctx context.Context) error
}

// DocumentReader extracts normalized text from a stored document.
// Failures wrap domain.ErrDocumentUnreadable.
type DocumentReader interface {
	Read(ctx context.Context, path string) (string, error)
}

// AnalysisEngine abstracts the text-generation backend (Ollama, or any
// OpenAI-compatible endpoint).
type AnalysisEngine interface {
	GenerateText(ctx context.Context, prompt string) (string, error)

	// GenerateTextWithModel uses a specific model, falling back to the
	// engine default when modelID is empty.
	GenerateTextWithModel(ctx context.Context, prompt string, modelID string) (string, error)
}
