// Package duckdb persists job records in an embedded DuckDB database.
package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/hemolens/hemolens/internal/core/domain"
	"github.com/hemolens/hemolens/internal/core/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	fingerprint   VARCHAR PRIMARY KEY,
	status        VARCHAR,
	stage         VARCHAR,
	message       VARCHAR,
	result        VARCHAR,
	error_details VARCHAR,
	file_name     VARCHAR,
	test_mode     BOOLEAN,
	started_at    TIMESTAMP,
	completed_at  TIMESTAMP,
	failed_at     TIMESTAMP
);`

// Repository implements ports.JobStore on DuckDB. Upserts are single
// INSERT ... ON CONFLICT statements, so a partial update is applied
// atomically per fingerprint and never visible half-written.
type Repository struct {
	db *sql.DB
}

var _ ports.JobStore = (*Repository)(nil)

func NewRepository(path string) (*Repository, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb at %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) FindJob(ctx context.Context, fingerprint string) (*domain.JobRecord, error) {
	query := `SELECT fingerprint, status, stage, message, result, error_details, file_name, test_mode, started_at, completed_at, failed_at
		FROM jobs WHERE fingerprint = ?`
	row := r.db.QueryRowContext(ctx, query, fingerprint)

	var rec domain.JobRecord
	var status string
	var stage, message, result, errDetails, fileName sql.NullString
	var testMode sql.NullBool
	var startedAt, completedAt, failedAt sql.NullTime
	err := row.Scan(
		&rec.Fingerprint, &status, &stage, &message, &result, &errDetails,
		&fileName, &testMode, &startedAt, &completedAt, &failedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	rec.Status = domain.JobStatus(status)
	rec.Stage = stage.String
	rec.Message = message.String
	rec.Result = result.String
	rec.ErrorDetails = errDetails.String
	rec.FileName = fileName.String
	rec.TestMode = testMode.Bool
	if startedAt.Valid {
		t := startedAt.Time
		rec.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		rec.CompletedAt = &t
	}
	if failedAt.Valid {
		t := failedAt.Time
		rec.FailedAt = &t
	}
	return &rec, nil
}

func (r *Repository) UpsertJob(ctx context.Context, fingerprint string, update domain.JobUpdate) error {
	// COALESCE(excluded.x, jobs.x) keeps the stored value when the update
	// does not name the field. Lifecycle updates only ever add or replace
	// fields, never clear them to NULL.
	query := `
	INSERT INTO jobs (fingerprint, status, stage, message, result, error_details, file_name, test_mode, started_at, completed_at, failed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (fingerprint) DO UPDATE SET
		status        = COALESCE(excluded.status, jobs.status),
		stage         = COALESCE(excluded.stage, jobs.stage),
		message       = COALESCE(excluded.message, jobs.message),
		result        = COALESCE(excluded.result, jobs.result),
		error_details = COALESCE(excluded.error_details, jobs.error_details),
		file_name     = COALESCE(excluded.file_name, jobs.file_name),
		test_mode     = COALESCE(excluded.test_mode, jobs.test_mode),
		started_at    = COALESCE(excluded.started_at, jobs.started_at),
		completed_at  = COALESCE(excluded.completed_at, jobs.completed_at),
		failed_at     = COALESCE(excluded.failed_at, jobs.failed_at);
	`

	var status *string
	if update.Status != nil {
		s := string(*update.Status)
		status = &s
	}

	_, err := r.db.ExecContext(ctx, query,
		fingerprint, status, update.Stage, update.Message, update.Result,
		update.ErrorDetails, update.FileName, update.TestMode,
		toNullTime(update.StartedAt), toNullTime(update.CompletedAt), toNullTime(update.FailedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", fingerprint, err)
	}
	return nil
}

func (r *Repository) CountJobsByStatus(ctx context.Context) (domain.JobStats, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return domain.JobStats{}, err
	}
	defer rows.Close()

	var stats domain.JobStats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return domain.JobStats{}, err
		}
		switch domain.JobStatus(status) {
		case domain.JobStatusProcessing:
			stats.Processing = count
		case domain.JobStatusFinished:
			stats.Finished = count
		case domain.JobStatusFailed:
			stats.Failed = count
		}
		stats.Total += count
	}
	return stats, rows.Err()
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
