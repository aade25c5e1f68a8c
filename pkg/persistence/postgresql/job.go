package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

// JobRepository handles job-related database operations.
type JobRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sql.DB, logger *slog.Logger) *JobRepository {
	return &JobRepository{db: db, logger: logger}
}

// List returns job snapshots, newest first. An empty pipelineID returns
// jobs for every pipeline.
func (r *JobRepository) List(ctx context.Context, pipelineID string) ([]*models.Job, error) {
	query := `
		SELECT
			id
		  , pipeline_id
		  , status
		  , progress
		  , current_seed
		  , total_seeds
		  , current_block
		  , records_generated
		  , records_failed
		  , error
		  , started_at
		  , completed_at
		FROM jobs
	`

	args := make([]any, 0, 1)

	if pipelineID != "" {
		args = append(args, pipelineID)
		query += " WHERE pipeline_id = $1"
	}

	query += " ORDER BY started_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("List", "job", "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	jobs := make([]*models.Job, 0)

	for rows.Next() {
		job, err := r.scanJob(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "job", "", err)
		}

		jobs = append(jobs, job)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewStoreError("List", "job", "", err)
	}

	return jobs, nil
}

// GetByID returns a job by its ID.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*models.Job, error) {
	query := `
		SELECT
			id
		  , pipeline_id
		  , status
		  , progress
		  , current_seed
		  , total_seeds
		  , current_block
		  , records_generated
		  , records_failed
		  , error
		  , started_at
		  , completed_at
		FROM jobs
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	job, err := r.scanJob(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "job", id, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "job", id, err)
	}

	return job, nil
}

// Save inserts or updates a job snapshot.
func (r *JobRepository) Save(ctx context.Context, job *models.Job) error {
	if job.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewStoreError("Save", "job", "", fmt.Errorf("failed to generate job ID: %w", err))
		}

		job.ID = id.String()
	}

	query := `
		INSERT INTO jobs (id, pipeline_id, status, progress, current_seed, total_seeds,
			current_block, records_generated, records_failed, error, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			progress = EXCLUDED.progress,
			current_seed = EXCLUDED.current_seed,
			total_seeds = EXCLUDED.total_seeds,
			current_block = EXCLUDED.current_block,
			records_generated = EXCLUDED.records_generated,
			records_failed = EXCLUDED.records_failed,
			error = EXCLUDED.error,
			completed_at = EXCLUDED.completed_at
	`

	_, err := r.db.ExecContext(ctx, query,
		job.ID,
		job.PipelineID,
		job.Status,
		job.Progress,
		job.CurrentSeed,
		job.TotalSeeds,
		nullableString(job.CurrentBlock),
		job.RecordsGenerated,
		job.RecordsFailed,
		nullableString(job.Error),
		job.StartedAt,
		job.CompletedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "job", job.ID, err)
	}

	return nil
}

func (r *JobRepository) scanJob(scanner interface {
	Scan(dest ...any) error
}) (*models.Job, error) {
	var (
		job          models.Job
		currentBlock sql.NullString
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := scanner.Scan(
		&job.ID,
		&job.PipelineID,
		&job.Status,
		&job.Progress,
		&job.CurrentSeed,
		&job.TotalSeeds,
		&currentBlock,
		&job.RecordsGenerated,
		&job.RecordsFailed,
		&errorMessage,
		&job.StartedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	job.CurrentBlock = currentBlock.String
	job.Error = errorMessage.String

	if completedAt.Valid {
		completed := completedAt.Time
		job.CompletedAt = &completed
	}

	return &job, nil
}
