package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

// PipelineRepository handles pipeline-related database operations.
type PipelineRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPipelineRepository creates a new pipeline repository.
func NewPipelineRepository(db *sql.DB, logger *slog.Logger) *PipelineRepository {
	return &PipelineRepository{db: db, logger: logger}
}

// List returns all pipelines ordered by creation time.
func (r *PipelineRepository) List(ctx context.Context) ([]*models.Pipeline, error) {
	query := `
		SELECT
			id
		  , definition
		  , created_at
		  , updated_at
		FROM pipelines
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, persistence.NewStoreError("List", "pipeline", "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	pipelines := make([]*models.Pipeline, 0)

	for rows.Next() {
		pipeline, err := r.scanPipeline(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "pipeline", "", err)
		}

		pipelines = append(pipelines, pipeline)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewStoreError("List", "pipeline", "", err)
	}

	return pipelines, nil
}

// GetByID returns a pipeline by its ID.
func (r *PipelineRepository) GetByID(ctx context.Context, id string) (*models.Pipeline, error) {
	query := `
		SELECT
			id
		  , definition
		  , created_at
		  , updated_at
		FROM pipelines
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	pipeline, err := r.scanPipeline(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "pipeline", id, persistence.ErrPipelineNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "pipeline", id, err)
	}

	return pipeline, nil
}

// Save inserts or updates a pipeline.
func (r *PipelineRepository) Save(ctx context.Context, pipeline *models.Pipeline) error {
	now := time.Now().UTC()

	if pipeline.CreatedAt.IsZero() {
		pipeline.CreatedAt = now
	}

	pipeline.UpdatedAt = now

	if pipeline.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewStoreError("Save", "pipeline", "", fmt.Errorf("failed to generate pipeline ID: %w", err))
		}

		pipeline.ID = id.String()
	}

	definitionJSON, err := json.Marshal(pipeline.Definition)
	if err != nil {
		return persistence.NewStoreError("Save", "pipeline", pipeline.ID, fmt.Errorf("failed to marshal definition: %w", err))
	}

	query := `
		INSERT INTO pipelines (id, definition, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			definition = EXCLUDED.definition,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		pipeline.ID,
		definitionJSON,
		pipeline.CreatedAt,
		pipeline.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "pipeline", pipeline.ID, err)
	}

	return nil
}

// Delete removes a pipeline by ID.
func (r *PipelineRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM pipelines WHERE id = $1", id)
	if err != nil {
		return persistence.NewStoreError("Delete", "pipeline", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "pipeline", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewStoreError("Delete", "pipeline", id, persistence.ErrPipelineNotFound)
	}

	return nil
}

func (r *PipelineRepository) scanPipeline(scanner interface {
	Scan(dest ...any) error
}) (*models.Pipeline, error) {
	var (
		pipeline       models.Pipeline
		definitionJSON []byte
	)

	err := scanner.Scan(
		&pipeline.ID,
		&definitionJSON,
		&pipeline.CreatedAt,
		&pipeline.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(definitionJSON, &pipeline.Definition)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal definition: %w", err)
	}

	return &pipeline, nil
}
