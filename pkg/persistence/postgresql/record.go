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

// RecordRepository handles record-related database operations.
type RecordRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *sql.DB, logger *slog.Logger) *RecordRepository {
	return &RecordRepository{db: db, logger: logger}
}

// List returns records matching the given filters, newest first.
func (r *RecordRepository) List(ctx context.Context, opts persistence.ListRecordsOptions) ([]*models.Record, error) {
	query := `
		SELECT
			id
		  , job_id
		  , pipeline_id
		  , output
		  , metadata
		  , status
		  , failed
		  , error
		  , trace
		  , created_at
		  , updated_at
		FROM records
		WHERE 1=1
	`

	args := make([]any, 0, 5)

	if opts.PipelineID != "" {
		args = append(args, opts.PipelineID)
		query += fmt.Sprintf(" AND pipeline_id = $%d", len(args))
	}

	if opts.JobID != "" {
		args = append(args, opts.JobID)
		query += fmt.Sprintf(" AND job_id = $%d", len(args))
	}

	if opts.Status != nil {
		args = append(args, string(*opts.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence.NewStoreError("List", "record", "", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	records := make([]*models.Record, 0)

	for rows.Next() {
		record, err := r.scanRecord(rows)
		if err != nil {
			return nil, persistence.NewStoreError("List", "record", "", err)
		}

		records = append(records, record)
	}

	err = rows.Err()
	if err != nil {
		return nil, persistence.NewStoreError("List", "record", "", err)
	}

	return records, nil
}

// GetByID returns a record by its ID.
func (r *RecordRepository) GetByID(ctx context.Context, id string) (*models.Record, error) {
	query := `
		SELECT
			id
		  , job_id
		  , pipeline_id
		  , output
		  , metadata
		  , status
		  , failed
		  , error
		  , trace
		  , created_at
		  , updated_at
		FROM records
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)

	record, err := r.scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewStoreError("GetByID", "record", id, persistence.ErrRecordNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "record", id, err)
	}

	return record, nil
}

// Save inserts or updates a record.
func (r *RecordRepository) Save(ctx context.Context, record *models.Record) error {
	now := time.Now().UTC()

	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	record.UpdatedAt = now

	if record.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return persistence.NewStoreError("Save", "record", "", fmt.Errorf("failed to generate record ID: %w", err))
		}

		record.ID = id.String()
	}

	metadataJSON, err := json.Marshal(record.Metadata)
	if err != nil {
		return persistence.NewStoreError("Save", "record", record.ID, fmt.Errorf("failed to marshal metadata: %w", err))
	}

	traceJSON, err := json.Marshal(record.Trace)
	if err != nil {
		return persistence.NewStoreError("Save", "record", record.ID, fmt.Errorf("failed to marshal trace: %w", err))
	}

	query := `
		INSERT INTO records (id, job_id, pipeline_id, output, metadata, status, failed, error, trace, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			output = EXCLUDED.output,
			metadata = EXCLUDED.metadata,
			status = EXCLUDED.status,
			failed = EXCLUDED.failed,
			error = EXCLUDED.error,
			trace = EXCLUDED.trace,
			updated_at = EXCLUDED.updated_at
	`

	_, err = r.db.ExecContext(ctx, query,
		record.ID,
		nullableString(record.JobID),
		nullableString(record.PipelineID),
		record.Output,
		metadataJSON,
		record.Status,
		record.Failed,
		nullableString(record.Error),
		traceJSON,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return persistence.NewStoreError("Save", "record", record.ID, err)
	}

	return nil
}

// Delete removes a record by ID.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM records WHERE id = $1", id)
	if err != nil {
		return persistence.NewStoreError("Delete", "record", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewStoreError("Delete", "record", id, err)
	}

	if rowsAffected == 0 {
		return persistence.NewStoreError("Delete", "record", id, persistence.ErrRecordNotFound)
	}

	return nil
}

// DeleteAll removes every record and returns how many were deleted.
func (r *RecordRepository) DeleteAll(ctx context.Context) (int, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM records")
	if err != nil {
		return 0, persistence.NewStoreError("DeleteAll", "record", "", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, persistence.NewStoreError("DeleteAll", "record", "", err)
	}

	return int(rowsAffected), nil
}

func (r *RecordRepository) scanRecord(scanner interface {
	Scan(dest ...any) error
}) (*models.Record, error) {
	var (
		record                  models.Record
		jobID, pipelineID       sql.NullString
		errorMessage            sql.NullString
		metadataJSON, traceJSON []byte
	)

	err := scanner.Scan(
		&record.ID,
		&jobID,
		&pipelineID,
		&record.Output,
		&metadataJSON,
		&record.Status,
		&record.Failed,
		&errorMessage,
		&traceJSON,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.JobID = jobID.String
	record.PipelineID = pipelineID.String
	record.Error = errorMessage.String

	if metadataJSON != nil {
		err := json.Unmarshal(metadataJSON, &record.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if traceJSON != nil {
		err := json.Unmarshal(traceJSON, &record.Trace)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal trace: %w", err)
		}
	}

	return &record, nil
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
