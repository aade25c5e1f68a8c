// Package persistence provides the data storage abstraction for
// pipelines, records and jobs.
package persistence

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
)

// ListRecordsOptions filters record listings.
type ListRecordsOptions struct {
	PipelineID string
	JobID      string
	Status     *models.RecordStatus
	Limit      int
	Offset     int
}

// PipelineRepository stores pipeline definitions.
type PipelineRepository interface {
	List(ctx context.Context) ([]*models.Pipeline, error)
	GetByID(ctx context.Context, id string) (*models.Pipeline, error)
	Save(ctx context.Context, pipeline *models.Pipeline) error
	Delete(ctx context.Context, id string) error
}

// RecordRepository stores generated records.
type RecordRepository interface {
	List(ctx context.Context, opts ListRecordsOptions) ([]*models.Record, error)
	GetByID(ctx context.Context, id string) (*models.Record, error)
	Save(ctx context.Context, record *models.Record) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int, error)
}

// JobRepository stores job snapshots so progress survives observation
// across processes and restarts.
type JobRepository interface {
	List(ctx context.Context, pipelineID string) ([]*models.Job, error)
	GetByID(ctx context.Context, id string) (*models.Job, error)
	Save(ctx context.Context, job *models.Job) error
}

// Persistence is the storage provider contract. Implementations are
// selected by URL scheme (file://, postgres://).
type Persistence interface {
	Pipelines() PipelineRepository
	Records() RecordRepository
	Jobs() JobRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
