package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

const pipelinesDir = "pipelines"

// PipelineRepository stores pipelines as JSON files.
type PipelineRepository struct {
	root string
}

func (r *PipelineRepository) List(_ context.Context) ([]*models.Pipeline, error) {
	ids, err := listIDs(r.root, pipelinesDir)
	if err != nil {
		return []*models.Pipeline{}, nil
	}

	pipelines := make([]*models.Pipeline, 0, len(ids))

	for _, id := range ids {
		var pipeline models.Pipeline
		if err := readEntity(r.root, pipelinesDir, id, &pipeline); err != nil {
			return nil, persistence.NewStoreError("List", "pipeline", id, err)
		}

		pipelines = append(pipelines, &pipeline)
	}

	sort.Slice(pipelines, func(i, j int) bool {
		return pipelines[i].CreatedAt.Before(pipelines[j].CreatedAt)
	})

	return pipelines, nil
}

func (r *PipelineRepository) GetByID(_ context.Context, id string) (*models.Pipeline, error) {
	var pipeline models.Pipeline

	err := readEntity(r.root, pipelinesDir, id, &pipeline)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStoreError("GetByID", "pipeline", id, persistence.ErrPipelineNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "pipeline", id, err)
	}

	return &pipeline, nil
}

func (r *PipelineRepository) Save(_ context.Context, pipeline *models.Pipeline) error {
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

	if err := writeEntity(r.root, pipelinesDir, pipeline.ID, pipeline); err != nil {
		return persistence.NewStoreError("Save", "pipeline", pipeline.ID, err)
	}

	return nil
}

func (r *PipelineRepository) Delete(_ context.Context, id string) error {
	err := removeEntity(r.root, pipelinesDir, id)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return persistence.NewStoreError("Delete", "pipeline", id, persistence.ErrPipelineNotFound)
		}

		return persistence.NewStoreError("Delete", "pipeline", id, err)
	}

	return nil
}
