package file

import (
	"context"
	"errors"
	"os"
	"sort"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

const jobsDir = "jobs"

// JobRepository stores job snapshots as JSON files.
type JobRepository struct {
	root string
}

func (r *JobRepository) List(_ context.Context, pipelineID string) ([]*models.Job, error) {
	ids, err := listIDs(r.root, jobsDir)
	if err != nil {
		return []*models.Job{}, nil
	}

	jobs := make([]*models.Job, 0, len(ids))

	for _, id := range ids {
		var job models.Job
		if err := readEntity(r.root, jobsDir, id, &job); err != nil {
			return nil, persistence.NewStoreError("List", "job", id, err)
		}

		if pipelineID != "" && job.PipelineID != pipelineID {
			continue
		}

		jobs = append(jobs, &job)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.Before(jobs[j].StartedAt)
	})

	return jobs, nil
}

func (r *JobRepository) GetByID(_ context.Context, id string) (*models.Job, error) {
	var job models.Job

	err := readEntity(r.root, jobsDir, id, &job)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, persistence.NewStoreError("GetByID", "job", id, persistence.ErrJobNotFound)
		}

		return nil, persistence.NewStoreError("GetByID", "job", id, err)
	}

	return &job, nil
}

func (r *JobRepository) Save(_ context.Context, job *models.Job) error {
	if err := writeEntity(r.root, jobsDir, job.ID, job); err != nil {
		return persistence.NewStoreError("Save", "job", job.ID, err)
	}

	return nil
}
