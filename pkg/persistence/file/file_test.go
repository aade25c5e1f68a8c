package file

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
)

func newTestPersistence(t *testing.T) *Persistence {
	t.Helper()

	return NewPersistence(t.TempDir())
}

func testPipeline(id, name string) *models.Pipeline {
	return &models.Pipeline{
		ID: id,
		Definition: models.PipelineDefinition{
			Name: name,
			Blocks: []models.BlockDefinition{
				{Type: "Formatter", Config: map[string]any{"template": "{{.assistant}}"}},
			},
		},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestPipelineRepository_SaveAndGet(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	pipeline := testPipeline("pl-1", "haiku generator")
	require.NoError(t, store.Pipelines().Save(ctx, pipeline))

	loaded, err := store.Pipelines().GetByID(ctx, "pl-1")
	require.NoError(t, err)
	assert.Equal(t, "haiku generator", loaded.Definition.Name)
	require.Len(t, loaded.Definition.Blocks, 1)
	assert.Equal(t, "Formatter", loaded.Definition.Blocks[0].Type)
}

func TestPipelineRepository_SaveAssignsIDAndTimestamps(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	first := &models.Pipeline{Definition: models.PipelineDefinition{Name: "first"}}
	second := &models.Pipeline{Definition: models.PipelineDefinition{Name: "second"}}

	require.NoError(t, store.Pipelines().Save(ctx, first))
	require.NoError(t, store.Pipelines().Save(ctx, second))

	require.NotEmpty(t, first.ID)
	require.NotEmpty(t, second.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.False(t, first.UpdatedAt.IsZero())

	loaded, err := store.Pipelines().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", loaded.Definition.Name)

	loaded, err = store.Pipelines().GetByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", loaded.Definition.Name)
}

func TestPipelineRepository_SaveKeepsCreatedAt(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	created := time.Now().UTC().Add(-time.Hour)
	pipeline := testPipeline("pl-1", "haiku generator")
	pipeline.CreatedAt = created

	require.NoError(t, store.Pipelines().Save(ctx, pipeline))

	loaded, err := store.Pipelines().GetByID(ctx, "pl-1")
	require.NoError(t, err)
	assert.True(t, loaded.CreatedAt.Equal(created))
	assert.True(t, loaded.UpdatedAt.After(created))
}

func TestPipelineRepository_GetMissing(t *testing.T) {
	store := newTestPersistence(t)

	_, err := store.Pipelines().GetByID(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, persistence.IsPipelineNotFound(err))
}

func TestPipelineRepository_ListOrderedByCreation(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	older := testPipeline("pl-a", "first")
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	newer := testPipeline("pl-b", "second")

	require.NoError(t, store.Pipelines().Save(ctx, newer))
	require.NoError(t, store.Pipelines().Save(ctx, older))

	pipelines, err := store.Pipelines().List(ctx)
	require.NoError(t, err)
	require.Len(t, pipelines, 2)
	assert.Equal(t, "pl-a", pipelines[0].ID)
	assert.Equal(t, "pl-b", pipelines[1].ID)
}

func TestPipelineRepository_Delete(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, store.Pipelines().Save(ctx, testPipeline("pl-1", "doomed")))
	require.NoError(t, store.Pipelines().Delete(ctx, "pl-1"))

	_, err := store.Pipelines().GetByID(ctx, "pl-1")
	assert.True(t, persistence.IsPipelineNotFound(err))

	err = store.Pipelines().Delete(ctx, "pl-1")
	assert.True(t, persistence.IsPipelineNotFound(err))
}

func testRecord(id, jobID, pipelineID string, status models.RecordStatus, age time.Duration) *models.Record {
	return &models.Record{
		ID:         id,
		JobID:      jobID,
		PipelineID: pipelineID,
		Output:     "output of " + id,
		Status:     status,
		CreatedAt:  time.Now().UTC().Add(-age),
		UpdatedAt:  time.Now().UTC(),
	}
}

func TestRecordRepository_ListFilters(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, store.Records().Save(ctx, testRecord("r-1", "job-1", "pl-1", models.RecordStatusPending, 3*time.Hour)))
	require.NoError(t, store.Records().Save(ctx, testRecord("r-2", "job-1", "pl-1", models.RecordStatusAccepted, 2*time.Hour)))
	require.NoError(t, store.Records().Save(ctx, testRecord("r-3", "job-2", "pl-2", models.RecordStatusPending, time.Hour)))

	all, err := store.Records().List(ctx, persistence.ListRecordsOptions{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r-1", all[0].ID)

	byJob, err := store.Records().List(ctx, persistence.ListRecordsOptions{JobID: "job-1"})
	require.NoError(t, err)
	assert.Len(t, byJob, 2)

	byPipeline, err := store.Records().List(ctx, persistence.ListRecordsOptions{PipelineID: "pl-2"})
	require.NoError(t, err)
	require.Len(t, byPipeline, 1)
	assert.Equal(t, "r-3", byPipeline[0].ID)

	pending := models.RecordStatusPending
	byStatus, err := store.Records().List(ctx, persistence.ListRecordsOptions{Status: &pending})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)
}

func TestRecordRepository_Pagination(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	for i, id := range []string{"r-1", "r-2", "r-3", "r-4"} {
		record := testRecord(id, "job-1", "pl-1", models.RecordStatusPending, time.Duration(4-i)*time.Hour)
		require.NoError(t, store.Records().Save(ctx, record))
	}

	page, err := store.Records().List(ctx, persistence.ListRecordsOptions{Offset: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "r-2", page[0].ID)
	assert.Equal(t, "r-3", page[1].ID)

	past, err := store.Records().List(ctx, persistence.ListRecordsOptions{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func TestRecordRepository_DeleteAll(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	require.NoError(t, store.Records().Save(ctx, testRecord("r-1", "job-1", "pl-1", models.RecordStatusPending, 0)))
	require.NoError(t, store.Records().Save(ctx, testRecord("r-2", "job-1", "pl-1", models.RecordStatusPending, 0)))

	deleted, err := store.Records().DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, deleted)

	remaining, err := store.Records().List(ctx, persistence.ListRecordsOptions{})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRecordRepository_GetMissing(t *testing.T) {
	store := newTestPersistence(t)

	_, err := store.Records().GetByID(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, persistence.IsRecordNotFound(err))
}

func TestJobRepository_SaveAndList(t *testing.T) {
	store := newTestPersistence(t)
	ctx := context.Background()

	first := &models.Job{
		ID:         "job-1",
		PipelineID: "pl-1",
		Status:     models.JobStatusCompleted,
		StartedAt:  time.Now().UTC().Add(-time.Hour),
	}
	second := &models.Job{
		ID:         "job-2",
		PipelineID: "pl-2",
		Status:     models.JobStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	require.NoError(t, store.Jobs().Save(ctx, first))
	require.NoError(t, store.Jobs().Save(ctx, second))

	all, err := store.Jobs().List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "job-1", all[0].ID)

	filtered, err := store.Jobs().List(ctx, "pl-2")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "job-2", filtered[0].ID)

	loaded, err := store.Jobs().GetByID(ctx, "job-2")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, loaded.Status)

	_, err = store.Jobs().GetByID(ctx, "ghost")
	assert.True(t, persistence.IsJobNotFound(err))
}

func TestPersistence_HealthCheck(t *testing.T) {
	store := newTestPersistence(t)
	require.NoError(t, store.HealthCheck(context.Background()))

	missing := NewPersistence("/does/not/exist")
	assert.Error(t, missing.HealthCheck(context.Background()))
}
