package jobs_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/jobs"
	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/persistence/file"
	"github.com/loomhq/loom/pkg/pipeline"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/registry"
)

type stubBlock struct {
	execute func(ctx context.Context, state map[string]any) (map[string]any, error)
}

func (b *stubBlock) Execute(ctx context.Context, state map[string]any) (map[string]any, error) {
	return b.execute(ctx, state)
}

type stubFactory struct {
	id      string
	outputs []string
	execute func(ctx context.Context, state map[string]any) (map[string]any, error)
}

func (f *stubFactory) Create(_ map[string]any) (protocol.Block, error) {
	return &stubBlock{execute: f.execute}, nil
}

func (f *stubFactory) ID() string                   { return f.id }
func (f *stubFactory) Name() string                 { return f.id }
func (f *stubFactory) Description() string          { return "test block" }
func (f *stubFactory) Inputs() models.InputContract { return models.AllAvailable() }
func (f *stubFactory) Outputs() []string            { return f.outputs }
func (f *stubFactory) Schema() *models.JSONSchema   { return nil }

type testHarness struct {
	manager *jobs.Manager
	store   persistence.Persistence
	pl      *models.Pipeline
}

// echoFactory emits pipeline_output derived from the seed metadata.
func echoFactory() *stubFactory {
	return &stubFactory{
		id:      "Echo",
		outputs: []string{"pipeline_output"},
		execute: func(_ context.Context, state map[string]any) (map[string]any, error) {
			name, _ := state["name"].(string)

			return map[string]any{"pipeline_output": "hello " + name}, nil
		},
	}
}

func newHarness(t *testing.T, factories ...*stubFactory) *testHarness {
	t.Helper()

	logger := log.Discard()
	reg := registry.NewRegistry(logger)

	if len(factories) == 0 {
		factories = []*stubFactory{echoFactory()}
	}

	for _, factory := range factories {
		reg.RegisterBlock(factory)
	}

	store := file.NewPersistence(t.TempDir())
	executor := pipeline.NewExecutor(reg, logger)
	manager := jobs.NewManager(logger, reg, executor, store, nil)

	return &testHarness{
		manager: manager,
		store:   store,
		pl: &models.Pipeline{
			ID: "pl-1",
			Definition: models.PipelineDefinition{
				Name:   "echo pipeline",
				Blocks: []models.BlockDefinition{{Type: factories[0].id}},
			},
		},
	}
}

func waitForTerminal(t *testing.T, manager *jobs.Manager, jobID string) *models.Job {
	t.Helper()

	var job *models.Job

	require.Eventually(t, func() bool {
		var err error

		job, err = manager.Status(context.Background(), jobID)

		return err == nil && job.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)

	return job
}

func TestManagerSubmit_SeedsTimesRepetitions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seeds := []models.SeedInput{
		{Repetitions: 3, Metadata: map[string]any{"name": "alpha"}},
		{Repetitions: 2, Metadata: map[string]any{"name": "beta"}},
	}

	job, err := h.manager.Submit(ctx, h.pl, seeds)
	require.NoError(t, err)
	assert.Equal(t, 5, job.TotalSeeds)

	done := waitForTerminal(t, h.manager, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 5, done.RecordsGenerated)
	assert.Equal(t, 0, done.RecordsFailed)
	assert.InDelta(t, 1.0, done.Progress, 0.0001)
	require.NotNil(t, done.CompletedAt)

	records, err := h.store.Records().List(ctx, persistence.ListRecordsOptions{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, records, 5)

	outputs := map[string]int{}
	for _, record := range records {
		outputs[record.Output]++

		assert.Equal(t, models.RecordStatusPending, record.Status)
		assert.False(t, record.Failed)
		assert.Len(t, record.Trace, 1)
	}

	assert.Equal(t, 3, outputs["hello alpha"])
	assert.Equal(t, 2, outputs["hello beta"])
}

func TestManagerSubmit_ConflictWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})

	var once sync.Once

	slow := &stubFactory{
		id:      "Slow",
		outputs: []string{"pipeline_output"},
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			once.Do(func() { close(started) })
			<-release

			return map[string]any{"pipeline_output": "done"}, nil
		},
	}

	h := newHarness(t, slow)
	ctx := context.Background()

	seeds := []models.SeedInput{{Repetitions: 1, Metadata: map[string]any{}}}

	job, err := h.manager.Submit(ctx, h.pl, seeds)
	require.NoError(t, err)

	<-started

	_, err = h.manager.Submit(ctx, h.pl, seeds)
	require.Error(t, err)
	assert.True(t, jobs.IsConflict(err))

	var conflict *jobs.ConflictError

	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, job.ID, conflict.ActiveJobID)

	close(release)
	waitForTerminal(t, h.manager, job.ID)

	// The slot is released after completion.
	next, err := h.manager.Submit(ctx, h.pl, seeds)
	require.NoError(t, err)
	waitForTerminal(t, h.manager, next.ID)
}

func TestManagerCancel_StopsBetweenRuns(t *testing.T) {
	release := make(chan struct{}, 100)
	started := make(chan struct{}, 100)

	gated := &stubFactory{
		id:      "Gated",
		outputs: []string{"pipeline_output"},
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			started <- struct{}{}
			<-release

			return map[string]any{"pipeline_output": "done"}, nil
		},
	}

	h := newHarness(t, gated)
	ctx := context.Background()

	seeds := []models.SeedInput{{Repetitions: 10, Metadata: map[string]any{}}}

	job, err := h.manager.Submit(ctx, h.pl, seeds)
	require.NoError(t, err)

	// Let the first run begin, cancel mid-flight, then release it. The
	// in-flight run completes; no second run starts.
	<-started
	assert.True(t, h.manager.Cancel(ctx, job.ID))
	release <- struct{}{}

	done := waitForTerminal(t, h.manager, job.ID)
	assert.Equal(t, models.JobStatusCancelled, done.Status)
	assert.Equal(t, 1, done.RecordsGenerated)

	// Records created before cancellation are retained unchanged.
	records, err := h.store.Records().List(ctx, persistence.ListRecordsOptions{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.RecordStatusPending, records[0].Status)

	// Cancelling a finished job is a no-op.
	assert.False(t, h.manager.Cancel(ctx, job.ID))
}

func TestManagerRun_FailedRunIsRecordedNotFatal(t *testing.T) {
	calls := 0

	flaky := &stubFactory{
		id:      "Flaky",
		outputs: []string{"pipeline_output"},
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			calls++
			if calls == 2 {
				return nil, errors.New("generation backend hiccup")
			}

			return map[string]any{"pipeline_output": "ok"}, nil
		},
	}

	h := newHarness(t, flaky)
	ctx := context.Background()

	seeds := []models.SeedInput{{Repetitions: 3, Metadata: map[string]any{}}}

	job, err := h.manager.Submit(ctx, h.pl, seeds)
	require.NoError(t, err)

	done := waitForTerminal(t, h.manager, job.ID)
	assert.Equal(t, models.JobStatusCompleted, done.Status)
	assert.Equal(t, 2, done.RecordsGenerated)
	assert.Equal(t, 1, done.RecordsFailed)

	records, err := h.store.Records().List(ctx, persistence.ListRecordsOptions{JobID: job.ID})
	require.NoError(t, err)
	require.Len(t, records, 3)

	failed := 0

	for _, record := range records {
		if record.Failed {
			failed++

			assert.Contains(t, record.Error, "generation backend hiccup")
			assert.Len(t, record.Trace, 1, "failed runs keep their partial trace")
		}
	}

	assert.Equal(t, 1, failed)
}

func TestManagerSubmit_RejectsInvalidDefinition(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	invalid := &models.Pipeline{
		ID: "pl-bad",
		Definition: models.PipelineDefinition{
			Name:   "bad pipeline",
			Blocks: []models.BlockDefinition{{Type: "DoesNotExist"}},
		},
	}

	_, err := h.manager.Submit(ctx, invalid, []models.SeedInput{{Repetitions: 1, Metadata: map[string]any{}}})
	require.Error(t, err)
	assert.True(t, pipeline.IsKind(err, pipeline.KindValidation))

	// Nothing was scheduled.
	assert.Nil(t, h.manager.Active())
}

func TestManagerSubmit_RequiresSeeds(t *testing.T) {
	h := newHarness(t)

	_, err := h.manager.Submit(context.Background(), h.pl, nil)
	assert.ErrorIs(t, err, jobs.ErrNoSeeds)
}

func TestManagerStatus_SnapshotFromStorageAfterEviction(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	seeds := []models.SeedInput{{Repetitions: 1, Metadata: map[string]any{"name": "x"}}}

	job, err := h.manager.Submit(ctx, h.pl, seeds)
	require.NoError(t, err)

	waitForTerminal(t, h.manager, job.ID)

	stored, err := h.store.Jobs().GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, stored.Status)
}
