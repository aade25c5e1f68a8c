// Package jobs orchestrates batch generation: one pipeline run per seed
// repetition, driven by a single background job at a time.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomhq/loom/pkg/eventbus"
	"github.com/loomhq/loom/pkg/events"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/persistence"
	"github.com/loomhq/loom/pkg/pipeline"
	"github.com/loomhq/loom/pkg/registry"
)

// historyLimit caps how many finished jobs stay in memory per pipeline.
const historyLimit = 10

// outputKey is the state key the exit block writes its final artifact
// to. Runs whose final state lacks it fall back to the whole state.
const outputKey = "pipeline_output"

// jobState pairs a job with its cooperative cancellation flag. The flag
// is only consulted between runs: an in-flight run always finishes.
type jobState struct {
	job       *models.Job
	seeds     []models.SeedInput
	cancelled bool
}

// Manager owns job submission, progress tracking and cancellation. It
// enforces single-flight execution: submitting while a job is running
// returns a ConflictError instead of queueing.
type Manager struct {
	logger   *slog.Logger
	registry *registry.Registry
	executor *pipeline.Executor
	store    persistence.Persistence
	bus      eventbus.EventPublisher

	mu       sync.Mutex
	jobs     map[string]*jobState
	history  map[string][]string
	activeID string
}

// NewManager creates a job manager. bus may be nil when no event
// transport is configured.
func NewManager(
	logger *slog.Logger,
	reg *registry.Registry,
	executor *pipeline.Executor,
	store persistence.Persistence,
	bus eventbus.EventPublisher,
) *Manager {
	return &Manager{
		logger:   logger.With("module", "jobs"),
		registry: reg,
		executor: executor,
		store:    store,
		bus:      bus,
		jobs:     make(map[string]*jobState),
		history:  make(map[string][]string),
	}
}

// Submit validates the pipeline, atomically claims the single job slot
// and starts the seed loop in the background. It returns a snapshot of
// the freshly started job.
func (m *Manager) Submit(ctx context.Context, pl *models.Pipeline, seeds []models.SeedInput) (*models.Job, error) {
	if len(seeds) == 0 {
		return nil, ErrNoSeeds
	}

	err := pipeline.Validate(pl.Definition, m.registry)
	if err != nil {
		return nil, err
	}

	totalRuns := 0
	for _, seed := range seeds {
		totalRuns += seed.PlannedRuns()
	}

	job := &models.Job{
		ID:         uuid.New().String(),
		PipelineID: pl.ID,
		Status:     models.JobStatusRunning,
		TotalSeeds: totalRuns,
		StartedAt:  time.Now().UTC(),
	}

	m.mu.Lock()

	if m.activeID != "" {
		active := m.activeID
		m.mu.Unlock()

		return nil, &ConflictError{ActiveJobID: active}
	}

	m.activeID = job.ID
	m.jobs[job.ID] = &jobState{job: job, seeds: seeds}
	m.appendHistory(pl.ID, job.ID)

	snapshot := *job

	m.mu.Unlock()

	m.saveJob(ctx, &snapshot)
	m.publish(ctx, events.JobStarted{
		BaseEvent:  m.baseEvent(events.JobStartedEvent, pl.ID, job.ID),
		TotalSeeds: totalRuns,
	})

	m.logger.InfoContext(ctx, "Job started",
		"job_id", job.ID,
		"pipeline_id", pl.ID,
		"total_runs", totalRuns,
	)

	// The loop runs on a background context: the submitting request may
	// finish long before the job does.
	go m.run(context.WithoutCancel(ctx), job.ID, pl, seeds)

	return &snapshot, nil
}

// Cancel requests cooperative cancellation. The current run finishes;
// no further runs start. Cancelling a finished or unknown job is a
// no-op returning false.
func (m *Manager) Cancel(ctx context.Context, jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[jobID]
	if !ok || state.job.Status.IsTerminal() {
		return false
	}

	state.cancelled = true

	m.logger.InfoContext(ctx, "Job cancellation requested", "job_id", jobID)

	return true
}

// Status returns a snapshot of the job. Jobs evicted from memory are
// read back from storage.
func (m *Manager) Status(ctx context.Context, jobID string) (*models.Job, error) {
	m.mu.Lock()
	state, ok := m.jobs[jobID]

	if ok {
		snapshot := *state.job
		m.mu.Unlock()

		return &snapshot, nil
	}

	m.mu.Unlock()

	return m.store.Jobs().GetByID(ctx, jobID)
}

// Active returns the currently running job, or nil when idle.
func (m *Manager) Active() *models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeID == "" {
		return nil
	}

	state, ok := m.jobs[m.activeID]
	if !ok {
		return nil
	}

	snapshot := *state.job

	return &snapshot
}

// History returns the most recent jobs for a pipeline, newest first. An
// empty pipelineID lists every pipeline's retained jobs.
func (m *Manager) History(pipelineID string) []*models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]string, 0)

	if pipelineID != "" {
		ids = append(ids, m.history[pipelineID]...)
	} else {
		for _, pipelineIDs := range m.history {
			ids = append(ids, pipelineIDs...)
		}
	}

	result := make([]*models.Job, 0, len(ids))

	for _, id := range ids {
		if state, ok := m.jobs[id]; ok {
			snapshot := *state.job
			result = append(result, &snapshot)
		}
	}

	sortJobsNewestFirst(result)

	return result
}

// run is the background seed loop. Individual run failures are recorded
// and counted, never fatal: the job keeps going until the batch is done
// or cancellation is observed between runs.
func (m *Manager) run(ctx context.Context, jobID string, pl *models.Pipeline, seeds []models.SeedInput) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.ErrorContext(ctx, "Job panicked", "job_id", jobID, "panic", r)
			m.finish(ctx, jobID, pl.ID, models.JobStatusFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	completed := 0

	for seedIndex, seed := range seeds {
		for repetition := 0; repetition < seed.PlannedRuns(); repetition++ {
			if m.isCancelled(jobID) {
				m.finish(ctx, jobID, pl.ID, models.JobStatusCancelled, "")

				return
			}

			m.update(ctx, jobID, func(job *models.Job) {
				job.CurrentSeed = seedIndex
			})

			m.runOnce(ctx, jobID, pl, seed, seedIndex)

			completed++

			m.update(ctx, jobID, func(job *models.Job) {
				job.Progress = float64(completed) / float64(job.TotalSeeds)
				job.CurrentBlock = ""
			})
		}
	}

	m.finish(ctx, jobID, pl.ID, models.JobStatusCompleted, "")
}

// runOnce executes the pipeline against one seed repetition and persists
// the resulting record, failed or not.
func (m *Manager) runOnce(ctx context.Context, jobID string, pl *models.Pipeline, seed models.SeedInput, seedIndex int) {
	observer := func(_ int, blockType string) {
		m.update(ctx, jobID, func(job *models.Job) {
			job.CurrentBlock = blockType
		})
	}

	start := time.Now()
	result, trace, traceID, runErr := m.executor.Run(ctx, pl.Definition, models.CopyState(seed.Metadata), observer)

	record := &models.Record{
		ID:         uuid.New().String(),
		JobID:      jobID,
		PipelineID: pl.ID,
		Metadata:   seed.Metadata,
		Status:     models.RecordStatusPending,
		Trace:      trace,
		CreatedAt:  time.Now().UTC(),
		UpdatedAt:  time.Now().UTC(),
	}

	if runErr != nil {
		record.Failed = true
		record.Error = runErr.Error()

		m.update(ctx, jobID, func(job *models.Job) {
			job.RecordsFailed++
		})

		m.publish(ctx, events.RunFailed{
			BaseEvent: m.baseEvent(events.RunFailedEvent, pl.ID, jobID),
			TraceID:   traceID,
			RecordID:  record.ID,
			SeedIndex: seedIndex,
			Error:     runErr.Error(),
		})

		m.logger.WarnContext(ctx, "Run failed",
			"job_id", jobID,
			"trace_id", traceID,
			"seed_index", seedIndex,
			"error", runErr,
		)
	} else {
		record.Output = extractOutput(result)

		m.update(ctx, jobID, func(job *models.Job) {
			job.RecordsGenerated++
		})

		m.publish(ctx, events.RunCompleted{
			BaseEvent: m.baseEvent(events.RunCompletedEvent, pl.ID, jobID),
			TraceID:   traceID,
			RecordID:  record.ID,
			SeedIndex: seedIndex,
			Duration:  time.Since(start),
		})
	}

	err := m.store.Records().Save(ctx, record)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to persist record",
			"job_id", jobID,
			"record_id", record.ID,
			"error", err,
		)

		return
	}

	m.publish(ctx, events.RecordCreated{
		BaseEvent: m.baseEvent(events.RecordCreatedEvent, pl.ID, jobID),
		RecordID:  record.ID,
		Failed:    record.Failed,
	})
}

// finish transitions the job to a terminal status and releases the
// single job slot.
func (m *Manager) finish(ctx context.Context, jobID, pipelineID string, status models.JobStatus, errorMessage string) {
	now := time.Now().UTC()

	var snapshot models.Job

	m.mu.Lock()

	state, ok := m.jobs[jobID]
	if ok {
		state.job.Status = status
		state.job.Error = errorMessage
		state.job.CompletedAt = &now
		state.job.CurrentBlock = ""

		if status == models.JobStatusCompleted {
			state.job.Progress = 1.0
		}

		snapshot = *state.job
	}

	if m.activeID == jobID {
		m.activeID = ""
	}

	// A job evicted from history while it was still running is only
	// retained until it reaches a terminal status.
	if ok && !m.inHistory(pipelineID, jobID) {
		delete(m.jobs, jobID)
	}

	m.mu.Unlock()

	if !ok {
		return
	}

	m.saveJob(ctx, &snapshot)

	switch status {
	case models.JobStatusCancelled:
		m.publish(ctx, events.JobCancelled{
			BaseEvent:        m.baseEvent(events.JobCancelledEvent, pipelineID, jobID),
			RecordsGenerated: snapshot.RecordsGenerated,
		})
	default:
		m.publish(ctx, events.JobFinished{
			BaseEvent:        m.baseEvent(events.JobFinishedEvent, pipelineID, jobID),
			Status:           status,
			RecordsGenerated: snapshot.RecordsGenerated,
			RecordsFailed:    snapshot.RecordsFailed,
			Duration:         now.Sub(snapshot.StartedAt),
		})
	}

	m.logger.InfoContext(ctx, "Job finished",
		"job_id", jobID,
		"status", status,
		"records_generated", snapshot.RecordsGenerated,
		"records_failed", snapshot.RecordsFailed,
	)
}

func (m *Manager) isCancelled(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.jobs[jobID]

	return ok && state.cancelled
}

// update applies a mutation under the lock and persists the snapshot.
func (m *Manager) update(ctx context.Context, jobID string, mutate func(job *models.Job)) {
	m.mu.Lock()

	state, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()

		return
	}

	mutate(state.job)

	snapshot := *state.job

	m.mu.Unlock()

	m.saveJob(ctx, &snapshot)
}

// appendHistory must be called with the lock held. It evicts the oldest
// retained job once the per-pipeline limit is exceeded.
func (m *Manager) appendHistory(pipelineID, jobID string) {
	ids := append(m.history[pipelineID], jobID)

	if len(ids) > historyLimit {
		evicted := ids[0]
		ids = ids[1:]

		if evicted != m.activeID {
			delete(m.jobs, evicted)
		}
	}

	m.history[pipelineID] = ids
}

// inHistory must be called with the lock held.
func (m *Manager) inHistory(pipelineID, jobID string) bool {
	for _, id := range m.history[pipelineID] {
		if id == jobID {
			return true
		}
	}

	return false
}

func (m *Manager) saveJob(ctx context.Context, job *models.Job) {
	err := m.store.Jobs().Save(ctx, job)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to persist job snapshot", "job_id", job.ID, "error", err)
	}
}

func (m *Manager) publish(ctx context.Context, event eventbus.Event) {
	if m.bus == nil {
		return
	}

	err := m.bus.Publish(ctx, string(event.GetType()), event)
	if err != nil {
		m.logger.ErrorContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

func (m *Manager) baseEvent(eventType events.EventType, pipelineID, jobID string) events.BaseEvent {
	return events.BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		PipelineID: pipelineID,
		JobID:      jobID,
	}
}

// extractOutput pulls the exit block's artifact out of the final state.
// Non-string artifacts and states missing the output key are serialized
// to JSON so the record's output is always a string.
func extractOutput(state map[string]any) string {
	value, ok := state[outputKey]
	if !ok {
		serialized, err := json.Marshal(state)
		if err != nil {
			return fmt.Sprintf("%v", state)
		}

		return string(serialized)
	}

	if text, ok := value.(string); ok {
		return text
	}

	serialized, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}

	return string(serialized)
}

func sortJobsNewestFirst(jobs []*models.Job) {
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartedAt.After(jobs[j].StartedAt)
	})
}
