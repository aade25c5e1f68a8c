package models

import "time"

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether the status is one of the three final states.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job tracks one batch-generation task driving the engine across a seed
// batch. At most one job is running at any instant; the jobs.Manager
// enforces that invariant.
type Job struct {
	ID               string     `json:"id"`
	PipelineID       string     `json:"pipeline_id"`
	Status           JobStatus  `json:"status"`
	Progress         float64    `json:"progress"`
	CurrentSeed      int        `json:"current_seed"`
	TotalSeeds       int        `json:"total_seeds"`
	CurrentBlock     string     `json:"current_block,omitempty"`
	RecordsGenerated int        `json:"records_generated"`
	RecordsFailed    int        `json:"records_failed"`
	Error            string     `json:"error,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// SeedInput is one input unit of a generation batch: metadata variables
// seeding the run's initial state plus a repetition count.
type SeedInput struct {
	Repetitions int            `json:"repetitions"`
	Metadata    map[string]any `json:"metadata" validate:"required"`
}

// PlannedRuns returns how many pipeline runs this seed requests. A
// missing or non-positive repetition count means one run.
func (s SeedInput) PlannedRuns() int {
	if s.Repetitions < 1 {
		return 1
	}

	return s.Repetitions
}
