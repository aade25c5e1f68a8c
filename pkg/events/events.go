// Package events defines event types and structures for job and run
// lifecycle notifications.
package events

import (
	"time"

	"github.com/loomhq/loom/pkg/models"
)

type EventType string

// Topic is the channel all job lifecycle events are published to.
const Topic = "loom.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Job lifecycle events.
	JobStartedEvent   EventType = "job.started"
	JobFinishedEvent  EventType = "job.finished"
	JobCancelledEvent EventType = "job.cancelled"

	// Per-run events within a job.
	RunCompletedEvent   EventType = "run.completed"
	RunFailedEvent      EventType = "run.failed"
	RecordCreatedEvent  EventType = "job.record.created"
	RecordReviewedEvent EventType = "record.reviewed"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	PipelineID string         `json:"pipeline_id"`
	JobID      string         `json:"job_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type JobStarted struct {
	BaseEvent

	TotalSeeds int `json:"total_seeds"`
}

func (e JobStarted) GetType() EventType {
	return JobStartedEvent
}

type JobFinished struct {
	BaseEvent

	Status           models.JobStatus `json:"status"`
	RecordsGenerated int              `json:"records_generated"`
	RecordsFailed    int              `json:"records_failed"`
	Duration         time.Duration    `json:"duration"`
}

func (e JobFinished) GetType() EventType {
	return JobFinishedEvent
}

type JobCancelled struct {
	BaseEvent

	RecordsGenerated int `json:"records_generated"`
}

func (e JobCancelled) GetType() EventType {
	return JobCancelledEvent
}

type RunCompleted struct {
	BaseEvent

	TraceID   string        `json:"trace_id"`
	RecordID  string        `json:"record_id"`
	SeedIndex int           `json:"seed_index"`
	Duration  time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	TraceID   string `json:"trace_id"`
	RecordID  string `json:"record_id"`
	SeedIndex int    `json:"seed_index"`
	Error     string `json:"error"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RecordCreated struct {
	BaseEvent

	RecordID string `json:"record_id"`
	Failed   bool   `json:"failed"`
}

func (e RecordCreated) GetType() EventType {
	return RecordCreatedEvent
}

// RecordReviewed is published when a human review changes a record's
// status.
type RecordReviewed struct {
	BaseEvent

	RecordID string              `json:"record_id"`
	Status   models.RecordStatus `json:"status"`
}

func (e RecordReviewed) GetType() EventType {
	return RecordReviewedEvent
}
