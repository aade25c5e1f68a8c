package models

import "time"

// RecordStatus is the human-review state of a generated record.
type RecordStatus string

const (
	RecordStatusPending  RecordStatus = "pending"
	RecordStatusAccepted RecordStatus = "accepted"
	RecordStatusRejected RecordStatus = "rejected"
	RecordStatusEdited   RecordStatus = "edited"
)

// Record is the persisted artifact of one pipeline run against one seed
// repetition. Failed runs still produce a record so the partial trace
// stays diagnosable.
type Record struct {
	ID         string         `json:"id"`
	JobID      string         `json:"job_id,omitempty"`
	PipelineID string         `json:"pipeline_id,omitempty"`
	Output     string         `json:"output"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Status     RecordStatus   `json:"status"`
	Failed     bool           `json:"failed,omitempty"`
	Error      string         `json:"error,omitempty"`
	Trace      Trace          `json:"trace,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}
