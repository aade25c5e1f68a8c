// Package web provides HTTP request and response types for the pipeline
// API.
package web

import (
	"encoding/json"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
)

// SavePipelineRequest is the request body for creating or updating a
// pipeline. The body is the definition itself.
type SavePipelineRequest struct {
	Name   string                   `json:"name"   validate:"required,min=3"`
	Blocks []models.BlockDefinition `json:"blocks" validate:"required,min=1"`
}

// Definition converts the request into a pipeline definition.
func (r SavePipelineRequest) Definition() models.PipelineDefinition {
	return models.PipelineDefinition{Name: r.Name, Blocks: r.Blocks}
}

// ExecuteRequest is the request body for a synchronous single run.
type ExecuteRequest struct {
	InitialState map[string]any `json:"initial_state"`
}

// ExecuteResponse carries one run's outcome. Trace and TraceID are
// present even when the run failed.
type ExecuteResponse struct {
	Result  map[string]any `json:"result"`
	Trace   models.Trace   `json:"trace"`
	TraceID string         `json:"trace_id"`
}

// SeedBatch accepts either a single seed object or an array of seeds.
type SeedBatch []models.SeedInput

func (b *SeedBatch) UnmarshalJSON(data []byte) error {
	var many []models.SeedInput
	if err := json.Unmarshal(data, &many); err == nil {
		*b = many

		return nil
	}

	var one models.SeedInput
	if err := json.Unmarshal(data, &one); err != nil {
		return fmt.Errorf("seeds must be a seed object or an array of seeds: %w", err)
	}

	*b = SeedBatch{one}

	return nil
}

// GenerateRequest is the request body for submitting a generation job.
type GenerateRequest struct {
	PipelineID string    `json:"pipeline_id" validate:"required"`
	Seeds      SeedBatch `json:"seeds"       validate:"required,min=1"`
}

// ReviewRecordRequest is the request body for the human review of a
// record. Fields are optional to support partial updates; editing the
// output marks the record edited unless a status is given explicitly.
type ReviewRecordRequest struct {
	Status   *models.RecordStatus `json:"status,omitempty" validate:"omitempty,oneof=pending accepted rejected edited"`
	Output   *string              `json:"output,omitempty"`
	Metadata map[string]any       `json:"metadata,omitempty"`
}
