package models

import "time"

// PipelineDefinition is an ordered list of configured block instances.
// Execution order is the slice order: the first block is the entry point
// and the last is the exit point.
type PipelineDefinition struct {
	Name   string            `json:"name"   validate:"required,min=3"`
	Blocks []BlockDefinition `json:"blocks" validate:"required,min=1,dive"`
}

// Pipeline is a persisted pipeline definition.
type Pipeline struct {
	ID         string             `json:"id"`
	Definition PipelineDefinition `json:"definition"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
