package pipeline_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/pipeline"
)

func schemaFactory(id string, required ...string) *fakeFactory {
	properties := make(map[string]*models.Property, len(required))
	for _, field := range required {
		properties[field] = &models.Property{Type: "string"}
	}

	factory := &fakeFactory{
		id:      id,
		inputs:  models.DeclaredInputs(),
		outputs: []string{"out"},
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"out": "ok"}, nil
		},
	}

	factory.schema = &models.JSONSchema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}

	return factory
}

func TestValidate_Ok(t *testing.T) {
	reg := newTestRegistry(schemaFactory("Configured", "endpoint"))

	def := models.PipelineDefinition{
		Name: "valid",
		Blocks: []models.BlockDefinition{
			{Type: "Configured", Config: map[string]any{"endpoint": "http://localhost"}},
		},
	}

	assert.NoError(t, pipeline.Validate(def, reg))
}

func TestValidate_AggregatesAllIssues(t *testing.T) {
	reg := newTestRegistry(schemaFactory("Configured", "endpoint"))

	def := models.PipelineDefinition{
		Name: "broken",
		Blocks: []models.BlockDefinition{
			{Type: "Missing"},
			{Type: "Configured", Config: map[string]any{}},
			{Type: "Configured", Config: map[string]any{"endpoint": ""}},
		},
	}

	err := pipeline.Validate(def, reg)
	require.Error(t, err)
	assert.True(t, pipeline.IsKind(err, pipeline.KindValidation))

	pErr, ok := pipeline.AsError(err)
	require.True(t, ok)

	issues, ok := pErr.Detail["issues"].([]string)
	require.True(t, ok)

	// Every violation is reported, not just the first.
	require.Len(t, issues, 3)
	assert.Contains(t, issues[0], "unknown type 'Missing'")
	assert.Contains(t, issues[1], "'endpoint' is missing")
	assert.Contains(t, issues[2], "'endpoint' is empty")
}

func TestValidate_EmptyDefinition(t *testing.T) {
	reg := newTestRegistry()

	err := pipeline.Validate(models.PipelineDefinition{}, reg)
	require.Error(t, err)

	pErr, ok := pipeline.AsError(err)
	require.True(t, ok)

	issues := pErr.Detail["issues"].([]string)
	require.Len(t, issues, 2)
	assert.Contains(t, issues[0], "name is required")
	assert.Contains(t, issues[1], "no blocks")
}
