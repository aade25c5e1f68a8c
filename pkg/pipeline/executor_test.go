package pipeline_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/log"
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/pipeline"
	"github.com/loomhq/loom/pkg/protocol"
	"github.com/loomhq/loom/pkg/registry"
)

type fakeBlock struct {
	execute func(ctx context.Context, state map[string]any) (map[string]any, error)
}

func (b *fakeBlock) Execute(ctx context.Context, state map[string]any) (map[string]any, error) {
	return b.execute(ctx, state)
}

type fakeFactory struct {
	id      string
	inputs  models.InputContract
	outputs []string
	schema  *models.JSONSchema
	execute func(ctx context.Context, state map[string]any) (map[string]any, error)
}

func (f *fakeFactory) Create(_ map[string]any) (protocol.Block, error) {
	return &fakeBlock{execute: f.execute}, nil
}

func (f *fakeFactory) ID() string                   { return f.id }
func (f *fakeFactory) Name() string                 { return f.id }
func (f *fakeFactory) Description() string          { return "test block" }
func (f *fakeFactory) Inputs() models.InputContract { return f.inputs }
func (f *fakeFactory) Outputs() []string            { return f.outputs }
func (f *fakeFactory) Schema() *models.JSONSchema   { return f.schema }

func newTestRegistry(factories ...*fakeFactory) *registry.Registry {
	reg := registry.NewRegistry(log.Discard())
	for _, factory := range factories {
		reg.RegisterBlock(factory)
	}

	return reg
}

func uppercaseFactory() *fakeFactory {
	return &fakeFactory{
		id:      "Uppercase",
		inputs:  models.DeclaredInputs("text"),
		outputs: []string{"result"},
		execute: func(_ context.Context, state map[string]any) (map[string]any, error) {
			text, _ := state["text"].(string)

			return map[string]any{"result": strings.ToUpper(text)}, nil
		},
	}
}

func constFactory(id string, outputs map[string]any) *fakeFactory {
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}

	return &fakeFactory{
		id:      id,
		inputs:  models.DeclaredInputs(),
		outputs: keys,
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return models.CopyState(outputs), nil
		},
	}
}

func TestExecutorRun_Uppercase(t *testing.T) {
	reg := newTestRegistry(uppercaseFactory())
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "uppercase",
		Blocks: []models.BlockDefinition{{Type: "Uppercase"}},
	}

	result, trace, traceID, err := executor.Run(context.Background(), def, map[string]any{"text": "hello"})
	require.NoError(t, err)

	assert.NotEmpty(t, traceID)
	assert.Equal(t, map[string]any{"text": "hello", "result": "HELLO"}, result)

	require.Len(t, trace, 1)
	assert.Equal(t, "Uppercase", trace[0].BlockType)
	assert.Equal(t, map[string]any{"text": "hello"}, trace[0].Input)
	assert.Equal(t, map[string]any{"result": "HELLO"}, trace[0].Output)
	assert.Equal(t, result, trace[0].AccumulatedState)
	assert.Empty(t, trace[0].Error)
}

func TestExecutorRun_TraceLengthEqualsBlockCount(t *testing.T) {
	reg := newTestRegistry(
		constFactory("A", map[string]any{"a": 1}),
		constFactory("B", map[string]any{"b": 2}),
		constFactory("C", map[string]any{"c": 3}),
	)
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "three-blocks",
		Blocks: []models.BlockDefinition{{Type: "A"}, {Type: "B"}, {Type: "C"}},
	}

	result, trace, _, err := executor.Run(context.Background(), def, map[string]any{"seed": "s"})
	require.NoError(t, err)

	require.Len(t, trace, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{trace[0].BlockType, trace[1].BlockType, trace[2].BlockType})

	// No key ever disappears: the final state is the union of the seed
	// and every block's outputs.
	assert.Equal(t, map[string]any{"seed": "s", "a": 1, "b": 2, "c": 3}, result)
	assert.Equal(t, map[string]any{"seed": "s", "a": 1}, trace[0].AccumulatedState)
	assert.Equal(t, map[string]any{"seed": "s", "a": 1, "b": 2}, trace[1].AccumulatedState)
}

func TestExecutorRun_MissingInputStopsRun(t *testing.T) {
	reg := newTestRegistry(
		constFactory("A", map[string]any{"x": "x"}),
		&fakeFactory{
			id:      "B",
			inputs:  models.DeclaredInputs("y"),
			outputs: []string{"z"},
			execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
				return map[string]any{"z": "z"}, nil
			},
		},
	)
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "broken-contract",
		Blocks: []models.BlockDefinition{{Type: "A"}, {Type: "B"}},
	}

	result, trace, traceID, err := executor.Run(context.Background(), def, map[string]any{})
	require.Error(t, err)

	assert.True(t, pipeline.IsKind(err, pipeline.KindBlockExecution))
	assert.Contains(t, err.Error(), "missing required input key 'y'")
	assert.NotEmpty(t, traceID)

	// A failed precondition still emits a StepRecord: A succeeded, B's
	// entry carries the error.
	require.Len(t, trace, 2)
	assert.Empty(t, trace[0].Error)
	assert.NotEmpty(t, trace[1].Error)

	// The partial state from A is preserved.
	assert.Equal(t, map[string]any{"x": "x"}, result)

	pErr, ok := pipeline.AsError(err)
	require.True(t, ok)
	assert.Equal(t, 1, pErr.Detail["block_index"])
	assert.Equal(t, "B", pErr.Detail["block_type"])
}

func TestExecutorRun_ExtraOutputKey(t *testing.T) {
	reg := newTestRegistry(&fakeFactory{
		id:      "Leaky",
		inputs:  models.DeclaredInputs(),
		outputs: []string{"result"},
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{"result": "x", "extra": "y"}, nil
		},
	})
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "leaky",
		Blocks: []models.BlockDefinition{{Type: "Leaky"}},
	}

	_, trace, _, err := executor.Run(context.Background(), def, map[string]any{})
	require.Error(t, err)

	assert.True(t, pipeline.IsKind(err, pipeline.KindOutputValidation))
	assert.Contains(t, err.Error(), "extra: [extra]")
	require.Len(t, trace, 1)
}

func TestExecutorRun_MissingOutputKey(t *testing.T) {
	reg := newTestRegistry(&fakeFactory{
		id:      "Empty",
		inputs:  models.DeclaredInputs(),
		outputs: []string{"result"},
		execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
			return map[string]any{}, nil
		},
	})
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "empty-output",
		Blocks: []models.BlockDefinition{{Type: "Empty"}},
	}

	_, _, _, err := executor.Run(context.Background(), def, map[string]any{})
	require.Error(t, err)

	assert.True(t, pipeline.IsKind(err, pipeline.KindOutputValidation))
	assert.Contains(t, err.Error(), "missing: [result]")
}

func TestExecutorRun_BlockErrorPreservesPartialTrace(t *testing.T) {
	cause := errors.New("upstream unavailable")

	reg := newTestRegistry(
		constFactory("A", map[string]any{"a": 1}),
		&fakeFactory{
			id:      "Boom",
			inputs:  models.AllAvailable(),
			outputs: []string{"never"},
			execute: func(_ context.Context, _ map[string]any) (map[string]any, error) {
				return nil, cause
			},
		},
		constFactory("C", map[string]any{"c": 3}),
	)
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "fails-midway",
		Blocks: []models.BlockDefinition{{Type: "A"}, {Type: "Boom"}, {Type: "C"}},
	}

	_, trace, _, err := executor.Run(context.Background(), def, map[string]any{})
	require.Error(t, err)

	assert.True(t, pipeline.IsKind(err, pipeline.KindBlockExecution))
	assert.ErrorIs(t, err, cause)

	// Execution stopped at the failing block: C never ran.
	require.Len(t, trace, 2)
	assert.Contains(t, trace[1].Error, "upstream unavailable")
	assert.Greater(t, trace[1].ExecutionTime, -1.0)
}

func TestExecutorRun_UnknownBlockType(t *testing.T) {
	reg := newTestRegistry(constFactory("A", map[string]any{"a": 1}))
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "unknown-type",
		Blocks: []models.BlockDefinition{{Type: "Nope"}},
	}

	_, trace, _, err := executor.Run(context.Background(), def, map[string]any{})
	require.Error(t, err)

	assert.True(t, pipeline.IsKind(err, pipeline.KindBlockNotFound))
	assert.Contains(t, err.Error(), "available: A")
	require.Len(t, trace, 1)
}

func TestExecutorRun_LastWriterWinsOnOutputConflict(t *testing.T) {
	reg := newTestRegistry(
		constFactory("First", map[string]any{"value": "first"}),
		constFactory("Second", map[string]any{"value": "second"}),
	)
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "conflicting-outputs",
		Blocks: []models.BlockDefinition{{Type: "First"}, {Type: "Second"}},
	}

	result, _, _, err := executor.Run(context.Background(), def, map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, "second", result["value"])
}

func TestExecutorRun_InitialStateIsNotMutated(t *testing.T) {
	reg := newTestRegistry(constFactory("A", map[string]any{"a": 1}))
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "copies-input",
		Blocks: []models.BlockDefinition{{Type: "A"}},
	}

	initial := map[string]any{"seed": "s"}

	_, _, _, err := executor.Run(context.Background(), def, initial)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"seed": "s"}, initial)
}

func TestExecutorRun_ObserverSeesEveryBlock(t *testing.T) {
	reg := newTestRegistry(
		constFactory("A", map[string]any{"a": 1}),
		constFactory("B", map[string]any{"b": 2}),
	)
	executor := pipeline.NewExecutor(reg, log.Discard())

	def := models.PipelineDefinition{
		Name:   "observed",
		Blocks: []models.BlockDefinition{{Type: "A"}, {Type: "B"}},
	}

	var seen []string

	_, _, _, err := executor.Run(context.Background(), def, map[string]any{}, func(_ int, blockType string) {
		seen = append(seen, blockType)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, seen)
}
