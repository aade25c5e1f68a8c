package textvalidator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/blocks/textvalidator"
)

func TestValidator_LengthRules(t *testing.T) {
	block, err := textvalidator.NewBlock(map[string]any{
		"min_length": float64(3),
		"max_length": float64(10),
	})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, true, output["valid"])

	output, err = block.Execute(context.Background(), map[string]any{"text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, false, output["valid"])

	output, err = block.Execute(context.Background(), map[string]any{"text": "way too long text"})
	require.NoError(t, err)
	assert.Equal(t, false, output["valid"])
}

func TestValidator_ForbiddenWords(t *testing.T) {
	block, err := textvalidator.NewBlock(map[string]any{
		"forbidden_words": []any{"lorem"},
	})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{"text": "some LOREM ipsum"})
	require.NoError(t, err)
	assert.Equal(t, false, output["valid"])
}

func TestValidator_FallsBackToAssistantKey(t *testing.T) {
	block, err := textvalidator.NewBlock(map[string]any{"min_length": float64(1)})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{"assistant": "generated"})
	require.NoError(t, err)
	assert.Equal(t, true, output["valid"])

	// Inspected keys are echoed so the output contract stays exact.
	assert.Equal(t, "generated", output["assistant"])
	assert.Equal(t, "", output["text"])
}

func TestValidatorFactory_Contract(t *testing.T) {
	factory := textvalidator.NewBlockFactory()

	assert.Equal(t, "Validator", factory.ID())
	assert.True(t, factory.Inputs().IsWildcard())
	assert.ElementsMatch(t, []string{"text", "valid", "assistant"}, factory.Outputs())
}
