package jsonvalidator_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/blocks/jsonvalidator"
)

func TestBlock_ParsesPlainJSON(t *testing.T) {
	block, err := jsonvalidator.NewBlock(map[string]any{})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{
		"assistant": `{"name": "ada", "age": 36}`,
	})
	require.NoError(t, err)

	assert.Equal(t, true, output["valid"])

	parsed, ok := output["parsed_json"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ada", parsed["name"])
}

func TestBlock_StripsMarkdownFences(t *testing.T) {
	block, err := jsonvalidator.NewBlock(map[string]any{})
	require.NoError(t, err)

	for _, text := range []string{
		"```json\n{\"ok\": true}\n```",
		"```\n{\"ok\": true}\n```",
	} {
		output, err := block.Execute(context.Background(), map[string]any{"assistant": text})
		require.NoError(t, err)

		assert.Equal(t, true, output["valid"], "input %q", text)
	}
}

func TestBlock_InvalidJSONMarksStateInvalid(t *testing.T) {
	block, err := jsonvalidator.NewBlock(map[string]any{})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{
		"assistant": "not json at all",
	})
	require.NoError(t, err)

	assert.Equal(t, false, output["valid"])
	assert.Nil(t, output["parsed_json"])
}

func TestBlock_StrictModeFailsTheRun(t *testing.T) {
	block, err := jsonvalidator.NewBlock(map[string]any{"strict": true})
	require.NoError(t, err)

	_, err = block.Execute(context.Background(), map[string]any{
		"assistant": "{broken",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON in field 'assistant'")
}

func TestBlock_RequiredFields(t *testing.T) {
	block, err := jsonvalidator.NewBlock(map[string]any{
		"required_fields": []any{"question", "answer"},
	})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{
		"assistant": `{"question": "why?", "answer": "because"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, true, output["valid"])

	output, err = block.Execute(context.Background(), map[string]any{
		"assistant": `{"question": "why?"}`,
	})
	require.NoError(t, err)
	assert.Equal(t, false, output["valid"])

	// A top-level array cannot carry required fields.
	output, err = block.Execute(context.Background(), map[string]any{
		"assistant": `[1, 2, 3]`,
	})
	require.NoError(t, err)
	assert.Equal(t, false, output["valid"])
}

func TestBlock_StructuredValuePassesThrough(t *testing.T) {
	block, err := jsonvalidator.NewBlock(map[string]any{"field_name": "payload"})
	require.NoError(t, err)

	payload := map[string]any{"already": "parsed"}

	output, err := block.Execute(context.Background(), map[string]any{"payload": payload})
	require.NoError(t, err)

	assert.Equal(t, true, output["valid"])
	assert.Equal(t, payload, output["parsed_json"])
}

func TestBlockFactory_Contract(t *testing.T) {
	factory := jsonvalidator.NewBlockFactory()

	assert.Equal(t, "JSONValidator", factory.ID())
	assert.True(t, factory.Inputs().IsWildcard())
	assert.ElementsMatch(t, []string{"valid", "parsed_json"}, factory.Outputs())
	require.NotNil(t, factory.Schema())

	block, err := factory.Create(map[string]any{"field_name": "raw"})
	require.NoError(t, err)
	assert.NotNil(t, block)
}
