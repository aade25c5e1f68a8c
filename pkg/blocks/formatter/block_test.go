package formatter_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/blocks/formatter"
)

func TestFormatter_DefaultTemplate(t *testing.T) {
	block, err := formatter.NewBlock(map[string]any{})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{"assistant": "a haiku"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"pipeline_output": "Result: a haiku"}, output)
}

func TestFormatter_CustomTemplate(t *testing.T) {
	block, err := formatter.NewBlock(map[string]any{
		"format_template": "{{upper .assistant}} ({{.topic}})",
	})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{
		"assistant": "ok",
		"topic":     "testing",
	})
	require.NoError(t, err)
	assert.Equal(t, "OK (testing)", output["pipeline_output"])
}

func TestFormatter_BadTemplate(t *testing.T) {
	block, err := formatter.NewBlock(map[string]any{"format_template": "{{.broken"})
	require.NoError(t, err)

	_, err = block.Execute(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestFormatterFactory_Contract(t *testing.T) {
	factory := formatter.NewBlockFactory()

	assert.Equal(t, "Formatter", factory.ID())
	assert.Equal(t, []string{"assistant"}, factory.Inputs().Keys())
	assert.Equal(t, []string{"pipeline_output"}, factory.Outputs())
}
