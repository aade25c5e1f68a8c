package rougescore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomhq/loom/pkg/blocks/rougescore"
)

func score(t *testing.T, config map[string]any, generated, reference string) float64 {
	t.Helper()

	block, err := rougescore.NewBlock(config)
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{
		"assistant": generated,
		"reference": reference,
	})
	require.NoError(t, err)

	value, ok := output["rouge_score"].(float64)
	require.True(t, ok)

	return value
}

func TestBlock_EmptyFieldsScoreZero(t *testing.T) {
	assert.InDelta(t, 0.0, score(t, map[string]any{}, "", "the reference"), 1e-9)
	assert.InDelta(t, 0.0, score(t, map[string]any{}, "the generated", ""), 1e-9)
}

func TestBlock_Rouge1(t *testing.T) {
	// All three generated unigrams match; the reference has six, so
	// precision is 1 and recall is 1/2.
	got := score(t, map[string]any{}, "the cat sat", "the cat sat on the mat")
	assert.InDelta(t, 2.0/3.0, got, 1e-9)
}

func TestBlock_Rouge1_IgnoresCaseAndPunctuation(t *testing.T) {
	got := score(t, map[string]any{}, "The CAT!", "the cat")
	assert.InDelta(t, 1.0, got, 1e-9)
}

func TestBlock_Rouge2(t *testing.T) {
	// Two of two generated bigrams match against five reference bigrams.
	config := map[string]any{"rouge_type": "rouge2"}
	got := score(t, config, "the cat sat", "the cat sat on the mat")
	assert.InDelta(t, 4.0/7.0, got, 1e-9)
}

func TestBlock_RougeL(t *testing.T) {
	// The longest common subsequence of "a c b d" and "a b c d" has
	// three tokens out of four on both sides.
	config := map[string]any{"rouge_type": "rougeL"}
	got := score(t, config, "a c b d", "a b c d")
	assert.InDelta(t, 0.75, got, 1e-9)
}

func TestBlock_IdenticalTextsScoreOne(t *testing.T) {
	text := "synthetic data pipelines compose blocks"

	for _, rougeType := range []string{"rouge1", "rouge2", "rougeL"} {
		config := map[string]any{"rouge_type": rougeType}
		assert.InDelta(t, 1.0, score(t, config, text, text), 1e-9, rougeType)
	}
}

func TestBlock_CustomFields(t *testing.T) {
	block, err := rougescore.NewBlock(map[string]any{
		"generated_field": "candidate",
		"reference_field": "gold",
	})
	require.NoError(t, err)

	output, err := block.Execute(context.Background(), map[string]any{
		"candidate": "the cat",
		"gold":      "the cat",
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, output["rouge_score"].(float64), 1e-9)
}

func TestNewBlock_RejectsUnknownRougeType(t *testing.T) {
	_, err := rougescore.NewBlock(map[string]any{"rouge_type": "rouge3"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rouge3")
}

func TestBlockFactory_Contract(t *testing.T) {
	factory := rougescore.NewBlockFactory()

	assert.Equal(t, "RougeScore", factory.ID())
	assert.True(t, factory.Inputs().IsWildcard())
	assert.Equal(t, []string{"rouge_score"}, factory.Outputs())

	block, err := factory.Create(map[string]any{})
	require.NoError(t, err)
	assert.NotNil(t, block)
}
