// Package coherence provides an experimental block scoring sentence
// structure of a text field.
package coherence

import (
	"context"
	"strings"
)

// Block scores how coherent a text reads based on its average sentence
// length. Around 20 words per sentence scores 1.0; empty or missing
// text scores 0.
type Block struct {
	FieldName string
}

func NewBlock(config map[string]any) (*Block, error) {
	fieldName, _ := config["field_name"].(string)
	if fieldName == "" {
		fieldName = "assistant"
	}

	return &Block{FieldName: fieldName}, nil
}

func (b *Block) Execute(_ context.Context, state map[string]any) (map[string]any, error) {
	text, _ := state[b.FieldName].(string)

	return map[string]any{"coherence_score": coherence(text)}, nil
}

func coherence(text string) float64 {
	if text == "" {
		return 0.0
	}

	sentences := 0

	for _, part := range strings.Split(text, ".") {
		if strings.TrimSpace(part) != "" {
			sentences++
		}
	}

	if sentences == 0 {
		return 0.0
	}

	avgWords := float64(len(strings.Fields(text))) / float64(sentences)

	return min(1.0, avgWords/20)
}
