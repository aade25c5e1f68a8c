// Package textvalidator provides the block that checks generated text
// against length and content rules.
package textvalidator

import (
	"context"
	"strings"
)

const defaultMaxLength = 100000

// Block validates the "text" or "assistant" state key and reports the
// verdict in the "valid" key. It passes the inspected keys through
// unchanged so downstream blocks keep seeing them.
type Block struct {
	MinLength      int
	MaxLength      int
	ForbiddenWords []string
}

func NewBlock(config map[string]any) (*Block, error) {
	minLength := 0
	if v, ok := config["min_length"].(float64); ok {
		minLength = int(v)
	}

	maxLength := defaultMaxLength
	if v, ok := config["max_length"].(float64); ok {
		maxLength = int(v)
	}

	var forbidden []string

	if raw, ok := config["forbidden_words"].([]any); ok {
		for _, w := range raw {
			if word, ok := w.(string); ok {
				forbidden = append(forbidden, word)
			}
		}
	}

	return &Block{
		MinLength:      minLength,
		MaxLength:      maxLength,
		ForbiddenWords: forbidden,
	}, nil
}

func (b *Block) Execute(_ context.Context, state map[string]any) (map[string]any, error) {
	text, _ := state["text"].(string)
	if text == "" {
		text, _ = state["assistant"].(string)
	}

	result := map[string]any{"valid": b.check(text)}

	// Declared outputs include the inspected keys, so echo them back.
	if v, ok := state["text"]; ok {
		result["text"] = v
	} else {
		result["text"] = ""
	}

	if v, ok := state["assistant"]; ok {
		result["assistant"] = v
	} else {
		result["assistant"] = ""
	}

	return result, nil
}

func (b *Block) check(text string) bool {
	if len(text) < b.MinLength || len(text) > b.MaxLength {
		return false
	}

	lower := strings.ToLower(text)
	for _, word := range b.ForbiddenWords {
		if strings.Contains(lower, strings.ToLower(word)) {
			return false
		}
	}

	return true
}
