// Package jsonvalidator provides the block that parses and validates
// JSON embedded in the accumulated state.
package jsonvalidator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var fencePattern = regexp.MustCompile("(?s)^```(?:json)?\\s*\\n?(.*?)\\n?```\\s*$")

// Block parses JSON out of a named state field. In strict mode a parse
// failure fails the run; otherwise the block marks the state invalid and
// lets the pipeline continue.
type Block struct {
	FieldName      string
	RequiredFields []string
	Strict         bool
}

func NewBlock(config map[string]any) (*Block, error) {
	fieldName, _ := config["field_name"].(string)
	if fieldName == "" {
		fieldName = "assistant"
	}

	var required []string

	if raw, ok := config["required_fields"].([]any); ok {
		for _, f := range raw {
			if field, ok := f.(string); ok {
				required = append(required, field)
			}
		}
	}

	strict, _ := config["strict"].(bool)

	return &Block{
		FieldName:      fieldName,
		RequiredFields: required,
		Strict:         strict,
	}, nil
}

func (b *Block) Execute(_ context.Context, state map[string]any) (map[string]any, error) {
	raw := state[b.FieldName]

	var parsed any

	switch value := raw.(type) {
	case map[string]any, []any:
		// Already structured, e.g. produced by an upstream block.
		parsed = value
	default:
		text, _ := raw.(string)
		text = strings.TrimSpace(fencePattern.ReplaceAllString(text, "$1"))

		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			if b.Strict {
				return nil, fmt.Errorf("invalid JSON in field '%s': %w", b.FieldName, err)
			}

			return invalid(), nil
		}
	}

	if len(b.RequiredFields) > 0 {
		object, ok := parsed.(map[string]any)
		if !ok {
			return invalid(), nil
		}

		for _, field := range b.RequiredFields {
			if _, present := object[field]; !present {
				return invalid(), nil
			}
		}
	}

	return map[string]any{"valid": true, "parsed_json": parsed}, nil
}

func invalid() map[string]any {
	return map[string]any{"valid": false, "parsed_json": nil}
}
