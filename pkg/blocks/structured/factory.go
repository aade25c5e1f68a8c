package structured

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for structured generator blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "StructuredGenerator"
}

func (f *BlockFactory) Name() string {
	return "Structured Generator"
}

func (f *BlockFactory) Description() string {
	return "Generate structured JSON data using the configured generation service"
}

func (f *BlockFactory) Inputs() models.InputContract {
	return models.DeclaredInputs()
}

func (f *BlockFactory) Outputs() []string {
	return []string{"generated"}
}

func (f *BlockFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"model": {
				Type:        "string",
				Description: "Model identifier passed to the generation service. Defaults to LLM_MODEL.",
			},
			"endpoint": {
				Type:        "string",
				Description: "Base URL of the generation service. Defaults to LLM_ENDPOINT.",
			},
			"temperature": {
				Type:        "number",
				Description: "Sampling temperature",
				Default:     0.7,
			},
			"max_tokens": {
				Type:        "number",
				Description: "Completion token limit",
				Default:     2048,
			},
			"prompt": {
				Type:        "string",
				Description: "Generation prompt. Falls back to the 'prompt' state key.",
			},
			"json_schema": {
				Type:        "object",
				Description: "JSON Schema the generated object should conform to",
			},
		},
	}
}
