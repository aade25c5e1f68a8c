package textgen

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for textgen blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "TextGenerator"
}

func (f *BlockFactory) Name() string {
	return "Text Generator"
}

func (f *BlockFactory) Description() string {
	return "Generate text using the configured generation service"
}

func (f *BlockFactory) Inputs() models.InputContract {
	return models.DeclaredInputs()
}

func (f *BlockFactory) Outputs() []string {
	return []string{"assistant", "system", "user"}
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
			"system_prompt": {
				Type:        "string",
				Description: "System prompt. Falls back to the 'system' state key.",
			},
			"user_prompt": {
				Type:        "string",
				Description: "User prompt. Falls back to the 'user' state key.",
			},
		},
	}
}
