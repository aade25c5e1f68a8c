package formatter

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for formatter blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "Formatter"
}

func (f *BlockFactory) Name() string {
	return "Output Formatter"
}

func (f *BlockFactory) Description() string {
	return "Format pipeline output for display"
}

func (f *BlockFactory) Inputs() models.InputContract {
	return models.DeclaredInputs("assistant")
}

func (f *BlockFactory) Outputs() []string {
	return []string{"pipeline_output"}
}

func (f *BlockFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"format_template": {
				Type:        "string",
				Format:      "template",
				Description: "Go template rendered against the accumulated state",
				Default:     "Result: {{.assistant}}",
			},
		},
	}
}
