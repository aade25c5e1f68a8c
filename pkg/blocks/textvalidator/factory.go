package textvalidator

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for textvalidator blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "Validator"
}

func (f *BlockFactory) Name() string {
	return "Validator"
}

func (f *BlockFactory) Description() string {
	return "Validate text against length and content rules"
}

// Inputs is the wildcard contract: the block inspects whichever of the
// "text" and "assistant" keys the pipeline happens to carry.
func (f *BlockFactory) Inputs() models.InputContract {
	return models.AllAvailable()
}

func (f *BlockFactory) Outputs() []string {
	return []string{"text", "valid", "assistant"}
}

func (f *BlockFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"min_length": {
				Type:        "number",
				Description: "Minimum accepted text length",
				Default:     0,
			},
			"max_length": {
				Type:        "number",
				Description: "Maximum accepted text length",
				Default:     100000,
			},
			"forbidden_words": {
				Type:        "array",
				Description: "Words that must not appear in the text",
				Items:       &models.Property{Type: "string"},
			},
		},
	}
}
