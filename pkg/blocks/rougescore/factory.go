package rougescore

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for ROUGE score blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "RougeScore"
}

func (f *BlockFactory) Name() string {
	return "ROUGE Score"
}

func (f *BlockFactory) Description() string {
	return "Calculate a ROUGE score comparing generated text against reference text"
}

func (f *BlockFactory) Inputs() models.InputContract {
	return models.AllAvailable()
}

func (f *BlockFactory) Outputs() []string {
	return []string{"rouge_score"}
}

func (f *BlockFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"generated_field": {
				Type:        "string",
				Description: "State field holding the generated text",
				Default:     "assistant",
			},
			"reference_field": {
				Type:        "string",
				Description: "State field holding the reference text",
				Default:     "reference",
			},
			"rouge_type": {
				Type:        "string",
				Description: "ROUGE variant to compute",
				Enum:        []any{"rouge1", "rouge2", "rougeL"},
				Default:     "rouge1",
			},
		},
	}
}
