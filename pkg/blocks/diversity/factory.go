package diversity

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for diversity blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "DiversityScore"
}

func (f *BlockFactory) Name() string {
	return "Diversity Score"
}

func (f *BlockFactory) Description() string {
	return "Calculate a lexical diversity score for text variations"
}

func (f *BlockFactory) Inputs() models.InputContract {
	return models.AllAvailable()
}

func (f *BlockFactory) Outputs() []string {
	return []string{"diversity_score"}
}

func (f *BlockFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"field_name": {
				Type:        "string",
				Description: "State field holding the list of text variations to score",
				Default:     "assistant",
			},
		},
	}
}
