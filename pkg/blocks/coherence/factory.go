package coherence

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for coherence blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "CoherenceScore"
}

func (f *BlockFactory) Name() string {
	return "Coherence Score"
}

func (f *BlockFactory) Description() string {
	return "Calculate text coherence based on sentence structure"
}

func (f *BlockFactory) Inputs() models.InputContract {
	return models.AllAvailable()
}

func (f *BlockFactory) Outputs() []string {
	return []string{"coherence_score"}
}

func (f *BlockFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"field_name": {
				Type:        "string",
				Description: "State field holding the text to analyze",
				Default:     "assistant",
			},
		},
	}
}
