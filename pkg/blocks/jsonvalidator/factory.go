package jsonvalidator

import (
	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/protocol"
)

// BlockFactory is the factory for jsonvalidator blocks.
type BlockFactory struct{}

func NewBlockFactory() *BlockFactory {
	return &BlockFactory{}
}

func (f *BlockFactory) Create(config map[string]any) (protocol.Block, error) {
	return NewBlock(config)
}

func (f *BlockFactory) ID() string {
	return "JSONValidator"
}

func (f *BlockFactory) Name() string {
	return "JSON Validator"
}

func (f *BlockFactory) Description() string {
	return "Parse and validate JSON from any field in the accumulated state"
}

// Inputs is the wildcard contract: the inspected field is chosen by
// configuration, not declared up front.
func (f *BlockFactory) Inputs() models.InputContract {
	return models.AllAvailable()
}

func (f *BlockFactory) Outputs() []string {
	return []string{"valid", "parsed_json"}
}

func (f *BlockFactory) Schema() *models.JSONSchema {
	return &models.JSONSchema{
		Type: "object",
		Properties: map[string]*models.Property{
			"field_name": {
				Type:        "string",
				Description: "State field to parse as JSON",
				Default:     "assistant",
			},
			"required_fields": {
				Type:        "array",
				Description: "Fields that must be present in the parsed JSON",
				Items:       &models.Property{Type: "string"},
			},
			"strict": {
				Type:        "boolean",
				Description: "Fail the run on parse errors instead of marking the state invalid",
				Default:     false,
			},
		},
	}
}
