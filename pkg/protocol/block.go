// Package protocol defines the contracts pluggable blocks must satisfy.
package protocol

import (
	"context"

	"github.com/loomhq/loom/pkg/models"
)

// Block is one configured processing unit inside a pipeline run. Execute
// receives a read-only view of the accumulated state and must return
// exactly the keys its factory declares as outputs.
type Block interface {
	Execute(ctx context.Context, state map[string]any) (map[string]any, error)
}

// BlockFactory creates block instances and describes the block type's
// contract: the state keys it requires, the keys it promises to add, and
// the schema of its configuration.
type BlockFactory interface {
	// Create builds a configured block instance.
	Create(config map[string]any) (Block, error)

	// ID returns the stable type identifier.
	ID() string

	// Name returns the human-readable name for this block type.
	Name() string

	// Description returns a description of what this block does.
	Description() string

	// Inputs returns the block's input contract.
	Inputs() models.InputContract

	// Outputs returns the state keys the block promises to add.
	Outputs() []string

	// Schema returns the JSON schema for configuring this block.
	Schema() *models.JSONSchema
}
