// Package registry provides the explicit block registration table.
package registry

import (
	"github.com/loomhq/loom/pkg/blocks/coherence"
	"github.com/loomhq/loom/pkg/blocks/diversity"
	"github.com/loomhq/loom/pkg/blocks/formatter"
	"github.com/loomhq/loom/pkg/blocks/jsonvalidator"
	"github.com/loomhq/loom/pkg/blocks/rougescore"
	"github.com/loomhq/loom/pkg/blocks/structured"
	"github.com/loomhq/loom/pkg/blocks/textgen"
	"github.com/loomhq/loom/pkg/blocks/textvalidator"
)

// RegisterDefaultBlocks registers every shipped block factory, stable
// blocks first, then experimental ones. Registration order matters: a
// later factory with the same id shadows an earlier one, so user plugins
// loaded afterwards can replace built-ins.
func (r *Registry) RegisterDefaultBlocks() {
	r.registerStableBlocks()
	r.registerExperimentalBlocks()
}

func (r *Registry) registerStableBlocks() {
	r.RegisterBlock(textgen.NewBlockFactory())
	r.RegisterBlock(structured.NewBlockFactory())
	r.RegisterBlock(formatter.NewBlockFactory())
	r.RegisterBlock(textvalidator.NewBlockFactory())
	r.RegisterBlock(jsonvalidator.NewBlockFactory())
}

func (r *Registry) registerExperimentalBlocks() {
	r.RegisterBlock(diversity.NewBlockFactory())
	r.RegisterBlock(coherence.NewBlockFactory())
	r.RegisterBlock(rougescore.NewBlockFactory())
}
