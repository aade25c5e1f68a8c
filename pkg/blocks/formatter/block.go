// Package formatter provides the block that renders the final pipeline
// output for display.
package formatter

import (
	"context"

	"github.com/loomhq/loom/pkg/template"
)

// Block formats the accumulated state into the "pipeline_output" key
// using a Go template.
type Block struct {
	FormatTemplate string
}

func NewBlock(config map[string]any) (*Block, error) {
	formatTemplate, _ := config["format_template"].(string)
	if formatTemplate == "" {
		formatTemplate = "Result: {{.assistant}}"
	}

	return &Block{FormatTemplate: formatTemplate}, nil
}

func (b *Block) Execute(_ context.Context, state map[string]any) (map[string]any, error) {
	formatted, err := template.RenderString(b.FormatTemplate, state)
	if err != nil {
		return nil, err
	}

	return map[string]any{"pipeline_output": formatted}, nil
}
