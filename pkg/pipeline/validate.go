package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/loomhq/loom/pkg/models"
	"github.com/loomhq/loom/pkg/registry"
	"github.com/xeipuuv/gojsonschema"
)

// Validate structurally checks a pipeline definition against the block
// catalog. It is pure: no I/O, no mutation. Every violation is collected
// so the editor can highlight all problems at once; the aggregated
// result is a single KindValidation error.
func Validate(def models.PipelineDefinition, reg *registry.Registry) error {
	var issues []string

	if def.Name == "" {
		issues = append(issues, "pipeline name is required")
	}

	if len(def.Blocks) == 0 {
		issues = append(issues, "pipeline has no blocks: an entry and exit block are required")
	}

	for index, blockDef := range def.Blocks {
		factory, err := reg.Resolve(blockDef.Type)
		if err != nil {
			issues = append(issues, fmt.Sprintf("block %d: unknown type '%s'", index, blockDef.Type))

			continue
		}

		issues = append(issues, checkConfig(index, blockDef, factory.Schema())...)
	}

	if len(issues) > 0 {
		return newValidationError(issues)
	}

	return nil
}

// checkConfig validates a block's configuration against its JSON schema.
// Required fields must be present and, for strings, non-empty.
func checkConfig(index int, blockDef models.BlockDefinition, schema *models.JSONSchema) []string {
	if schema == nil {
		return nil
	}

	config := blockDef.Config
	if config == nil {
		config = map[string]any{}
	}

	var issues []string

	for _, field := range schema.Required {
		value, present := config[field]
		if !present {
			issues = append(issues, fmt.Sprintf("block %d (%s): required config field '%s' is missing", index, blockDef.Type, field))

			continue
		}

		if text, isString := value.(string); isString && text == "" {
			issues = append(issues, fmt.Sprintf("block %d (%s): required config field '%s' is empty", index, blockDef.Type, field))
		}
	}

	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		issues = append(issues, fmt.Sprintf("block %d (%s): invalid config schema: %v", index, blockDef.Type, err))

		return issues
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewGoLoader(config),
	)
	if err != nil {
		issues = append(issues, fmt.Sprintf("block %d (%s): config validation failed: %v", index, blockDef.Type, err))

		return issues
	}

	for _, violation := range result.Errors() {
		// Required-field violations are already reported above with
		// better wording.
		if violation.Type() == "required" {
			continue
		}

		issues = append(issues, fmt.Sprintf("block %d (%s): config %s", index, blockDef.Type, violation.String()))
	}

	return issues
}
