// Package models defines the core domain models for block-based generation pipelines.
package models

// InputContract declares which accumulated-state keys a block requires
// before it may execute. It is either a fixed key set or a wildcard that
// grants the block visibility into the entire current state.
type InputContract struct {
	wildcard bool
	keys     []string
}

// DeclaredInputs builds a contract requiring the given keys.
func DeclaredInputs(keys ...string) InputContract {
	return InputContract{keys: keys}
}

// AllAvailable builds the wildcard contract ("*" in the persisted form).
func AllAvailable() InputContract {
	return InputContract{wildcard: true}
}

// IsWildcard reports whether the contract bypasses the key check.
func (c InputContract) IsWildcard() bool {
	return c.wildcard
}

// Keys returns the required keys. Empty for wildcard contracts.
func (c InputContract) Keys() []string {
	return c.keys
}

// MissingFrom returns the declared keys absent from state, in declaration
// order. Always empty for wildcard contracts.
func (c InputContract) MissingFrom(state map[string]any) []string {
	if c.wildcard {
		return nil
	}

	var missing []string

	for _, key := range c.keys {
		if _, ok := state[key]; !ok {
			missing = append(missing, key)
		}
	}

	return missing
}

// BlockDescriptor is the catalog entry for a registered block type. It is
// built once per discovery pass and read-only afterwards.
type BlockDescriptor struct {
	Type        string      `json:"type"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Inputs      []string    `json:"inputs"`
	Outputs     []string    `json:"outputs"`
	Schema      *JSONSchema `json:"config_schema,omitempty"`
}

// BlockDefinition is one configured block reference inside a pipeline
// definition.
type BlockDefinition struct {
	Type   string         `json:"type"   validate:"required"`
	Config map[string]any `json:"config"`
}
