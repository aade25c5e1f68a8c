package models

// StepRecord is the immutable trace entry for one attempted block
// execution. Snapshots are copies taken at execution time; later state
// mutation never alters them.
type StepRecord struct {
	BlockType        string         `json:"block_type"`
	Input            map[string]any `json:"input"`
	Output           map[string]any `json:"output,omitempty"`
	AccumulatedState map[string]any `json:"accumulated_state"`
	ExecutionTime    float64        `json:"execution_time"`
	Error            string         `json:"error,omitempty"`
}

// Trace is the ordered record of one pipeline run. Its length equals the
// number of blocks attempted: execution stops at the first failing block.
type Trace []StepRecord

// CopyState returns a shallow copy of a state map, suitable for trace
// snapshots of string/number/JSON-ish values.
func CopyState(state map[string]any) map[string]any {
	copied := make(map[string]any, len(state))
	for k, v := range state {
		copied[k] = v
	}

	return copied
}
