package compose

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"mcphub/internal/hub"
)

// resolveInput implements §4.7 step 2.b: substitute every ParamRef in a
// step's Input map with its referenced value. A ParamRef of kind output
// naming a step that did not reach success fails with ErrReferenceUnavailable.
func resolveInput(input map[string]any, state *ExecutionState) (map[string]any, error) {
	resolved := make(map[string]any, len(input))
	for key, v := range input {
		rv, err := resolveValue(v, state)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", key, err)
		}
		resolved[key] = rv
	}
	return resolved, nil
}

func resolveValue(v any, state *ExecutionState) (any, error) {
	ref, ok := v.(ParamRef)
	if !ok {
		return v, nil
	}

	switch ref.Kind {
	case RefParam:
		return lookupPath(state.Params, ref.Path)
	case RefOutput:
		step, ok := state.Steps[ref.StepName]
		if !ok || step.Status != StepSuccess {
			return nil, fmt.Errorf("%w: step %q", hub.ErrReferenceUnavailable, ref.StepName)
		}
		return lookupPath(step.Outputs, ref.Path)
	default:
		return nil, fmt.Errorf("compose: unknown ParamRef kind %q", ref.Kind)
	}
}

// lookupPath resolves a dotted path against an any-shaped value via gjson,
// the same approach the Tool Executor uses for server-context defaults.
func lookupPath(v any, path string) (any, error) {
	if path == "" {
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal value for path lookup: %w", err)
	}
	result := gjson.GetBytes(raw, path)
	if !result.Exists() {
		return nil, fmt.Errorf("path %q not found", path)
	}
	return result.Value(), nil
}
