package compose

import (
	"context"
	"fmt"
	"time"

	"mcphub/internal/hub"
	"mcphub/internal/metrics"
)

// ExecuteTool implements §4.7's executeTool(name, params) algorithm.
func (r *Registry) ExecuteTool(ctx context.Context, name string, params map[string]any) ComposedResult {
	def, ok := r.tools[name]
	if !ok {
		metrics.ComposedToolExecutionsTotal.WithLabelValues(name, "unknown_tool").Inc()
		return ComposedResult{Success: false, ToolName: name}
	}

	if err := validateAgainstSchema(def.InputSchema, params); err != nil {
		metrics.ComposedToolExecutionsTotal.WithLabelValues(name, "validation_failed").Inc()
		return ComposedResult{Success: false, ToolName: name}
	}

	state := &ExecutionState{
		Status:    ToolRunning,
		Steps:     make(map[string]*StepState, len(def.Steps)),
		Params:    params,
		StartedAt: now(),
	}
	for _, s := range def.Steps {
		state.Steps[s.Name] = &StepState{Status: StepPending}
	}

	var stepResults []StepResult
	failed := false

	for _, step := range def.Steps {
		state.CurrentStep = step.Name
		stepState := state.Steps[step.Name]

		shouldRun, condErr := evaluateCondition(step.Condition, state)
		if condErr != nil {
			stepState.Status = StepFailed
			stepState.Err = condErr
			stepResults = append(stepResults, StepResult{Name: step.Name, Status: StepFailed, Error: condErr.Error()})
			failed = true
			break
		}
		if !shouldRun {
			stepState.Status = StepSkipped
			stepResults = append(stepResults, StepResult{Name: step.Name, Status: StepSkipped})
			continue
		}

		stepState.Status = StepRunning
		stepState.StartTime = now()

		resolvedInput, err := resolveInput(step.Input, state)
		if err != nil {
			stepState.Status = StepFailed
			stepState.Err = err
			stepState.EndTime = now()
			stepResults = append(stepResults, StepResult{Name: step.Name, Status: StepFailed, Error: err.Error()})
			failed = true
			break
		}

		result, err := r.caller.CallTool(ctx, step.Server, step.Tool, resolvedInput)
		stepState.EndTime = now()
		durationMs := stepState.EndTime.Sub(stepState.StartTime).Milliseconds()

		if err != nil {
			stepState.Status = StepFailed
			stepState.Err = err
			stepResults = append(stepResults, StepResult{Name: step.Name, Status: StepFailed, Error: err.Error(), DurationMs: durationMs})
			failed = true
			break
		}

		stepState.Status = StepSuccess
		if step.Output != "" {
			stepState.Outputs = map[string]any{step.Output: result}
		}
		stepResults = append(stepResults, StepResult{Name: step.Name, Status: StepSuccess, Result: result, DurationMs: durationMs})

		if step.Rollback != nil {
			rbArgs, err := resolveInput(step.Rollback.Input, state)
			if err == nil {
				state.rollbackStack = append(state.rollbackStack, rollbackEntry{
					server: step.Rollback.Server,
					tool:   step.Rollback.Tool,
					args:   rbArgs,
				})
			}
		}
	}

	state.EndedAt = now()
	res := ComposedResult{
		ToolName:    name,
		StepResults: stepResults,
		Outputs:     collectOutputs(state),
		DurationMs:  state.EndedAt.Sub(state.StartedAt).Milliseconds(),
	}

	if failed {
		state.Status = ToolFailed
		res.Success = false
		res.Rollback = r.drainRollback(ctx, state)
		metrics.ComposedToolExecutionsTotal.WithLabelValues(name, "failed").Inc()
	} else {
		state.Status = ToolSuccess
		res.Success = true
		metrics.ComposedToolExecutionsTotal.WithLabelValues(name, "success").Inc()
	}

	return res
}

// drainRollback implements §4.7 step 3: LIFO compensation, continuing past
// individual compensator failures.
func (r *Registry) drainRollback(ctx context.Context, state *ExecutionState) *RollbackInfo {
	if len(state.rollbackStack) == 0 {
		return nil
	}
	info := &RollbackInfo{Triggered: true, Successful: true}
	for i := len(state.rollbackStack) - 1; i >= 0; i-- {
		entry := state.rollbackStack[i]
		if _, err := r.caller.CallTool(ctx, entry.server, entry.tool, entry.args); err != nil {
			info.Successful = false
			if info.Error == "" {
				info.Error = fmt.Sprintf("%s/%s: %v", entry.server, entry.tool, err)
			}
		}
	}
	return info
}

func collectOutputs(state *ExecutionState) map[string]any {
	outputs := make(map[string]any)
	for _, ss := range state.Steps {
		for k, v := range ss.Outputs {
			outputs[k] = v
		}
	}
	return outputs
}

// validateAgainstSchema is a minimal structural check: every name listed
// under inputSchema.required must be present in params. Full JSON-schema
// validation is out of scope; the Tool Executor's own validation covers the
// leaf-level tool calls this composition dispatches to.
func validateAgainstSchema(schema map[string]any, params map[string]any) error {
	if schema == nil {
		return nil
	}
	var required []string
	switch r := schema["required"].(type) {
	case []string:
		required = r
	case []any:
		for _, v := range r {
			if s, ok := v.(string); ok {
				required = append(required, s)
			}
		}
	default:
		return nil
	}
	var missing []string
	for _, field := range required {
		if _, ok := params[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing required params %v", hub.ErrValidation, missing)
	}
	return nil
}

func now() time.Time { return time.Now() }
