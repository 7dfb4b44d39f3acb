// Package compose implements the Composition Executor (C7): user-declared
// multi-step workflows over tools already reachable through the Hub, with
// acyclicity-checked registration, sequential execution with conditional
// steps, and a LIFO best-effort rollback stack on failure.
package compose

import "time"

// RefKind distinguishes the two sources a Step.Input value can draw from.
type RefKind string

const (
	RefParam  RefKind = "param"
	RefOutput RefKind = "output"
)

// ParamRef is a reference cell inside a Step's Input map, resolved just
// before that step runs.
type ParamRef struct {
	Kind     RefKind
	Path     string // dotted path, interpreted by gjson
	StepName string // only meaningful when Kind == RefOutput
}

// ConditionType selects how a Step.Condition is evaluated.
type ConditionType string

const (
	ConditionSuccess    ConditionType = "success"
	ConditionFailure    ConditionType = "failure"
	ConditionExpression ConditionType = "expression"
)

// Condition gates whether a step runs at all.
type Condition struct {
	Type       ConditionType
	StepName   string
	Expression string
}

// Rollback is the compensating call pushed onto the rollback stack once its
// step completes successfully.
type Rollback struct {
	Server string
	Tool   string
	Input  map[string]any // may itself contain ParamRef values, resolved at push time
}

// Step is one node of a ComposedTool's pipeline.
type Step struct {
	Name      string
	Server    string
	Tool      string
	Input     map[string]any // values are literals or ParamRef
	Output    string         // name under which the result is stored, optional
	Condition *Condition
	Rollback  *Rollback
}

// ComposedTool is a registered, validated workflow definition.
type ComposedTool struct {
	Name         string
	Description  string
	Version      string
	Steps        []Step
	InputSchema  map[string]any // JSON-schema-shaped, validated with plain Go checks
	OutputSchema map[string]any
	Metadata     map[string]any
}

// StepStatus is the lifecycle state of one step within one execution.
type StepStatus string

const (
	StepPending StepStatus = "pending"
	StepRunning StepStatus = "running"
	StepSuccess StepStatus = "success"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepState is the per-step transient record kept inside ExecutionState.
type StepState struct {
	Status    StepStatus
	StartTime time.Time
	EndTime   time.Time
	Outputs   map[string]any
	Err       error
}

// ToolStatus is the lifecycle state of a whole execution.
type ToolStatus string

const (
	ToolPending ToolStatus = "pending"
	ToolRunning ToolStatus = "running"
	ToolSuccess ToolStatus = "success"
	ToolFailed  ToolStatus = "failed"
)

// rollbackEntry is a Rollback whose parameters were already resolved at the
// time its step succeeded, ready to replay LIFO without re-resolving
// ParamRefs against later state.
type rollbackEntry struct {
	server string
	tool   string
	args   map[string]any
}

// ExecutionState is transient, per-invocation state with no cross-execution
// sharing (§5).
type ExecutionState struct {
	Status        ToolStatus
	CurrentStep   string
	Steps         map[string]*StepState
	rollbackStack []rollbackEntry
	Params        map[string]any
	StartedAt     time.Time
	EndedAt       time.Time
}

// StepResult is one entry of a ComposedResult's reported step outcomes.
type StepResult struct {
	Name       string
	Status     StepStatus
	Result     any
	Error      string
	DurationMs int64
}

// RollbackInfo reports whether compensation ran and whether it fully
// succeeded; compensator failures never abort the drain (§4.7).
type RollbackInfo struct {
	Triggered  bool
	Successful bool
	Error      string
}

// ComposedResult is executeTool's boundary-crossing return shape.
type ComposedResult struct {
	Success     bool
	ToolName    string
	StepResults []StepResult
	Outputs     map[string]any
	DurationMs  int64
	Rollback    *RollbackInfo
}
