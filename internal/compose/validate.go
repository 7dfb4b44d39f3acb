package compose

import (
	"context"
	"fmt"

	"mcphub/internal/hub"
)

// Catalog is the subset of *hub.Hub the Composition Executor needs to
// verify that a step's (server, tool) pair actually exists.
type Catalog interface {
	ToolExists(serverName, toolName string) bool
}

// Registry stores validated ComposedTool definitions and executes them.
type Registry struct {
	catalog Catalog
	caller  Caller
	tools   map[string]ComposedTool
}

// Caller dispatches one resolved tool call through the Hub.
type Caller interface {
	CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (any, error)
}

func NewRegistry(catalog Catalog, caller Caller) *Registry {
	return &Registry{catalog: catalog, caller: caller, tools: make(map[string]ComposedTool)}
}

// RegisterTool validates and stores a ComposedTool. All checks must pass or
// registration fails with a typed error, per §4.7.
func (r *Registry) RegisterTool(def ComposedTool) error {
	if def.Name == "" {
		return fmt.Errorf("%w: composed tool name is required", hub.ErrValidation)
	}

	seen := make(map[string]int, len(def.Steps))
	for i, step := range def.Steps {
		if step.Name == "" {
			return fmt.Errorf("%w: step %d has no name", hub.ErrValidation, i)
		}
		if _, dup := seen[step.Name]; dup {
			return fmt.Errorf("%w: duplicate step name %q", hub.ErrValidation, step.Name)
		}
		seen[step.Name] = i

		if r.catalog != nil && !r.catalog.ToolExists(step.Server, step.Tool) {
			return fmt.Errorf("%w: step %q references unknown tool %s/%s", hub.ErrValidation, step.Name, step.Server, step.Tool)
		}

		for key, v := range step.Input {
			ref, ok := v.(ParamRef)
			if !ok || ref.Kind != RefOutput {
				continue
			}
			earlierIdx, ok := seen[ref.StepName]
			if !ok || earlierIdx >= i {
				return fmt.Errorf("%w: step %q input %q references step %q which is not earlier in the declaration order", hub.ErrForwardReference, step.Name, key, ref.StepName)
			}
		}

		if step.Condition != nil && step.Condition.Type != ConditionExpression {
			earlierIdx, ok := seen[step.Condition.StepName]
			if !ok || earlierIdx >= i {
				return fmt.Errorf("%w: step %q condition references step %q which has not run yet", hub.ErrForwardReference, step.Name, step.Condition.StepName)
			}
		}
	}

	if cyclePath := detectCycle(def.Steps); cyclePath != nil {
		return &hub.CircularDependencyError{Path: cyclePath}
	}

	r.tools[def.Name] = def
	return nil
}

// detectCycle runs a DFS with a recursion-path set over the graph where an
// edge step -> ref.StepName exists for every RefOutput ParamRef. Because
// registration already rejects any reference to a non-earlier step, a cycle
// can only arise from a malformed graph assembled outside RegisterTool's own
// ordering check; the search is kept as a defense-in-depth pass mirroring
// §4.7's explicit algorithm.
func detectCycle(steps []Step) []string {
	index := make(map[string]int, len(steps))
	for i, s := range steps {
		index[s.Name] = i
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(steps))
	var path []string

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		path = append(path, name)

		idx, ok := index[name]
		if ok {
			for _, v := range steps[idx].Input {
				ref, ok := v.(ParamRef)
				if !ok || ref.Kind != RefOutput {
					continue
				}
				switch color[ref.StepName] {
				case white:
					if cyc := visit(ref.StepName); cyc != nil {
						return cyc
					}
				case gray:
					return append(append([]string{}, path...), ref.StepName)
				}
			}
		}

		path = path[:len(path)-1]
		color[name] = black
		return nil
	}

	for _, s := range steps {
		if color[s.Name] == white {
			if cyc := visit(s.Name); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}
