package compose

import (
	"context"
	"errors"
	"testing"

	"mcphub/internal/hub"
)

type fakeCatalog struct {
	known map[string]bool
}

func (f *fakeCatalog) ToolExists(serverName, toolName string) bool {
	return f.known[serverName+"/"+toolName]
}

type fakeCaller struct {
	results map[string]any
	errs    map[string]error
	calls   []string
}

func (f *fakeCaller) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (any, error) {
	key := serverName + "/" + toolName
	f.calls = append(f.calls, key)
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return f.results[key], nil
}

func twoStepTool() ComposedTool {
	return ComposedTool{
		Name: "provision",
		Steps: []Step{
			{
				Name: "create", Server: "infra", Tool: "create_resource",
				Input:  map[string]any{"name": ParamRef{Kind: RefParam, Path: "name"}},
				Output: "created",
				Rollback: &Rollback{
					Server: "infra", Tool: "delete_resource",
					Input: map[string]any{"name": ParamRef{Kind: RefParam, Path: "name"}},
				},
			},
			{
				Name: "tag", Server: "infra", Tool: "tag_resource",
				Input: map[string]any{
					"id": ParamRef{Kind: RefOutput, StepName: "create", Path: "created.id"},
				},
			},
		},
	}
}

func TestRegisterTool_Success(t *testing.T) {
	catalog := &fakeCatalog{known: map[string]bool{
		"infra/create_resource": true,
		"infra/delete_resource": true,
		"infra/tag_resource":    true,
	}}
	reg := NewRegistry(catalog, &fakeCaller{})
	if err := reg.RegisterTool(twoStepTool()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRegisterTool_UnknownTool(t *testing.T) {
	catalog := &fakeCatalog{known: map[string]bool{}}
	reg := NewRegistry(catalog, &fakeCaller{})
	err := reg.RegisterTool(twoStepTool())
	if !errors.Is(err, hub.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterTool_ForwardReference(t *testing.T) {
	catalog := &fakeCatalog{known: map[string]bool{
		"infra/tag_resource":    true,
		"infra/create_resource": true,
	}}
	def := ComposedTool{
		Name: "bad",
		Steps: []Step{
			{Name: "tag", Server: "infra", Tool: "tag_resource", Input: map[string]any{
				"id": ParamRef{Kind: RefOutput, StepName: "create", Path: "id"},
			}},
			{Name: "create", Server: "infra", Tool: "create_resource"},
		},
	}
	reg := NewRegistry(catalog, &fakeCaller{})
	err := reg.RegisterTool(def)
	if !errors.Is(err, hub.ErrForwardReference) {
		t.Fatalf("expected ErrForwardReference, got %v", err)
	}
}

func TestExecuteTool_Success(t *testing.T) {
	catalog := &fakeCatalog{known: map[string]bool{
		"infra/create_resource": true,
		"infra/delete_resource": true,
		"infra/tag_resource":    true,
	}}
	caller := &fakeCaller{results: map[string]any{
		"infra/create_resource": map[string]any{"id": "r-1"},
		"infra/tag_resource":    map[string]any{"ok": true},
	}}
	reg := NewRegistry(catalog, caller)
	if err := reg.RegisterTool(twoStepTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	result := reg.ExecuteTool(context.Background(), "provision", map[string]any{"name": "box"})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(caller.calls) != 2 {
		t.Fatalf("expected 2 calls, got %v", caller.calls)
	}
}

// A mid-pipeline failure triggers a LIFO rollback drain of every
// already-succeeded step's compensating call.
func TestExecuteTool_FailureTriggersRollback(t *testing.T) {
	catalog := &fakeCatalog{known: map[string]bool{
		"infra/create_resource": true,
		"infra/delete_resource": true,
		"infra/tag_resource":    true,
	}}
	caller := &fakeCaller{
		results: map[string]any{
			"infra/create_resource": map[string]any{"id": "r-1"},
		},
		errs: map[string]error{
			"infra/tag_resource": errors.New("backend down"),
		},
	}
	reg := NewRegistry(catalog, caller)
	if err := reg.RegisterTool(twoStepTool()); err != nil {
		t.Fatalf("register: %v", err)
	}

	result := reg.ExecuteTool(context.Background(), "provision", map[string]any{"name": "box"})
	if result.Success {
		t.Fatalf("expected failure")
	}
	if result.Rollback == nil || !result.Rollback.Triggered {
		t.Fatalf("expected rollback to have triggered, got %+v", result.Rollback)
	}
	found := false
	for _, c := range caller.calls {
		if c == "infra/delete_resource" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected delete_resource compensator to run, got %v", caller.calls)
	}
}

func TestExecuteTool_ConditionSkipsStep(t *testing.T) {
	catalog := &fakeCatalog{known: map[string]bool{
		"infra/create_resource": true,
		"infra/notify":          true,
	}}
	def := ComposedTool{
		Name: "notify_on_failure",
		Steps: []Step{
			{Name: "create", Server: "infra", Tool: "create_resource"},
			{
				Name: "notify", Server: "infra", Tool: "notify",
				Condition: &Condition{Type: ConditionFailure, StepName: "create"},
			},
		},
	}
	caller := &fakeCaller{results: map[string]any{"infra/create_resource": "ok"}}
	reg := NewRegistry(catalog, caller)
	if err := reg.RegisterTool(def); err != nil {
		t.Fatalf("register: %v", err)
	}

	result := reg.ExecuteTool(context.Background(), "notify_on_failure", map[string]any{})
	if !result.Success {
		t.Fatalf("expected success, got %+v", result)
	}
	for _, sr := range result.StepResults {
		if sr.Name == "notify" && sr.Status != StepSkipped {
			t.Fatalf("expected notify step skipped, got %v", sr.Status)
		}
	}
}
