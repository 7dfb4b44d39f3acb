package toolexec

import (
	"context"
	"errors"
	"testing"

	"mcphub/internal/config"
	"mcphub/internal/hub"
)

type fakeCaller struct {
	descriptors map[string]hub.ToolDescriptor
	calls       []string
	callResult  any
	callErr     error
}

func (f *fakeCaller) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (any, error) {
	f.calls = append(f.calls, serverName+"/"+toolName)
	if f.callErr != nil {
		return nil, f.callErr
	}
	return f.callResult, nil
}

func (f *fakeCaller) ToolDescriptor(serverName, toolName string) (hub.ToolDescriptor, error) {
	d, ok := f.descriptors[serverName+"/"+toolName]
	if !ok {
		return hub.ToolDescriptor{}, hub.ErrToolNotFound
	}
	return d, nil
}

func (f *fakeCaller) ToolExists(serverName, toolName string) bool {
	_, ok := f.descriptors[serverName+"/"+toolName]
	return ok
}

func baseConfig() config.ToolExecutorConfig {
	return config.ToolExecutorConfig{MaxRetries: 2, LLMEnabled: false}
}

// S2: a missing required field is filled from the server context's default.
func TestExecuteTool_MissingFieldFilledFromDefault(t *testing.T) {
	caller := &fakeCaller{
		descriptors: map[string]hub.ToolDescriptor{
			"fs/write_file": {
				ServerName: "fs", Name: "write_file",
				InputSchema: hub.InputSchema{Required: []string{"path", "encoding"}},
			},
		},
		callResult: "ok",
	}
	// write_file is dangerous by keyword, so the hook must approve it.
	exec := New(caller, baseConfig(), func(string, string, map[string]any) bool { return true }, nil, nil)
	exec.SetServerContext("fs", &hub.ServerContext{Type: "default", Config: map[string]any{"encoding": "utf-8"}})

	result := exec.ExecuteTool(context.Background(), Request{
		ServerName: "fs", ToolName: "write_file",
		Arguments: map[string]any{"path": "/tmp/x"},
	})

	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
	if len(caller.calls) != 1 || caller.calls[0] != "fs/write_file" {
		t.Fatalf("expected one dispatched call, got %v", caller.calls)
	}
}

// S3: missing field, LLM disabled -> {ok:false, missingFields:["name"]}.
func TestExecuteTool_MissingFieldNoLLM(t *testing.T) {
	caller := &fakeCaller{
		descriptors: map[string]hub.ToolDescriptor{
			"fs/create_item": {
				ServerName: "fs", Name: "create_item",
				InputSchema: hub.InputSchema{Required: []string{"name"}},
			},
		},
	}
	exec := New(caller, baseConfig(), nil, nil, nil)

	result := exec.ExecuteTool(context.Background(), Request{
		ServerName: "fs", ToolName: "create_item",
		Arguments: map[string]any{},
	})

	if result.OK {
		t.Fatalf("expected failure, got success")
	}
	if len(result.MissingFields) != 1 || result.MissingFields[0] != "name" {
		t.Fatalf("expected missingFields=[name], got %v", result.MissingFields)
	}
	if len(caller.calls) != 0 {
		t.Fatalf("expected no dispatched call, got %v", caller.calls)
	}
}

// S4: dangerous call denied by the confirmation hook must fail with
// ErrUserDenied and never reach the backend.
func TestExecuteTool_DangerousDenied(t *testing.T) {
	caller := &fakeCaller{
		descriptors: map[string]hub.ToolDescriptor{
			"fs/delete_file": {
				ServerName: "fs", Name: "delete_file",
				InputSchema: hub.InputSchema{Required: []string{"path"}},
			},
		},
	}
	exec := New(caller, baseConfig(), func(serverName, toolName string, args map[string]any) bool {
		return false
	}, nil, nil)

	result := exec.ExecuteTool(context.Background(), Request{
		ServerName: "fs", ToolName: "delete_file",
		Arguments: map[string]any{"path": "/tmp/x"},
	})

	if result.OK {
		t.Fatalf("expected denial, got success")
	}
	if !errors.Is(result.Err, hub.ErrUserDenied) {
		t.Fatalf("expected ErrUserDenied, got %v", result.Err)
	}
	if len(caller.calls) != 0 {
		t.Fatalf("expected no RPC sent, got %v", caller.calls)
	}
}

// A nil confirmation hook is the safe default: every dangerous call is denied.
func TestExecuteTool_NilConfirmHookDeniesDangerous(t *testing.T) {
	caller := &fakeCaller{
		descriptors: map[string]hub.ToolDescriptor{
			"fs/delete_file": {
				ServerName: "fs", Name: "delete_file",
				InputSchema: hub.InputSchema{Required: []string{"path"}},
			},
		},
	}
	exec := New(caller, baseConfig(), nil, nil, nil)

	result := exec.ExecuteTool(context.Background(), Request{
		ServerName: "fs", ToolName: "delete_file",
		Arguments: map[string]any{"path": "/tmp/x"},
	})

	if result.OK || !errors.Is(result.Err, hub.ErrUserDenied) {
		t.Fatalf("expected ErrUserDenied, got %+v", result)
	}
}

// A dangerous DELETE call first probes the paired get tool to capture the
// previous state. Here every call fails, the probe included, so no state is
// captured and the failed call is reported without a rollback.
func TestExecuteTool_DangerousCallProbesPreviousState(t *testing.T) {
	caller := &fakeCaller{
		descriptors: map[string]hub.ToolDescriptor{
			"fs/delete_file":  {ServerName: "fs", Name: "delete_file"},
			"fs/get_file":     {ServerName: "fs", Name: "get_file"},
			"fs/create_file":  {ServerName: "fs", Name: "create_file"},
		},
		callErr: errors.New("backend exploded"),
	}
	exec := New(caller, baseConfig(), func(string, string, map[string]any) bool { return true }, nil, nil)

	result := exec.ExecuteTool(context.Background(), Request{
		ServerName: "fs", ToolName: "delete_file",
		Arguments: map[string]any{"path": "/tmp/x"},
	})

	if result.OK {
		t.Fatalf("expected failure")
	}
	found := false
	for _, c := range caller.calls {
		if c == "fs/get_file" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a state-capture probe call to get_file, got %v", caller.calls)
	}
}

func TestClassifyOperation_PriorityOrder(t *testing.T) {
	cases := map[string]hub.OperationType{
		"delete_and_write": hub.OpDelete,
		"write_file":        hub.OpWrite,
		"modify_record":     hub.OpModify,
		"execute_script":    hub.OpExecute,
		"format_disk":       hub.OpFormat,
		"list_items":        hub.OpModify,
	}
	for name, want := range cases {
		if got := classifyOperation(name); got != want {
			t.Errorf("classifyOperation(%q) = %v, want %v", name, got, want)
		}
	}
}
