package toolexec

import (
	"context"
	"log/slog"
	"regexp"

	"mcphub/internal/hub"
)

var (
	probeDeleteModify = regexp.MustCompile(`(?i)delete|modify`)
	pairDeleteRemove  = regexp.MustCompile(`(?i)delete|remove`)
	pairWriteModify   = regexp.MustCompile(`(?i)write|modify`)
)

// captureState implements §4.6.b's best-effort probe: for DELETE and
// MODIFY operations it substitutes delete|modify -> get in the tool name
// and calls that paired tool in read mode. Any failure (including the
// paired tool not existing) disables rollback for this call by returning
// nil, which is logged, not propagated — state capture must never fail the
// forward call.
func (e *Executor) captureState(ctx context.Context, serverName, toolName string, args map[string]any) any {
	op := classifyOperation(toolName)
	if op != hub.OpDelete && op != hub.OpModify {
		return nil
	}
	probeName := probeDeleteModify.ReplaceAllString(toolName, "get")
	if probeName == toolName || !e.hub.ToolExists(serverName, probeName) {
		return nil
	}
	probeArgs := cloneArgs(args)
	probeArgs["mode"] = "read"
	data, err := e.hub.CallTool(ctx, serverName, probeName, probeArgs)
	if err != nil {
		slog.Default().Debug("rollback state capture failed", "server", serverName, "tool", toolName, "probe", probeName, "error", err)
		return nil
	}
	return data
}

// rollback implements §4.6.b: DELETE pairs with a create tool passing the
// captured state as data; MODIFY pairs with a restore tool passing the
// captured state as content. Rollback is only attempted if the paired tool
// exists in the catalog.
func (e *Executor) rollback(ctx context.Context, serverName, toolName string, args map[string]any, previousState any) error {
	op := classifyOperation(toolName)
	var pairedName string
	var rollbackArgs map[string]any

	switch op {
	case hub.OpDelete:
		pairedName = pairDeleteRemove.ReplaceAllString(toolName, "create")
		rollbackArgs = cloneArgs(args)
		rollbackArgs["data"] = previousState
	case hub.OpModify:
		pairedName = pairWriteModify.ReplaceAllString(toolName, "restore")
		rollbackArgs = cloneArgs(args)
		rollbackArgs["content"] = previousState
	default:
		return nil
	}

	if pairedName == toolName || !e.hub.ToolExists(serverName, pairedName) {
		return nil
	}
	_, err := e.hub.CallTool(ctx, serverName, pairedName, rollbackArgs)
	return err
}
