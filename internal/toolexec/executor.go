// Package toolexec implements the Tool Executor (C6): argument validation,
// default injection, danger classification, a confirmation gate, optional
// LLM-assisted completion of missing arguments, and best-effort rollback
// around a single tool call dispatched through the Hub.
package toolexec

import (
	"context"
	"sync"
	"time"

	"mcphub/internal/config"
	"mcphub/internal/hub"
	"mcphub/internal/llm"
	"mcphub/internal/redact"
)

// Caller is the subset of *hub.Hub the executor depends on, narrowed for
// testability without spinning up a real Hub.
type Caller interface {
	CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (any, error)
	ToolDescriptor(serverName, toolName string) (hub.ToolDescriptor, error)
	ToolExists(serverName, toolName string) bool
}

// ConfirmationHook asks an external collaborator (ultimately a human, via
// whatever UI surface is wired in) whether a dangerous call may proceed.
type ConfirmationHook func(serverName, toolName string, args map[string]any) bool

// Request is one executeTool invocation.
type Request struct {
	ServerName string
	ToolName   string
	Arguments  map[string]any
}

// Executor implements executeTool (§4.6). The zero value is not usable;
// build with New.
type Executor struct {
	hub        Caller
	cfg        config.ToolExecutorConfig
	confirm    ConfirmationHook
	llmClient  llm.Client
	redactor   redact.Filter
	contextsMu sync.RWMutex
	contexts   map[string]*hub.ServerContext
}

// New builds an Executor. llmClient may be nil; confirm may be nil, in
// which case every dangerous call is treated as denied (the safe default).
// A nil redactor falls back to a FieldRedactor built from
// cfg.SafetyConfig.SensitiveFields (§4.14), so a caller that wires up
// sensitive_fields in configuration gets scrubbing without also having to
// construct the filter itself.
func New(h Caller, cfg config.ToolExecutorConfig, confirm ConfirmationHook, llmClient llm.Client, redactor redact.Filter) *Executor {
	if redactor == nil && len(cfg.SafetyConfig.SensitiveFields) > 0 {
		redactor = &redact.FieldRedactor{Fields: cfg.SafetyConfig.SensitiveFields}
	}
	return &Executor{
		hub:       h,
		cfg:       cfg,
		confirm:   confirm,
		llmClient: llmClient,
		redactor:  redactor,
		contexts:  make(map[string]*hub.ServerContext),
	}
}

// ServerContext returns (creating if absent) the mutable per-server state
// the Tool Executor maintains outside the Hub's own Connection records.
func (e *Executor) ServerContext(serverName string) *hub.ServerContext {
	e.contextsMu.Lock()
	defer e.contextsMu.Unlock()
	sc, ok := e.contexts[serverName]
	if !ok {
		sc = &hub.ServerContext{Type: "default", Config: map[string]any{}}
		e.contexts[serverName] = sc
	}
	return sc
}

// SetServerContext installs an explicit context (e.g. loaded from
// configuration) for a server, replacing any default.
func (e *Executor) SetServerContext(serverName string, sc *hub.ServerContext) {
	e.contextsMu.Lock()
	defer e.contextsMu.Unlock()
	e.contexts[serverName] = sc
}

// ExecuteTool runs the full algorithm of §4.6 and never panics across the
// boundary except for programmer errors (nil hub).
func (e *Executor) ExecuteTool(ctx context.Context, req Request) hub.Result {
	if e.hub == nil {
		panic("toolexec: nil hub")
	}

	descriptor, err := e.hub.ToolDescriptor(req.ServerName, req.ToolName)
	if err != nil {
		return hub.Result{OK: false, Err: err}
	}

	serverCtx := e.ServerContext(req.ServerName)
	args := cloneArgs(req.Arguments)

	record := &hub.CallRecord{
		ServerName:    req.ServerName,
		ToolName:      req.ToolName,
		Args:          args,
		OperationType: classifyOperation(req.ToolName),
	}

	dangerous, level := classifyDanger(descriptor, e.cfg.SafetyConfig)
	if dangerous {
		record.CapturedPreviousState = e.captureState(ctx, req.ServerName, req.ToolName, args)
	}

	if requiresConfirmation(descriptor, e.cfg.SafetyConfig, dangerous, level) {
		allowed := e.confirm != nil && e.confirm(req.ServerName, req.ToolName, args)
		if !allowed {
			return hub.Result{OK: false, Err: hub.ErrUserDenied}
		}
	}

	missing := e.validateAndEnrich(descriptor, serverCtx, args)
	attempt := 0
	for len(missing) > 0 {
		if !e.cfg.LLMEnabled || attempt >= e.cfg.MaxRetries {
			return hub.Result{OK: false, MissingFields: missing, Err: &hub.MissingFieldsError{Fields: missing}}
		}
		attempt++
		completion := e.complete(ctx, descriptor, args, missing, attempt)
		for k, v := range completion.ProvidedValues {
			args[k] = v
		}
		missing = e.validateAndEnrich(descriptor, serverCtx, args)
		if len(missing) > 0 && completion.ShouldPromptUser {
			return hub.Result{OK: false, MissingFields: missing, Err: &hub.MissingFieldsError{Fields: missing}}
		}
	}

	data, callErr := e.dispatch(ctx, req.ServerName, req.ToolName, args)
	serverCtx.Touch(req.ToolName, callErr == nil)
	if callErr != nil {
		result := hub.Result{OK: false, Err: callErr}
		if record.CapturedPreviousState != nil {
			if rbErr := e.rollback(ctx, req.ServerName, req.ToolName, args, record.CapturedPreviousState); rbErr != nil {
				result.RollbackError = rbErr
			}
		}
		return result
	}

	if e.redactor != nil {
		data = e.redactor.Filter(req.ToolName, data)
	}
	return hub.Result{OK: true, Data: data}
}

// dispatch retries a failed call up to MaxRetries times with a fixed 1s
// back-off, re-establishing the connection between attempts by relying on
// the Hub's own ensureConnection inside CallTool (§5).
func (e *Executor) dispatch(ctx context.Context, serverName, toolName string, args map[string]any) (any, error) {
	var lastErr error
	maxRetries := e.cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoff := e.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	for attempt := 0; attempt <= maxRetries; attempt++ {
		data, err := e.hub.CallTool(ctx, serverName, toolName, args)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return nil, lastErr
}

func cloneArgs(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
