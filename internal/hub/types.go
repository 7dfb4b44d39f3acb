// Package hub implements the Tool Dispatch Hub: connection lifecycle,
// transport supervision, capability negotiation, tool catalog, and the
// per-server call queue that MCP-backed tool calls flow through.
package hub

import (
	"strings"
	"sync"
	"time"
)

// ConnectionStatus is the lifecycle state of one backend connection.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// Defaults mirrored from the data model / concurrency sections.
const (
	MaxRetryAttempts        = 3
	ConnectionTimeout       = 10 * time.Second
	ListTimeout             = 5 * time.Second
	MaxConcurrentOperations = 5
)

// ServerConfig is the declarative spec of one backend. Sourced from
// configuration at startup and immutable for the hub's lifetime.
type ServerConfig struct {
	Name    string
	Command string
	Args    []string
	Env     map[string]string
}

// Capabilities records which optional method families answered a probe
// call (tools/list, resources/list, resources/templates/list) right after
// the most recent connect. The capability field of the initialize reply is
// not read.
type Capabilities struct {
	Tools             bool
	Resources         bool
	ResourceTemplates bool
}

// ConnectionSnapshot is the read-only view of a Connection's state, safe to
// copy and hand to callers/listeners without sharing the supervisor's lock.
type ConnectionSnapshot struct {
	Name                    string
	Status                  ConnectionStatus
	Capabilities            Capabilities
	LastError               error
	LastSuccessfulConnectAt time.Time
	RetryCount              int
}

// Property is one entry of a tool's input schema.
type Property struct {
	Type        string
	Description string
	Enum        []string
}

// InputSchema describes the arguments a tool accepts.
type InputSchema struct {
	Properties map[string]Property
	Required   []string
}

// DangerLevel is the ordinal classification governing confirmation policy.
type DangerLevel string

const (
	DangerNone   DangerLevel = "none"
	DangerLow    DangerLevel = "low"
	DangerMedium DangerLevel = "medium"
	DangerHigh   DangerLevel = "high"
)

// Safety is the optional safety metadata a descriptor may advertise.
type Safety struct {
	IsDangerous          bool
	DangerLevel          DangerLevel
	DangerDescription    string
	RequiresConfirmation bool
	ConfirmationMessage  string
}

// ToolDescriptor is an immutable snapshot of one tool, fetched from a
// backend's tools/list reply. Keyed by (ServerName, Name) in the catalog.
type ToolDescriptor struct {
	ServerName  string
	Name        string
	Description string
	InputSchema InputSchema
	Safety      *Safety
}

// OperationType classifies the kind of effect a tool call has, used by
// danger classification and state-capture/rollback.
type OperationType string

const (
	OpDelete  OperationType = "DELETE"
	OpWrite   OperationType = "WRITE"
	OpModify  OperationType = "MODIFY"
	OpExecute OperationType = "EXECUTE"
	OpFormat  OperationType = "FORMAT"
)

// classifyOperationName is a keyword-only approximation used purely to
// label audit records at the Hub's dispatch boundary. The authoritative
// classification driving danger/rollback decisions lives in
// mcphub/internal/toolexec, which the hub package cannot import.
func classifyOperationName(toolName string) OperationType {
	lower := strings.ToLower(toolName)
	switch {
	case containsAny(lower, "delete", "remove", "drop"):
		return OpDelete
	case containsAny(lower, "write", "create", "push"):
		return OpWrite
	case containsAny(lower, "modify", "update", "alter"):
		return OpModify
	case containsAny(lower, "exec", "run"):
		return OpExecute
	case containsAny(lower, "format", "clean", "clear"):
		return OpFormat
	default:
		return OpModify
	}
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ServerContext is mutable per-server state owned by the Tool Executor.
type ServerContext struct {
	mu           sync.RWMutex
	Type         string
	Config       map[string]any
	Capabilities ServerContextCapabilities
	LastAccessed time.Time
	LastOperation *LastOperation
}

// ServerContextCapabilities describes what the Tool Executor believes this
// server supports, independent of the transport-level Capabilities above.
type ServerContextCapabilities struct {
	SupportsRollback    bool
	MaxConcurrentCalls  int
	SupportedOperations []string
}

// LastOperation records the most recent tool call observed against a server.
type LastOperation struct {
	ToolName  string
	Timestamp time.Time
	Success   bool
}

// Touch records an access, updating LastAccessed and LastOperation.
func (c *ServerContext) Touch(toolName string, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.LastAccessed = time.Now()
	c.LastOperation = &LastOperation{ToolName: toolName, Timestamp: c.LastAccessed, Success: success}
}

// ExportConfig returns the free-form default-argument config map without
// racing a concurrent Touch.
func (c *ServerContext) ExportConfig() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Config
}

// CallRecord is the transient state of one in-flight tool call.
type CallRecord struct {
	ServerName            string
	ToolName              string
	Args                  map[string]any
	Attempts              int
	CapturedPreviousState any
	OperationType         OperationType
}

// Result is the Tool Executor's boundary-crossing result shape. It never
// throws across the boundary except for programmer errors.
type Result struct {
	OK            bool
	Data          any
	Err           error
	MissingFields []string
	RollbackError error
}
