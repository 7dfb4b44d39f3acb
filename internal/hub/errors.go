package hub

import (
	"errors"
	"fmt"
)

// Sentinel errors distinguishable via errors.Is, grounded on the teacher's
// RetryableError wrap-and-unwrap idiom (internal/types/errors.go).
var (
	ErrConfigMissing  = errors.New("no config for requested server")
	ErrSpawnFailed    = errors.New("child process could not start")
	ErrConnectTimeout = errors.New("connection attempt timed out")
	ErrMaxRetries     = errors.New("max retry attempts exceeded")
	ErrNotConnected   = errors.New("server is not connected")
	ErrProtocolMismatch = errors.New("reply did not match expected schema")
	ErrMethodNotFound = errors.New("method not found")
	ErrToolNotFound   = errors.New("tool not found")
	ErrUserDenied     = errors.New("confirmation denied by user")
	ErrOverloaded     = errors.New("hub is at admission capacity")
)

// MissingFieldsError reports which required fields survived validation and
// enrichment unfilled.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("missing required fields: %v", e.Fields)
}

// ToolCallFailedError wraps a backend/transport failure observed after
// retries were exhausted, with (server, tool) context attached.
type ToolCallFailedError struct {
	Server string
	Tool   string
	Cause  error
}

func (e *ToolCallFailedError) Error() string {
	return fmt.Sprintf("tool call %s/%s failed: %v", e.Server, e.Tool, e.Cause)
}

func (e *ToolCallFailedError) Unwrap() error { return e.Cause }

// Composition-specific errors (§4.7).
var (
	ErrValidation        = errors.New("composed tool failed validation")
	ErrCircularDependency = errors.New("composed tool step graph has a cycle")
	ErrSchemaCompatibility = errors.New("composed tool schema is incompatible")
	ErrReferenceUnavailable = errors.New("referenced step did not reach success")
	ErrForwardReference  = errors.New("references a step that has not run yet")
)

// RetryableError marks an error as worth retrying at a higher layer. Mirrors
// the teacher's RetryableError: a thin wrapper, not a new error family.
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return fmt.Sprintf("retryable error: %v", e.Err) }
func (e *RetryableError) Unwrap() error { return e.Err }

func NewRetryableError(err error) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err}
}

// CircularDependencyError names the cycle discovered during acyclicity
// checking, so registerTool failures are actionable.
type CircularDependencyError struct {
	Path []string
}

func (e *CircularDependencyError) Error() string {
	return fmt.Sprintf("circular dependency in composed tool: %v", e.Path)
}

func (e *CircularDependencyError) Unwrap() error { return ErrCircularDependency }
