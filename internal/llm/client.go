// Package llm is the optional, off-critical-path argument-completion
// collaborator for the Tool Executor (§4.6.d). The calling LLM that drives
// the hub itself is out of scope (§1); this package only wraps the
// single-shot "complete these missing fields" request.
package llm

import "context"

// Client is the narrow interface the Tool Executor depends on, grounded on
// the teacher's internal/llm/client.go Client interface, trimmed to the one
// method the completion loop actually needs.
type Client interface {
	SimpleTextQuery(ctx context.Context, systemPrompt, userInput string) (string, error)
}
