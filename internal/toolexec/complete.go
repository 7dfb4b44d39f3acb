package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mcphub/internal/hub"
)

// completion is the LLM's structured reply to a missing-field prompt.
type completion struct {
	ProvidedValues   map[string]any `json:"providedValues"`
	ShouldPromptUser bool           `json:"shouldPromptUser"`
	UserPrompt       string         `json:"userPrompt"`
	Reasoning        string         `json:"reasoning"`
}

// complete implements §4.6.d. On any LLM error or unparseable reply it
// falls back to a deterministic user-prompt, and never retries the LLM
// itself within one call to complete (the caller's attempt loop handles
// retrying across calls, capped by maxRetries).
func (e *Executor) complete(ctx context.Context, desc hub.ToolDescriptor, args map[string]any, missing []string, attempt int) completion {
	if e.llmClient == nil {
		return deterministicFallback(missing)
	}

	prompt := buildCompletionPrompt(desc, args, missing, attempt)
	reply, err := e.llmClient.SimpleTextQuery(ctx, completionSystemPrompt, prompt)
	if err != nil {
		return deterministicFallback(missing)
	}

	cleaned := stripMarkdownFence(reply)
	var result completion
	if jsonErr := json.Unmarshal([]byte(cleaned), &result); jsonErr != nil {
		return deterministicFallback(missing)
	}
	return result
}

const completionSystemPrompt = "You fill in missing tool call arguments. " +
	"Respond with a single JSON object: " +
	`{"providedValues": {...}, "shouldPromptUser": bool, "userPrompt": "...", "reasoning": "..."}. ` +
	"Only include fields you are confident about in providedValues."

func buildCompletionPrompt(desc hub.ToolDescriptor, args map[string]any, missing []string, attempt int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tool: %s\n", desc.Name)
	if desc.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", desc.Description)
	}
	fmt.Fprintf(&b, "Current arguments: %v\n", args)
	fmt.Fprintf(&b, "Attempt: %d\n", attempt)
	b.WriteString("Missing fields:\n")
	for _, field := range missing {
		prop := desc.InputSchema.Properties[field]
		fmt.Fprintf(&b, "- %s (type=%s, description=%q, enum=%v)\n", field, prop.Type, prop.Description, prop.Enum)
	}
	return b.String()
}

func deterministicFallback(missing []string) completion {
	var b strings.Builder
	b.WriteString("Please provide values for: ")
	b.WriteString(strings.Join(missing, ", "))
	return completion{ShouldPromptUser: true, UserPrompt: b.String()}
}

// stripMarkdownFence removes a ```json ... ``` wrapper an LLM reply is
// commonly wrapped in, mirroring the teacher's CleanJSONFromMarkdown
// (internal/types/json.go).
func stripMarkdownFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
