package llm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIAdapter implements Client against an OpenAI-compatible endpoint,
// grounded on the teacher's internal/client/openai_adapter.go
// SimpleTextQuery, trimmed of the ADK tool-conversion machinery this
// package has no use for.
type OpenAIAdapter struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	mu      sync.Mutex
}

// NewOpenAIAdapter builds an adapter against model/endpoint/apiKey, matching
// the teacher's factory.go wiring shape.
func NewOpenAIAdapter(model, endpoint, apiKey string) *OpenAIAdapter {
	c := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(endpoint))
	return &OpenAIAdapter{client: &c, model: model}
}

func (a *OpenAIAdapter) SetTimeout(d time.Duration) { a.timeout = d }

func (a *OpenAIAdapter) SimpleTextQuery(ctx context.Context, systemPrompt, userInput string) (string, error) {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	messages := []openai.ChatCompletionMessageParamUnion{}
	if systemPrompt != "" {
		messages = append(messages, openai.SystemMessage(systemPrompt))
	}
	messages = append(messages, openai.UserMessage(userInput))
	params := openai.ChatCompletionNewParams{Model: shared.ChatModel(a.model), Messages: messages}

	a.mu.Lock()
	defer a.mu.Unlock()
	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai simple request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no openai response")
	}
	return resp.Choices[0].Message.Content, nil
}
