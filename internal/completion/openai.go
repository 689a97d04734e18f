package completion

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIOptions configures the OpenAI-compatible dispatcher.
type OpenAIOptions struct {
	APIKey string
	// BaseURL overrides the API root, e.g. a gateway or a test server.
	BaseURL     string
	MaxTokens   int
	Temperature float64
}

// OpenAI implements Dispatcher using the Chat Completions API.
type OpenAI struct {
	client      *openai.Client
	maxTokens   int
	temperature float32
}

// NewOpenAI creates a dispatcher from opts.
func NewOpenAI(opts OpenAIOptions) *OpenAI {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = 500
	}
	return &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		maxTokens:   maxTokens,
		temperature: float32(opts.Temperature),
	}
}

// Complete implements Dispatcher.
func (p *OpenAI) Complete(ctx context.Context, req Request) (Result, error) {
	var messages []openai.ChatCompletionMessage
	for _, m := range Messages(req) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   p.maxTokens,
		Temperature: p.temperature,
	})
	if err != nil {
		return Result{}, err
	}

	var content string
	if len(resp.Choices) > 0 {
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
	}
	if content == "" {
		return Result{}, ErrEmptyReply
	}
	return Result{Text: content, Tokens: resp.Usage.TotalTokens}, nil
}
