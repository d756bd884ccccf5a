package client

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/searchai/api/internal/config"
)

// LLMClient talks to any OpenAI-compatible chat completion endpoint
type LLMClient struct {
	client openai.Client
	apiKey string
	model  string
}

// NewLLMClient creates a new chat completion client
func NewLLMClient(cfg *config.LLMConfig) *LLMClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(60 * time.Second),
		option.WithMaxRetries(2),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &LLMClient{
		client: openai.NewClient(opts...),
		apiKey: cfg.APIKey,
		model:  cfg.Model,
	}
}

// ChatCompletion sends a system and user message and returns the reply text
func (c *LLMClient) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, false)
}

// ChatCompletionJSON is ChatCompletion with the response constrained to a JSON object
func (c *LLMClient) ChatCompletionJSON(ctx context.Context, system, user string) (string, error) {
	return c.complete(ctx, system, user, true)
}

func (c *LLMClient) complete(ctx context.Context, system, user string, jsonMode bool) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(1024),
	}
	if jsonMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return completion.Choices[0].Message.Content, nil
}

// IsConfigured returns true if the client has valid configuration
func (c *LLMClient) IsConfigured() bool {
	return c != nil && c.apiKey != ""
}
