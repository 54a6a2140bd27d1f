package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sammyboi1801/SentinelAI/internal/config"
)

// Turn is one message in a conversation passed to the model.
type Turn struct {
	Role    string // "user" or "assistant"
	Content string
}

// Generator is the language-model collaborator: a system prompt plus ordered
// turns in, raw completion text out.
type Generator interface {
	Generate(ctx context.Context, system string, turns []Turn) (string, error)
}

// Client implements Generator against any OpenAI-compatible chat endpoint.
type Client struct {
	api   *openai.Client
	model string
}

// NewClient builds a chat client from config. The base URL override covers
// self-hosted OpenAI-compatible servers.
func NewClient(cfg *config.Config) *Client {
	clientCfg := openai.DefaultConfig(cfg.LLMAPIKey)
	if cfg.LLMBaseURL != "" {
		clientCfg.BaseURL = cfg.LLMBaseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(clientCfg),
		model: cfg.LLMModel,
	}
}

// Generate runs one chat completion and returns the text of the first choice.
func (c *Client) Generate(ctx context.Context, system string, turns []Turn) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(turns)+1)
	if system != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, turn := range turns {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    turn.Role,
			Content: turn.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
