package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"supportdesk/backend/internal/config"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGenerator generates replies through an OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	timeout     time.Duration
}

// NewOpenAIGenerator builds a generator from the AI configuration. Every request is
// bounded by cfg.Timeout, both through the context and the HTTP client.
func NewOpenAIGenerator(cfg config.AIConfig) (*OpenAIGenerator, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("assistant: OPENAI_API_KEY must not be empty")
	}
	if cfg.Model == "" {
		return nil, errors.New("assistant: model must not be empty")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAIGenerator{
		client:      openai.NewClientWithConfig(clientConfig),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: 0.4,
		timeout:     cfg.Timeout,
	}, nil
}

func (g *OpenAIGenerator) Generate(ctx context.Context, systemPrompt string, window []Turn) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(window)+1)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, turn := range window {
		role := openai.ChatMessageRoleUser
		if turn.Role == RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Content})
	}

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Messages:    messages,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("assistant: openai status %d: %w", apiErr.HTTPStatusCode, err)
		}
		return "", fmt.Errorf("assistant: openai request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("assistant: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
