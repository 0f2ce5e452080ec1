package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/KamdynS/go-swarm/llm"
	"github.com/sashabaranov/go-openai"
)

// Client implements the llm.Client interface for OpenAI
type Client struct {
	client *openai.Client
	config llm.Config
}

// NewClient creates a new OpenAI client
func NewClient(config llm.Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 2048
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	openaiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		openaiConfig.BaseURL = config.BaseURL
	}

	return &Client{
		client: openai.NewClientWithConfig(openaiConfig),
		config: config,
	}, nil
}

// Complete implements llm.Client interface
func (c *Client) Complete(ctx context.Context, prompt string, modelType llm.ModelType) (*llm.Response, error) {
	start := time.Now()
	model := c.config.ModelFor(llm.ProviderOpenAI, modelType)

	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.config.MaxTokens,
	}

	// Reasoning models reject explicit sampling parameters
	if modelType != llm.ModelTypeThinking {
		req.Temperature = float32(c.config.Temperature)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, c.convertError(err, model)
	}

	if len(resp.Choices) == 0 {
		return nil, llm.NewError(llm.ProviderOpenAI, llm.ErrorTypeProviderError, "no choices returned")
	}

	return &llm.Response{
		Content:   resp.Choices[0].Message.Content,
		Model:     resp.Model,
		Provider:  llm.ProviderOpenAI,
		Latency:   time.Since(start),
		Timestamp: start,
	}, nil
}

// convertError converts OpenAI SDK errors to llm errors
func (c *Client) convertError(err error, model string) error {
	if err == nil {
		return nil
	}

	if apiErr, ok := err.(*openai.APIError); ok {
		llmErr := llm.ParseHTTPError(llm.ProviderOpenAI, apiErr.HTTPStatusCode, apiErr.Message)
		llmErr.Model = model
		llmErr.Cause = err
		if apiErr.HTTPStatusCode == 429 {
			// OpenAI sometimes includes retry timing in the message; default
			// conservatively when present
			if strings.Contains(strings.ToLower(apiErr.Message), "try again in") {
				llmErr.RetryAfter = 60
			}
		}
		return llmErr
	}

	if err == context.DeadlineExceeded || strings.Contains(err.Error(), "deadline exceeded") {
		return llm.NewErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeTimeout, "request timeout", err)
	}
	if err == context.Canceled {
		return llm.NewErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeUnknown, "request canceled", err)
	}

	if strings.Contains(strings.ToLower(err.Error()), "connection") ||
		strings.Contains(strings.ToLower(err.Error()), "network") {
		return llm.NewErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeProviderError, "connection error", err)
	}

	return llm.NewErrorWithCause(llm.ProviderOpenAI, llm.ErrorTypeUnknown, err.Error(), err)
}

// Provider implements llm.Client interface
func (c *Client) Provider() llm.Provider {
	return llm.ProviderOpenAI
}

// Validate implements llm.Client interface
func (c *Client) Validate() error {
	if c.config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

var _ llm.Client = (*Client)(nil)
