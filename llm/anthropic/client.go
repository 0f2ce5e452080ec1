package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/KamdynS/go-swarm/llm"
	"github.com/liushuangls/go-anthropic/v2"
)

// Client implements the llm.Client interface for Anthropic Claude
type Client struct {
	client *anthropic.Client
	config llm.Config
}

// NewClient creates a new Anthropic client
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

	opts := []anthropic.ClientOption{}
	if config.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, anthropic.WithHTTPClient(&http.Client{
			Timeout: config.Timeout,
		}))
	}

	return &Client{
		client: anthropic.NewClient(config.APIKey, opts...),
		config: config,
	}, nil
}

// Complete implements llm.Client interface
func (c *Client) Complete(ctx context.Context, prompt string, modelType llm.ModelType) (*llm.Response, error) {
	start := time.Now()
	model := c.config.ModelFor(llm.ProviderAnthropic, modelType)

	temp := float32(c.config.Temperature)
	req := anthropic.MessagesRequest{
		Model: anthropic.Model(model),
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
		MaxTokens:   c.config.MaxTokens,
		Temperature: &temp,
	}

	resp, err := c.client.CreateMessages(ctx, req)
	if err != nil {
		return nil, c.convertError(err, model)
	}

	if len(resp.Content) == 0 {
		return nil, llm.NewError(llm.ProviderAnthropic, llm.ErrorTypeProviderError, "no content returned")
	}

	// Anthropic returns an array of content blocks
	var content strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			content.WriteString(*block.Text)
		}
	}

	return &llm.Response{
		Content:   content.String(),
		Model:     model,
		Provider:  llm.ProviderAnthropic,
		Latency:   time.Since(start),
		Timestamp: start,
	}, nil
}

// convertError converts Anthropic SDK errors to llm errors
func (c *Client) convertError(err error, model string) error {
	if err == nil {
		return nil
	}

	var apiErr *anthropic.APIError
	if errors.As(err, &apiErr) {
		var llmErr *llm.Error
		switch {
		case apiErr.IsRateLimitErr():
			llmErr = llm.NewError(llm.ProviderAnthropic, llm.ErrorTypeRateLimited, apiErr.Message)
		case apiErr.IsAuthenticationErr(), apiErr.IsPermissionErr():
			llmErr = llm.NewError(llm.ProviderAnthropic, llm.ErrorTypeAuthentication, apiErr.Message)
		case apiErr.IsInvalidRequestErr():
			llmErr = llm.NewError(llm.ProviderAnthropic, llm.ErrorTypeInvalidRequest, apiErr.Message)
		case apiErr.IsApiErr(), apiErr.IsOverloadedErr():
			llmErr = llm.NewError(llm.ProviderAnthropic, llm.ErrorTypeProviderError, apiErr.Message)
		default:
			llmErr = llm.NewError(llm.ProviderAnthropic, llm.ErrorTypeUnknown, apiErr.Message)
		}
		llmErr.Model = model
		llmErr.Cause = err
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return llm.NewErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeTimeout, "request timeout", err)
	}
	if errors.Is(err, context.Canceled) {
		return llm.NewErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeUnknown, "request canceled", err)
	}

	return llm.NewErrorWithCause(llm.ProviderAnthropic, llm.ErrorTypeUnknown, err.Error(), err)
}

// Provider implements llm.Client interface
func (c *Client) Provider() llm.Provider {
	return llm.ProviderAnthropic
}

// Validate implements llm.Client interface
func (c *Client) Validate() error {
	if c.config.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}

var _ llm.Client = (*Client)(nil)
