package llm

import (
	"context"
	"fmt"
	"time"
)

// ModelType selects which class of model a call should use. The planner can
// request a fast general model for routine work or a slower reasoning model
// for tasks that benefit from extended thinking.
type ModelType string

const (
	ModelTypeNormal   ModelType = "normal"
	ModelTypeThinking ModelType = "thinking"
)

// ParseModelType validates a raw model type string from directive text.
func ParseModelType(s string) (ModelType, error) {
	switch ModelType(s) {
	case ModelTypeNormal:
		return ModelTypeNormal, nil
	case ModelTypeThinking:
		return ModelTypeThinking, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownModelType, s)
	}
}

// Response represents the response from a model call
type Response struct {
	Content   string        `json:"content"`
	Model     string        `json:"model"`
	Provider  Provider      `json:"provider"`
	Latency   time.Duration `json:"latency,omitempty"`
	Timestamp time.Time     `json:"timestamp,omitempty"`
}

// Client defines the capability for making outbound model calls. It is
// deliberately narrow: the orchestration engine treats the transport as
// opaque, and retry/backoff lives in the ratelimit package, not here.
type Client interface {
	// Complete sends a single prompt and returns the response text
	Complete(ctx context.Context, prompt string, modelType ModelType) (*Response, error)

	// Provider returns the provider name
	Provider() Provider

	// Validate checks if the client configuration is valid
	Validate() error
}

// Config holds common configuration options for model clients
type Config struct {
	APIKey        string        `json:"api_key"`
	NormalModel   string        `json:"normal_model"`
	ThinkingModel string        `json:"thinking_model"`
	BaseURL       string        `json:"base_url,omitempty"`
	Temperature   float64       `json:"temperature,omitempty"`
	MaxTokens     int           `json:"max_tokens,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
	Debug         bool          `json:"debug,omitempty"`
}
