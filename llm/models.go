package llm

// Provider represents model providers
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Default model names per provider and model type. Providers fall back to
// these when a config leaves the model fields empty.
const (
	DefaultOpenAINormalModel   = "gpt-4o-mini"
	DefaultOpenAIThinkingModel = "o1-mini"

	DefaultAnthropicNormalModel   = "claude-3-5-haiku-20241022"
	DefaultAnthropicThinkingModel = "claude-3-7-sonnet-20250219"
)

// DefaultModelFor returns the default model name for a provider and model type.
func DefaultModelFor(provider Provider, modelType ModelType) string {
	switch provider {
	case ProviderOpenAI:
		if modelType == ModelTypeThinking {
			return DefaultOpenAIThinkingModel
		}
		return DefaultOpenAINormalModel
	case ProviderAnthropic:
		if modelType == ModelTypeThinking {
			return DefaultAnthropicThinkingModel
		}
		return DefaultAnthropicNormalModel
	}
	return ""
}

// ModelFor resolves the model name a config selects for a model type,
// falling back to the provider default when unset.
func (c Config) ModelFor(provider Provider, modelType ModelType) string {
	switch modelType {
	case ModelTypeThinking:
		if c.ThinkingModel != "" {
			return c.ThinkingModel
		}
	default:
		if c.NormalModel != "" {
			return c.NormalModel
		}
	}
	return DefaultModelFor(provider, modelType)
}
