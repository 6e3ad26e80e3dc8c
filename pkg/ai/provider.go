// Package ai provides chat-completion providers used to refine commit
// messages.
//
// Every provider implements the same single-shot Chat contract: one request,
// one complete reply, no streaming. A provider that answers without any
// textual payload returns ErrNoContent so callers can tell "the model had
// nothing to say" apart from a transport or API failure.
package ai

import (
	"context"
	"log/slog"
	"os"

	"thoreinstein.com/scommit/pkg/config"
	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// Message represents a conversation message.
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// Response from AI provider.
type Response struct {
	Content      string
	StopReason   string // "stop", "end_turn", "max_tokens", etc.
	InputTokens  int
	OutputTokens int
}

// ChatOptions tunes a single completion.
type ChatOptions struct {
	JSON        bool     // Ask the provider for a JSON object reply
	Temperature *float64 // nil keeps the provider default; 0 is sent as 0
	MaxTokens   int
}

// Temperature returns a sampling temperature for ChatOptions.
func Temperature(v float64) *float64 {
	return &v
}

// Provider interface for AI operations.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// IsAvailable checks if provider is available and configured.
	IsAvailable() bool

	// Chat performs a single-turn chat completion.
	Chat(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error)
}

// ErrNoContent is returned when a reply carries no textual payload.
var ErrNoContent = scerrors.New("response contained no content")

// KeySource looks up stored API keys by provider name.
type KeySource interface {
	Get(provider string) (string, error)
}

// Provider name constants.
const (
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderGemini    = "gemini"
)

// apiKeyEnv lists the environment variables consulted per provider, in order.
var apiKeyEnv = map[string][]string{
	ProviderOpenAI:    {"OPENAI_API_KEY"},
	ProviderGroq:      {"GROQ_API_KEY"},
	ProviderAnthropic: {"ANTHROPIC_API_KEY"},
	ProviderGemini:    {"GOOGLE_GENAI_API_KEY", "GEMINI_API_KEY"},
}

// NewProvider creates an AI provider based on config.
// API keys resolve from the provider's environment variable, then keys,
// then ai.api_key. When ai.model is empty the per-provider default is used.
// A missing key is reported as a ConfigError; callers treat that as AI
// being unavailable rather than as a failure.
func NewProvider(cfg *config.AIConfig, keys KeySource, verbose bool) (Provider, error) {
	if cfg == nil {
		return nil, scerrors.NewConfigError("ai", "config is nil")
	}

	if !cfg.Enabled {
		return nil, scerrors.NewConfigError("ai.enabled", "AI is disabled in configuration")
	}

	var logger *slog.Logger
	if verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	switch cfg.Provider {
	case ProviderOpenAI, "":
		apiKey, err := resolveAPIKey(ProviderOpenAI, cfg.APIKey, keys)
		if err != nil {
			return nil, err
		}
		return NewOpenAIProvider(apiKey, modelOr(cfg.Model, cfg.OpenAIModel), cfg.Endpoint, logger), nil

	case ProviderGroq:
		apiKey, err := resolveAPIKey(ProviderGroq, cfg.APIKey, keys)
		if err != nil {
			return nil, err
		}
		return NewGroqProvider(apiKey, modelOr(cfg.Model, cfg.GroqModel), cfg.Endpoint, logger), nil

	case ProviderAnthropic:
		apiKey, err := resolveAPIKey(ProviderAnthropic, cfg.APIKey, keys)
		if err != nil {
			return nil, err
		}
		return NewAnthropicProvider(apiKey, modelOr(cfg.Model, cfg.AnthropicModel), cfg.Endpoint, logger), nil

	case ProviderOllama:
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = cfg.OllamaEndpoint
		}
		p, err := NewOllamaProvider(endpoint, modelOr(cfg.Model, cfg.OllamaModel), logger)
		if err != nil {
			return nil, err
		}
		return p, nil

	case ProviderGemini:
		apiKey, err := resolveAPIKey(ProviderGemini, cfg.APIKey, keys)
		if err != nil {
			return nil, err
		}
		return NewGeminiProvider(apiKey, modelOr(cfg.Model, cfg.GeminiModel), logger), nil

	default:
		return nil, scerrors.NewConfigError("ai.provider",
			"unsupported AI provider: "+cfg.Provider+" (supported: openai, groq, anthropic, ollama, gemini)")
	}
}

// APIKeyEnv returns the environment variables consulted for provider's key.
func APIKeyEnv(provider string) []string {
	return apiKeyEnv[provider]
}

// RequiresAPIKey reports whether provider authenticates with an API key.
func RequiresAPIKey(provider string) bool {
	_, ok := apiKeyEnv[provider]
	return ok
}

func modelOr(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// resolveAPIKey returns the first non-empty key from the environment, the
// credential store, and the config file.
func resolveAPIKey(provider, configKey string, keys KeySource) (string, error) {
	for _, name := range apiKeyEnv[provider] {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}

	if keys != nil {
		stored, err := keys.Get(provider)
		if err != nil {
			return "", scerrors.NewConfigErrorWithCause("ai.api_key", "failed to read stored API key", err)
		}
		if stored != "" {
			return stored, nil
		}
	}

	if configKey != "" {
		return configKey, nil
	}

	return "", scerrors.NewConfigError("ai.api_key",
		provider+" API key not set (set "+apiKeyEnv[provider][0]+", run 'scommit auth login', or set ai.api_key)")
}
