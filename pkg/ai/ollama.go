package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// Ollama API configuration.
const (
	ollamaDefaultEndpoint = "http://localhost:11434"
	ollamaDefaultModel    = "llama3.2"
	ollamaChatPath        = "/api/chat"
)

// OllamaProvider implements Provider for a local or remote Ollama server.
type OllamaProvider struct {
	endpoint string
	model    string
	logger   *slog.Logger
	client   *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider.
func NewOllamaProvider(endpoint, model string, logger *slog.Logger) (*OllamaProvider, error) {
	endpoint = modelOr(endpoint, ollamaDefaultEndpoint)

	base, err := url.Parse(endpoint)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, scerrors.NewConfigErrorWithCause("ai.ollama_endpoint", "invalid Ollama endpoint "+endpoint, err)
	}

	return &OllamaProvider{
		endpoint: endpoint,
		model:    modelOr(model, ollamaDefaultModel),
		logger:   logger,
		client:   ollama.NewClient(base, &http.Client{}),
	}, nil
}

// Name returns the provider name.
func (p *OllamaProvider) Name() string {
	return ProviderOllama
}

// IsAvailable checks if the provider is configured and ready.
// Local Ollama instances need no API key, only an endpoint.
func (p *OllamaProvider) IsAvailable() bool {
	return p.endpoint != "" && p.client != nil
}

// Chat performs a single non-streaming chat completion.
func (p *OllamaProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error) {
	if !p.IsAvailable() {
		return nil, scerrors.NewAIError(ProviderOllama, "Chat", "provider not configured")
	}

	stream := false
	req := &ollama.ChatRequest{
		Model:    p.model,
		Messages: make([]ollama.Message, 0, len(messages)),
		Stream:   &stream,
		Options:  map[string]any{},
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, ollama.Message{Role: m.Role, Content: m.Content})
	}
	if opts.JSON {
		req.Format = json.RawMessage(`"json"`)
	}
	if opts.Temperature != nil {
		req.Options["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		req.Options["num_predict"] = opts.MaxTokens
	}

	p.logDebug("sending chat request", "model", p.model, "message_count", len(req.Messages))

	var (
		content strings.Builder
		last    ollama.ChatResponse
	)
	err := p.client.Chat(ctx, req, func(resp ollama.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		last = resp
		return nil
	})
	if err != nil {
		return nil, p.wrapError(err)
	}

	p.logDebug("received response",
		"prompt_tokens", last.PromptEvalCount,
		"completion_tokens", last.EvalCount)

	if strings.TrimSpace(content.String()) == "" {
		return nil, scerrors.Wrap(ErrNoContent, "ollama returned an empty message")
	}

	stopReason := "stop"
	if !last.Done {
		stopReason = "incomplete"
	}

	return &Response{
		Content:      content.String(),
		StopReason:   stopReason,
		InputTokens:  last.PromptEvalCount,
		OutputTokens: last.EvalCount,
	}, nil
}

// wrapError keeps the HTTP status from ollama.StatusError so retry
// classification matches the HTTP providers.
func (p *OllamaProvider) wrapError(err error) error {
	var statusErr ollama.StatusError
	if scerrors.As(err, &statusErr) {
		msg := statusErr.ErrorMessage
		if msg == "" {
			msg = fmt.Sprintf("HTTP %d: %s", statusErr.StatusCode, http.StatusText(statusErr.StatusCode))
		}
		return scerrors.NewAIErrorWithStatus(ProviderOllama, "Chat", statusErr.StatusCode, msg)
	}
	return scerrors.NewAIErrorWithCause(ProviderOllama, "Chat", "request failed: "+err.Error(), err)
}

func (p *OllamaProvider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
