package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// Anthropic API configuration.
const (
	anthropicBaseURL      = "https://api.anthropic.com/v1"
	anthropicMessagesPath = "/messages"
	anthropicAPIVersion   = "2023-06-01"
	anthropicDefaultModel = "claude-sonnet-4-20250514"
	anthropicMaxTokens    = 1024
	// The Messages API has no JSON mode, so the reply is steered instead.
	anthropicJSONHint = "\n\nReply with the JSON object only."
)

// AnthropicProvider implements Provider for Claude API.
type AnthropicProvider struct {
	apiKey  string
	model   string
	baseURL string
	logger  *slog.Logger
	client  *http.Client
}

// NewAnthropicProvider creates a new Anthropic provider.
func NewAnthropicProvider(apiKey, model, baseURL string, logger *slog.Logger) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:  apiKey,
		model:   modelOr(model, anthropicDefaultModel),
		baseURL: strings.TrimRight(modelOr(baseURL, anthropicBaseURL), "/"),
		logger:  logger,
		client:  &http.Client{},
	}
}

// Name returns the provider name.
func (p *AnthropicProvider) Name() string {
	return ProviderAnthropic
}

// IsAvailable checks if the provider is configured and ready.
func (p *AnthropicProvider) IsAvailable() bool {
	return p.apiKey != ""
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	Temperature *float64           `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Content    []anthropicContent `json:"content"`
	Model      string             `json:"model"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Chat performs a single-turn chat completion.
func (p *AnthropicProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error) {
	if !p.IsAvailable() {
		return nil, scerrors.NewAIError(ProviderAnthropic, "Chat", "provider not configured")
	}

	system, apiMessages := p.convertMessages(messages)
	if opts.JSON && system != "" {
		system += anthropicJSONHint
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = anthropicMaxTokens
	}

	reqBody := anthropicRequest{
		Model:       p.model,
		MaxTokens:   maxTokens,
		Messages:    apiMessages,
		System:      system,
		Temperature: opts.Temperature,
	}

	p.logDebug("sending chat request", "model", p.model, "message_count", len(apiMessages))

	respBody, err := p.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, scerrors.NewAIErrorWithCause(ProviderAnthropic, "Chat", "failed to parse response", err)
	}

	var content strings.Builder
	for _, c := range resp.Content {
		if c.Type == "text" {
			content.WriteString(c.Text)
		}
	}

	p.logDebug("received response",
		"stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)

	if strings.TrimSpace(content.String()) == "" {
		return nil, scerrors.Wrap(ErrNoContent, "anthropic returned no text blocks")
	}

	return &Response{
		Content:      content.String(),
		StopReason:   resp.StopReason,
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
	}, nil
}

// convertMessages lifts system messages into the top-level system prompt.
func (p *AnthropicProvider) convertMessages(messages []Message) (string, []anthropicMessage) {
	var system []string
	apiMessages := make([]anthropicMessage, 0, len(messages))

	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		apiMessages = append(apiMessages, anthropicMessage(m))
	}

	return strings.Join(system, "\n\n"), apiMessages
}

func (p *AnthropicProvider) doRequest(ctx context.Context, reqBody anthropicRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(ProviderAnthropic, "Chat", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+anthropicMessagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(ProviderAnthropic, "Chat", "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(ProviderAnthropic, "Chat", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, p.handleErrorResponse(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(ProviderAnthropic, "Chat", "failed to read response", err)
	}
	return respBody, nil
}

func (p *AnthropicProvider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr anthropicError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return scerrors.NewAIErrorWithStatus(ProviderAnthropic, "Chat", resp.StatusCode, apiErr.Error.Message)
	}

	return scerrors.NewAIErrorWithStatus(ProviderAnthropic, "Chat",
		resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}

func (p *AnthropicProvider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
