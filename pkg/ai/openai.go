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

	"github.com/google/uuid"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// OpenAI-compatible API configuration.
const (
	openAIBaseURL       = "https://api.openai.com/v1"
	openAIDefaultModel  = "gpt-4o-mini"
	groqBaseURL         = "https://api.groq.com/openai/v1"
	groqDefaultModel    = "llama-3.3-70b-versatile"
	chatCompletionsPath = "/chat/completions"
	requestIDHeader     = "X-Client-Request-Id"
)

// OpenAIProvider implements Provider for the OpenAI chat completions API and
// compatible services such as Groq.
type OpenAIProvider struct {
	name    string
	apiKey  string
	model   string
	baseURL string
	logger  *slog.Logger
	client  *http.Client
}

// NewOpenAIProvider creates a provider for api.openai.com, or for baseURL
// when it is set.
func NewOpenAIProvider(apiKey, model, baseURL string, logger *slog.Logger) *OpenAIProvider {
	return newOpenAICompatible(ProviderOpenAI, apiKey, modelOr(model, openAIDefaultModel), modelOr(baseURL, openAIBaseURL), logger)
}

// NewGroqProvider creates a provider for Groq's OpenAI-compatible endpoint.
func NewGroqProvider(apiKey, model, baseURL string, logger *slog.Logger) *OpenAIProvider {
	return newOpenAICompatible(ProviderGroq, apiKey, modelOr(model, groqDefaultModel), modelOr(baseURL, groqBaseURL), logger)
}

func newOpenAICompatible(name, apiKey, model, baseURL string, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		name:    name,
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		client:  &http.Client{},
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// IsAvailable checks if the provider is configured and ready.
func (p *OpenAIProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// openAIRequest represents an OpenAI-compatible API request.
type openAIRequest struct {
	Model          string                `json:"model"`
	Messages       []openAIMessage       `json:"messages"`
	MaxTokens      int                   `json:"max_tokens,omitempty"`
	Temperature    *float64              `json:"temperature,omitempty"`
	ResponseFormat *openAIResponseFormat `json:"response_format,omitempty"`
}

type openAIResponseFormat struct {
	Type string `json:"type"`
}

// openAIMessage represents a message in the OpenAI format.
type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// openAIResponse represents an OpenAI-compatible API response.
type openAIResponse struct {
	ID      string         `json:"id"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   openAIUsage    `json:"usage"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// openAIError represents an OpenAI-compatible API error response.
type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Chat performs a single-turn chat completion.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error) {
	if !p.IsAvailable() {
		return nil, scerrors.NewAIError(p.name, "Chat", "provider not configured")
	}

	reqBody := openAIRequest{
		Model:       p.model,
		Messages:    make([]openAIMessage, 0, len(messages)),
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	for _, m := range messages {
		reqBody.Messages = append(reqBody.Messages, openAIMessage(m))
	}
	if opts.JSON {
		reqBody.ResponseFormat = &openAIResponseFormat{Type: "json_object"}
	}

	p.logDebug("sending chat request", "model", p.model, "message_count", len(reqBody.Messages), "json", opts.JSON)

	respBody, err := p.doRequest(ctx, reqBody)
	if err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, scerrors.NewAIErrorWithCause(p.name, "Chat", "failed to parse response", err)
	}

	if len(resp.Choices) == 0 {
		return nil, scerrors.Wrapf(ErrNoContent, "%s returned no choices", p.name)
	}

	choice := resp.Choices[0]

	p.logDebug("received response",
		"finish_reason", choice.FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)

	if strings.TrimSpace(choice.Message.Content) == "" {
		return nil, scerrors.Wrapf(ErrNoContent, "%s returned an empty message", p.name)
	}

	return &Response{
		Content:      choice.Message.Content,
		StopReason:   choice.FinishReason,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}

// doRequest performs an HTTP request and returns the response body.
func (p *OpenAIProvider) doRequest(ctx context.Context, reqBody openAIRequest) ([]byte, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(p.name, "Chat", "failed to marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+chatCompletionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(p.name, "Chat", "failed to create request", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(p.name, "Chat", "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, p.handleErrorResponse(resp)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(p.name, "Chat", "failed to read response", err)
	}

	return respBody, nil
}

// handleErrorResponse turns a non-2xx reply into an AIError carrying the status.
func (p *OpenAIProvider) handleErrorResponse(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var apiErr openAIError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return scerrors.NewAIErrorWithStatus(p.name, "Chat", resp.StatusCode, apiErr.Error.Message)
	}

	return scerrors.NewAIErrorWithStatus(p.name, "Chat",
		resp.StatusCode, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
}

// logDebug logs a debug message if verbose logging is enabled.
func (p *OpenAIProvider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
