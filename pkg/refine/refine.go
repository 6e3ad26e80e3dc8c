// Package refine turns staged-change data into a model-written commit
// message, leaving the decision to fall back to the caller.
package refine

import (
	"context"
	"log/slog"
	"time"

	"thoreinstein.com/scommit/pkg/ai"
	"thoreinstein.com/scommit/pkg/changes"
	"thoreinstein.com/scommit/pkg/config"
	scerrors "thoreinstein.com/scommit/pkg/errors"
	"thoreinstein.com/scommit/pkg/message"
)

// Request defaults.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultTemperature = 0.25
	DefaultMaxTokens   = 480
)

const operation = "Refine"

// Input is everything the prompt is built from.
type Input struct {
	Changes        []changes.FileChange
	Stats          changes.Stats
	RecentSubjects []string
	DiffStat       string
	DiffExcerpt    string
	ExcerptChars   int
}

// Refiner asks a provider for a commit message.
type Refiner struct {
	Provider    ai.Provider
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	Retry       scerrors.RetryConfig
	Logger      *slog.Logger
}

// New builds a Refiner from AI configuration. A nil cfg uses defaults.
func New(provider ai.Provider, cfg *config.AIConfig, logger *slog.Logger) *Refiner {
	r := &Refiner{
		Provider:    provider,
		Timeout:     DefaultTimeout,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Retry:       scerrors.DefaultRetryConfig(),
		Logger:      logger,
	}
	if cfg == nil {
		return r
	}
	if cfg.Timeout > 0 {
		r.Timeout = cfg.Timeout
	}
	if cfg.Temperature >= 0 {
		r.Temperature = cfg.Temperature
	}
	if cfg.MaxTokens > 0 {
		r.MaxTokens = cfg.MaxTokens
	}
	if cfg.MaxRetries >= 0 {
		r.Retry.MaxRetries = cfg.MaxRetries
	}
	return r
}

// Refine returns a model-written message. It returns (nil, nil) when the
// provider produced no text, and an AIError for every other failure.
func (r *Refiner) Refine(ctx context.Context, in Input) (*message.Message, error) {
	if r.Provider == nil {
		return nil, scerrors.NewAIError("", operation, "no provider configured")
	}
	name := r.Provider.Name()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	msgs := []ai.Message{
		{Role: "system", Content: SystemPrompt},
		{Role: "user", Content: BuildPrompt(in)},
	}
	opts := ai.ChatOptions{JSON: true, Temperature: ai.Temperature(r.Temperature), MaxTokens: r.MaxTokens}

	start := time.Now()
	attempts := 0
	resp, err := scerrors.RetryWithResult(ctx, r.Retry, func() (*ai.Response, error) {
		attempts++
		return r.Provider.Chat(ctx, msgs, opts)
	})
	r.logDebug("model call finished", "provider", name, "attempts", attempts, "elapsed", time.Since(start), "error", err)

	if scerrors.Is(err, ai.ErrNoContent) {
		r.logDebug("model returned no content", "provider", name)
		return nil, nil
	}
	if err != nil {
		if scerrors.IsAIError(err) {
			return nil, err
		}
		return nil, scerrors.NewAIErrorWithCause(name, operation, "request failed", err)
	}

	subject, body, err := Parse(resp.Content)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(name, operation, err.Error(), err)
	}
	if subject == "" {
		return nil, nil
	}

	r.logDebug("refined message", "provider", name, "subject", subject,
		"input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)

	return &message.Message{Subject: subject, Body: body, Source: message.SourceAI}, nil
}

func (r *Refiner) logDebug(msg string, args ...any) {
	if r.Logger != nil {
		r.Logger.Debug(msg, args...)
	}
}
