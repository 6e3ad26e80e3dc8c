package ai

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

const geminiDefaultModel = "gemini-1.5-flash"

// GeminiProvider implements Provider using the Genkit SDK.
type GeminiProvider struct {
	apiKey    string
	modelName string
	logger    *slog.Logger

	initOnce sync.Once
	model    ai.Model
	initErr  error
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(apiKey, modelName string, logger *slog.Logger) *GeminiProvider {
	return &GeminiProvider{
		apiKey:    apiKey,
		modelName: modelOr(modelName, geminiDefaultModel),
		logger:    logger,
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return ProviderGemini
}

// IsAvailable checks if the provider is configured.
func (p *GeminiProvider) IsAvailable() bool {
	return p.apiKey != ""
}

// init initializes Genkit and resolves the model once.
func (p *GeminiProvider) init(ctx context.Context) error {
	p.initOnce.Do(func() {
		// Tests inject the model directly.
		if p.model != nil {
			return
		}

		if p.apiKey == "" {
			p.initErr = scerrors.NewAIError(ProviderGemini, "init", "API key not set")
			return
		}

		g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{APIKey: p.apiKey}))

		fullModelName := p.modelName
		if !strings.Contains(fullModelName, "/") {
			fullModelName = "googleai/" + fullModelName
		}

		p.model = googlegenai.GoogleAIModel(g, fullModelName)
		if p.model == nil {
			p.initErr = scerrors.NewAIError(ProviderGemini, "init", "failed to get model: "+fullModelName)
			return
		}

		p.logDebug("gemini provider initialized", "model", fullModelName)
	})

	return p.initErr
}

// Chat performs a single-turn chat completion using the Genkit SDK.
func (p *GeminiProvider) Chat(ctx context.Context, messages []Message, opts ChatOptions) (*Response, error) {
	if err := p.init(ctx); err != nil {
		return nil, err
	}

	req := &ai.ModelRequest{Messages: p.toGenkitMessages(messages)}
	if cfg := p.generationConfig(opts); cfg != nil {
		req.Config = cfg
	}

	p.logDebug("sending chat request to gemini", "message_count", len(req.Messages))

	resp, err := p.model.Generate(ctx, req, nil)
	if err != nil {
		return nil, scerrors.NewAIErrorWithCause(ProviderGemini, "Chat", "genkit generate failed", err)
	}

	if resp == nil || resp.Message == nil {
		return nil, scerrors.Wrap(ErrNoContent, "gemini returned no message")
	}

	var content strings.Builder
	for _, part := range resp.Message.Content {
		if part.IsText() {
			content.WriteString(part.Text)
		}
	}

	if strings.TrimSpace(content.String()) == "" {
		return nil, scerrors.Wrap(ErrNoContent, "gemini returned no text parts")
	}

	res := &Response{
		Content: content.String(),
	}
	if resp.Usage != nil {
		res.InputTokens = resp.Usage.InputTokens
		res.OutputTokens = resp.Usage.OutputTokens
	}

	return res, nil
}

// generationConfig uses the Gemini API field names; the plugin decodes a
// map into its native request config.
func (p *GeminiProvider) generationConfig(opts ChatOptions) map[string]any {
	cfg := map[string]any{}
	if opts.Temperature != nil {
		cfg["temperature"] = *opts.Temperature
	}
	if opts.MaxTokens > 0 {
		cfg["maxOutputTokens"] = opts.MaxTokens
	}
	if opts.JSON {
		cfg["responseMimeType"] = "application/json"
	}
	if len(cfg) == 0 {
		return nil
	}
	return cfg
}

func (p *GeminiProvider) toGenkitMessages(messages []Message) []*ai.Message {
	genkitMessages := make([]*ai.Message, len(messages))
	for i, m := range messages {
		role := ai.RoleUser
		switch m.Role {
		case "system":
			role = ai.RoleSystem
		case "assistant":
			role = ai.RoleModel
		}
		genkitMessages[i] = &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		}
	}
	return genkitMessages
}

func (p *GeminiProvider) logDebug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
