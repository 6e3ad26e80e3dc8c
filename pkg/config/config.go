package config

import (
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

// Config represents the application configuration.
// Repository information is derived from git, not configuration.
type Config struct {
	AI     AIConfig     `mapstructure:"ai"`
	Commit CommitConfig `mapstructure:"commit"`
}

// AIConfig holds AI provider configuration
type AIConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Provider    string        `mapstructure:"provider"`    // "openai", "groq", "anthropic", "ollama", "gemini"
	Model       string        `mapstructure:"model"`       // Overrides the per-provider default
	APIKey      string        `mapstructure:"api_key"`     // Env var and credential store take precedence
	Endpoint    string        `mapstructure:"endpoint"`    // Custom base URL (OpenAI-compatible proxies, Ollama)
	Timeout     time.Duration `mapstructure:"timeout"`     // Bound on the whole refinement call
	MaxRetries  int           `mapstructure:"max_retries"` // Retries for transient provider errors
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`

	// Per-provider default models (used when Model is empty)
	OpenAIModel    string `mapstructure:"openai_model"`
	GroqModel      string `mapstructure:"groq_model"`
	AnthropicModel string `mapstructure:"anthropic_model"`
	OllamaModel    string `mapstructure:"ollama_model"`
	OllamaEndpoint string `mapstructure:"ollama_endpoint"`
	GeminiModel    string `mapstructure:"gemini_model"`
}

// CommitConfig holds defaults for the commit workflow
type CommitConfig struct {
	StageAll         bool `mapstructure:"stage_all" toml:"stage_all"`                   // Run `git add -A` before collecting
	Push             bool `mapstructure:"push" toml:"push"`                             // Push after committing
	PullBeforePush   bool `mapstructure:"pull_before_push" toml:"pull_before_push"`     // Rebase when behind upstream
	RecentSubjects   int  `mapstructure:"recent_subjects" toml:"recent_subjects"`       // History lines sent to the model
	DiffExcerptChars int  `mapstructure:"diff_excerpt_chars" toml:"diff_excerpt_chars"` // Patch budget sent to the model
}

// SecurityWarning represents a configuration security issue
type SecurityWarning struct {
	Field   string
	Message string
}

// Provider names accepted in ai.provider.
var ValidProviders = []string{"openai", "groq", "anthropic", "ollama", "gemini"}

// Load loads the configuration from file and environment variables
func Load() (*Config, error) {
	config := &Config{}

	setDefaults()

	if err := viper.Unmarshal(config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return config, nil
}

// Default returns the built-in configuration without consulting files or
// the environment.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Enabled:        true,
			Provider:       "openai",
			Timeout:        20 * time.Second,
			MaxRetries:     1,
			Temperature:    0.25,
			MaxTokens:      480,
			OpenAIModel:    "gpt-4o-mini",
			GroqModel:      "llama-3.3-70b-versatile",
			AnthropicModel: "claude-sonnet-4-20250514",
			OllamaModel:    "llama3.2",
			OllamaEndpoint: "http://localhost:11434",
			GeminiModel:    "gemini-1.5-flash",
		},
		Commit: CommitConfig{
			StageAll:         true,
			Push:             true,
			PullBeforePush:   true,
			RecentSubjects:   6,
			DiffExcerptChars: 4000,
		},
	}
}

// CheckSecurityWarnings returns warnings for insecure configuration practices.
func CheckSecurityWarnings(config *Config) []SecurityWarning {
	var warnings []SecurityWarning

	if config.AI.APIKey != "" && os.Getenv("SCOMMIT_AI_API_KEY") == "" &&
		os.Getenv("OPENAI_API_KEY") == "" && os.Getenv("ANTHROPIC_API_KEY") == "" &&
		os.Getenv("GROQ_API_KEY") == "" {
		warnings = append(warnings, SecurityWarning{
			Field:   "ai.api_key",
			Message: "AI API key is set in config file. For security, use 'scommit auth login' or an environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, GROQ_API_KEY) instead.",
		})
	}

	return warnings
}

// ValidateProvider validates that an AI provider name is supported.
func ValidateProvider(provider string) error {
	if slices.Contains(ValidProviders, provider) {
		return nil
	}
	return errors.Newf("invalid AI provider %q: must be one of: openai, groq, anthropic, ollama, gemini", provider)
}

// Validate validates the configuration and returns any validation errors.
func (c *Config) Validate() error {
	if err := ValidateProvider(c.AI.Provider); err != nil {
		return errors.Wrap(err, "ai.provider")
	}
	if c.AI.Timeout <= 0 {
		return errors.Newf("ai.timeout: must be positive, got %s", c.AI.Timeout)
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		return errors.Newf("ai.temperature: must be between 0 and 2, got %g", c.AI.Temperature)
	}
	if c.AI.MaxRetries < 0 {
		return errors.Newf("ai.max_retries: must not be negative, got %d", c.AI.MaxRetries)
	}
	if c.Commit.RecentSubjects < 0 {
		return errors.Newf("commit.recent_subjects: must not be negative, got %d", c.Commit.RecentSubjects)
	}
	if c.Commit.DiffExcerptChars < 0 {
		return errors.Newf("commit.diff_excerpt_chars: must not be negative, got %d", c.Commit.DiffExcerptChars)
	}
	return nil
}

// Render returns the configuration as a TOML document.
// The timeout is written in its string form so viper can read it back.
func (c *Config) Render() ([]byte, error) {
	type aiDoc struct {
		Enabled        bool    `toml:"enabled"`
		Provider       string  `toml:"provider"`
		Model          string  `toml:"model"`
		Endpoint       string  `toml:"endpoint"`
		Timeout        string  `toml:"timeout"`
		MaxRetries     int     `toml:"max_retries"`
		Temperature    float64 `toml:"temperature"`
		MaxTokens      int     `toml:"max_tokens"`
		OpenAIModel    string  `toml:"openai_model"`
		GroqModel      string  `toml:"groq_model"`
		AnthropicModel string  `toml:"anthropic_model"`
		OllamaModel    string  `toml:"ollama_model"`
		OllamaEndpoint string  `toml:"ollama_endpoint"`
		GeminiModel    string  `toml:"gemini_model"`
	}
	doc := struct {
		AI     aiDoc        `toml:"ai"`
		Commit CommitConfig `toml:"commit"`
	}{
		AI: aiDoc{
			Enabled:        c.AI.Enabled,
			Provider:       c.AI.Provider,
			Model:          c.AI.Model,
			Endpoint:       c.AI.Endpoint,
			Timeout:        c.AI.Timeout.String(),
			MaxRetries:     c.AI.MaxRetries,
			Temperature:    c.AI.Temperature,
			MaxTokens:      c.AI.MaxTokens,
			OpenAIModel:    c.AI.OpenAIModel,
			GroqModel:      c.AI.GroqModel,
			AnthropicModel: c.AI.AnthropicModel,
			OllamaModel:    c.AI.OllamaModel,
			OllamaEndpoint: c.AI.OllamaEndpoint,
			GeminiModel:    c.AI.GeminiModel,
		},
		Commit: c.Commit,
	}

	out, err := toml.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to render config")
	}
	return out, nil
}

// WriteDefault writes the default configuration to path.
// An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.Newf("config file %s already exists (use --force to overwrite)", path)
		}
	}

	data, err := Default().Render()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// DefaultPath returns the user config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".config", "scommit", "config.toml")
}

// setDefaults registers Default() with viper.
func setDefaults() {
	d := Default()

	// AI defaults
	viper.SetDefault("ai.enabled", d.AI.Enabled)
	viper.SetDefault("ai.provider", d.AI.Provider)
	viper.SetDefault("ai.model", "") // Empty means use per-provider default
	viper.SetDefault("ai.api_key", "")
	viper.SetDefault("ai.endpoint", "") // Empty means use provider default
	viper.SetDefault("ai.timeout", d.AI.Timeout)
	viper.SetDefault("ai.max_retries", d.AI.MaxRetries)
	viper.SetDefault("ai.temperature", d.AI.Temperature)
	viper.SetDefault("ai.max_tokens", d.AI.MaxTokens)

	// Per-provider AI model defaults (configurable)
	viper.SetDefault("ai.openai_model", d.AI.OpenAIModel)
	viper.SetDefault("ai.groq_model", d.AI.GroqModel)
	viper.SetDefault("ai.anthropic_model", d.AI.AnthropicModel)
	viper.SetDefault("ai.ollama_model", d.AI.OllamaModel)
	viper.SetDefault("ai.ollama_endpoint", d.AI.OllamaEndpoint)
	viper.SetDefault("ai.gemini_model", d.AI.GeminiModel)

	// Commit defaults
	viper.SetDefault("commit.stage_all", d.Commit.StageAll)
	viper.SetDefault("commit.push", d.Commit.Push)
	viper.SetDefault("commit.pull_before_push", d.Commit.PullBeforePush)
	viper.SetDefault("commit.recent_subjects", d.Commit.RecentSubjects)
	viper.SetDefault("commit.diff_excerpt_chars", d.Commit.DiffExcerptChars)
}
