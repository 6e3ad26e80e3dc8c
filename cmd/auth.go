package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"thoreinstein.com/scommit/pkg/ai"
	"thoreinstein.com/scommit/pkg/config"
)

var authProvider string

func init() {
	rootCmd.AddCommand(newAuthCmd())
}

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage AI provider API keys",
		Long: `Store API keys in the OS keychain, or in ~/.config/scommit/credentials.toml
(mode 0600) when no keychain is available.

Environment variables (OPENAI_API_KEY, GROQ_API_KEY, ANTHROPIC_API_KEY,
GEMINI_API_KEY) take precedence over stored keys.`,
	}

	cmd.PersistentFlags().StringVar(&authProvider, "provider", "", "Provider to manage (default from config)")

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthLogoutCmd())
	cmd.AddCommand(newAuthStatusCmd())

	return cmd
}

func newAuthLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Store an API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := resolveAuthProvider()
			if err != nil {
				return err
			}

			key, err := readAPIKey(cmd.InOrStdin(), cmd.ErrOrStderr(), provider)
			if err != nil {
				return err
			}
			if key == "" {
				return errors.New("no API key entered")
			}

			store := newCredentialStore()
			if err := store.Set(provider, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s API key in %s.\n", provider, store.Backend())
			return nil
		},
	}
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove a stored API key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			provider, err := resolveAuthProvider()
			if err != nil {
				return err
			}

			store := newCredentialStore()
			if err := store.Delete(provider); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s API key from %s.\n", provider, store.Backend())
			return nil
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show where each provider's API key comes from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			providers := config.ValidProviders
			if authProvider != "" {
				provider, err := resolveAuthProvider()
				if err != nil {
					return err
				}
				providers = []string{provider}
			}

			store := newCredentialStore()
			out := cmd.OutOrStdout()
			for _, p := range providers {
				fmt.Fprintf(out, "%-10s %s\n", p, keySource(p, store.Get, store.Backend()))
			}
			return nil
		},
	}
}

// resolveAuthProvider returns --provider or the configured provider.
func resolveAuthProvider() (string, error) {
	provider := authProvider
	if provider == "" {
		provider = loadedConfig().AI.Provider
	}
	if err := config.ValidateProvider(provider); err != nil {
		return "", err
	}
	if !ai.RequiresAPIKey(provider) {
		return "", errors.Newf("provider %q does not use an API key", provider)
	}
	return provider, nil
}

// keySource describes where provider's key would be resolved from.
func keySource(provider string, get func(string) (string, error), backend string) string {
	if !ai.RequiresAPIKey(provider) {
		return "no key required"
	}
	for _, name := range ai.APIKeyEnv(provider) {
		if os.Getenv(name) != "" {
			return "set via " + name
		}
	}
	key, err := get(provider)
	if err != nil {
		return "error: " + err.Error()
	}
	if key != "" {
		return "stored in " + backend
	}
	if loadedConfig().AI.APIKey != "" && loadedConfig().AI.Provider == provider {
		return "set in config file"
	}
	return "not configured"
}

// readAPIKey prompts without echo on a terminal and reads one line otherwise.
func readAPIKey(in io.Reader, prompt io.Writer, provider string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "%s API key: ", provider)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", errors.Wrap(err, "failed to read API key")
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", errors.Wrap(err, "failed to read API key")
	}
	return strings.TrimSpace(line), nil
}
