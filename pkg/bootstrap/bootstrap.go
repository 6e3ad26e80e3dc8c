// Package bootstrap prepares configuration before the command tree runs.
package bootstrap

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"thoreinstein.com/scommit/pkg/config"
	"thoreinstein.com/scommit/pkg/git"
)

// RepoConfigName is the repository-local override file.
const RepoConfigName = ".scommit.toml"

// PreParseGlobalFlags scans args for --config and --verbose before cobra
// parses the command line. Scanning stops at "--".
//
// Unlike a subcommand-based tool, the root command takes only flags, so
// positional arguments are skipped rather than ending the scan.
func PreParseGlobalFlags(args []string) (cfgFile string, verbose bool) {
	for i := 1; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			break
		}

		switch {
		case arg == "--config" || arg == "-C":
			if i+1 < len(args) {
				cfgFile = args[i+1]
				i++
			}
		case strings.HasPrefix(arg, "--config="):
			cfgFile = strings.TrimPrefix(arg, "--config=")
		case strings.HasPrefix(arg, "-C="):
			cfgFile = strings.TrimPrefix(arg, "-C=")
		case strings.HasPrefix(arg, "-C") && len(arg) > 2:
			cfgFile = arg[2:]
		case arg == "--verbose" || arg == "-v":
			verbose = true
		}
	}

	return cfgFile, verbose
}

// InitConfig resets viper, reads the user config file (or cfgFile when
// given), merges the repository-local file, binds SCOMMIT_* environment
// variables, and returns the validated configuration. Diagnostics go to
// stderr.
func InitConfig(cfgFile string, verbose bool, stderr io.Writer) (*config.Config, error) {
	viper.Reset()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(filepath.Dir(config.DefaultPath()))
		viper.SetConfigType("toml")
		viper.SetConfigName("config")
	}

	viper.SetEnvPrefix("SCOMMIT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	// SCOMMIT_MODEL predates the ai.* namespace and still selects the model.
	if err := viper.BindEnv("ai.model", "SCOMMIT_AI_MODEL", "SCOMMIT_MODEL"); err != nil {
		return nil, errors.Wrap(err, "failed to bind model environment")
	}

	if err := viper.ReadInConfig(); err != nil {
		// A missing user config is fine; a broken or missing explicit one is not.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, errors.Wrapf(err, "failed to read config %s", viper.ConfigFileUsed())
		}
	} else if verbose {
		fmt.Fprintln(stderr, "Using config file:", viper.ConfigFileUsed())
	}

	LoadRepoLocalConfig(verbose, stderr)

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	for _, w := range config.CheckSecurityWarnings(cfg) {
		fmt.Fprintf(stderr, "Warning: %s\n", w.Message)
	}

	return cfg, nil
}

// repoLocalAIKeys are the ai.* settings a repository file may override.
// Provider, endpoint and API key settings never come from a repository.
var repoLocalAIKeys = []string{
	"enabled", "model", "timeout", "max_retries", "temperature", "max_tokens",
	"openai_model", "groq_model", "anthropic_model", "ollama_model", "gemini_model",
}

// LoadRepoLocalConfig merges .scommit.toml from the repository root and,
// when different, the current directory into the global viper instance.
// Only commit.* and the ai.* keys in repoLocalAIKeys are taken; anything
// else is reported on stderr and ignored.
func LoadRepoLocalConfig(verbose bool, stderr io.Writer) {
	var paths []string

	cwd, _ := os.Getwd()
	if root, err := git.RepoRoot(cwd); err == nil && root != "" {
		paths = append(paths, filepath.Join(root, RepoConfigName))
		if cwd != root {
			paths = append(paths, RepoConfigName)
		}
	} else {
		paths = append(paths, RepoConfigName)
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}

		local := viper.New()
		local.SetConfigFile(p)
		local.SetConfigType("toml")
		if err := local.ReadInConfig(); err != nil {
			if verbose {
				fmt.Fprintf(stderr, "Warning: could not read local config %s: %v\n", p, err)
			}
			continue
		}

		if verbose {
			fmt.Fprintf(stderr, "Using repository config: %s\n", p)
		}

		settings, ignored := filterRepoLocal(local.AllSettings())
		if len(ignored) > 0 {
			fmt.Fprintf(stderr, "Warning: ignoring %s from repository config %s\n", strings.Join(ignored, ", "), p)
		}

		if err := viper.MergeConfigMap(settings); err != nil && verbose {
			fmt.Fprintf(stderr, "Warning: could not merge local config: %v\n", err)
		}
	}
}

// filterRepoLocal keeps the settings a repository may override and returns
// the dotted names of everything it dropped, sorted.
func filterRepoLocal(settings map[string]any) (map[string]any, []string) {
	kept := make(map[string]any)
	var ignored []string

	for key, value := range settings {
		switch key {
		case "commit":
			kept[key] = value
		case "ai":
			section, ok := value.(map[string]any)
			if !ok {
				ignored = append(ignored, key)
				continue
			}
			aiSettings := make(map[string]any)
			for k, v := range section {
				if slices.Contains(repoLocalAIKeys, k) {
					aiSettings[k] = v
				} else {
					ignored = append(ignored, "ai."+k)
				}
			}
			if len(aiSettings) > 0 {
				kept[key] = aiSettings
			}
		default:
			ignored = append(ignored, key)
		}
	}

	slices.Sort(ignored)
	return kept, ignored
}
