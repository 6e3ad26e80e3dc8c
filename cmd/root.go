package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"thoreinstein.com/scommit/pkg/ai"
	"thoreinstein.com/scommit/pkg/bootstrap"
	"thoreinstein.com/scommit/pkg/config"
	"thoreinstein.com/scommit/pkg/credentials"
	scerrors "thoreinstein.com/scommit/pkg/errors"
	"thoreinstein.com/scommit/pkg/git"
	"thoreinstein.com/scommit/pkg/refine"
	"thoreinstein.com/scommit/pkg/workflow"
)

var cfgFile string
var verbose bool
var appConfig *config.Config

var (
	commitOpts   workflow.Options
	modelFlag    string
	providerFlag string
)

// newCredentialStore is replaced in tests.
var newCredentialStore = func() credentials.Store { return credentials.New() }

// rootCmd stages, describes, commits and pushes in one step.
var rootCmd = &cobra.Command{
	Use:   "scommit",
	Short: "Smart git commit with generated messages",
	Long: `scommit stages your working tree, classifies the staged changes, writes a
commit message from them, commits, and pushes to the upstream branch.

The message is built from the change set (docs, tests, config, code) and can be
refined by a language model when an API key is available. Any model failure
falls back to the deterministic message.

Examples:
  scommit                       # Stage, commit and push
  scommit --dry-run             # Show the message without committing
  scommit -m "Fix login flow"   # Use your own subject with the generated body
  scommit --no-ai --no-push     # Heuristic message, commit only`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd.ErrOrStderr())
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCommit(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Pre-parse so failures before and after cobra's own parsing are
	// reported with the same verbosity.
	_, preVerbose := bootstrap.PreParseGlobalFlags(os.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if preVerbose || verbose {
			fmt.Fprintf(os.Stderr, "%+v\n", err)
		} else {
			fmt.Fprintln(os.Stderr, scerrors.FormatUserError(err))
		}
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "C", "", "config file (default is $HOME/.config/scommit/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	f := rootCmd.Flags()
	f.BoolVar(&commitOpts.DryRun, "dry-run", false, "Print the message without committing")
	f.BoolVar(&commitOpts.NoStage, "no-stage", false, "Do not run `git add -A` first")
	f.BoolVar(&commitOpts.NoPush, "no-push", false, "Skip pushing to the upstream remote")
	f.BoolVar(&commitOpts.SkipPull, "skip-pull", false, "Skip pulling/rebasing even if branch is behind upstream")
	f.StringVarP(&commitOpts.Message, "message", "m", "", "Use this subject instead of a generated one")
	f.BoolVar(&commitOpts.NoAI, "no-ai", false, "Never call a language model")
	f.StringVar(&modelFlag, "model", "", "Model override (default from config or SCOMMIT_MODEL)")
	f.StringVar(&providerFlag, "provider", "", "AI provider override (openai, groq, anthropic, ollama, gemini)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig(stderr io.Writer) error {
	cfg, err := bootstrap.InitConfig(cfgFile, verbose, stderr)
	if err != nil {
		return err
	}
	appConfig = cfg
	return nil
}

// loadedConfig returns the configuration prepared by initConfig, or the
// defaults when a command runs without it.
func loadedConfig() *config.Config {
	if appConfig == nil {
		return config.Default()
	}
	return appConfig
}

// newLogger returns a debug logger on w when verbose, otherwise nil.
func newLogger(w io.Writer) *slog.Logger {
	if !verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// newGitClient opens the repository containing the working directory.
func newGitClient(out, errOut io.Writer) (*git.Client, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, scerrors.Wrap(err, "failed to get working directory")
	}
	root, err := git.RepoRoot(cwd)
	if err != nil {
		return nil, err
	}
	return git.NewClient(root, &git.ExecRunner{Stdout: out, Stderr: errOut, Logger: newLogger(errOut)}), nil
}

func runCommit(ctx context.Context, out, errOut io.Writer) error {
	cfg := loadedConfig()

	client, err := newGitClient(out, errOut)
	if err != nil {
		return err
	}

	var refiner workflow.Refiner
	if !commitOpts.NoAI && commitOpts.Message == "" && cfg.AI.Enabled {
		r, err := newRefiner(cfg.AI, errOut)
		if err != nil {
			return err
		}
		if r != nil {
			refiner = r
		}
	}

	engine := workflow.NewEngine(client, refiner, cfg, out, errOut, verbose)
	_, err = engine.Run(ctx, commitOpts)
	return err
}

// newRefiner builds the model refiner with flag overrides applied. A missing
// API key disables refinement and returns nil without error.
func newRefiner(aiCfg config.AIConfig, errOut io.Writer) (*refine.Refiner, error) {
	if providerFlag != "" {
		if err := config.ValidateProvider(providerFlag); err != nil {
			return nil, err
		}
		aiCfg.Provider = providerFlag
	}
	if modelFlag != "" {
		aiCfg.Model = modelFlag
	}

	logger := newLogger(errOut)
	provider, err := ai.NewProvider(&aiCfg, newCredentialStore(), verbose)
	if err != nil {
		if scerrors.IsConfigError(err) {
			if logger != nil {
				logger.Debug("AI refinement disabled", "reason", err)
			}
			return nil, nil
		}
		return nil, err
	}
	return refine.New(provider, &aiCfg, logger), nil
}
