package errors

import (
	"fmt"
	"strings"
)

// FormatUserError returns a user-friendly error message with actionable guidance.
// It examines the error chain and provides context-appropriate help text.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var configErr *ConfigError
	if As(err, &configErr) {
		return formatConfigError(configErr)
	}

	var aiErr *AIError
	if As(err, &aiErr) {
		return formatAIError(aiErr)
	}

	// Workflow errors usually wrap a git failure; report the step first.
	var wfErr *WorkflowError
	if As(err, &wfErr) {
		return formatWorkflowError(wfErr)
	}

	var gitErr *GitError
	if As(err, &gitErr) {
		return formatGitError(gitErr)
	}

	return err.Error()
}

// formatConfigError formats a ConfigError with actionable guidance.
func formatConfigError(err *ConfigError) string {
	var b strings.Builder

	if err.Field != "" {
		fmt.Fprintf(&b, "Configuration error in '%s': %s\n", err.Field, err.Message)
	} else {
		fmt.Fprintf(&b, "Configuration error: %s\n", err.Message)
	}

	b.WriteString("\nTo fix this:\n")
	b.WriteString("  • Check your config file: ~/.config/scommit/config.toml\n")
	b.WriteString("  • Run 'scommit config init' to write a default config\n")

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatAIError formats an AIError with actionable guidance based on status code.
func formatAIError(err *AIError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "AI provider error (%s) during %s: %s\n", err.Provider, err.Operation, err.Message)

	switch err.StatusCode {
	case 401:
		fmt.Fprintf(&b, "\nAuthentication failed with %s. To fix this:\n", err.Provider)
		b.WriteString("  • Run 'scommit auth login' to store a new API key\n")
		b.WriteString("  • Or set the provider's API key environment variable\n")

	case 403:
		fmt.Fprintf(&b, "\nAccess denied by %s. To fix this:\n", err.Provider)
		b.WriteString("  • Check your API key permissions\n")
		b.WriteString("  • Ensure the model you're using is available to your account tier\n")

	case 429:
		fmt.Fprintf(&b, "\n%s rate limit exceeded. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few minutes before retrying\n")
		b.WriteString("  • Use --no-ai to commit with the heuristic message\n")

	case 500, 502, 503, 504:
		fmt.Fprintf(&b, "\n%s server error. To fix this:\n", err.Provider)
		b.WriteString("  • Wait a few moments and try again\n")
		b.WriteString("  • Check the provider's status page\n")
	}

	if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}

// formatGitError formats a GitError, surfacing git's own stderr.
func formatGitError(err *GitError) string {
	var b strings.Builder

	fmt.Fprintf(&b, "git %s failed: %s\n", strings.Join(err.Args, " "), err.Message)
	if err.Stderr != "" {
		fmt.Fprintf(&b, "\n%s\n", err.Stderr)
	}

	return b.String()
}

// formatWorkflowError formats a WorkflowError with step-specific guidance.
func formatWorkflowError(err *WorkflowError) string {
	var b strings.Builder

	if err.Step != "" {
		fmt.Fprintf(&b, "Commit failed in '%s' step: %s\n", err.Step, err.Message)
	} else {
		fmt.Fprintf(&b, "Commit failed: %s\n", err.Message)
	}

	switch err.Step {
	case "stage":
		b.WriteString("\nStaging failed. To fix this:\n")
		b.WriteString("  • Check for files git cannot read\n")
		b.WriteString("  • Use --no-stage to commit what is already staged\n")

	case "collect":
		b.WriteString("\nCould not read staged changes. To fix this:\n")
		b.WriteString("  • Make sure you are inside a git working tree\n")

	case "commit":
		b.WriteString("\nThe commit was rejected. To fix this:\n")
		b.WriteString("  • Review pre-commit hook output above\n")
		b.WriteString("  • Re-run with --dry-run to inspect the message\n")

	case "sync":
		b.WriteString("\nThe commit was created but could not be synchronized. To fix this:\n")
		b.WriteString("  • Resolve any rebase conflicts, then run 'git push'\n")
		b.WriteString("  • Use --skip-pull or --no-push to skip these steps\n")

	default:
		b.WriteString("\nTo troubleshoot:\n")
		b.WriteString("  • Run with --verbose for more details\n")
	}

	var gitErr *GitError
	if As(err.Cause, &gitErr) && gitErr.Stderr != "" {
		fmt.Fprintf(&b, "\ngit said:\n%s\n", gitErr.Stderr)
	} else if err.Cause != nil {
		fmt.Fprintf(&b, "\nUnderlying error: %v", err.Cause)
	}

	return b.String()
}
