package git

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"strings"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// Runner executes git subcommands in a working directory.
type Runner interface {
	// Output runs git and returns its stdout.
	Output(ctx context.Context, dir string, args ...string) (string, error)
	// Run runs git for its side effects.
	Run(ctx context.Context, dir string, args ...string) error
}

// ExecRunner runs the git binary found on PATH.
type ExecRunner struct {
	// Stdout and Stderr receive the output of Run when set, so commit hooks
	// and push progress stay visible.
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// Output implements Runner.
func (r *ExecRunner) Output(ctx context.Context, dir string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	if err := r.exec(ctx, dir, args, &stdout, &stderr); err != nil {
		return "", err
	}
	return stdout.String(), nil
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) error {
	var stderr bytes.Buffer
	var out io.Writer = io.Discard
	var errOut io.Writer = &stderr
	if r.Stdout != nil {
		out = r.Stdout
	}
	if r.Stderr != nil {
		errOut = io.MultiWriter(r.Stderr, &stderr)
	}
	return r.exec(ctx, dir, args, out, errOut)
}

func (r *ExecRunner) exec(ctx context.Context, dir string, args []string, stdout, stderr io.Writer) error {
	if r.Logger != nil {
		r.Logger.Debug("running git", "dir", dir, "args", strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Stdout = stdout

	var captured bytes.Buffer
	cmd.Stderr = io.MultiWriter(stderr, &captured)

	if err := cmd.Run(); err != nil {
		gitErr := scerrors.NewGitErrorWithCause(args, captured.String(), "command failed", err)
		var exitErr *exec.ExitError
		if scerrors.As(err, &exitErr) {
			gitErr.ExitCode = exitErr.ExitCode()
		}
		return gitErr
	}
	return nil
}
