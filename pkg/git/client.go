package git

import (
	"context"
	"strconv"
	"strings"

	scerrors "thoreinstein.com/scommit/pkg/errors"
)

// Client wraps the git invocations the commit workflow needs.
type Client struct {
	Dir    string
	runner Runner
}

// NewClient creates a Client rooted at dir.
func NewClient(dir string, runner Runner) *Client {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Client{Dir: dir, runner: runner}
}

// StageAll stages every change in the working tree.
func (c *Client) StageAll(ctx context.Context) error {
	return c.runner.Run(ctx, c.Dir, "add", "-A")
}

// HasStagedChanges reports whether the index differs from HEAD.
func (c *Client) HasStagedChanges(ctx context.Context) (bool, error) {
	_, err := c.runner.Output(ctx, c.Dir, "diff", "--cached", "--quiet")
	if err == nil {
		return false, nil
	}
	var gitErr *scerrors.GitError
	if scerrors.As(err, &gitErr) && gitErr.ExitCode == 1 {
		return true, nil
	}
	return false, err
}

// NumStat returns `git diff --cached --numstat`.
func (c *Client) NumStat(ctx context.Context) (string, error) {
	return c.runner.Output(ctx, c.Dir, "diff", "--cached", "--numstat")
}

// NameStatus returns `git diff --cached --name-status`.
func (c *Client) NameStatus(ctx context.Context) (string, error) {
	return c.runner.Output(ctx, c.Dir, "diff", "--cached", "--name-status")
}

// DiffStat returns the staged diffstat.
func (c *Client) DiffStat(ctx context.Context) (string, error) {
	return c.runner.Output(ctx, c.Dir, "diff", "--cached", "--stat", "--no-color")
}

// DiffExcerpt returns at most maxChars characters of the staged patch.
func (c *Client) DiffExcerpt(ctx context.Context, maxChars int) (string, error) {
	out, err := c.runner.Output(ctx, c.Dir, "diff", "--cached", "--unified=3", "--no-color")
	if err != nil {
		return "", err
	}
	if maxChars > 0 {
		if r := []rune(out); len(r) > maxChars {
			out = string(r[:maxChars])
		}
	}
	return out, nil
}

// Commit records the index with the given message. A blank body is omitted.
func (c *Client) Commit(ctx context.Context, subject, body string) error {
	args := []string{"commit", "-m", subject}
	if strings.TrimSpace(body) != "" {
		args = append(args, "-m", body)
	}
	return c.runner.Run(ctx, c.Dir, args...)
}

// Upstream returns the tracking branch of HEAD, or "" when none is set.
// A cancelled context or a killed git is an error, not a missing upstream.
func (c *Client) Upstream(ctx context.Context) (string, error) {
	out, err := c.runner.Output(ctx, c.Dir, "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", scerrors.Wrap(ctxErr, "resolving upstream")
		}
		var gitErr *scerrors.GitError
		if scerrors.As(err, &gitErr) && gitErr.ExitCode > 0 {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// AheadBehind counts commits HEAD has that upstream lacks, and the reverse.
func (c *Client) AheadBehind(ctx context.Context, upstream string) (ahead, behind int, err error) {
	out, err := c.runner.Output(ctx, c.Dir, "rev-list", "--left-right", "--count", "HEAD..."+upstream)
	if err != nil {
		return 0, 0, err
	}
	return ParseAheadBehind(out)
}

// PullRebase rebases the current branch onto its upstream.
func (c *Client) PullRebase(ctx context.Context) error {
	return c.runner.Run(ctx, c.Dir, "pull", "--rebase")
}

// Push pushes the current branch to its upstream.
func (c *Client) Push(ctx context.Context) error {
	return c.runner.Run(ctx, c.Dir, "push")
}

// ParseAheadBehind parses `rev-list --left-right --count` output.
func ParseAheadBehind(out string) (ahead, behind int, err error) {
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return 0, 0, scerrors.Newf("unexpected rev-list output %q", strings.TrimSpace(out))
	}
	if ahead, err = strconv.Atoi(fields[0]); err != nil {
		return 0, 0, scerrors.Wrapf(err, "parsing ahead count %q", fields[0])
	}
	if behind, err = strconv.Atoi(fields[1]); err != nil {
		return 0, 0, scerrors.Wrapf(err, "parsing behind count %q", fields[1])
	}
	return ahead, behind, nil
}

// RecentSubjects returns up to n recent commit subjects of the repository.
func (c *Client) RecentSubjects(n int) ([]string, error) {
	return RecentSubjects(c.Dir, n)
}
