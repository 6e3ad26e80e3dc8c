package errors

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
)

func TestGitError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *GitError
		expected string
	}{
		{
			name: "with stderr",
			err: &GitError{
				Args:    []string{"push"},
				Stderr:  "rejected: non-fast-forward",
				Message: "exit status 1",
			},
			expected: "git push failed: exit status 1: rejected: non-fast-forward",
		},
		{
			name: "without stderr",
			err: &GitError{
				Args:    []string{"diff", "--cached", "--numstat"},
				Message: "exit status 128",
			},
			expected: "git diff --cached --numstat failed: exit status 128",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewGitErrorWithCause_TrimsStderr(t *testing.T) {
	cause := errors.New("exit status 1")
	err := NewGitErrorWithCause([]string{"commit"}, "  nothing to commit\n", "command failed", cause)

	if err.Stderr != "nothing to commit" {
		t.Errorf("Stderr = %q, want %q", err.Stderr, "nothing to commit")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is() should find cause through GitError")
	}
}

func TestAIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AIError
		expected string
	}{
		{
			name: "with status",
			err: &AIError{
				Provider:   "openai",
				Operation:  "Chat",
				StatusCode: 500,
				Message:    "internal error",
			},
			expected: "ai openai Chat failed (HTTP 500): internal error",
		},
		{
			name: "without status",
			err: &AIError{
				Provider:  "openai",
				Operation: "Refine",
				Message:   "AI response missing JSON object",
			},
			expected: "ai openai Refine failed: AI response missing JSON object",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestNewAIErrorWithStatus_Retryable(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{408, true},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{400, false},
		{401, false},
		{404, false},
	}

	for _, tt := range tests {
		err := NewAIErrorWithStatus("openai", "Chat", tt.status, "boom")
		if err.Retryable != tt.retryable {
			t.Errorf("status %d: Retryable = %v, want %v", tt.status, err.Retryable, tt.retryable)
		}
	}
}

func TestWorkflowError_Error(t *testing.T) {
	withStep := NewWorkflowError("commit", "git commit failed")
	if got := withStep.Error(); got != "workflow step commit failed: git commit failed" {
		t.Errorf("Error() = %q", got)
	}

	withoutStep := NewWorkflowError("", "bad state")
	if got := withoutStep.Error(); got != "workflow error: bad state" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNewWorkflowErrorWithCause_InheritsRetryable(t *testing.T) {
	aiErr := NewAIErrorWithStatus("openai", "Chat", 503, "unavailable")
	wfErr := NewWorkflowErrorWithCause("compose", "model call failed", aiErr)

	if !wfErr.Retryable {
		t.Error("WorkflowError should be retryable when cause is retryable")
	}
	if !IsAIError(wfErr) {
		t.Error("IsAIError() should see the wrapped AIError")
	}
}

func TestIsPredicates(t *testing.T) {
	configErr := NewConfigError("ai.provider", "unsupported")
	gitErr := NewGitError([]string{"push"}, "failed")
	aiErr := NewAIError("openai", "Chat", "failed")
	wfErr := NewWorkflowErrorWithCause("sync", "push failed", gitErr)
	plainErr := errors.New("plain")

	tests := []struct {
		name   string
		err    error
		config bool
		git    bool
		ai     bool
		wf     bool
	}{
		{name: "config", err: errors.Wrap(configErr, "loading"), config: true},
		{name: "git", err: gitErr, git: true},
		{name: "ai", err: aiErr, ai: true},
		{name: "workflow wrapping git", err: wfErr, git: true, wf: true},
		{name: "plain", err: plainErr},
		{name: "nil", err: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfigError(tt.err); got != tt.config {
				t.Errorf("IsConfigError() = %v, want %v", got, tt.config)
			}
			if got := IsGitError(tt.err); got != tt.git {
				t.Errorf("IsGitError() = %v, want %v", got, tt.git)
			}
			if got := IsAIError(tt.err); got != tt.ai {
				t.Errorf("IsAIError() = %v, want %v", got, tt.ai)
			}
			if got := IsWorkflowError(tt.err); got != tt.wf {
				t.Errorf("IsWorkflowError() = %v, want %v", got, tt.wf)
			}
		})
	}
}

func TestRetryWithResult_RetriesRetryableErrors(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	attempts := 0
	got, err := RetryWithResult(t.Context(), cfg, func() (string, error) {
		attempts++
		if attempts < 3 {
			return "", NewAIErrorWithStatus("openai", "Chat", 503, "unavailable")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("RetryWithResult() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want %q", got, "ok")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryWithResult_StopsOnPermanentError(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}

	attempts := 0
	_, err := RetryWithResult(t.Context(), cfg, func() (int, error) {
		attempts++
		return 0, NewAIErrorWithStatus("openai", "Chat", 401, "bad key")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}

func TestRetryWithResult_ZeroRetriesReturnsErrorUnchanged(t *testing.T) {
	want := NewAIErrorWithStatus("openai", "Chat", 500, "boom")

	err := Retry(t.Context(), RetryConfig{}, func() error { return want })
	if err != want {
		t.Errorf("Retry() = %v, want the original error", err)
	}
}

func TestRetryWithResult_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	called := false
	err := Retry(ctx, DefaultRetryConfig(), func() error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if called {
		t.Error("fn should not run when context is already cancelled")
	}
}

func TestCalculateBackoff_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := 400 * time.Millisecond

	for attempt := 0; attempt < 5; attempt++ {
		d := CalculateBackoff(base, max, attempt, 0.4)
		if d > time.Duration(float64(max)*1.2) {
			t.Errorf("attempt %d: delay %v exceeds jittered max", attempt, d)
		}
		if d < time.Duration(float64(base)*0.8) {
			t.Errorf("attempt %d: delay %v below jittered base", attempt, d)
		}
	}
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "nil",
			err:      nil,
			contains: nil,
		},
		{
			name:     "config error",
			err:      NewConfigError("ai.provider", "unsupported AI provider: foo"),
			contains: []string{"Configuration error in 'ai.provider'", "scommit config init"},
		},
		{
			name:     "ai auth error",
			err:      NewAIErrorWithStatus("openai", "Chat", 401, "invalid key"),
			contains: []string{"AI provider error (openai)", "scommit auth login"},
		},
		{
			name: "workflow error with git stderr",
			err: NewWorkflowErrorWithCause("sync", "push failed",
				NewGitErrorWithCause([]string{"push"}, "rejected", "exit status 1", errors.New("exit status 1"))),
			contains: []string{"Commit failed in 'sync' step", "git said:", "rejected"},
		},
		{
			name:     "bare git error",
			err:      NewGitErrorWithCause([]string{"add", "-A"}, "permission denied", "exit status 1", nil),
			contains: []string{"git add -A failed", "permission denied"},
		},
		{
			name:     "plain error",
			err:      errors.New("something else"),
			contains: []string{"something else"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatUserError(tt.err)
			if tt.err == nil && got != "" {
				t.Errorf("FormatUserError(nil) = %q, want empty", got)
			}
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("FormatUserError() = %q, missing %q", got, want)
				}
			}
		})
	}
}
