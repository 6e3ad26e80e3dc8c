// Package workflow provides the commit workflow engine.
//
// A run proceeds through five steps:
// 1. Stage - add every working tree change to the index (optional)
// 2. Collect - read the staged diff into classified changes and stats
// 3. Compose - build the message from the heuristic, a manual subject or the model
// 4. Commit - record the commit, or print it on a dry run
// 5. Sync - rebase onto the upstream when behind, then push
package workflow

import (
	"context"

	"thoreinstein.com/scommit/pkg/changes"
	"thoreinstein.com/scommit/pkg/message"
	"thoreinstein.com/scommit/pkg/refine"
)

// Step represents a workflow step.
type Step string

const (
	// StepStage stages the working tree.
	StepStage Step = "stage"
	// StepCollect reads staged changes.
	StepCollect Step = "collect"
	// StepCompose builds the commit message.
	StepCompose Step = "compose"
	// StepCommit records the commit.
	StepCommit Step = "commit"
	// StepSync pulls and pushes.
	StepSync Step = "sync"
)

// AllSteps returns all workflow steps in execution order.
func AllSteps() []Step {
	return []Step{StepStage, StepCollect, StepCompose, StepCommit, StepSync}
}

// String returns the string representation of the step.
func (s Step) String() string {
	return string(s)
}

// Git is the version control surface the engine drives.
type Git interface {
	StageAll(ctx context.Context) error
	HasStagedChanges(ctx context.Context) (bool, error)
	NumStat(ctx context.Context) (string, error)
	NameStatus(ctx context.Context) (string, error)
	DiffStat(ctx context.Context) (string, error)
	DiffExcerpt(ctx context.Context, maxChars int) (string, error)
	RecentSubjects(n int) ([]string, error)
	Commit(ctx context.Context, subject, body string) error
	Upstream(ctx context.Context) (string, error)
	AheadBehind(ctx context.Context, upstream string) (ahead, behind int, err error)
	PullRebase(ctx context.Context) error
	Push(ctx context.Context) error
}

// Refiner produces a model-written message. A nil message with a nil
// error means the model had nothing to offer.
type Refiner interface {
	Refine(ctx context.Context, in refine.Input) (*message.Message, error)
}

// Options configures a single run.
type Options struct {
	// DryRun prints the message instead of committing.
	DryRun bool

	// NoStage skips `git add -A`.
	NoStage bool

	// NoPush stops after the commit.
	NoPush bool

	// SkipPull pushes without rebasing even when behind the upstream.
	SkipPull bool

	// NoAI forces the heuristic message.
	NoAI bool

	// Message replaces the generated subject. The body stays heuristic.
	Message string
}

// Collected is the classified view of the staged changes.
type Collected struct {
	Changes []changes.FileChange
	Stats   changes.Stats
}

// Result describes what a run did.
type Result struct {
	Collected

	// NothingToCommit is set when the index was clean.
	NothingToCommit bool

	Message message.Message

	// AIError holds the refinement failure that caused a heuristic fallback.
	AIError error

	Committed bool
	Upstream  string
	Ahead     int
	Behind    int
	Pulled    bool
	Pushed    bool

	CompletedSteps []Step
}
