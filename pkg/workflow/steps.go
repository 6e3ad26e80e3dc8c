package workflow

import (
	"context"
	"fmt"

	"thoreinstein.com/scommit/pkg/changes"
	scerrors "thoreinstein.com/scommit/pkg/errors"
	"thoreinstein.com/scommit/pkg/message"
	"thoreinstein.com/scommit/pkg/refine"
)

// runStage stages the whole working tree unless disabled.
func (e *Engine) runStage(ctx context.Context, r *run) error {
	if r.opts.NoStage || !e.cfg.Commit.StageAll {
		e.log("Staging skipped")
		return nil
	}
	if err := e.git.StageAll(ctx); err != nil {
		return scerrors.NewWorkflowErrorWithCause(string(StepStage), "failed to stage changes", err)
	}
	return nil
}

// runCollect reads the staged diff. A clean index ends the run.
func (e *Engine) runCollect(ctx context.Context, r *run) error {
	staged, err := e.git.HasStagedChanges(ctx)
	if err != nil {
		return scerrors.NewWorkflowErrorWithCause(string(StepCollect), "failed to inspect index", err)
	}
	if !staged {
		e.say("No staged changes found. Nothing to commit.")
		r.result.NothingToCommit = true
		r.done = true
		return nil
	}

	c, err := e.collect(ctx)
	if err != nil {
		return err
	}
	r.result.Collected = *c

	e.log("Collected %d change(s): +%d/-%d", c.Stats.Files, c.Stats.Added, c.Stats.Deleted)
	return nil
}

func (e *Engine) collect(ctx context.Context) (*Collected, error) {
	numstat, err := e.git.NumStat(ctx)
	if err != nil {
		return nil, scerrors.Wrap(err, "failed to read numstat")
	}
	nameStatus, err := e.git.NameStatus(ctx)
	if err != nil {
		return nil, scerrors.Wrap(err, "failed to read name-status")
	}

	cs := changes.Extract(numstat, nameStatus)
	return &Collected{Changes: cs, Stats: changes.Aggregate(cs)}, nil
}

// runCompose picks the message: a manual subject, the model, or the heuristic.
func (e *Engine) runCompose(ctx context.Context, r *run) error {
	cs, stats := r.result.Changes, r.result.Stats

	switch {
	case r.opts.Message != "":
		r.result.Message = e.composer.WithSubject(r.opts.Message, cs, stats)
	case e.aiEnabled(r.opts):
		r.result.Message = e.composeWithAI(ctx, r)
	default:
		r.result.Message = e.composer.Compose(cs, stats)
	}

	e.log("Message source: %s", r.result.Message.Source)
	return nil
}

func (e *Engine) aiEnabled(opts Options) bool {
	return !opts.NoAI && e.refiner != nil && e.cfg.AI.Enabled
}

// composeWithAI asks the refiner and falls back to the heuristic on any
// failure or empty answer.
func (e *Engine) composeWithAI(ctx context.Context, r *run) message.Message {
	cs, stats := r.result.Changes, r.result.Stats

	msg, err := e.refiner.Refine(ctx, e.refineInput(ctx, r.result.Collected))
	if err != nil {
		r.result.AIError = err
		fmt.Fprintf(e.errOut, "AI generation failed (%v); falling back to heuristic.\n", err)
		return e.composer.Compose(cs, stats)
	}
	if msg == nil {
		e.log("Model returned no message; using heuristic")
		return e.composer.Compose(cs, stats)
	}
	return *msg
}

// refineInput gathers prompt context. Missing context degrades the prompt
// but never stops the run.
func (e *Engine) refineInput(ctx context.Context, c Collected) refine.Input {
	in := refine.Input{
		Changes:      c.Changes,
		Stats:        c.Stats,
		ExcerptChars: e.cfg.Commit.DiffExcerptChars,
	}

	var err error
	if in.RecentSubjects, err = e.git.RecentSubjects(e.cfg.Commit.RecentSubjects); err != nil {
		e.logger.Warn("failed to read recent commit subjects", "error", err)
	}
	if in.DiffStat, err = e.git.DiffStat(ctx); err != nil {
		e.logger.Warn("failed to read diffstat", "error", err)
	}
	if in.DiffExcerpt, err = e.git.DiffExcerpt(ctx, in.ExcerptChars); err != nil {
		e.logger.Warn("failed to read diff excerpt", "error", err)
	}
	return in
}

// runCommit records the commit, or prints it and stops on a dry run.
func (e *Engine) runCommit(ctx context.Context, r *run) error {
	msg := r.result.Message
	if r.opts.DryRun {
		e.say("DRY RUN\nSubject: %s\n\n%s", msg.Subject, msg.Body)
		r.done = true
		return nil
	}

	if err := e.git.Commit(ctx, msg.Subject, msg.Body); err != nil {
		return scerrors.NewWorkflowErrorWithCause(string(StepCommit), "failed to create commit", err)
	}
	r.result.Committed = true
	return nil
}

// runSync brings the branch up to date with its upstream and pushes.
func (e *Engine) runSync(ctx context.Context, r *run) error {
	switch {
	case r.opts.NoPush:
		e.say("Skipping push (--no-push).")
		return nil
	case !e.cfg.Commit.Push:
		e.say("Skipping push (commit.push = false).")
		return nil
	}

	upstream, err := e.git.Upstream(ctx)
	if err != nil {
		return scerrors.NewWorkflowErrorWithCause(string(StepSync), "failed to resolve upstream", err)
	}
	if upstream == "" {
		e.say("No upstream configured; commit created but not pushed.")
		return nil
	}
	r.result.Upstream = upstream

	ahead, behind, err := e.git.AheadBehind(ctx, upstream)
	if err != nil {
		return scerrors.NewWorkflowErrorWithCause(string(StepSync), "failed to compare with upstream", err)
	}
	r.result.Ahead, r.result.Behind = ahead, behind

	skipPull := r.opts.SkipPull || !e.cfg.Commit.PullBeforePush
	switch {
	case behind > 0 && !skipPull:
		e.say("Branch is behind %s by %d commit(s); rebasing before push...", upstream, behind)
		if err := e.git.PullRebase(ctx); err != nil {
			return scerrors.NewWorkflowErrorWithCause(string(StepSync), "failed to rebase onto upstream", err)
		}
		r.result.Pulled = true
	case behind > 0:
		reason := "--skip-pull"
		if !r.opts.SkipPull {
			reason = "commit.pull_before_push = false"
		}
		e.say("Branch is behind %s by %d commit(s); skipping pull (%s).", upstream, behind, reason)
	}

	if ahead == 0 && behind > 0 {
		e.say("No local commits to push.")
		return nil
	}
	if err := e.git.Push(ctx); err != nil {
		return scerrors.NewWorkflowErrorWithCause(string(StepSync), "failed to push", err)
	}
	r.result.Pushed = true
	return nil
}
