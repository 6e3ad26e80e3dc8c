package workflow

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"thoreinstein.com/scommit/pkg/config"
	scerrors "thoreinstein.com/scommit/pkg/errors"
	"thoreinstein.com/scommit/pkg/message"
)

// Engine orchestrates the commit workflow.
type Engine struct {
	git      Git
	refiner  Refiner
	composer *message.Composer
	cfg      *config.Config
	out      io.Writer
	errOut   io.Writer
	verbose  bool
	logger   *slog.Logger
}

// NewEngine creates a workflow engine.
//
// Parameters:
//   - g: git collaborator (required)
//   - refiner: model refinement; nil disables the AI path
//   - cfg: configuration; nil uses built-in defaults
//   - out, errOut: destinations for progress and notices
//   - verbose: enable debug logging
func NewEngine(g Git, refiner Refiner, cfg *config.Config, out, errOut io.Writer, verbose bool) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	return &Engine{
		git:      g,
		refiner:  refiner,
		composer: message.NewComposer(),
		cfg:      cfg,
		out:      out,
		errOut:   errOut,
		verbose:  verbose,
		logger:   logger,
	}
}

// run carries state between steps.
type run struct {
	opts   Options
	result *Result
	done   bool
}

// Run executes the commit workflow.
//
// A clean index ends the run after the collect step without error, and a
// dry run ends it after printing the message. Step failures are returned
// as WorkflowErrors naming the step.
func (e *Engine) Run(ctx context.Context, opts Options) (*Result, error) {
	r := &run{opts: opts, result: &Result{}}

	steps := []struct {
		step Step
		fn   func(context.Context, *run) error
	}{
		{StepStage, e.runStage},
		{StepCollect, e.runCollect},
		{StepCompose, e.runCompose},
		{StepCommit, e.runCommit},
		{StepSync, e.runSync},
	}

	for _, s := range steps {
		e.log("Executing step: %s", s.step)

		if err := s.fn(ctx, r); err != nil {
			if scerrors.IsWorkflowError(err) {
				return r.result, err
			}
			return r.result, scerrors.NewWorkflowErrorWithCause(string(s.step), err.Error(), err)
		}

		r.result.CompletedSteps = append(r.result.CompletedSteps, s.step)
		if r.done {
			break
		}
	}

	return r.result, nil
}

// Collect reads and classifies the staged changes without committing.
func (e *Engine) Collect(ctx context.Context) (*Collected, error) {
	c, err := e.collect(ctx)
	if err != nil {
		return nil, scerrors.NewWorkflowErrorWithCause(string(StepCollect), err.Error(), err)
	}
	return c, nil
}

// log prints a debug message when verbose mode is enabled.
func (e *Engine) log(format string, args ...any) {
	if e.verbose {
		e.logger.Debug(fmt.Sprintf(format, args...))
	}
}

// say prints a user-facing line.
func (e *Engine) say(format string, args ...any) {
	fmt.Fprintf(e.out, format+"\n", args...)
}
