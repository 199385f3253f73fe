package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/minutedhq/minuted/common/logger"
	"github.com/minutedhq/minuted/core/config"
	"github.com/minutedhq/minuted/internal/agent"
	"github.com/minutedhq/minuted/internal/store"
)

// Pipeline runs the three agent stages for a job in strict sequence:
// Transcriber → Clarifier → Summarizer. The first failure aborts the rest;
// there is no retry and no timeout, so a hung remote call leaves the job
// in "started" indefinitely.
type Pipeline struct {
	runner agent.Runner
	jobs   store.JobStore
	agents agent.Set
	email  config.EmailConfig
}

func New(runner agent.Runner, jobs store.JobStore, agents agent.Set, email config.EmailConfig) *Pipeline {
	return &Pipeline{
		runner: runner,
		jobs:   jobs,
		agents: agents,
		email:  email,
	}
}

// Process executes the pipeline for one job and records the terminal state.
// It is launched once per job in its own goroutine and never returns an
// error to the caller: all three stages are one atomic unit of work from the
// failure-handling perspective, and any stage error lands on the job record.
func (p *Pipeline) Process(ctx context.Context, jobID, transcript string) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:     logger.Ptr(jobID),
		Component: "minuted.pipeline",
	})

	sc := logger.StartSpan(ctx, "pipeline.process")
	defer sc.End()
	ctx = sc.Context()

	start := time.Now()
	slog.InfoContext(ctx, "job started", "transcript_length", len(transcript))

	if err := p.run(ctx, jobID, transcript); err != nil {
		sc.RecordError(err)
		slog.ErrorContext(ctx, "job failed",
			"error", err,
			"duration_ms", time.Since(start).Milliseconds())

		if storeErr := p.jobs.SetFailed(jobID, err.Error()); storeErr != nil {
			slog.ErrorContext(ctx, "failed to record job failure", "error", storeErr)
		}
		return
	}

	if err := p.jobs.SetCompleted(jobID); err != nil {
		slog.ErrorContext(ctx, "failed to record job completion", "error", err)
		return
	}

	slog.InfoContext(ctx, "job completed", "duration_ms", time.Since(start).Milliseconds())
}

func (p *Pipeline) run(ctx context.Context, jobID, transcript string) error {
	clean, err := p.stage(ctx, p.agents.Transcriber, transcript, nil)
	if err != nil {
		return fmt.Errorf("transcriber: %w", err)
	}

	clarified, err := p.stage(ctx, p.agents.Clarifier, clean, nil)
	if err != nil {
		return fmt.Errorf("clarifier: %w", err)
	}
	// An empty clarifier output falls back to the transcriber's text, so the
	// summarizer never sees an empty input.
	if clarified == "" {
		clarified = clean
	}

	if _, err := p.stage(ctx, p.agents.Summarizer, clarified, &agent.RunContext{
		Recipients: p.email.Recipients,
		Subject:    p.email.SubjectPrefix + jobID,
	}); err != nil {
		return fmt.Errorf("summarizer: %w", err)
	}

	return nil
}

func (p *Pipeline) stage(ctx context.Context, def agent.Definition, input string, runCtx *agent.RunContext) (string, error) {
	start := time.Now()

	out, err := p.runner.Run(ctx, def, input, runCtx)
	if err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "stage completed",
		"agent", def.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"output", logger.Truncate(out, 100))
	return out, nil
}
