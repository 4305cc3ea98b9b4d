// Package retry drives a task through repeated fetch attempts with a fixed
// pause between them until one succeeds or the attempt budget runs out.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"multi_downloader/internal/download/types"
	"multi_downloader/internal/logging"
)

// Fetcher performs a single attempt for a task.
type Fetcher interface {
	Fetch(ctx context.Context, task types.Task, emit func(types.ProgressEvent)) types.AttemptResult
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, task types.Task, emit func(types.ProgressEvent)) types.AttemptResult

func (f FetcherFunc) Fetch(ctx context.Context, task types.Task, emit func(types.ProgressEvent)) types.AttemptResult {
	return f(ctx, task, emit)
}

// Policy is stateless across tasks and safe for concurrent use.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration // Pause between attempts; zero means none
	Logger      *slog.Logger
}

// NewPolicy builds a Policy from runtime settings.
func NewPolicy(runtime *types.RuntimeConfig, logger *slog.Logger) *Policy {
	return &Policy{
		MaxAttempts: runtime.GetMaxAttempts(),
		Delay:       runtime.GetRetryDelay(),
		Logger:      logger,
	}
}

// Run attempts task up to MaxAttempts times. At least one attempt is always
// made, even when ctx is already done, so every task reports an outcome.
func (p *Policy) Run(ctx context.Context, task types.Task, fetcher Fetcher, emit func(types.ProgressEvent)) types.TaskOutcome {
	logger := logging.OrDiscard(p.Logger)
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	start := time.Now()
	outcome := types.TaskOutcome{Task: task, Status: types.StatusFailed}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome.Attempts = attempt
		logger.Info(fmt.Sprintf("Downloading: %s (Attempt %d)", task.URL, attempt), "task", task.ID)

		res := fetcher.Fetch(ctx, task, emit)
		outcome.BytesWritten = res.BytesWritten
		outcome.LastErr = res.Err

		if res.Succeeded() {
			outcome.Status = types.StatusSucceeded
			outcome.ContentType = res.ContentType
			outcome.DetectedType = res.DetectedType
			outcome.Elapsed = time.Since(start)
			logger.Info("Download completed: "+task.DestPath, "task", task.ID, "bytes", res.BytesWritten)
			return outcome
		}

		logger.Warn("Error downloading "+task.URL,
			"task", task.ID,
			"attempt", attempt,
			"kind", types.KindOf(res.Err).String(),
			"error", res.Err)

		if types.KindOf(res.Err) == types.KindCancelled || ctx.Err() != nil {
			break
		}
		if attempt < maxAttempts && !sleep(ctx, p.Delay) {
			break
		}
	}

	outcome.Elapsed = time.Since(start)
	logger.Error(fmt.Sprintf("Failed after %d attempts: %s", outcome.Attempts, task.URL), "task", task.ID)
	return outcome
}

// sleep waits for d or until ctx is done. It reports whether the full pause elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
