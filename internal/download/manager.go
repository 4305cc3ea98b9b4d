// Package download coordinates a batch of URL downloads: it prepares the
// output directory, runs every task through the retry policy concurrently
// and aggregates the outcomes once all of them have finished.
package download

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"multi_downloader/internal/download/concurrent"
	"multi_downloader/internal/download/retry"
	"multi_downloader/internal/download/single"
	"multi_downloader/internal/download/types"
	"multi_downloader/internal/logging"
	"multi_downloader/internal/progress"
	"multi_downloader/internal/utils"
)

// Recorder persists a finished run. Errors are logged by the Manager and never fail the run.
type Recorder interface {
	RecordRun(ctx context.Context, fileType, outputDir string, summary *types.RunSummary) error
}

// Config wires a Manager. Only OutputRoot and FileType are required.
type Config struct {
	OutputRoot string
	FileType   string
	Runtime    *types.RuntimeConfig

	// Fetcher performs single attempts. Nil uses an HTTP SingleDownloader built from Runtime.
	Fetcher  retry.Fetcher
	Reporter progress.Reporter
	History  Recorder
	Logger   *slog.Logger
}

// Manager runs batches of downloads. A Manager may be reused for several runs.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	policy  *retry.Policy
	fetcher retry.Fetcher
	owned   *single.SingleDownloader
}

func NewManager(cfg Config) *Manager {
	if cfg.Runtime == nil {
		cfg.Runtime = &types.RuntimeConfig{}
	}
	logger := logging.OrDiscard(cfg.Logger)

	m := &Manager{
		cfg:     cfg,
		logger:  logger,
		policy:  retry.NewPolicy(cfg.Runtime, logger),
		fetcher: cfg.Fetcher,
	}
	if m.fetcher == nil {
		m.owned = single.NewSingleDownloader(cfg.Runtime, logger)
		m.fetcher = m.owned
	}
	return m
}

// Close releases the HTTP transport when the Manager built its own.
func (m *Manager) Close() {
	if m.owned != nil {
		m.owned.Close()
	}
}

// OutputDir returns the directory files are written to.
func (m *Manager) OutputDir() string {
	return utils.OutputDir(m.cfg.OutputRoot, m.cfg.FileType)
}

// RunAll downloads every non-blank URL in urls and returns once all tasks
// have reached a terminal outcome. The only errors returned are fatal setup
// failures on the shared output directory; per-task failures are reported in
// the summary.
func (m *Manager) RunAll(ctx context.Context, urls []string) (*types.RunSummary, error) {
	started := time.Now()
	dir := m.OutputDir()

	if err := utils.PrepareOutputDir(dir); err != nil {
		return nil, types.NewFetchError(types.KindFilesystem, "", err)
	}
	lock, err := acquireDirLock(dir)
	if err != nil {
		return nil, types.NewFetchError(types.KindFilesystem, "", err)
	}
	defer func() {
		if err := lock.Release(); err != nil {
			m.logger.Warn("Failed to release directory lock", "dir", dir, "error", err)
		}
	}()

	tasks := m.buildTasks(urls, dir)
	runID := uuid.NewString()
	workers := m.cfg.Runtime.GetWorkers()

	m.logger.Info("Starting downloads",
		"run", runID,
		"tasks", len(tasks),
		"dir", dir,
		"workers", workers,
		"max_attempts", m.policy.MaxAttempts)

	emit := progress.Emit(m.cfg.Reporter)
	outcomes := make([]types.TaskOutcome, len(tasks))

	concurrent.Scheduler{Workers: workers}.Run(len(tasks), func(i int) {
		outcomes[i] = m.policy.Run(ctx, tasks[i], m.fetcher, emit)
		m.checkType(outcomes[i])
	})

	summary := types.Summarize(runID, started, outcomes)
	m.logger.Info("All downloads complete.",
		"run", runID,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"elapsed", summary.Elapsed.Round(time.Millisecond))

	if m.cfg.History != nil {
		// Recording uses its own context so an interrupted run is still saved.
		hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := m.cfg.History.RecordRun(hctx, m.cfg.FileType, dir, summary); err != nil {
			m.logger.Warn("Failed to record run history", "run", runID, "error", err)
		}
		cancel()
	}

	return summary, nil
}

// buildTasks assigns IDs in input order, skipping blank entries.
func (m *Manager) buildTasks(urls []string, dir string) []types.Task {
	tasks := make([]types.Task, 0, len(urls))
	seen := make(map[string]string, len(urls))

	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		dest := filepath.Join(dir, utils.FileNameFromURL(u))
		if prev, ok := seen[dest]; ok {
			m.logger.Warn("Multiple URLs share a destination; the last to finish wins",
				"dest", dest, "first", prev, "url", u)
		} else {
			seen[dest] = u
		}
		tasks = append(tasks, types.Task{ID: len(tasks), URL: u, DestPath: dest})
	}
	return tasks
}

func (m *Manager) checkType(o types.TaskOutcome) {
	if !o.Succeeded() || !utils.TypeMismatch(m.cfg.FileType, o.DetectedType) {
		return
	}
	m.logger.Warn("Downloaded content does not match requested type",
		"file", o.Task.DestPath,
		"requested", m.cfg.FileType,
		"detected", o.DetectedType,
		"content_type", o.ContentType)
}
