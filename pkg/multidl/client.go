// Package multidl exposes the downloader for embedding in other programs.
package multidl

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"multi_downloader/internal/config"
	"multi_downloader/internal/download"
	"multi_downloader/internal/download/types"
	"multi_downloader/internal/logging"
	"multi_downloader/internal/progress"
	"multi_downloader/internal/state"
)

var errNotInitialized = errors.New("client not initialized")

// Client runs download batches with shared settings and history storage.
// It is safe for concurrent use, but two batches must not target the same
// output directory at once.
type Client struct {
	settings *config.Settings
	logger   *slog.Logger
	store    *state.Store
	progress progress.Reporter

	closeOnce sync.Once
}

// NewClient returns a ready-to-use client. Settings default to the user's
// config file and environment when not supplied.
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts == nil {
		opts = &ClientOptions{}
	}

	settings := opts.Settings
	if settings == nil {
		loaded, err := config.LoadSettings("")
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	c := &Client{
		settings: settings,
		logger:   logging.OrDiscard(opts.Logger),
		progress: progress.Nop{},
	}
	if opts.OnProgress != nil {
		c.progress = progress.Func(opts.OnProgress)
	}

	if settings.History.Enabled && !opts.DisableHistory {
		path := settings.History.Path
		if opts.HistoryPath != "" {
			path = opts.HistoryPath
		}
		store, err := state.Open(path, c.logger)
		if err != nil {
			return nil, err
		}
		c.store = store
	}
	return c, nil
}

// Download fetches urls into <OutputRoot>/<FileType>/ and returns once every
// URL has a terminal outcome.
func (c *Client) Download(ctx context.Context, urls []string, opts *DownloadOptions) (*RunSummary, error) {
	if c == nil || c.settings == nil {
		return nil, errNotInitialized
	}

	s := *c.settings
	if opts != nil {
		if opts.FileType != "" {
			s.Download.FileType = strings.ToLower(strings.TrimSpace(opts.FileType))
		}
		if opts.OutputRoot != "" {
			s.Download.OutputRoot = opts.OutputRoot
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	cfg := download.Config{
		OutputRoot: s.Download.OutputRoot,
		FileType:   s.Download.FileType,
		Runtime:    types.ConvertRuntimeConfig(&s),
		Reporter:   c.progress,
		Logger:     c.logger,
	}
	if c.store != nil {
		cfg.History = c.store
	}

	mgr := download.NewManager(cfg)
	defer mgr.Close()
	return mgr.RunAll(ctx, urls)
}

// History returns up to limit recorded runs, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]RunRecord, error) {
	if c == nil {
		return nil, errNotInitialized
	}
	if c.store == nil {
		return nil, errors.New("history is disabled")
	}
	return c.store.History(ctx, limit)
}

// RunTasks returns the stored task outcomes of one run.
func (c *Client) RunTasks(ctx context.Context, runID string) ([]TaskRecord, error) {
	if c == nil {
		return nil, errNotInitialized
	}
	if c.store == nil {
		return nil, errors.New("history is disabled")
	}
	return c.store.RunTasks(ctx, runID)
}

// Shutdown releases resources. It is safe to call multiple times from different goroutines.
func (c *Client) Shutdown() error {
	if c == nil {
		return nil
	}
	var err error
	c.closeOnce.Do(func() {
		if c.store != nil {
			err = c.store.Close()
		}
	})
	return err
}
