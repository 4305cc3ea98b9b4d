package multidl

import "log/slog"

// ProgressFunc receives progress events from concurrent downloads; it must be safe for concurrent use.
type ProgressFunc func(ProgressEvent)

// ClientOptions configures the embedded engine.
type ClientOptions struct {
	Settings       *Settings
	Logger         *slog.Logger
	HistoryPath    string
	DisableHistory bool
	OnProgress     ProgressFunc
}

// DownloadOptions overrides settings for one Download call.
type DownloadOptions struct {
	FileType   string
	OutputRoot string
}
