package multidl

import (
	"multi_downloader/internal/config"
	"multi_downloader/internal/download/types"
	"multi_downloader/internal/state"
)

// Re-exported types for the public API to keep internal packages private
// while maintaining a stable surface for consumers.
type Settings = config.Settings

type RuntimeConfig = types.RuntimeConfig
type Task = types.Task
type TaskOutcome = types.TaskOutcome
type RunSummary = types.RunSummary
type ProgressEvent = types.ProgressEvent
type FetchError = types.FetchError
type ErrorKind = types.ErrorKind

type RunRecord = state.RunRecord
type TaskRecord = state.TaskRecord

var (
	ErrTimeout    = types.ErrTimeout
	ErrHTTPStatus = types.ErrHTTPStatus
	ErrTransport  = types.ErrTransport
	ErrFilesystem = types.ErrFilesystem
	ErrCancelled  = types.ErrCancelled
)
