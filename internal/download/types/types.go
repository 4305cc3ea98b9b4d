package types

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"
)

// Task is one URL-to-file download unit, including all its retry attempts.
type Task struct {
	ID       int    // Position in the input list
	URL      string // Source URL
	DestPath string // Absolute destination file path
}

// Name returns the destination file name used for display.
func (t Task) Name() string {
	return filepath.Base(t.DestPath)
}

// ErrorKind classifies why a single attempt failed.
type ErrorKind int

const (
	KindTimeout ErrorKind = iota + 1
	KindHTTPStatus
	KindTransport
	KindFilesystem
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindHTTPStatus:
		return "http_status"
	case KindTransport:
		return "transport"
	case KindFilesystem:
		return "filesystem"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Sentinels matched by FetchError.Is, so callers can use errors.Is(err, types.ErrTimeout).
var (
	ErrTimeout    = errors.New("download: timeout")
	ErrHTTPStatus = errors.New("download: unexpected http status")
	ErrTransport  = errors.New("download: transport error")
	ErrFilesystem = errors.New("download: filesystem error")
	ErrCancelled  = errors.New("download: cancelled")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTimeout:
		return ErrTimeout
	case KindHTTPStatus:
		return ErrHTTPStatus
	case KindTransport:
		return ErrTransport
	case KindFilesystem:
		return ErrFilesystem
	case KindCancelled:
		return ErrCancelled
	default:
		return nil
	}
}

// FetchError is the classified failure of one attempt.
type FetchError struct {
	Kind       ErrorKind
	StatusCode int    // Set for KindHTTPStatus
	Detail     string // Human readable detail
	Err        error  // Underlying cause, if any
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindHTTPStatus:
		return fmt.Sprintf("%s: %d %s", e.Kind, e.StatusCode, e.Detail)
	case e.Detail != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *FetchError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// NewFetchError builds a FetchError, using err's text as the detail when none is given.
func NewFetchError(kind ErrorKind, detail string, err error) *FetchError {
	if detail == "" && err != nil {
		detail = err.Error()
	}
	return &FetchError{Kind: kind, Detail: detail, Err: err}
}

// StatusError builds the failure for a non-2xx response.
func StatusError(code int, status string) *FetchError {
	return &FetchError{Kind: KindHTTPStatus, StatusCode: code, Detail: status}
}

// KindOf returns the ErrorKind carried by err, or 0 when err is not a FetchError.
func KindOf(err error) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return 0
}

// AttemptResult is produced once per attempt by a Fetcher.
// A nil Err means the attempt succeeded.
type AttemptResult struct {
	BytesWritten int64
	ContentType  string // Declared media type from the response
	DetectedType string // Extension sniffed from the first bytes, if recognised
	Err          error
}

// Succeeded reports whether the attempt completed without error.
func (r AttemptResult) Succeeded() bool { return r.Err == nil }

// OutcomeStatus is the terminal state of a task.
type OutcomeStatus string

const (
	StatusSucceeded OutcomeStatus = "succeeded"
	StatusFailed    OutcomeStatus = "failed"
)

// TaskOutcome is the terminal result of a task; it is never revisited.
type TaskOutcome struct {
	Task         Task
	Status       OutcomeStatus
	Attempts     int
	BytesWritten int64
	ContentType  string
	DetectedType string
	LastErr      error
	Elapsed      time.Duration
}

// Succeeded reports whether the task finished successfully.
func (o TaskOutcome) Succeeded() bool { return o.Status == StatusSucceeded }

// ProgressEvent reports cumulative bytes of the current attempt of a task.
type ProgressEvent struct {
	TaskID        int
	Name          string
	BytesReceived int64
	TotalBytes    int64 // <= 0 when the server did not declare a length
}

// TotalKnown reports whether the total size was declared.
func (e ProgressEvent) TotalKnown() bool { return e.TotalBytes > 0 }

// RunSummary aggregates the outcomes of one RunAll call.
type RunSummary struct {
	RunID     string
	Succeeded int
	Failed    int
	Outcomes  []TaskOutcome // In input order
	Started   time.Time
	Elapsed   time.Duration
}

// Total returns the number of tasks in the run.
func (s *RunSummary) Total() int { return s.Succeeded + s.Failed }

// Summarize counts outcomes into a RunSummary.
func Summarize(runID string, started time.Time, outcomes []TaskOutcome) *RunSummary {
	s := &RunSummary{
		RunID:    runID,
		Outcomes: outcomes,
		Started:  started,
		Elapsed:  time.Since(started),
	}
	for _, o := range outcomes {
		if o.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
	return s
}
