// Package logging builds the injected slog logger shared by every component.
//
// Log lines go to a persistent file and to the console. The console side is
// a SyncWriter so that the progress renderer, which writes to the same
// terminal, never interleaves with a log line.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

const timeFormat = "2006-01-02 15:04:05"

// Options configures New.
type Options struct {
	// File is the persistent log file, opened for append. Empty disables it.
	File  string
	Level slog.Level

	// Console receives a copy of every record at ConsoleLevel or above. Nil disables it.
	Console      *SyncWriter
	ConsoleLevel slog.Level
}

// SyncWriter serializes writes to w. Every Write is one critical section,
// and Generation counts completed writes so a renderer can tell whether
// someone else wrote since its last frame.
type SyncWriter struct {
	mu  sync.Mutex
	w   io.Writer
	gen atomic.Uint64
}

// NewSyncWriter wraps w.
func NewSyncWriter(w io.Writer) *SyncWriter {
	return &SyncWriter{w: w}
}

func (s *SyncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.w.Write(p)
	s.gen.Add(1)
	return n, err
}

// WriteFrame writes redraw when nothing else was written since gen, and
// fresh otherwise. It returns the generation after the write.
func (s *SyncWriter) WriteFrame(gen uint64, redraw, fresh []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := redraw
	if s.gen.Load() != gen {
		p = fresh
	}
	_, err := s.w.Write(p)
	return s.gen.Add(1), err
}

// Generation returns the number of writes so far.
func (s *SyncWriter) Generation() uint64 {
	return s.gen.Load()
}

// Logger bundles the slog logger with the resources it owns.
type Logger struct {
	*slog.Logger
	file *os.File
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// New creates a logger writing to the configured file and console.
func New(opts Options) (*Logger, error) {
	var handlers []slog.Handler
	var file *os.File

	if opts.File != "" {
		if dir := filepath.Dir(opts.File); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		file = f
		handlers = append(handlers, newTextHandler(f, opts.Level))
	}

	if opts.Console != nil {
		handlers = append(handlers, newTextHandler(opts.Console, opts.ConsoleLevel))
	}

	var h slog.Handler
	switch len(handlers) {
	case 0:
		h = slog.NewTextHandler(io.Discard, nil)
	case 1:
		h = handlers[0]
	default:
		h = &fanoutHandler{handlers: handlers}
	}

	return &Logger{Logger: slog.New(h), file: file}, nil
}

func newTextHandler(w io.Writer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if len(groups) == 0 && a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(timeFormat))
			}
			return a
		},
	})
}

// ParseLevel converts a string log level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// OrDiscard returns l, or a discarding logger when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// fanoutHandler sends each record to every handler that accepts its level.
type fanoutHandler struct {
	handlers []slog.Handler
}

func (f *fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *fanoutHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &fanoutHandler{handlers: next}
}

func (f *fanoutHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		next[i] = h.WithGroup(name)
	}
	return &fanoutHandler{handlers: next}
}
