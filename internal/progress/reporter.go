// Package progress turns per-task progress events into console output.
package progress

import (
	"os"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"

	"multi_downloader/internal/download/types"
)

// Reporter receives progress events. Implementations must be safe for
// concurrent use and must not block the caller for long.
type Reporter interface {
	Update(types.ProgressEvent)
}

// Nop discards all events.
type Nop struct{}

func (Nop) Update(types.ProgressEvent) {}

// Func adapts a function to Reporter.
type Func func(types.ProgressEvent)

func (f Func) Update(e types.ProgressEvent) { f(e) }

// Emit returns r as a plain callback, or nil when r is nil.
func Emit(r Reporter) func(types.ProgressEvent) {
	if r == nil {
		return nil
	}
	return r.Update
}

// DetectTerminal reports whether f is an interactive terminal and its width in columns.
func DetectTerminal(f *os.File) (live bool, width int) {
	if f == nil {
		return false, 0
	}
	fd := f.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return false, 0
	}
	w, _, err := term.GetSize(int(fd))
	if err != nil {
		return true, 0
	}
	return true, w
}
