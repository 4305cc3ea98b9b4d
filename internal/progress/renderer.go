package progress

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"multi_downloader/internal/download/types"
	"multi_downloader/internal/logging"
)

const (
	defaultBarWidth = 24
	minBarWidth     = 10
	maxBarWidth     = 40
	maxNameWidth    = 28
	lineStepPercent = 10
)

// Options configures a Renderer.
type Options struct {
	Output *logging.SyncWriter

	// Live redraws a block of lines in place. Otherwise a line is printed
	// each time a task crosses a 10% step.
	Live bool

	// TermWidth sizes the bar in live mode. Zero uses the default width.
	TermWidth int

	// Interval is the live redraw period. Default: 200ms
	Interval time.Duration

	Logger *slog.Logger
}

type taskState struct {
	name     string
	received int64
	total    int64
	started  time.Time

	// Line mode bookkeeping, owned by the render goroutine.
	lastStep    int
	lastPrinted int64
	printed     bool
}

// Renderer draws progress for many tasks on a shared console.
type Renderer struct {
	opts     Options
	logger   *slog.Logger
	barWidth int

	mu    sync.Mutex
	tasks map[int]*taskState

	wake      chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	startOnce sync.Once
	stopOnce  sync.Once
	started   atomic.Bool

	failures atomic.Int32

	// Owned by the render goroutine.
	gen      uint64
	lines    int
	hasFrame bool
}

// NewRenderer creates a renderer. Call Start to begin drawing.
func NewRenderer(opts Options) *Renderer {
	if opts.Interval <= 0 {
		opts.Interval = 200 * time.Millisecond
	}
	return &Renderer{
		opts:     opts,
		logger:   logging.OrDiscard(opts.Logger),
		barWidth: barWidthFor(opts.TermWidth),
		tasks:    make(map[int]*taskState),
		wake:     make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func barWidthFor(termWidth int) int {
	if termWidth <= 0 {
		return defaultBarWidth
	}
	// Leave room for the name, percent, sizes and rate.
	w := termWidth - maxNameWidth - 50
	if w < minBarWidth {
		return minBarWidth
	}
	if w > maxBarWidth {
		return maxBarWidth
	}
	return w
}

// Update records the latest progress of a task. It never blocks on output.
func (r *Renderer) Update(e types.ProgressEvent) {
	r.mu.Lock()
	st := r.tasks[e.TaskID]
	if st == nil {
		st = &taskState{started: time.Now(), lastStep: -1}
		r.tasks[e.TaskID] = st
	}
	if e.BytesReceived < st.received {
		// A new attempt restarted the byte count.
		st.started = time.Now()
		st.lastStep = -1
	}
	st.name = e.Name
	st.received = e.BytesReceived
	st.total = e.TotalBytes
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Start launches the render goroutine.
func (r *Renderer) Start() {
	r.startOnce.Do(func() {
		r.started.Store(true)
		go r.loop()
	})
}

// Stop draws a final frame and waits for the render goroutine. It is idempotent.
func (r *Renderer) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	if r.started.Load() {
		<-r.doneCh
	}
}

// Failures returns how many render errors were recovered.
func (r *Renderer) Failures() int {
	return int(r.failures.Load())
}

func (r *Renderer) loop() {
	defer close(r.doneCh)

	var tick <-chan time.Time
	if r.opts.Live {
		ticker := time.NewTicker(r.opts.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-r.stopCh:
			r.render(true)
			return
		case <-r.wake:
			if !r.opts.Live {
				r.render(false)
			}
		case <-tick:
			r.render(false)
		}
	}
}

// render draws one frame and converts any failure into a counted, logged error.
func (r *Renderer) render(final bool) {
	if r.opts.Output == nil || r.failures.Load() > 0 {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(fmt.Errorf("panic: %v", rec))
		}
	}()

	var err error
	if r.opts.Live {
		err = r.renderLive()
	} else {
		err = r.renderLines(final)
	}
	if err != nil {
		r.fail(err)
	}
}

func (r *Renderer) fail(err error) {
	if r.failures.Add(1) == 1 {
		r.logger.Warn("Progress display disabled", "error", err)
	}
}

type snapshot struct {
	id int
	taskState
}

func (r *Renderer) snapshot() []snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]snapshot, 0, len(r.tasks))
	for id, st := range r.tasks {
		out = append(out, snapshot{id: id, taskState: *st})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func (r *Renderer) renderLive() error {
	snaps := r.snapshot()
	if len(snaps) == 0 {
		return nil
	}

	var fresh bytes.Buffer
	now := time.Now()
	for _, s := range snaps {
		fresh.WriteString("\x1b[2K")
		fresh.WriteString(r.formatLine(s.taskState, now))
		fresh.WriteByte('\n')
	}

	var redraw bytes.Buffer
	if r.lines > 0 {
		fmt.Fprintf(&redraw, "\x1b[%dA", r.lines)
	}
	redraw.Write(fresh.Bytes())

	gen := r.gen
	if !r.hasFrame {
		gen = math.MaxUint64
	}
	next, err := r.opts.Output.WriteFrame(gen, redraw.Bytes(), fresh.Bytes())
	r.gen = next
	r.hasFrame = true
	r.lines = len(snaps)
	return err
}

func (r *Renderer) renderLines(final bool) error {
	snaps := r.snapshot()
	now := time.Now()

	var buf bytes.Buffer
	emitted := make(map[int]taskState)
	for _, s := range snaps {
		st := s.taskState
		due := false
		if st.total > 0 {
			step := stepOf(st.received, st.total)
			if step > st.lastStep {
				st.lastStep = step
				due = true
			}
		} else if !st.printed {
			due = true
		}
		if final && st.received != st.lastPrinted {
			due = true
		}
		if !due {
			continue
		}
		st.printed = true
		st.lastPrinted = st.received
		emitted[s.id] = st
		buf.WriteString(r.formatLine(st, now))
		buf.WriteByte('\n')
	}

	if len(emitted) > 0 {
		r.mu.Lock()
		for id, st := range emitted {
			// Skip tasks whose attempt restarted since the snapshot.
			if cur := r.tasks[id]; cur != nil && cur.received >= st.received {
				cur.lastStep = st.lastStep
				cur.lastPrinted = st.lastPrinted
				cur.printed = true
			}
		}
		r.mu.Unlock()
	}

	if buf.Len() == 0 {
		return nil
	}
	_, err := r.opts.Output.Write(buf.Bytes())
	return err
}

func stepOf(received, total int64) int {
	if total <= 0 {
		return 0
	}
	pct := int(received * 100 / total)
	if pct > 100 {
		pct = 100
	}
	return pct / lineStepPercent
}

func (r *Renderer) formatLine(st taskState, now time.Time) string {
	name := truncateName(st.name)
	rate := formatSpeed(speedOf(st.received, now.Sub(st.started)))
	if st.total <= 0 {
		return fmt.Sprintf("%-*s %10s %12s", maxNameWidth, name, humanize.Bytes(uint64(st.received)), rate)
	}
	percent := float64(st.received) * 100 / float64(st.total)
	return fmt.Sprintf("%-*s |%s| %5.1f%% %10s / %-10s %12s",
		maxNameWidth, name,
		renderProgressBar(percent, r.barWidth),
		math.Min(percent, 100),
		humanize.Bytes(uint64(st.received)),
		humanize.Bytes(uint64(st.total)),
		rate)
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) <= maxNameWidth {
		return name
	}
	return string(runes[:maxNameWidth-3]) + "..."
}

func speedOf(received int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(received) / elapsed.Seconds()
}

func renderProgressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	fill := int(percent * float64(width) / 100)
	return strings.Repeat("#", fill) + strings.Repeat("-", width-fill)
}

func formatSpeed(speed float64) string {
	if speed <= 0 {
		return "0 B/s"
	}
	return humanize.Bytes(uint64(speed)) + "/s"
}
