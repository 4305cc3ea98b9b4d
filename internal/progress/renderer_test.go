package progress

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"

	"multi_downloader/internal/download/types"
	"multi_downloader/internal/logging"
)

func TestNopAndFunc(t *testing.T) {
	Nop{}.Update(types.ProgressEvent{TaskID: 1})

	var got []types.ProgressEvent
	var r Reporter = Func(func(e types.ProgressEvent) { got = append(got, e) })
	emit := Emit(r)
	emit(types.ProgressEvent{TaskID: 3, BytesReceived: 5})
	if len(got) != 1 || got[0].TaskID != 3 {
		t.Errorf("Func did not forward event: %+v", got)
	}

	if Emit(nil) != nil {
		t.Error("Emit(nil) should be nil")
	}
}

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		percent float64
		width   int
		want    string
	}{
		{0, 10, "----------"},
		{50, 10, "#####-----"},
		{100, 10, "##########"},
		{150, 4, "####"},
		{-5, 4, "----"},
		{50, 0, ""},
	}
	for _, tt := range tests {
		if got := renderProgressBar(tt.percent, tt.width); got != tt.want {
			t.Errorf("renderProgressBar(%v, %d) = %q, want %q", tt.percent, tt.width, got, tt.want)
		}
	}
}

func TestBarWidthFor(t *testing.T) {
	if got := barWidthFor(0); got != defaultBarWidth {
		t.Errorf("barWidthFor(0) = %d", got)
	}
	if got := barWidthFor(40); got != minBarWidth {
		t.Errorf("barWidthFor(40) = %d", got)
	}
	if got := barWidthFor(500); got != maxBarWidth {
		t.Errorf("barWidthFor(500) = %d", got)
	}
}

func TestTruncateName(t *testing.T) {
	long := strings.Repeat("a", 40) + ".txt"
	got := truncateName(long)
	if len([]rune(got)) != maxNameWidth || !strings.HasSuffix(got, "...") {
		t.Errorf("truncateName = %q", got)
	}
	if truncateName("a.txt") != "a.txt" {
		t.Error("short names must be untouched")
	}
}

func TestLineModeSteps(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(Options{Output: logging.NewSyncWriter(&buf)})

	for i := int64(0); i <= 100; i++ {
		r.Update(types.ProgressEvent{TaskID: 0, Name: "a.txt", BytesReceived: i, TotalBytes: 100})
		r.render(false)
	}
	r.render(true)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 11 {
		t.Fatalf("expected 11 lines (0%%..100%% in 10%% steps), got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[10], "100.0%") {
		t.Errorf("last line = %q", lines[10])
	}
}

func TestLineModeUnknownTotal(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(Options{Output: logging.NewSyncWriter(&buf)})

	r.Update(types.ProgressEvent{TaskID: 0, Name: "s.bin", BytesReceived: 10})
	r.render(false)
	r.Update(types.ProgressEvent{TaskID: 0, Name: "s.bin", BytesReceived: 2000})
	r.render(false)
	r.render(true)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected first and final lines, got %d:\n%s", len(lines), buf.String())
	}
	if strings.Contains(lines[1], "%") {
		t.Errorf("unknown total should not show a percentage: %q", lines[1])
	}
	if !strings.Contains(lines[1], "2.0 kB") {
		t.Errorf("final line should show received bytes: %q", lines[1])
	}
}

func TestLiveModeRedraw(t *testing.T) {
	var buf bytes.Buffer
	out := logging.NewSyncWriter(&buf)
	r := NewRenderer(Options{Output: out, Live: true})

	r.Update(types.ProgressEvent{TaskID: 0, Name: "a.txt", BytesReceived: 10, TotalBytes: 100})
	r.Update(types.ProgressEvent{TaskID: 1, Name: "b.txt", BytesReceived: 0, TotalBytes: 0})
	r.render(false)
	first := buf.String()
	if strings.Contains(first, "\x1b[2A") {
		t.Fatalf("first frame must not move the cursor up: %q", first)
	}

	buf.Reset()
	r.render(false)
	if !strings.HasPrefix(buf.String(), "\x1b[2A") {
		t.Errorf("second frame should redraw in place: %q", buf.String())
	}

	// A log line written between frames forces a fresh block.
	_, _ = out.Write([]byte("time=now level=INFO msg=hello\n"))
	buf.Reset()
	r.render(false)
	if strings.Contains(buf.String(), "\x1b[2A") {
		t.Errorf("frame after a log line must not overwrite it: %q", buf.String())
	}
}

func TestConcurrentUpdatesProduceWholeLines(t *testing.T) {
	var buf bytes.Buffer
	out := logging.NewSyncWriter(&buf)
	r := NewRenderer(Options{Output: out})
	r.Start()

	var wg sync.WaitGroup
	for task := 0; task < 50; task++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			name := fmt.Sprintf("task-%02d.bin", id)
			for i := int64(1); i <= 100; i++ {
				r.Update(types.ProgressEvent{TaskID: id, Name: name, BytesReceived: i * 10, TotalBytes: 1000})
				if i%25 == 0 {
					_, _ = out.Write([]byte("log line\n"))
				}
			}
		}(task)
	}
	wg.Wait()
	r.Stop()
	r.Stop()

	lineRE := regexp.MustCompile(`^(task-\d{2}\.bin\s+\|[#-]+\|\s+\d+\.\d% .*|log line)$`)
	seenFinal := make(map[string]bool)
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		if !lineRE.MatchString(line) {
			t.Fatalf("malformed line %q", line)
		}
		if strings.Contains(line, "100.0%") {
			seenFinal[strings.Fields(line)[0]] = true
		}
	}
	if len(seenFinal) != 50 {
		t.Errorf("expected a 100%% line for all 50 tasks, got %d", len(seenFinal))
	}
	if r.Failures() != 0 {
		t.Errorf("unexpected render failures: %d", r.Failures())
	}
}

type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) { return 0, errors.New("disk full") }

type panicWriter struct{}

func (panicWriter) Write(p []byte) (int, error) { panic("terminal exploded") }

func TestRenderFailuresAreRecovered(t *testing.T) {
	tests := []struct {
		name string
		out  *logging.SyncWriter
	}{
		{"write error", logging.NewSyncWriter(errWriter{})},
		{"panic", logging.NewSyncWriter(panicWriter{})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRenderer(Options{Output: tt.out})
			r.Update(types.ProgressEvent{TaskID: 0, Name: "a", BytesReceived: 1, TotalBytes: 10})
			r.render(false)
			r.Update(types.ProgressEvent{TaskID: 0, Name: "a", BytesReceived: 9, TotalBytes: 10})
			r.render(false)

			if r.Failures() != 1 {
				t.Errorf("Failures = %d, want 1 (drawing stops after the first)", r.Failures())
			}
			// Updates keep working after the display is disabled.
			r.Update(types.ProgressEvent{TaskID: 0, Name: "a", BytesReceived: 10, TotalBytes: 10})
		})
	}
}

func TestStopWithoutStart(t *testing.T) {
	r := NewRenderer(Options{})
	r.Stop()
	r.Stop()
}
