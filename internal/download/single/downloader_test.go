package single

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"multi_downloader/internal/download/types"
)

func newTestDownloader(t *testing.T, runtime *types.RuntimeConfig) *SingleDownloader {
	t.Helper()
	d := NewSingleDownloader(runtime, nil)
	t.Cleanup(d.Close)
	return d
}

func TestFetchWritesBody(t *testing.T) {
	body := bytes.Repeat([]byte("0123456789"), 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "test-agent" {
			t.Errorf("User-Agent = %q", got)
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		_, _ = w.Write(body)
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "a.txt")
	d := newTestDownloader(t, &types.RuntimeConfig{UserAgent: "test-agent", ChunkSize: 256})

	var events []types.ProgressEvent
	res := d.Fetch(context.Background(), types.Task{ID: 7, URL: server.URL + "/a.txt", DestPath: dest}, func(e types.ProgressEvent) {
		events = append(events, e)
	})

	if res.Err != nil {
		t.Fatalf("Fetch: %v", res.Err)
	}
	if res.BytesWritten != int64(len(body)) {
		t.Errorf("BytesWritten = %d, want %d", res.BytesWritten, len(body))
	}
	if res.ContentType != "text/plain" {
		t.Errorf("ContentType = %q", res.ContentType)
	}

	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, body) {
		t.Error("file content mismatch")
	}

	if len(events) == 0 {
		t.Fatal("expected progress events")
	}
	var last int64
	for _, e := range events {
		if e.TaskID != 7 || e.Name != "a.txt" {
			t.Errorf("unexpected event identity: %+v", e)
		}
		if e.BytesReceived < last {
			t.Errorf("progress went backwards: %d after %d", e.BytesReceived, last)
		}
		if e.TotalBytes != int64(len(body)) {
			t.Errorf("TotalBytes = %d", e.TotalBytes)
		}
		last = e.BytesReceived
	}
	if last != int64(len(body)) {
		t.Errorf("final progress = %d, want %d", last, len(body))
	}
}

func TestFetchTruncatesExistingFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("new"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(dest, []byte("old content that is longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := newTestDownloader(t, nil)
	if res := d.Fetch(context.Background(), types.Task{URL: server.URL, DestPath: dest}, nil); res.Err != nil {
		t.Fatalf("Fetch: %v", res.Err)
	}
	got, _ := os.ReadFile(dest)
	if string(got) != "new" {
		t.Errorf("content = %q, want %q", got, "new")
	}
}

func TestFetchDetectsType(t *testing.T) {
	pdf := append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte{'x'}, 300)...)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write(pdf)
	}))
	defer server.Close()

	d := newTestDownloader(t, &types.RuntimeConfig{ChunkSize: 4})
	res := d.Fetch(context.Background(), types.Task{URL: server.URL, DestPath: filepath.Join(t.TempDir(), "doc.pdf")}, nil)
	if res.Err != nil {
		t.Fatalf("Fetch: %v", res.Err)
	}
	if res.DetectedType != "pdf" {
		t.Errorf("DetectedType = %q, want pdf", res.DetectedType)
	}
}

func TestFetchHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		code int
	}{
		{"server error", http.StatusInternalServerError},
		{"not found", http.StatusNotFound},
		{"forbidden", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
			}))
			defer server.Close()

			dest := filepath.Join(t.TempDir(), "b.txt")
			d := newTestDownloader(t, nil)
			res := d.Fetch(context.Background(), types.Task{URL: server.URL, DestPath: dest}, nil)

			if !errors.Is(res.Err, types.ErrHTTPStatus) {
				t.Fatalf("expected http status error, got %v", res.Err)
			}
			var fe *types.FetchError
			if !errors.As(res.Err, &fe) || fe.StatusCode != tt.code {
				t.Errorf("StatusCode = %v, want %d", fe, tt.code)
			}
			if _, err := os.Stat(dest); !os.IsNotExist(err) {
				t.Error("no file should be created for a non-2xx response")
			}
		})
	}
}

func TestFetchUnknownLength(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		for i := 0; i < 5; i++ {
			_, _ = w.Write([]byte("chunk"))
			flusher.Flush()
		}
	}))
	defer server.Close()

	var events []types.ProgressEvent
	d := newTestDownloader(t, nil)
	res := d.Fetch(context.Background(), types.Task{URL: server.URL, DestPath: filepath.Join(t.TempDir(), "s.bin")}, func(e types.ProgressEvent) {
		events = append(events, e)
	})
	if res.Err != nil {
		t.Fatalf("Fetch: %v", res.Err)
	}
	if res.BytesWritten != 25 {
		t.Errorf("BytesWritten = %d, want 25", res.BytesWritten)
	}
	for _, e := range events {
		if e.TotalKnown() {
			t.Errorf("expected unknown total, got %d", e.TotalBytes)
		}
	}
}

func TestFetchStallTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "100")
		_, _ = w.Write([]byte("partial"))
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	d := newTestDownloader(t, &types.RuntimeConfig{Timeout: 100 * time.Millisecond})
	start := time.Now()
	res := d.Fetch(context.Background(), types.Task{URL: server.URL, DestPath: filepath.Join(t.TempDir(), "slow.bin")}, nil)

	if !errors.Is(res.Err, types.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", res.Err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestFetchHeaderTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer server.Close()

	d := newTestDownloader(t, &types.RuntimeConfig{Timeout: 100 * time.Millisecond})
	res := d.Fetch(context.Background(), types.Task{URL: server.URL, DestPath: filepath.Join(t.TempDir(), "h.bin")}, nil)
	if !errors.Is(res.Err, types.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", res.Err)
	}
}

func TestFetchTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	d := newTestDownloader(t, nil)
	res := d.Fetch(context.Background(), types.Task{URL: url, DestPath: filepath.Join(t.TempDir(), "x")}, nil)
	if !errors.Is(res.Err, types.ErrTransport) {
		t.Fatalf("expected transport error, got %v", res.Err)
	}
}

func TestFetchFilesystemError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	dest := filepath.Join(t.TempDir(), "missing", "dir", "a.txt")
	d := newTestDownloader(t, nil)
	res := d.Fetch(context.Background(), types.Task{URL: server.URL, DestPath: dest}, nil)
	if !errors.Is(res.Err, types.ErrFilesystem) {
		t.Fatalf("expected filesystem error, got %v", res.Err)
	}
}

func TestFetchCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := newTestDownloader(t, nil)
	res := d.Fetch(ctx, types.Task{URL: server.URL, DestPath: filepath.Join(t.TempDir(), "c")}, nil)
	if !errors.Is(res.Err, types.ErrCancelled) {
		t.Fatalf("expected cancelled, got %v", res.Err)
	}
	if !errors.Is(res.Err, context.Canceled) {
		t.Error("cancelled error should wrap context.Canceled")
	}
}

func TestFetchCancelledMidBody(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1000")
		_, _ = w.Write(make([]byte, 10))
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()

	d := newTestDownloader(t, &types.RuntimeConfig{Timeout: 5 * time.Second})
	res := d.Fetch(ctx, types.Task{URL: server.URL, DestPath: filepath.Join(t.TempDir(), "m")}, nil)
	if !errors.Is(res.Err, types.ErrCancelled) {
		t.Fatalf("expected cancelled, got %v", res.Err)
	}
}
