package multidl

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"multi_downloader/internal/config"
)

func testSettings(t *testing.T) *Settings {
	t.Helper()
	s := config.DefaultSettings()
	s.Download.OutputRoot = filepath.Join(t.TempDir(), "downloads")
	s.Download.RetryDelay = 0
	s.Download.MaxAttempts = 2
	s.History.Path = filepath.Join(t.TempDir(), "history.db")
	s.Network.Timeout = 5 * time.Second
	return s
}

func TestClientDownloadAndHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad.pdf" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("%PDF-1.4 test"))
	}))
	defer server.Close()

	var events atomic.Int32
	settings := testSettings(t)
	c, err := NewClient(&ClientOptions{
		Settings:   settings,
		OnProgress: func(ProgressEvent) { events.Add(1) },
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Shutdown()

	summary, err := c.Download(context.Background(), []string{server.URL + "/good.pdf", server.URL + "/bad.pdf"}, &DownloadOptions{FileType: "PDF"})
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if summary.Succeeded != 1 || summary.Failed != 1 {
		t.Errorf("summary = %d/%d", summary.Succeeded, summary.Failed)
	}
	if !errors.Is(summary.Outcomes[1].LastErr, ErrHTTPStatus) {
		t.Errorf("bad.pdf error = %v", summary.Outcomes[1].LastErr)
	}
	if _, err := os.Stat(filepath.Join(settings.Download.OutputRoot, "pdf", "good.pdf")); err != nil {
		t.Errorf("good.pdf missing: %v", err)
	}
	if events.Load() == 0 {
		t.Error("expected progress callbacks")
	}

	runs, err := c.History(context.Background(), 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != summary.RunID || runs[0].FileType != "pdf" {
		t.Errorf("runs = %+v", runs)
	}
	tasks, err := c.RunTasks(context.Background(), summary.RunID)
	if err != nil || len(tasks) != 2 {
		t.Errorf("RunTasks = %v, %v", tasks, err)
	}
}

func TestClientRequiresFileType(t *testing.T) {
	c, err := NewClient(&ClientOptions{Settings: testSettings(t), DisableHistory: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Download(context.Background(), []string{"http://x/a"}, nil); err == nil {
		t.Error("expected validation error without a file type")
	}
	if _, err := c.History(context.Background(), 1); err == nil {
		t.Error("History should fail when disabled")
	}
	if err := c.Shutdown(); err != nil {
		t.Error(err)
	}
	if err := c.Shutdown(); err != nil {
		t.Error("Shutdown must be idempotent")
	}
}

func TestNilClient(t *testing.T) {
	var c *Client
	if _, err := c.Download(context.Background(), nil, nil); !errors.Is(err, errNotInitialized) {
		t.Errorf("err = %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Error(err)
	}
}
