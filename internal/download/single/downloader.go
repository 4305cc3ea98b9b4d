package single

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/vfaronov/httpheader"

	"multi_downloader/internal/download/types"
	"multi_downloader/internal/logging"
	"multi_downloader/internal/utils"
)

// errStalled is the cancel cause used when no bytes arrive within the timeout.
var errStalled = errors.New("no data received within timeout")

// SingleDownloader performs one streamed GET per attempt and writes the body
// to the task's destination, truncating any previous content.
type SingleDownloader struct {
	Runtime *types.RuntimeConfig
	logger  *slog.Logger
	clients *clientSet
	bufPool sync.Pool
}

// NewSingleDownloader builds a downloader whose transport follows runtime.
// Close releases idle connections when the downloader is no longer needed.
func NewSingleDownloader(runtime *types.RuntimeConfig, logger *slog.Logger) *SingleDownloader {
	if runtime == nil {
		runtime = &types.RuntimeConfig{}
	}
	logger = logging.OrDiscard(logger)

	d := &SingleDownloader{
		Runtime: runtime,
		logger:  logger,
		clients: newClientSet(runtime, logger),
	}
	d.bufPool = sync.Pool{
		New: func() any {
			buf := make([]byte, runtime.GetChunkSize())
			return &buf
		},
	}
	logger.Debug("Transport selected", "protocol", d.clients.name)
	return d
}

// Close releases pooled connections.
func (d *SingleDownloader) Close() {
	d.clients.Close()
}

// Fetch runs one attempt for task. emit may be nil.
func (d *SingleDownloader) Fetch(ctx context.Context, task types.Task, emit func(types.ProgressEvent)) (result types.AttemptResult) {
	if err := ctx.Err(); err != nil {
		result.Err = types.NewFetchError(types.KindCancelled, "", err)
		return result
	}

	timeout := d.Runtime.GetTimeout()
	attemptCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	// The watchdog covers connect and headers, then is re-armed before each read.
	watchdog := time.AfterFunc(timeout, func() { cancel(errStalled) })
	defer watchdog.Stop()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, task.URL, nil)
	if err != nil {
		result.Err = types.NewFetchError(types.KindTransport, "invalid request", err)
		return result
	}
	req.Header.Set("User-Agent", d.Runtime.GetUserAgent())

	resp, err := d.clients.client.Do(req)
	if err != nil {
		result.Err = classify(ctx, attemptCtx, err)
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Err = types.StatusError(resp.StatusCode, http.StatusText(resp.StatusCode))
		return result
	}

	if mtype, _ := httpheader.ContentType(resp.Header); mtype != "" {
		result.ContentType = mtype
	}
	total := resp.ContentLength
	if total < 0 {
		total = 0
	}

	out, err := os.OpenFile(task.DestPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		result.Err = types.NewFetchError(types.KindFilesystem, "", err)
		return result
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && result.Err == nil {
			result.Err = types.NewFetchError(types.KindFilesystem, "", cerr)
		}
	}()

	bufPtr := d.bufPool.Get().(*[]byte)
	defer d.bufPool.Put(bufPtr)
	buf := *bufPtr

	sniff := make([]byte, 0, utils.SniffLen)
	var written int64

	for {
		// Cancellation is honoured between chunks.
		if err := ctx.Err(); err != nil {
			result.BytesWritten = written
			result.Err = types.NewFetchError(types.KindCancelled, "", err)
			return result
		}

		watchdog.Reset(timeout)
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				result.BytesWritten = written
				result.Err = types.NewFetchError(types.KindFilesystem, "", werr)
				return result
			}
			written += int64(n)
			if room := utils.SniffLen - len(sniff); room > 0 {
				sniff = append(sniff, buf[:min(n, room)]...)
			}
			if emit != nil {
				emit(types.ProgressEvent{
					TaskID:        task.ID,
					Name:          task.Name(),
					BytesReceived: written,
					TotalBytes:    total,
				})
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			result.BytesWritten = written
			result.Err = classify(ctx, attemptCtx, rerr)
			return result
		}
	}

	result.BytesWritten = written
	if total > 0 && written != total {
		result.Err = types.NewFetchError(types.KindTransport,
			fmt.Sprintf("incomplete body: got %d of %d bytes", written, total), io.ErrUnexpectedEOF)
		return result
	}

	result.DetectedType, _ = utils.SniffType(sniff)
	return result
}

// classify maps a request or read error onto an ErrorKind.
func classify(parent, attemptCtx context.Context, err error) error {
	if errors.Is(context.Cause(attemptCtx), errStalled) {
		return types.NewFetchError(types.KindTimeout, errStalled.Error(), err)
	}
	if parent.Err() != nil {
		return types.NewFetchError(types.KindCancelled, "", parent.Err())
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return types.NewFetchError(types.KindTimeout, "", err)
	}
	return types.NewFetchError(types.KindTransport, "", err)
}
