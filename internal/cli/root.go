package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"multi_downloader/internal/clipboard"
	"multi_downloader/internal/config"
	"multi_downloader/internal/download"
	"multi_downloader/internal/download/types"
	"multi_downloader/internal/logging"
	"multi_downloader/internal/progress"
	"multi_downloader/internal/state"
)

// Version information - set via ldflags during build.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Process exit codes.
const (
	exitOK      = 0
	exitFatal   = 1
	exitUsage   = 2
	exitPartial = 3
)

// exitError carries the process exit code out of a cobra RunE.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: exitUsage, err: err} }
func fatalError(err error) error { return &exitError{code: exitFatal, err: err} }

func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitFatal
}

// NewRootCmd builds the multidl command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multidl [url]...",
		Short: "Download many files over HTTP concurrently",
		Long: `multidl downloads a list of URLs in parallel into <output>/<type>/,
retrying each failed transfer a fixed number of times.

URLs come from the arguments, a batch file, the clipboard, or an
interactive prompt when none of those are given.`,
		Version:       Version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runDownloads,
	}

	cmd.PersistentFlags().String("config", "", "Path to a config file (default: config.yaml in the app dir or working dir)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	f := cmd.Flags()
	f.StringP("type", "t", "", "File type label; files are saved under <output>/<type>/")
	f.StringP("output", "o", "", "Output root directory (default: downloads)")
	f.IntP("retries", "r", 0, "Maximum attempts per URL (default: 3)")
	f.Duration("delay", 0, "Pause between attempts, e.g. 2s (0 disables the pause)")
	f.IntP("workers", "w", 0, "Maximum parallel downloads (default: one per URL)")
	f.Duration("timeout", 0, "Connect and idle-read timeout per attempt (default: 10s)")
	f.Int("chunk-size", 0, "Read size in bytes (default: 1024)")
	f.StringP("batch", "b", "", "File containing URLs to download (one per line)")
	f.Bool("clipboard", false, "Read URLs from clipboard")
	f.String("protocol", "", "HTTP protocol: auto, http1, http2 or http3")
	f.String("log-file", "", "Log file path (default: download_log.txt)")
	f.Bool("no-progress", false, "Disable progress display")
	f.Bool("no-history", false, "Do not record this run in history")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return usageError(err)
	})
	cmd.SetVersionTemplate("multidl v{{.Version}}\n")

	cmd.AddCommand(newHistoryCmd())
	return cmd
}

// Execute runs the root command and exits with its status code.
func Execute() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	code := exitCode(err)
	var ee *exitError
	if err != nil && (!errors.As(err, &ee) || ee.err != nil) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return code
}

// loadSettings reads config and applies explicitly set flags on top.
func loadSettings(cmd *cobra.Command) (*config.Settings, error) {
	path, _ := cmd.Flags().GetString("config")
	settings, err := config.LoadSettings(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, settings)
	return settings, nil
}

func applyFlags(cmd *cobra.Command, s *config.Settings) {
	f := cmd.Flags()
	if f.Changed("type") {
		s.Download.FileType, _ = f.GetString("type")
	}
	if f.Changed("output") {
		s.Download.OutputRoot, _ = f.GetString("output")
	}
	if f.Changed("retries") {
		s.Download.MaxAttempts, _ = f.GetInt("retries")
	}
	if f.Changed("delay") {
		s.Download.RetryDelay, _ = f.GetDuration("delay")
	}
	if f.Changed("workers") {
		s.Download.Workers, _ = f.GetInt("workers")
	}
	if f.Changed("timeout") {
		s.Network.Timeout, _ = f.GetDuration("timeout")
	}
	if f.Changed("chunk-size") {
		s.Download.ChunkSize, _ = f.GetInt("chunk-size")
	}
	if f.Changed("protocol") {
		s.Network.Protocol, _ = f.GetString("protocol")
	}
	if f.Changed("log-file") {
		s.Logging.File, _ = f.GetString("log-file")
	}
	if noProgress, _ := f.GetBool("no-progress"); noProgress {
		s.Download.Progress = false
	}
	if noHistory, _ := f.GetBool("no-history"); noHistory {
		s.History.Enabled = false
	}
	if verbose, _ := f.GetBool("verbose"); verbose {
		s.Logging.ConsoleLevel = "DEBUG"
		s.Logging.Level = "DEBUG"
	}
	s.Download.FileType = strings.ToLower(strings.TrimSpace(s.Download.FileType))
	s.Network.Protocol = strings.ToLower(strings.TrimSpace(s.Network.Protocol))
}

// collectURLs gathers URLs from args, the batch file and the clipboard.
func collectURLs(cmd *cobra.Command, args []string) ([]string, error) {
	var urls []string
	urls = append(urls, args...)

	if batchFile, _ := cmd.Flags().GetString("batch"); batchFile != "" {
		fileURLs, err := readURLsFromFile(batchFile)
		if err != nil {
			return nil, usageError(fmt.Errorf("reading batch file: %w", err))
		}
		urls = append(urls, fileURLs...)
	}

	if useClipboard, _ := cmd.Flags().GetBool("clipboard"); useClipboard {
		clipURLs, err := clipboard.ReadURLs()
		if err != nil {
			return nil, fatalError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "URLs from clipboard: %d\n", len(clipURLs))
		urls = append(urls, clipURLs...)
	}
	return urls, nil
}

func runDownloads(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings(cmd)
	if err != nil {
		return fatalError(err)
	}

	urls, err := collectURLs(cmd, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(urls) == 0 {
		p := newPrompter(cmd.InOrStdin(), out)
		fmt.Fprintln(out, "Multi-file downloader")
		if settings.Download.FileType == "" {
			settings.Download.FileType = p.FileType()
		}
		urls = p.URLs()
		if len(urls) == 0 {
			fmt.Fprintln(out, "No URLs entered. Exiting.")
			return nil
		}
	}

	if err := settings.Validate(); err != nil {
		return usageError(err)
	}

	sd := &shutdown{}
	defer func() { _ = sd.run() }()

	console := logging.NewSyncWriter(cmd.ErrOrStderr())
	var consoleSink *logging.SyncWriter
	if settings.Logging.Console {
		consoleSink = console
	}
	logger, err := logging.New(logging.Options{
		File:         settings.Logging.File,
		Level:        logging.ParseLevel(settings.Logging.Level),
		Console:      consoleSink,
		ConsoleLevel: logging.ParseLevel(settings.Logging.ConsoleLevel),
	})
	if err != nil {
		return fatalError(err)
	}
	sd.add(logger.Close)

	// Signal handler for graceful shutdown: in-flight attempts stop at the next chunk.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Warn("Received signal, stopping downloads", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	var reporter progress.Reporter = progress.Nop{}
	if settings.Download.Progress {
		live, width := false, 0
		if f, ok := cmd.ErrOrStderr().(*os.File); ok {
			live, width = progress.DetectTerminal(f)
		}
		renderer := progress.NewRenderer(progress.Options{
			Output:    console,
			Live:      live,
			TermWidth: width,
			Logger:    logger.Logger,
		})
		renderer.Start()
		sd.add(func() error { renderer.Stop(); return nil })
		reporter = renderer
	}

	var recorder download.Recorder
	if settings.History.Enabled {
		store, err := state.Open(settings.History.Path, logger.Logger)
		if err != nil {
			logger.Warn("Run history disabled", "path", settings.History.Path, "error", err)
		} else {
			sd.add(store.Close)
			recorder = store
		}
	}

	mgr := download.NewManager(download.Config{
		OutputRoot: settings.Download.OutputRoot,
		FileType:   settings.Download.FileType,
		Runtime:    types.ConvertRuntimeConfig(settings),
		Reporter:   reporter,
		History:    recorder,
		Logger:     logger.Logger,
	})
	sd.add(func() error { mgr.Close(); return nil })

	summary, err := mgr.RunAll(ctx, urls)
	// Stop the display before printing the summary.
	_ = sd.run()
	if err != nil {
		return fatalError(err)
	}

	printSummary(out, summary)
	if summary.Failed > 0 {
		return &exitError{code: exitPartial}
	}
	return nil
}

func printSummary(w io.Writer, s *types.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tATTEMPTS\tSIZE\tDETAIL")
	for _, o := range s.Outcomes {
		detail := o.ContentType
		if !o.Succeeded() && o.LastErr != nil {
			detail = o.LastErr.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			o.Task.Name(), o.Status, o.Attempts, humanize.Bytes(uint64(o.BytesWritten)), detail)
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d succeeded, %d failed in %s\n", s.Succeeded, s.Failed, s.Elapsed.Round(time.Millisecond))
}
