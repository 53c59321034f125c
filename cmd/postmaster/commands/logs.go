package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/marmos91/postmaster/cmd/postmaster/cmdutil"
	"github.com/marmos91/postmaster/pkg/config"
)

var (
	logsFollow bool
	logsLines  int
	logsSince  string
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show server logs",
	Long: `Display and optionally follow the postmaster server logs.

Reads the file named by logging.output. Servers logging to stdout or
stderr have no file to read.

Examples:
  # Show last 100 lines (default)
  postmaster logs

  # Follow logs in real-time
  postmaster logs -f -n 20

  # Show entries since a given time
  postmaster logs --since 2026-01-15T10:00:00Z`,
	RunE: runLogs,
}

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "Follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 100, "Number of lines to show")
	logsCmd.Flags().StringVar(&logsSince, "since", "", "Show entries since timestamp (RFC3339)")
}

func runLogs(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmdutil.Flags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := cfg.Logging.Output
	switch strings.ToLower(path) {
	case "stdout", "stderr":
		return fmt.Errorf("server logs to %s, not a file\nset logging.output to a file path to use this command", path)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("log file not found: %s", path)
	}

	var since time.Time
	if logsSince != "" {
		if since, err = time.Parse(time.RFC3339, logsSince); err != nil {
			return fmt.Errorf("invalid --since (use RFC3339): %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if err := tailFile(out, path, logsLines, since); err != nil {
		return err
	}
	if !logsFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Following %s (Ctrl+C to stop)...\n", path)
	return followFile(ctx, out, path)
}

// tailFile writes the last n lines of path logged at or after since.
func tailFile(w io.Writer, path string, n int, since time.Time) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !since.IsZero() {
			if ts := lineTime(line); !ts.IsZero() && ts.Before(since) {
				continue
			}
		}
		if n <= 0 {
			continue
		}
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read log file: %w", err)
	}

	for _, line := range ring {
		_, _ = fmt.Fprintln(w, line)
	}
	return nil
}

// followFile writes lines appended to path until ctx is done.
func followFile(ctx context.Context, w io.Writer, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("failed to watch log file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}
	reader := bufio.NewReader(f)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				copyLines(w, reader)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

// copyLines drains r into w.
func copyLines(w io.Writer, r *bufio.Reader) {
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if line != "" {
				_, _ = fmt.Fprint(w, line)
			}
			return
		}
		_, _ = fmt.Fprint(w, line)
	}
}

// lineTime reads the timestamp of a text ("[2006-01-02 15:04:05] ...") or
// JSON ({"time":"..."}) log line. Unknown layouts return the zero time.
func lineTime(line string) time.Time {
	if strings.HasPrefix(line, "[") && len(line) >= 21 {
		if t, err := time.ParseInLocation(time.DateTime, line[1:20], time.Local); err == nil {
			return t
		}
	}

	const key = `"time":"`
	if i := strings.Index(line, key); i >= 0 {
		rest := line[i+len(key):]
		if j := strings.IndexByte(rest, '"'); j > 0 {
			if t, err := time.Parse(time.RFC3339Nano, rest[:j]); err == nil {
				return t
			}
		}
	}
	return time.Time{}
}
