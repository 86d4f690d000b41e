package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"syscall"
	"time"

	"github.com/Iron-Ham/ownership/internal/filelock"
	"github.com/Iron-Ham/ownership/internal/store/filestore"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously show live locks in the scope",
	Long: `Watch redraws the live locks of the scope until interrupted. With the file
backend the registry file is watched for changes; other backends are polled
every --interval.

Unlike list, watch never writes to the store: expired locks are hidden
but left for the next mutating command to sweep.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

var (
	watchInterval time.Duration
	watchOutput   string
)

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 2*time.Second, "refresh interval")
	watchCmd.Flags().StringVarP(&watchOutput, "output", "o", formatTable, "output format: table, json or yaml")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if watchInterval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", watchInterval)
	}

	ws, err := openWorkspace(cmd.Context())
	if err != nil {
		return err
	}
	defer ws.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var changes <-chan struct{}
	if fs, ok := ws.store.(*filestore.Store); ok {
		ch, closeWatch, err := watchRegistryFile(fs.Path(ws.scope))
		if err != nil {
			ws.logger.Warn("falling back to polling", "error", err.Error())
		} else {
			defer closeWatch()
			changes = ch
		}
	}

	load := func(ctx context.Context, now time.Time) ([]filelock.FileLock, error) {
		reg, err := ws.store.Load(ctx, ws.scope, filelock.NewRegistry(now))
		if err != nil {
			return nil, err
		}
		return reg.Live(now), nil
	}

	out := cmd.OutOrStdout()
	return watchLocks(ctx, out, load, watchInterval, changes, isTerminal(out))
}

// watchLocks renders the live locks at start, on every change signal and on
// every tick, until ctx is done. On a terminal each frame replaces the last;
// otherwise a frame is printed only when the lock set changed.
func watchLocks(ctx context.Context, w io.Writer, load func(context.Context, time.Time) ([]filelock.FileLock, error), interval time.Duration, changes <-chan struct{}, redraw bool) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last []filelock.FileLock
	first := true
	render := func() error {
		now := nowFunc()
		locks, err := load(ctx, now)
		if err != nil {
			return err
		}
		if !redraw && !first && slices.Equal(locks, last) {
			return nil
		}
		first, last = false, locks

		if redraw {
			fmt.Fprint(w, "\033[H\033[2J")
		}
		fmt.Fprintf(w, "%s  %d lock(s)\n", now.Local().Format(time.DateTime), len(locks))
		return renderLocks(w, locks, watchOutput, now)
	}

	if err := render(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-changes:
		}
		if err := render(); err != nil {
			return err
		}
	}
}

// watchRegistryFile signals whenever the registry file at path is written
// or replaced. The directory is watched since saves rename over the file.
func watchRegistryFile(path string) (<-chan struct{}, func(), error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create registry directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	ch := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Name != path || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return ch, func() {
		close(done)
		_ = watcher.Close()
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
