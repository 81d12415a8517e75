package cli

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/regress/internal/corpus"
	"github.com/roach88/regress/internal/harness"
	"github.com/roach88/regress/internal/logger"
)

// defaultDebounce is how long the corpus must be quiet before a rerun.
const defaultDebounce = 200 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	RunOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RunOptions: RunOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Rerun the corpus whenever test or golden files change",
		Long: `Run the corpus once, then again each time a file in the input or
expected directory changes. Stops on interrupt.

Examples:
  regress watch
  regress watch --match "join_*" --session shared`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchCorpus(cmd, opts)
		},
	}

	addRunFlags(cmd, &opts.RunOptions)
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", defaultDebounce, "quiet period before rerunning")

	return cmd
}

func watchCorpus(cmd *cobra.Command, opts *WatchOptions) error {
	formatter := newFormatter(cmd, opts.RootOptions)
	log := logger.New(cmd.ErrOrStderr(), opts.Verbose)

	cfg, err := opts.loadConfig(cmd)
	if err != nil {
		return formatter.Fail(ErrCodeConfig, "invalid configuration", err)
	}

	runner, closeFn, err := runnerSetup(cfg, corpus.Filter{}, false, cmd.OutOrStdout(), log)
	if err != nil {
		return formatter.Fail(ErrCodeHistory, "failed to open history", err)
	}
	defer closeFn()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start watcher", err)
	}
	defer watcher.Close()

	for _, dir := range []string{cfg.Input, cfg.Expected} {
		if err := watcher.Add(dir); err != nil {
			return formatter.Fail(ErrCodeNotFound, "failed to watch "+dir, err)
		}
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runOnce := func(ctx context.Context) {
		summary, err := runner.Run(ctx)
		if err != nil {
			if harness.IsReportIOError(err) {
				log.Error("diff artifact unwritable, later runs will abort too", "error", err)
			}
			reportRunError(formatter, summary, err)
			return
		}
		reportSummary(cmd, formatter, summary)
	}

	return watch(ctx, watcher, opts.Debounce, runOnce, log)
}

// watch calls run once, then again after every burst of file events that is
// followed by a quiet period of debounce. Returns nil when ctx is done.
func watch(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration, run func(context.Context), log *slog.Logger) error {
	g, ctx := errgroup.WithContext(ctx)
	trigger := make(chan struct{}, 1)

	g.Go(func() error {
		return debounceEvents(ctx, w, debounce, trigger, log)
	})

	g.Go(func() error {
		run(ctx)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-trigger:
				log.Info("corpus changed, rerunning")
				run(ctx)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// debounceEvents forwards at most one pending trigger per quiet period.
func debounceEvents(ctx context.Context, w *fsnotify.Watcher, debounce time.Duration, trigger chan<- struct{}, log *slog.Logger) error {
	const relevant = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&relevant == 0 {
				continue
			}
			log.Debug("file changed", "path", ev.Name, "op", ev.Op.String())
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", "error", err)

		case <-fire:
			fire = nil
			select {
			case trigger <- struct{}{}:
			default:
			}
		}
	}
}
