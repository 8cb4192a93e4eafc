package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/uniqtime/internal/schedule"
	"github.com/roach88/uniqtime/internal/watch"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run passes on a fixed interval until stopped",
		Long: `Start the uniqtime service.

A pass runs immediately and then every update interval. A tick that arrives
while a pass is still running is dropped. With --watch, changes under the
source directory trigger an extra pass after a short debounce.

On SIGINT or SIGTERM no new pass starts; the one in flight is allowed to
finish before the history is closed.

Example:
  uniqtime run --config ./uniqtime.yaml
  uniqtime run --source ./in --destination ./out --error ./err --interval 10 --watch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(opts, cmd)
		},
	}

	addSettingsFlags(cmd, opts)
	return cmd
}

func runService(opts *SettingsOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	cfg, logger, xerr := loadSettings(cmd, opts)
	if xerr != nil {
		return out.Fail(CodeConfig, xerr)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	eng, p, code, xerr := openPipeline(ctx, cfg, logger)
	if xerr != nil {
		return out.Fail(code, xerr)
	}
	defer closeEngine(eng, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	sched := schedule.New(p, cfg.Interval, schedule.WithLogger(logger))

	var w *watch.Watcher
	if cfg.Watch {
		var err error
		w, err = watch.New(cfg.SourceDir, sched,
			watch.WithDebounce(cfg.Debounce),
			watch.WithLogger(logger),
		)
		if err != nil {
			// Interval passes still cover the source
			logger.Warn("change notifications unavailable, continuing on interval only", "error", err)
			w = nil
		}
	}

	logger.Info("service starting",
		"source", cfg.SourceDir,
		"destination", cfg.DestinationDir,
		"error", cfg.ErrorDir,
		"interval", cfg.Interval,
		"engine", cfg.Engine.String(),
		"watch", w != nil,
	)
	sched.Start(ctx)
	if w != nil {
		w.Start(ctx)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "uniqtime started. Press Ctrl-C to stop.")

	<-ctx.Done()

	if w != nil {
		if err := w.Close(); err != nil {
			logger.Error("error closing watcher", "error", err)
		}
	}
	sched.Stop()
	sched.Wait()

	logger.Info("service stopped gracefully", "passes", sched.Fired(), "dropped", sched.Dropped())
	return nil
}
