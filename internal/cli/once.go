package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/uniqtime/internal/config"
	"github.com/roach88/uniqtime/internal/dedup"
	"github.com/roach88/uniqtime/internal/mover"
)

// NewOnceCommand creates the once command.
func NewOnceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single pass and exit",
		Long: `Run one pass over the source directory and print its report.

Exits 1 when any file could not be moved at all and is still in the source.

Example:
  uniqtime once --config ./uniqtime.yaml
  uniqtime once --source ./in --destination ./out --error ./err --engine memory`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(opts, cmd)
		},
	}

	addSettingsFlags(cmd, opts)
	return cmd
}

func runOnce(opts *SettingsOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	cfg, logger, xerr := loadSettings(cmd, opts)
	if xerr != nil {
		return out.Fail(CodeConfig, xerr)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, p, code, xerr := openPipeline(ctx, cfg, logger)
	if xerr != nil {
		return out.Fail(code, xerr)
	}
	defer closeEngine(eng, logger)

	report, _ := p.Run(ctx)
	if err := out.Success(report); err != nil {
		return err
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) left in source", report.Failed))
	}
	return nil
}

// openPipeline validates cfg, opens the engine and builds the pipeline.
// On failure it returns the JSON error code alongside the exit error.
func openPipeline(ctx context.Context, cfg config.Config, logger *slog.Logger) (dedup.Engine, *mover.Pipeline, string, *ExitError) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, CodeConfig, WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	logger.Debug("opening dedup engine", "engine", cfg.Engine.String(), "history", cfg.History, "db", cfg.Database)
	eng, err := dedup.Open(ctx, cfg.DedupOptions())
	if err != nil {
		return nil, nil, CodeDatabase, WrapExitError(ExitCommandError, "failed to open dedup engine", err)
	}

	p, err := mover.New(cfg.Dirs(), eng,
		mover.WithLogger(logger),
		mover.WithFields(cfg.Fields),
	)
	if err != nil {
		closeEngine(eng, logger)
		return nil, nil, CodeConfig, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return eng, p, "", nil
}

func closeEngine(eng dedup.Engine, logger *slog.Logger) {
	if err := eng.Close(); err != nil {
		logger.Error("error closing dedup engine", "error", err)
	}
}
