package cli

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/uniqtime/internal/config"
)

// SettingsOptions holds the flags shared by commands that need a configuration.
type SettingsOptions struct {
	*RootOptions
	ConfigPath string

	// LookupEnv reads environment overrides. If nil, defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// override binds a flag to a config key. Flags only apply when set.
type override struct {
	flag  string
	key   string
	usage string
}

var overrides = []override{
	{"source", "source_dir", "directory to read records from"},
	{"destination", "destination_dir", "directory to write records to"},
	{"error", "error_dir", "directory for files that cannot be placed"},
	{"interval", "update_interval_sec", "seconds between passes"},
	{"history", "history_length", "assignments to remember (0 or less is unbounded)"},
	{"engine", "uniqueifier", "dedup engine (db|memory)"},
	{"db", "database", "path to the SQLite history database"},
	{"watch", "watch", "also run a pass when the source directory changes"},
	{"debounce", "debounce_ms", "milliseconds to coalesce change notifications"},
	{"log-level", "log_level", "log level (debug|info|warn|error)"},
}

// addSettingsFlags registers --config and the override flags on cmd.
func addSettingsFlags(cmd *cobra.Command, opts *SettingsOptions) {
	cmd.Flags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to YAML configuration file")
	for _, o := range overrides {
		cmd.Flags().String(o.flag, "", o.usage)
	}
	cmd.Flags().Lookup("watch").NoOptDefVal = "true"
}

// loadSettings builds the effective configuration: file, then environment,
// then flags. It returns the configuration and a logger at its level.
func loadSettings(cmd *cobra.Command, opts *SettingsOptions) (config.Config, *slog.Logger, *ExitError) {
	boot := newLogger(cmd.ErrOrStderr(), bootLevel(opts.Verbose))

	raw, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, boot, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	raw.ApplyEnv(lookup)

	for _, o := range overrides {
		f := cmd.Flags().Lookup(o.flag)
		if f == nil || !f.Changed {
			continue
		}
		if err := raw.Set(o.key, f.Value.String()); err != nil {
			return config.Config{}, boot, WrapExitError(ExitCommandError, "invalid flag --"+o.flag, err)
		}
	}

	cfg := raw.Resolve(boot)

	level := cfg.LogLevel
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(cmd.ErrOrStderr(), level)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func bootLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// describe renders cfg as ordered key/value pairs.
func describe(cfg config.Config) settingsView {
	return settingsView{
		{"source_dir", cfg.SourceDir},
		{"destination_dir", cfg.DestinationDir},
		{"error_dir", cfg.ErrorDir},
		{"update_interval", cfg.Interval.String()},
		{"history_length", itoa(cfg.History)},
		{"uniqueifier", cfg.Engine.String()},
		{"database", cfg.Database},
		{"watch", boolString(cfg.Watch)},
		{"debounce", cfg.Debounce.String()},
		{"log_level", strings.ToLower(cfg.LogLevel.String())},
		{"subject", cfg.Fields.SubjectPath()},
		{"timestamp", cfg.Fields.TimestampPath()},
	}
}
