package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/uniqtime/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Subject  string
	Date     string
	Limit    int
}

// historyEntry is one assignment as printed by the history command.
type historyEntry struct {
	Timestamp string    `json:"timestamp"`
	Subject   string    `json:"subject"`
	Created   time.Time `json:"created"`
}

// historyView is the history command's payload.
type historyView struct {
	Database    string         `json:"database"`
	Assignments []historyEntry `json:"assignments"`
}

// String renders one line per assignment, oldest first.
func (v historyView) String() string {
	if len(v.Assignments) == 0 {
		return "no assignments"
	}
	var b strings.Builder
	for i, a := range v.Assignments {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s  %s  %s", a.Timestamp, a.Subject, a.Created.Format(time.RFC3339Nano))
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List assignments held in a durable history",
		Long: `List the (timestamp, subject) assignments a durable engine has persisted,
oldest first. Nothing is inserted or evicted.

Example:
  uniqtime history --db ./uniqtime.db
  uniqtime history --db ./uniqtime.db --subject P001 --date 2016-01-01 --limit 20`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite history database (required)")
	cmd.Flags().StringVar(&opts.Subject, "subject", "", "only assignments for this subject")
	cmd.Flags().StringVar(&opts.Date, "date", "", "only timestamps starting with this prefix")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum assignments to list (0 = all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func showHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	// store.Open would create a missing database
	if _, err := os.Stat(opts.Database); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return out.Fail(CodeDatabase, NewExitError(ExitCommandError, "database not found: "+opts.Database))
		}
		return out.Fail(CodeDatabase, WrapExitError(ExitCommandError, "failed to open database", err))
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return out.Fail(CodeDatabase, WrapExitError(ExitCommandError, "failed to open database", err))
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	records, err := st.List(ctx, store.Filter{
		Subject:    opts.Subject,
		DatePrefix: opts.Date,
		Limit:      opts.Limit,
	})
	if err != nil {
		return out.Fail(CodeDatabase, WrapExitError(ExitFailure, "failed to list assignments", err))
	}

	view := historyView{Database: opts.Database, Assignments: make([]historyEntry, 0, len(records))}
	for _, r := range records {
		view.Assignments = append(view.Assignments, historyEntry{
			Timestamp: r.EventDate,
			Subject:   r.Subject,
			Created:   r.Created,
		})
	}
	out.VerboseLog("listed %d assignment(s) from %s", len(view.Assignments), opts.Database)
	return out.Success(view)
}
