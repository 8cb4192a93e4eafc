package cli

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// settingsView is the effective configuration as ordered key/value pairs.
type settingsView []setting

type setting struct {
	Key   string
	Value string
}

// String renders one "key: value" line per setting.
func (v settingsView) String() string {
	var b strings.Builder
	for i, s := range v {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Key)
		b.WriteString(": ")
		b.WriteString(s.Value)
	}
	return b.String()
}

// MarshalJSON renders the settings as a flat object.
func (v settingsView) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(v))
	for _, s := range v {
		m[s.Key] = s.Value
	}
	return json.Marshal(m)
}

// NewConfigCommand creates the config command.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SettingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration a run would use after applying the file,
UNIQTIME_* environment variables, and flags. Fallbacks from unusable values
are logged to stderr.

Example:
  uniqtime config --config ./uniqtime.yaml
  uniqtime config --engine memory --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(opts, cmd)
		},
	}

	addSettingsFlags(cmd, opts)
	return cmd
}

func showConfig(opts *SettingsOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	cfg, _, xerr := loadSettings(cmd, opts)
	if xerr != nil {
		return out.Fail(CodeConfig, xerr)
	}
	return out.Success(describe(cfg))
}

func itoa(n int) string { return strconv.Itoa(n) }

func boolString(b bool) string { return strconv.FormatBool(b) }
