// Package config loads uniqtime settings from a YAML file, the environment
// and command-line flags, in increasing order of precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/uniqtime/internal/content"
	"github.com/roach88/uniqtime/internal/dedup"
	"github.com/roach88/uniqtime/internal/mover"
	"github.com/roach88/uniqtime/internal/watch"
)

//go:embed schema.cue
var schemaSource string

// Defaults applied by Resolve.
const (
	DefaultInterval = 30 * time.Second
	DefaultHistory  = 1000
	DefaultDatabase = "uniqtime.db"
	DefaultLogLevel = "info"

	// EnvPrefix prefixes every environment override, e.g. UNIQTIME_SOURCE_DIR.
	EnvPrefix = "UNIQTIME_"
)

// Raw holds settings as written, before defaults and parsing.
// Every value is a string so file, environment and flag sources merge uniformly.
type Raw struct {
	SourceDir      string    `yaml:"source_dir"`
	DestinationDir string    `yaml:"destination_dir"`
	ErrorDir       string    `yaml:"error_dir"`
	UpdateInterval string    `yaml:"update_interval_sec"`
	HistoryLength  string    `yaml:"history_length"`
	Uniqueifier    string    `yaml:"uniqueifier"`
	Database       string    `yaml:"database"`
	Watch          string    `yaml:"watch"`
	DebounceMS     string    `yaml:"debounce_ms"`
	LogLevel       string    `yaml:"log_level"`
	Fields         RawFields `yaml:"fields"`

	// baseDir is where relative defaults (the database) are placed.
	baseDir string
}

// RawFields holds the record field names as written.
type RawFields struct {
	SubjectElement     string `yaml:"subject_element"`
	SubjectAttribute   string `yaml:"subject_attribute"`
	TimestampElement   string `yaml:"timestamp_element"`
	TimestampAttribute string `yaml:"timestamp_attribute"`
}

// LoadError reports an unreadable or invalid configuration file.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads and validates the file at path.
// An empty path returns an empty Raw rooted in the working directory.
func Load(path string) (*Raw, error) {
	if path == "" {
		return &Raw{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return Parse(path, data)
}

// Parse validates data against the schema and decodes it.
// path is used in error positions and as the base for relative defaults.
func Parse(path string, data []byte) (*Raw, error) {
	raw := &Raw{baseDir: filepath.Dir(path)}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if len(node.Content) == 0 {
		return raw, nil
	}

	if err := validate(path, data); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if err := node.Decode(raw); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	return raw, nil
}

// validate checks data against #Config in schema.cue.
func validate(path string, data []byte) error {
	file, err := cueyaml.Extract(path, data)
	if err != nil {
		return err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	doc := ctx.BuildFile(file)
	if err := doc.Err(); err != nil {
		return errors.New(cueerrors.Details(err, nil))
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(doc)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return errors.New(strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// settings maps each key to its field for env and flag overrides.
func (r *Raw) settings() map[string]*string {
	return map[string]*string{
		"source_dir":          &r.SourceDir,
		"destination_dir":     &r.DestinationDir,
		"error_dir":           &r.ErrorDir,
		"update_interval_sec": &r.UpdateInterval,
		"history_length":      &r.HistoryLength,
		"uniqueifier":         &r.Uniqueifier,
		"database":            &r.Database,
		"watch":               &r.Watch,
		"debounce_ms":         &r.DebounceMS,
		"log_level":           &r.LogLevel,
		"subject_element":     &r.Fields.SubjectElement,
		"subject_attribute":   &r.Fields.SubjectAttribute,
		"timestamp_element":   &r.Fields.TimestampElement,
		"timestamp_attribute": &r.Fields.TimestampAttribute,
	}
}

// Keys returns every settable key, sorted.
func Keys() []string {
	var r Raw
	keys := make([]string, 0, len(r.settings()))
	for k := range r.settings() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set overrides one key.
func (r *Raw) Set(key, value string) error {
	p, ok := r.settings()[key]
	if !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	*p = value
	return nil
}

// ApplyEnv overrides keys from UNIQTIME_<KEY> variables found by lookup.
// Pass os.LookupEnv in production.
func (r *Raw) ApplyEnv(lookup func(string) (string, bool)) {
	for key, p := range r.settings() {
		if v, ok := lookup(EnvPrefix + strings.ToUpper(key)); ok {
			*p = v
		}
	}
}

// Config is the effective configuration.
type Config struct {
	SourceDir      string
	DestinationDir string
	ErrorDir       string
	Interval       time.Duration
	History        int
	Engine         dedup.Variant
	Database       string
	Watch          bool
	Debounce       time.Duration
	LogLevel       slog.Level
	Fields         content.Fields
}

// Resolve applies defaults. Every fallback from an unusable value is logged
// at info on logger.
func (r *Raw) Resolve(logger *slog.Logger) Config {
	if logger == nil {
		logger = slog.Default()
	}
	fallback := func(key, value string, def any) {
		logger.Info("config value not valid, using default", "key", key, "value", value, "default", def)
	}

	cfg := Config{
		SourceDir:      r.SourceDir,
		DestinationDir: r.DestinationDir,
		ErrorDir:       r.ErrorDir,
		Database:       r.Database,
	}

	if n, err := strconv.Atoi(strings.TrimSpace(r.UpdateInterval)); err == nil && n >= 1 {
		cfg.Interval = time.Duration(n) * time.Second
	} else {
		cfg.Interval = DefaultInterval
		fallback("update_interval_sec", r.UpdateInterval, DefaultInterval)
	}

	if n, err := strconv.Atoi(strings.TrimSpace(r.HistoryLength)); err == nil {
		cfg.History = n
	} else {
		cfg.History = DefaultHistory
		fallback("history_length", r.HistoryLength, DefaultHistory)
	}

	v, ok := dedup.ParseVariant(r.Uniqueifier)
	if !ok {
		fallback("uniqueifier", r.Uniqueifier, v.String())
	}
	cfg.Engine = v

	if cfg.Database == "" {
		base := r.baseDir
		if base == "" {
			base = "."
		}
		cfg.Database = filepath.Join(base, DefaultDatabase)
	}

	if r.Watch != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(r.Watch))
		if err != nil {
			fallback("watch", r.Watch, false)
		}
		cfg.Watch = b
	}

	cfg.Debounce = watch.DefaultDebounce
	if r.DebounceMS != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(r.DebounceMS)); err == nil && n > 0 {
			cfg.Debounce = time.Duration(n) * time.Millisecond
		} else {
			fallback("debounce_ms", r.DebounceMS, watch.DefaultDebounce)
		}
	}

	cfg.LogLevel = slog.LevelInfo
	if r.LogLevel != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.TrimSpace(r.LogLevel))); err != nil {
			cfg.LogLevel = slog.LevelInfo
			fallback("log_level", r.LogLevel, DefaultLogLevel)
		}
	}

	cfg.Fields = content.DefaultFields()
	for _, f := range []struct {
		raw string
		dst *string
	}{
		{r.Fields.SubjectElement, &cfg.Fields.SubjectElement},
		{r.Fields.SubjectAttribute, &cfg.Fields.SubjectAttribute},
		{r.Fields.TimestampElement, &cfg.Fields.TimestampElement},
		{r.Fields.TimestampAttribute, &cfg.Fields.TimestampAttribute},
	} {
		if s := strings.TrimSpace(f.raw); s != "" {
			*f.dst = s
		}
	}

	return cfg
}

// Validate checks that the three directories are set.
// Existence is checked by mover.New.
func (c Config) Validate() error {
	for _, d := range []struct {
		field, value string
	}{
		{"source", c.SourceDir},
		{"destination", c.DestinationDir},
		{"error", c.ErrorDir},
	} {
		if strings.TrimSpace(d.value) == "" {
			return &mover.ConfigurationError{Field: d.field, Err: errors.New("must be set")}
		}
	}
	return nil
}

// Dirs returns the pipeline directories.
func (c Config) Dirs() mover.Dirs {
	return mover.Dirs{
		Source:      c.SourceDir,
		Destination: c.DestinationDir,
		Error:       c.ErrorDir,
	}
}

// DedupOptions returns the engine options for dedup.Open.
func (c Config) DedupOptions() dedup.Options {
	return dedup.Options{
		Variant:  c.Engine,
		History:  c.History,
		Database: c.Database,
	}
}
