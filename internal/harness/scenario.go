package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/uniqtime/internal/dedup"
	"github.com/roach88/uniqtime/internal/mover"
)

// DefaultHistory is the engine capacity used when a scenario sets none.
const DefaultHistory = 1000

// Scenario defines a pipeline scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Engine selects the dedup engine: "memory" (default) or "durable".
	Engine string `yaml:"engine,omitempty"`

	// History is the engine capacity. Nil means DefaultHistory.
	History *int `yaml:"history,omitempty"`

	// Passes run in order against the same tree and engine.
	Passes []PassStep `yaml:"passes"`

	// Assertions validate the final tree and history.
	Assertions []Assertion `yaml:"assertions"`
}

// PassStep seeds files and then runs one pass.
type PassStep struct {
	// Files are written into the source directory before the pass.
	Files []FileStep `yaml:"files,omitempty"`

	// Busy lists source-relative paths reported as locked during this pass.
	Busy []string `yaml:"busy,omitempty"`

	// Restart closes and reopens the engine before the pass.
	Restart bool `yaml:"restart,omitempty"`

	// Expect maps outcome kinds to their exact count for this pass.
	// Kinds not listed are not checked.
	Expect map[string]int `yaml:"expect,omitempty"`
}

// FileStep is one file to place in the source directory.
// Either Content or Subject and Date are set.
type FileStep struct {
	// Name is the path relative to the source directory.
	Name string `yaml:"name"`

	// Content is written verbatim.
	Content string `yaml:"content,omitempty"`

	// Subject and Date build a minimal record with the default fields.
	Subject string `yaml:"subject,omitempty"`
	Date    string `yaml:"date,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "destination": File exists in the destination, optionally with Timestamp
	// - "quarantined": Count quarantined copies of File exist in the error directory
	// - "remaining": Count files are left in the source
	// - "history": the engine holds Count live assignments
	Type string `yaml:"type"`

	// File is a base name (used by destination and quarantined).
	File string `yaml:"file,omitempty"`

	// Timestamp is the expected timestamp attribute (used by destination).
	Timestamp string `yaml:"timestamp,omitempty"`

	// Count is the expected number (used by quarantined, remaining and history).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertDestination = "destination"
	AssertQuarantined = "quarantined"
	AssertRemaining   = "remaining"
	AssertHistory     = "history"
)

var (
	assertionTypes = []string{AssertDestination, AssertQuarantined, AssertRemaining, AssertHistory}
	outcomeKinds   = []string{
		string(mover.KindPatched),
		string(mover.KindPassthrough),
		string(mover.KindQuarantined),
		string(mover.KindSkipped),
		string(mover.KindFailed),
	}
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// FindScenarios returns the .yaml and .yml files under dir, sorted.
// A non-empty filter is a glob matched against the file name without extension.
func FindScenarios(dir, filter string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})
	return files, err
}

// history returns the configured capacity.
func (s *Scenario) history() int {
	if s.History == nil {
		return DefaultHistory
	}
	return *s.History
}

// variant returns the engine variant. Call after validateScenario.
func (s *Scenario) variant() dedup.Variant {
	if s.Engine == "" {
		return dedup.VariantMemory
	}
	v, _ := dedup.ParseVariant(s.Engine)
	return v
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Engine != "" {
		if _, ok := dedup.ParseVariant(s.Engine); !ok {
			return fmt.Errorf("engine %q: must be memory or durable", s.Engine)
		}
	}

	if len(s.Passes) == 0 {
		return fmt.Errorf("passes list is required and must be non-empty")
	}

	for i, p := range s.Passes {
		for j, f := range p.Files {
			if err := validateFile(f); err != nil {
				return fmt.Errorf("passes[%d].files[%d]: %w", i, j, err)
			}
		}
		for kind := range p.Expect {
			if !slices.Contains(outcomeKinds, kind) {
				return fmt.Errorf("passes[%d].expect: unknown kind %q", i, kind)
			}
		}
	}

	for i, a := range s.Assertions {
		if !slices.Contains(assertionTypes, a.Type) {
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
		if (a.Type == AssertDestination || a.Type == AssertQuarantined) && a.File == "" {
			return fmt.Errorf("assertions[%d]: %s requires file", i, a.Type)
		}
	}

	return nil
}

func validateFile(f FileStep) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if filepath.IsAbs(f.Name) || strings.HasPrefix(filepath.Clean(f.Name), "..") {
		return fmt.Errorf("name %q must stay inside the source directory", f.Name)
	}
	record := f.Subject != "" || f.Date != ""
	if record && f.Content != "" {
		return fmt.Errorf("%s: content and subject/date are exclusive", f.Name)
	}
	if record && (f.Subject == "" || f.Date == "") {
		return fmt.Errorf("%s: subject and date go together", f.Name)
	}
	return nil
}
