package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/uniqtime/internal/content"
	"github.com/roach88/uniqtime/internal/dedup"
	"github.com/roach88/uniqtime/internal/mover"
	"github.com/roach88/uniqtime/internal/testutil"
)

// PassID is the fixed pass id every scenario pass reports.
const PassID = "scenario-pass"

const recordTemplate = `<?xml version="1.0" encoding="utf-8"?>
<Record>
  <Patient PatientCode="%s" />
  <Event EventDate="%s" />
</Record>
`

// Record renders the minimal record a FileStep with Subject and Date produces.
func Record(subject, date string) string {
	return fmt.Sprintf(recordTemplate, subject, date)
}

// Harness is the scenario execution engine.
// It runs passes with a deterministic clock and pass id.
type Harness struct {
	scenario *Scenario
	root     string
	dirs     mover.Dirs
	dbPath   string
	clock    *testutil.FakeClock
	logger   *slog.Logger

	engine   dedup.Engine
	pipeline *mover.Pipeline

	// busy holds absolute source paths reported as locked in the current pass.
	busy map[string]bool

	pass        int
	events      []mover.Event
	quarantines map[string]int
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh temporary tree that is removed afterwards.
// An error means the scenario could not be executed at all; expectation
// and assertion failures are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	root, err := os.MkdirTemp("", "uniqtime-scenario-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario root: %w", err)
	}
	defer os.RemoveAll(root)

	h, err := newHarness(scenario, root)
	if err != nil {
		return nil, err
	}
	defer h.closeEngine()

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Passes {
		if err := h.runPass(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("pass %d: %w", i+1, err)
		}
	}

	for _, msg := range EvaluateAssertions(h, scenario.Assertions) {
		result.AddError(msg)
	}

	live, err := h.engine.History(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	for _, a := range live {
		result.History = append(result.History, a.Timestamp+" "+a.Subject)
	}
	return result, nil
}

func newHarness(s *Scenario, root string) (*Harness, error) {
	h := &Harness{
		scenario: s,
		root:     root,
		dirs: mover.Dirs{
			Source:      filepath.Join(root, "in"),
			Destination: filepath.Join(root, "out"),
			Error:       filepath.Join(root, "err"),
		},
		dbPath:      filepath.Join(root, "history.db"),
		clock:       testutil.NewFakeClock(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs
		busy:        make(map[string]bool),
		quarantines: make(map[string]int),
	}
	for _, dir := range []string{h.dirs.Source, h.dirs.Destination, h.dirs.Error} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	if err := h.openEngine(context.Background()); err != nil {
		return nil, err
	}

	p, err := mover.New(h.dirs, h,
		mover.WithLogger(h.logger),
		mover.WithClock(h.clock),
		mover.WithPassIDs(testutil.NewFixedPassIDGenerator(PassID)),
		mover.WithProber(mover.ProberFunc(h.probe)),
		mover.WithObserver(mover.ObserverFunc(func(e mover.Event) {
			h.events = append(h.events, e)
		})),
	)
	if err != nil {
		h.closeEngine()
		return nil, fmt.Errorf("failed to build pipeline: %w", err)
	}
	h.pipeline = p
	return h, nil
}

// Uniquify delegates to the current engine so restarts swap it underneath the pipeline.
func (h *Harness) Uniquify(ctx context.Context, date, subject string) (string, error) {
	return h.engine.Uniquify(ctx, date, subject)
}

func (h *Harness) openEngine(ctx context.Context) error {
	eng, err := dedup.Open(ctx, dedup.Options{
		Variant:  h.scenario.variant(),
		History:  h.scenario.history(),
		Database: h.dbPath,
		Clock:    h.clock,
	})
	if err != nil {
		return fmt.Errorf("failed to open engine: %w", err)
	}
	h.engine = eng
	return nil
}

func (h *Harness) closeEngine() {
	if h.engine == nil {
		return
	}
	if err := h.engine.Close(); err != nil {
		h.logger.Error("error closing engine", "error", err)
	}
	h.engine = nil
}

// probe reports busy paths and falls through to a real flock otherwise.
func (h *Harness) probe(path string) (bool, error) {
	if h.busy[path] {
		return true, nil
	}
	return mover.FlockProber{}.Busy(path)
}

func (h *Harness) runPass(ctx context.Context, n int, step PassStep, result *Result) error {
	if step.Restart {
		h.closeEngine()
		if err := h.openEngine(ctx); err != nil {
			return err
		}
	}

	for _, f := range step.Files {
		if err := h.writeFile(f); err != nil {
			return err
		}
	}

	clear(h.busy)
	for _, rel := range step.Busy {
		h.busy[filepath.Join(h.dirs.Source, filepath.FromSlash(rel))] = true
	}

	h.pass = n
	h.events = h.events[:0]
	if _, ran := h.pipeline.Run(ctx); !ran {
		return errors.New("pipeline refused the pass")
	}

	for _, ev := range h.events {
		result.Trace = append(result.Trace, h.traceEvent(ev))
	}

	for _, kind := range outcomeKinds {
		want, ok := step.Expect[kind]
		if !ok {
			continue
		}
		if got := result.Count(kind, n); got != want {
			result.AddError(fmt.Sprintf("pass %d: expected %d %s, got %d", n, want, kind, got))
		}
	}
	return nil
}

func (h *Harness) writeFile(f FileStep) error {
	path := filepath.Join(h.dirs.Source, filepath.FromSlash(f.Name))
	body := f.Content
	if f.Subject != "" {
		body = Record(f.Subject, f.Date)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create parent of %s: %w", f.Name, err)
	}
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", f.Name, err)
	}
	return nil
}

// traceEvent converts ev into its run-independent form.
func (h *Harness) traceEvent(ev mover.Event) TraceEvent {
	te := TraceEvent{
		Pass:     h.pass,
		Kind:     string(ev.Kind),
		File:     h.rel(h.dirs.Source, ev.File),
		Assigned: ev.Assigned,
		Reason:   Reason(ev.Err),
	}

	switch ev.Kind {
	case mover.KindQuarantined:
		n, ok := h.quarantines[ev.Target]
		if !ok {
			n = len(h.quarantines) + 1
			h.quarantines[ev.Target] = n
		}
		te.Target = "err/" + filepath.Base(ev.File) + "." + strconv.Itoa(n)
	case mover.KindPatched, mover.KindPassthrough:
		te.Target = h.rel(h.root, ev.Target)
	}
	return te
}

func (h *Harness) rel(base, path string) string {
	r, err := filepath.Rel(base, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}

// Reason classifies an event error into a stable label. Nil maps to "".
func Reason(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case mover.IsCollision(err):
		return "collision"
	case dedup.IsExhausted(err):
		return "exhausted"
	case dedup.IsPersistence(err):
		return "persistence"
	case errors.Is(err, content.ErrMalformed):
		return "malformed"
	case errors.Is(err, content.ErrMissingField):
		return "missing_field"
	case errors.Is(err, content.ErrAlreadyDisambiguated):
		return "already_disambiguated"
	default:
		return "io"
	}
}

// quarantinedCopies counts files in the error directory named base plus a numeric suffix.
func (h *Harness) quarantinedCopies(base string) (int, error) {
	entries, err := os.ReadDir(h.dirs.Error)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		suffix, ok := strings.CutPrefix(e.Name(), base+".")
		if !ok {
			continue
		}
		if _, err := strconv.ParseInt(suffix, 10, 64); err == nil {
			n++
		}
	}
	return n, nil
}

// remaining counts regular files still under the source directory.
func (h *Harness) remaining() (int, error) {
	n := 0
	err := filepath.WalkDir(h.dirs.Source, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	return n, err
}
