package mover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/semaphore"

	"github.com/roach88/uniqtime/internal/content"
)

// Uniquifier assigns a disambiguated timestamp for a (date bucket, subject) key.
// dedup.Engine satisfies it.
type Uniquifier interface {
	Uniquify(ctx context.Context, dateBucket, subject string) (string, error)
}

// Dirs are the three directories a pipeline works on.
type Dirs struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
	Error       string `json:"error"`
}

// Pipeline moves files from Dirs.Source to Dirs.Destination, patching records
// on the way. Construct with New.
//
// Thread-safety: Run may be called from any goroutine; passes never overlap.
type Pipeline struct {
	dirs     Dirs
	engine   Uniquifier
	fields   content.Fields
	logger   *slog.Logger
	observer Observer
	prober   Prober
	passIDs  PassIDGenerator
	clock    Clock
	stamper  *Stamper

	// permit is the single-flight guard, weight 1.
	permit *semaphore.Weighted
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithFields sets the record fields. Default: content.DefaultFields().
func WithFields(f content.Fields) Option {
	return func(p *Pipeline) { p.fields = f }
}

// WithObserver registers an observer for per-file events.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithProber sets the busy-file probe. Default: FlockProber.
func WithProber(pr Prober) Option {
	return func(p *Pipeline) {
		if pr != nil {
			p.prober = pr
		}
	}
}

// WithPassIDs sets the pass id generator. Default: UUIDv7Generator.
func WithPassIDs(g PassIDGenerator) Option {
	return func(p *Pipeline) {
		if g != nil {
			p.passIDs = g
		}
	}
}

// WithClock sets the clock used for quarantine suffixes and report times.
func WithClock(c Clock) Option {
	return func(p *Pipeline) {
		if c != nil {
			p.clock = c
		}
	}
}

// New validates dirs and builds a pipeline around engine.
// Every directory must already exist; otherwise a *ConfigurationError is returned.
func New(dirs Dirs, engine Uniquifier, opts ...Option) (*Pipeline, error) {
	for _, d := range []struct {
		field string
		path  string
	}{
		{"source", dirs.Source},
		{"destination", dirs.Destination},
		{"error", dirs.Error},
	} {
		if err := checkDir(d.path); err != nil {
			return nil, &ConfigurationError{Field: d.field, Path: d.path, Err: err}
		}
	}
	if engine == nil {
		return nil, &ConfigurationError{Field: "engine", Err: errors.New("no uniquifier")}
	}

	p := &Pipeline{
		dirs:    dirs,
		engine:  engine,
		fields:  content.DefaultFields(),
		logger:  slog.Default(),
		prober:  FlockProber{},
		passIDs: UUIDv7Generator{},
		clock:   systemClock{},
		permit:  semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "mover")
	p.stamper = NewStamper(p.clock)
	return p, nil
}

func checkDir(path string) error {
	if path == "" {
		return errors.New("not set")
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	return nil
}

// Dirs returns the directories the pipeline was built with.
func (p *Pipeline) Dirs() Dirs {
	return p.dirs
}

// TryRun runs a pass and reports whether it acquired the permit.
func (p *Pipeline) TryRun(ctx context.Context) bool {
	_, ran := p.Run(ctx)
	return ran
}

// Run performs one pass over the source directory.
//
// If another pass is in flight Run returns (PassReport{}, false) immediately.
// Per-file failures never abort the pass; each surfaces as an Event.
// ctx is passed to the engine only; file operations run to completion.
func (p *Pipeline) Run(ctx context.Context) (PassReport, bool) {
	if !p.permit.TryAcquire(1) {
		p.logger.Debug("pass already in flight, dropping")
		return PassReport{}, false
	}
	defer p.permit.Release(1)

	id := p.passIDs.Generate()
	log := p.logger.With("pass", id)
	report := PassReport{PassID: id, Started: p.clock.Now()}

	files := p.enumerate(log)
	log.Debug("pass started", "files", len(files))

	for _, path := range files {
		ev := p.process(ctx, path)
		ev.PassID = id
		report.add(ev)
		p.emit(log, ev)
	}

	report.Finished = p.clock.Now()
	if report.Files > 0 {
		log.Info("pass finished",
			"files", report.Files,
			"patched", report.Patched,
			"passthrough", report.Passthrough,
			"quarantined", report.Quarantined,
			"skipped", report.Skipped,
			"failed", report.Failed,
		)
	}
	return report, true
}

// enumerate lists every regular file under the source before any is touched.
// Symlinks to regular files are included; other links and unreadable
// subtrees are logged and skipped.
func (p *Pipeline) enumerate(log *slog.Logger) []string {
	var files []string
	err := filepath.WalkDir(p.dirs.Source, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warn("cannot read source entry", "path", path, "err", err)
			return nil
		}
		switch {
		case d.Type().IsRegular():
			files = append(files, path)
		case d.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				log.Warn("ignoring symlink that does not point to a regular file", "path", path, "err", err)
				return nil
			}
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		log.Error("enumerate source", "dir", p.dirs.Source, "err", err)
	}
	return files
}

// process handles one file and reports what happened to it.
func (p *Pipeline) process(ctx context.Context, src string) Event {
	ev := Event{File: src}

	busy, err := p.prober.Busy(src)
	switch {
	case err != nil && errors.Is(err, fs.ErrNotExist):
		ev.Kind = KindSkipped
		return ev
	case err != nil:
		ev.Kind, ev.Err = KindSkipped, err
		return ev
	case busy:
		ev.Kind = KindSkipped
		return ev
	}

	name := filepath.Base(src)
	dst := filepath.Join(p.dirs.Destination, name)

	if _, err := os.Lstat(dst); err == nil {
		return p.quarantine(ev, &CollisionError{Path: dst})
	} else if !errors.Is(err, fs.ErrNotExist) {
		return p.quarantine(ev, &IOError{Op: "stat destination", Path: dst, Err: err})
	}

	if content.IsStructured(name) {
		assigned, err := p.patch(ctx, src, dst)
		if err == nil {
			ev.Kind, ev.Target, ev.Assigned = KindPatched, dst, assigned
			return ev
		}
		ev.Err = err
	}

	if err := relocate(src, dst); err != nil {
		cause := err
		if !IsCollision(err) {
			cause = &IOError{Op: "relocate", Path: src, Err: err}
		}
		if ev.Err != nil {
			cause = errors.Join(ev.Err, cause)
		}
		return p.quarantine(ev, cause)
	}

	ev.Kind, ev.Target = KindPassthrough, dst
	return ev
}

// patch disambiguates the record at src and writes it to dst, then removes src.
// The write always happens before the removal, so a crash in between leaves
// the original in place.
func (p *Pipeline) patch(ctx context.Context, src, dst string) (string, error) {
	info, err := os.Stat(src)
	if err != nil {
		return "", &IOError{Op: "stat", Path: src, Err: err}
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", &IOError{Op: "read", Path: src, Err: err}
	}

	doc, err := content.Parse(data, p.fields)
	if err != nil {
		return "", err
	}
	if err := doc.Eligible(); err != nil {
		return "", err
	}

	assigned, err := p.engine.Uniquify(ctx, doc.Timestamp(), doc.Subject())
	if err != nil {
		return "", err
	}

	if err := atomic.WriteFile(dst, bytes.NewReader(doc.WithTimestamp(assigned))); err != nil {
		return "", &IOError{Op: "write", Path: dst, Err: err}
	}
	// atomic.WriteFile leaves a new file at 0600.
	if err := os.Chmod(dst, info.Mode().Perm()); err != nil {
		_ = os.Remove(dst)
		return "", &IOError{Op: "chmod", Path: dst, Err: err}
	}

	if err := os.Remove(src); err != nil {
		return "", &IOError{Op: "remove source", Path: src, Err: err}
	}
	return assigned, nil
}

// quarantine moves src into the error directory under a suffixed name.
func (p *Pipeline) quarantine(ev Event, cause error) Event {
	stamp := strconv.FormatInt(p.stamper.Next(), 10)
	target := filepath.Join(p.dirs.Error, filepath.Base(ev.File)+"."+stamp)

	if err := relocate(ev.File, target); err != nil {
		ev.Kind = KindFailed
		ev.Err = errors.Join(cause, &IOError{Op: "quarantine", Path: ev.File, Err: err})
		return ev
	}

	ev.Kind, ev.Target, ev.Err = KindQuarantined, target, cause
	return ev
}

// emit logs ev and hands it to the observer.
func (p *Pipeline) emit(log *slog.Logger, ev Event) {
	switch ev.Kind {
	case KindPatched:
		log.Info("record patched", "file", ev.File, "target", ev.Target, "timestamp", ev.Assigned)
	case KindPassthrough:
		if ev.Err != nil {
			log.Warn("record passed through unmodified", "file", ev.File, "target", ev.Target, "err", ev.Err)
		} else {
			log.Debug("file moved", "file", ev.File, "target", ev.Target)
		}
	case KindQuarantined:
		log.Error("file quarantined", "file", ev.File, "target", ev.Target, "err", ev.Err)
	case KindSkipped:
		if ev.Err != nil {
			log.Warn("file skipped", "file", ev.File, "err", ev.Err)
		} else {
			log.Debug("file skipped", "file", ev.File)
		}
	case KindFailed:
		log.Error("file left in source", "file", ev.File, "err", ev.Err)
	default:
		log.Error("unknown event kind", "kind", string(ev.Kind), "file", ev.File)
	}

	if p.observer != nil {
		p.observer.Observe(ev)
	}
}

// String renders a one-line summary of the report.
func (r PassReport) String() string {
	return fmt.Sprintf("pass %s: %d files, %d patched, %d passthrough, %d quarantined, %d skipped, %d failed",
		r.PassID, r.Files, r.Patched, r.Passthrough, r.Quarantined, r.Skipped, r.Failed)
}
