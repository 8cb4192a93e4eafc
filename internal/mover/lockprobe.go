package mover

// Prober reports whether another writer still holds a file.
//
// Busy must not wait for a lock to be released. A missing file is reported
// as an error wrapping fs.ErrNotExist.
type Prober interface {
	Busy(path string) (bool, error)
}

// FlockProber probes with a non-blocking exclusive lock.
type FlockProber struct{}

// ProberFunc adapts a function to Prober.
type ProberFunc func(path string) (bool, error)

// Busy implements Prober.
func (f ProberFunc) Busy(path string) (bool, error) { return f(path) }
