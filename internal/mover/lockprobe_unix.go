//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package mover

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// Busy implements Prober with flock(LOCK_EX|LOCK_NB).
// A lock held by another open file description reports busy.
func (FlockProber) Busy(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return true, nil
		}
		return false, &IOError{Op: "probe lock", Path: path, Err: err}
	}
	_ = unix.Flock(fd, unix.LOCK_UN)
	return false, nil
}

// isCrossDevice reports whether err is a rename/link across filesystems.
func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
