//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package mover

import (
	"errors"
	"io/fs"
	"os"
)

// Busy implements Prober by opening the file for writing.
// On platforms with mandatory sharing modes a writer's handle makes this fail.
func (FlockProber) Busy(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, err
		}
		return true, nil
	}
	f.Close()
	return false, nil
}

func isCrossDevice(error) bool {
	return false
}
