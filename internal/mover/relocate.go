package mover

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// relocate moves src to dst. An existing dst is never replaced: the call
// fails with *CollisionError and both files are left as they were.
//
// The fast path is link then unlink, which the kernel refuses for an
// existing name. Filesystems without hard links fall back to an existence
// check plus rename, and moves across filesystems to copy then unlink.
// A symlinked src is copied by content and the link removed.
func relocate(src, dst string) error {
	if info, err := os.Lstat(src); err == nil && info.Mode()&fs.ModeSymlink != 0 {
		return copyThenRemove(src, dst)
	}

	err := os.Link(src, dst)
	if err == nil {
		if err := os.Remove(src); err != nil {
			// Leave the file in exactly one place.
			_ = os.Remove(dst)
			return fmt.Errorf("remove %s after link: %w", src, err)
		}
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return &CollisionError{Path: dst}
	}
	if errors.Is(err, fs.ErrNotExist) {
		return err
	}

	if _, err := os.Lstat(dst); err == nil {
		return &CollisionError{Path: dst}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	err = os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}
	return copyThenRemove(src, dst)
}

// copyThenRemove copies src into a newly created dst and removes src.
// On any failure dst is removed again and src is untouched.
func copyThenRemove(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return &CollisionError{Path: dst}
		}
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("copy %s: %w", src, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(dst)
		return fmt.Errorf("sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return fmt.Errorf("close %s: %w", dst, err)
	}

	in.Close()
	if err := os.Remove(src); err != nil {
		os.Remove(dst)
		return fmt.Errorf("remove %s after copy: %w", src, err)
	}
	return nil
}
