package mover

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniqtime/internal/testutil"
)

func TestRelocate_MovesFile(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "src.txt", "payload")
	dst := filepath.Join(dir, "dst.txt")

	require.NoError(t, relocate(src, dst))
	assert.NoFileExists(t, src)
	assert.Equal(t, "payload", testutil.ReadFile(t, dst))
}

func TestRelocate_NeverReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "src.txt", "new")
	dst := testutil.WriteFile(t, dir, "dst.txt", "old")

	err := relocate(src, dst)
	require.Error(t, err)
	assert.True(t, IsCollision(err))

	assert.Equal(t, "new", testutil.ReadFile(t, src))
	assert.Equal(t, "old", testutil.ReadFile(t, dst))
}

func TestRelocate_MissingSource(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "dst.txt")

	err := relocate(filepath.Join(dir, "gone.txt"), dst)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	assert.NoFileExists(t, dst)
}

func TestRelocate_SymlinkIsCopiedByContent(t *testing.T) {
	dir := t.TempDir()
	target := testutil.WriteFile(t, dir, "target.txt", "payload")
	src := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink("target.txt", src))
	dst := filepath.Join(dir, "sub", "dst.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0755))

	require.NoError(t, relocate(src, dst))
	assert.NoFileExists(t, src)
	assert.Equal(t, "payload", testutil.ReadFile(t, dst))
	assert.Equal(t, "payload", testutil.ReadFile(t, target))

	info, err := os.Lstat(dst)
	require.NoError(t, err)
	assert.True(t, info.Mode().IsRegular())
}

func TestRelocate_SymlinkNeverReplacesDestination(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "target.txt", "new")
	src := filepath.Join(dir, "link.txt")
	require.NoError(t, os.Symlink("target.txt", src))
	dst := testutil.WriteFile(t, dir, "dst.txt", "old")

	err := relocate(src, dst)
	assert.True(t, IsCollision(err))
	assert.Equal(t, "old", testutil.ReadFile(t, dst))
	_, err = os.Lstat(src)
	assert.NoError(t, err)
}

func TestCopyThenRemove(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "src.txt", "payload")
	require.NoError(t, os.Chmod(src, 0640))
	dst := filepath.Join(dir, "copy.txt")

	require.NoError(t, copyThenRemove(src, dst))
	assert.NoFileExists(t, src)
	assert.Equal(t, "payload", testutil.ReadFile(t, dst))

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0640), info.Mode().Perm())
}

func TestCopyThenRemove_RefusesExisting(t *testing.T) {
	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "src.txt", "new")
	dst := testutil.WriteFile(t, dir, "dst.txt", "old")

	err := copyThenRemove(src, dst)
	assert.True(t, IsCollision(err))
	assert.Equal(t, "new", testutil.ReadFile(t, src))
	assert.Equal(t, "old", testutil.ReadFile(t, dst))
}
