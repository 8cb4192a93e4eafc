package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Tree is a source/destination/error directory triple rooted in a temp dir.
type Tree struct {
	Root        string
	Source      string
	Destination string
	Error       string
}

// NewTree creates the three directories under t.TempDir().
func NewTree(t *testing.T) Tree {
	t.Helper()
	root := t.TempDir()
	tree := Tree{
		Root:        root,
		Source:      filepath.Join(root, "in"),
		Destination: filepath.Join(root, "out"),
		Error:       filepath.Join(root, "err"),
	}
	for _, dir := range []string{tree.Source, tree.Destination, tree.Error} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}
	return tree
}

// WriteFile writes content to a path relative to dir, creating parents.
func WriteFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// ReadFile returns the content at path or fails the test.
func ReadFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

// ListFiles returns the base names of the regular files directly in dir.
func ListFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}
	return names
}
