package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniqtime/internal/mover"
	"github.com/roach88/uniqtime/internal/testutil"
)

func dirArgs(tree testutil.Tree) []string {
	return []string{"--source", tree.Source, "--destination", tree.Destination, "--error", tree.Error}
}

func TestOnce_PatchesRecords(t *testing.T) {
	tree := testutil.NewTree(t)
	testutil.WriteFile(t, tree.Source, "a.xml", record("P001", "2016-01-01T10:15"))
	testutil.WriteFile(t, tree.Source, "b.xml", record("P001", "2016-01-01T10:15"))
	testutil.WriteFile(t, tree.Source, "notes.txt", "hello")

	args := append([]string{"once", "--engine", "memory"}, dirArgs(tree)...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)

	assert.Contains(t, out, "3 files, 2 patched, 1 passthrough")
	assert.Empty(t, testutil.ListFiles(t, tree.Source))
	assert.ElementsMatch(t, []string{"a.xml", "b.xml", "notes.txt"}, testutil.ListFiles(t, tree.Destination))

	a := testutil.ReadFile(t, filepath.Join(tree.Destination, "a.xml"))
	b := testutil.ReadFile(t, filepath.Join(tree.Destination, "b.xml"))
	assert.ElementsMatch(t,
		[]string{record("P001", "2016-01-01T10:15:00"), record("P001", "2016-01-01T10:15:01")},
		[]string{a, b})
	assert.Equal(t, "hello", testutil.ReadFile(t, filepath.Join(tree.Destination, "notes.txt")))
}

func TestOnce_JSONReport(t *testing.T) {
	tree := testutil.NewTree(t)
	testutil.WriteFile(t, tree.Source, "a.xml", record("P001", "2016-01-01T10:15"))

	args := append([]string{"--format", "json", "once", "--engine", "memory"}, dirArgs(tree)...)
	out, _, err := execute(t, args...)
	require.NoError(t, err)

	var resp struct {
		Status string            `json:"status"`
		Data   mover.PassReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Files)
	assert.Equal(t, 1, resp.Data.Patched)
	assert.NotEmpty(t, resp.Data.PassID)
}

func TestOnce_DurableHistorySurvivesRuns(t *testing.T) {
	tree := testutil.NewTree(t)
	db := filepath.Join(tree.Root, "history.db")
	args := append([]string{"once", "--db", db}, dirArgs(tree)...)

	testutil.WriteFile(t, tree.Source, "a.xml", record("P001", "2016-01-01T10:15"))
	_, _, err := execute(t, args...)
	require.NoError(t, err)

	testutil.WriteFile(t, tree.Source, "b.xml", record("P001", "2016-01-01T10:15"))
	_, _, err = execute(t, args...)
	require.NoError(t, err)

	assert.Equal(t, record("P001", "2016-01-01T10:15:00"), testutil.ReadFile(t, filepath.Join(tree.Destination, "a.xml")))
	assert.Equal(t, record("P001", "2016-01-01T10:15:01"), testutil.ReadFile(t, filepath.Join(tree.Destination, "b.xml")))
}

func TestOnce_MissingDirectories(t *testing.T) {
	_, _, err := execute(t, "once", "--engine", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.True(t, mover.IsConfiguration(err))
}

func TestOnce_NonexistentSource(t *testing.T) {
	tree := testutil.NewTree(t)
	_, _, err := execute(t, "once", "--engine", "memory",
		"--source", filepath.Join(tree.Root, "missing"),
		"--destination", tree.Destination,
		"--error", tree.Error)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, mover.IsConfiguration(err))
}

func TestOnce_JSONConfigurationError(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "once", "--engine", "memory")
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeConfig, resp.Error.Code)
}

func TestOnce_EnvironmentOverrides(t *testing.T) {
	tree := testutil.NewTree(t)
	t.Setenv("UNIQTIME_SOURCE_DIR", tree.Source)
	t.Setenv("UNIQTIME_DESTINATION_DIR", tree.Destination)
	t.Setenv("UNIQTIME_ERROR_DIR", tree.Error)
	t.Setenv("UNIQTIME_UNIQUEIFIER", "Memory")
	testutil.WriteFile(t, tree.Source, "a.xml", record("P001", "2016-01-01T10:15"))

	out, _, err := execute(t, "once")
	require.NoError(t, err)
	assert.Contains(t, out, "1 patched")
	assert.Equal(t, []string{"a.xml"}, testutil.ListFiles(t, tree.Destination))
}
