package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniqtime/internal/testutil"
)

var (
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

const passingScenario = `name: one-record
description: a single record is patched
passes:
  - files:
      - name: a.xml
        subject: P001
        date: "2016-01-01T10:15"
    expect:
      patched: 1
`

const failingScenario = `name: wrong-count
description: expects more than happens
passes:
  - files:
      - name: a.xml
        subject: P001
        date: "2016-01-01T10:15"
    expect:
      patched: 2
`

func TestTest_ScenariosPass(t *testing.T) {
	out, _, err := execute(t, "test", scenariosDir, "--golden", goldenDir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ same-minute")
	assert.Contains(t, out, "✓ durable-restart")
	assert.Contains(t, out, "✓ collisions-and-content")
	assert.Contains(t, out, "3 passed, 0 failed, 3 total")
}

func TestTest_JSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "test", scenariosDir, "--golden", goldenDir, "--filter", "same-*")
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, 1, resp.Data.Passed)
	require.Len(t, resp.Data.Scenarios, 1)
	assert.Equal(t, "same-minute", resp.Data.Scenarios[0].Name)
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "wrong-count.yaml", failingScenario)

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong-count")
	assert.Contains(t, out, "pass 1: expected 2 patched, got 1")
	assert.Contains(t, out, "0 passed, 1 failed, 1 total")
}

func TestTest_InvalidScenarioFile(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "broken.yaml", "name: x\n")

	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "✗ broken.yaml")
	assert.Contains(t, out, "failed to load scenario")
}

func TestTest_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "one-record.yaml", passingScenario)

	_, _, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	golden := filepath.Join(dir, "golden", "one-record.golden")
	assert.Contains(t, testutil.ReadFile(t, golden), `"assigned": "2016-01-01T10:15:00"`)

	_, _, err = execute(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0644))
	out, _, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_NoScenarios(t *testing.T) {
	out, _, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, _, err := execute(t, "test", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}
