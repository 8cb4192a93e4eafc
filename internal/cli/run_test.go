package cli

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniqtime/internal/testutil"
)

// startService runs "uniqtime run args..." until the returned cancel is called.
// It waits for the startup banner before returning.
func startService(t *testing.T, args ...string) (stop func() error, stdout *syncBuffer) {
	t.Helper()
	stdout, stderr := &syncBuffer{}, &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"run"}, args...))

	ctx, cancel := context.WithCancel(context.Background())
	errChan := make(chan error, 1)
	go func() {
		errChan <- cmd.ExecuteContext(ctx)
	}()

	require.Eventually(t, func() bool {
		return strings.Contains(stdout.String(), "uniqtime started")
	}, 5*time.Second, 10*time.Millisecond, "service did not start; stderr:\n%s", stderr.String())

	stopped := false
	stop = func() error {
		if stopped {
			return nil
		}
		stopped = true
		cancel()
		select {
		case err := <-errChan:
			return err
		case <-time.After(5 * time.Second):
			t.Fatal("run did not respect context cancellation")
			return nil
		}
	}
	t.Cleanup(func() { _ = stop() })
	return stop, stdout
}

func TestRun_FirstPassIsImmediate(t *testing.T) {
	tree := testutil.NewTree(t)
	testutil.WriteFile(t, tree.Source, "a.xml", record("P001", "2016-01-01T10:15"))

	// The interval is long enough that only the startup pass can run
	stop, _ := startService(t, append([]string{"--engine", "memory", "--interval", "3600"}, dirArgs(tree)...)...)

	dst := filepath.Join(tree.Destination, "a.xml")
	require.Eventually(t, func() bool {
		_, err := os.Stat(dst)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, stop())
	assert.Equal(t, record("P001", "2016-01-01T10:15:00"), testutil.ReadFile(t, dst))
}

func TestRun_IntervalPasses(t *testing.T) {
	tree := testutil.NewTree(t)
	stop, _ := startService(t, append([]string{"--engine", "memory", "--interval", "1"}, dirArgs(tree)...)...)

	testutil.WriteFile(t, tree.Source, "late.xml", record("P001", "2016-01-01T10:15"))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(tree.Destination, "late.xml"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, stop())
}

func TestRun_WatchTriggersPass(t *testing.T) {
	tree := testutil.NewTree(t)
	stop, _ := startService(t, append([]string{
		"--engine", "memory", "--interval", "3600", "--watch", "--debounce", "20",
	}, dirArgs(tree)...)...)

	testutil.WriteFile(t, tree.Source, "new.xml", record("P001", "2016-01-01T10:15"))
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(tree.Destination, "new.xml"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, stop())
}

func TestRun_DurableHistoryClosedOnStop(t *testing.T) {
	tree := testutil.NewTree(t)
	db := filepath.Join(tree.Root, "history.db")
	testutil.WriteFile(t, tree.Source, "a.xml", record("P001", "2016-01-01T10:15"))

	stop, _ := startService(t, append([]string{"--db", db, "--interval", "3600"}, dirArgs(tree)...)...)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(tree.Destination, "a.xml"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
	require.NoError(t, stop())

	out, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2016-01-01T10:15:00  P001")
}

func TestRun_InvalidConfiguration(t *testing.T) {
	_, _, err := execute(t, "run", "--engine", "memory")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestRun_DatabaseOpenFailure(t *testing.T) {
	tree := testutil.NewTree(t)
	args := append([]string{"run", "--db", filepath.Join(tree.Root, "no", "such", "dir", "h.db")}, dirArgs(tree)...)

	_, _, err := execute(t, args...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open dedup engine")
}

func TestRunHelpText(t *testing.T) {
	cmd := NewRunCommand(&RootOptions{Format: "text"})
	assert.Contains(t, cmd.Long, "SIGINT")
	assert.Contains(t, cmd.Long, "--watch")
}
