package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/uniqtime/internal/testutil"
)

// seedHistory runs one durable pass over the given records and returns the db path.
func seedHistory(t *testing.T, records map[string]string) string {
	t.Helper()
	tree := testutil.NewTree(t)
	db := filepath.Join(tree.Root, "history.db")
	for name, content := range records {
		testutil.WriteFile(t, tree.Source, name, content)
	}
	args := append([]string{"once", "--db", db}, dirArgs(tree)...)
	_, _, err := execute(t, args...)
	require.NoError(t, err)
	return db
}

func TestHistory_ListsAssignments(t *testing.T) {
	db := seedHistory(t, map[string]string{
		"a.xml": record("P001", "2016-01-01T10:15"),
		"b.xml": record("P002", "2016-01-02T08:00"),
	})

	out, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "2016-01-01T10:15:00  P001")
	assert.Contains(t, out, "2016-01-02T08:00:00  P002")
}

func TestHistory_Filters(t *testing.T) {
	db := seedHistory(t, map[string]string{
		"a.xml": record("P001", "2016-01-01T10:15"),
		"b.xml": record("P002", "2016-01-01T10:15"),
		"c.xml": record("P001", "2016-01-02T10:15"),
	})

	out, _, err := execute(t, "--format", "json", "history", "--db", db, "--subject", "P001", "--date", "2016-01-01")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   historyView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Assignments, 1)
	assert.Equal(t, "2016-01-01T10:15:00", resp.Data.Assignments[0].Timestamp)
	assert.Equal(t, "P001", resp.Data.Assignments[0].Subject)
	assert.Equal(t, db, resp.Data.Database)
}

func TestHistory_Limit(t *testing.T) {
	db := seedHistory(t, map[string]string{
		"a.xml": record("P001", "2016-01-01T10:15"),
		"b.xml": record("P002", "2016-01-01T10:15"),
	})

	out, _, err := execute(t, "--format", "json", "history", "--db", db, "--limit", "1")
	require.NoError(t, err)

	var resp struct {
		Data historyView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Len(t, resp.Data.Assignments, 1)
}

func TestHistory_NoMatches(t *testing.T) {
	db := seedHistory(t, map[string]string{"a.xml": record("P001", "2016-01-01T10:15")})

	out, _, err := execute(t, "history", "--db", db, "--subject", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "no assignments")
}

func TestHistory_MissingDatabase(t *testing.T) {
	db := filepath.Join(t.TempDir(), "missing.db")

	_, _, err := execute(t, "history", "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "database not found")
	assert.NoFileExists(t, db)
}

func TestHistory_RequiresDB(t *testing.T) {
	_, _, err := execute(t, "history")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
