package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/portsql/internal/cli/testutil"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out, _, err := testutil.Run(t, NewRootCmd(), args...)
	return out, err
}

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"version", "rewrite", "query", "provision", "longids", "doctor", "completion"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestVersion(t *testing.T) {
	testutil.SetupTestProject(t)
	out, err := run(t, "version")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "portsql v"+Version)
	testutil.AssertContains(t, out, "oracle")
}

func TestRewrite_Offline(t *testing.T) {
	testutil.SetupTestProject(t)

	out, err := run(t, "--type", "oracle", "--database", "XE", "--prefix", "site1",
		"rewrite", "SELECT name FROM {users} WHERE id = :id")
	require.NoError(t, err)
	assert.Equal(t, `SELECT "NAME" FROM "SITE1"."USERS" WHERE ID = :id`, strings.TrimSpace(out))
}

func TestRewrite_DialectFlag(t *testing.T) {
	testutil.SetupTestProject(t)

	out, err := run(t, "rewrite", "--dialect", "oracle", "SELECT * FROM {t} WHERE a = ''")
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "T" WHERE A = '^'`, strings.TrimSpace(out))
}

func TestRewrite_TraceYAML(t *testing.T) {
	testutil.SetupTestProject(t)

	out, err := run(t, "rewrite", "--dialect", "oracle", "--trace", "-f", "yaml", "SELECT name FROM {users}")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "- stage: empty-literals")
	testutil.AssertContains(t, out, "- stage: prefix-tables")
	testutil.AssertContains(t, out, `SELECT "NAME" FROM "USERS"`)
}

func TestRewrite_FromFile(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	path := filepath.Join(dir, "q.sql")
	require.NoError(t, os.WriteFile(path, []byte("SELECT 1 FROM {t}"), 0o600))

	out, err := run(t, "rewrite", "--dialect", "postgres", "-i", path)
	require.NoError(t, err)
	testutil.AssertContains(t, out, "SELECT 1 FROM")
	testutil.AssertNotContains(t, out, "{t}")
}

func TestRewrite_NoQuery(t *testing.T) {
	testutil.SetupTestProject(t)
	_, err := run(t, "rewrite")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no query given")
}

func TestInvalidTarget(t *testing.T) {
	testutil.SetupTestProject(t)
	_, err := run(t, "--type", "mysql", "rewrite", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown adapter type")
}

func TestSQLiteWorkflow(t *testing.T) {
	testutil.SetupTestProject(t)

	out, err := run(t, "provision", "up")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "support tables ready (sqlite)")

	out, err = run(t, "provision", "status")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "sqlite: version 2")

	_, err = run(t, "query", "--mode", "null",
		"CREATE TABLE {users} (id INTEGER PRIMARY KEY, name TEXT NOT NULL, note TEXT)")
	require.NoError(t, err)

	out, err = run(t, "query", "--mode", "affected",
		"--arg", "id=1", "--arg", "name=alice", "--arg", "note=",
		"INSERT INTO {users} (id, name, note) VALUES (:id, :name, :note)")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "1 rows affected")

	_, err = run(t, "query", "--mode", "affected",
		"--arg", "id=2", "--arg", "name=bob",
		"INSERT INTO {users} (id, name) VALUES (:id, :name)")
	require.NoError(t, err)

	out, err = run(t, "query", "-f", "json", "SELECT id, name, note FROM {users} ORDER BY id")
	require.NoError(t, err)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "alice", rows[0]["NAME"])
	// The empty string round trips through the sentinel.
	assert.Equal(t, "", rows[0]["NOTE"])
	assert.Nil(t, rows[1]["NOTE"])

	out, err = run(t, "query", "--offset", "1", "--limit", "1", "-f", "csv", "SELECT name FROM {users} ORDER BY id")
	require.NoError(t, err)
	assert.Equal(t, "NAME\nbob\n", out)

	out, err = run(t, "query", "SELECT name FROM {users} WHERE id = 1")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "alice")
	testutil.AssertContains(t, out, "(1 rows)")

	out, err = run(t, "longids", "list")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "(0 identifiers)")

	out, err = run(t, "doctor", "-f", "json")
	require.NoError(t, err)
	var report struct {
		Healthy bool `json:"healthy"`
		Target  struct {
			Dialect string `json:"dialect"`
		} `json:"target"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Healthy)
	assert.Equal(t, "sqlite", report.Target.Dialect)

	_, err = run(t, "provision", "down")
	require.Error(t, err)

	_, err = run(t, "provision", "down", "--yes")
	require.NoError(t, err)
	out, err = run(t, "provision", "status")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "sqlite: version 0")
}

func TestQuery_UnknownMode(t *testing.T) {
	testutil.SetupTestProject(t)
	_, err := run(t, "query", "--mode", "rows", "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown return mode")
}

func TestCompletion(t *testing.T) {
	out, err := run(t, "completion", "bash")
	require.NoError(t, err)
	testutil.AssertContains(t, out, "portsql")
}
