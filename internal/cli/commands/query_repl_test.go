package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/portsql/internal/testutil"
	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/provision"

	_ "github.com/leapstack-labs/portsql/pkg/adapters/sqlite"
)

func newShellConn(t *testing.T) *adapter.Conn {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	cfg := core.AdapterConfig{Type: "sqlite3", Path: filepath.Join(t.TempDir(), "shell.db")}
	a, err := adapter.NewAdapter(cfg, logger)
	require.NoError(t, err)
	require.NoError(t, a.Connect(ctx, cfg))
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, provision.Up(ctx, a.DB(), a.Dialect(), logger))

	conn, err := a.NewConn(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestReplSession(t *testing.T) {
	ctx := context.Background()
	var out, errOut bytes.Buffer
	s := newReplSession(newShellConn(t), &out, &errOut, "table")

	assert.False(t, s.handleLine(ctx, "CREATE TABLE {notes} (id INTEGER, body VARCHAR(20));"))
	assert.Contains(t, out.String(), "rows affected")

	out.Reset()
	assert.False(t, s.handleLine(ctx, "INSERT INTO {notes} (id, body)"))
	assert.True(t, s.pending(), "statement continues until a semicolon")
	assert.False(t, s.handleLine(ctx, "VALUES (1, '');"))
	assert.False(t, s.pending())
	assert.Contains(t, out.String(), "1 rows affected")

	out.Reset()
	s.handleLine(ctx, ".format json")
	s.handleLine(ctx, "SELECT id, body FROM {notes};")
	assert.Contains(t, out.String(), `"BODY": ""`, "empty strings come back empty")
	assert.Contains(t, out.String(), `"ID": 1`)

	out.Reset()
	s.handleLine(ctx, ".rewrite SELECT body FROM {notes} WHERE body = ''")
	assert.Contains(t, out.String(), `FROM "NOTES"`)
	assert.Contains(t, out.String(), `'^'`)

	out.Reset()
	s.handleLine(ctx, ".trace on")
	assert.Equal(t, "trace on\n", out.String())
	s.handleLine(ctx, "SELECT 1 AS one;")
	assert.Contains(t, errOut.String(), "-- SELECT 1 AS ONE")

	errOut.Reset()
	s.handleLine(ctx, "SELECT * FROM {missing};")
	assert.Contains(t, errOut.String(), "Error: query failed")

	errOut.Reset()
	s.handleLine(ctx, ".format xml")
	s.handleLine(ctx, ".bogus")
	assert.Contains(t, errOut.String(), "Usage: .format")
	assert.Contains(t, errOut.String(), "Unknown command: .bogus")

	out.Reset()
	s.handleLine(ctx, ".longids")
	assert.Contains(t, out.String(), "(0 identifiers)")

	assert.True(t, s.handleLine(ctx, ".quit"))
}

func TestReplSession_DotInsideStatement(t *testing.T) {
	ctx := context.Background()
	var out, errOut bytes.Buffer
	s := newReplSession(newShellConn(t), &out, &errOut, "csv")

	s.handleLine(ctx, "SELECT 1 AS n,")
	assert.False(t, s.handleLine(ctx, ".5 AS m;"), "dot lines continue a pending statement")
	assert.Empty(t, errOut.String())
	assert.Contains(t, out.String(), "N,M")
}

func TestModeFor(t *testing.T) {
	tests := []struct {
		query string
		want  adapter.ReturnMode
	}{
		{"SELECT 1", adapter.ReturnStatement},
		{"  with x AS (SELECT 1) SELECT * FROM x", adapter.ReturnStatement},
		{"(SELECT 1) UNION (SELECT 2)", adapter.ReturnStatement},
		{"insert into {t} values (1)", adapter.ReturnAffected},
		{"DROP TABLE {t}", adapter.ReturnAffected},
		{"", adapter.ReturnNull},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, modeFor(tt.query))
		})
	}
}
