package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/portsql/internal/testutil"
	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/codec"
	"github.com/leapstack-labs/portsql/pkg/provision"
)

// setupSite connects to a fresh database file with provisioned support
// tables and a USERS table under the MAIN prefix.
func setupSite(t *testing.T, params map[string]any) (*Adapter, *adapter.Conn) {
	t.Helper()
	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	a := New(logger)
	require.NoError(t, a.Connect(ctx, adapter.Config{
		Path:   filepath.Join(t.TempDir(), "site.db"),
		Prefix: "main",
		Params: params,
	}))
	t.Cleanup(func() { _ = a.Close() })

	require.NoError(t, provision.Up(ctx, a.DB(), a.Dialect(), logger))

	conn, err := a.NewConn(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	_, err = conn.Execute(ctx,
		"CREATE TABLE {users} (id INTEGER PRIMARY KEY, name TEXT NOT NULL, note TEXT)",
		nil, adapter.WithReturn(adapter.ReturnNull))
	require.NoError(t, err)
	return a, conn
}

func insertUser(t *testing.T, conn *adapter.Conn, id int, name, note string) {
	t.Helper()
	_, err := conn.Execute(context.Background(),
		"INSERT INTO {users} (id, name, note) VALUES (:id, :name, :note)",
		[]any{sql.Named("id", id), sql.Named("name", name), sql.Named("note", note)},
		adapter.WithReturn(adapter.ReturnNull))
	require.NoError(t, err)
}

func TestEndToEnd_NamedBindsAndPrefix(t *testing.T) {
	ctx := context.Background()
	_, conn := setupSite(t, nil)
	insertUser(t, conn, 1, "alice", "admin")

	res, err := conn.Execute(ctx, "SELECT name FROM {users} WHERE id = :id", []any{sql.Named("id", 1)})
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, codec.Row{"NAME": "alice"}, rows[0])
}

func TestEndToEnd_EmptyStrings(t *testing.T) {
	ctx := context.Background()
	a, conn := setupSite(t, nil)
	insertUser(t, conn, 1, "bob", "")

	var raw string
	require.NoError(t, a.DB().QueryRowContext(ctx, "SELECT NOTE FROM USERS WHERE ID = 1").Scan(&raw))
	assert.Equal(t, codec.Sentinel, raw)

	res, err := conn.Execute(ctx, "SELECT note FROM {users} WHERE note = ''", nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0]["NOTE"])
}

func TestEndToEnd_Blobs(t *testing.T) {
	ctx := context.Background()
	a, conn := setupSite(t, map[string]any{"inline_limit": 64})

	long := strings.Repeat("portable ", 20)
	insertUser(t, conn, 1, "carol", long)
	insertUser(t, conn, 2, "dave", long)
	insertUser(t, conn, 3, "erin", codec.Sentinel)

	var raw string
	require.NoError(t, a.DB().QueryRowContext(ctx, "SELECT NOTE FROM USERS WHERE ID = 1").Scan(&raw))
	assert.True(t, strings.HasPrefix(raw, codec.BlobPrefix), raw)

	var blobs int
	require.NoError(t, a.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM BLOBS").Scan(&blobs))
	assert.Equal(t, 2, blobs, "identical content is stored once, the sentinel string once")

	res, err := conn.Execute(ctx, "SELECT id, note FROM {users} ORDER BY id", nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, long, rows[0]["NOTE"])
	assert.Equal(t, long, rows[1]["NOTE"])
	assert.Equal(t, codec.Sentinel, rows[2]["NOTE"])
}

func TestEndToEnd_MissingBlobFailsTheFetch(t *testing.T) {
	ctx := context.Background()
	a, conn := setupSite(t, map[string]any{"inline_limit": 64})

	insertUser(t, conn, 1, "carol", strings.Repeat("x", 5000))
	insertUser(t, conn, 2, "dave", "short")
	_, err := a.DB().ExecContext(ctx, "DELETE FROM BLOBS")
	require.NoError(t, err)

	res, err := conn.Execute(ctx, "SELECT id, note FROM {users} ORDER BY id", nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.Error(t, err, "a dangling blob reference must not end the result silently")
	assert.ErrorIs(t, err, codec.ErrBlobNotFound)
	assert.Empty(t, rows)
}

func TestEndToEnd_BinaryRoundTrip(t *testing.T) {
	ctx := context.Background()
	a, conn := setupSite(t, map[string]any{"inline_limit": 64})

	_, err := conn.Execute(ctx, "CREATE TABLE {files} (id INTEGER PRIMARY KEY, data BLOB)",
		nil, adapter.WithReturn(adapter.ReturnNull))
	require.NoError(t, err)

	values := [][]byte{
		[]byte(codec.Sentinel),
		[]byte(codec.BlobPrefix + "1"),
		[]byte("ok"),
		{},
		[]byte(strings.Repeat("\x01", 100)),
	}
	for i, v := range values {
		_, err := conn.Execute(ctx, "INSERT INTO {files} (id, data) VALUES (:id, :data)",
			[]any{sql.Named("id", i+1), sql.Named("data", v)}, adapter.WithReturn(adapter.ReturnNull))
		require.NoError(t, err)
	}

	var raw []byte
	require.NoError(t, a.DB().QueryRowContext(ctx, "SELECT DATA FROM FILES WHERE ID = 5").Scan(&raw))
	assert.True(t, strings.HasPrefix(string(raw), codec.BlobPrefix), "oversized binary is stored out of band")

	res, err := conn.Execute(ctx, "SELECT id, data FROM {files} ORDER BY id", nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)
	require.Len(t, rows, len(values))
	for i, v := range values {
		assert.Equal(t, v, rows[i]["DATA"], "row %d", i+1)
	}
}

func TestEndToEnd_LargeInList(t *testing.T) {
	ctx := context.Background()
	a, conn := setupSite(t, map[string]any{"in_max_size": 999})

	_, err := a.DB().ExecContext(ctx, `WITH RECURSIVE seq(x) AS (SELECT 1 UNION ALL SELECT x + 1 FROM seq WHERE x < 2000)
		INSERT INTO USERS (ID, NAME) SELECT x, 'user' || x FROM seq`)
	require.NoError(t, err)

	ids := make([]int, 1500)
	for i := range ids {
		ids[i] = i + 1
	}

	res, err := conn.Execute(ctx, "SELECT COUNT(*) AS total FROM {users} WHERE id IN (:ids)", []any{sql.Named("ids", ids)})
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(1500), rows[0]["TOTAL"])

	res, err = conn.Execute(ctx, "SELECT COUNT(*) AS total FROM {users} WHERE id NOT IN (?)", []any{ids})
	require.NoError(t, err)
	rows, err = res.Rows.All()
	require.NoError(t, err)
	assert.Equal(t, int64(500), rows[0]["TOTAL"])
}

func TestEndToEnd_Range(t *testing.T) {
	ctx := context.Background()
	_, conn := setupSite(t, nil)
	for i := 1; i <= 20; i++ {
		insertUser(t, conn, i, fmt.Sprintf("user%d", i), "")
	}

	res, err := conn.ExecuteRange(ctx, "SELECT id FROM {users} ORDER BY id", 10, 5, nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)

	var got []int64
	for _, row := range rows {
		got = append(got, row["ID"].(int64))
	}
	assert.Equal(t, []int64{11, 12, 13, 14, 15}, got)
}

func TestEndToEnd_Errors(t *testing.T) {
	ctx := context.Background()
	_, conn := setupSite(t, nil)
	insertUser(t, conn, 1, "alice", "")

	t.Run("constraint violation", func(t *testing.T) {
		_, err := conn.Execute(ctx, "INSERT INTO {users} (id, name) VALUES (?, ?)", []any{1, "again"},
			adapter.WithReturn(adapter.ReturnNull))
		require.Error(t, err)
		assert.True(t, adapter.IsConstraintViolation(err))

		var qerr *adapter.QueryError
		require.True(t, errors.As(err, &qerr))
		assert.Equal(t, `INSERT INTO "MAIN"."USERS" (ID, "NAME") VALUES (?, ?)`, qerr.Prepared)
	})

	t.Run("reported in result", func(t *testing.T) {
		res, err := conn.Execute(ctx, "INSERT INTO {users} (id, name) VALUES (?, ?)", []any{1, "again"},
			adapter.WithReturn(adapter.ReturnNull), adapter.WithoutErrors())
		require.NoError(t, err)
		assert.ErrorIs(t, res.Err, adapter.ErrConstraintViolation)
	})

	t.Run("incompatible syntax recovers", func(t *testing.T) {
		require.NoError(t, conn.RegisterIncompatibility("SHOW USERS", "SELECT COUNT(*) AS total FROM {users}"))
		res, err := conn.Execute(ctx, "SHOW USERS", nil)
		require.NoError(t, err)
		rows, err := res.Rows.All()
		require.NoError(t, err)
		assert.Equal(t, int64(1), rows[0]["TOTAL"])
	})
}

func TestEndToEnd_InsertIDAndTransactions(t *testing.T) {
	ctx := context.Background()
	_, conn := setupSite(t, nil)

	res, err := conn.Execute(ctx, "INSERT INTO {users} (name) VALUES (?)", []any{"first"},
		adapter.WithReturn(adapter.ReturnInsertID))
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.InsertID)

	require.NoError(t, conn.BeginTx(ctx, nil))
	res, err = conn.Execute(ctx, "INSERT INTO {users} (name) VALUES (?)", []any{strings.Repeat("z", 5000)},
		adapter.WithReturn(adapter.ReturnInsertID))
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.InsertID)
	require.NoError(t, conn.Rollback())

	res, err = conn.Execute(ctx, "SELECT COUNT(*) AS total FROM {users}", nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0]["TOTAL"])
}

func TestEndToEnd_QueryTemporary(t *testing.T) {
	ctx := context.Background()
	_, conn := setupSite(t, nil)
	for i := 1; i <= 3; i++ {
		insertUser(t, conn, i, fmt.Sprintf("user%d", i), "")
	}

	name, err := conn.QueryTemporary(ctx, "SELECT id FROM {users} WHERE id > ?", []any{1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "TMP_"), name)

	res, err := conn.Execute(ctx, "SELECT COUNT(*) AS total FROM "+name, nil)
	require.NoError(t, err)
	rows, err := res.Rows.All()
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows[0]["TOTAL"])
}

func TestEndToEnd_ConnectionIsolation(t *testing.T) {
	ctx := context.Background()
	a, _ := setupSite(t, map[string]any{"journal_mode": "wal"})

	const workers = 4
	conns := make([]*adapter.Conn, workers)
	for i := range conns {
		conn, err := a.NewConn(ctx)
		require.NoError(t, err)
		t.Cleanup(func() { _ = conn.Close() })
		conns[i] = conn
	}

	g, gctx := errgroup.WithContext(ctx)
	for w, conn := range conns {
		g.Go(func() error {
			for i := 0; i < 10; i++ {
				name := fmt.Sprintf("w%d-%d", w, i)
				res, err := conn.Execute(gctx, "INSERT INTO {users} (name) VALUES (?)", []any{name},
					adapter.WithReturn(adapter.ReturnInsertID))
				if err != nil {
					return err
				}

				check, err := conn.Execute(gctx, "SELECT name FROM {users} WHERE id = ?", []any{res.InsertID})
				if err != nil {
					return err
				}
				rows, err := check.Rows.All()
				if err != nil {
					return err
				}
				if len(rows) != 1 || rows[0]["NAME"] != name {
					return fmt.Errorf("insert id %d of %s resolved to %v", res.InsertID, name, rows)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	total := 0
	for _, conn := range conns {
		total += int(conn.Stats().TotalExecs)
	}
	assert.Equal(t, workers*10, total)
}
