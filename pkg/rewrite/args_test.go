package rewrite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/leapstack-labs/portsql/pkg/dialects/oracle"
	"github.com/leapstack-labs/portsql/pkg/dialects/postgres"
	"github.com/leapstack-labs/portsql/pkg/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandArgs_Named(t *testing.T) {
	r := New(oracle.Oracle)

	query, args := r.ExpandArgs("SELECT * FROM {t} WHERE id IN (:ids) AND a = :a",
		[]any{sql.Named("ids", []int{1, 2, 3}), sql.Named("a", "x")})

	assert.Equal(t, "SELECT * FROM {t} WHERE id IN (:ids__0, :ids__1, :ids__2) AND a = :a", query)
	assert.Equal(t, []any{
		sql.Named("ids__0", 1),
		sql.Named("ids__1", 2),
		sql.Named("ids__2", 3),
		sql.Named("a", "x"),
	}, args)
}

func TestExpandArgs_EmptySlice(t *testing.T) {
	r := New(oracle.Oracle)

	query, args := r.ExpandArgs("SELECT * FROM {t} WHERE id IN (:ids)", []any{sql.Named("ids", []int{})})
	assert.Equal(t, "SELECT * FROM {t} WHERE id IN (NULL)", query)
	assert.Empty(t, args)
}

func TestExpandArgs_Positional(t *testing.T) {
	r := New(sqlite.SQLite)

	query, args := r.ExpandArgs("SELECT * FROM {t} WHERE a = ? AND id IN (?)",
		[]any{5, []string{"x", "y"}})
	assert.Equal(t, "SELECT * FROM {t} WHERE a = ? AND id IN (?, ?)", query)
	assert.Equal(t, []any{5, "x", "y"}, args)
}

func TestExpandArgs_BytesAreScalar(t *testing.T) {
	r := New(oracle.Oracle)

	in := []any{sql.Named("data", []byte("raw"))}
	query, args := r.ExpandArgs("UPDATE {t} SET data = :data", in)
	assert.Equal(t, "UPDATE {t} SET data = :data", query)
	assert.Equal(t, in, args)
}

func TestExpandArgs_SplitIn(t *testing.T) {
	r := New(oracle.Oracle, WithInListLimit(2))

	query, args := r.ExpandArgs("SELECT * FROM {t} n WHERE n.id IN (:ids)",
		[]any{sql.Named("ids", []int{1, 2, 3, 4, 5})})
	assert.Equal(t,
		"SELECT * FROM {t} n WHERE (n.id IN (:ids__0, :ids__1) OR n.id IN (:ids__2, :ids__3) OR n.id IN (:ids__4))",
		query)
	assert.Len(t, args, 5)
}

func TestExpandArgs_SplitNotIn(t *testing.T) {
	r := New(oracle.Oracle, WithInListLimit(2))

	query, _ := r.ExpandArgs("SELECT * FROM {t} WHERE id NOT IN (:ids)",
		[]any{sql.Named("ids", []string{"a", "b", "c"})})
	assert.Equal(t, "SELECT * FROM {t} WHERE (id NOT IN (:ids__0, :ids__1) AND id NOT IN (:ids__2))", query)
}

func TestExpandArgs_OracleLimit(t *testing.T) {
	r := New(oracle.Oracle)

	ids := make([]int, 1500)
	for i := range ids {
		ids[i] = i
	}
	query, args := r.ExpandArgs("SELECT * FROM {t} WHERE id IN (:ids)", []any{sql.Named("ids", ids)})

	require.Len(t, args, 1500)
	assert.Equal(t, 2, strings.Count(query, " IN ("))
	assert.Contains(t, query, ":ids__998) OR id IN (:ids__999, ")
	assert.True(t, strings.HasSuffix(query, fmt.Sprintf(":ids__%d))", 1499)))
}

func TestBind_Oracle(t *testing.T) {
	r := New(oracle.Oracle)

	query, args := r.Bind(context.Background(), "SELECT * FROM T WHERE A = ? AND B = ? AND \"UID\" = :db_uid",
		[]any{1, 2, sql.Named("uid", 3)})
	assert.Equal(t, `SELECT * FROM T WHERE A = :1 AND B = :2 AND "UID" = :db_uid`, query)
	assert.Equal(t, []any{1, 2, sql.Named("db_uid", 3)}, args)
}

func TestBind_PostgresNamed(t *testing.T) {
	r := New(postgres.Postgres)

	query, args := r.Bind(context.Background(), "select * from t where a = :a and b = :b or c = :a and d = 'x:y'",
		[]any{sql.Named("b", 2), sql.Named("a", 1), sql.Named("unused", 9)})
	assert.Equal(t, "select * from t where a = $1 and b = $2 or c = $1 and d = 'x:y'", query)
	assert.Equal(t, []any{1, 2}, args)
}

func TestBind_PostgresPositional(t *testing.T) {
	r := New(postgres.Postgres)

	query, args := r.Bind(context.Background(), "select * from t where a = ? and b = ? and c = x::text", []any{"a", "b"})
	assert.Equal(t, "select * from t where a = $1 and b = $2 and c = x::text", query)
	assert.Equal(t, []any{"a", "b"}, args)
}

func TestBind_SQLite(t *testing.T) {
	r := New(sqlite.SQLite)

	query, args := r.Bind(context.Background(), "SELECT * FROM T WHERE A = :a AND B = ?", []any{sql.Named(":a", 1), 2})
	assert.Equal(t, "SELECT * FROM T WHERE A = :a AND B = ?", query)
	assert.Equal(t, []any{sql.Named("a", 1), 2}, args)
}
