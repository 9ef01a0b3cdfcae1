package codec

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/leapstack-labs/portsql/pkg/dialects/oracle"
	"github.com/leapstack-labs/portsql/pkg/dialects/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNames map[string]string

func (f fakeNames) Original(_ context.Context, alias string) (string, bool) {
	name, ok := f[strings.ToUpper(alias)]
	return name, ok
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestEncodeArg_Scalars(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)
	ctx := context.Background()

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"empty string", "", Sentinel},
		{"short string", "hello", "hello"},
		{"int", 5, 5},
		{"nil", nil, nil},
		{"bytes", []byte("raw"), []byte("raw")},
		{"named empty", sql.Named("title", ""), sql.Named("title", Sentinel)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.EncodeArg(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeArg_ExistingBlob(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)
	long := strings.Repeat("x", InlineLimit+1)

	mock.ExpectQuery("SELECT ID FROM BLOBS WHERE HASH = ?").
		WithArgs(Hash([]byte(long))).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(5))

	got, err := c.EncodeArg(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, "B^#5", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeArg_NewBlobOwnTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)
	long := strings.Repeat("y", InlineLimit+10)
	hash := Hash([]byte(long))

	mock.ExpectQuery("SELECT ID FROM BLOBS WHERE HASH = ?").
		WithArgs(hash).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO BLOBS (HASH, CONTENT) VALUES (?, X'') RETURNING ID").
		WithArgs(hash).
		WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(9))
	mock.ExpectExec("UPDATE BLOBS SET CONTENT = ? WHERE ID = ?").
		WithArgs([]byte(long), 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	got, err := c.EncodeArg(context.Background(), long)
	require.NoError(t, err)
	assert.Equal(t, "B^#9", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeArg_NewBlobAmbientTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	long := strings.Repeat("z", InlineLimit+1)
	hash := Hash([]byte(long))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT ID FROM BLOBS WHERE HASH = :1").
		WithArgs(hash).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery("SELECT BLOBS_SEQ.NEXTVAL FROM DUAL").
		WillReturnRows(sqlmock.NewRows([]string{"NEXTVAL"}).AddRow(11))
	mock.ExpectExec("INSERT INTO BLOBS (ID, HASH, CONTENT) VALUES (:1, :2, EMPTY_BLOB())").
		WithArgs(11, hash).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE BLOBS SET CONTENT = :1 WHERE ID = :2").
		WithArgs([]byte(long), 11).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	got, err := New(db, oracle.Oracle).In(tx).EncodeArg(ctx, long)
	require.NoError(t, err)
	assert.Equal(t, "B^#11", got)

	require.NoError(t, tx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeArg_SentinelCollision(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)

	for i, s := range []string{Sentinel, BlobPrefix + "7"} {
		mock.ExpectQuery("SELECT ID FROM BLOBS WHERE HASH = ?").
			WithArgs(Hash([]byte(s))).
			WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(i + 1)))
	}

	got, err := c.EncodeArg(context.Background(), Sentinel)
	require.NoError(t, err)
	assert.Equal(t, "B^#1", got)

	got, err = c.EncodeArg(context.Background(), BlobPrefix+"7")
	require.NoError(t, err)
	assert.Equal(t, "B^#2", got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeArg_Bytes(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)
	ctx := context.Background()
	long := []byte(strings.Repeat("b", InlineLimit+1))

	for i, b := range [][]byte{[]byte(Sentinel), []byte(BlobPrefix + "7"), long} {
		mock.ExpectQuery("SELECT ID FROM BLOBS WHERE HASH = ?").
			WithArgs(Hash(b)).
			WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(i + 1)))
	}

	got, err := c.EncodeArg(ctx, []byte(Sentinel))
	require.NoError(t, err)
	assert.Equal(t, []byte("B^#1"), got)

	got, err = c.EncodeArg(ctx, []byte(BlobPrefix+"7"))
	require.NoError(t, err)
	assert.Equal(t, []byte("B^#2"), got)

	got, err = c.EncodeArg(ctx, sql.Named("data", long))
	require.NoError(t, err)
	assert.Equal(t, sql.Named("data", []byte("B^#3")), got, "oversized binary is never bound inline")

	got, err = c.EncodeArg(ctx, []byte{})
	require.NoError(t, err)
	assert.Equal(t, []byte(Sentinel), got)

	got, err = c.EncodeArg(ctx, []byte(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte(nil), got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEncodeArgs_External(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite, WithExternal(true))

	args := []any{"", strings.Repeat("x", InlineLimit+1)}
	got, err := c.EncodeArgs(context.Background(), args)
	require.NoError(t, err)
	assert.Equal(t, args, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeValue(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)
	ctx := context.Background()

	binary := []byte{0x00, 0xff, 0x10}
	mock.ExpectQuery("SELECT CONTENT FROM BLOBS WHERE ID = ?").
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"CONTENT"}).AddRow(binary))

	got, err := c.DecodeValue(ctx, Sentinel)
	require.NoError(t, err)
	assert.Equal(t, "", got)

	got, err = c.DecodeValue(ctx, []byte(Sentinel))
	require.NoError(t, err)
	assert.Equal(t, []byte{}, got)

	got, err = c.DecodeValue(ctx, "B^#3")
	require.NoError(t, err)
	assert.Equal(t, string(binary), got)

	got, err = c.DecodeValue(ctx, int64(4))
	require.NoError(t, err)
	assert.Equal(t, int64(4), got)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDecodeRow(t *testing.T) {
	db, _ := newMockDB(t)
	c := New(db, oracle.Oracle, WithNames(fakeNames{"L#4": "some_very_long_column"}))

	row := Row{
		"TITLE":         Sentinel,
		"RWN_TO_REMOVE": int64(11),
		"L#4":           "value",
		"NESTED":        []any{Sentinel, Row{"rwn_to_remove": 1, "X": Sentinel}},
	}

	got, err := c.DecodeRow(context.Background(), row)
	require.NoError(t, err)
	assert.Equal(t, Row{
		"TITLE":                 "",
		"some_very_long_column": "value",
		"NESTED":                []any{"", Row{"X": ""}},
	}, got)
}

func TestDecodeColumns(t *testing.T) {
	db, _ := newMockDB(t)
	c := New(db, oracle.Oracle, WithNames(fakeNames{"L#4": "long_name"}))

	cols := c.DecodeColumns(context.Background(), []string{"ID", "L#4", "RWN_TO_REMOVE"})
	assert.Equal(t, []Column{
		{Name: "ID"},
		{Name: "long_name"},
		{Name: "RWN_TO_REMOVE", Drop: true},
	}, cols)
}

func TestRoundTrip(t *testing.T) {
	db, _ := newMockDB(t)
	c := New(db, sqlite.SQLite)
	ctx := context.Background()

	for _, s := range []string{"", "a", "with 'quotes'", "B^", "^^"} {
		enc, err := c.EncodeArg(ctx, s)
		require.NoError(t, err)
		dec, err := c.DecodeValue(ctx, enc)
		require.NoError(t, err)
		assert.Equal(t, s, dec, "round trip of %q", s)
	}
}

func TestRoundTrip_Bytes(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)
	ctx := context.Background()

	for i, b := range [][]byte{[]byte(Sentinel), []byte(BlobPrefix + "1")} {
		mock.ExpectQuery("SELECT ID FROM BLOBS WHERE HASH = ?").
			WithArgs(Hash(b)).
			WillReturnRows(sqlmock.NewRows([]string{"ID"}).AddRow(int64(i + 1)))
		mock.ExpectQuery("SELECT CONTENT FROM BLOBS WHERE ID = ?").
			WithArgs(int64(i + 1)).
			WillReturnRows(sqlmock.NewRows([]string{"CONTENT"}).AddRow(b))
	}

	for _, b := range [][]byte{[]byte(Sentinel), []byte(BlobPrefix + "1"), {}, []byte("ok")} {
		enc, err := c.EncodeArg(ctx, b)
		require.NoError(t, err)
		dec, err := c.DecodeValue(ctx, enc)
		require.NoError(t, err)
		assert.Equal(t, b, dec, "round trip of %q", b)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBlob_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	c := New(db, sqlite.SQLite)

	mock.ExpectQuery("SELECT CONTENT FROM BLOBS WHERE ID = ?").
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"CONTENT"}))

	_, err := c.DecodeValue(context.Background(), "B^#8")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBlobNotFound)
	assert.NotErrorIs(t, err, sql.ErrNoRows)
	assert.Contains(t, err.Error(), "blob 8")
}

func TestParseBlobRef(t *testing.T) {
	id, ok := ParseBlobRef("B^#42")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = ParseBlobRef("B^#")
	assert.False(t, ok)
	_, ok = ParseBlobRef("B^#x")
	assert.False(t, ok)
	_, ok = ParseBlobRef("42")
	assert.False(t, ok)
}

func TestHash(t *testing.T) {
	assert.Len(t, Hash([]byte("abc")), 64)
	assert.Equal(t, Hash([]byte("abc")), Hash([]byte("abc")))
	assert.NotEqual(t, Hash([]byte("abc")), Hash([]byte("abd")))
}
