package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sijms/go-ora/v2/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/longid"
)

func TestBuildOracleURL(t *testing.T) {
	tests := []struct {
		name     string
		config   adapter.Config
		contains []string
	}{
		{
			name:     "defaults",
			config:   adapter.Config{Database: "ORCLPDB1", Username: "scott", Password: "tiger"},
			contains: []string{"oracle://", "scott", "localhost:1521", "/ORCLPDB1"},
		},
		{
			name:     "custom host and port",
			config:   adapter.Config{Host: "db.example.com", Port: 1522, Database: "SITE", Username: "web"},
			contains: []string{"db.example.com:1522", "/SITE"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := buildOracleURL(tt.config)
			for _, s := range tt.contains {
				assert.Contains(t, url, s)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name    string
		input   map[string]any
		want    *Params
		wantErr bool
	}{
		{
			name:  "nil params returns empty struct",
			input: nil,
			want:  &Params{},
		},
		{
			name:  "legacy",
			input: map[string]any{"legacy": "true", "in_max_size": 500},
			want:  &Params{Legacy: true},
		},
		{
			name: "session settings",
			input: map[string]any{
				"session": map[string]any{"nls_date_format": "YYYY-MM-DD"},
			},
			want: &Params{Session: map[string]string{"nls_date_format": "YYYY-MM-DD"}},
		},
		{
			name:    "invalid session",
			input:   map[string]any{"session": []any{"x"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParams(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSessionStatements(t *testing.T) {
	got := sessionStatements(map[string]string{
		"nls_sort":        "BINARY_CI",
		"nls_date_format": "YYYY-MM-DD'T'HH24",
	})
	assert.Equal(t, []string{
		"ALTER SESSION SET NLS_DATE_FORMAT = 'YYYY-MM-DD''T''HH24'",
		"ALTER SESSION SET NLS_SORT = 'BINARY_CI'",
	}, got)
	assert.Empty(t, sessionStatements(nil))
}

func TestClassifyError(t *testing.T) {
	a := New(nil)

	tests := []struct {
		name string
		err  error
		want core.ErrorKind
	}{
		{"unique constraint", &network.OracleError{ErrCode: 1}, core.ErrorConstraintViolation},
		{"parent key not found", &network.OracleError{ErrCode: 2291}, core.ErrorConstraintViolation},
		{"identifier too long", &network.OracleError{ErrCode: 972}, core.ErrorIdentifierTooLong},
		{"missing expression", &network.OracleError{ErrCode: 936}, core.ErrorIncompatibleSyntax},
		{"table does not exist", &network.OracleError{ErrCode: 942}, core.ErrorBackend},
		{"wrapped", fmt.Errorf("exec: %w", &network.OracleError{ErrCode: 1}), core.ErrorConstraintViolation},
		{"message fallback", errors.New("ORA-00972: identifier is too long"), core.ErrorIdentifierTooLong},
		{"plain error", errors.New("connection reset"), core.ErrorBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.ClassifyError(tt.err))
		})
	}
}

func TestDialect(t *testing.T) {
	a := New(nil)
	assert.Equal(t, "oracle", a.Dialect().Name)

	a.params.Legacy = true
	assert.Equal(t, "oracle11", a.Dialect().Name)
	assert.Equal(t, 30, a.Dialect().MaxIdentifierLength)
}

func TestNewConn_SessionSettings(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	a := New(nil)
	a.Pool = db
	a.params = &Params{Session: map[string]string{"nls_sort": "BINARY_CI"}}

	mock.ExpectPrepare("ALTER SESSION SET NLS_SORT = 'BINARY_CI'").
		ExpectExec().
		WillReturnResult(sqlmock.NewResult(0, 0))

	conn, err := a.NewConn(ctx, adapter.WithIdentifierStore(longid.NewMemoryStore()))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	assert.Equal(t, "oracle", conn.Dialect().Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
