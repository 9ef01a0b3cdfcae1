package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	go_ora "github.com/sijms/go-ora/v2"
	"github.com/sijms/go-ora/v2/network"

	"github.com/leapstack-labs/portsql/pkg/adapter"
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
	"github.com/leapstack-labs/portsql/pkg/dialects/oracle"
)

// Adapter implements the adapter.Adapter interface for Oracle.
type Adapter struct {
	adapter.BaseSQLAdapter
	params *Params
}

// New creates a new Oracle adapter instance.
// If logger is nil, a discard logger is used.
func New(logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Adapter{
		BaseSQLAdapter: adapter.BaseSQLAdapter{Logger: logger},
		params:         &Params{},
	}
}

// Dialect returns the Oracle dialect, or the pre-12c one when configured.
func (a *Adapter) Dialect() *dialect.Dialect {
	if a.params.Legacy {
		return oracle.Legacy
	}
	return oracle.Oracle
}

// Connect establishes a connection to Oracle.
func (a *Adapter) Connect(ctx context.Context, cfg adapter.Config) error {
	params, err := parseParams(cfg.Params)
	if err != nil {
		return err
	}

	a.Logger.Debug("connecting to oracle",
		slog.String("host", cfg.Host),
		slog.String("service", cfg.Database),
		slog.Bool("legacy", params.Legacy))

	db, err := sql.Open("oracle", buildOracleURL(cfg))
	if err != nil {
		return fmt.Errorf("failed to open oracle connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping oracle: %w", err)
	}

	a.Pool = db
	a.Cfg = cfg
	a.params = params
	return nil
}

// NewConn pins one session and applies the configured session settings.
func (a *Adapter) NewConn(ctx context.Context, opts ...adapter.ConnOption) (*adapter.Conn, error) {
	conn, err := a.OpenConn(ctx, a.Dialect(), a.ClassifyError, opts...)
	if err != nil {
		return nil, err
	}

	for _, stmt := range sessionStatements(a.params.Session) {
		if _, err := conn.Execute(ctx, stmt, nil, adapter.WithReturn(adapter.ReturnNull)); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to apply session setting: %w", err)
		}
	}
	return conn, nil
}

// ClassifyError maps an Oracle error to its kind using the ORA code.
func (a *Adapter) ClassifyError(err error) core.ErrorKind {
	var oraErr *network.OracleError
	if !errors.As(err, &oraErr) {
		return a.Dialect().Classify(err)
	}
	switch oraErr.ErrCode {
	case 1, 2291, 2292:
		return core.ErrorConstraintViolation
	case 972:
		return core.ErrorIdentifierTooLong
	case 900, 907, 933, 936:
		return core.ErrorIncompatibleSyntax
	default:
		return core.ErrorBackend
	}
}

// buildOracleURL constructs a go-ora connection URL. Database is the service name.
func buildOracleURL(cfg adapter.Config) string {
	host := cfg.Host
	if host == "" {
		host = "localhost"
	}

	port := cfg.Port
	if port == 0 {
		port = 1521
	}

	return go_ora.BuildUrl(host, port, cfg.Database, cfg.Username, cfg.Password, cfg.Options)
}

// sessionStatements returns one ALTER SESSION statement per setting, sorted by name.
func sessionStatements(settings map[string]string) []string {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	stmts := make([]string, 0, len(names))
	for _, name := range names {
		value := strings.ReplaceAll(settings[name], "'", "''")
		stmts = append(stmts, fmt.Sprintf("ALTER SESSION SET %s = '%s'", strings.ToUpper(name), value))
	}
	return stmts
}

// Ensure Adapter implements adapter.Adapter interface
var _ adapter.Adapter = (*Adapter)(nil)
