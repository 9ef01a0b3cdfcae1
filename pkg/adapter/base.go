package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

// BaseSQLAdapter provides common database/sql functionality for adapters.
// Embed this struct in concrete adapter implementations to get standard
// Close, Exec and connection handling.
type BaseSQLAdapter struct {
	Pool   *sql.DB
	Cfg    core.AdapterConfig
	Logger *slog.Logger
}

// DB returns the underlying pool.
func (b *BaseSQLAdapter) DB() *sql.DB {
	return b.Pool
}

// Close closes the database connection.
func (b *BaseSQLAdapter) Close() error {
	if b.Pool != nil {
		if b.Logger != nil {
			b.Logger.Debug("closing database connection")
		}
		return b.Pool.Close()
	}
	return nil
}

// Exec executes a SQL statement as is, without rewriting.
func (b *BaseSQLAdapter) Exec(ctx context.Context, sqlStr string) error {
	if b.Pool == nil {
		return ErrNotConnected
	}
	_, err := b.Pool.ExecContext(ctx, sqlStr)
	if err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	return nil
}

// IsConnected returns true if the database connection is established.
func (b *BaseSQLAdapter) IsConnected() bool {
	return b.Pool != nil
}

// OpenConn pins one session from the pool and wraps it in a Conn for dialect
// d. The Conn closes the session. classify may be nil.
func (b *BaseSQLAdapter) OpenConn(ctx context.Context, d *dialect.Dialect, classify func(error) core.ErrorKind, opts ...ConnOption) (*Conn, error) {
	if b.Pool == nil {
		return nil, ErrNotConnected
	}

	cfgOpts, err := ConfigOptions(b.Cfg)
	if err != nil {
		return nil, err
	}

	session, err := b.Pool.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	all := append(cfgOpts, WithLogger(b.Logger), withCloser(session))
	if classify != nil {
		all = append(all, WithClassifier(classify))
	}
	all = append(all, opts...)
	return NewConn(session, d, all...), nil
}
