// Package adapter runs portable queries against a database backend.
//
// A Conn owns the per-session state of the translation layer: the long
// identifier registry, the value codec, the rewriter and the prepared
// statement cache. Concrete backends are in pkg/adapters/ subdirectories and
// register themselves by name.
package adapter

import (
	"context"
	"database/sql"

	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

// Config is an alias for core.AdapterConfig.
type Config = core.AdapterConfig

// Adapter connects to one backend and hands out connections.
type Adapter interface {
	// Connect opens the database pool using the provided config.
	Connect(ctx context.Context, cfg Config) error

	// Close closes the database pool and releases resources.
	Close() error

	// DB returns the underlying pool, or nil before Connect.
	DB() *sql.DB

	// Dialect returns the SQL dialect of the backend.
	Dialect() *dialect.Dialect

	// ClassifyError maps a driver error to its kind.
	ClassifyError(err error) core.ErrorKind

	// NewConn pins one backend session and wraps it in a Conn. Options are
	// applied after the ones derived from the config.
	NewConn(ctx context.Context, opts ...ConnOption) (*Conn, error)
}
