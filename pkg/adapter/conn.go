package adapter

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/portsql/pkg/codec"
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
	"github.com/leapstack-labs/portsql/pkg/longid"
	"github.com/leapstack-labs/portsql/pkg/pagination"
	"github.com/leapstack-labs/portsql/pkg/rewrite"
)

// Handle is the subset of *sql.DB and *sql.Conn a Conn runs statements on.
type Handle interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Escaper escapes names for callers that build SQL text by hand.
type Escaper interface {
	EscapeName(name string) string
	EscapeField(field string) string
	EscapeAlias(alias string) string
	EscapeTable(table string) string
	SequenceName(table, field string) string
}

// Conn runs portable queries on one backend session. It owns one long
// identifier registry, one value codec, one rewriter and one statement cache.
// A Conn runs one statement at a time; callers sharing it across goroutines
// must serialize access themselves.
type Conn struct {
	handle   Handle
	d        *dialect.Dialect
	registry *longid.Registry
	codec    *codec.Codec
	rewriter *rewrite.Rewriter
	stmts    *stmtCache
	stats    QueryStats
	logger   *slog.Logger
	classify func(error) core.ErrorKind
	external bool
	buffer   bool
	alias    string
	closer   io.Closer

	slowThreshold time.Duration
	slowHook      SlowQueryHook

	mu sync.Mutex
	tx *sql.Tx
}

// NewConn creates a connection running statements on h in dialect d.
func NewConn(h Handle, d *dialect.Dialect, opts ...ConnOption) *Conn {
	o := connOptions{
		inListLimit:   -1,
		logger:        slog.New(slog.DiscardHandler),
		slowThreshold: DefaultSlowThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Conn{
		handle:        h,
		d:             d,
		stmts:         newStmtCache(o.cacheSize),
		logger:        o.logger,
		classify:      o.classifier,
		external:      o.external,
		buffer:        o.bufferRows,
		alias:         o.paginationAlias,
		closer:        o.closer,
		slowThreshold: o.slowThreshold,
		slowHook:      o.slowHook,
	}
	if c.classify == nil {
		c.classify = d.Classify
	}
	if c.alias == "" {
		c.alias = pagination.DefaultAlias
	}
	if c.slowHook == nil {
		c.slowHook = LogSlowQueries(o.logger)
	}

	store := o.store
	if store == nil {
		store = longid.NewSQLStore(connQuerier{c}, d)
	}
	c.registry = longid.New(store, d, longid.WithLogger(o.logger))
	c.registry.OnChange(func() {
		if err := c.stmts.clear(); err != nil {
			c.logger.Debug("failed to close cached statements", slog.String("error", err.Error()))
		}
	})

	c.codec = codec.New(connQuerier{c}, d,
		codec.WithNames(c.registry),
		codec.WithExternal(o.external),
		codec.WithInlineLimit(o.inlineLimit),
		codec.WithPaginationAlias(c.alias),
		codec.WithLogger(o.logger),
	)

	rwOpts := []rewrite.Option{
		rewrite.WithPrefix(o.prefix),
		rewrite.WithTablePrefixes(o.prefixes),
		rewrite.WithExternal(o.external),
		rewrite.WithIdentifiers(c.registry),
		rewrite.WithLogger(o.logger),
	}
	if o.inListLimit >= 0 {
		rwOpts = append(rwOpts, rewrite.WithInListLimit(o.inListLimit))
	}
	c.rewriter = rewrite.New(d, rwOpts...)
	return c
}

// Execute runs query with args. Slice-valued args are expanded into one
// marker per element before the query is rewritten. A rejected statement is
// retried at most once with the registered incompatibility rewrites and at
// most once after registering the over-length names it contains.
func (c *Conn) Execute(ctx context.Context, query string, args []any, opts ...ExecOption) (*Result, error) {
	o := newExecOptions(opts)
	if o.mode == ReturnInsertID && o.sequence == "" && c.d.RequiresSequence() {
		return nil, fmt.Errorf("%w: %s needs a sequence for the insert id", ErrSequenceRequired, c.d.Name)
	}
	if !c.external {
		c.registry.Load(ctx)
	}

	text, expanded := c.rewriter.ExpandArgs(query, args)
	return c.run(ctx, query, text, expanded, o)
}

// ExecuteRange runs query restricted to rows offset+1 through offset+limit.
func (c *Conn) ExecuteRange(ctx context.Context, query string, offset, limit int, args []any, opts ...ExecOption) (*Result, error) {
	ranged := pagination.Range(query, offset, limit, c.d.Pagination, c.alias)
	return c.Execute(ctx, ranged, args, opts...)
}

func (c *Conn) run(ctx context.Context, original, text string, args []any, o execOptions) (*Result, error) {
	var compatRetried, longRetried bool
	for {
		prepared, res, err := c.attempt(ctx, text, args, o)
		if err == nil {
			return res, nil
		}
		kind := c.classify(err)

		if !compatRetried {
			if fixed, ok := c.rewriter.ApplyIncompatibilities(text); ok {
				compatRetried = true
				c.stats.Retries.Add(1)
				c.logger.Debug("retrying with incompatibility rewrites",
					slog.String("query", prepared), slog.String("error", err.Error()))
				text = fixed
				continue
			}
		}

		if kind == core.ErrorIdentifierTooLong && !c.external && !longRetried {
			longRetried = true
			aliases, derr := c.registry.Discover(ctx, text)
			if derr != nil {
				c.logger.Warn("failed to register long identifiers", slog.String("error", derr.Error()))
			}
			if len(aliases) > 0 {
				c.stats.Retries.Add(1)
				c.logger.Debug("retrying with new long identifiers", slog.Any("aliases", aliases))
				continue
			}
		}

		if compatRetried && kind == core.ErrorBackend {
			kind = core.ErrorIncompatibleSyntax
		}
		c.stats.Errors.Add(1)
		qerr := &QueryError{Kind: kind, Query: original, Prepared: prepared, Args: args, Err: err}
		c.logger.Debug("query failed", slog.String("kind", kind.String()), slog.String("query", prepared))
		if !o.throw {
			return &Result{Err: qerr}, nil
		}
		return nil, qerr
	}
}

// attempt rewrites, binds, encodes and runs text once. It returns the final
// statement text for error reporting.
func (c *Conn) attempt(ctx context.Context, text string, args []any, o execOptions) (string, *Result, error) {
	final, bound := c.rewriter.Bind(ctx, c.rewriter.Rewrite(ctx, text), args)

	tx := c.activeTx()
	cd := c.codec
	if tx != nil {
		cd = cd.In(tx)
	}
	encoded, err := cd.EncodeArgs(ctx, bound)
	if err != nil {
		return final, nil, err
	}

	start := time.Now()
	if o.mode == ReturnStatement {
		var rows *sql.Rows
		if tx != nil {
			rows, err = tx.QueryContext(ctx, final, encoded...)
		} else {
			var stmt *sql.Stmt
			if stmt, err = c.stmts.get(ctx, c.handle, final); err == nil {
				rows, err = stmt.QueryContext(ctx, encoded...)
			}
		}
		c.record(ctx, final, encoded, start, true)
		if err != nil {
			return final, nil, err
		}
		r, err := newRows(ctx, rows, cd, c.buffer)
		if err != nil {
			return final, nil, err
		}
		return final, &Result{Rows: r}, nil
	}

	var res sql.Result
	if tx != nil {
		res, err = tx.ExecContext(ctx, final, encoded...)
	} else {
		var stmt *sql.Stmt
		if stmt, err = c.stmts.get(ctx, c.handle, final); err == nil {
			res, err = stmt.ExecContext(ctx, encoded...)
		}
	}
	c.record(ctx, final, encoded, start, false)
	if err != nil {
		return final, nil, err
	}

	out := &Result{}
	switch o.mode {
	case ReturnAffected:
		if out.RowsAffected, err = res.RowsAffected(); err != nil {
			return final, nil, fmt.Errorf("failed to read affected rows: %w", err)
		}
	case ReturnInsertID:
		if out.InsertID, err = c.LastInsertID(ctx, o.sequence); err != nil {
			return final, nil, err
		}
	}
	return final, out, nil
}

// LastInsertID returns the last value generated by sequence in this session.
// Backends without named sequences ignore sequence.
func (c *Conn) LastInsertID(ctx context.Context, sequence string) (int64, error) {
	if sequence == "" && c.d.RequiresSequence() {
		return 0, fmt.Errorf("%w: %s needs a sequence for the insert id", ErrSequenceRequired, c.d.Name)
	}
	query := c.rewriter.PrefixTables(ctx, c.d.CurrentValueSQL(sequence), false)

	var id int64
	if err := c.querier().QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to read last insert id: %w", err)
	}
	return id, nil
}

// Stmt is a prepared portable query.
type Stmt struct {
	c     *Conn
	query string
	final string
}

// Prepare rewrites query and prepares the result on the backend.
func (c *Conn) Prepare(ctx context.Context, query string) (*Stmt, error) {
	if !c.external {
		c.registry.Load(ctx)
	}
	final, _ := c.rewriter.Bind(ctx, c.rewriter.Rewrite(ctx, query), nil)
	if _, err := c.stmts.get(ctx, c.handle, final); err != nil {
		return nil, &QueryError{Kind: c.classify(err), Query: query, Prepared: final, Err: err}
	}
	return &Stmt{c: c, query: query, final: final}, nil
}

// Query returns the portable text of the statement.
func (s *Stmt) Query() string {
	return s.query
}

// SQL returns the rewritten text prepared on the backend.
func (s *Stmt) SQL() string {
	return s.final
}

// Execute runs the statement with args.
func (s *Stmt) Execute(ctx context.Context, args []any, opts ...ExecOption) (*Result, error) {
	return s.c.Execute(ctx, s.query, args, opts...)
}

// QueryTemporary stores the rows of query in a new temporary table and
// returns the table reference to use in later queries.
func (c *Conn) QueryTemporary(ctx context.Context, query string, args []any) (string, error) {
	name := "TMP_" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:20]
	table := name
	if c.d.PrefixedTemporaryTables() {
		table = "{" + name + "}"
	}

	if res, _ := c.Execute(ctx, "DROP TABLE "+table, nil, WithReturn(ReturnNull), WithoutErrors()); res != nil && res.Err != nil {
		c.logger.Debug("temporary table not dropped", slog.String("table", name))
	}
	if _, err := c.Execute(ctx, c.d.TemporaryTableSQL(table, query), args, WithReturn(ReturnNull)); err != nil {
		return "", fmt.Errorf("failed to create temporary table %s: %w", name, err)
	}
	return table, nil
}

// BeginTx starts a transaction. Statements run inside it until Commit or Rollback.
func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx != nil {
		return ErrTxActive
	}
	tx, err := c.handle.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	c.tx = tx
	return nil
}

// Commit commits the active transaction.
func (c *Conn) Commit() error {
	tx, err := c.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback aborts the active transaction.
func (c *Conn) Rollback() error {
	tx, err := c.takeTx()
	if err != nil {
		return err
	}
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("failed to roll back transaction: %w", err)
	}
	return nil
}

// InTx reports whether a transaction is active.
func (c *Conn) InTx() bool {
	return c.activeTx() != nil
}

func (c *Conn) takeTx() (*sql.Tx, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tx == nil {
		return nil, ErrNoTx
	}
	tx := c.tx
	c.tx = nil
	return tx, nil
}

func (c *Conn) activeTx() *sql.Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tx
}

func (c *Conn) querier() codec.Querier {
	if tx := c.activeTx(); tx != nil {
		return tx
	}
	return c.handle
}

// connQuerier routes support table statements into the active transaction.
type connQuerier struct {
	c *Conn
}

func (q connQuerier) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.c.querier().ExecContext(ctx, query, args...)
}

func (q connQuerier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.c.querier().QueryContext(ctx, query, args...)
}

func (q connQuerier) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return q.c.querier().QueryRowContext(ctx, query, args...)
}

func (q connQuerier) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return q.c.handle.BeginTx(ctx, opts)
}

// Dialect returns the connection dialect.
func (c *Conn) Dialect() *dialect.Dialect {
	return c.d
}

// Escaper returns the name escaper of the connection dialect.
func (c *Conn) Escaper() Escaper {
	return c.d
}

// RegisterIncompatibility adds a regular expression rewrite applied when the
// backend rejects a statement.
func (c *Conn) RegisterIncompatibility(pattern, replacement string) error {
	return c.rewriter.RegisterIncompatibility(pattern, replacement)
}

// Registry returns the long identifier registry.
func (c *Conn) Registry() *longid.Registry {
	return c.registry
}

// Rewriter returns the query rewriter.
func (c *Conn) Rewriter() *rewrite.Rewriter {
	return c.rewriter
}

// Codec returns the value codec.
func (c *Conn) Codec() *codec.Codec {
	return c.codec
}

// External reports whether the connection targets a foreign schema.
func (c *Conn) External() bool {
	return c.external
}

// Stats returns a snapshot of the statement statistics.
func (c *Conn) Stats() StatsSnapshot {
	return c.stats.Stats()
}

// ResetStats zeroes the statement statistics.
func (c *Conn) ResetStats() {
	c.stats.Reset()
}

// Close rolls back an active transaction, closes cached statements and
// releases the backend session.
func (c *Conn) Close() error {
	var errs []error
	if tx, err := c.takeTx(); err == nil {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, err)
		}
	}
	if err := c.stmts.clear(); err != nil {
		errs = append(errs, err)
	}
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
