// Package codec encodes bind arguments before execution and reverses that
// encoding on fetched rows.
//
// Empty strings travel as the one-character Sentinel. Strings and byte slices
// above the inline limit, and caller values that would otherwise be mistaken
// for an encoded value, are stored once in the BLOBS table and bound as
// BlobPrefix<id>. Decoding also drops the pagination alias column and renames
// long identifier alias columns back to their registered names.
package codec

import (
	"context"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/leapstack-labs/portsql/pkg/dialect"
	"github.com/leapstack-labs/portsql/pkg/pagination"
)

const (
	// Sentinel stands in for the empty string.
	Sentinel = "^"
	// BlobPrefix starts a blob reference.
	BlobPrefix = "B^#"
	// InlineLimit is the largest string bound inline, in bytes.
	InlineLimit = 4000
	// BlobTable stores out-of-band values.
	BlobTable = "BLOBS"
	// BlobSequence issues blob ids on dialects with sequences.
	BlobSequence = "BLOBS_SEQ"
)

// Row is one fetched row keyed by column name.
type Row = map[string]any

// Column describes how a fetched column is presented to callers.
type Column struct {
	Name string
	Drop bool
}

// Querier is the subset of *sql.DB and *sql.Tx the codec needs.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB can open the transaction a blob write runs in.
type DB interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Names maps a long identifier alias back to its registered name.
type Names interface {
	Original(ctx context.Context, alias string) (string, bool)
}

// Codec encodes and decodes values for one connection.
type Codec struct {
	db          DB
	tx          Querier
	d           *dialect.Dialect
	names       Names
	external    bool
	inlineLimit int
	alias       string
	logger      *slog.Logger
}

// Option configures a Codec.
type Option func(*Codec)

// WithNames sets the long identifier lookup used to rename columns.
func WithNames(n Names) Option {
	return func(c *Codec) { c.names = n }
}

// WithExternal turns value encoding off for foreign schemas.
func WithExternal(external bool) Option {
	return func(c *Codec) { c.external = external }
}

// WithInlineLimit overrides InlineLimit.
func WithInlineLimit(n int) Option {
	return func(c *Codec) {
		if n > 0 {
			c.inlineLimit = n
		}
	}
}

// WithPaginationAlias overrides the synthetic column dropped from rows.
func WithPaginationAlias(alias string) Option {
	return func(c *Codec) {
		if alias != "" {
			c.alias = alias
		}
	}
}

// WithLogger sets the codec logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a codec that stores blobs through db using dialect d.
func New(db DB, d *dialect.Dialect, opts ...Option) *Codec {
	c := &Codec{
		db:          db,
		d:           d,
		inlineLimit: InlineLimit,
		alias:       pagination.DefaultAlias,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// In returns a copy of the codec whose blob writes join tx.
func (c *Codec) In(tx Querier) *Codec {
	cp := *c
	cp.tx = tx
	return &cp
}

// External reports whether value encoding is off.
func (c *Codec) External() bool {
	return c.external
}

// EncodeArg encodes one bind argument. sql.NamedArg values are encoded in place.
func (c *Codec) EncodeArg(ctx context.Context, v any) (any, error) {
	if c.external {
		return v, nil
	}

	switch x := v.(type) {
	case sql.NamedArg:
		enc, err := c.EncodeArg(ctx, x.Value)
		if err != nil {
			return nil, err
		}
		return sql.Named(x.Name, enc), nil
	case string:
		return c.encodeString(ctx, x)
	case *string:
		if x == nil {
			return nil, nil
		}
		return c.encodeString(ctx, *x)
	case []byte:
		return c.encodeBytes(ctx, x)
	default:
		return v, nil
	}
}

// EncodeArgs encodes every argument.
func (c *Codec) EncodeArgs(ctx context.Context, args []any) ([]any, error) {
	if c.external || len(args) == 0 {
		return args, nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		enc, err := c.EncodeArg(ctx, a)
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func (c *Codec) encodeString(ctx context.Context, s string) (any, error) {
	if s == "" {
		return Sentinel, nil
	}
	if len(s) <= c.inlineLimit && s != Sentinel && !strings.HasPrefix(s, BlobPrefix) {
		return s, nil
	}
	id, err := c.StoreBlob(ctx, []byte(s))
	if err != nil {
		return nil, err
	}
	return BlobPrefix + strconv.FormatInt(id, 10), nil
}

// encodeBytes applies the string rules to binary values and keeps them
// binary: the sentinel and blob references are bound as []byte.
func (c *Codec) encodeBytes(ctx context.Context, b []byte) (any, error) {
	if b == nil {
		return b, nil
	}
	if len(b) == 0 {
		return []byte(Sentinel), nil
	}
	s := string(b)
	if len(b) <= c.inlineLimit && s != Sentinel && !strings.HasPrefix(s, BlobPrefix) {
		return b, nil
	}
	id, err := c.StoreBlob(ctx, b)
	if err != nil {
		return nil, err
	}
	return []byte(BlobPrefix + strconv.FormatInt(id, 10)), nil
}

// DecodeValue reverses EncodeArg on a fetched value.
func (c *Codec) DecodeValue(ctx context.Context, v any) (any, error) {
	if c.external {
		return v, nil
	}

	switch x := v.(type) {
	case string:
		return c.decodeString(ctx, x)
	case []byte:
		if string(x) == Sentinel {
			return []byte{}, nil
		}
		if id, ok := ParseBlobRef(string(x)); ok {
			return c.LoadBlob(ctx, id)
		}
		return x, nil
	case Row:
		return c.DecodeRow(ctx, x)
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			dec, err := c.DecodeValue(ctx, item)
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil
	default:
		return v, nil
	}
}

func (c *Codec) decodeString(ctx context.Context, s string) (any, error) {
	if s == Sentinel {
		return "", nil
	}
	if id, ok := ParseBlobRef(s); ok {
		content, err := c.LoadBlob(ctx, id)
		if err != nil {
			return nil, err
		}
		return string(content), nil
	}
	return s, nil
}

// DecodeRow drops the pagination alias, renames long identifier columns and
// decodes every value, recursing into nested rows and slices.
func (c *Codec) DecodeRow(ctx context.Context, row Row) (Row, error) {
	out := make(Row, len(row))
	for name, v := range row {
		col := c.column(ctx, name)
		if col.Drop {
			continue
		}
		dec, err := c.DecodeValue(ctx, v)
		if err != nil {
			return nil, fmt.Errorf("failed to decode column %s: %w", name, err)
		}
		out[col.Name] = dec
	}
	return out, nil
}

// DecodeColumns maps fetched column names to the names callers see.
func (c *Codec) DecodeColumns(ctx context.Context, cols []string) []Column {
	out := make([]Column, len(cols))
	for i, name := range cols {
		out[i] = c.column(ctx, name)
	}
	return out
}

func (c *Codec) column(ctx context.Context, name string) Column {
	if strings.EqualFold(name, c.alias) {
		return Column{Name: name, Drop: true}
	}
	if c.names != nil && !c.external {
		if orig, ok := c.names.Original(ctx, name); ok {
			return Column{Name: orig}
		}
	}
	return Column{Name: name}
}

// StoreBlob returns the id of the blob holding content, creating it when no
// blob with the same hash exists.
func (c *Codec) StoreBlob(ctx context.Context, content []byte) (int64, error) {
	hash := Hash(content)

	var id int64
	query := fmt.Sprintf("SELECT ID FROM %s WHERE HASH = %s", BlobTable, c.d.FormatPlaceholder(1))
	err := c.querier().QueryRowContext(ctx, query, hash).Scan(&id)
	switch {
	case err == nil:
		return id, nil
	case !errors.Is(err, sql.ErrNoRows):
		return 0, fmt.Errorf("failed to look up blob: %w", err)
	}

	if c.tx != nil {
		return c.createBlob(ctx, c.tx, hash, content)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin blob transaction: %w", err)
	}
	id, err = c.createBlob(ctx, tx, hash, content)
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit blob: %w", err)
	}
	return id, nil
}

// createBlob reserves a row with empty content, then writes content by id.
func (c *Codec) createBlob(ctx context.Context, q Querier, hash string, content []byte) (int64, error) {
	empty := c.d.EmptyBlob
	if empty == "" {
		empty = "NULL"
	}

	var id int64
	if next := c.d.NextValueSQL(BlobSequence); next != "" {
		if err := q.QueryRowContext(ctx, next).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to draw from %s: %w", BlobSequence, err)
		}
		insert := fmt.Sprintf("INSERT INTO %s (ID, HASH, CONTENT) VALUES (%s, %s, %s)",
			BlobTable, c.d.FormatPlaceholder(1), c.d.FormatPlaceholder(2), empty)
		if _, err := q.ExecContext(ctx, insert, id, hash); err != nil {
			return 0, fmt.Errorf("failed to insert blob: %w", err)
		}
	} else {
		insert := fmt.Sprintf("INSERT INTO %s (HASH, CONTENT) VALUES (%s, %s) RETURNING ID",
			BlobTable, c.d.FormatPlaceholder(1), empty)
		if err := q.QueryRowContext(ctx, insert, hash).Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to insert blob: %w", err)
		}
	}

	update := fmt.Sprintf("UPDATE %s SET CONTENT = %s WHERE ID = %s",
		BlobTable, c.d.FormatPlaceholder(1), c.d.FormatPlaceholder(2))
	if _, err := q.ExecContext(ctx, update, content, id); err != nil {
		return 0, fmt.Errorf("failed to write blob %d: %w", id, err)
	}

	c.logger.Debug("stored blob", slog.Int64("id", id), slog.Int("bytes", len(content)))
	return id, nil
}

// ErrBlobNotFound is returned when a fetched blob reference has no row in
// BlobTable.
var ErrBlobNotFound = errors.New("blob not found")

// LoadBlob returns the content of blob id.
func (c *Codec) LoadBlob(ctx context.Context, id int64) ([]byte, error) {
	var content []byte
	query := fmt.Sprintf("SELECT CONTENT FROM %s WHERE ID = %s", BlobTable, c.d.FormatPlaceholder(1))
	err := c.querier().QueryRowContext(ctx, query, id).Scan(&content)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("blob %d: %w", id, ErrBlobNotFound)
	case err != nil:
		return nil, fmt.Errorf("failed to load blob %d: %w", id, err)
	}
	if content == nil {
		content = []byte{}
	}
	return content, nil
}

func (c *Codec) querier() Querier {
	if c.tx != nil {
		return c.tx
	}
	return c.db
}

// Hash returns the hex BLAKE2b-256 digest of content.
func Hash(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// ParseBlobRef extracts the id from a blob reference.
func ParseBlobRef(s string) (int64, bool) {
	if !strings.HasPrefix(s, BlobPrefix) {
		return 0, false
	}
	id, err := strconv.ParseInt(s[len(BlobPrefix):], 10, 64)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
