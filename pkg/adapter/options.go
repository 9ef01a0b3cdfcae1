package adapter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/longid"
)

// InMaxSizeEnv overrides the dialect IN list limit for every connection.
const InMaxSizeEnv = "PORTSQL_IN_MAX_SIZE"

// DefaultSlowThreshold is the default duration above which a statement is slow.
const DefaultSlowThreshold = 100 * time.Millisecond

// DefaultStatementCacheSize caps the prepared statements kept per connection.
const DefaultStatementCacheSize = 256

type connOptions struct {
	prefix          string
	prefixes        map[string]string
	external        bool
	inListLimit     int
	inlineLimit     int
	paginationAlias string
	store           longid.Store
	logger          *slog.Logger
	classifier      func(error) core.ErrorKind
	bufferRows      bool
	slowThreshold   time.Duration
	slowHook        SlowQueryHook
	cacheSize       int
	closer          io.Closer
}

// ConnOption configures a Conn.
type ConnOption func(*connOptions)

// WithPrefix sets the default table prefix.
func WithPrefix(prefix string) ConnOption {
	return func(o *connOptions) { o.prefix = prefix }
}

// WithTablePrefixes sets per-table prefixes. The key "default" sets the default prefix.
func WithTablePrefixes(prefixes map[string]string) ConnOption {
	return func(o *connOptions) { o.prefixes = prefixes }
}

// WithExternal marks the schema as not owned by this connection. Long
// identifiers are neither aliased nor discovered and values are bound as is.
func WithExternal(external bool) ConnOption {
	return func(o *connOptions) { o.external = external }
}

// WithInListLimit overrides the dialect IN list limit. Zero disables splitting.
func WithInListLimit(n int) ConnOption {
	return func(o *connOptions) { o.inListLimit = n }
}

// WithInlineLimit overrides the largest string bound inline.
func WithInlineLimit(n int) ConnOption {
	return func(o *connOptions) { o.inlineLimit = n }
}

// WithPaginationAlias overrides the synthetic row number column of range queries.
func WithPaginationAlias(alias string) ConnOption {
	return func(o *connOptions) { o.paginationAlias = alias }
}

// WithIdentifierStore replaces the LONG_IDENTIFIERS table as the registry store.
func WithIdentifierStore(store longid.Store) ConnOption {
	return func(o *connOptions) { o.store = store }
}

// WithLogger sets the connection logger.
func WithLogger(logger *slog.Logger) ConnOption {
	return func(o *connOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClassifier replaces the dialect's message based error classification.
func WithClassifier(fn func(error) core.ErrorKind) ConnOption {
	return func(o *connOptions) { o.classifier = fn }
}

// WithBufferedRows reads every row before returning a result. Required by
// drivers that cannot run a blob lookup while a cursor is open.
func WithBufferedRows(buffer bool) ConnOption {
	return func(o *connOptions) { o.bufferRows = buffer }
}

// WithSlowThreshold sets the duration above which a statement counts as slow.
func WithSlowThreshold(d time.Duration) ConnOption {
	return func(o *connOptions) { o.slowThreshold = d }
}

// WithSlowQueryHook sets the function called for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) ConnOption {
	return func(o *connOptions) { o.slowHook = hook }
}

// WithStatementCacheSize caps the prepared statement cache.
func WithStatementCacheSize(n int) ConnOption {
	return func(o *connOptions) { o.cacheSize = n }
}

func withCloser(c io.Closer) ConnOption {
	return func(o *connOptions) { o.closer = c }
}

// Params holds the adapter-independent settings read from AdapterConfig.Params.
type Params struct {
	InMaxSize          int           `mapstructure:"in_max_size"`
	InlineLimit        int           `mapstructure:"inline_limit"`
	PaginationAlias    string        `mapstructure:"pagination_alias"`
	SlowThreshold      time.Duration `mapstructure:"slow_threshold"`
	BufferRows         bool          `mapstructure:"buffer_rows"`
	StatementCacheSize int           `mapstructure:"statement_cache_size"`
}

// ParseParams decodes adapter params. Unknown keys are left for the concrete adapter.
func ParseParams(params map[string]any) (*Params, error) {
	p := &Params{InMaxSize: -1}
	if len(params) == 0 {
		return p, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}
	return p, nil
}

// ConfigOptions converts an adapter configuration into connection options.
// The PORTSQL_IN_MAX_SIZE environment variable wins over in_max_size.
func ConfigOptions(cfg core.AdapterConfig) ([]ConnOption, error) {
	params, err := ParseParams(cfg.Params)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv(InMaxSizeEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid %s %q: %w", InMaxSizeEnv, v, err)
		}
		params.InMaxSize = n
	}

	opts := []ConnOption{
		WithPrefix(cfg.Prefix),
		WithTablePrefixes(cfg.Prefixes),
		WithExternal(cfg.External),
		WithBufferedRows(params.BufferRows),
	}
	if params.InMaxSize >= 0 {
		opts = append(opts, WithInListLimit(params.InMaxSize))
	}
	if params.InlineLimit > 0 {
		opts = append(opts, WithInlineLimit(params.InlineLimit))
	}
	if params.PaginationAlias != "" {
		opts = append(opts, WithPaginationAlias(params.PaginationAlias))
	}
	if params.SlowThreshold > 0 {
		opts = append(opts, WithSlowThreshold(params.SlowThreshold))
	}
	if params.StatementCacheSize > 0 {
		opts = append(opts, WithStatementCacheSize(params.StatementCacheSize))
	}
	return opts, nil
}

// ReturnMode selects what Execute produces.
type ReturnMode int

const (
	// ReturnNull produces nothing.
	ReturnNull ReturnMode = iota
	// ReturnStatement produces a live cursor over the decoded rows.
	ReturnStatement
	// ReturnAffected produces the number of affected rows.
	ReturnAffected
	// ReturnInsertID produces the last value generated by a sequence.
	ReturnInsertID
)

// String returns the string representation of ReturnMode.
func (m ReturnMode) String() string {
	switch m {
	case ReturnNull:
		return "null"
	case ReturnStatement:
		return "statement"
	case ReturnAffected:
		return "affected"
	case ReturnInsertID:
		return "insert-id"
	default:
		return "unknown"
	}
}

type execOptions struct {
	mode     ReturnMode
	sequence string
	throw    bool
}

// ExecOption configures one Execute call.
type ExecOption func(*execOptions)

// WithReturn selects the return mode. The default is ReturnStatement.
func WithReturn(mode ReturnMode) ExecOption {
	return func(o *execOptions) { o.mode = mode }
}

// WithSequence names the sequence read by ReturnInsertID.
func WithSequence(sequence string) ExecOption {
	return func(o *execOptions) { o.sequence = sequence }
}

// WithoutErrors reports failures in Result.Err instead of the returned error.
func WithoutErrors() ExecOption {
	return func(o *execOptions) { o.throw = false }
}

func newExecOptions(opts []ExecOption) execOptions {
	o := execOptions{mode: ReturnStatement, throw: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
