// Package postgres provides the PostgreSQL SQL dialect definition. It has no
// driver dependency.
package postgres

import (
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

func init() {
	dialect.Register(Postgres, "postgresql", "pg")
}

// Config is the PostgreSQL dialect configuration. Unquoted names fold to
// lower case and identifiers stop at NAMEDATALEN - 1 bytes.
var Config = &core.DialectConfig{
	Name:          "postgres",
	DefaultSchema: "public",
	Placeholder:   core.PlaceholderDollar,
	Pagination:    core.PaginationLimitOffset,
	Upsert:        core.UpsertOnConflict,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormLowercase,
	},
	MaxIdentifierLength: 63,
}

// Words that must be quoted when used as column names. pg_get_keywords()
// has the full list; these are the reserved ones.
var postgresReservedWords = []string{
	"user", "order", "group", "table", "select", "from", "where", "index",
	"all", "and", "any", "array", "as", "asc", "asymmetric", "authorization",
	"between", "binary", "both", "case", "cast", "check", "collate", "column",
	"constraint", "create", "cross", "current_catalog", "current_date",
	"current_role", "current_schema", "current_time", "current_timestamp",
	"current_user", "default", "deferrable", "desc", "distinct", "do", "else",
	"end", "except", "false", "fetch", "for", "foreign", "freeze", "full",
	"grant", "having", "ilike", "in", "initially", "inner", "intersect",
	"into", "is", "isnull", "join", "lateral", "leading", "left", "like",
	"limit", "localtime", "localtimestamp", "natural", "not", "notnull",
	"null", "offset", "on", "only", "or", "outer", "overlaps", "placing",
	"primary", "references", "returning", "right", "session_user", "similar",
	"some", "symmetric", "then", "to", "trailing", "true", "union", "unique",
	"using", "variadic", "verbose", "when", "window", "with",
}

// Postgres is the PostgreSQL dialect.
var Postgres = dialect.New(Config).
	IdentifierChars("$").
	RegexpFunction("REGEXP_LIKE").
	EmptyBlob("''::bytea").
	WithReservedWords(postgresReservedWords...).
	SystemPrefixes("PG_").
	Compatibility("IN ()", "= NULL").
	Compatibility("SELECT CONNECTION_ID()", "SELECT pg_backend_pid()").
	Compatibility("SHOW PROCESSLIST", "SELECT pid, usename, state, query FROM pg_stat_activity").
	Compatibility("SHOW TABLES", "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema()").
	ErrorMarkers(core.ErrorConstraintViolation, "(SQLSTATE 23").
	ErrorMarkers(core.ErrorIdentifierTooLong, "(SQLSTATE 42622)").
	ErrorMarkers(core.ErrorIncompatibleSyntax, "(SQLSTATE 42601)", "(SQLSTATE 42883)").
	Sequences("%s_%s_seq", "SELECT nextval('%s')", "SELECT lastval()").
	TemporaryTables("CREATE TEMPORARY TABLE %s AS %s", false).
	Build()
