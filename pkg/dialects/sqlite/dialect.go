// Package sqlite provides the SQLite SQL dialect definition.
//
// The dialect mirrors the Oracle naming rules (upper-case folding, the same
// column escapes) so that a local SQLite database behaves like the Oracle
// target for tests and development.
package sqlite

import (
	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/dialect"
)

func init() {
	dialect.Register(SQLite, "sqlite3")
}

// Config is the SQLite dialect configuration.
var Config = &core.DialectConfig{
	Name:        "sqlite",
	Placeholder: core.PlaceholderQuestion,
	Pagination:  core.PaginationLimitOffset,
	Identifiers: core.IdentifierConfig{
		Quote:         `"`,
		QuoteEnd:      `"`,
		Escape:        `""`,
		Normalization: core.NormUppercase,
	},
}

var sqliteReservedWords = []string{
	"ABORT", "ACTION", "ADD", "AFTER", "ALL", "ALTER", "ANALYZE", "AND", "AS",
	"ASC", "ATTACH", "AUTOINCREMENT", "BEFORE", "BEGIN", "BETWEEN", "BY",
	"CASCADE", "CASE", "CAST", "CHECK", "COLLATE", "COLUMN", "COMMIT",
	"CONFLICT", "CONSTRAINT", "CREATE", "CROSS", "CURRENT_DATE",
	"CURRENT_TIME", "CURRENT_TIMESTAMP", "DATABASE", "DEFAULT", "DELETE",
	"DESC", "DETACH", "DISTINCT", "DROP", "EACH", "ELSE", "END", "ESCAPE",
	"EXCEPT", "EXISTS", "FOREIGN", "FROM", "GROUP", "HAVING", "IN", "INDEX",
	"INSERT", "INTERSECT", "INTO", "IS", "ISNULL", "JOIN", "LIKE", "LIMIT",
	"NOT", "NOTNULL", "NULL", "OF", "OFFSET", "ON", "OR", "ORDER", "PRIMARY",
	"REFERENCES", "SELECT", "SET", "TABLE", "THEN", "TO", "TRANSACTION",
	"UNION", "UNIQUE", "UPDATE", "USING", "VALUES", "WHEN", "WHERE",
}

// SQLite is the SQLite dialect.
var SQLite = dialect.New(Config).
	IdentifierChars("$").
	EmptyBlob("X''").
	WithReservedWords(sqliteReservedWords...).
	WordEscapes("uid", "session", "file", "access", "mode", "comment", "desc", "size", "name").
	DMLWordEscapes("date").
	SystemPrefixes("SQLITE_").
	Compatibility("TRUNCATE TABLE", "DELETE FROM").
	Compatibility("SHOW TABLES", "SELECT name FROM sqlite_master WHERE type = 'table'").
	ErrorMarkers(core.ErrorConstraintViolation, "constraint failed").
	ErrorMarkers(core.ErrorIncompatibleSyntax, "syntax error").
	Sequences("", "", "SELECT last_insert_rowid()").
	TemporaryTables("CREATE TEMP TABLE %s AS %s", false).
	Build()
