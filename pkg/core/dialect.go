package core

// DialectConfig holds the static configuration for a SQL dialect.
// This is pure data — no rewrite rules.
//
// The runtime behavior (reserved words, escape sets, compatibility rules)
// lives in pkg/dialect.Dialect, which carries these settings.
type DialectConfig struct {
	// Name is the dialect identifier (e.g., "oracle", "postgres")
	Name string

	// Identifiers defines quoting and normalization rules
	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("public" for Postgres, "" for Oracle)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// Pagination selects the row windowing syntax for range queries
	Pagination PaginationStyle

	// MaxIdentifierLength is the longest identifier the backend accepts (bytes).
	MaxIdentifierLength int

	// InListLimit is the largest element count allowed in one IN list (0 = unlimited).
	InListLimit int

	// DualTable is appended as FROM source to a SELECT without FROM ("" = not needed).
	DualTable string

	// NoOpStatement replaces statements the backend cannot run ("" = keep).
	NoOpStatement string

	// Upsert selects how insert-or-update statements are written.
	Upsert UpsertStyle
}

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Oracle).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly (MySQL, ClickHouse).
	NormCaseSensitive
	// NormCaseInsensitive normalizes to lowercase for comparison only.
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for positional parameters (SQLite, MySQL).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
	// PlaceholderNamed uses :name and :1, :2 markers (Oracle).
	PlaceholderNamed
)

// PaginationStyle defines how a range query is windowed.
type PaginationStyle int

const (
	// PaginationLimitOffset appends LIMIT n [OFFSET o].
	PaginationLimitOffset PaginationStyle = iota
	// PaginationOffsetFetch appends [OFFSET o ROWS] FETCH FIRST|NEXT n ROWS ONLY.
	PaginationOffsetFetch
	// PaginationRowNum wraps the query in ROWNUM subqueries with a synthetic column.
	PaginationRowNum
)

// String returns the string representation of PaginationStyle.
func (p PaginationStyle) String() string {
	switch p {
	case PaginationLimitOffset:
		return "limit-offset"
	case PaginationOffsetFetch:
		return "offset-fetch"
	case PaginationRowNum:
		return "rownum"
	default:
		return "unknown"
	}
}

// UpsertStyle defines how an insert-or-update statement is written.
type UpsertStyle int

const (
	// UpsertOnConflict uses INSERT ... ON CONFLICT (keys) DO UPDATE (PostgreSQL, SQLite).
	UpsertOnConflict UpsertStyle = iota
	// UpsertMerge uses MERGE INTO ... USING the single-row table (Oracle).
	UpsertMerge
)

// String returns the string representation of UpsertStyle.
func (u UpsertStyle) String() string {
	switch u {
	case UpsertOnConflict:
		return "on-conflict"
	case UpsertMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}

// ErrorKind classifies a backend failure.
type ErrorKind int

const (
	// ErrorBackend is any failure without a more specific kind.
	ErrorBackend ErrorKind = iota
	// ErrorIncompatibleSyntax means the backend rejected a construct it does not support.
	ErrorIncompatibleSyntax
	// ErrorIdentifierTooLong means the backend rejected an over-length name.
	ErrorIdentifierTooLong
	// ErrorConstraintViolation means a uniqueness or integrity constraint failed.
	ErrorConstraintViolation
)

// String returns the string representation of ErrorKind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorBackend:
		return "backend"
	case ErrorIncompatibleSyntax:
		return "incompatible syntax"
	case ErrorIdentifierTooLong:
		return "identifier too long"
	case ErrorConstraintViolation:
		return "constraint violation"
	default:
		return "unknown"
	}
}
