// Package dialect provides SQL dialect configuration for query rewriting.
//
// This package contains the public contract for dialect definitions used by the
// rewriter, the long-identifier registry, the value codec and the execution
// controller. Concrete dialects are registered from pkg/dialects/*/ packages.
package dialect

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/core"
)

// CompatRule replaces a token sequence the backend has no equivalent for.
// Match is compared token by token, ignoring whitespace and the case of bare words.
type CompatRule struct {
	Match   string
	Replace string
}

type errorMarker struct {
	kind   core.ErrorKind
	marker string
}

// Dialect represents a SQL dialect configuration.
type Dialect struct {
	Name        string
	Identifiers core.IdentifierConfig

	// Database-specific settings
	DefaultSchema       string                // Default schema name ("public" for Postgres)
	Placeholder         core.PlaceholderStyle // How to format query parameters
	Pagination          core.PaginationStyle  // How range queries are windowed
	MaxIdentifierLength int                   // 0 means unlimited
	InListLimit         int                   // 0 means unlimited
	DualTable           string                // Single-row source for SELECT without FROM
	NoOpStatement       string                // Replacement for RELEASE SAVEPOINT
	Upsert              core.UpsertStyle      // How insert-or-update is written
	RegexpFunction      string                // Function form of (a REGEXP b)
	EmptyBlob           string                // Expression for an empty binary value

	reservedWords  map[string]struct{} // All keywords that need quoting as identifiers
	bindEscapes    map[string]struct{} // Bind names the backend rejects
	wordEscapes    map[string]struct{} // Lower-case column names that collide with keywords
	dmlWordEscapes map[string]struct{} // Additional collisions outside DDL
	systemPrefixes []string            // Names generated by the backend itself
	identChars     string              // Extra characters allowed in bare identifiers
	compat         []CompatRule
	markers        []errorMarker

	sequenceName   string // fmt pattern: table, field
	nextValue      string // fmt pattern: sequence
	currentValue   string // fmt pattern: sequence (may ignore it)
	temporaryTable string // fmt pattern: table, query
	tempPrefixed   bool
}

// Config returns the pure data configuration for this dialect.
func (d *Dialect) Config() *core.DialectConfig {
	return &core.DialectConfig{
		Name:                d.Name,
		Identifiers:         d.Identifiers,
		DefaultSchema:       d.DefaultSchema,
		Placeholder:         d.Placeholder,
		Pagination:          d.Pagination,
		MaxIdentifierLength: d.MaxIdentifierLength,
		InListLimit:         d.InListLimit,
		DualTable:           d.DualTable,
		NoOpStatement:       d.NoOpStatement,
		Upsert:              d.Upsert,
	}
}

// GetName returns the dialect name.
func (d *Dialect) GetName() string {
	return d.Name
}

// NormalizeName normalizes an identifier according to dialect rules.
func (d *Dialect) NormalizeName(name string) string {
	switch d.Identifiers.Normalization {
	case core.NormUppercase:
		return strings.ToUpper(name)
	case core.NormLowercase, core.NormCaseInsensitive:
		return strings.ToLower(name)
	default: // NormCaseSensitive
		return name
	}
}

// FoldsCase reports whether unquoted words are folded by the backend.
func (d *Dialect) FoldsCase() bool {
	return d.Identifiers.Normalization == core.NormUppercase || d.Identifiers.Normalization == core.NormLowercase
}

// FormatPlaceholder returns a placeholder for the given parameter index (1-based).
func (d *Dialect) FormatPlaceholder(index int) string {
	switch d.Placeholder {
	case core.PlaceholderDollar:
		return "$" + strconv.Itoa(index)
	case core.PlaceholderNamed:
		return ":" + strconv.Itoa(index)
	default: // PlaceholderQuestion
		return "?"
	}
}

// IsReservedWord returns true if the word needs quoting when used as an identifier.
func (d *Dialect) IsReservedWord(word string) bool {
	_, ok := d.reservedWords[strings.ToUpper(word)]
	return ok
}

// QuoteIdentifier quotes an identifier using the dialect's quote characters.
func (d *Dialect) QuoteIdentifier(name string) string {
	// Escape any existing quote end characters in the name (e.g., ] -> ]])
	escaped := strings.ReplaceAll(name, d.Identifiers.QuoteEnd, d.Identifiers.Escape)
	return d.Identifiers.Quote + escaped + d.Identifiers.QuoteEnd
}

// QuoteIdentifierIfNeeded quotes an identifier only if it's a reserved word.
func (d *Dialect) QuoteIdentifierIfNeeded(name string) string {
	if d.IsReservedWord(name) {
		return d.QuoteIdentifier(name)
	}
	return name
}

// IsLongIdentifier reports whether name exceeds the backend's identifier limit.
func (d *Dialect) IsLongIdentifier(name string) bool {
	return d.MaxIdentifierLength > 0 && len(name) > d.MaxIdentifierLength
}

// IsSystemName reports whether name carries a backend-generated prefix.
func (d *Dialect) IsSystemName(name string) bool {
	upper := strings.ToUpper(name)
	for _, p := range d.systemPrefixes {
		if strings.HasPrefix(upper, p) {
			return true
		}
	}
	return false
}

// SystemPrefixes returns the prefixes of backend-generated names.
func (d *Dialect) SystemPrefixes() []string {
	return d.systemPrefixes
}

// EscapesBind reports whether a bind parameter name must be renamed.
func (d *Dialect) EscapesBind(name string) bool {
	_, ok := d.bindEscapes[name]
	return ok
}

// BindName returns the bind parameter name the backend accepts.
func (d *Dialect) BindName(name string) string {
	if d.EscapesBind(name) {
		return "db_" + name
	}
	return name
}

// EscapesWord reports whether a bare lower-case word must be quoted.
// ddl selects the smaller set used outside SELECT/INSERT/UPDATE/DELETE.
func (d *Dialect) EscapesWord(word string, ddl bool) bool {
	if _, ok := d.wordEscapes[word]; ok {
		return true
	}
	if ddl {
		return false
	}
	_, ok := d.dmlWordEscapes[word]
	return ok
}

// CompatRules returns the backend-incompatibility substitutions.
func (d *Dialect) CompatRules() []CompatRule {
	return d.compat
}

// Classify maps a backend error to its kind using the dialect's message markers.
func (d *Dialect) Classify(err error) core.ErrorKind {
	if err == nil {
		return core.ErrorBackend
	}
	return d.ClassifyMessage(err.Error())
}

// ClassifyMessage maps a backend error message to its kind.
func (d *Dialect) ClassifyMessage(msg string) core.ErrorKind {
	for _, m := range d.markers {
		if strings.Contains(msg, m.marker) {
			return m.kind
		}
	}
	return core.ErrorBackend
}

// SequenceName returns the placeholder naming the sequence behind a serial field.
// Returns "" when the backend has no named sequences.
func (d *Dialect) SequenceName(table, field string) string {
	if d.sequenceName == "" {
		return ""
	}
	return "{" + d.NormalizeName(fmt.Sprintf(d.sequenceName, table, field)) + "}"
}

// NextValueSQL returns the statement that draws the next value of a sequence.
// Returns "" when the backend has no sequences.
func (d *Dialect) NextValueSQL(sequence string) string {
	if d.nextValue == "" {
		return ""
	}
	return fmt.Sprintf(d.nextValue, sequence)
}

// CurrentValueSQL returns the statement reading the last value generated by a sequence.
func (d *Dialect) CurrentValueSQL(sequence string) string {
	if !strings.Contains(d.currentValue, "%s") {
		return d.currentValue
	}
	return fmt.Sprintf(d.currentValue, sequence)
}

// RequiresSequence reports whether CurrentValueSQL needs a sequence name.
func (d *Dialect) RequiresSequence() bool {
	return strings.Contains(d.currentValue, "%s")
}

// TemporaryTableSQL returns the statement creating a temporary table from a query.
func (d *Dialect) TemporaryTableSQL(table, query string) string {
	return fmt.Sprintf(d.temporaryTable, table, query)
}

// PrefixedTemporaryTables reports whether temporary tables live in the prefixed schema.
func (d *Dialect) PrefixedTemporaryTables() bool {
	return d.tempPrefixed
}

// IsIdentifierChar reports whether ch may appear in a bare identifier.
func (d *Dialect) IsIdentifierChar(ch byte) bool {
	switch {
	case ch == '_', ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		return true
	}
	return strings.IndexByte(d.identChars, ch) >= 0
}

// ErrInvalidDialect is returned by Validate for incomplete dialects.
var ErrInvalidDialect = errors.New("invalid dialect")

// Validate checks that required settings are present.
func (d *Dialect) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidDialect)
	}
	if d.temporaryTable == "" {
		return fmt.Errorf("%w: %s: temporary table statement is required", ErrInvalidDialect, d.Name)
	}
	if d.currentValue == "" {
		return fmt.Errorf("%w: %s: current value statement is required", ErrInvalidDialect, d.Name)
	}
	return nil
}

// Builder provides a fluent API for constructing dialects.
type Builder struct {
	dialect *Dialect
}

// NewDialect creates a new dialect builder with the given name.
func NewDialect(name string) *Builder {
	return New(&core.DialectConfig{
		Name: name,
		Identifiers: core.IdentifierConfig{
			Quote:         `"`,
			QuoteEnd:      `"`,
			Escape:        `""`,
			Normalization: core.NormLowercase,
		},
	})
}

// New creates a dialect builder from a DialectConfig.
func New(cfg *core.DialectConfig) *Builder {
	return &Builder{
		dialect: &Dialect{
			Name:                cfg.Name,
			Identifiers:         cfg.Identifiers,
			DefaultSchema:       cfg.DefaultSchema,
			Placeholder:         cfg.Placeholder,
			Pagination:          cfg.Pagination,
			MaxIdentifierLength: cfg.MaxIdentifierLength,
			InListLimit:         cfg.InListLimit,
			DualTable:           cfg.DualTable,
			NoOpStatement:       cfg.NoOpStatement,
			Upsert:              cfg.Upsert,
			reservedWords:       make(map[string]struct{}),
			bindEscapes:         make(map[string]struct{}),
			wordEscapes:         make(map[string]struct{}),
			dmlWordEscapes:      make(map[string]struct{}),
			temporaryTable:      "CREATE TEMPORARY TABLE %s AS %s",
		},
	}
}

// Identifiers configures identifier quoting and normalization.
func (b *Builder) Identifiers(quote, quoteEnd, escape string, norm core.NormalizationStrategy) *Builder {
	b.dialect.Identifiers = core.IdentifierConfig{
		Quote:         quote,
		QuoteEnd:      quoteEnd,
		Escape:        escape,
		Normalization: norm,
	}
	return b
}

// IdentifierChars allows extra characters in bare identifiers (e.g. "$#").
func (b *Builder) IdentifierChars(chars string) *Builder {
	b.dialect.identChars = chars
	return b
}

// DefaultSchema sets the default schema name.
func (b *Builder) DefaultSchema(schema string) *Builder {
	b.dialect.DefaultSchema = schema
	return b
}

// PlaceholderStyle sets how query parameters are formatted.
func (b *Builder) PlaceholderStyle(style core.PlaceholderStyle) *Builder {
	b.dialect.Placeholder = style
	return b
}

// PaginationStyle sets how range queries are windowed.
func (b *Builder) PaginationStyle(style core.PaginationStyle) *Builder {
	b.dialect.Pagination = style
	return b
}

// MaxIdentifierLength sets the identifier length limit.
func (b *Builder) MaxIdentifierLength(n int) *Builder {
	b.dialect.MaxIdentifierLength = n
	return b
}

// InListLimit sets the largest IN list the backend accepts.
func (b *Builder) InListLimit(n int) *Builder {
	b.dialect.InListLimit = n
	return b
}

// DualTable sets the single-row table appended to SELECT without FROM.
func (b *Builder) DualTable(name string) *Builder {
	b.dialect.DualTable = name
	return b
}

// NoOpStatement sets the statement replacing unsupported savepoint releases.
func (b *Builder) NoOpStatement(stmt string) *Builder {
	b.dialect.NoOpStatement = stmt
	return b
}

// RegexpFunction sets the function (a REGEXP b) is rewritten to.
func (b *Builder) RegexpFunction(name string) *Builder {
	b.dialect.RegexpFunction = name
	return b
}

// EmptyBlob sets the expression for an empty binary column value.
func (b *Builder) EmptyBlob(expr string) *Builder {
	b.dialect.EmptyBlob = expr
	return b
}

// WithReservedWords registers words that need quoting when used as identifiers.
func (b *Builder) WithReservedWords(words ...string) *Builder {
	for _, w := range words {
		b.dialect.reservedWords[strings.ToUpper(w)] = struct{}{}
	}
	return b
}

// BindEscapes registers bind parameter names that get a db_ prefix.
func (b *Builder) BindEscapes(names ...string) *Builder {
	for _, n := range names {
		b.dialect.bindEscapes[n] = struct{}{}
	}
	return b
}

// WordEscapes registers lower-case words quoted in every statement.
func (b *Builder) WordEscapes(words ...string) *Builder {
	for _, w := range words {
		b.dialect.wordEscapes[w] = struct{}{}
	}
	return b
}

// DMLWordEscapes registers lower-case words quoted only in DML statements.
func (b *Builder) DMLWordEscapes(words ...string) *Builder {
	for _, w := range words {
		b.dialect.dmlWordEscapes[w] = struct{}{}
	}
	return b
}

// SystemPrefixes registers prefixes of names the backend generates itself.
func (b *Builder) SystemPrefixes(prefixes ...string) *Builder {
	for _, p := range prefixes {
		b.dialect.systemPrefixes = append(b.dialect.systemPrefixes, strings.ToUpper(p))
	}
	return b
}

// Compatibility adds a token-sequence substitution.
func (b *Builder) Compatibility(match, replace string) *Builder {
	b.dialect.compat = append(b.dialect.compat, CompatRule{Match: match, Replace: replace})
	return b
}

// ErrorMarkers registers message fragments that identify an error kind.
// Markers are checked in registration order.
func (b *Builder) ErrorMarkers(kind core.ErrorKind, markers ...string) *Builder {
	for _, m := range markers {
		b.dialect.markers = append(b.dialect.markers, errorMarker{kind: kind, marker: m})
	}
	return b
}

// Sequences sets the sequence naming pattern (table, field) and the next and
// current value statements (sequence). Empty patterns mean unsupported.
func (b *Builder) Sequences(name, next, current string) *Builder {
	b.dialect.sequenceName = name
	b.dialect.nextValue = next
	b.dialect.currentValue = current
	return b
}

// TemporaryTables sets the statement pattern (table, query) creating a
// temporary table, and whether such tables take the table prefix.
func (b *Builder) TemporaryTables(pattern string, prefixed bool) *Builder {
	b.dialect.temporaryTable = pattern
	b.dialect.tempPrefixed = prefixed
	return b
}

// Build returns the constructed dialect.
func (b *Builder) Build() *Dialect {
	return b.dialect
}
