// Package rewrite turns portable query text into backend-native SQL.
//
// A query is scanned once into tokens (pkg/token) so that string literals,
// quoted identifiers and comments are known up front. A fixed sequence of
// stages then transforms the token stream:
//
//  1. empty string literals become the sentinel literal
//  2. ANSI fixes (FROM DUAL, BITAND, RELEASE SAVEPOINT, REGEXP, quoted case)
//  3. long identifier substitution (skipped for external schemas)
//  4. reserved word and bind name escaping
//  5. backend compatibility replacements
//  6. table prefix expansion
//  7. IF(c, a, b) to CASE WHEN
//
// Later stages rely on the normalization done by earlier ones. The rewriter
// never fails: input the backend cannot take fails when it is prepared.
package rewrite

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/leapstack-labs/portsql/pkg/dialect"
	"github.com/leapstack-labs/portsql/pkg/token"
)

// Identifiers resolves long identifiers during rewriting.
// *longid.Registry implements it.
type Identifiers interface {
	// Alias returns the bare backend name for name, registering it when new.
	Alias(ctx context.Context, name string) (string, error)
	// Substitute returns the alias of an already registered long name.
	Substitute(ctx context.Context, word string) (string, bool)
}

// StageResult is the SQL text after one rewrite stage.
type StageResult struct {
	Stage string `yaml:"stage" json:"stage"`
	SQL   string `yaml:"sql" json:"sql"`
}

type stage struct {
	name  string
	apply func(r *Rewriter, ctx context.Context, toks []token.Token) []token.Token
}

var stages = []stage{
	{"empty-literals", (*Rewriter).encodeEmptyLiterals},
	{"ansi", (*Rewriter).ansiFixes},
	{"long-identifiers", (*Rewriter).substituteLongIdentifiers},
	{"reserved-words", (*Rewriter).escapeReserved},
	{"compatibility", (*Rewriter).applyCompatibility},
	{"prefix-tables", (*Rewriter).expandPlaceholders},
	{"conditionals", (*Rewriter).translateConditionals},
}

// StageNames lists the rewrite stages in execution order.
func StageNames() []string {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.name
	}
	return names
}

type incompatibility struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rewriter rewrites queries for one dialect and one connection.
type Rewriter struct {
	d           *dialect.Dialect
	ids         Identifiers
	prefix      string
	prefixes    map[string]string
	external    bool
	inListLimit int
	compat      [][]token.Token
	logger      *slog.Logger

	mu       sync.RWMutex
	incompat []incompatibility
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithPrefix sets the default table prefix (a schema name).
func WithPrefix(prefix string) Option {
	return func(r *Rewriter) { r.prefix = strings.TrimSuffix(prefix, ".") }
}

// WithTablePrefixes sets per-table prefixes. The key "default" sets the
// default prefix.
func WithTablePrefixes(prefixes map[string]string) Option {
	return func(r *Rewriter) {
		for table, prefix := range prefixes {
			prefix = strings.TrimSuffix(prefix, ".")
			if table == "default" {
				r.prefix = prefix
				continue
			}
			r.prefixes[strings.ToUpper(table)] = prefix
		}
	}
}

// WithExternal marks a foreign schema: long identifiers are never substituted.
func WithExternal(external bool) Option {
	return func(r *Rewriter) { r.external = external }
}

// WithIdentifiers sets the long identifier resolver.
func WithIdentifiers(ids Identifiers) Option {
	return func(r *Rewriter) { r.ids = ids }
}

// WithInListLimit overrides the dialect IN list limit. Zero disables splitting.
func WithInListLimit(n int) Option {
	return func(r *Rewriter) {
		if n >= 0 {
			r.inListLimit = n
		}
	}
}

// WithLogger sets the rewriter logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Rewriter) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a rewriter for dialect d.
func New(d *dialect.Dialect, opts ...Option) *Rewriter {
	r := &Rewriter{
		d:           d,
		prefixes:    make(map[string]string),
		inListLimit: d.InListLimit,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, rule := range d.CompatRules() {
		r.compat = append(r.compat, significant(token.Scan(rule.Match)))
	}
	return r
}

// Dialect returns the target dialect.
func (r *Rewriter) Dialect() *dialect.Dialect {
	return r.d
}

// External reports whether the rewriter targets a foreign schema.
func (r *Rewriter) External() bool {
	return r.external
}

// Rewrite returns query in backend-native SQL.
func (r *Rewriter) Rewrite(ctx context.Context, query string) string {
	toks := token.Scan(query)
	for _, s := range stages {
		toks = s.apply(r, ctx, toks)
	}
	out := token.Render(toks)
	if out != query {
		r.logger.Debug("rewrote query", slog.String("query", query), slog.String("sql", out))
	}
	return out
}

// Trace rewrites query and returns the SQL text after every stage.
func (r *Rewriter) Trace(ctx context.Context, query string) []StageResult {
	toks := token.Scan(query)
	results := make([]StageResult, 0, len(stages))
	for _, s := range stages {
		toks = s.apply(r, ctx, toks)
		results = append(results, StageResult{Stage: s.name, SQL: token.Render(toks)})
	}
	return results
}

// alias resolves a long name through the registry, falling back to the
// normalized name when that fails.
func (r *Rewriter) alias(ctx context.Context, name string) string {
	if r.external || r.ids == nil || !r.d.IsLongIdentifier(name) {
		return r.d.NormalizeName(name)
	}
	alias, err := r.ids.Alias(ctx, name)
	if err != nil {
		r.logger.Warn("long identifier not registered",
			slog.String("name", name), slog.String("error", err.Error()))
		return r.d.NormalizeName(name)
	}
	return alias
}

// token helpers

func significant(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if !t.Type.IsTrivia() {
			out = append(out, t)
		}
	}
	return out
}

func nextSig(toks []token.Token, i int) int {
	for j := i + 1; j < len(toks); j++ {
		if !toks[j].Type.IsTrivia() {
			return j
		}
	}
	return -1
}

func prevSig(toks []token.Token, i int) int {
	for j := i - 1; j >= 0; j-- {
		if !toks[j].Type.IsTrivia() {
			return j
		}
	}
	return -1
}

// matchClose returns the index of the RPAREN closing the LPAREN at open.
func matchClose(toks []token.Token, open int) int {
	depth := 0
	for j := open; j < len(toks); j++ {
		switch toks[j].Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// matchOpen returns the index of the LPAREN opening the RPAREN at closing.
func matchOpen(toks []token.Token, closing int) int {
	depth := 0
	for j := closing; j >= 0; j-- {
		switch toks[j].Type {
		case token.RPAREN:
			depth++
		case token.LPAREN:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func trimTrivia(toks []token.Token) []token.Token {
	for len(toks) > 0 && toks[0].Type.IsTrivia() {
		toks = toks[1:]
	}
	for len(toks) > 0 && toks[len(toks)-1].Type.IsTrivia() {
		toks = toks[:len(toks)-1]
	}
	return toks
}

// splice replaces toks[from:to+1] with repl.
func splice(toks []token.Token, from, to int, repl []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks)-(to-from+1)+len(repl))
	out = append(out, toks[:from]...)
	out = append(out, repl...)
	return append(out, toks[to+1:]...)
}

func isName(t token.Token) bool {
	return t.Type == token.WORD || t.Type == token.QUOTED || t.Type == token.PLACEHOLDER
}

// operandStart returns the first index of the operand that ends at end, or -1.
func operandStart(toks []token.Token, end int) int {
	switch t := toks[end]; {
	case t.Type == token.NUMBER, t.Type == token.BIND, t.Type == token.POSITIONAL, t.Type.IsLiteral():
		return end
	case t.Type == token.RPAREN:
		open := matchOpen(toks, end)
		if open < 0 {
			return -1
		}
		if p := prevSig(toks, open); p >= 0 && p == open-1 && toks[p].Type == token.WORD {
			return p
		}
		return open
	case isName(t):
		i := end
		for i >= 2 && toks[i-1].Type == token.DOT && isName(toks[i-2]) {
			i -= 2
		}
		return i
	}
	return -1
}

// operandEnd returns the last index of the operand that starts at start, or -1.
func operandEnd(toks []token.Token, start int) int {
	switch t := toks[start]; {
	case t.Type == token.NUMBER, t.Type == token.BIND, t.Type == token.POSITIONAL, t.Type.IsLiteral():
		return start
	case t.Type == token.LPAREN:
		return matchClose(toks, start)
	case isName(t):
		i := start
		if t.Type == token.WORD && i+1 < len(toks) && toks[i+1].Type == token.LPAREN {
			return matchClose(toks, i+1)
		}
		for i+2 < len(toks) && toks[i+1].Type == token.DOT && isName(toks[i+2]) {
			i += 2
		}
		return i
	}
	return -1
}

func firstWord(toks []token.Token) token.Token {
	for _, t := range toks {
		if !t.Type.IsTrivia() {
			return t
		}
	}
	return token.Token{}
}

func clone(toks []token.Token) []token.Token {
	out := make([]token.Token, len(toks))
	copy(out, toks)
	return out
}
