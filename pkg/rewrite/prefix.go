package rewrite

import (
	"context"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/token"
)

// expandPlaceholders replaces each {NAME} with its prefixed table reference.
func (r *Rewriter) expandPlaceholders(ctx context.Context, toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks))
	for _, t := range toks {
		if t.Type != token.PLACEHOLDER {
			out = append(out, t)
			continue
		}
		out = append(out, r.expandPlaceholder(ctx, t)...)
	}
	return out
}

func (r *Rewriter) expandPlaceholder(ctx context.Context, t token.Token) []token.Token {
	name := t.Name()
	ident := func(s string) token.Token {
		if t.Quoted {
			return token.New(token.QUOTED, r.d.QuoteIdentifier(s))
		}
		return token.New(token.WORD, s)
	}

	prefix := r.prefixFor(name)
	if prefix == "" {
		return []token.Token{ident(name)}
	}
	return []token.Token{ident(r.alias(ctx, prefix)), token.New(token.DOT, "."), ident(name)}
}

func (r *Rewriter) prefixFor(table string) string {
	if p, ok := r.prefixes[strings.ToUpper(table)]; ok {
		return p
	}
	return r.prefix
}

// PrefixTables expands the table placeholders of sql without running the
// other stages. quoted selects "PREFIX"."NAME" over PREFIX.NAME. Long names
// are aliased unless the schema is external.
func (r *Rewriter) PrefixTables(ctx context.Context, sql string, quoted bool) string {
	toks := token.Scan(sql)
	for i, t := range toks {
		if t.Type == token.PLACEHOLDER {
			toks[i].Literal = "{" + r.alias(ctx, t.Name()) + "}"
			toks[i].Quoted = quoted
		}
	}
	return token.Render(r.expandPlaceholders(ctx, toks))
}

// TableName returns the prefixed, quoted reference for table.
func (r *Rewriter) TableName(ctx context.Context, table string) string {
	return r.PrefixTables(ctx, "{"+table+"}", true)
}
