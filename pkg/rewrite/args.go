package rewrite

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/token"
)

// ExpandArgs expands slice-valued arguments into one marker per element.
// A named slice :ids becomes :ids__0, :ids__1, ...; a positional slice
// becomes ?, ?, .... An empty slice becomes NULL. A list that ends up
// alone inside x IN (...) with more elements than the IN list limit is
// split into (x IN (...) OR x IN (...)), or AND-joined NOT IN lists.
func (r *Rewriter) ExpandArgs(query string, args []any) (string, []any) {
	if !hasSlice(args) {
		return query, args
	}

	out := make([]any, 0, len(args))
	named := make(map[string]int)
	var positional []int
	for _, a := range args {
		if na, ok := a.(sql.NamedArg); ok {
			items, isSlice := sliceItems(na.Value)
			if !isSlice {
				out = append(out, a)
				continue
			}
			named[strings.TrimPrefix(na.Name, ":")] = len(items)
			for i, item := range items {
				out = append(out, sql.Named(expandedName(na.Name, i), item))
			}
			continue
		}
		items, isSlice := sliceItems(a)
		if !isSlice {
			positional = append(positional, -1)
			out = append(out, a)
			continue
		}
		positional = append(positional, len(items))
		out = append(out, items...)
	}

	toks := token.Scan(query)
	type marker struct {
		index int
		items []token.Token
	}
	var markers []marker
	pos := 0
	for i, t := range toks {
		switch t.Type {
		case token.BIND:
			n, ok := named[t.Name()]
			if !ok {
				continue
			}
			items := make([]token.Token, n)
			for k := range items {
				items[k] = token.New(token.BIND, ":"+expandedName(t.Name(), k))
			}
			markers = append(markers, marker{i, items})
		case token.POSITIONAL:
			if pos < len(positional) && positional[pos] >= 0 {
				items := make([]token.Token, positional[pos])
				for k := range items {
					items[k] = token.New(token.POSITIONAL, "?")
				}
				markers = append(markers, marker{i, items})
			}
			pos++
		}
	}

	for k := len(markers) - 1; k >= 0; k-- {
		toks = r.expandMarker(toks, markers[k].index, markers[k].items)
	}
	return token.Render(toks), out
}

func expandedName(name string, i int) string {
	return strings.TrimPrefix(name, ":") + "__" + strconv.Itoa(i)
}

// expandMarker replaces toks[i] with the expanded marker list.
func (r *Rewriter) expandMarker(toks []token.Token, i int, items []token.Token) []token.Token {
	if len(items) == 0 {
		return splice(toks, i, i, []token.Token{token.New(token.WORD, "NULL")})
	}
	if r.inListLimit > 0 && len(items) > r.inListLimit {
		if start, end, repl, ok := r.splitInList(toks, i, items); ok {
			return splice(toks, start, end, repl)
		}
	}
	return splice(toks, i, i, joinList(items))
}

// splitInList rewrites "expr [NOT] IN (marker)" into chunks of at most
// inListLimit markers.
func (r *Rewriter) splitInList(toks []token.Token, i int, items []token.Token) (int, int, []token.Token, bool) {
	open, closing := prevSig(toks, i), nextSig(toks, i)
	if open < 0 || closing < 0 || toks[open].Type != token.LPAREN || toks[closing].Type != token.RPAREN {
		return 0, 0, nil, false
	}
	in := prevSig(toks, open)
	if in < 0 || !toks[in].Is("IN") {
		return 0, 0, nil, false
	}
	exprEnd, negated := prevSig(toks, in), false
	if exprEnd >= 0 && toks[exprEnd].Is("NOT") {
		negated = true
		exprEnd = prevSig(toks, exprEnd)
	}
	if exprEnd < 0 {
		return 0, 0, nil, false
	}
	exprStart := operandStart(toks, exprEnd)
	if exprStart < 0 {
		return 0, 0, nil, false
	}
	expr := toks[exprStart : exprEnd+1]

	op, join := "IN", "OR"
	if negated {
		op, join = "NOT IN", "AND"
	}

	repl := []token.Token{token.New(token.LPAREN, "(")}
	for start := 0; start < len(items); start += r.inListLimit {
		end := min(start+r.inListLimit, len(items))
		if start > 0 {
			repl = append(repl, token.New(token.SPACE, " "), token.New(token.WORD, join), token.New(token.SPACE, " "))
		}
		repl = append(repl, clone(expr)...)
		repl = append(repl, token.Scan(" "+op+" (")...)
		repl = append(repl, joinList(items[start:end])...)
		repl = append(repl, token.New(token.RPAREN, ")"))
	}
	repl = append(repl, token.New(token.RPAREN, ")"))
	return exprStart, closing, repl, true
}

func joinList(items []token.Token) []token.Token {
	out := make([]token.Token, 0, 3*len(items))
	for k, item := range items {
		if k > 0 {
			out = append(out, token.New(token.COMMA, ","), token.New(token.SPACE, " "))
		}
		out = append(out, item)
	}
	return out
}

func hasSlice(args []any) bool {
	for _, a := range args {
		if na, ok := a.(sql.NamedArg); ok {
			a = na.Value
		}
		if _, ok := sliceItems(a); ok {
			return true
		}
	}
	return false
}

// sliceItems returns the elements of a slice or array value. Byte slices
// are scalar values.
func sliceItems(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	if _, ok := v.([]byte); ok {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// Bind converts bind markers to the dialect's style and renames named
// argument keys the same way the rewriter renames :name markers: long names
// take their registered alias, escaped names get the bind prefix.
func (r *Rewriter) Bind(ctx context.Context, query string, args []any) (string, []any) {
	out := make([]any, len(args))
	for i, a := range args {
		if na, ok := a.(sql.NamedArg); ok {
			out[i] = sql.Named(r.d.BindName(r.bindKey(ctx, strings.TrimPrefix(na.Name, ":"))), na.Value)
			continue
		}
		out[i] = a
	}

	switch r.d.Placeholder {
	case core.PlaceholderDollar:
		return r.bindNumbered(query, out)
	case core.PlaceholderNamed:
		toks := token.Scan(query)
		n := 0
		for i, t := range toks {
			if t.Type == token.POSITIONAL {
				n++
				toks[i].Literal = r.d.FormatPlaceholder(n)
			}
		}
		return token.Render(toks), out
	default:
		return query, out
	}
}

// BindAlias turns a long identifier alias into a bind name. Bind names must
// be plain identifiers, so the alias separator becomes an underscore.
func BindAlias(alias string) string {
	return strings.ReplaceAll(alias, "#", "_")
}

func (r *Rewriter) longBind(name string) bool {
	return !r.external && r.ids != nil && r.d.IsLongIdentifier(name)
}

func (r *Rewriter) bindKey(ctx context.Context, name string) string {
	if !r.longBind(name) {
		return name
	}
	if alias, ok := r.ids.Substitute(ctx, name); ok {
		return BindAlias(alias)
	}
	return name
}

// bindNumbered rewrites every marker to $n and orders args to match.
// Repeated names share one number; unreferenced named args are dropped.
func (r *Rewriter) bindNumbered(query string, args []any) (string, []any) {
	named := make(map[string]any)
	var positional []any
	for _, a := range args {
		if na, ok := a.(sql.NamedArg); ok {
			named[na.Name] = na.Value
			continue
		}
		positional = append(positional, a)
	}

	toks := token.Scan(query)
	var out []any
	seen := make(map[string]int)
	next := 0
	number := func(key string, v any) string {
		if n, ok := seen[key]; ok {
			return r.d.FormatPlaceholder(n)
		}
		out = append(out, v)
		seen[key] = len(out)
		return r.d.FormatPlaceholder(len(out))
	}

	for i, t := range toks {
		switch t.Type {
		case token.BIND:
			name := t.Name()
			if v, ok := named[name]; ok {
				toks[i].Literal = number(name, v)
				continue
			}
			if n, err := strconv.Atoi(name); err == nil && n >= 1 && n <= len(positional) {
				toks[i].Literal = number("#"+name, positional[n-1])
			}
		case token.POSITIONAL:
			if next < len(positional) {
				toks[i].Literal = number(fmt.Sprintf("?%d", next), positional[next])
				next++
			}
		}
	}
	return token.Render(toks), out
}
