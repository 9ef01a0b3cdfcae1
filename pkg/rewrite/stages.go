package rewrite

import (
	"context"
	"log/slog"
	"strings"

	"github.com/leapstack-labs/portsql/pkg/core"
	"github.com/leapstack-labs/portsql/pkg/token"
)

// SentinelLiteral replaces the empty string literal.
const SentinelLiteral = "'^'"

// encodeEmptyLiterals rewrites '' to the sentinel literal. Other string
// literals are single tokens and are never touched.
func (r *Rewriter) encodeEmptyLiterals(_ context.Context, toks []token.Token) []token.Token {
	for i, t := range toks {
		if t.Type == token.STRING && t.Literal == "''" {
			toks[i] = token.Token{Type: token.SENTINEL, Literal: SentinelLiteral, Pos: t.Pos}
		}
	}
	return toks
}

func (r *Rewriter) ansiFixes(_ context.Context, toks []token.Token) []token.Token {
	fi := nextSig(toks, -1)
	if fi < 0 {
		return toks
	}
	first := toks[fi]

	if first.Is("RELEASE") && r.d.NoOpStatement != "" {
		if i := nextSig(toks, fi); i >= 0 && toks[i].Is("SAVEPOINT") {
			return token.Scan(r.d.NoOpStatement)
		}
	}

	if first.Is("SELECT") && r.d.DualTable != "" && !topLevelWord(toks, "FROM") {
		toks = appendFromDual(toks, r.d.DualTable)
	}

	toks = r.bitand(toks)
	if r.d.RegexpFunction != "" {
		toks = r.regexpFunction(toks)
	}

	if r.d.Identifiers.Normalization == core.NormUppercase {
		for i, t := range toks {
			if t.Type != token.QUOTED {
				continue
			}
			name := t.Name()
			if isWordName(name) {
				toks[i].Literal = r.d.QuoteIdentifier(strings.ToUpper(name))
			}
		}
	}
	return toks
}

// appendFromDual adds FROM <dual> before any trailing semicolon or trivia.
func appendFromDual(toks []token.Token, dual string) []token.Token {
	end := len(toks)
	for end > 0 && (toks[end-1].Type.IsTrivia() || toks[end-1].Type == token.SEMICOLON) {
		end--
	}
	tail := clone(toks[end:])
	out := append(toks[:end:end],
		token.New(token.SPACE, " "),
		token.New(token.WORD, "FROM"),
		token.New(token.SPACE, " "),
		token.New(token.WORD, dual),
	)
	return append(out, tail...)
}

// bitand rewrites a & b = c (or <>) as BITAND(a, b) = c.
func (r *Rewriter) bitand(toks []token.Token) []token.Token {
	for i := 0; i < len(toks); i++ {
		if toks[i].Type != token.AMP {
			continue
		}
		le, rs := prevSig(toks, i), nextSig(toks, i)
		if le < 0 || rs < 0 {
			continue
		}
		ls, re := operandStart(toks, le), operandEnd(toks, rs)
		if ls < 0 || re < 0 {
			continue
		}
		cmp := nextSig(toks, re)
		if cmp < 0 || (toks[cmp].Type != token.EQ && toks[cmp].Type != token.NE) {
			continue
		}

		repl := []token.Token{token.New(token.WORD, "BITAND"), token.New(token.LPAREN, "(")}
		repl = append(repl, clone(toks[ls:le+1])...)
		repl = append(repl, token.New(token.COMMA, ","), token.New(token.SPACE, " "))
		repl = append(repl, clone(toks[rs:re+1])...)
		repl = append(repl, token.New(token.RPAREN, ")"))
		toks = splice(toks, ls, re, repl)
		i = ls + len(repl) - 1
	}
	return toks
}

// regexpFunction rewrites (a REGEXP b) as (FN(a, b)).
func (r *Rewriter) regexpFunction(toks []token.Token) []token.Token {
	for i := 0; i < len(toks); i++ {
		if !toks[i].Is("REGEXP") {
			continue
		}
		open := enclosingOpen(toks, i)
		if open < 0 {
			continue
		}
		closing := matchClose(toks, open)
		if closing < 0 {
			continue
		}
		left, right := trimTrivia(toks[open+1:i]), trimTrivia(toks[i+1:closing])
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		repl := []token.Token{token.New(token.WORD, r.d.RegexpFunction), token.New(token.LPAREN, "(")}
		repl = append(repl, clone(left)...)
		repl = append(repl, token.New(token.COMMA, ","), token.New(token.SPACE, " "))
		repl = append(repl, clone(right)...)
		repl = append(repl, token.New(token.RPAREN, ")"))
		toks = splice(toks, open+1, closing-1, repl)
		i = open + len(repl)
	}
	return toks
}

// enclosingOpen returns the LPAREN that directly encloses index i.
func enclosingOpen(toks []token.Token, i int) int {
	depth := 0
	for j := i - 1; j >= 0; j-- {
		switch toks[j].Type {
		case token.RPAREN:
			depth++
		case token.LPAREN:
			if depth == 0 {
				return j
			}
			depth--
		}
	}
	return -1
}

// substituteLongIdentifiers upper-cases placeholders, aliases long ones and
// long bind names, and replaces registered long names with their quoted alias.
func (r *Rewriter) substituteLongIdentifiers(ctx context.Context, toks []token.Token) []token.Token {
	if r.external {
		return toks
	}
	for i, t := range toks {
		switch t.Type {
		case token.PLACEHOLDER:
			toks[i].Literal = "{" + r.alias(ctx, t.Name()) + "}"
			toks[i].Quoted = true
		case token.BIND:
			if !r.longBind(t.Name()) {
				continue
			}
			alias, err := r.ids.Alias(ctx, t.Name())
			if err != nil {
				r.logger.Warn("long bind name not registered",
					slog.String("name", t.Name()), slog.String("error", err.Error()))
				continue
			}
			toks[i].Literal = ":" + BindAlias(alias)
		case token.WORD, token.QUOTED:
			if r.ids == nil || !r.d.IsLongIdentifier(t.Name()) {
				continue
			}
			if alias, ok := r.ids.Substitute(ctx, t.Name()); ok {
				toks[i] = token.Token{Type: token.QUOTED, Literal: r.d.QuoteIdentifier(alias), Pos: t.Pos}
			}
		}
	}
	return toks
}

// escapeReserved renames escaped bind names, quotes colliding lower-case
// column names and folds the remaining bare words.
func (r *Rewriter) escapeReserved(_ context.Context, toks []token.Token) []token.Token {
	ddl := isDDL(toks)
	fold := r.d.FoldsCase()

	for i, t := range toks {
		switch t.Type {
		case token.PLACEHOLDER:
			if !t.Quoted {
				toks[i].Literal = "{" + r.d.NormalizeName(t.Name()) + "}"
				toks[i].Quoted = true
			}
		case token.BIND:
			if name := t.Name(); r.d.EscapesBind(name) {
				toks[i].Literal = ":" + r.d.BindName(name)
			}
		case token.WORD:
			if r.d.EscapesWord(t.Literal, ddl) && escapable(toks, i) {
				toks[i] = token.Token{Type: token.QUOTED, Literal: r.d.QuoteIdentifier(r.d.NormalizeName(t.Literal)), Pos: t.Pos}
				continue
			}
			if fold {
				toks[i].Literal = r.d.NormalizeName(t.Literal)
			}
		}
	}
	return toks
}

// escapable reports whether the word at i stands alone as a column name:
// preceded by ( . , = or space and followed by , = ) space or the end.
func escapable(toks []token.Token, i int) bool {
	if i == 0 {
		return false
	}
	switch toks[i-1].Type {
	case token.LPAREN, token.DOT, token.COMMA, token.EQ, token.SPACE:
	default:
		return false
	}
	if i+1 == len(toks) {
		return true
	}
	switch toks[i+1].Type {
	case token.COMMA, token.EQ, token.RPAREN, token.SPACE, token.SEMICOLON:
		return true
	}
	return false
}

// isDDL reports whether the statement is not plain DML.
func isDDL(toks []token.Token) bool {
	first := firstWord(toks)
	for _, kw := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if first.Is(kw) {
			return false
		}
	}
	return true
}

// translateConditionals rewrites IF(c, a, b) as CASE WHEN c THEN a ELSE b END.
func (r *Rewriter) translateConditionals(_ context.Context, toks []token.Token) []token.Token {
	return translateIf(toks)
}

func translateIf(toks []token.Token) []token.Token {
	out := make([]token.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		open := nextSig(toks, i)
		if !t.Is("IF") || open < 0 || toks[open].Type != token.LPAREN {
			out = append(out, t)
			continue
		}
		closing := matchClose(toks, open)
		if closing < 0 {
			out = append(out, t)
			continue
		}
		args := splitArgs(toks[open+1 : closing])
		if len(args) != 3 {
			out = append(out, t)
			continue
		}

		out = append(out, token.New(token.WORD, "CASE"), token.New(token.SPACE, " "), token.New(token.WORD, "WHEN"), token.New(token.SPACE, " "))
		out = append(out, translateIf(args[0])...)
		out = append(out, token.New(token.SPACE, " "), token.New(token.WORD, "THEN"), token.New(token.SPACE, " "))
		out = append(out, translateIf(args[1])...)
		out = append(out, token.New(token.SPACE, " "), token.New(token.WORD, "ELSE"), token.New(token.SPACE, " "))
		out = append(out, translateIf(args[2])...)
		out = append(out, token.New(token.SPACE, " "), token.New(token.WORD, "END"))
		i = closing
	}
	return out
}

// splitArgs splits a parenthesized argument list at top-level commas.
func splitArgs(toks []token.Token) [][]token.Token {
	var args [][]token.Token
	depth, start := 0, 0
	for j, t := range toks {
		switch t.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		case token.COMMA:
			if depth == 0 {
				args = append(args, clone(trimTrivia(toks[start:j])))
				start = j + 1
			}
		}
	}
	return append(args, clone(trimTrivia(toks[start:])))
}

// topLevelWord reports whether word appears outside any parentheses.
func topLevelWord(toks []token.Token, word string) bool {
	depth := 0
	for _, t := range toks {
		switch t.Type {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		default:
			if depth == 0 && t.Is(word) {
				return true
			}
		}
	}
	return false
}

func isWordName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !token.IsWordChar(name[i]) {
			return false
		}
	}
	return true
}
