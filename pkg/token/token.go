// Package token defines the lexical spans of portable SQL text.
//
// The scanner does not parse SQL. It splits query text into spans that the
// rewrite stages can reason about safely: string literals, quoted identifiers,
// table placeholders, bind markers, words, numbers, comments, whitespace and
// punctuation. Concatenating the literals of every token reproduces the input
// exactly.
package token

import (
	"fmt"
	"strings"
)

// TokenType represents the type of a lexical token.
//
//nolint:revive // Accept stutter as token.TokenType is clear and widely used
type TokenType int32

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Layout
	SPACE   // whitespace run
	COMMENT // -- line or /* block */

	// Literals and names
	WORD        // bare identifier or keyword
	QUOTED      // "quoted identifier"
	STRING      // 'string literal'
	SENTINEL    // empty string literal after sentinel encoding
	NUMBER      // 123, 4.5, 1e10
	PLACEHOLDER // {table}
	BIND        // :name or :1
	POSITIONAL  // ?

	// Punctuation
	LPAREN    // (
	RPAREN    // )
	COMMA     // ,
	DOT       // .
	SEMICOLON // ;
	EQ        // =
	NE        // <> or !=
	AMP       // &
	DPIPE     // ||
	OP        // any other operator
)

// String returns a human-readable representation of the token type.
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TOKEN(%d)", t)
}

var tokenNames = map[TokenType]string{
	EOF:         "EOF",
	ILLEGAL:     "ILLEGAL",
	SPACE:       "SPACE",
	COMMENT:     "COMMENT",
	WORD:        "WORD",
	QUOTED:      "QUOTED",
	STRING:      "STRING",
	SENTINEL:    "SENTINEL",
	NUMBER:      "NUMBER",
	PLACEHOLDER: "PLACEHOLDER",
	BIND:        "BIND",
	POSITIONAL:  "POSITIONAL",
	LPAREN:      "(",
	RPAREN:      ")",
	COMMA:       ",",
	DOT:         ".",
	SEMICOLON:   ";",
	EQ:          "=",
	NE:          "<>",
	AMP:         "&",
	DPIPE:       "||",
	OP:          "OP",
}

// IsLiteral reports whether the token is a string literal span, encoded or not.
func (t TokenType) IsLiteral() bool {
	return t == STRING || t == SENTINEL
}

// IsTrivia reports whether the token carries no SQL meaning.
func (t TokenType) IsTrivia() bool {
	return t == SPACE || t == COMMENT
}

// Token represents a lexical token with position information.
type Token struct {
	Type    TokenType
	Literal string
	Pos     Position

	// Quoted marks a PLACEHOLDER that must be rendered inside identifier quotes.
	Quoted bool
}

// Name returns the bare name carried by placeholder, bind and quoted tokens.
// For other tokens it returns the literal.
func (t Token) Name() string {
	switch t.Type {
	case PLACEHOLDER:
		return strings.TrimSuffix(strings.TrimPrefix(t.Literal, "{"), "}")
	case BIND:
		return strings.TrimPrefix(t.Literal, ":")
	case QUOTED:
		inner := strings.TrimSuffix(strings.TrimPrefix(t.Literal, `"`), `"`)
		return strings.ReplaceAll(inner, `""`, `"`)
	case STRING:
		inner := strings.TrimSuffix(strings.TrimPrefix(t.Literal, "'"), "'")
		return strings.ReplaceAll(inner, "''", "'")
	default:
		return t.Literal
	}
}

// Is reports whether the token is the given word, ignoring case.
func (t Token) Is(word string) bool {
	return t.Type == WORD && strings.EqualFold(t.Literal, word)
}

// New builds a synthetic token that has no source position.
func New(t TokenType, literal string) Token {
	return Token{Type: t, Literal: literal}
}

// Render concatenates token literals back into SQL text.
func Render(tokens []Token) string {
	var b strings.Builder
	for _, t := range tokens {
		b.WriteString(t.Literal)
	}
	return b.String()
}
