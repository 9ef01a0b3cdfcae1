package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(tokens []Token) []TokenType {
	out := make([]TokenType, 0, len(tokens))
	for _, t := range tokens {
		if t.Type.IsTrivia() {
			continue
		}
		out = append(out, t.Type)
	}
	return out
}

func TestScan_Kinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenType
	}{
		{
			name:  "select with placeholder and bind",
			input: "SELECT name FROM {users} WHERE id = :id",
			want:  []TokenType{WORD, WORD, WORD, PLACEHOLDER, WORD, WORD, EQ, BIND},
		},
		{
			name:  "string literals",
			input: "'it''s' || ''",
			want:  []TokenType{STRING, DPIPE, STRING},
		},
		{
			name:  "quoted identifier with escaped quote",
			input: `"a""b".c`,
			want:  []TokenType{QUOTED, DOT, WORD},
		},
		{
			name:  "oracle identifier characters",
			input: "SELECT sid FROM v$mystat WHERE L#12 > 0",
			want:  []TokenType{WORD, WORD, WORD, WORD, WORD, WORD, OP, NUMBER},
		},
		{
			name:  "numeric bind and positional",
			input: "VALUES (:1, ?)",
			want:  []TokenType{WORD, LPAREN, BIND, COMMA, POSITIONAL, RPAREN},
		},
		{
			name:  "cast and assignment are operators",
			input: "x::int := 1",
			want:  []TokenType{WORD, OP, WORD, OP, NUMBER},
		},
		{
			name:  "comparison operators",
			input: "a <> b != c <= d >= e & f",
			want:  []TokenType{WORD, NE, WORD, NE, WORD, OP, WORD, OP, WORD, AMP, WORD},
		},
		{
			name:  "brace without name is an operator",
			input: "{ x }",
			want:  []TokenType{OP, WORD, OP},
		},
		{
			name:  "numbers",
			input: "1 4.5 .5 1e10 2E-3",
			want:  []TokenType{NUMBER, NUMBER, NUMBER, NUMBER, NUMBER},
		},
		{
			name:  "unterminated string",
			input: "SELECT 'abc",
			want:  []TokenType{WORD, ILLEGAL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, types(Scan(tt.input)))
		})
	}
}

func TestScan_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"SELECT name FROM {users} WHERE id = :id",
		"SELECT 'a -- not a comment' FROM t -- trailing\nWHERE x = 1",
		"/* block\ncomment */ SELECT \"Mixed\"\"Quote\" FROM {t}",
		"UPDATE {node} SET title = '' WHERE nid IN (:nids)",
		"SELECT IF(a > 1, 'x', IF(b, 'y', 'z')) FROM {t}",
		"SELECT 'unterminated",
		"SELECT /* unterminated",
		"naïve ünïcode = 'wert'",
		"x\t\r\n\f;",
	}

	for _, in := range inputs {
		assert.Equal(t, in, Render(Scan(in)))
	}
}

func TestScan_Comments(t *testing.T) {
	tokens := Scan("SELECT 1 -- tail\n/* block */")

	var comments []string
	for _, tok := range tokens {
		if tok.Type == COMMENT {
			comments = append(comments, tok.Literal)
		}
	}
	assert.Equal(t, []string{"-- tail", "/* block */"}, comments)
}

func TestScan_Positions(t *testing.T) {
	tokens := Scan("SELECT\n  name")
	require.Len(t, tokens, 3)

	assert.Equal(t, Position{Line: 1, Column: 1, Offset: 0}, tokens[0].Pos)
	assert.Equal(t, 2, tokens[2].Pos.Line)
	assert.Equal(t, 9, tokens[2].Pos.Offset)
}

func TestToken_Name(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"{users}", "users"},
		{":id", "id"},
		{`"A""B"`, `A"B`},
		{"'it''s'", "it's"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tokens := Scan(tt.input)
			require.Len(t, tokens, 1)
			assert.Equal(t, tt.want, tokens[0].Name())
		})
	}
}

func TestToken_Is(t *testing.T) {
	tok := Scan("select")[0]
	assert.True(t, tok.Is("SELECT"))
	assert.False(t, tok.Is("FROM"))
	assert.False(t, New(QUOTED, `"select"`).Is("select"))
}

func TestLiteralSpans(t *testing.T) {
	tokens := Scan("SELECT 'a', x, '' FROM t")
	spans := LiteralSpans(tokens)
	require.Len(t, spans, 2)

	assert.Equal(t, 7, spans[0].Start.Offset)
	assert.Equal(t, 10, spans[0].End.Offset)
	assert.True(t, spans[1].Contains(15))
	assert.False(t, spans[1].Contains(17))

	// Synthetic tokens carry no position.
	tokens = append(tokens, New(STRING, "'z'"))
	assert.Len(t, LiteralSpans(tokens), 2)
}

func TestTokenType_String(t *testing.T) {
	assert.Equal(t, "PLACEHOLDER", PLACEHOLDER.String())
	assert.Equal(t, "||", DPIPE.String())
	assert.Equal(t, "TOKEN(999)", TokenType(999).String())
}
