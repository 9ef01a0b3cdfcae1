package token

// Position locates a token in the scanned query. Tokens made by New or by a
// rewrite stage have the zero Position.
type Position struct {
	Line   int // from 1
	Column int // from 1, in bytes
	Offset int // from 0
}

// IsValid reports whether the position came from the scanner.
func (p Position) IsValid() bool { return p.Line > 0 }

// Span is the half-open byte range [Start.Offset, End.Offset).
type Span struct {
	Start, End Position
}

// Contains reports whether offset falls inside the span.
func (s Span) Contains(offset int) bool {
	return s.Start.Offset <= offset && offset < s.End.Offset
}

// LiteralSpans lists where the scanned string literals of a query sit, quotes
// included. Synthetic tokens are skipped.
func LiteralSpans(tokens []Token) []Span {
	var spans []Span
	for _, t := range tokens {
		if !t.Type.IsLiteral() || !t.Pos.IsValid() {
			continue
		}
		end := Position{
			Line:   t.Pos.Line,
			Column: t.Pos.Column + len(t.Literal),
			Offset: t.Pos.Offset + len(t.Literal),
		}
		spans = append(spans, Span{Start: t.Pos, End: end})
	}
	return spans
}
