package token

// Scanner splits SQL text into tokens.
type Scanner struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)
}

// NewScanner creates a new Scanner for the given input.
func NewScanner(input string) *Scanner {
	s := &Scanner{
		input: input,
		line:  1,
		col:   0,
	}
	s.readChar()
	return s
}

// Scan tokenizes input in one pass. The EOF token is not included.
func Scan(input string) []Token {
	s := NewScanner(input)
	var tokens []Token
	for {
		tok := s.NextToken()
		if tok.Type == EOF {
			return tokens
		}
		tokens = append(tokens, tok)
	}
}

// readChar advances to the next character.
func (s *Scanner) readChar() {
	if s.readPos >= len(s.input) {
		s.ch = 0 // ASCII NUL = EOF
	} else {
		s.ch = s.input[s.readPos]
	}
	s.pos = s.readPos
	s.readPos++

	if s.ch == '\n' {
		s.line++
		s.col = 0
	} else {
		s.col++
	}
}

// peekChar returns the next character without advancing.
func (s *Scanner) peekChar() byte {
	if s.readPos >= len(s.input) {
		return 0
	}
	return s.input[s.readPos]
}

func (s *Scanner) atEOF() bool {
	return s.pos >= len(s.input)
}

// currentPos returns the current position.
func (s *Scanner) currentPos() Position {
	return Position{
		Line:   s.line,
		Column: s.col,
		Offset: s.pos,
	}
}

// NextToken returns the next token.
func (s *Scanner) NextToken() Token {
	pos := s.currentPos()
	start := s.pos

	if s.atEOF() {
		return Token{Type: EOF, Pos: pos}
	}

	typ := s.scan()
	return Token{Type: typ, Literal: s.input[start:s.pos], Pos: pos}
}

// scan consumes one token and reports its type.
func (s *Scanner) scan() TokenType {
	switch ch := s.ch; {
	case isSpace(ch):
		for !s.atEOF() && isSpace(s.ch) {
			s.readChar()
		}
		return SPACE
	case ch == '-' && s.peekChar() == '-':
		for !s.atEOF() && s.ch != '\n' {
			s.readChar()
		}
		return COMMENT
	case ch == '/' && s.peekChar() == '*':
		s.readChar()
		s.readChar()
		for !s.atEOF() && !(s.ch == '*' && s.peekChar() == '/') {
			s.readChar()
		}
		if s.atEOF() {
			return ILLEGAL
		}
		s.readChar()
		s.readChar()
		return COMMENT
	case ch == '\'':
		if !s.readDelimited('\'') {
			return ILLEGAL
		}
		return STRING
	case ch == '"':
		if !s.readDelimited('"') {
			return ILLEGAL
		}
		return QUOTED
	case ch == '{':
		if s.readPlaceholder() {
			return PLACEHOLDER
		}
		s.readChar()
		return OP
	case ch == ':':
		switch next := s.peekChar(); {
		case isWordStart(next) || isDigit(next):
			s.readChar()
			for !s.atEOF() && (isWordStart(s.ch) || isDigit(s.ch)) {
				s.readChar()
			}
			return BIND
		case next == ':' || next == '=':
			s.readChar()
			s.readChar()
			return OP
		}
		s.readChar()
		return OP
	case ch == '?':
		s.readChar()
		return POSITIONAL
	case isDigit(ch) || (ch == '.' && isDigit(s.peekChar())):
		s.readNumber()
		return NUMBER
	case isWordStart(ch):
		for !s.atEOF() && isWordChar(s.ch) {
			s.readChar()
		}
		return WORD
	}
	return s.readPunct()
}

// readDelimited consumes a quote-delimited span where a doubled delimiter
// escapes itself. Returns false when the input ends before the closing quote.
func (s *Scanner) readDelimited(quote byte) bool {
	s.readChar()
	for !s.atEOF() {
		if s.ch == quote {
			if s.peekChar() == quote {
				s.readChar()
				s.readChar()
				continue
			}
			s.readChar()
			return true
		}
		s.readChar()
	}
	return false
}

// readPlaceholder consumes {name} when the braces enclose a plain name.
func (s *Scanner) readPlaceholder() bool {
	end := s.readPos
	for end < len(s.input) && isWordChar(s.input[end]) {
		end++
	}
	if end == s.readPos || end >= len(s.input) || s.input[end] != '}' {
		return false
	}
	for s.pos <= end {
		s.readChar()
	}
	return true
}

func (s *Scanner) readNumber() {
	for !s.atEOF() && (isDigit(s.ch) || s.ch == '.') {
		s.readChar()
	}
	if s.ch == 'e' || s.ch == 'E' {
		next := s.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			s.readChar()
			s.readChar()
			for !s.atEOF() && isDigit(s.ch) {
				s.readChar()
			}
		}
	}
}

func (s *Scanner) readPunct() TokenType {
	ch, next := s.ch, s.peekChar()
	s.readChar()
	switch ch {
	case '(':
		return LPAREN
	case ')':
		return RPAREN
	case ',':
		return COMMA
	case '.':
		return DOT
	case ';':
		return SEMICOLON
	case '=':
		if next == '>' {
			s.readChar()
			return OP
		}
		return EQ
	case '&':
		return AMP
	case '|':
		if next == '|' {
			s.readChar()
			return DPIPE
		}
	case '<':
		switch next {
		case '>':
			s.readChar()
			return NE
		case '=':
			s.readChar()
		}
	case '>':
		if next == '=' {
			s.readChar()
		}
	case '!':
		if next == '=' {
			s.readChar()
			return NE
		}
	}
	return OP
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' || ch == '\f'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

// isWordStart accepts ASCII letters, underscore and any byte of a multi-byte
// UTF-8 sequence so non-ASCII identifiers stay in one word.
func isWordStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

// isWordChar also accepts $ and #, which are legal inside unquoted identifiers.
func isWordChar(ch byte) bool {
	return isWordStart(ch) || isDigit(ch) || ch == '$' || ch == '#'
}

// IsWordChar reports whether ch may appear inside a bare identifier.
func IsWordChar(ch byte) bool {
	return isWordChar(ch)
}
