package fieldpath

// Lexer tokenizes path expression input.
type Lexer struct {
	input string
	pos   int  // current position in input
	ch    byte // current character under examination
}

// NewLexer creates a new lexer for the input string.
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// NextToken returns the next token from the input.
func (l *Lexer) NextToken() Token {
	tok := Token{Pos: l.pos - 1}

	switch {
	case l.ch == 0:
		tok.Type = TokenEOF
		tok.Literal = ""
		return tok
	case l.ch == '^':
		tok.Type = TokenCaret
		tok.Literal = "^"
	case l.ch == '.':
		tok.Type = TokenDot
		tok.Literal = "."
	case isDigit(l.ch):
		tok.Type = TokenInt
		tok.Literal = l.readInt()
		return tok
	case isLetter(l.ch):
		tok.Type = TokenIdent
		tok.Literal = l.readIdentifier()
		return tok
	default:
		tok.Type = TokenIllegal
		tok.Literal = string(l.ch)
	}

	l.readChar()
	return tok
}

// readChar reads the next character and advances position.
func (l *Lexer) readChar() {
	if l.pos >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.pos]
	}
	l.pos++
}

// readIdentifier reads a name: a letter or underscore followed by letters,
// digits, underscores, or hyphens.
func (l *Lexer) readIdentifier() string {
	start := l.pos - 1
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '-' {
		l.readChar()
	}
	return l.input[start : l.pos-1]
}

// readInt reads a run of digits.
func (l *Lexer) readInt() string {
	start := l.pos - 1
	for isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start : l.pos-1]
}

func isLetter(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
