// Package lexer turns AWK program text into tokens. Several -f sources can
// be scanned as one program while positions keep naming their source.
package lexer

import (
	"github.com/kolkov/tawk/internal/token"
)

// Lexer scans one program. It keeps the previous token to tell a regex
// literal from a division.
type Lexer struct {
	src     []byte         // Source code
	ch      byte           // Current character (0 at EOF)
	offset  int            // Current byte offset
	pos     token.Position // Current position
	nextPos token.Position // Position of next character

	hadSpace bool           // Was there whitespace before current token?
	lastTok  token.Token    // Previous token (for regex detection)
	lastPos  token.Position // Position of the previous token

	spans  []span // Start offsets of each source in src
	srcIdx int    // Index of the source being scanned
}

// Source is one named piece of program text. Several sources are lexed as a
// single logical program, as with repeated -f options.
type Source struct {
	Name string
	Text []byte
}

type span struct {
	start int
	name  string
}

// New returns a Lexer over a single unnamed source.
func New(src []byte) *Lexer {
	l := &Lexer{
		src: src,
		nextPos: token.Position{
			Line:   1,
			Column: 1,
		},
	}
	l.next() // Initialize first character
	return l
}

// NewSources creates a Lexer over several sources. Line and column numbers
// restart at each source while offsets keep growing, so positions from
// different sources still order correctly.
func NewSources(srcs []Source) *Lexer {
	var buf []byte
	spans := make([]span, 0, len(srcs))
	for _, src := range srcs {
		spans = append(spans, span{start: len(buf), name: src.Name})
		buf = append(buf, src.Text...)
		if len(src.Text) > 0 && src.Text[len(src.Text)-1] != '\n' {
			buf = append(buf, '\n')
		}
	}
	l := &Lexer{src: buf, spans: spans}
	l.nextPos = token.Position{Line: 1, Column: 1}
	if len(spans) > 0 {
		l.nextPos.Filename = spans[0].name
	}
	l.next()
	return l
}

// NewFromString is New for a string.
func NewFromString(src string) *Lexer {
	return New([]byte(src))
}

// Token is one lexeme. Value holds the literal text for names, numbers,
// strings and regexes, and the message for ILLEGAL tokens.
type Token struct {
	Type  token.Token
	Pos   token.Position
	Value string
}

// Scan returns the next token, EOF once the input is exhausted.
func (l *Lexer) Scan() Token {
	tok := l.scan()
	l.lastTok = tok.Type
	l.lastPos = tok.Pos
	return tok
}

// HadSpace reports whether blanks preceded the last token. A user function
// call needs its "(" directly after the name.
func (l *Lexer) HadSpace() bool {
	return l.hadSpace
}

func (l *Lexer) scan() Token {
	l.skipWhitespace()

	if l.ch == '#' {
		l.skipComment()
	}

	pos := l.pos

	if l.ch == 0 {
		return Token{Type: token.EOF, Pos: pos}
	}

	switch l.ch {
	case '\n':
		l.next()
		return Token{Type: token.NEWLINE, Pos: pos}

	case '+':
		l.next()
		if l.ch == '+' {
			l.next()
			return Token{Type: token.INCR, Pos: pos, Value: "++"}
		}
		if l.ch == '=' {
			l.next()
			return Token{Type: token.ADD_ASSIGN, Pos: pos, Value: "+="}
		}
		return Token{Type: token.ADD, Pos: pos, Value: "+"}

	case '-':
		l.next()
		if l.ch == '-' {
			l.next()
			return Token{Type: token.DECR, Pos: pos, Value: "--"}
		}
		if l.ch == '=' {
			l.next()
			return Token{Type: token.SUB_ASSIGN, Pos: pos, Value: "-="}
		}
		return Token{Type: token.SUB, Pos: pos, Value: "-"}

	case '*':
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.MUL_ASSIGN, Pos: pos, Value: "*="}
		}
		return Token{Type: token.MUL, Pos: pos, Value: "*"}

	case '/':
		// regex unless the previous token ends an operand
		if l.canBeRegex() {
			return l.scanRegex(pos)
		}
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.DIV_ASSIGN, Pos: pos, Value: "/="}
		}
		return Token{Type: token.DIV, Pos: pos, Value: "/"}

	case '%':
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.MOD_ASSIGN, Pos: pos, Value: "%="}
		}
		return Token{Type: token.MOD, Pos: pos, Value: "%"}

	case '^':
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.POW_ASSIGN, Pos: pos, Value: "^="}
		}
		return Token{Type: token.POW, Pos: pos, Value: "^"}

	case '=':
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.EQUALS, Pos: pos, Value: "=="}
		}
		return Token{Type: token.ASSIGN, Pos: pos, Value: "="}

	case '!':
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.NOT_EQUALS, Pos: pos, Value: "!="}
		}
		if l.ch == '~' {
			l.next()
			return Token{Type: token.NOT_MATCH, Pos: pos, Value: "!~"}
		}
		return Token{Type: token.NOT, Pos: pos, Value: "!"}

	case '<':
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.LTE, Pos: pos, Value: "<="}
		}
		return Token{Type: token.LESS, Pos: pos, Value: "<"}

	case '>':
		l.next()
		if l.ch == '=' {
			l.next()
			return Token{Type: token.GTE, Pos: pos, Value: ">="}
		}
		if l.ch == '>' {
			l.next()
			return Token{Type: token.APPEND, Pos: pos, Value: ">>"}
		}
		return Token{Type: token.GREATER, Pos: pos, Value: ">"}

	case '&':
		l.next()
		if l.ch == '&' {
			l.next()
			return Token{Type: token.AND, Pos: pos, Value: "&&"}
		}
		return Token{Type: token.ILLEGAL, Pos: pos, Value: "unexpected '&'"}

	case '|':
		l.next()
		if l.ch == '|' {
			l.next()
			return Token{Type: token.OR, Pos: pos, Value: "||"}
		}
		return Token{Type: token.PIPE, Pos: pos, Value: "|"}

	case '~':
		l.next()
		return Token{Type: token.MATCH, Pos: pos, Value: "~"}

	case '(':
		l.next()
		return Token{Type: token.LPAREN, Pos: pos, Value: "("}
	case ')':
		l.next()
		return Token{Type: token.RPAREN, Pos: pos, Value: ")"}
	case '{':
		l.next()
		return Token{Type: token.LBRACE, Pos: pos, Value: "{"}
	case '}':
		l.next()
		return Token{Type: token.RBRACE, Pos: pos, Value: "}"}
	case '[':
		l.next()
		return Token{Type: token.LBRACKET, Pos: pos, Value: "["}
	case ']':
		l.next()
		return Token{Type: token.RBRACKET, Pos: pos, Value: "]"}
	case ',':
		l.next()
		return Token{Type: token.COMMA, Pos: pos, Value: ","}
	case ';':
		l.next()
		return Token{Type: token.SEMICOLON, Pos: pos, Value: ";"}
	case ':':
		l.next()
		return Token{Type: token.COLON, Pos: pos, Value: ":"}
	case '?':
		l.next()
		return Token{Type: token.QUESTION, Pos: pos, Value: "?"}
	case '$':
		l.next()
		return Token{Type: token.DOLLAR, Pos: pos, Value: "$"}
	case '@':
		l.next()
		return Token{Type: token.AT, Pos: pos, Value: "@"}

	case '"', '\'':
		return l.scanString(pos)

	default:
		if isDigit(l.ch) || (l.ch == '.' && l.offset < len(l.src) && isDigit(l.src[l.offset])) {
			return l.scanNumber(pos)
		}
		if isIdentStart(l.ch) {
			return l.scanIdent(pos)
		}
		ch := l.ch
		l.next()
		return Token{Type: token.ILLEGAL, Pos: pos, Value: string(ch)}
	}
}

// ScanRegex scans a regex when the parser finds one where the lexer saw a
// division. If the previous token was DIV or DIV_ASSIGN, its slash opened
// the regex and "=" belongs to the pattern.
func (l *Lexer) ScanRegex() Token {
	var tok Token
	switch l.lastTok {
	case token.DIV:
		tok = l.scanRegexBody(l.lastPos, "")
	case token.DIV_ASSIGN:
		tok = l.scanRegexBody(l.lastPos, "=")
	default:
		l.skipWhitespace()
		pos := l.pos
		if l.ch != '/' {
			return Token{Type: token.ILLEGAL, Pos: pos, Value: "expected regex"}
		}
		tok = l.scanRegex(pos)
	}
	l.lastTok = tok.Type
	return tok
}

func (l *Lexer) scanRegex(pos token.Position) Token {
	l.next() // consume opening /
	return l.scanRegexBody(pos, "")
}

func (l *Lexer) scanRegexBody(pos token.Position, prefix string) Token {
	if l.ch == 0 {
		return Token{Type: token.ILLEGAL, Pos: pos, Value: "unterminated regex"}
	}
	start := l.pos.Offset
	for l.ch != 0 && l.ch != '/' && l.ch != '\n' {
		if l.ch == '\\' {
			l.next()
			if l.ch != 0 && l.ch != '\n' {
				l.next()
			}
		} else {
			l.next()
		}
	}

	if l.ch != '/' {
		return Token{Type: token.ILLEGAL, Pos: pos, Value: "unterminated regex"}
	}

	value := prefix + string(l.src[start:l.pos.Offset])
	l.next() // consume closing /
	return Token{Type: token.REGEX, Pos: pos, Value: value}
}

func (l *Lexer) scanString(pos token.Position) Token {
	quote := l.ch
	l.next() // consume opening quote

	var sb []byte
	for l.ch != 0 && l.ch != quote && l.ch != '\n' {
		if l.ch == '\\' {
			l.next()
			switch l.ch {
			case 0:
				return Token{Type: token.ILLEGAL, Pos: pos, Value: "escape sequence truncated by end of input"}
			case '\n':
				return Token{Type: token.ILLEGAL, Pos: pos, Value: "escape sequence truncated by end of line"}
			case 'n':
				sb = append(sb, '\n')
			case 't':
				sb = append(sb, '\t')
			case 'r':
				sb = append(sb, '\r')
			case 'b':
				sb = append(sb, '\b')
			case 'f':
				sb = append(sb, '\f')
			case 'a':
				sb = append(sb, '\a')
			case 'v':
				sb = append(sb, '\v')
			case '\\':
				sb = append(sb, '\\')
			case '"':
				sb = append(sb, '"')
			case '\'':
				sb = append(sb, '\'')
			case '/':
				sb = append(sb, '/')
			case '0', '1', '2', '3', '4', '5', '6', '7':
				// up to three octal digits
				n := int(l.ch - '0')
				l.next()
				for i := 0; i < 2 && l.ch >= '0' && l.ch <= '7'; i++ {
					n = n*8 + int(l.ch-'0')
					l.next()
				}
				sb = append(sb, byte(n))
				continue
			case 'x':
				// up to two hex digits
				l.next()
				if isHexDigit(l.ch) {
					n := hexValue(l.ch)
					l.next()
					if isHexDigit(l.ch) {
						n = n*16 + hexValue(l.ch)
						l.next()
					}
					sb = append(sb, byte(n))
					continue
				}
				sb = append(sb, 'x')
				continue
			default:
				sb = append(sb, '\\', l.ch)
			}
			l.next()
		} else {
			sb = append(sb, l.ch)
			l.next()
		}
	}

	if l.ch != quote {
		return Token{Type: token.ILLEGAL, Pos: pos, Value: "unterminated string"}
	}
	l.next() // consume closing quote

	return Token{Type: token.STRING, Pos: pos, Value: string(sb)}
}

func (l *Lexer) scanNumber(pos token.Position) Token {
	start := pos.Offset

	// 0x1F, with optional fraction and p exponent
	if l.ch == '0' && l.offset < len(l.src) && (l.src[l.offset] == 'x' || l.src[l.offset] == 'X') {
		l.next() // 0
		l.next() // x
		for isHexDigit(l.ch) {
			l.next()
		}
		if l.ch == '.' {
			l.next()
			for isHexDigit(l.ch) {
				l.next()
			}
		}
		if l.ch == 'p' || l.ch == 'P' {
			l.next()
			if l.ch == '+' || l.ch == '-' {
				l.next()
			}
			for isDigit(l.ch) {
				l.next()
			}
		}
		return Token{Type: token.NUMBER, Pos: pos, Value: string(l.src[start:l.endOffset()])}
	}

	for isDigit(l.ch) {
		l.next()
	}
	if l.ch == '.' {
		l.next()
		for isDigit(l.ch) {
			l.next()
		}
	}
	// 1e+a scans as 1, e, +, a
	if l.ch == 'e' || l.ch == 'E' {
		if l.hasValidExponent() {
			l.next()
			if l.ch == '+' || l.ch == '-' {
				l.next()
			}
			for isDigit(l.ch) {
				l.next()
			}
		}
	}

	return Token{Type: token.NUMBER, Pos: pos, Value: string(l.src[start:l.endOffset()])}
}

func (l *Lexer) scanIdent(pos token.Position) Token {
	start := pos.Offset
	for isIdentContinue(l.ch) {
		l.next()
	}
	name := string(l.src[start:l.endOffset()])
	return Token{Type: token.LookupIdent(name), Pos: pos, Value: name}
}

// endOffset is the offset just past the token being scanned; l.pos stops
// moving at end of input.
func (l *Lexer) endOffset() int {
	if l.ch == 0 {
		return len(l.src)
	}
	return l.pos.Offset
}

// hasValidExponent reports whether the e or E under the cursor starts an
// exponent: a digit, or a sign and a digit.
func (l *Lexer) hasValidExponent() bool {
	idx := l.offset
	if idx >= len(l.src) {
		return false
	}

	ch := l.src[idx]
	if isDigit(ch) {
		return true
	}
	if ch == '+' || ch == '-' {
		idx++
		if idx < len(l.src) && isDigit(l.src[idx]) {
			return true
		}
	}
	return false
}

func (l *Lexer) skipWhitespace() {
	l.hadSpace = false
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\\' {
		l.hadSpace = true
		if l.ch == '\\' {
			// backslash-newline joins lines
			l.next()
			if l.ch == '\r' {
				l.next()
			}
			if l.ch != '\n' {
				return // Will produce error on next scan
			}
		}
		l.next()
	}
}

func (l *Lexer) skipComment() {
	for l.ch != 0 && l.ch != '\n' {
		l.next()
	}
}

func (l *Lexer) next() {
	if l.offset >= len(l.src) {
		l.ch = 0
		return
	}

	for l.srcIdx+1 < len(l.spans) && l.offset >= l.spans[l.srcIdx+1].start {
		l.srcIdx++
		l.nextPos.Filename = l.spans[l.srcIdx].name
		l.nextPos.Line = 1
		l.nextPos.Column = 1
	}
	l.pos = l.nextPos

	// Multi-byte UTF-8 sequences pass through byte by byte.
	l.ch = l.src[l.offset]
	l.offset++
	l.nextPos.Column++
	l.nextPos.Offset = l.offset

	if l.ch == '\n' {
		l.nextPos.Line++
		l.nextPos.Column = 1
	}
}

// canBeRegex reports whether a "/" after the previous token opens a regex.
// After an operand it is division.
func (l *Lexer) canBeRegex() bool {
	switch l.lastTok {
	case token.ILLEGAL, token.EOF, token.NEWLINE,
		token.LPAREN, token.LBRACE, token.LBRACKET,
		token.COMMA, token.SEMICOLON, token.COLON, token.QUESTION,
		token.AND, token.OR, token.NOT, token.MATCH, token.NOT_MATCH,
		token.ADD, token.SUB, token.MUL, token.DIV, token.MOD, token.POW,
		token.ASSIGN, token.ADD_ASSIGN, token.SUB_ASSIGN, token.MUL_ASSIGN,
		token.DIV_ASSIGN, token.MOD_ASSIGN, token.POW_ASSIGN,
		token.EQUALS, token.NOT_EQUALS, token.LESS, token.LTE, token.GREATER, token.GTE,
		token.PRINT, token.PRINTF, token.IF, token.WHILE, token.FOR, token.DO,
		token.RETURN, token.GETLINE, token.IN:
		return true
	default:
		return false
	}
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}

func hexValue(ch byte) int {
	if ch >= '0' && ch <= '9' {
		return int(ch - '0')
	}
	if ch >= 'a' && ch <= 'f' {
		return int(ch - 'a' + 10)
	}
	return int(ch - 'A' + 10)
}

func isIdentStart(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentContinue(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
