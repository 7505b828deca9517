// Package content tokenizes and rewrites PDF page content streams.
package content

import (
	"bytes"
	"fmt"
)

// TokenType identifies a lexical element of a content stream
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenString
	TokenHexString
	TokenName
	TokenNumber
	TokenOperator
	TokenArrayStart
	TokenArrayEnd
	TokenDictStart
	TokenDictEnd
	TokenInlineData
)

// String returns the token type name
func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenString:
		return "STRING"
	case TokenHexString:
		return "HEX_STRING"
	case TokenName:
		return "NAME"
	case TokenNumber:
		return "NUMBER"
	case TokenOperator:
		return "OPERATOR"
	case TokenArrayStart:
		return "ARRAY_START"
	case TokenArrayEnd:
		return "ARRAY_END"
	case TokenDictStart:
		return "DICT_START"
	case TokenDictEnd:
		return "DICT_END"
	case TokenInlineData:
		return "INLINE_DATA"
	default:
		return "UNKNOWN"
	}
}

// Token is one lexical element. Start and End delimit the raw bytes in the input.
// For literal strings Value holds the unescaped bytes; for everything else it holds
// the raw bytes.
type Token struct {
	Type  TokenType
	Value []byte
	Start int
	End   int
}

// SyntaxError reports malformed content at a byte offset
type SyntaxError struct {
	Offset  int
	Message string
}

// Error implements the error interface
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("content stream syntax error at offset %d: %s", e.Offset, e.Message)
}

// Lexer tokenizes a content stream held in memory
type Lexer struct {
	data []byte
	pos  int
	// afterID is set once the ID operator of an inline image has been read
	afterID bool
}

// NewLexer creates a lexer over data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Tokenize lexes data until EOF
func Tokenize(data []byte) ([]Token, error) {
	l := NewLexer(data)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenEOF {
			return tokens, nil
		}
		tokens = append(tokens, tok)
	}
}

// Next returns the next token
func (l *Lexer) Next() (Token, error) {
	if l.afterID {
		l.afterID = false
		return l.readInlineData()
	}

	l.skipWhitespaceAndComments()
	if l.pos >= len(l.data) {
		return Token{Type: TokenEOF, Start: l.pos, End: l.pos}, nil
	}

	start := l.pos
	switch ch := l.data[l.pos]; {
	case ch == '(':
		return l.readLiteralString()
	case ch == '<':
		if l.peek(1) == '<' {
			l.pos += 2
			return l.token(TokenDictStart, start), nil
		}
		return l.readHexString()
	case ch == '>':
		if l.peek(1) == '>' {
			l.pos += 2
			return l.token(TokenDictEnd, start), nil
		}
		return Token{}, &SyntaxError{Offset: start, Message: "unexpected '>'"}
	case ch == '[':
		l.pos++
		return l.token(TokenArrayStart, start), nil
	case ch == ']':
		l.pos++
		return l.token(TokenArrayEnd, start), nil
	case ch == '/':
		l.pos++
		l.skipRegular()
		return l.token(TokenName, start), nil
	case isDigit(ch) || ch == '+' || ch == '-' || ch == '.':
		l.skipRegular()
		return l.token(TokenNumber, start), nil
	case ch == ')' || ch == '{' || ch == '}':
		return Token{}, &SyntaxError{Offset: start, Message: fmt.Sprintf("unexpected %q", ch)}
	default:
		l.skipRegular()
		tok := l.token(TokenOperator, start)
		if string(tok.Value) == "ID" {
			l.afterID = true
		}
		return tok, nil
	}
}

func (l *Lexer) token(t TokenType, start int) Token {
	return Token{Type: t, Value: l.data[start:l.pos], Start: start, End: l.pos}
}

func (l *Lexer) peek(offset int) byte {
	if l.pos+offset >= len(l.data) {
		return 0
	}
	return l.data[l.pos+offset]
}

func (l *Lexer) skipWhitespaceAndComments() {
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		switch {
		case isWhitespace(ch):
			l.pos++
		case ch == '%':
			for l.pos < len(l.data) && l.data[l.pos] != '\n' && l.data[l.pos] != '\r' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *Lexer) skipRegular() {
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}
}

// readLiteralString reads a balanced, escaped string enclosed in parentheses
func (l *Lexer) readLiteralString() (Token, error) {
	start := l.pos
	var buf bytes.Buffer

	l.pos++ // opening parenthesis
	depth := 1
	for l.pos < len(l.data) {
		ch := l.data[l.pos]
		switch ch {
		case '(':
			depth++
			buf.WriteByte(ch)
		case ')':
			depth--
			if depth == 0 {
				l.pos++
				return Token{Type: TokenString, Value: buf.Bytes(), Start: start, End: l.pos}, nil
			}
			buf.WriteByte(ch)
		case '\\':
			l.pos++
			if l.pos >= len(l.data) {
				break
			}
			l.readEscape(&buf)
			continue
		default:
			buf.WriteByte(ch)
		}
		l.pos++
	}

	return Token{}, &SyntaxError{Offset: start, Message: "unterminated literal string"}
}

// readEscape decodes the escape sequence whose first byte is at l.pos and leaves
// l.pos on the byte after it
func (l *Lexer) readEscape(buf *bytes.Buffer) {
	ch := l.data[l.pos]
	switch ch {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r':
		// line continuation
		if l.peek(1) == '\n' {
			l.pos++
		}
	case '\n':
	default:
		if isOctal(ch) {
			val := 0
			for i := 0; i < 3 && l.pos < len(l.data) && isOctal(l.data[l.pos]); i++ {
				val = val*8 + int(l.data[l.pos]-'0')
				l.pos++
			}
			buf.WriteByte(byte(val))
			return
		}
		// \\ \( \) and unknown escapes yield the character itself
		buf.WriteByte(ch)
	}
	l.pos++
}

func (l *Lexer) readHexString() (Token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.data) && l.data[l.pos] != '>' {
		ch := l.data[l.pos]
		if !isWhitespace(ch) && !isHexDigit(ch) {
			return Token{}, &SyntaxError{Offset: l.pos, Message: "invalid hex digit in hex string"}
		}
		l.pos++
	}
	if l.pos >= len(l.data) {
		return Token{}, &SyntaxError{Offset: start, Message: "unterminated hex string"}
	}
	l.pos++
	return l.token(TokenHexString, start), nil
}

// readInlineData consumes the binary payload of an inline image up to, but not
// including, the EI operator
func (l *Lexer) readInlineData() (Token, error) {
	// a single whitespace byte separates ID from the data
	if l.pos < len(l.data) && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
	start := l.pos
	for i := start; i+1 < len(l.data); i++ {
		if l.data[i] != 'E' || l.data[i+1] != 'I' {
			continue
		}
		if i > start && !isWhitespace(l.data[i-1]) {
			continue
		}
		if i+2 < len(l.data) && !isWhitespace(l.data[i+2]) && isRegular(l.data[i+2]) {
			continue
		}
		l.pos = i
		return l.token(TokenInlineData, start), nil
	}
	return Token{}, &SyntaxError{Offset: start, Message: "inline image without EI"}
}

func isWhitespace(ch byte) bool {
	switch ch {
	case 0, '\t', '\n', '\f', '\r', ' ':
		return true
	}
	return false
}

func isDelimiter(ch byte) bool {
	switch ch {
	case '(', ')', '<', '>', '[', ']', '{', '}', '/', '%':
		return true
	}
	return false
}

func isRegular(ch byte) bool {
	return !isWhitespace(ch) && !isDelimiter(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isOctal(ch byte) bool {
	return ch >= '0' && ch <= '7'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || (ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F')
}
