package netio

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	line int
}

// lexer splits BIF text into words (bare or double-quoted) and single-rune
// punctuation. Comments in // and /* */ form are skipped.
type lexer struct {
	src     string
	pos     int
	line    int
	pending []token
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) errorf(tok token, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, tok.line, fmt.Sprintf(format, args...))
}

func (l *lexer) unread(tok token) {
	l.pending = append(l.pending, tok)
}

func (l *lexer) next() (token, error) {
	if n := len(l.pending); n > 0 {
		tok := l.pending[n-1]
		l.pending = l.pending[:n-1]
		return tok, nil
	}
	l.skipSpace()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, line: l.line}, nil
	}

	c := l.src[l.pos]
	switch {
	case strings.IndexByte("{}()[],;|", c) >= 0:
		l.pos++
		return token{kind: tokPunct, text: string(c), line: l.line}, nil
	case c == '"':
		return l.quoted()
	}

	start := l.pos
	for l.pos < len(l.src) && isWordByte(l.src[l.pos]) {
		l.pos++
	}
	if start == l.pos {
		return token{}, fmt.Errorf("%w: line %d: unexpected character %q", ErrSyntax, l.line, c)
	}
	return token{kind: tokWord, text: l.src[start:l.pos], line: l.line}, nil
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '+' || c == '-' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func (l *lexer) quoted() (token, error) {
	start := l.pos
	l.pos++
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
			continue
		case '\n':
			return token{}, fmt.Errorf("%w: line %d: unterminated string", ErrSyntax, l.line)
		case '"':
			l.pos++
			text, err := strconv.Unquote(l.src[start:l.pos])
			if err != nil {
				return token{}, fmt.Errorf("%w: line %d: %v", ErrSyntax, l.line, err)
			}
			return token{kind: tokWord, text: text, line: l.line}, nil
		}
		l.pos++
	}
	return token{}, fmt.Errorf("%w: line %d: unterminated string", ErrSyntax, l.line)
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case strings.HasPrefix(l.src[l.pos:], "//"):
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		case strings.HasPrefix(l.src[l.pos:], "/*"):
			end := strings.Index(l.src[l.pos+2:], "*/")
			if end < 0 {
				l.pos = len(l.src)
				return
			}
			l.line += strings.Count(l.src[l.pos:l.pos+2+end], "\n")
			l.pos += end + 4
		default:
			return
		}
	}
}

func (l *lexer) word() (string, error) {
	tok, err := l.next()
	if err != nil {
		return "", err
	}
	if tok.kind != tokWord {
		return "", l.errorf(tok, "expected a name, got %q", tok.text)
	}
	return tok.text, nil
}

func (l *lexer) expect(punct string) error {
	tok, err := l.next()
	if err != nil {
		return err
	}
	if tok.kind != tokPunct || tok.text != punct {
		return l.errorf(tok, "expected %q, got %q", punct, tok.text)
	}
	return nil
}

func (l *lexer) expectWord(word string) error {
	tok, err := l.next()
	if err != nil {
		return err
	}
	if tok.kind != tokWord || tok.text != word {
		return l.errorf(tok, "expected %q, got %q", word, tok.text)
	}
	return nil
}

// list reads open word (, word)* close.
func (l *lexer) list(open, close string) ([]string, error) {
	if err := l.expect(open); err != nil {
		return nil, err
	}
	var out []string
	for {
		w, err := l.word()
		if err != nil {
			return nil, err
		}
		out = append(out, w)
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind == tokPunct && tok.text == close {
			return out, nil
		}
		if tok.kind != tokPunct || tok.text != "," {
			return nil, l.errorf(tok, "expected ',' or %q", close)
		}
	}
}

// numbers reads a comma-separated list of floats terminated by ';'.
func (l *lexer) numbers() ([]float64, error) {
	var out []float64
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		if tok.kind != tokWord {
			return nil, l.errorf(tok, "expected a number, got %q", tok.text)
		}
		v, err := strconv.ParseFloat(tok.text, 64)
		if err != nil {
			return nil, l.errorf(tok, "bad number %q", tok.text)
		}
		out = append(out, v)
		sep, err := l.next()
		if err != nil {
			return nil, err
		}
		if sep.kind == tokPunct && sep.text == ";" {
			return out, nil
		}
		if sep.kind != tokPunct || sep.text != "," {
			return nil, l.errorf(sep, "expected ',' or ';'")
		}
	}
}

func (l *lexer) skipPast(punct string) error {
	for {
		tok, err := l.next()
		if err != nil {
			return err
		}
		if tok.kind == tokEOF {
			return l.errorf(tok, "unexpected end of input, want %q", punct)
		}
		if tok.kind == tokPunct && tok.text == punct {
			return nil
		}
	}
}

// skipBlock skips a balanced { ... } block.
func (l *lexer) skipBlock() error {
	if err := l.expect("{"); err != nil {
		return err
	}
	depth := 1
	for depth > 0 {
		tok, err := l.next()
		if err != nil {
			return err
		}
		switch {
		case tok.kind == tokEOF:
			return l.errorf(tok, "unterminated block")
		case tok.kind == tokPunct && tok.text == "{":
			depth++
		case tok.kind == tokPunct && tok.text == "}":
			depth--
		}
	}
	return nil
}
