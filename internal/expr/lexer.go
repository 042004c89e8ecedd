package expr

import (
	"strconv"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind  tokenKind
	text  string
	value float64
	pos   int
	end   int
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) errorf(pos, end int, msg string) *Error {
	return &Error{Message: msg, Pos: pos, End: end, Source: l.src}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start, end: start}, nil
	}

	c := l.src[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, text: "(", pos: start, end: l.pos}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, text: ")", pos: start, end: l.pos}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, text: ",", pos: start, end: l.pos}, nil
	case c == '*' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '*':
		l.pos += 2
		return token{kind: tokOp, text: "^", pos: start, end: l.pos}, nil
	case c == '+' || c == '-' || c == '*' || c == '/' || c == '^':
		l.pos++
		return token{kind: tokOp, text: string(c), pos: start, end: l.pos}, nil
	case isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		return l.number()
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start, end: l.pos}, nil
	}

	_, size := utf8.DecodeRuneInString(l.src[l.pos:])
	return token{}, l.errorf(start, start+size, "unexpected character "+strconv.Quote(l.src[start:start+size]))
}

func (l *lexer) number() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && (l.src[l.pos] == 'e' || l.src[l.pos] == 'E') {
		// Only an exponent when digits follow.
		p := l.pos + 1
		if p < len(l.src) && (l.src[p] == '+' || l.src[p] == '-') {
			p++
		}
		if p < len(l.src) && isDigit(l.src[p]) {
			for p < len(l.src) && isDigit(l.src[p]) {
				p++
			}
			l.pos = p
		}
	}
	text := l.src[start:l.pos]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return token{}, l.errorf(start, l.pos, "malformed number "+strconv.Quote(text))
	}
	return token{kind: tokNumber, text: text, value: v, pos: start, end: l.pos}, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || (c|0x20 >= 'a' && c|0x20 <= 'z') }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) || c == '.' }
