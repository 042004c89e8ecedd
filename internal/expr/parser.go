package expr

import (
	"fmt"
	"strconv"
	"strings"
)

// Variables accepted in expressions.
const (
	VarX = "x"
	VarY = "y"
)

// Parse parses text into an expression tree. The returned error is always
// an *Error when not nil.
//
// Grammar, lowest precedence first:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("-" | "+") unary | power
//	power   = primary [ ("^" | "**") unary ]
//	primary = number | name | name "(" expr { "," expr } ")" | "(" expr ")"
func Parse(text string) (Node, error) {
	if len(text) > MaxLength {
		return nil, &Error{
			Message: fmt.Sprintf("expression longer than %d bytes", MaxLength),
			Pos:     MaxLength,
			End:     len(text),
			Source:  text,
		}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Message: "empty expression", Source: text}
	}

	p := &parser{lex: lexer{src: text}}
	if err := p.advance(); err != nil {
		return nil, err
	}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokEOF {
		return nil, p.unexpected("end of expression")
	}
	return n, nil
}

type parser struct {
	lex   lexer
	tok   token
	depth int
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) unexpected(want string) *Error {
	if p.tok.kind == tokEOF {
		return p.lex.errorf(p.tok.pos, p.tok.end, "unexpected end of expression, want "+want)
	}
	return p.lex.errorf(p.tok.pos, p.tok.end, fmt.Sprintf("unexpected %q, want %s", p.tok.text, want))
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > MaxDepth {
		return p.lex.errorf(p.tok.pos, p.tok.end, fmt.Sprintf("expression nested deeper than %d", MaxDepth))
	}
	return nil
}

func (p *parser) leave() { p.depth-- }

func (p *parser) isOp(ops string) bool {
	return p.tok.kind == tokOp && strings.Contains(ops, p.tok.text)
}

func (p *parser) expr() (Node, error) {
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	left, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.isOp("+-") {
		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) term() (Node, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*/") {
		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		left = &BinaryOp{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) unary() (Node, error) {
	if p.isOp("+-") {
		if err := p.enter(); err != nil {
			return nil, err
		}
		defer p.leave()

		op := p.tok.text[0]
		if err := p.advance(); err != nil {
			return nil, err
		}
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &UnaryOp{Op: op, Operand: operand}, nil
	}
	return p.power()
}

func (p *parser) power() (Node, error) {
	base, err := p.primary()
	if err != nil {
		return nil, err
	}
	if !p.isOp("^") {
		return base, nil
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.advance(); err != nil {
		return nil, err
	}
	exp, err := p.unary()
	if err != nil {
		return nil, err
	}
	return &BinaryOp{Op: '^', Left: base, Right: exp}, nil
}

func (p *parser) primary() (Node, error) {
	switch p.tok.kind {
	case tokNumber:
		n := &Literal{Value: p.tok.value}
		return n, p.advance()

	case tokLParen:
		if err := p.advance(); err != nil {
			return nil, err
		}
		n, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.tok.kind != tokRParen {
			return nil, p.unexpected("')'")
		}
		return n, p.advance()

	case tokIdent:
		return p.name()
	}
	return nil, p.unexpected("number, name or '('")
}

func (p *parser) name() (Node, error) {
	ident := p.tok
	name := canonicalName(ident.text)
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.tok.kind != tokLParen {
		switch {
		case name == VarX || name == VarY:
			return &Variable{Name: name}, nil
		case hasConstant(name):
			return &Literal{Value: constants[name], Text: name}, nil
		case hasBuiltin(name):
			return nil, p.lex.errorf(ident.pos, ident.end, fmt.Sprintf("function %s needs arguments", name))
		}
		return nil, p.lex.errorf(ident.pos, ident.end, "unknown name "+strconv.Quote(ident.text))
	}

	fn, ok := builtins[name]
	if !ok {
		return nil, p.lex.errorf(ident.pos, ident.end, "unknown function "+strconv.Quote(ident.text))
	}
	if err := p.enter(); err != nil {
		return nil, err
	}
	defer p.leave()

	if err := p.advance(); err != nil {
		return nil, err
	}
	var args []Node
	if p.tok.kind != tokRParen {
		for {
			arg, err := p.expr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.tok.kind != tokComma {
				break
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
	}
	if p.tok.kind != tokRParen {
		return nil, p.unexpected("',' or ')'")
	}
	end := p.tok.end
	if len(args) != fn.arity {
		return nil, p.lex.errorf(ident.pos, end, fmt.Sprintf("%s takes %d argument(s), got %d", name, fn.arity, len(args)))
	}
	return &Call{Name: name, Args: args}, p.advance()
}

func hasConstant(name string) bool { _, ok := constants[name]; return ok }
func hasBuiltin(name string) bool  { _, ok := builtins[name]; return ok }
