// Package expr parses and evaluates arithmetic expressions of two variables.
//
// Expressions are parsed into a small tagged AST (Literal, Variable,
// UnaryOp, BinaryOp, Call) which is evaluated by walking the tree. Only the
// variables x and y, a fixed set of constants and a fixed set of math
// functions are accepted, so user text can never reach anything but
// arithmetic.
package expr

import (
	"strconv"
	"strings"
)

// Node is one element of a parsed expression.
type Node interface {
	String() string
	node()
}

// Literal is a numeric constant. Text keeps the source spelling for named
// constants such as pi.
type Literal struct {
	Value float64
	Text  string
}

// Variable is a reference to x or y.
type Variable struct {
	Name string
}

// UnaryOp is a prefix operator applied to Operand. Op is '-' or '+'.
type UnaryOp struct {
	Op      byte
	Operand Node
}

// BinaryOp is one of + - * / ^.
type BinaryOp struct {
	Op          byte
	Left, Right Node
}

// Call is a builtin function applied to its arguments.
type Call struct {
	Name string
	Args []Node
}

func (*Literal) node()  {}
func (*Variable) node() {}
func (*UnaryOp) node()  {}
func (*BinaryOp) node() {}
func (*Call) node()     {}

const (
	precAdd = iota + 1
	precMul
	precUnary
	precPow
	precAtom
)

func precedence(n Node) int {
	switch n := n.(type) {
	case *BinaryOp:
		switch n.Op {
		case '+', '-':
			return precAdd
		case '*', '/':
			return precMul
		default:
			return precPow
		}
	case *UnaryOp:
		return precUnary
	case *Literal:
		if n.Text == "" && n.Value < 0 {
			return precUnary
		}
	}
	return precAtom
}

func (l *Literal) String() string {
	if l.Text != "" {
		return l.Text
	}
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

func (v *Variable) String() string { return v.Name }

func (u *UnaryOp) String() string {
	return string(u.Op) + wrap(u.Operand, precedence(u.Operand) < precUnary)
}

func (b *BinaryOp) String() string {
	p := precedence(b)
	lp, rp := precedence(b.Left), precedence(b.Right)

	var left, right bool
	if b.Op == '^' {
		// right-associative
		left = lp <= p
		right = rp < p
	} else {
		left = lp < p
		right = rp < p || (rp == p && (b.Op == '-' || b.Op == '/'))
	}

	var sb strings.Builder
	sb.WriteString(wrap(b.Left, left))
	switch b.Op {
	case '^':
		sb.WriteByte('^')
	default:
		sb.WriteByte(' ')
		sb.WriteByte(b.Op)
		sb.WriteByte(' ')
	}
	sb.WriteString(wrap(b.Right, right))
	return sb.String()
}

func (c *Call) String() string {
	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		args[i] = a.String()
	}
	return c.Name + "(" + strings.Join(args, ", ") + ")"
}

func wrap(n Node, paren bool) string {
	if paren {
		return "(" + n.String() + ")"
	}
	return n.String()
}

// DependsOn reports whether the variable name occurs anywhere in n.
func DependsOn(n Node, name string) bool {
	switch n := n.(type) {
	case *Variable:
		return n.Name == name
	case *UnaryOp:
		return DependsOn(n.Operand, name)
	case *BinaryOp:
		return DependsOn(n.Left, name) || DependsOn(n.Right, name)
	case *Call:
		for _, a := range n.Args {
			if DependsOn(a, name) {
				return true
			}
		}
	}
	return false
}

// TreeSize counts the nodes of n as a tree, visiting shared subtrees once
// per reference. Counting stops once limit is passed, so the result is at
// most limit+1.
func TreeSize(n Node, limit int) int {
	count := 0
	var walk func(Node)
	walk = func(n Node) {
		if count > limit {
			return
		}
		count++
		switch n := n.(type) {
		case *UnaryOp:
			walk(n.Operand)
		case *BinaryOp:
			walk(n.Left)
			walk(n.Right)
		case *Call:
			for _, a := range n.Args {
				walk(a)
			}
		}
	}
	walk(n)
	return count
}
