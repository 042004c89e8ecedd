package expr

import (
	"math"

	"gonum.org/v1/gonum/num/dual"
)

// Function is a compiled expression of x and y.
type Function struct {
	source string
	root   Node
}

// Compile parses text and returns the evaluable function.
func Compile(text string) (*Function, error) {
	root, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return &Function{source: text, root: root}, nil
}

// FromNode wraps an existing tree, such as a derivative from Diff.
func FromNode(n Node) *Function {
	return &Function{source: n.String(), root: n}
}

// Source returns the text the function was compiled from.
func (f *Function) Source() string { return f.source }

// Root returns the expression tree.
func (f *Function) Root() Node { return f.root }

// Eval evaluates the function at (x, y). Domain errors such as log(-1)
// produce NaN rather than an error.
func (f *Function) Eval(x, y float64) float64 {
	return evalFloat(f.root, x, y)
}

// EvalDual evaluates the function over dual numbers, carrying the
// directional derivative in the Emag part.
func (f *Function) EvalDual(x, y dual.Number) dual.Number {
	return evalDual(f.root, x, y)
}

func evalFloat(n Node, x, y float64) float64 {
	switch n := n.(type) {
	case *Literal:
		return n.Value
	case *Variable:
		if n.Name == VarX {
			return x
		}
		return y
	case *UnaryOp:
		v := evalFloat(n.Operand, x, y)
		if n.Op == '-' {
			return -v
		}
		return v
	case *BinaryOp:
		l := evalFloat(n.Left, x, y)
		r := evalFloat(n.Right, x, y)
		switch n.Op {
		case '+':
			return l + r
		case '-':
			return l - r
		case '*':
			return l * r
		case '/':
			return l / r
		case '^':
			return math.Pow(l, r)
		}
	case *Call:
		args := make([]float64, len(n.Args))
		for i, a := range n.Args {
			args[i] = evalFloat(a, x, y)
		}
		return builtins[n.Name].eval(args)
	}
	return math.NaN()
}

func evalDual(n Node, x, y dual.Number) dual.Number {
	switch n := n.(type) {
	case *Literal:
		return dual.Number{Real: n.Value}
	case *Variable:
		if n.Name == VarX {
			return x
		}
		return y
	case *UnaryOp:
		v := evalDual(n.Operand, x, y)
		if n.Op == '-' {
			return dual.Scale(-1, v)
		}
		return v
	case *BinaryOp:
		l := evalDual(n.Left, x, y)
		r := evalDual(n.Right, x, y)
		switch n.Op {
		case '+':
			return dual.Add(l, r)
		case '-':
			return dual.Sub(l, r)
		case '*':
			return dual.Mul(l, r)
		case '/':
			return dual.Mul(l, dual.Inv(r))
		case '^':
			return powDual(l, r)
		}
	case *Call:
		args := make([]dual.Number, len(n.Args))
		for i, a := range n.Args {
			args[i] = evalDual(a, x, y)
		}
		return builtins[n.Name].dual(args)
	}
	return dual.Number{Real: math.NaN(), Emag: math.NaN()}
}
