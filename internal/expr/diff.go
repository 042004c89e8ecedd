package expr

import "math"

// Diff returns the symbolic partial derivative of n with respect to the
// variable v. The result is lightly simplified: constant subtrees are
// folded and multiplications by 0 or 1 are removed.
func Diff(n Node, v string) Node {
	if !DependsOn(n, v) {
		return num(0)
	}

	switch n := n.(type) {
	case *Variable:
		return num(1)

	case *UnaryOp:
		d := Diff(n.Operand, v)
		if n.Op == '-' {
			return neg(d)
		}
		return d

	case *BinaryOp:
		a, b := n.Left, n.Right
		da, db := Diff(a, v), Diff(b, v)
		switch n.Op {
		case '+':
			return add(da, db)
		case '-':
			return sub(da, db)
		case '*':
			return add(mul(da, b), mul(a, db))
		case '/':
			return div(sub(mul(da, b), mul(a, db)), pow(b, num(2)))
		case '^':
			return diffPow(a, b, da, db, v)
		}

	case *Call:
		return diffCall(n, v)
	}
	return num(math.NaN())
}

func diffPow(a, b, da, db Node, v string) Node {
	switch {
	case !DependsOn(b, v):
		// d(a^c) = c * a^(c-1) * a'
		return mul(mul(b, pow(a, sub(b, num(1)))), da)
	case !DependsOn(a, v):
		// d(c^b) = c^b * ln(c) * b'
		return mul(mul(pow(a, b), call("log", a)), db)
	}
	// d(a^b) = a^b * (b' * ln(a) + b * a' / a)
	return mul(pow(a, b), add(mul(db, call("log", a)), div(mul(b, da), a)))
}

func diffCall(c *Call, v string) Node {
	u := c.Args[0]
	du := Diff(u, v)

	switch c.Name {
	case "sin":
		return mul(call("cos", u), du)
	case "cos":
		return neg(mul(call("sin", u), du))
	case "tan":
		return div(du, pow(call("cos", u), num(2)))
	case "asin":
		return div(du, call("sqrt", sub(num(1), pow(u, num(2)))))
	case "acos":
		return neg(div(du, call("sqrt", sub(num(1), pow(u, num(2))))))
	case "atan":
		return div(du, add(num(1), pow(u, num(2))))
	case "sinh":
		return mul(call("cosh", u), du)
	case "cosh":
		return mul(call("sinh", u), du)
	case "tanh":
		return div(du, pow(call("cosh", u), num(2)))
	case "exp":
		return mul(c, du)
	case "log", "ln":
		return div(du, u)
	case "log10":
		return div(du, mul(u, call("log", num(10))))
	case "log2":
		return div(du, mul(u, call("log", num(2))))
	case "sqrt":
		return div(du, mul(num(2), c))
	case "abs":
		return mul(div(u, c), du)
	case "pow":
		return Diff(&BinaryOp{Op: '^', Left: c.Args[0], Right: c.Args[1]}, v)
	case "atan2":
		y, x := c.Args[0], c.Args[1]
		dy, dx := Diff(y, v), Diff(x, v)
		return div(sub(mul(x, dy), mul(y, dx)), add(pow(x, num(2)), pow(y, num(2))))
	case "hypot":
		p, q := c.Args[0], c.Args[1]
		return div(add(mul(p, Diff(p, v)), mul(q, Diff(q, v))), c)
	}
	return num(math.NaN())
}

func num(v float64) *Literal { return &Literal{Value: v} }

func literal(n Node) (float64, bool) {
	if l, ok := n.(*Literal); ok {
		return l.Value, true
	}
	return 0, false
}

func isValue(n Node, v float64) bool {
	x, ok := literal(n)
	return ok && x == v
}

func call(name string, args ...Node) Node {
	c := &Call{Name: name, Args: args}
	if allLiteral(args) {
		return num(evalFloat(c, 0, 0))
	}
	return c
}

func allLiteral(nodes []Node) bool {
	for _, n := range nodes {
		if l, ok := n.(*Literal); !ok || l.Text != "" {
			return false
		}
	}
	return true
}

func neg(a Node) Node {
	if x, ok := literal(a); ok {
		return num(-x)
	}
	if u, ok := a.(*UnaryOp); ok && u.Op == '-' {
		return u.Operand
	}
	return &UnaryOp{Op: '-', Operand: a}
}

func add(a, b Node) Node {
	switch {
	case isValue(a, 0):
		return b
	case isValue(b, 0):
		return a
	}
	if x, ok := literal(a); ok {
		if y, ok := literal(b); ok {
			return num(x + y)
		}
	}
	return &BinaryOp{Op: '+', Left: a, Right: b}
}

func sub(a, b Node) Node {
	switch {
	case isValue(b, 0):
		return a
	case isValue(a, 0):
		return neg(b)
	}
	if x, ok := literal(a); ok {
		if y, ok := literal(b); ok {
			return num(x - y)
		}
	}
	return &BinaryOp{Op: '-', Left: a, Right: b}
}

func mul(a, b Node) Node {
	switch {
	case isValue(a, 0), isValue(b, 0):
		return num(0)
	case isValue(a, 1):
		return b
	case isValue(b, 1):
		return a
	case isValue(a, -1):
		return neg(b)
	case isValue(b, -1):
		return neg(a)
	}
	if x, ok := literal(a); ok {
		if y, ok := literal(b); ok {
			return num(x * y)
		}
	}
	return &BinaryOp{Op: '*', Left: a, Right: b}
}

func div(a, b Node) Node {
	switch {
	case isValue(a, 0):
		return num(0)
	case isValue(b, 1):
		return a
	}
	if x, ok := literal(a); ok {
		if y, ok := literal(b); ok && y != 0 {
			return num(x / y)
		}
	}
	return &BinaryOp{Op: '/', Left: a, Right: b}
}

func pow(a, b Node) Node {
	switch {
	case isValue(b, 0):
		return num(1)
	case isValue(b, 1):
		return a
	}
	if x, ok := literal(a); ok {
		if y, ok := literal(b); ok {
			return num(math.Pow(x, y))
		}
	}
	return &BinaryOp{Op: '^', Left: a, Right: b}
}
