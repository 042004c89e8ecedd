package expr

import (
	"fmt"
	"math"
	"sync"
)

// MaxProgramSize bounds the number of distinct nodes a Program may hold.
const MaxProgramSize = 1 << 14

// ErrTooComplex is returned by NewProgram when the trees exceed
// MaxProgramSize distinct nodes.
var ErrTooComplex = fmt.Errorf("%w: expression too complex", ErrInvalidExpression)

type opcode uint8

const (
	opConst opcode = iota
	opX
	opY
	opNeg
	opAdd
	opSub
	opMul
	opDiv
	opPow
	opCall
)

type instr struct {
	op   opcode
	val  float64
	a, b int
	fn   func([]float64) float64
	args []int
}

// Program is a set of expression trees flattened into one instruction
// list. A subtree shared by pointer, as Diff produces, is computed once
// per evaluation, so the cost of Eval is the number of distinct nodes
// rather than the size of the unfolded tree.
type Program struct {
	code  []instr
	roots []int
	slots sync.Pool
}

// NewProgram compiles roots into a single program.
func NewProgram(roots ...Node) (*Program, error) {
	c := compiler{index: make(map[Node]int)}
	p := &Program{roots: make([]int, len(roots))}
	for i, r := range roots {
		slot, err := c.compile(r)
		if err != nil {
			return nil, err
		}
		p.roots[i] = slot
	}
	p.code = c.code
	n := len(p.code)
	p.slots.New = func() any {
		s := make([]float64, n)
		return &s
	}
	return p, nil
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.code) }

// Eval evaluates every root at (x, y) into dst, which must hold one value
// per root.
func (p *Program) Eval(x, y float64, dst []float64) {
	sp := p.slots.Get().(*[]float64)
	s := *sp
	var args [2]float64
	for i, in := range p.code {
		switch in.op {
		case opConst:
			s[i] = in.val
		case opX:
			s[i] = x
		case opY:
			s[i] = y
		case opNeg:
			s[i] = -s[in.a]
		case opAdd:
			s[i] = s[in.a] + s[in.b]
		case opSub:
			s[i] = s[in.a] - s[in.b]
		case opMul:
			s[i] = s[in.a] * s[in.b]
		case opDiv:
			s[i] = s[in.a] / s[in.b]
		case opPow:
			s[i] = math.Pow(s[in.a], s[in.b])
		case opCall:
			a := args[:len(in.args)]
			for j, k := range in.args {
				a[j] = s[k]
			}
			s[i] = in.fn(a)
		}
	}
	for i, r := range p.roots {
		dst[i] = s[r]
	}
	p.slots.Put(sp)
}

type compiler struct {
	code  []instr
	index map[Node]int
}

func (c *compiler) emit(in instr) (int, error) {
	if len(c.code) >= MaxProgramSize {
		return 0, ErrTooComplex
	}
	c.code = append(c.code, in)
	return len(c.code) - 1, nil
}

func (c *compiler) compile(n Node) (int, error) {
	if slot, ok := c.index[n]; ok {
		return slot, nil
	}
	slot, err := c.compileNode(n)
	if err != nil {
		return 0, err
	}
	c.index[n] = slot
	return slot, nil
}

func (c *compiler) compileNode(n Node) (int, error) {
	switch n := n.(type) {
	case *Literal:
		return c.emit(instr{op: opConst, val: n.Value})

	case *Variable:
		if n.Name == VarX {
			return c.emit(instr{op: opX})
		}
		return c.emit(instr{op: opY})

	case *UnaryOp:
		a, err := c.compile(n.Operand)
		if err != nil || n.Op != '-' {
			return a, err
		}
		return c.emit(instr{op: opNeg, a: a})

	case *BinaryOp:
		a, err := c.compile(n.Left)
		if err != nil {
			return 0, err
		}
		b, err := c.compile(n.Right)
		if err != nil {
			return 0, err
		}
		op, ok := binaryOps[n.Op]
		if !ok {
			return c.emit(instr{op: opConst, val: math.NaN()})
		}
		return c.emit(instr{op: op, a: a, b: b})

	case *Call:
		fn, ok := builtins[n.Name]
		if !ok || len(n.Args) != fn.arity {
			return c.emit(instr{op: opConst, val: math.NaN()})
		}
		args := make([]int, len(n.Args))
		for i, arg := range n.Args {
			slot, err := c.compile(arg)
			if err != nil {
				return 0, err
			}
			args[i] = slot
		}
		return c.emit(instr{op: opCall, fn: fn.eval, args: args})
	}
	return c.emit(instr{op: opConst, val: math.NaN()})
}

var binaryOps = map[byte]opcode{
	'+': opAdd,
	'-': opSub,
	'*': opMul,
	'/': opDiv,
	'^': opPow,
}
