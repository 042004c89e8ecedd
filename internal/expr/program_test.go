package expr

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgram_MatchesTreeWalk(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"x + y",
		"-x^2 + +y",
		"sin(x) * cos(y) / (1 + x^2)",
		"atan2(y, x) - hypot(x, y) + pow(x, 2)",
		"log(x) + sqrt(y)",
		"e ** (x * pi)",
	}
	points := [][2]float64{{0.5, 2}, {-1.5, 0.25}, {3, -4}}

	for _, text := range exprs {
		t.Run(text, func(t *testing.T) {
			fn, err := Compile(text)
			require.NoError(t, err)
			prog, err := NewProgram(fn.Root())
			require.NoError(t, err)

			var got [1]float64
			for _, p := range points {
				prog.Eval(p[0], p[1], got[:])
				want := fn.Eval(p[0], p[1])
				if math.IsNaN(want) {
					assert.True(t, math.IsNaN(got[0]), "at %v", p)
					continue
				}
				assert.Equal(t, want, got[0], "at %v", p)
			}
		})
	}
}

func TestProgram_SharesSubtrees(t *testing.T) {
	t.Parallel()

	shared := &BinaryOp{Op: '*', Left: &Variable{Name: VarX}, Right: &Variable{Name: VarY}}
	root := &BinaryOp{Op: '+', Left: shared, Right: shared}

	prog, err := NewProgram(root, shared)
	require.NoError(t, err)
	assert.Equal(t, 4, prog.Len(), "x, y, x*y and the sum")

	var got [2]float64
	prog.Eval(3, 5, got[:])
	assert.Equal(t, [2]float64{30, 15}, got)
}

func TestProgram_LongChainDerivative(t *testing.T) {
	t.Parallel()

	fn, err := Compile(strings.Repeat("x*", 511) + "x")
	require.NoError(t, err)
	d := Diff(fn.Root(), VarX)

	// The unfolded derivative is quadratic in the chain length; the
	// program stays linear.
	assert.Greater(t, TreeSize(d, 100000), 100000)
	prog, err := NewProgram(d)
	require.NoError(t, err)
	assert.Less(t, prog.Len(), 8*1024)

	var got [1]float64
	prog.Eval(1, 0, got[:])
	assert.Equal(t, 512.0, got[0])
}

func TestProgram_TooComplex(t *testing.T) {
	t.Parallel()

	var n Node = &Variable{Name: VarX}
	for i := 0; i < MaxProgramSize; i++ {
		n = &BinaryOp{Op: '+', Left: n, Right: &Literal{Value: float64(i)}}
	}
	_, err := NewProgram(n)
	assert.ErrorIs(t, err, ErrTooComplex)
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestTreeSize(t *testing.T) {
	t.Parallel()

	fn, err := Compile("sin(x) + y * 2")
	require.NoError(t, err)
	assert.Equal(t, 6, TreeSize(fn.Root(), 100))
	assert.Equal(t, 4, TreeSize(fn.Root(), 3))
}
