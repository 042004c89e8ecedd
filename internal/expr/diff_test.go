package expr

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff_Simplified(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr string
		v    string
		want string
	}{
		{"x ** 2 + y ** 2", VarX, "2 * x"},
		{"x ** 2 + y ** 2", VarY, "2 * y"},
		{"x * y", VarX, "y"},
		{"3 * x + 7", VarX, "3"},
		{"y", VarX, "0"},
		{"sin(x)", VarX, "cos(x)"},
		{"-x", VarX, "-1"},
		{"exp(y)", VarY, "exp(y)"},
		{"log(x)", VarX, "1 / x"},
	}

	for _, tt := range tests {
		t.Run(tt.expr+"/d"+tt.v, func(t *testing.T) {
			n, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Diff(n, tt.v).String())
		})
	}
}

// TestDiff_MatchesCentralDifference checks the symbolic derivative against a
// central difference at a handful of points.
func TestDiff_MatchesCentralDifference(t *testing.T) {
	t.Parallel()

	exprs := []string{
		"x ** 2 + y ** 2",
		"sin(x) * cos(y)",
		"x ^ y",
		"exp(-(x^2 + y^2) / 4)",
		"tan(x / 4) + atan(y)",
		"asin(x / 10) - acos(y / 10)",
		"sinh(x / 3) * cosh(y / 3) + tanh(x * y)",
		"sqrt(x^2 + y^2 + 1)",
		"log10(x^2 + 1) + log2(y^2 + 1) + ln(x^2 + y^2 + 1)",
		"abs(x - y)",
		"pow(x, 3) + atan2(y, x + 10)",
		"hypot(x, y + 0.5)",
		"2 ^ (x / y)",
		"x / (y^2 + 1)",
	}
	points := [][2]float64{{0.7, 1.3}, {1.9, 0.4}, {2.5, 3.1}}

	for _, text := range exprs {
		t.Run(text, func(t *testing.T) {
			fn, err := Compile(text)
			require.NoError(t, err)
			dx := FromNode(Diff(fn.Root(), VarX))
			dy := FromNode(Diff(fn.Root(), VarY))

			for _, p := range points {
				want := numericPartials(fn, p[0], p[1])
				assert.InDelta(t, want[0], dx.Eval(p[0], p[1]), 1e-6, "d/dx at %v", p)
				assert.InDelta(t, want[1], dy.Eval(p[0], p[1]), 1e-6, "d/dy at %v", p)
			}
		})
	}
}

func numericPartials(fn *Function, x, y float64) [2]float64 {
	const h = 1e-6
	return [2]float64{
		(fn.Eval(x+h, y) - fn.Eval(x-h, y)) / (2 * h),
		(fn.Eval(x, y+h) - fn.Eval(x, y-h)) / (2 * h),
	}
}

func TestDiff_ConstantFolding(t *testing.T) {
	t.Parallel()

	n, err := Parse("x * log10(x)")
	require.NoError(t, err)
	d := Diff(n, VarX)

	fn := FromNode(d)
	assert.InDelta(t, math.Log10(5)+1/math.Ln10, fn.Eval(5, 0), 1e-12)
	assert.NotContains(t, d.String(), "log(10)")
}
