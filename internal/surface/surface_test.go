package surface

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/gradient.surface/internal/expr"
	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/grid"
)

func smallConfig(n int) Config {
	return Config{
		XRange: grid.Range{Min: -1, Max: 1},
		YRange: grid.Range{Min: -1, Max: 1},
		Points: n,
	}
}

func TestBuild_Paraboloid(t *testing.T) {
	t.Parallel()

	b := NewBuilder(gradient.Dual{}, DefaultConfig())
	bundle, err := b.Build(context.Background(), "x ** 2 + y ** 2")
	require.NoError(t, err)

	assert.Equal(t, "x ** 2 + y ** 2", bundle.Expression)
	assert.Equal(t, gradient.NameDual, bundle.Method)

	for _, g := range []*grid.Grid{bundle.Value, bundle.DX, bundle.DY} {
		assert.Equal(t, 100, g.Size())
	}

	n := bundle.Value.Size()
	for i := 0; i < n; i += 9 {
		for j := 0; j < n; j += 7 {
			x, y := bundle.Value.X.At(i, j), bundle.Value.Y.At(i, j)
			assert.InDelta(t, x*x+y*y, bundle.Value.Z.At(i, j), 1e-12)
			assert.InDelta(t, 2*x, bundle.DX.Z.At(i, j), 1e-9)
			assert.InDelta(t, 2*y, bundle.DY.Z.At(i, j), 1e-9)
		}
	}
}

func TestBuild_XPlusY(t *testing.T) {
	t.Parallel()

	bundle, err := NewBuilder(gradient.Symbolic{}, smallConfig(3)).Build(context.Background(), "x + y")
	require.NoError(t, err)

	_, _, z := bundle.Value.Rows()
	assert.Equal(t, [][]float64{{-2, -1, 0}, {-1, 0, 1}, {0, 1, 2}}, z)

	_, _, dx := bundle.DX.Rows()
	_, _, dy := bundle.DY.Rows()
	ones := [][]float64{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}
	assert.Equal(t, ones, dx)
	assert.Equal(t, ones, dy)
}

func TestBuild_Idempotent(t *testing.T) {
	t.Parallel()

	for _, name := range gradient.Names() {
		t.Run(name, func(t *testing.T) {
			p, err := gradient.ByName(name)
			require.NoError(t, err)
			b := NewBuilder(p, smallConfig(17))

			first, err := b.Build(context.Background(), "sin(x) * exp(y / 2)")
			require.NoError(t, err)
			second, err := b.Build(context.Background(), "sin(x) * exp(y / 2)")
			require.NoError(t, err)

			assert.Equal(t, first.Expression, second.Expression)
			for _, k := range []Kind{KindValue, KindDX, KindDY} {
				g1, g2 := first.Grid(k), second.Grid(k)
				assert.True(t, mat.Equal(g1.X, g2.X), "x %s", k)
				assert.True(t, mat.Equal(g1.Y, g2.Y), "y %s", k)
				assert.True(t, mat.Equal(g1.Z, g2.Z), "z %s", k)
			}
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	b := NewBuilder(gradient.Dual{}, smallConfig(5))

	for _, text := range []string{"", "x +", "import os", "x ** ** 2", "window.close()"} {
		bundle, err := b.Build(context.Background(), text)
		assert.Nil(t, bundle, text)
		assert.ErrorIs(t, err, ErrEvaluation, text)
		assert.ErrorIs(t, err, expr.ErrInvalidExpression, text)
	}

	bad := NewBuilder(gradient.Dual{}, smallConfig(1))
	_, err := bad.Build(context.Background(), "x")
	assert.ErrorIs(t, err, ErrEvaluation)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, DefaultConfig().Validate())

	c := DefaultConfig()
	c.Points = MaxPoints + 1
	assert.Error(t, c.Validate())

	c = DefaultConfig()
	c.YRange = grid.Range{Min: 3, Max: -3}
	assert.ErrorIs(t, c.Validate(), grid.ErrInvalidRange)
}

func TestParseKind(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Kind{"": KindValue, "value": KindValue, "dx": KindDX, "dy": KindDY} {
		got, err := ParseKind(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseKind("dz")
	assert.Error(t, err)
}

func TestBundle_Summary(t *testing.T) {
	t.Parallel()

	bundle, err := NewBuilder(gradient.Dual{}, smallConfig(3)).Build(context.Background(), "x + log(y)")
	require.NoError(t, err)

	s := bundle.Summary()
	assert.Equal(t, 3, s.Points)
	assert.Equal(t, [2]any{-1.0, 1.0}, s.Bounds[KindValue])
	assert.Equal(t, [2]any{1.0, 1.0}, s.Bounds[KindDX])

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"expression":"x + log(y)"`)
}

func TestBuild_LongProductChain(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("x*", 511) + "x"
	for _, name := range gradient.Names() {
		t.Run(name, func(t *testing.T) {
			p, err := gradient.ByName(name)
			require.NoError(t, err)

			start := time.Now()
			bundle, err := NewBuilder(p, smallConfig(DefaultPoints)).Build(context.Background(), text)
			require.NoError(t, err)
			assert.Less(t, time.Since(start), 10*time.Second)
			// Last row is x = 1, where d/dx x^512 = 512.
			assert.InDelta(t, 512, bundle.DX.Z.At(bundle.DX.Size()-1, 0), 0.01)
		})
	}
}

func TestBuild_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bundle, err := NewBuilder(gradient.Symbolic{}, DefaultConfig()).Build(ctx, "sin(x) * y")
	assert.Nil(t, bundle)
	assert.ErrorIs(t, err, ErrEvaluation)
	assert.ErrorIs(t, err, context.Canceled)
}
