// Package surface turns expression text into a surface bundle: the value
// grid of f(x, y) and the grids of both partial derivatives.
package surface

import (
	"context"
	"errors"
	"fmt"

	"github.com/banshee-data/gradient.surface/internal/expr"
	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/grid"
)

// ErrEvaluation is the single error kind of the pipeline: the expression
// could not be parsed or sampled.
var ErrEvaluation = errors.New("expression evaluation failed")

// Sampling limits.
const (
	DefaultPoints = 100
	MaxPoints     = 400
)

// Config is the sampling domain and resolution.
type Config struct {
	XRange grid.Range `json:"x_range"`
	YRange grid.Range `json:"y_range"`
	Points int        `json:"points"`
}

// DefaultConfig samples [-5, 5] × [-5, 5] at 100×100.
func DefaultConfig() Config {
	return Config{
		XRange: grid.Range{Min: -5, Max: 5},
		YRange: grid.Range{Min: -5, Max: 5},
		Points: DefaultPoints,
	}
}

// Validate checks the ranges and the point count.
func (c Config) Validate() error {
	if c.Points < 2 || c.Points > MaxPoints {
		return fmt.Errorf("points must be between 2 and %d, got %d", MaxPoints, c.Points)
	}
	if err := c.XRange.Validate(); err != nil {
		return fmt.Errorf("x_range: %w", err)
	}
	if err := c.YRange.Validate(); err != nil {
		return fmt.Errorf("y_range: %w", err)
	}
	return nil
}

// Bundle is the value surface and its two partial derivative surfaces.
type Bundle struct {
	Expression string
	Method     string
	Config     Config
	Value      *grid.Grid
	DX         *grid.Grid
	DY         *grid.Grid
}

// Builder runs the expression → bundle pipeline.
type Builder struct {
	Provider gradient.Provider
	Config   Config
}

// NewBuilder returns a Builder using the given provider and config.
func NewBuilder(p gradient.Provider, cfg Config) *Builder {
	return &Builder{Provider: p, Config: cfg}
}

// Build compiles text and samples the value and gradient grids. Every
// failure wraps ErrEvaluation; parse failures also wrap
// expr.ErrInvalidExpression. Sampling stops early with ctx.Err() wrapped
// when ctx is done.
func (b *Builder) Build(ctx context.Context, text string) (*Bundle, error) {
	if err := b.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	fn, err := expr.Compile(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEvaluation, err)
	}

	grad, err := b.Provider.Gradient(fn)
	if err != nil {
		return nil, fmt.Errorf("%w: gradient: %w", ErrEvaluation, err)
	}

	c := b.Config
	value, err := grid.SampleContext(ctx, c.XRange, c.YRange, c.Points, fn.Eval)
	if err != nil {
		return nil, fmt.Errorf("%w: value: %w", ErrEvaluation, err)
	}
	dx, err := grid.SampleContext(ctx, c.XRange, c.YRange, c.Points, func(x, y float64) float64 {
		d, _ := grad(x, y)
		return d
	})
	if err != nil {
		return nil, fmt.Errorf("%w: d/dx: %w", ErrEvaluation, err)
	}
	dy, err := grid.SampleContext(ctx, c.XRange, c.YRange, c.Points, func(x, y float64) float64 {
		_, d := grad(x, y)
		return d
	})
	if err != nil {
		return nil, fmt.Errorf("%w: d/dy: %w", ErrEvaluation, err)
	}

	return &Bundle{
		Expression: text,
		Method:     b.Provider.Name(),
		Config:     c,
		Value:      value,
		DX:         dx,
		DY:         dy,
	}, nil
}

// Kind selects one surface of a bundle.
type Kind string

// Surface kinds.
const (
	KindValue Kind = "value"
	KindDX    Kind = "dx"
	KindDY    Kind = "dy"
)

// ParseKind validates a kind name; "" selects the value surface.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindValue:
		return KindValue, nil
	case KindDX, KindDY:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown surface %q (want value, dx or dy)", s)
}

// Grid returns the grid of the given kind.
func (b *Bundle) Grid(k Kind) *grid.Grid {
	switch k {
	case KindDX:
		return b.DX
	case KindDY:
		return b.DY
	}
	return b.Value
}

// Summary is a JSON friendly description of a bundle without the grids.
type Summary struct {
	Expression string          `json:"expression"`
	Method     string          `json:"method"`
	Points     int             `json:"points"`
	XRange     grid.Range      `json:"x_range"`
	YRange     grid.Range      `json:"y_range"`
	Bounds     map[Kind][2]any `json:"bounds"`
}

// Summary returns the bundle's summary. Bounds of a surface with no
// finite value are reported as nulls.
func (b *Bundle) Summary() Summary {
	s := Summary{
		Expression: b.Expression,
		Method:     b.Method,
		Points:     b.Config.Points,
		XRange:     b.Config.XRange,
		YRange:     b.Config.YRange,
		Bounds:     make(map[Kind][2]any, 3),
	}
	for _, k := range []Kind{KindValue, KindDX, KindDY} {
		lo, hi, ok := b.Grid(k).Bounds()
		if ok {
			s.Bounds[k] = [2]any{lo, hi}
		} else {
			s.Bounds[k] = [2]any{nil, nil}
		}
	}
	return s
}
