// Package gradient provides the partial derivatives of compiled
// expressions. Providers are interchangeable: forward-mode automatic
// differentiation, finite differences and symbolic differentiation all
// satisfy the same interface.
package gradient

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/num/dual"

	"github.com/banshee-data/gradient.surface/internal/expr"
)

// ErrUnknownProvider is returned by ByName.
var ErrUnknownProvider = errors.New("unknown gradient provider")

// Func returns ∂f/∂x and ∂f/∂y at (x, y).
type Func func(x, y float64) (dx, dy float64)

// Provider turns a function into its gradient.
type Provider interface {
	Name() string
	Gradient(fn *expr.Function) (Func, error)
}

// Provider names accepted by ByName.
const (
	NameDual     = "dual"
	NameFD       = "fd"
	NameSymbolic = "symbolic"
)

// Default is the provider used when none is configured.
const Default = NameDual

var providers = map[string]Provider{
	NameDual:     Dual{},
	NameFD:       FiniteDifference{},
	NameSymbolic: Symbolic{},
}

// ByName returns the named provider.
func ByName(name string) (Provider, error) {
	p, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownProvider, name, Names())
	}
	return p, nil
}

// Names lists the registered providers.
func Names() []string {
	names := make([]string, 0, len(providers))
	for n := range providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dual differentiates by evaluating the expression over dual numbers, once
// seeded along x and once along y. Results are exact up to floating point.
type Dual struct{}

func (Dual) Name() string { return NameDual }

func (Dual) Gradient(fn *expr.Function) (Func, error) {
	if fn == nil {
		return nil, errors.New("nil function")
	}
	return func(x, y float64) (float64, float64) {
		dx := fn.EvalDual(dual.Number{Real: x, Emag: 1}, dual.Number{Real: y})
		dy := fn.EvalDual(dual.Number{Real: x}, dual.Number{Real: y, Emag: 1})
		return dx.Emag, dy.Emag
	}, nil
}

// FiniteDifference treats the function as a black box and estimates the
// gradient with a central difference stencil.
type FiniteDifference struct {
	// Step overrides the stencil step. Zero uses the formula default.
	Step float64
}

func (FiniteDifference) Name() string { return NameFD }

func (p FiniteDifference) Gradient(fn *expr.Function) (Func, error) {
	if fn == nil {
		return nil, errors.New("nil function")
	}
	settings := &fd.Settings{Formula: fd.Central, Step: p.Step}
	f := func(v []float64) float64 { return fn.Eval(v[0], v[1]) }
	return func(x, y float64) (float64, float64) {
		var dst [2]float64
		fd.Gradient(dst[:], f, []float64{x, y}, settings)
		return dst[0], dst[1]
	}, nil
}

// Symbolic differentiates the expression tree once and evaluates both
// derivatives as one program, sharing their common subexpressions.
type Symbolic struct{}

func (Symbolic) Name() string { return NameSymbolic }

func (Symbolic) Gradient(fn *expr.Function) (Func, error) {
	if fn == nil {
		return nil, errors.New("nil function")
	}
	prog, err := expr.NewProgram(expr.Diff(fn.Root(), expr.VarX), expr.Diff(fn.Root(), expr.VarY))
	if err != nil {
		return nil, err
	}
	return func(x, y float64) (float64, float64) {
		var d [2]float64
		prog.Eval(x, y, d[:])
		return d[0], d[1]
	}, nil
}

// MaxPartialNodes bounds the tree size of derivatives Partials will print.
const MaxPartialNodes = 200

// Partials returns the symbolic partial derivatives as text. ok is false
// when either derivative unfolds to more than MaxPartialNodes nodes.
func Partials(fn *expr.Function) (dx, dy string, ok bool) {
	ddx := expr.Diff(fn.Root(), expr.VarX)
	ddy := expr.Diff(fn.Root(), expr.VarY)
	if expr.TreeSize(ddx, MaxPartialNodes) > MaxPartialNodes || expr.TreeSize(ddy, MaxPartialNodes) > MaxPartialNodes {
		return "", "", false
	}
	return ddx.String(), ddy.String(), true
}
