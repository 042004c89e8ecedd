// Package grid samples functions of two variables over an evenly spaced
// rectangular grid.
package grid

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Errors returned by Sample.
var (
	ErrTooFewPoints = errors.New("grid needs at least 2 points per axis")
	ErrInvalidRange = errors.New("invalid range")
)

// Func is a scalar function of two variables.
type Func func(x, y float64) float64

// Range is a closed interval on one axis.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Validate checks that the range is finite and non-empty.
func (r Range) Validate() error {
	if math.IsNaN(r.Min) || math.IsNaN(r.Max) || math.IsInf(r.Min, 0) || math.IsInf(r.Max, 0) {
		return fmt.Errorf("%w: [%v, %v] is not finite", ErrInvalidRange, r.Min, r.Max)
	}
	if r.Min >= r.Max {
		return fmt.Errorf("%w: min %v must be below max %v", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// At returns the i-th of n evenly spaced points. Both endpoints are exact.
func (r Range) At(i, n int) float64 {
	if i == n-1 {
		return r.Max
	}
	return r.Min + float64(i)*(r.Max-r.Min)/float64(n-1)
}

// Grid holds three N×N matrices: the x and y coordinate of every cell and
// the sampled value there. X is constant along each row and Y is constant
// down each column.
type Grid struct {
	X, Y, Z *mat.Dense
}

// Sample evaluates f at every point of the n×n grid spanning xr × yr.
// f is called exactly n² times.
func Sample(xr, yr Range, n int, f Func) (*Grid, error) {
	return SampleContext(context.Background(), xr, yr, n, f)
}

// SampleContext is Sample with cancellation. ctx is checked before each
// row; a cancelled sample returns ctx.Err().
func SampleContext(ctx context.Context, xr, yr Range, n int, f Func) (*Grid, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewPoints, n)
	}
	if err := xr.Validate(); err != nil {
		return nil, fmt.Errorf("x: %w", err)
	}
	if err := yr.Validate(); err != nil {
		return nil, fmt.Errorf("y: %w", err)
	}

	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range n {
		xs[i] = xr.At(i, n)
		ys[i] = yr.At(i, n)
	}

	g := &Grid{
		X: mat.NewDense(n, n, nil),
		Y: mat.NewDense(n, n, nil),
		Z: mat.NewDense(n, n, nil),
	}
	for i := range n {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j := range n {
			g.X.Set(i, j, xs[i])
			g.Y.Set(i, j, ys[j])
			g.Z.Set(i, j, f(xs[i], ys[j]))
		}
	}
	return g, nil
}

// Size returns N.
func (g *Grid) Size() int {
	r, _ := g.Z.Dims()
	return r
}

// XYZ returns a view of g implementing gonum/plot's plotter.GridXYZ, with
// x on the horizontal axis and y on the vertical one.
func (g *Grid) XYZ() XYZ { return XYZ{g: g} }

// XYZ adapts a Grid to plotter.GridXYZ.
type XYZ struct {
	g *Grid
}

// Dims returns the number of columns (x samples) and rows (y samples).
func (v XYZ) Dims() (c, r int) {
	return v.g.Z.Dims()
}

// Z returns the value at x index c and y index r.
func (v XYZ) Z(c, r int) float64 { return v.g.Z.At(c, r) }

// X returns the x coordinate of column c.
func (v XYZ) X(c int) float64 { return v.g.X.At(c, 0) }

// Y returns the y coordinate of row r.
func (v XYZ) Y(r int) float64 { return v.g.Y.At(0, r) }

// Bounds returns the smallest and largest finite values in Z. ok is false
// when no value is finite.
func (g *Grid) Bounds() (lo, hi float64, ok bool) {
	finite := make([]float64, 0, len(g.Z.RawMatrix().Data))
	for _, v := range g.Z.RawMatrix().Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return 0, 0, false
	}
	return floats.Min(finite), floats.Max(finite), true
}

// Rows returns the three matrices as nested slices, the shape plotting
// widgets expect.
func (g *Grid) Rows() (x, y, z [][]float64) {
	return rows(g.X), rows(g.Y), rows(g.Z)
}

func rows(m *mat.Dense) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range r {
		out[i] = make([]float64, c)
		copy(out[i], m.RawRowView(i))
	}
	return out
}
