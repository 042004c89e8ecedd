package render

import (
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/gradient.surface/internal/grid"
	"github.com/banshee-data/gradient.surface/internal/surface"
)

// ErrNoFiniteValues is returned when a surface has nothing to draw.
var ErrNoFiniteValues = errors.New("surface has no finite values")

// Contour settings for the PNG renderer.
const (
	ContourLevels = 10
	pngSize       = 6 * vg.Inch
)

// PNG draws one surface of the bundle as a top-down heat map with contour
// lines, for environments without WebGL.
type PNG struct {
	Surface surface.Kind
}

func (PNG) ContentType() string { return "image/png" }

// Plot builds the gonum plot for the selected surface.
func (r PNG) Plot(b *surface.Bundle) (*plot.Plot, error) {
	kind := r.Surface
	if kind == "" {
		kind = surface.KindValue
	}
	g := b.Grid(kind)
	lo, hi, ok := g.Bounds()
	if !ok {
		return nil, fmt.Errorf("%s: %w", kind, ErrNoFiniteValues)
	}
	data := finiteXYZ{XYZ: g.XYZ(), lo: lo, hi: hi}

	p := plot.New()
	p.Title.Text = plotTitle(b, kind)
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	heat := plotter.NewHeatMap(data, palette.Heat(64, 1))
	heat.NaN = color.Gray{Y: 200}
	p.Add(heat)

	if hi > lo {
		contour := plotter.NewContour(data, contourLevels(lo, hi), nil)
		contour.LineStyles[0].Color = color.Black
		contour.LineStyles[0].Width = vg.Points(0.5)
		p.Add(contour)
	}
	return p, nil
}

// contourLevels returns ContourLevels values evenly spaced strictly
// inside (lo, hi).
func contourLevels(lo, hi float64) []float64 {
	levels := make([]float64, ContourLevels+2)
	floats.Span(levels, lo, hi)
	return levels[1 : len(levels)-1]
}

func (r PNG) Render(w io.Writer, b *surface.Bundle) error {
	p, err := r.Plot(b)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(pngSize, pngSize, "png")
	if err != nil {
		return fmt.Errorf("png writer: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}

func plotTitle(b *surface.Bundle, k surface.Kind) string {
	switch k {
	case surface.KindDX:
		return "∂f/∂x of " + b.Expression
	case surface.KindDY:
		return "∂f/∂y of " + b.Expression
	}
	return "f(x,y) = " + b.Expression
}

// finiteXYZ hides infinities from gonum/plot and reports the finite range
// through the Min/Max hooks NewHeatMap and NewContour look for.
type finiteXYZ struct {
	grid.XYZ
	lo, hi float64
}

func (f finiteXYZ) Z(c, r int) float64 {
	v := f.XYZ.Z(c, r)
	if math.IsInf(v, 0) {
		return math.NaN()
	}
	return v
}

func (f finiteXYZ) Min() float64 { return f.lo }
func (f finiteXYZ) Max() float64 { return f.hi }
