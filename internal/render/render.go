// Package render turns surface bundles into something a browser can show:
// the plotly prop schema as JSON, a go-echarts 3D page, or a gonum/plot
// PNG of one surface.
package render

import (
	"fmt"
	"io"

	"github.com/banshee-data/gradient.surface/internal/surface"
)

// Renderer writes a bundle in one output format.
type Renderer interface {
	ContentType() string
	Render(w io.Writer, b *surface.Bundle) error
}

// Output formats accepted by ByFormat.
const (
	FormatJSON = "json"
	FormatHTML = "html"
	FormatPNG  = "png"
)

// Options tune the renderers returned by ByFormat.
type Options struct {
	// AssetsHost is where the echarts scripts are loaded from.
	AssetsHost string
	// Surface selects the grid drawn by the PNG renderer.
	Surface surface.Kind
	// MaxChartPoints caps the per-axis resolution of the HTML chart.
	MaxChartPoints int
}

// ByFormat returns the renderer for format; "" selects JSON.
func ByFormat(format string, o Options) (Renderer, error) {
	switch format {
	case "", FormatJSON:
		return Plotly{}, nil
	case FormatHTML:
		return ECharts{AssetsHost: o.AssetsHost, MaxPoints: o.MaxChartPoints}, nil
	case FormatPNG:
		return PNG{Surface: o.Surface}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want json, html or png)", format)
}

// surfaceStyle is the look of one surface, shared by all renderers.
type surfaceStyle struct {
	kind       surface.Kind
	name       string
	colorscale [3]string
	opacity    float64
	showScale  bool
}

func styles(b *surface.Bundle) []surfaceStyle {
	return []surfaceStyle{
		{
			kind:       surface.KindValue,
			name:       "f(x,y) = " + b.Expression,
			colorscale: [3]string{"#ffcb80", "#ff9500", "#ff7b00"},
			opacity:    1,
			showScale:  true,
		},
		{
			kind:       surface.KindDX,
			name:       "∂f/∂x (gradient w.r.t x)",
			colorscale: [3]string{"#80d6ff", "#00b3ff", "#0091d9"},
			opacity:    0.7,
		},
		{
			kind:       surface.KindDY,
			name:       "∂f/∂y (gradient w.r.t y)",
			colorscale: [3]string{"#ff80b0", "#ff3d7f", "#e60052"},
			opacity:    0.7,
		},
	}
}

const chartTitle = "3D Surface Plot with Gradient Visualization"
