package render

import (
	"encoding/json"
	"io"
	"math"
	"strconv"

	"github.com/banshee-data/gradient.surface/internal/surface"
)

// Plotly writes the bundle as a plotly figure: three surface traces plus
// a layout, ready to hand to Plotly.react on the client.
type Plotly struct{}

func (Plotly) ContentType() string { return "application/json" }

// Figure is the plotly prop schema.
type Figure struct {
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Trace is one surface trace.
type Trace struct {
	X          Matrix  `json:"x"`
	Y          Matrix  `json:"y"`
	Z          Matrix  `json:"z"`
	Type       string  `json:"type"`
	Colorscale [][]any `json:"colorscale"`
	Opacity    float64 `json:"opacity,omitempty"`
	ShowScale  bool    `json:"showscale"`
	Name       string  `json:"name"`
	ShowLegend bool    `json:"showlegend"`
}

// Layout holds the subset of plotly layout options the page uses.
type Layout struct {
	Title    map[string]string `json:"title"`
	Scene    map[string]any    `json:"scene"`
	AutoSize bool              `json:"autosize"`
	Legend   map[string]any    `json:"legend"`
}

// Matrix marshals non-finite values as null, which plotly draws as gaps
// and encoding/json would otherwise reject.
type Matrix [][]float64

func (m Matrix) MarshalJSON() ([]byte, error) {
	buf := make([]byte, 0, 16*len(m)*len(m))
	buf = append(buf, '[')
	for i, row := range m {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		for j, v := range row {
			if j > 0 {
				buf = append(buf, ',')
			}
			if math.IsNaN(v) || math.IsInf(v, 0) {
				buf = append(buf, "null"...)
				continue
			}
			buf = strconv.AppendFloat(buf, v, 'g', -1, 64)
		}
		buf = append(buf, ']')
	}
	return append(buf, ']'), nil
}

// NewFigure builds the plotly figure for b.
func NewFigure(b *surface.Bundle) Figure {
	fig := Figure{
		Layout: Layout{
			Title: map[string]string{"text": chartTitle},
			Scene: map[string]any{
				"xaxis": map[string]any{"title": map[string]string{"text": "x"}},
				"yaxis": map[string]any{"title": map[string]string{"text": "y"}},
				"zaxis": map[string]any{"title": map[string]string{"text": "f"}},
			},
			AutoSize: true,
			Legend: map[string]any{
				"x":           0.01,
				"y":           0.99,
				"font":        map[string]int{"size": 15},
				"bgcolor":     "rgba(255, 255, 255, 0.7)",
				"bordercolor": "#ccc",
				"borderwidth": 1,
			},
		},
	}

	for _, s := range styles(b) {
		x, y, z := b.Grid(s.kind).Rows()
		t := Trace{
			X:    x,
			Y:    y,
			Z:    z,
			Type: "surface",
			Colorscale: [][]any{
				{0, s.colorscale[0]},
				{0.5, s.colorscale[1]},
				{1, s.colorscale[2]},
			},
			ShowScale:  s.showScale,
			Name:       s.name,
			ShowLegend: true,
		}
		if s.opacity < 1 {
			t.Opacity = s.opacity
		}
		fig.Data = append(fig.Data, t)
	}
	return fig
}

func (Plotly) Render(w io.Writer, b *surface.Bundle) error {
	return json.NewEncoder(w).Encode(NewFigure(b))
}
