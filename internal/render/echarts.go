package render

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"github.com/banshee-data/gradient.surface/internal/grid"
	"github.com/banshee-data/gradient.surface/internal/surface"
)

// MaxChartPoints is the default per-axis cap for the HTML chart. echarts-gl
// slows down badly past a few thousand vertices per surface.
const MaxChartPoints = 60

// ECharts writes a standalone HTML page with the three surfaces drawn by
// echarts-gl.
type ECharts struct {
	AssetsHost string
	MaxPoints  int
}

func (ECharts) ContentType() string { return "text/html; charset=utf-8" }

// Chart builds the Surface3D chart for b.
func (e ECharts) Chart(b *surface.Bundle) *charts.Surface3D {
	limit := e.MaxPoints
	if limit <= 0 {
		limit = MaxChartPoints
	}
	idx := strideIndices(b.Config.Points, limit)

	init := opts.Initialization{
		PageTitle: "Gradient Surface",
		Width:     "100%",
		Height:    "720px",
	}
	if e.AssetsHost != "" {
		init.AssetsHost = e.AssetsHost
	}

	chart := charts.NewSurface3D()
	chart.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{
			Title:    chartTitle,
			Subtitle: fmt.Sprintf("method=%s points=%d shown=%d", b.Method, b.Config.Points, len(idx)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Left: "1%", Top: "8%"}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "x", Type: "value"}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "y", Type: "value"}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "f", Type: "value"}),
		charts.WithGrid3DOpts(opts.Grid3D{Show: opts.Bool(true)}),
	)

	for _, s := range styles(b) {
		chart.AddSeries(s.name, chartData(b.Grid(s.kind), idx),
			charts.WithItemStyleOpts(opts.ItemStyle{
				Color:   s.colorscale[1],
				Opacity: opts.Float(float32(s.opacity)),
			}),
		)
	}
	// AddSeries tags every Surface3D series as scatter3D.
	for i := range chart.MultiSeries {
		chart.MultiSeries[i].Type = types.ChartSurface3D
	}
	return chart
}

func (e ECharts) Render(w io.Writer, b *surface.Bundle) error {
	return e.Chart(b).Render(w)
}

// chartData lays the grid out the way echarts-gl expects a surface: y in
// the outer loop, x in the inner one. Missing values become "-".
func chartData(g *grid.Grid, idx []int) []opts.Chart3DData {
	data := make([]opts.Chart3DData, 0, len(idx)*len(idx))
	for _, j := range idx {
		for _, i := range idx {
			var z any = g.Z.At(i, j)
			if v := z.(float64); math.IsNaN(v) || math.IsInf(v, 0) {
				z = "-"
			}
			data = append(data, opts.Chart3DData{
				Value: []interface{}{g.X.At(i, j), g.Y.At(i, j), z},
			})
		}
	}
	return data
}

// strideIndices picks at most limit indices out of n, always keeping the
// first and last.
func strideIndices(n, limit int) []int {
	if n <= 0 {
		return nil
	}
	limit = max(limit, 2)
	stride := 1
	if n > limit {
		stride = (n + limit - 2) / (limit - 1)
	}
	idx := make([]int, 0, n/stride+1)
	for i := 0; i < n-1; i += stride {
		idx = append(idx, i)
	}
	return append(idx, n-1)
}
