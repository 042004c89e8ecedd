// Command surface-export renders one expression to HTML, JSON and PNG
// files without starting the server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/banshee-data/gradient.surface/internal/config"
	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/grid"
	"github.com/banshee-data/gradient.surface/internal/render"
	"github.com/banshee-data/gradient.surface/internal/surface"
)

var (
	exprFlag   = flag.String("expr", "", "Expression f(x,y) to render (required)")
	outDir     = flag.String("out", "plots", "Base output directory")
	configFile = flag.String("config", "", "Optional JSON configuration file for domain and defaults")
	method     = flag.String("method", "", "Gradient method: dual, fd or symbolic")
	points     = flag.Int("points", 0, "Samples per axis (0 uses the configured value)")
	xmin       = flag.Float64("xmin", 0, "X range minimum (used with -xmax)")
	xmax       = flag.Float64("xmax", 0, "X range maximum")
	ymin       = flag.Float64("ymin", 0, "Y range minimum (used with -ymax)")
	ymax       = flag.Float64("ymax", 0, "Y range maximum")
)

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakeOutputDir returns <baseDir>/<timestamp> for t.
func MakeOutputDir(baseDir string, t time.Time) string {
	return filepath.Join(baseDir, FormatTimestamp(t))
}

// exportBundle writes every rendering of b into dir and returns the paths
// written. A surface with no finite values is skipped for PNG output.
func exportBundle(b *surface.Bundle, dir string, o render.Options) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var written []string
	write := func(name string, r render.Renderer) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := r.Render(f, b); err != nil {
			f.Close()
			os.Remove(path)
			return fmt.Errorf("%s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if err := write("surface.json", render.Plotly{}); err != nil {
		return written, err
	}
	if err := write("surface.html", render.ECharts{AssetsHost: o.AssetsHost, MaxPoints: o.MaxChartPoints}); err != nil {
		return written, err
	}
	for _, k := range []surface.Kind{surface.KindValue, surface.KindDX, surface.KindDY} {
		err := write(string(k)+".png", render.PNG{Surface: k})
		if errors.Is(err, render.ErrNoFiniteValues) {
			log.Printf("skipping %s.png: %v", k, err)
			continue
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// surfaceConfig applies the command line overrides to cfg.
func surfaceConfig(cfg *config.AppConfig) (surface.Config, error) {
	sc := cfg.SurfaceConfig()
	if *points > 0 {
		sc.Points = *points
	}
	if *xmin != 0 || *xmax != 0 {
		sc.XRange = grid.Range{Min: *xmin, Max: *xmax}
	}
	if *ymin != 0 || *ymax != 0 {
		sc.YRange = grid.Range{Min: *ymin, Max: *ymax}
	}
	return sc, sc.Validate()
}

func main() {
	flag.Parse()

	if *exprFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.EmptyAppConfig()
	if *configFile != "" {
		loaded, err := config.LoadAppConfig(*configFile)
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		cfg = loaded
	}
	if *method != "" {
		cfg.GradientMethod = method
	}

	provider, err := gradient.ByName(cfg.GetGradientMethod())
	if err != nil {
		log.Fatal(err)
	}
	sc, err := surfaceConfig(cfg)
	if err != nil {
		log.Fatalf("invalid domain: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	bundle, err := surface.NewBuilder(provider, sc).Build(ctx, *exprFlag)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("built %q with %s (%dx%d) in %v", bundle.Expression, bundle.Method, sc.Points, sc.Points, time.Since(start))

	dir := MakeOutputDir(*outDir, start)
	written, err := exportBundle(bundle, dir, render.Options{
		AssetsHost:     cfg.GetEChartsAssetsHost(),
		MaxChartPoints: cfg.GetMaxChartPoints(),
	})
	for _, path := range written {
		fmt.Println(path)
	}
	if err != nil {
		log.Fatalf("export failed: %v", err)
	}
}
