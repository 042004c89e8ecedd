package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/gradient.surface/internal/api"
	"github.com/banshee-data/gradient.surface/internal/config"
	"github.com/banshee-data/gradient.surface/internal/db"
	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/render"
	"github.com/banshee-data/gradient.surface/internal/surface"
	"github.com/banshee-data/gradient.surface/internal/timeutil"
	"github.com/banshee-data/gradient.surface/internal/version"
	"github.com/banshee-data/gradient.surface/internal/view"
)

var (
	devMode     = flag.Bool("dev", false, "Run in dev mode (file:line logging)")
	listen      = flag.String("listen", "", "Listen address (overrides config)")
	configFile  = flag.String("config", "", "Path to JSON configuration file")
	dbPathFlag  = flag.String("db", "", "Path to the SQLite history database (overrides config)")
	method      = flag.String("method", "", "Gradient method: dual, fd or symbolic (overrides config)")
	showVersion = flag.Bool("version", false, "Print version information and exit")
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

func usage() {
	out := flag.CommandLine.Output()
	fmt.Fprintf(out, "Usage: gradient-surface [flags]\n")
	fmt.Fprintf(out, "       gradient-surface migrate <up|down|status|force|help>\n")
	fmt.Fprintf(out, "       gradient-surface version\n\nFlags:\n")
	flag.PrintDefaults()
}

// loadConfig reads the config file and applies flag overrides. With no
// path, config.DefaultConfigPath is used if it exists.
func loadConfig(path, listenAddr, dbPath, gradientMethod string) (*config.AppConfig, error) {
	cfg := config.EmptyAppConfig()
	if path == "" {
		if _, err := os.Stat(config.DefaultConfigPath); err == nil {
			path = config.DefaultConfigPath
		}
	}
	if path != "" {
		loaded, err := config.LoadAppConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if listenAddr != "" {
		cfg.Listen = &listenAddr
	}
	if dbPath != "" {
		cfg.DBPath = &dbPath
	}
	if gradientMethod != "" {
		cfg.GradientMethod = &gradientMethod
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newHandler wires the view controller, the API server and the admin
// routes together. The controller starts on the configured default
// expression.
func newHandler(ctx context.Context, cfg *config.AppConfig, database *db.DB, clock timeutil.Clock) (http.Handler, *view.Controller, error) {
	provider, err := gradient.ByName(cfg.GetGradientMethod())
	if err != nil {
		return nil, nil, err
	}
	surfaceCfg := cfg.SurfaceConfig()

	opts := view.Options{
		Builder:        surface.NewBuilder(provider, surfaceCfg),
		Clock:          clock,
		CopyDelay:      cfg.GetCopyResetDelay(),
		InstallCommand: cfg.GetInstallCommand(),
	}
	var history api.History
	if database != nil {
		opts.History = database
		history = database
	}
	ctrl := view.NewController(opts)
	st, err := ctrl.SetText(ctx, cfg.GetDefaultExpression())
	if err != nil {
		return nil, nil, err
	}
	if st.Err != nil {
		log.Printf("default expression %q: %v", st.Text, st.Err)
	}

	server := api.NewServer(api.Options{
		Controller:     ctrl,
		History:        history,
		Surface:        surfaceCfg,
		GradientMethod: provider.Name(),
		Render: render.Options{
			AssetsHost:     cfg.GetEChartsAssetsHost(),
			MaxChartPoints: cfg.GetMaxChartPoints(),
		},
		HistoryLimit: cfg.GetHistoryLimit(),
		BuildTimeout: cfg.GetBuildTimeout(),
	})
	mux := server.ServeMux()
	if database != nil {
		database.AttachAdminRoutes(mux)
	}
	return api.LoggingMiddleware(mux), ctrl, nil
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion || flag.Arg(0) == "version" {
		fmt.Println(version.Get())
		return
	}
	if *devMode {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	cfg, err := loadConfig(*configFile, *listen, *dbPathFlag, *method)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], cfg.GetDBPath(), os.Stdout); err != nil {
			if errors.Is(err, db.ErrUsage) {
				os.Exit(2)
			}
			log.Fatalf("migrate: %v", err)
		}
		return
	}
	if flag.NArg() > 0 {
		usage()
		os.Exit(2)
	}

	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler, _, err := newHandler(ctx, cfg, database, timeutil.RealClock{})
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	server := &http.Server{
		Addr:              cfg.GetListen(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("gradient-surface %s listening on %s", version.Version, server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	log.Printf("Graceful shutdown complete")
}
