// Package api serves the viewer page and its JSON endpoints.
package api

import (
	"context"
	_ "embed"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/banshee-data/gradient.surface/internal/db"
	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/render"
	"github.com/banshee-data/gradient.surface/internal/surface"
	"github.com/banshee-data/gradient.surface/internal/view"
)

// ANSI escape codes for the access log
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// colorize reports whether stderr is a terminal.
var colorize = isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())

func paint(color, s string) string {
	if !colorize {
		return s
	}
	return color + s + colorReset
}

//go:embed static/index.html
var indexHTML []byte

// History is the read side of the expression history.
type History interface {
	RecentExpressions(ctx context.Context, limit int) ([]db.Entry, error)
}

// Options configure a Server. Controller is required.
type Options struct {
	Controller *view.Controller
	History    History
	// Surface is the domain used by /api/surface when the query does not
	// override it.
	Surface        surface.Config
	GradientMethod string
	Render         render.Options
	HistoryLimit   int
	// BuildTimeout bounds each surface build a request starts.
	BuildTimeout time.Duration
}

// DefaultBuildTimeout is used when Options.BuildTimeout is zero.
const DefaultBuildTimeout = 10 * time.Second

type Server struct {
	ctrl         *view.Controller
	history      History
	surface      surface.Config
	method       string
	render       render.Options
	historyLimit int
	buildTimeout time.Duration
}

func NewServer(o Options) *Server {
	s := &Server{
		ctrl:         o.Controller,
		history:      o.History,
		surface:      o.Surface,
		method:       o.GradientMethod,
		render:       o.Render,
		historyLimit: o.HistoryLimit,
		buildTimeout: o.BuildTimeout,
	}
	if s.surface.Points == 0 {
		s.surface = surface.DefaultConfig()
	}
	if s.method == "" {
		s.method = gradient.Default
	}
	if s.historyLimit <= 0 {
		s.historyLimit = db.DefaultHistoryLimit
	}
	if s.buildTimeout <= 0 {
		s.buildTimeout = DefaultBuildTimeout
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	code := strconv.Itoa(statusCode)
	switch {
	case statusCode >= 200 && statusCode < 300:
		return paint(colorBoldGreen, code)
	case statusCode >= 300 && statusCode < 400:
		return paint(colorYellow, code)
	case statusCode >= 400:
		return paint(colorBoldRed, code)
	default:
		return code
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf(
			"[%s] %s %s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			paint(colorCyan, r.RequestURI),
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/surface", s.handleSurface)
	mux.HandleFunc("/api/view", s.handleView)
	mux.HandleFunc("/api/view/text", s.handleViewText)
	mux.HandleFunc("/api/view/copy", s.handleViewCopy)
	mux.HandleFunc("/api/view/plot", s.handleViewPlot)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/version", s.handleVersion)
	return mux
}
