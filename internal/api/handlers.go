package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/banshee-data/gradient.surface/internal/db"
	"github.com/banshee-data/gradient.surface/internal/expr"
	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/httputil"
	"github.com/banshee-data/gradient.surface/internal/monitoring"
	"github.com/banshee-data/gradient.surface/internal/render"
	"github.com/banshee-data/gradient.surface/internal/surface"
	"github.com/banshee-data/gradient.surface/internal/version"
	"github.com/banshee-data/gradient.surface/internal/view"
)

// maxBodyBytes bounds POST bodies; expressions are capped well below it.
const maxBodyBytes = 16 << 10

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httputil.NotFound(w, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		httputil.MethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// handleSurface renders an expression without touching the view state.
func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()

	text := q.Get("expr")
	if text == "" {
		httputil.BadRequest(w, "missing 'expr' parameter")
		return
	}

	cfg := s.surface
	if p := q.Get("points"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 2 || n > surface.MaxPoints {
			httputil.BadRequest(w, fmt.Sprintf("'points' must be an integer between 2 and %d", surface.MaxPoints))
			return
		}
		cfg.Points = n
	}

	method := s.method
	if m := q.Get("method"); m != "" {
		method = m
	}
	provider, err := gradient.ByName(method)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	renderer, err := s.renderer(q.Get("format"), q.Get("surface"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.buildTimeout)
	defer cancel()
	bundle, err := surface.NewBuilder(provider, cfg).Build(ctx, text)
	if err != nil {
		monitoring.Logf("api: %q: %v", text, err)
		if ctx.Err() != nil {
			buildAbandoned(w)
			return
		}
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}
	s.writeRendered(w, renderer, bundle)
}

// buildAbandoned reports a build cut short by the timeout or by the
// client going away.
func buildAbandoned(w http.ResponseWriter) {
	httputil.WriteJSONError(w, http.StatusServiceUnavailable, "surface build timed out")
}

func (s *Server) renderer(format, kind string) (render.Renderer, error) {
	k, err := surface.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	o := s.render
	o.Surface = k
	return render.ByFormat(format, o)
}

// writeRendered renders into memory first so a failure can still produce
// a JSON error.
func (s *Server) writeRendered(w http.ResponseWriter, renderer render.Renderer, b *surface.Bundle) {
	var buf bytes.Buffer
	if err := renderer.Render(&buf, b); err != nil {
		if errors.Is(err, render.ErrNoFiniteValues) {
			httputil.WriteError(w, http.StatusUnprocessableEntity, err)
			return
		}
		monitoring.Logf("api: render %q: %v", b.Expression, err)
		httputil.InternalServerError(w, "failed to render surface")
		return
	}
	w.Header().Set("Content-Type", renderer.ContentType())
	w.Write(buf.Bytes())
}

// viewResponse is the JSON form of view.State. ErrorPos and ErrorEnd are
// UTF-16 offsets into Text.
type viewResponse struct {
	Text           string           `json:"text"`
	Error          string           `json:"error,omitempty"`
	ErrorPos       *int             `json:"error_pos,omitempty"`
	ErrorEnd       *int             `json:"error_end,omitempty"`
	ErrorExcerpt   string           `json:"error_excerpt,omitempty"`
	HasSurface     bool             `json:"has_surface"`
	Stale          bool             `json:"stale"`
	Copied         bool             `json:"copied"`
	InstallCommand string           `json:"install_command"`
	Functions      []string         `json:"functions"`
	Surface        *surface.Summary `json:"surface,omitempty"`
	Partials       *partials        `json:"partials,omitempty"`
}

// partials is the symbolic gradient of the current bundle's expression.
type partials struct {
	DX string `json:"dx"`
	DY string `json:"dy"`
}

func (s *Server) viewResponse(st view.State) viewResponse {
	resp := viewResponse{
		Text:           st.Text,
		HasSurface:     st.Bundle != nil,
		Stale:          st.Stale(),
		Copied:         st.Copied,
		InstallCommand: s.ctrl.InstallCommand(),
		Functions:      expr.Functions(),
	}
	if st.Err != nil {
		resp.Error = st.Err.Error()
		var perr *expr.Error
		if errors.As(st.Err, &perr) {
			pos, end := perr.Columns()
			resp.ErrorPos, resp.ErrorEnd = &pos, &end
			resp.ErrorExcerpt = perr.Excerpt()
		}
	}
	if st.Bundle != nil {
		sum := st.Bundle.Summary()
		resp.Surface = &sum
		if fn, err := expr.Compile(st.Bundle.Expression); err == nil {
			if dx, dy, ok := gradient.Partials(fn); ok {
				resp.Partials = &partials{DX: dx, DY: dy}
			}
		}
	}
	return resp
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, s.viewResponse(s.ctrl.Snapshot()))
}

// handleViewText applies a text change. An invalid expression is not a
// request error: it is reported in the returned state.
func (s *Server) handleViewText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	var req struct {
		Text *string `json:"text"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Text == nil {
		httputil.BadRequest(w, "missing 'text' field")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.buildTimeout)
	defer cancel()
	st, err := s.ctrl.SetText(ctx, *req.Text)
	if err != nil {
		buildAbandoned(w)
		return
	}
	httputil.WriteJSONOK(w, s.viewResponse(st))
}

func (s *Server) handleViewCopy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	st := s.ctrl.Copy()
	httputil.WriteJSONOK(w, map[string]any{
		"install_command": s.ctrl.InstallCommand(),
		"copied":          st.Copied,
		"reset_after_ms":  s.ctrl.CopyDelay().Milliseconds(),
	})
}

func (s *Server) handleViewPlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	renderer, err := s.renderer(q.Get("format"), q.Get("surface"))
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	st := s.ctrl.Snapshot()
	if st.Bundle == nil {
		httputil.NotFound(w, "no surface has been built yet")
		return
	}
	s.writeRendered(w, renderer, st.Bundle)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := s.historyLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 {
			httputil.BadRequest(w, "invalid 'limit' parameter")
			return
		}
		limit = n
	}
	entries := []db.Entry{}
	if s.history != nil {
		got, err := s.history.RecentExpressions(r.Context(), limit)
		if err != nil {
			monitoring.Logf("api: history: %v", err)
			httputil.InternalServerError(w, "failed to load history")
			return
		}
		entries = append(entries, got...)
	}
	httputil.WriteJSONOK(w, entries)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, version.Get())
}
