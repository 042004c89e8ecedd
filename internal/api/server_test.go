package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/gradient.surface/internal/db"
	"github.com/banshee-data/gradient.surface/internal/expr"
	"github.com/banshee-data/gradient.surface/internal/gradient"
	"github.com/banshee-data/gradient.surface/internal/grid"
	"github.com/banshee-data/gradient.surface/internal/monitoring"
	"github.com/banshee-data/gradient.surface/internal/render"
	"github.com/banshee-data/gradient.surface/internal/surface"
	"github.com/banshee-data/gradient.surface/internal/testutil"
	"github.com/banshee-data/gradient.surface/internal/timeutil"
	"github.com/banshee-data/gradient.surface/internal/version"
	"github.com/banshee-data/gradient.surface/internal/view"
)

type testEnv struct {
	mux   *http.ServeMux
	ctrl  *view.Controller
	clock *timeutil.MockClock
	db    *db.DB
}

func smallSurface() surface.Config {
	return surface.Config{
		XRange: grid.Range{Min: -1, Max: 1},
		YRange: grid.Range{Min: -1, Max: 1},
		Points: 5,
	}
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	prev := monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	database, err := db.NewDB(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	ctrl := view.NewController(view.Options{
		Builder: surface.NewBuilder(gradient.Dual{}, smallSurface()),
		Clock:   clock,
		History: database,
	})
	srv := NewServer(Options{
		Controller: ctrl,
		History:    database,
		Surface:    smallSurface(),
		Render:     render.Options{MaxChartPoints: 10},
	})
	return &testEnv{mux: srv.ServeMux(), ctrl: ctrl, clock: clock, db: database}
}

func (e *testEnv) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(e.mux, testutil.NewJSONRequest(t, http.MethodGet, path, nil))
}

func (e *testEnv) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.Serve(e.mux, testutil.NewJSONRequest(t, http.MethodPost, path, body))
}

func captureLog(w io.Writer) (restore func()) {
	flags := log.Flags()
	log.SetOutput(w)
	log.SetFlags(0)
	return func() {
		log.SetOutput(os.Stderr)
		log.SetFlags(flags)
	}
}

func TestIndex(t *testing.T) {
	env := setupTestServer(t)

	resp := env.get(t, "/")
	testutil.AssertStatusCode(t, resp.Code, http.StatusOK)
	assert.Contains(t, resp.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, resp.Body.String(), `id="expr"`)

	testutil.AssertStatusCode(t, env.get(t, "/nope").Code, http.StatusNotFound)
	testutil.AssertStatusCode(t, env.post(t, "/", nil).Code, http.StatusMethodNotAllowed)
}

func TestSurface_JSON(t *testing.T) {
	env := setupTestServer(t)

	resp := env.get(t, "/api/surface?expr=x%20%2B%20y&points=3")
	testutil.AssertStatusCode(t, resp.Code, http.StatusOK)
	assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))

	fig := testutil.DecodeJSON[render.Figure](t, resp)
	require.Len(t, fig.Data, 3)
	assert.Equal(t, render.Matrix{{-2, -1, 0}, {-1, 0, 1}, {0, 1, 2}}, fig.Data[0].Z)
	assert.Equal(t, render.Matrix{{1, 1, 1}, {1, 1, 1}, {1, 1, 1}}, fig.Data[1].Z)
}

func TestSurface_Formats(t *testing.T) {
	env := setupTestServer(t)

	html := env.get(t, "/api/surface?expr=sin(x)&format=html&method=symbolic")
	testutil.AssertStatusCode(t, html.Code, http.StatusOK)
	assert.Contains(t, html.Body.String(), `"type":"surface"`)

	png := env.get(t, "/api/surface?expr=x*y&format=png&surface=dy")
	testutil.AssertStatusCode(t, png.Code, http.StatusOK)
	assert.Equal(t, "image/png", png.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(png.Body.Bytes(), []byte("\x89PNG")))
}

func TestSurface_BadRequests(t *testing.T) {
	env := setupTestServer(t)

	tests := []struct {
		path    string
		status  int
		wantErr string
	}{
		{"/api/surface", http.StatusBadRequest, "missing 'expr'"},
		{"/api/surface?expr=x&points=1", http.StatusBadRequest, "'points'"},
		{"/api/surface?expr=x&points=401", http.StatusBadRequest, "'points'"},
		{"/api/surface?expr=x&method=magic", http.StatusBadRequest, "unknown gradient provider"},
		{"/api/surface?expr=x&format=svg", http.StatusBadRequest, "unknown format"},
		{"/api/surface?expr=x&surface=dz", http.StatusBadRequest, "unknown surface"},
		{"/api/surface?expr=import%20os", http.StatusBadRequest, "expression evaluation failed"},
		{"/api/surface?expr=sqrt(-1-x%5E2)&format=png", http.StatusUnprocessableEntity, "no finite values"},
	}
	for _, tt := range tests {
		resp := env.get(t, tt.path)
		testutil.AssertStatusCode(t, resp.Code, tt.status)
		body := testutil.DecodeJSON[map[string]any](t, resp)
		assert.Contains(t, body["error"], tt.wantErr, tt.path)
	}

	testutil.AssertStatusCode(t, env.post(t, "/api/surface?expr=x", nil).Code, http.StatusMethodNotAllowed)
}

func TestSurface_ErrorSpan(t *testing.T) {
	env := setupTestServer(t)

	resp := env.get(t, "/api/surface?expr=x%20%2B%20foo")
	testutil.AssertStatusCode(t, resp.Code, http.StatusBadRequest)
	body := testutil.DecodeJSON[map[string]any](t, resp)
	assert.Equal(t, 4.0, body["pos"])
	assert.Equal(t, 7.0, body["end"])
}

func TestView_TextLifecycle(t *testing.T) {
	env := setupTestServer(t)

	// Nothing built yet.
	initial := testutil.DecodeJSON[viewResponse](t, env.get(t, "/api/view"))
	assert.False(t, initial.HasSurface)
	testutil.AssertStatusCode(t, env.get(t, "/api/view/plot").Code, http.StatusNotFound)

	resp := env.post(t, "/api/view/text", map[string]string{"text": "x ** 2 + y ** 2"})
	testutil.AssertStatusCode(t, resp.Code, http.StatusOK)
	good := testutil.DecodeJSON[viewResponse](t, resp)
	assert.True(t, good.HasSurface)
	assert.Empty(t, good.Error)
	require.NotNil(t, good.Surface)
	assert.Equal(t, [2]any{0.0, 2.0}, good.Surface.Bounds[surface.KindValue])

	// A malformed expression reports an error but keeps the plot.
	resp = env.post(t, "/api/view/text", map[string]string{"text": "x ** "})
	testutil.AssertStatusCode(t, resp.Code, http.StatusOK)
	bad := testutil.DecodeJSON[viewResponse](t, resp)
	assert.Equal(t, "x ** ", bad.Text)
	assert.Contains(t, bad.Error, "expression evaluation failed")
	require.NotNil(t, bad.ErrorPos)
	assert.True(t, bad.HasSurface)
	assert.True(t, bad.Stale)
	assert.Equal(t, "x ** 2 + y ** 2", bad.Surface.Expression)

	plot := env.get(t, "/api/view/plot")
	testutil.AssertStatusCode(t, plot.Code, http.StatusOK)
	fig := testutil.DecodeJSON[render.Figure](t, plot)
	assert.Equal(t, "f(x,y) = x ** 2 + y ** 2", fig.Data[0].Name)

	history := testutil.DecodeJSON[[]db.Entry](t, env.get(t, "/api/history"))
	require.Len(t, history, 1)
	assert.Equal(t, "x ** 2 + y ** 2", history[0].Expression)
}

func TestView_PartialsAndFunctions(t *testing.T) {
	env := setupTestServer(t)

	resp := env.post(t, "/api/view/text", map[string]string{"text": "x^2 * y"})
	testutil.AssertStatusCode(t, resp.Code, http.StatusOK)
	v := testutil.DecodeJSON[viewResponse](t, resp)
	require.NotNil(t, v.Partials)
	assert.Equal(t, partials{DX: "2 * x * y", DY: "x^2"}, *v.Partials)
	assert.Equal(t, expr.Functions(), v.Functions)
	assert.Contains(t, v.Functions, "atan2")

	// Derivatives too large to print are left out; the surface is still built.
	resp = env.post(t, "/api/view/text", map[string]string{"text": strings.Repeat("x*", 100) + "x"})
	v = testutil.DecodeJSON[viewResponse](t, resp)
	assert.True(t, v.HasSurface)
	assert.Empty(t, v.Error)
	assert.Nil(t, v.Partials)
}

func TestView_ErrorColumnsCountUTF16(t *testing.T) {
	env := setupTestServer(t)

	// The ideographic space is three bytes but one UTF-16 unit.
	text := "x\u3000+ foo"
	resp := env.post(t, "/api/view/text", map[string]string{"text": text})
	v := testutil.DecodeJSON[viewResponse](t, resp)
	require.NotNil(t, v.ErrorPos)
	require.NotNil(t, v.ErrorEnd)
	assert.Equal(t, 4, *v.ErrorPos)
	assert.Equal(t, 7, *v.ErrorEnd)
	assert.Equal(t, "foo", v.ErrorExcerpt)

	body := testutil.DecodeJSON[map[string]any](t, env.get(t, "/api/surface?expr="+url.QueryEscape(text)))
	assert.Equal(t, 4.0, body["pos"])
	assert.Equal(t, 7.0, body["end"])
}

func TestBuild_AbandonedWithRequest(t *testing.T) {
	env := setupTestServer(t)
	env.post(t, "/api/view/text", map[string]string{"text": "x + y"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req := testutil.NewJSONRequest(t, http.MethodGet, "/api/surface?expr=x*y", nil).WithContext(ctx)
	resp := testutil.Serve(env.mux, req)
	testutil.AssertStatusCode(t, resp.Code, http.StatusServiceUnavailable)

	req = testutil.NewJSONRequest(t, http.MethodPost, "/api/view/text", map[string]string{"text": "x * y"}).WithContext(ctx)
	resp = testutil.Serve(env.mux, req)
	testutil.AssertStatusCode(t, resp.Code, http.StatusServiceUnavailable)
	assert.Equal(t, "x + y", env.ctrl.Snapshot().Text)
}

func TestNewServer_BuildTimeoutDefault(t *testing.T) {
	assert.Equal(t, DefaultBuildTimeout, NewServer(Options{}).buildTimeout)
	assert.Equal(t, time.Second, NewServer(Options{BuildTimeout: time.Second}).buildTimeout)
}

func TestView_TextBadBody(t *testing.T) {
	env := setupTestServer(t)

	testutil.AssertStatusCode(t, env.post(t, "/api/view/text", "{oops").Code, http.StatusBadRequest)
	testutil.AssertStatusCode(t, env.post(t, "/api/view/text", map[string]int{"txt": 1}).Code, http.StatusBadRequest)
	testutil.AssertStatusCode(t, env.get(t, "/api/view/text").Code, http.StatusMethodNotAllowed)

	huge := map[string]string{"text": strings.Repeat("x+", 20000)}
	testutil.AssertStatusCode(t, env.post(t, "/api/view/text", huge).Code, http.StatusBadRequest)
}

func TestView_Copy(t *testing.T) {
	env := setupTestServer(t)

	resp := env.post(t, "/api/view/copy", nil)
	testutil.AssertStatusCode(t, resp.Code, http.StatusOK)
	body := testutil.DecodeJSON[map[string]any](t, resp)
	assert.Equal(t, view.DefaultInstallCommand, body["install_command"])
	assert.Equal(t, true, body["copied"])
	assert.Equal(t, 2000.0, body["reset_after_ms"])

	assert.True(t, testutil.DecodeJSON[viewResponse](t, env.get(t, "/api/view")).Copied)
	env.clock.Advance(view.DefaultCopyDelay)
	assert.False(t, testutil.DecodeJSON[viewResponse](t, env.get(t, "/api/view")).Copied)
}

func TestHistory(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	for _, text := range []string{"x", "y", "x * y"} {
		env.ctrl.SetText(ctx, text)
	}
	all := testutil.DecodeJSON[[]db.Entry](t, env.get(t, "/api/history"))
	assert.Len(t, all, 3)

	two := testutil.DecodeJSON[[]db.Entry](t, env.get(t, "/api/history?limit=2"))
	assert.Len(t, two, 2)

	testutil.AssertStatusCode(t, env.get(t, "/api/history?limit=zero").Code, http.StatusBadRequest)
}

type failingHistory struct{}

func (failingHistory) RecentExpressions(context.Context, int) ([]db.Entry, error) {
	return nil, errors.New("locked")
}

func TestHistory_NoStoreAndFailure(t *testing.T) {
	prev := monitoring.SetLogger(nil)
	defer monitoring.SetLogger(prev)

	ctrl := view.NewController(view.Options{Builder: surface.NewBuilder(gradient.Dual{}, smallSurface())})

	empty := NewServer(Options{Controller: ctrl}).ServeMux()
	rec := testutil.Serve(empty, testutil.NewJSONRequest(t, http.MethodGet, "/api/history", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)
	assert.Equal(t, "[]\n", rec.Body.String())

	failing := NewServer(Options{Controller: ctrl, History: failingHistory{}}).ServeMux()
	rec = testutil.Serve(failing, testutil.NewJSONRequest(t, http.MethodGet, "/api/history", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusInternalServerError)
}

func TestVersion(t *testing.T) {
	env := setupTestServer(t)

	info := testutil.DecodeJSON[version.Info](t, env.get(t, "/api/version"))
	assert.Equal(t, version.Version, info.Version)
}

func forceColor(t *testing.T, on bool) {
	t.Helper()
	prev := colorize
	colorize = on
	t.Cleanup(func() { colorize = prev })
}

func TestLoggingMiddleware(t *testing.T) {
	forceColor(t, true)
	var logged bytes.Buffer
	restore := captureLog(&logged)
	defer restore()

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := testutil.Serve(h, testutil.NewJSONRequest(t, http.MethodGet, "/api/view?x=1", nil))

	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
	assert.Contains(t, logged.String(), "GET")
	assert.Contains(t, logged.String(), "/api/view?x=1")
	assert.Contains(t, logged.String(), colorBoldRed+"418"+colorReset)
}

func TestStatusCodeColor(t *testing.T) {
	forceColor(t, true)
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"500"+colorReset, statusCodeColor(500))
	assert.Equal(t, "101", statusCodeColor(101))
}

func TestStatusCodeColor_Plain(t *testing.T) {
	forceColor(t, false)
	assert.Equal(t, "200", statusCodeColor(200))
	assert.Equal(t, "404", statusCodeColor(404))
	assert.Equal(t, "/x", paint(colorCyan, "/x"))
}
