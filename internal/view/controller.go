package view

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/gradient.surface/internal/db"
	"github.com/banshee-data/gradient.surface/internal/monitoring"
	"github.com/banshee-data/gradient.surface/internal/surface"
	"github.com/banshee-data/gradient.surface/internal/timeutil"
)

// Defaults for Options.
const (
	DefaultCopyDelay      = 2 * time.Second
	DefaultInstallCommand = "go install github.com/banshee-data/gradient.surface/cmd/gradient-surface@latest"
)

// History records successfully built expressions.
type History interface {
	RecordExpression(ctx context.Context, e db.Entry) (string, error)
}

// Options configure a Controller. Builder is required.
type Options struct {
	Builder        *surface.Builder
	Clock          timeutil.Clock
	History        History
	CopyDelay      time.Duration
	InstallCommand string
}

// Controller owns the view state. Text changes are serialised by buildMu
// and apply one at a time; mu only guards the state, so reads and copy
// presses do not wait for a build.
type Controller struct {
	buildMu   sync.Mutex
	mu        sync.Mutex
	state     State
	copyTimer timeutil.Timer

	builder        *surface.Builder
	clock          timeutil.Clock
	history        History
	copyDelay      time.Duration
	installCommand string
	logf           monitoring.LogFunc
}

// NewController returns a controller with an empty state.
func NewController(o Options) *Controller {
	c := &Controller{
		builder:        o.Builder,
		clock:          o.Clock,
		history:        o.History,
		copyDelay:      o.CopyDelay,
		installCommand: o.InstallCommand,
		logf:           monitoring.Prefixed("view: "),
	}
	if c.clock == nil {
		c.clock = timeutil.RealClock{}
	}
	if c.copyDelay <= 0 {
		c.copyDelay = DefaultCopyDelay
	}
	if c.installCommand == "" {
		c.installCommand = DefaultInstallCommand
	}
	return c
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// InstallCommand is the text the copy button puts on the clipboard.
func (c *Controller) InstallCommand() string { return c.installCommand }

// CopyDelay is how long the copy acknowledgement stays set.
func (c *Controller) CopyDelay() time.Duration { return c.copyDelay }

// SetText rebuilds the surface bundle for text and returns the new state.
// A failed build is logged and kept in State.Err; the previous bundle
// stays in place. When ctx ends before the build finishes the state is
// left unchanged and ctx's error is returned.
func (c *Controller) SetText(ctx context.Context, text string) (State, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()

	ev := TextChanged{Text: text}
	start := c.clock.Now()
	bundle, err := c.builder.Build(ctx, text)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		c.logf("%q: abandoned after %v: %v", text, c.clock.Since(start), err)
		return c.Snapshot(), ctx.Err()
	case err != nil:
		c.logf("%q: %v", text, err)
		ev.Err = err
	default:
		ev.Bundle = bundle
		c.logf("%q built with %s (%dx%d) in %v", text, bundle.Method, bundle.Config.Points, bundle.Config.Points, c.clock.Since(start))
		c.record(ctx, bundle)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, ev)
	return c.state, nil
}

// Copy acknowledges a copy press and arms the reset timer, replacing any
// pending one.
func (c *Controller) Copy() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Reduce(c.state, CopyPressed{})
	seq := c.state.CopySeq
	if c.copyTimer != nil {
		c.copyTimer.Stop()
	}
	c.copyTimer = c.clock.AfterFunc(c.copyDelay, func() {
		c.dispatch(CopyExpired{Seq: seq})
	})
	return c.state
}

func (c *Controller) dispatch(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, e)
}

func (c *Controller) record(ctx context.Context, b *surface.Bundle) {
	if c.history == nil {
		return
	}
	_, err := c.history.RecordExpression(ctx, db.Entry{
		Expression:     b.Expression,
		GradientMethod: b.Method,
		Points:         b.Config.Points,
		CreatedAt:      c.clock.Now(),
	})
	if err != nil {
		c.logf("recording %q: %v", b.Expression, err)
	}
}
