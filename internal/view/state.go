// Package view holds the viewer's UI state: the expression text, the last
// surface bundle and the copy acknowledgement. State changes only through
// Reduce; Controller is the single place that calls it.
package view

import "github.com/banshee-data/gradient.surface/internal/surface"

// State is an immutable snapshot of the view.
type State struct {
	// Text is the expression as last typed.
	Text string
	// Bundle is the last successfully built surface bundle, nil until the
	// first valid expression.
	Bundle *surface.Bundle
	// Err is the evaluation error for Text, nil when Bundle matches Text.
	Err error
	// Copied is set while the copy acknowledgement is showing.
	Copied bool
	// CopySeq counts copy presses; a CopyExpired event only clears Copied
	// when it carries the latest sequence number.
	CopySeq uint64
}

// Event is a state transition input.
type Event interface {
	isEvent()
}

// TextChanged carries the outcome of building a new expression. Exactly
// one of Bundle and Err is set.
type TextChanged struct {
	Text   string
	Bundle *surface.Bundle
	Err    error
}

// CopyPressed records a press of the copy button.
type CopyPressed struct{}

// CopyExpired asks to clear the acknowledgement armed by press Seq.
type CopyExpired struct {
	Seq uint64
}

func (TextChanged) isEvent() {}
func (CopyPressed) isEvent() {}
func (CopyExpired) isEvent() {}

// Reduce returns the state that follows s after e. A failed text change
// keeps the previous bundle on screen and reports the error next to it.
func Reduce(s State, e Event) State {
	switch e := e.(type) {
	case TextChanged:
		s.Text = e.Text
		if e.Err != nil {
			s.Err = e.Err
			return s
		}
		s.Bundle = e.Bundle
		s.Err = nil
	case CopyPressed:
		s.Copied = true
		s.CopySeq++
	case CopyExpired:
		if e.Seq == s.CopySeq {
			s.Copied = false
		}
	}
	return s
}

// Stale reports whether the displayed bundle is from an older expression.
func (s State) Stale() bool {
	return s.Bundle != nil && s.Bundle.Expression != s.Text
}
