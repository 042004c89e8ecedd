package expr

import (
	"errors"
	"fmt"
	"unicode/utf16"
	"unicode/utf8"
)

// ErrInvalidExpression is matched by every error Parse and Compile return.
var ErrInvalidExpression = errors.New("invalid expression")

// Input limits. Expression text arrives from HTTP clients.
const (
	MaxLength = 1024
	MaxDepth  = 128
)

// Error describes a parse failure at byte offsets [Pos, End) of Source.
type Error struct {
	Message string
	Pos     int
	End     int
	Source  string
}

func (e *Error) Error() string {
	if e.End > e.Pos+1 {
		return fmt.Sprintf("%s at %d-%d: %s", ErrInvalidExpression, e.Pos, e.End, e.Message)
	}
	return fmt.Sprintf("%s at %d: %s", ErrInvalidExpression, e.Pos, e.Message)
}

func (e *Error) Unwrap() error { return ErrInvalidExpression }

// Excerpt returns the offending source text, or "" at end of input.
func (e *Error) Excerpt() string {
	if e.Pos >= len(e.Source) {
		return ""
	}
	end := e.End
	if end > len(e.Source) || end <= e.Pos {
		end = e.Pos + 1
	}
	return e.Source[e.Pos:end]
}

// Columns returns the span as UTF-16 code unit offsets, the way browsers
// index strings.
func (e *Error) Columns() (pos, end int) {
	return utf16Offset(e.Source, e.Pos), utf16Offset(e.Source, e.End)
}

func utf16Offset(s string, off int) int {
	off = min(max(off, 0), len(s))
	for off > 0 && off < len(s) && !utf8.RuneStart(s[off]) {
		off--
	}
	n := 0
	for _, r := range s[:off] {
		n += utf16.RuneLen(r)
	}
	return n
}
