// Package monitoring holds the process-wide diagnostic logger.
package monitoring

import "log"

// LogFunc is a printf-style logger.
type LogFunc func(format string, v ...interface{})

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger.
var Logf LogFunc = log.Printf

// SetLogger replaces the package logger and returns the previous one so
// tests can restore it. Passing nil installs a no-op logger.
func SetLogger(f LogFunc) LogFunc {
	prev := Logf
	if f == nil {
		f = func(string, ...interface{}) {}
	}
	Logf = f
	return prev
}

// Prefixed returns a logger that prepends prefix to every message and
// writes through whatever Logf is at call time.
func Prefixed(prefix string) LogFunc {
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
