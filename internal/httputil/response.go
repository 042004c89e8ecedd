// Package httputil holds the JSON response helpers shared by the API
// handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/banshee-data/gradient.surface/internal/monitoring"
)

// ErrorBody is the JSON shape of every error response. Pos and End are set
// for expression errors so the page can underline the offending text; they
// count UTF-16 code units, as JavaScript string indices do.
type ErrorBody struct {
	Error string `json:"error"`
	Pos   *int   `json:"pos,omitempty"`
	End   *int   `json:"end,omitempty"`
}

// WriteJSON writes a JSON response with the given status code and data.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		monitoring.Logf("failed to encode json response: %v", err)
	}
}

// WriteJSONOK writes a 200 JSON response.
func WriteJSONOK(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteJSONError writes {"error": msg} with the given status code.
func WriteJSONError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorBody{Error: msg})
}

// Positioned is implemented by errors that point into their input.
// Columns returns UTF-16 offsets.
type Positioned interface {
	error
	Columns() (pos, end int)
}

// WriteError writes err with the given status, adding the span of the
// first Positioned error in its chain.
func WriteError(w http.ResponseWriter, status int, err error) {
	body := ErrorBody{Error: err.Error()}
	var p Positioned
	if errors.As(err, &p) {
		pos, end := p.Columns()
		body.Pos, body.End = &pos, &end
	}
	WriteJSON(w, status, body)
}

// MethodNotAllowed writes a 405 response.
func MethodNotAllowed(w http.ResponseWriter) {
	WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// BadRequest writes a 400 response with the given message.
func BadRequest(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusBadRequest, msg)
}

// InternalServerError writes a 500 response.
func InternalServerError(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusInternalServerError, msg)
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, msg string) {
	WriteJSONError(w, http.StatusNotFound, msg)
}
