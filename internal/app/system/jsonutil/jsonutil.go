// Package jsonutil holds the JSON request/response helpers shared by the API handlers.
package jsonutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dalemusser/studyshare/internal/app/system/inputval"
)

// MaxBodyBytes caps JSON request bodies.
const MaxBodyBytes = 1 << 20

// ErrBadJSON is returned by Decode for malformed or oversized bodies.
var ErrBadJSON = errors.New("invalid JSON body")

// Message is the standard error/info body.
type Message struct {
	Message string                `json:"message"`
	Errors  []inputval.FieldError `json:"errors,omitempty"`
}

// Write encodes v as JSON with the given status.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Error writes {"message": msg}.
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, Message{Message: msg})
}

// ValidationError writes a 400 with the first error as the message and all field errors.
func ValidationError(w http.ResponseWriter, res *inputval.Result) {
	Write(w, http.StatusBadRequest, Message{Message: res.First(), Errors: res.Errors})
}

// Decode reads a JSON body into dst. An empty body leaves dst untouched.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	return nil
}
