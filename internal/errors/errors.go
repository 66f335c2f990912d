// Package errors maps optimization failures onto HTTP responses and
// provides the recovery middleware used by the API server.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/copyleftdev/spiderwasp/internal/benchmarks"
	"github.com/copyleftdev/spiderwasp/internal/optimization"
)

// Error is an error that carries the HTTP status it should be reported with.
type Error struct {
	// Status is the HTTP status code.
	Status int
	// Message is the client-facing description.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		if b.Len() > 0 {
			b.WriteString(": ")
		}
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error with a status and message.
func New(status int, msg string) *Error {
	return &Error{Status: status, Message: msg}
}

// Wrap attaches a status and message to err. It returns nil for a nil err.
func Wrap(err error, status int, msg string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Status: status, Message: msg, Err: err}
}

// BadRequest is shorthand for a 400.
func BadRequest(msg string, err error) *Error {
	return &Error{Status: http.StatusBadRequest, Message: msg, Err: err}
}

// NotFound is shorthand for a 404.
func NotFound(msg string) *Error {
	return New(http.StatusNotFound, msg)
}

// StatusCode picks the HTTP status for err. Configuration problems and
// unknown functions are the client's fault, evaluation and numerical
// failures are reported as unprocessable, anything else is a 500.
func StatusCode(err error) int {
	var e *Error
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.As(err, &e):
		return e.Status
	case stderrors.Is(err, benchmarks.ErrUnknownFunction):
		return http.StatusBadRequest
	case stderrors.Is(err, optimization.ErrConfiguration):
		return http.StatusBadRequest
	case stderrors.Is(err, optimization.ErrEvaluation), stderrors.Is(err, optimization.ErrNumerical):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Response is the JSON body written for failed requests.
type Response struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// WriteJSON writes err as a JSON error body with the status from StatusCode.
func WriteJSON(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	msg := http.StatusText(status)
	if status < http.StatusInternalServerError {
		msg = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response{Error: msg, Code: status})
}
