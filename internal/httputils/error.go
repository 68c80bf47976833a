// ABOUTME: HTTP error type carrying a status code.
// ABOUTME: HandleError writes it as a JSON error body.
package httputils

import (
	"errors"
	"net/http"
)

// HTTPError is an error with the status code it should be reported as.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewError creates an HTTPError.
func NewError(code int, message string) *HTTPError {
	return &HTTPError{Code: code, Message: message}
}

// HandleError writes err as JSON. Errors that are not HTTPErrors become a 500
// without leaking their message.
func HandleError(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		_ = JSONError(w, httpErr.Code, httpErr.Message)
		return
	}
	_ = JSONError(w, http.StatusInternalServerError, "internal server error")
}
