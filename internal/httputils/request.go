// ABOUTME: Request decoding helpers for HTTP handlers.
// ABOUTME: Accepts JSON bodies and HTML form posts.
package httputils

import (
	"encoding/json"
	"mime"
	"net/http"
)

// MaxBodyBytes bounds request bodies read by DecodeJSON and ParseForm.
const MaxBodyBytes = 1 << 20

// MediaType returns the request's Content-Type without parameters.
func MediaType(r *http.Request) string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// DecodeJSON decodes a JSON request body into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if MediaType(r) != "application/json" {
		return &HTTPError{
			Code:    http.StatusUnsupportedMediaType,
			Message: "Content-Type must be application/json",
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return &HTTPError{
			Code:    http.StatusBadRequest,
			Message: "invalid JSON payload: " + err.Error(),
		}
	}
	return nil
}

// ParseForm parses a url-encoded or multipart form body.
func ParseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	var err error
	if MediaType(r) == "multipart/form-data" {
		err = r.ParseMultipartForm(MaxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		return &HTTPError{
			Code:    http.StatusBadRequest,
			Message: "invalid form payload: " + err.Error(),
		}
	}
	return nil
}
