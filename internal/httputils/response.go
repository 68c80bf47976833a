// ABOUTME: JSON response helpers for HTTP handlers.
package httputils

import (
	"encoding/json"
	"net/http"
)

// JSONResponse writes data as JSON with the given status. The body is encoded
// before the status goes out, so an unencodable value becomes a 500 instead of
// a truncated success.
func JSONResponse(w http.ResponseWriter, status int, data any) error {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to encode response"}` + "\n"))
		return err
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

// JSONError writes {"error": message} with the given status.
func JSONError(w http.ResponseWriter, status int, message string) error {
	return JSONResponse(w, status, map[string]string{
		"error": message,
	})
}
