package api

import (
	"encoding/json"
	"io"
	"net/http"
)

// writeJSON writes a JSON response to the response writer.
func writeJSON(w io.Writer, data interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	return encoder.Encode(data)
}

func writeData(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = writeJSON(w, data)
}

// writeError sends an error response.
func writeError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	writeData(w, statusCode, map[string]string{
		"error":   errorCode,
		"message": message,
	})
}
