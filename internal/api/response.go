// Package api provides HTTP response utilities for the intake service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// fallbackErrorBody is sent when the envelope itself cannot be marshaled,
// so the client always receives valid JSON. It must stay in sync with the
// models.APIResponse field names.
const fallbackErrorBody = `{"status":"error","message":"Internal server error"}`

// writeJSONResponse writes the response envelope as JSON with the given
// status code. Marshal failures degrade to a 500 with a fixed error body.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal JSON response", "error", err)
		statusCode = http.StatusInternalServerError
		data = []byte(fallbackErrorBody)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}
