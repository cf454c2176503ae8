package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
)

// ErrorResponse is the JSON envelope every API error is returned in.
// Success is always false; callers branch on it without inspecting the
// HTTP status. Error flattens the detail list for single-field callers.
type ErrorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors"`
}

// WriteError renders the standard error envelope. An encode failure is
// only logged; the status line is already on the wire at that point.
func WriteError(w http.ResponseWriter, status int, message string, details []string, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Message: message,
		Error:   strings.Join(details, "; "),
		Errors:  details,
	})
	if err != nil && log != nil {
		log.Error("failed to encode error response", "error", err)
	}
}
