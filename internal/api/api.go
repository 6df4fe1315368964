// Package api holds the JSON response envelope shared by every handler.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope wraps every response body. Data is absent whenever Error is set.
type Envelope struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to write response", "component", "api", "error", err)
	}
}

// OK writes a 200 envelope carrying data.
func OK(w http.ResponseWriter, message string, data any) {
	WriteJSON(w, http.StatusOK, Envelope{Status: http.StatusOK, Message: message, Data: data})
}

// Fail writes an error envelope. The raw error text goes in Error and the
// summary in Message.
func Fail(w http.ResponseWriter, status int, message string, err error) {
	env := Envelope{Status: status, Message: message}
	if err != nil {
		env.Error = err.Error()
	}
	WriteJSON(w, status, env)
}
