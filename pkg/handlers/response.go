// Package handlers implements the UltraQC REST API.
package handlers

import (
	"encoding/json"
	"net/http"
)

// ScopeMiddleware attaches a database scope to the request context.
type ScopeMiddleware func(http.HandlerFunc) http.HandlerFunc

// ErrorBody is the JSON shape of every API error.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ErrorResponse writes an ErrorBody with the given status.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return WriteJSON(w, statusCode, ErrorBody{Error: errorCode, Message: message})
}

// WriteJSON encodes data as the response body with the given status.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}
