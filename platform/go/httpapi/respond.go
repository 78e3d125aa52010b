// Package httpapi holds the small JSON response envelope shared by middleware
// and domain handlers.
package httpapi

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the wire shape of every non-2xx response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable machine code, a human message and optional
// per-field validation messages.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
}

// WriteJSON serializes v with the given status. Encoding failures are ignored;
// headers are already on the wire at that point.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError emits the standard error envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: message}})
}

// WriteValidationError emits a 400 with per-field messages.
func WriteValidationError(w http.ResponseWriter, fields map[string][]string) {
	WriteJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{
		Code:    "validation_error",
		Message: "request validation failed",
		Fields:  fields,
	}})
}
