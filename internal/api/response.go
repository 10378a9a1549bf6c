package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// ErrorResponse is the error body every endpoint returns.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorMapping ties a sentinel error to a status and code.
type ErrorMapping struct {
	Err    error
	Status int
	Code   string
}

// RespondJSON writes data as JSON. The body is encoded before the status is
// sent so an unencodable value turns into a 500 instead of a truncated reply.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if data != nil {
		if err := json.NewEncoder(&buf).Encode(data); err != nil {
			log.Printf("Failed to encode JSON response: %v", err)
			http.Error(w, `{"error":"Internal server error"}`, http.StatusInternalServerError)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// RespondError writes an error body with just a message.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondErrorWithCode writes an error body with a machine-readable code.
func RespondErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// RespondValidationError writes per-field errors as 422.
func RespondValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	RespondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "Validation failed",
		Code:    "validation_error",
		Details: fieldErrors,
	})
}

// RespondMappedError writes the first mapping err matches with err's message.
// Anything unmapped is logged and hidden behind a generic 500.
func RespondMappedError(w http.ResponseWriter, err error, mappings ...ErrorMapping) {
	for _, m := range mappings {
		if errors.Is(err, m.Err) {
			RespondErrorWithCode(w, m.Status, m.Code, err.Error())
			return
		}
	}
	log.Printf("Unhandled error: %v", err)
	RespondError(w, http.StatusInternalServerError, "Internal server error")
}
