// Package httpx provides JSON response helpers and the uniform error
// envelope used by every endpoint.
package httpx

import (
	"encoding/json"
	"log"
	"net/http"
)

// RespondJSON writes a JSON response with the given status code and data.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// Envelope is the uniform error body: {"code", "name", "description"}.
// Description is a string for most errors and a field-message map for
// validation failures.
type Envelope struct {
	Code        int         `json:"code"`
	Name        string      `json:"name"`
	Description interface{} `json:"description"`
}

// RespondEnvelope writes the error envelope for a status code. The name is
// the standard reason phrase for the status.
func RespondEnvelope(w http.ResponseWriter, status int, description interface{}) {
	RespondJSON(w, status, Envelope{
		Code:        status,
		Name:        http.StatusText(status),
		Description: description,
	})
}
