package httpx

import (
	"encoding/json"
	"net/http"
)

// Envelope is the uniform response body of the API.
type Envelope struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message,omitempty"`
	Count      *int         `json:"count,omitempty"`
	Total      *int         `json:"total,omitempty"`
	Pagination *Pagination  `json:"pagination,omitempty"`
	Data       any          `json:"data,omitempty"`
	Errors     []FieldError `json:"errors,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// List writes a paginated collection.
func List(w http.ResponseWriter, data any, count int, p Pagination) {
	total := p.Total
	JSON(w, http.StatusOK, Envelope{Success: true, Count: &count, Total: &total, Pagination: &p, Data: data})
}

// Fail writes an unsuccessful envelope.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// DecodeJSON decodes the request body into target. Decode failures are
// reported as validation errors.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return NewError(ErrValidation, "Request body is required")
	}
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return NewError(ErrValidation, "Malformed JSON body")
	}
	return nil
}
