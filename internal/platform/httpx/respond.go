// Package httpx provides HTTP response utilities following RFC7807 problem details.
package httpx

import (
	"encoding/json"
	"net/http"
)

// ProblemDetail represents RFC7807 problem details.
type ProblemDetail struct {
	Type   string `json:"type,omitempty"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// FieldError points at a single offending line or field.
type FieldError struct {
	Code    string `json:"code"`
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// ValidationProblem extends ProblemDetail with per-field errors so a caller
// can display every violation at once.
type ValidationProblem struct {
	ProblemDetail
	Errors []FieldError `json:"errors"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Problem sends an RFC7807 problem details response.
func Problem(w http.ResponseWriter, status int, title, detail string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
	})
}

// UnprocessableEntity sends a 422 with the complete violation list.
func UnprocessableEntity(w http.ResponseWriter, errs []FieldError) {
	JSON(w, http.StatusUnprocessableEntity, ValidationProblem{
		ProblemDetail: ProblemDetail{
			Title:  "Validation Failed",
			Status: http.StatusUnprocessableEntity,
		},
		Errors: errs,
	})
}

// DecodeJSON decodes JSON request body into the target struct.
func DecodeJSON(r *http.Request, target any) error {
	return json.NewDecoder(r.Body).Decode(target)
}
