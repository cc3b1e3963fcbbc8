package apierror

import (
	"encoding/json"
	"net/http"
)

// Error is a structured API error response.
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *Error) Error() string {
	return e.Message
}

// ToJSON renders the error envelope.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(map[string]any{
		"success": false,
		"error": map[string]string{
			"code":    e.Code,
			"message": e.Message,
		},
	})
	return data
}

// Write sends e as the response.
func (e *Error) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_, _ = w.Write(e.ToJSON())
}

func New(status int, code, message string) *Error {
	return &Error{StatusCode: status, Code: code, Message: message}
}

func BadRequest(message string) *Error {
	return New(http.StatusBadRequest, "BAD_REQUEST", message)
}

func Validation(message string) *Error {
	return New(http.StatusBadRequest, "VALIDATION_ERROR", message)
}

func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func Forbidden(message string) *Error {
	if message == "" {
		message = "Access denied"
	}
	return New(http.StatusForbidden, "FORBIDDEN", message)
}

func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return New(http.StatusNotFound, "NOT_FOUND", message)
}

func Conflict(code, message string) *Error {
	if code == "" {
		code = "CONFLICT"
	}
	return New(http.StatusConflict, code, message)
}

func BadGateway(code, message string) *Error {
	if code == "" {
		code = "BAD_GATEWAY"
	}
	return New(http.StatusBadGateway, code, message)
}

func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return New(http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
