package api

import (
	"fmt"
	"net/http"
)

// AppError is a client-facing error rendered inside the response envelope.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithError attaches the cause, kept out of the response body.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError reports a malformed request. field names the offending input when known.
func BadRequestError(field, message string) *AppError {
	return &AppError{Code: "ERR_BAD_REQUEST", Field: field, Message: message, Status: http.StatusBadRequest}
}

// ConflictError reports a request that clashes with work already in progress.
func ConflictError(message string) *AppError {
	return &AppError{Code: "ERR_CONFLICT", Message: message, Status: http.StatusConflict}
}

// InternalError reports a failure on the server side.
func InternalError(message string) *AppError {
	return &AppError{Code: "ERR_INTERNAL", Message: message, Status: http.StatusInternalServerError}
}
