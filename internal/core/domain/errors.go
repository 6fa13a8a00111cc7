package domain

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorType represents the category of an API error.
type ErrorType string

const (
	// ErrorTypeInvalidRequest indicates a malformed or invalid request.
	ErrorTypeInvalidRequest ErrorType = "invalid_request"

	// ErrorTypeAuthentication indicates an authentication failure.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypePermission indicates a permission/authorization failure.
	ErrorTypePermission ErrorType = "permission"

	// ErrorTypeNotFound indicates a resource was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeUpstream indicates a model provider failed.
	ErrorTypeUpstream ErrorType = "upstream"

	// ErrorTypeServer indicates an internal server error.
	ErrorTypeServer ErrorType = "server"
)

// ErrorCode provides additional specificity beyond the error type.
type ErrorCode string

const (
	ErrorCodeInvalidAPIKey      ErrorCode = "invalid_api_key"
	ErrorCodeMissingCredentials ErrorCode = "missing_credentials"
	ErrorCodeValidation         ErrorCode = "validation_error"
	ErrorCodeMetadata           ErrorCode = "metadata_unavailable"
)

// APIError is the error shape rendered to HTTP clients.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code,omitempty"`
	Message string    `json:"message"`

	// Details carries structured extras, e.g. field errors.
	Details any `json:"details,omitempty"`

	// StatusCode overrides the status derived from Type.
	StatusCode int `json:"-"`

	cause error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *APIError) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypePermission:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewAPIError creates a new API error.
func NewAPIError(errType ErrorType, message string) *APIError {
	return &APIError{Type: errType, Message: message}
}

// WithCode adds an error code to the error.
func (e *APIError) WithCode(code ErrorCode) *APIError {
	e.Code = code
	return e
}

// WithCause records the error that produced e.
func (e *APIError) WithCause(err error) *APIError {
	e.cause = err
	return e
}

func ErrInvalidRequest(message string) *APIError {
	return NewAPIError(ErrorTypeInvalidRequest, message)
}

func ErrAuthentication(message string) *APIError {
	return NewAPIError(ErrorTypeAuthentication, message)
}

func ErrPermission(message string) *APIError {
	return NewAPIError(ErrorTypePermission, message)
}

func ErrNotFound(message string) *APIError {
	return NewAPIError(ErrorTypeNotFound, message)
}

func ErrServer(message string) *APIError {
	return NewAPIError(ErrorTypeServer, message)
}

// ToAPIError converts any error into an APIError. Validation errors become
// invalid_request; anything unrecognized becomes a server error that keeps
// err as its cause.
func ToAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		return ErrInvalidRequest(verr.Error()).
			WithCode(ErrorCodeValidation).
			WithCause(err).
			withDetails(verr.Errors)
	}

	return ErrServer(err.Error()).WithCause(err)
}

func (e *APIError) withDetails(d any) *APIError {
	e.Details = d
	return e
}

// FieldError describes one invalid or missing field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a record cannot be constructed from the
// values it was given.
type ValidationError struct {
	Model  string       `json:"model"`
	Errors []FieldError `json:"errors"`
}

// Add appends a field error.
func (e *ValidationError) Add(field, message string) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any field error was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Has reports whether field has a recorded error.
func (e *ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	noun := "errors"
	if len(e.Errors) == 1 {
		noun = "error"
	}
	return fmt.Sprintf("%d validation %s for %s: %s", len(e.Errors), noun, e.Model, strings.Join(parts, "; "))
}
