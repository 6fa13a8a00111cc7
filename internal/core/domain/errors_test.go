package domain

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected string
	}{
		{
			name:     "error with type and message",
			err:      &APIError{Type: ErrorTypeInvalidRequest, Message: "bad request"},
			expected: "invalid_request: bad request",
		},
		{
			name:     "error with type, code, and message",
			err:      &APIError{Type: ErrorTypeAuthentication, Code: ErrorCodeInvalidAPIKey, Message: "nope"},
			expected: "authentication (invalid_api_key): nope",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestAPIError_HTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      *APIError
		expected int
	}{
		{"invalid request", &APIError{Type: ErrorTypeInvalidRequest}, http.StatusBadRequest},
		{"authentication", &APIError{Type: ErrorTypeAuthentication}, http.StatusUnauthorized},
		{"permission", &APIError{Type: ErrorTypePermission}, http.StatusForbidden},
		{"not found", &APIError{Type: ErrorTypeNotFound}, http.StatusNotFound},
		{"upstream", &APIError{Type: ErrorTypeUpstream}, http.StatusBadGateway},
		{"server", &APIError{Type: ErrorTypeServer}, http.StatusInternalServerError},
		{"unknown", &APIError{Type: "weird"}, http.StatusInternalServerError},
		{"override", &APIError{Type: ErrorTypeServer, StatusCode: http.StatusTeapot}, http.StatusTeapot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.HTTPStatusCode(); got != tt.expected {
				t.Errorf("HTTPStatusCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		if got := ToAPIError(nil); got != nil {
			t.Errorf("ToAPIError(nil) = %v, want nil", got)
		}
	})

	t.Run("wrapped api error passes through", func(t *testing.T) {
		orig := ErrNotFound("gone")
		got := ToAPIError(fmt.Errorf("lookup: %w", orig))
		if got != orig {
			t.Errorf("ToAPIError() = %v, want %v", got, orig)
		}
	})

	t.Run("validation error", func(t *testing.T) {
		verr := &ValidationError{Model: "UserMessage"}
		verr.Add("text", "field required")

		got := ToAPIError(verr)
		if got.Type != ErrorTypeInvalidRequest || got.Code != ErrorCodeValidation {
			t.Errorf("ToAPIError() = %+v", got)
		}
		if got.HTTPStatusCode() != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", got.HTTPStatusCode())
		}
		if !errors.Is(got, verr) {
			t.Error("ToAPIError() should keep the validation error as cause")
		}
	})

	t.Run("plain error", func(t *testing.T) {
		cause := errors.New("disk on fire")
		got := ToAPIError(cause)
		if got.Type != ErrorTypeServer {
			t.Errorf("Type = %v, want server", got.Type)
		}
		if !errors.Is(got, cause) {
			t.Error("ToAPIError() should unwrap to cause")
		}
	})
}

func TestValidationError_Error(t *testing.T) {
	verr := &ValidationError{Model: "LLMInteraction"}
	verr.Add("source", "field required")
	want := "1 validation error for LLMInteraction: source: field required"
	if got := verr.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	verr.Add("ended_at", "field required")
	want = "2 validation errors for LLMInteraction: source: field required; ended_at: field required"
	if got := verr.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
