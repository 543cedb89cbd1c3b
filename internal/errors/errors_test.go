package errors

import (
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{API_VALIDATION, http.StatusBadRequest},
		{API_REFERENCE, http.StatusBadRequest},
		{API_TOKEN_EXPIRED, http.StatusUnauthorized},
		{API_AUTHZ, http.StatusForbidden},
		{API_INVALID_PAGE, http.StatusNotFound},
		{API_METHOD_NOT_ALLOWED, http.StatusMethodNotAllowed},
		{API_CONFLICT, http.StatusConflict},
		{API_UNSUPPORTED_MEDIA, http.StatusUnsupportedMediaType},
		{API_RATE_LIMIT, http.StatusTooManyRequests},
		{API_UNAVAILABLE, http.StatusServiceUnavailable},
		{API_INTERNAL, http.StatusInternalServerError},
		{ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.code, "msg", "").HTTPStatus; got != tt.want {
			t.Errorf("New(%s).HTTPStatus = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestKind(t *testing.T) {
	if got := New(API_NOT_FOUND, "missing", "").Kind(); got != "client_error" {
		t.Errorf("Kind() = %q, want client_error", got)
	}
	if got := New(API_INTERNAL, "boom", "").Kind(); got != "server_error" {
		t.Errorf("Kind() = %q, want server_error", got)
	}
}

func TestErrorString(t *testing.T) {
	e := NewWithDetails(API_VALIDATION, "payload validation failed", "corr-1", []string{"name"})
	if got, want := e.Error(), "API_VALIDATION: payload validation failed (details: [name])"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if e.CorrelationID != "corr-1" {
		t.Errorf("CorrelationID = %q", e.CorrelationID)
	}
}
