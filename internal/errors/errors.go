// Package errors provides standardized error handling for the admin API.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the admin API.
type ErrorCode string

const (
	// Validation errors
	API_VALIDATION   ErrorCode = "API_VALIDATION"   // Payload failed validation
	API_BAD_REQUEST  ErrorCode = "API_BAD_REQUEST"  // Malformed request
	API_INVALID_PAGE ErrorCode = "API_INVALID_PAGE" // Page number out of range
	API_REFERENCE    ErrorCode = "API_REFERENCE"    // Foreign key points nowhere

	// Authentication/Authorization errors
	API_AUTHN         ErrorCode = "API_AUTHN"         // Authentication failed
	API_AUTHZ         ErrorCode = "API_AUTHZ"         // Authorization failed
	API_TOKEN_INVALID ErrorCode = "API_TOKEN_INVALID" // Invalid bearer token
	API_TOKEN_EXPIRED ErrorCode = "API_TOKEN_EXPIRED" // Expired bearer token

	// Resource errors
	API_NOT_FOUND          ErrorCode = "API_NOT_FOUND"          // Resource not found
	API_CONFLICT           ErrorCode = "API_CONFLICT"           // Unique value already taken
	API_METHOD_NOT_ALLOWED ErrorCode = "API_METHOD_NOT_ALLOWED" // Method not supported by the route
	API_UNSUPPORTED_MEDIA  ErrorCode = "API_UNSUPPORTED_MEDIA"  // Body is not JSON

	// Rate limiting
	API_RATE_LIMIT ErrorCode = "API_RATE_LIMIT" // Rate limit exceeded

	// Server errors
	API_INTERNAL    ErrorCode = "API_INTERNAL"    // Internal server error
	API_UNAVAILABLE ErrorCode = "API_UNAVAILABLE" // Service unavailable
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode `json:"code"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlationId"`
	Details       any       `json:"details,omitempty"`
	HTTPStatus    int       `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details any) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Kind classifies the error the way the error log does: client_error for
// 4xx and server_error for 5xx.
func (e *Error) Kind() string {
	if e.HTTPStatus >= http.StatusInternalServerError {
		return "server_error"
	}
	return "client_error"
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case API_VALIDATION, API_BAD_REQUEST, API_REFERENCE:
		return http.StatusBadRequest
	case API_AUTHN, API_TOKEN_INVALID, API_TOKEN_EXPIRED:
		return http.StatusUnauthorized
	case API_AUTHZ:
		return http.StatusForbidden
	case API_NOT_FOUND, API_INVALID_PAGE:
		return http.StatusNotFound
	case API_METHOD_NOT_ALLOWED:
		return http.StatusMethodNotAllowed
	case API_CONFLICT:
		return http.StatusConflict
	case API_UNSUPPORTED_MEDIA:
		return http.StatusUnsupportedMediaType
	case API_RATE_LIMIT:
		return http.StatusTooManyRequests
	case API_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
