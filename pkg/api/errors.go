package api

import (
	"net/http"
	"strings"
)

// ErrorType is the "type" field of an error body. Each type implies the
// HTTP status it is served with.
type ErrorType string

const (
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeAuthentication  ErrorType = "authentication_error"
	ErrorTypePermission      ErrorType = "permission_error"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeUpstreamError   ErrorType = "upstream_error"
	ErrorTypeUnavailable     ErrorType = "unavailable"
)

var statusByType = map[ErrorType]int{
	ErrorTypeInvalidRequest:  http.StatusBadRequest,
	ErrorTypeAuthentication:  http.StatusUnauthorized,
	ErrorTypePermission:      http.StatusForbidden,
	ErrorTypeTooManyRequests: http.StatusTooManyRequests,
	ErrorTypeServerError:     http.StatusInternalServerError,
	ErrorTypeUpstreamError:   http.StatusBadGateway,
	ErrorTypeUnavailable:     http.StatusServiceUnavailable,
}

// HTTPStatus returns the status for t; unknown types map to 500.
func (t ErrorType) HTTPStatus() int {
	if s, ok := statusByType[t]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// APIError is the payload of every non-2xx JSON response.
//
//	{"error": {"type": "upstream_error", "code": "timeout", "message": "..."}}
//
// Code refines the type (for upstream errors it is the simulation failure
// kind). Param names the offending request field for invalid requests.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error renders "type[/code]: message[ (param)]".
func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.Code != "" {
		b.WriteString("/" + e.Code)
	}
	b.WriteString(": " + e.Message)
	if e.Param != "" {
		b.WriteString(" (" + e.Param + ")")
	}
	return b.String()
}

// ErrorResponse is the top-level error body.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{Type: ErrorTypeInvalidRequest, Param: param, Message: message}
}

func NewAuthenticationError(message string) *APIError {
	return &APIError{Type: ErrorTypeAuthentication, Message: message}
}

func NewPermissionError(message string) *APIError {
	return &APIError{Type: ErrorTypePermission, Message: message}
}

func NewTooManyRequestsError(message string) *APIError {
	return &APIError{Type: ErrorTypeTooManyRequests, Message: message}
}

func NewServerError(message string) *APIError {
	return &APIError{Type: ErrorTypeServerError, Message: message}
}

// NewUpstreamError reports a failed simulation run in "error" failure
// mode. code is the failure kind, e.g. "timeout" or "exit_status".
func NewUpstreamError(code, message string) *APIError {
	return &APIError{Type: ErrorTypeUpstreamError, Code: code, Message: message}
}

func NewUnavailableError(message string) *APIError {
	return &APIError{Type: ErrorTypeUnavailable, Message: message}
}
