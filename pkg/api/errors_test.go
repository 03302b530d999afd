package api

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestErrorTypeHTTPStatus(t *testing.T) {
	tests := []struct {
		err  *APIError
		want int
	}{
		{NewInvalidRequestError("body", "invalid JSON"), http.StatusBadRequest},
		{NewAuthenticationError("authentication required"), http.StatusUnauthorized},
		{NewPermissionError("access denied"), http.StatusForbidden},
		{NewTooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{NewServerError("boom"), http.StatusInternalServerError},
		{NewUpstreamError("timeout", "MATLAB process timed out after 1m0s"), http.StatusBadGateway},
		{NewUnavailableError("store offline"), http.StatusServiceUnavailable},
		{&APIError{Type: "mystery"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.err.Type.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.err.Type, got, tt.want)
		}
	}
}

func TestAPIErrorString(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{NewInvalidRequestError("body", "invalid JSON"), "invalid_request: invalid JSON (body)"},
		{NewUpstreamError("exit_status", "MATLAB process failed: exit status 3"), "upstream_error/exit_status: MATLAB process failed: exit status 3"},
		{NewServerError("internal failure"), "server_error: internal failure"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestErrorResponseOmitsEmptyFields(t *testing.T) {
	data, err := json.Marshal(ErrorResponse{Error: NewServerError("fail")})
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"error":{"type":"server_error","message":"fail"}}`; got != want {
		t.Errorf("body = %s, want %s", got, want)
	}
}
