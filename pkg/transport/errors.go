package transport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rhuss/twinbot/pkg/api"
)

// AsAPIError unwraps err to an *api.APIError. Other errors become a bare
// server error so internal details never reach the client.
func AsAPIError(err error) *api.APIError {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return api.NewServerError("internal server error")
}

// WriteError writes err as a JSON error body with the status implied by
// its type.
func WriteError(w http.ResponseWriter, err error) {
	apiErr := AsAPIError(err)
	WriteErrorStatus(w, apiErr.Type.HTTPStatus(), apiErr)
}

// WriteErrorStatus writes apiErr with an explicit status. The HTTP adapter
// uses it for protocol failures such as 413 and 415 whose status is
// not implied by the error type.
func WriteErrorStatus(w http.ResponseWriter, status int, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr}); err != nil {
		slog.Debug("writing error response failed", "error", err)
	}
}
