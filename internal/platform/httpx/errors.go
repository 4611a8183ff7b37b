// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/pricedesk/pricedesk/internal/backend"
)

// Sentinel errors for handlers that answer JSON.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps errors to HTTP responses using RFC7807. Backend failures
// keep their status class: a rejected token is 401, an unreachable or
// failing backend is 502.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, backend.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrForbidden), errors.Is(err, backend.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, backend.ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "Your session has expired.")
	case errors.Is(err, backend.ErrUnavailable):
		Problem(w, http.StatusBadGateway, "Bad Gateway", backend.DetailOf(err))
	default:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			Problem(w, http.StatusBadGateway, "Bad Gateway", apiErr.Message())
			return
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
