package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrUnauthorized marks a 401 from the backend. Callers treat it as a
	// session invalidation signal.
	ErrUnauthorized = errors.New("backend: unauthorized")
	// ErrForbidden marks a 403 from the backend.
	ErrForbidden = errors.New("backend: forbidden")
	// ErrNotFound marks a 404 from the backend.
	ErrNotFound = errors.New("backend: not found")
	// ErrUnavailable wraps transport failures (dial, timeout, reset).
	ErrUnavailable = errors.New("backend: unavailable")
)

// APIError is returned for every non-2xx backend response.
type APIError struct {
	Method string
	Path   string
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("backend: %s %s: %d %s", e.Method, e.Path, e.Status, e.Detail)
}

// Is lets errors.Is match the status sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// Message returns the backend supplied detail, or the status text.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return http.StatusText(e.Status)
}

// IsUnauthorized reports whether err carries a 401.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// StatusOf returns the HTTP status carried by err, or 0 when err did not come
// from a backend response.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// DetailOf returns the human readable part of err suitable for a banner.
func DetailOf(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	if errors.Is(err, ErrUnavailable) {
		return "The pricing service is not reachable right now."
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

// parseDetail understands the error bodies emitted by the backend:
// {"detail": "msg"}, {"detail": [{"msg": "..."}]} and {"detail": {...}}.
func parseDetail(body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var text string
	if err := json.Unmarshal(envelope.Detail, &text); err == nil {
		return text
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(envelope.Detail, &items); err == nil {
		for _, item := range items {
			if item.Msg != "" {
				return item.Msg
			}
		}
	}
	return strings.TrimSpace(string(envelope.Detail))
}
