package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Gateway failure taxonomy.
var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthorizationDenied    = errors.New("authorization denied")
	ErrNoRoute                = errors.New("no route matched")
	ErrUnknownPool            = errors.New("unknown backend pool")
	ErrBackendUnavailable     = errors.New("backend unavailable")
	ErrBackendTimeout         = errors.New("backend timeout")
	ErrBadRequestPath         = errors.New("malformed request path")
)

// StatusFor maps a gateway error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrBadRequestPath):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorizationDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNoRoute):
		return http.StatusNotFound
	case errors.Is(err, ErrBackendTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, ErrBackendUnavailable), errors.Is(err, ErrUnknownPool):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

// WriteError writes a small JSON error body. Headers already set on w are kept.
func WriteError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: message, Status: status})
}
