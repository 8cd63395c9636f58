package iam

import (
	"context"
	"net/http"
)

// Authenticator validates request credentials and returns the session Principal.
//
// Return values:
//   - (principal, nil): authentication successful
//   - (nil, nil): credentials not present
//   - (nil, error): credentials present but invalid (unknown or expired session)
type Authenticator interface {
	Authenticate(ctx context.Context, req AuthRequest) (*Principal, error)
}

// AuthRequest carries the parts of an HTTP request authenticators look at.
type AuthRequest struct {
	Headers http.Header
	Cookies []*http.Cookie
}

// NewAuthRequest extracts an AuthRequest from r.
func NewAuthRequest(r *http.Request) AuthRequest {
	return AuthRequest{Headers: r.Header, Cookies: r.Cookies()}
}
