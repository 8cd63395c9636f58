package iam

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/repository"
)

// ErrInvalidSession is returned for a session cookie that no longer maps to a live session.
var ErrInvalidSession = errors.New("invalid session")

// SessionAuthenticator authenticates requests using the session cookie.
//
//  1. Extract the session cookie, (nil, nil) if absent
//  2. Hash the cookie value and look the session up
//  3. Reject expired sessions
//  4. Rebuild the Principal stored at login
//
// Authorities are NOT re-resolved here; they were fixed at login.
type SessionAuthenticator struct {
	sessions repository.SessionRepository
	now      func() time.Time
}

// NewSessionAuthenticator creates a new session authenticator.
func NewSessionAuthenticator(sessions repository.SessionRepository) *SessionAuthenticator {
	return &SessionAuthenticator{sessions: sessions, now: time.Now}
}

// Authenticate implements Authenticator.
func (a *SessionAuthenticator) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	var token string
	for _, cookie := range req.Cookies {
		if cookie.Name == auth.SessionCookieName {
			token = cookie.Value
			break
		}
	}
	if token == "" {
		return nil, nil
	}

	session, err := a.sessions.GetByTokenHash(ctx, auth.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}

	if session.Expired(a.now()) {
		return nil, fmt.Errorf("%w: session has expired", ErrInvalidSession)
	}

	return principalFromSession(session), nil
}
