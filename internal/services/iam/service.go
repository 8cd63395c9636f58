package iam

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/models"
	"github.com/smartrestaurant/gateway/internal/repository"
)

// LoginRecorder observes completed logins.
type LoginRecorder interface {
	IncLogin(result string)
}

// Service is the facade used by the HTTP layer for sign-on and session handling.
type Service struct {
	resolver      *RoleResolver
	sessions      repository.SessionRepository
	authenticator Authenticator
	sessionMaxAge time.Duration
	recorder      LoginRecorder
	now           func() time.Time
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	Resolver      *RoleResolver
	Sessions      repository.SessionRepository
	SessionMaxAge time.Duration
	Recorder      LoginRecorder
}

// NewService creates the IAM service.
func NewService(opts ServiceOptions) *Service {
	maxAge := opts.SessionMaxAge
	if maxAge <= 0 {
		maxAge = 12 * time.Hour
	}
	return &Service{
		resolver:      opts.Resolver,
		sessions:      opts.Sessions,
		authenticator: NewSessionAuthenticator(opts.Sessions),
		sessionMaxAge: maxAge,
		recorder:      opts.Recorder,
		now:           time.Now,
	}
}

// ResolvePrincipal resolves the identity's authorities and builds its Principal.
// It has no HTTP or session side effects. The principal expires with the access
// token, capped at the session max age.
func (s *Service) ResolvePrincipal(ctx context.Context, identity Identity, token AccessToken) *Principal {
	authorities := s.resolver.Resolve(ctx, identity, token)

	expiresAt := s.now().Add(s.sessionMaxAge)
	if !token.Expiry.IsZero() && token.Expiry.After(s.now()) && token.Expiry.Before(expiresAt) {
		expiresAt = token.Expiry
	}
	return NewPrincipal(identity, authorities, expiresAt)
}

// CompleteLogin resolves the principal, persists it as a new session and returns
// the opaque session token to hand to the browser.
func (s *Service) CompleteLogin(ctx context.Context, identity Identity, token AccessToken) (*Principal, string, error) {
	principal := s.ResolvePrincipal(ctx, identity, token)

	sessionToken, tokenHash, err := auth.GenerateSessionToken()
	if err != nil {
		s.recordLogin("error")
		return nil, "", fmt.Errorf("generate session token: %w", err)
	}

	session := &models.Session{
		ID:          uuid.NewString(),
		TokenHash:   tokenHash,
		Subject:     principal.Subject,
		Email:       principal.Email,
		Name:        principal.Name,
		Claims:      principal.claims,
		Authorities: principal.Authorities(),
		CreatedAt:   s.now(),
		ExpiresAt:   principal.ExpiresAt,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		s.recordLogin("error")
		return nil, "", fmt.Errorf("store session: %w", err)
	}

	principal = principal.withSession(session.ID)
	s.recordLogin("success")
	slog.InfoContext(ctx, "login completed",
		"subject", principal.Subject,
		"email", principal.Email,
		"authorities", principal.authorities,
		"session_id", session.ID,
	)
	return principal, sessionToken, nil
}

// Authenticate resolves the request's session cookie to its Principal.
func (s *Service) Authenticate(ctx context.Context, req AuthRequest) (*Principal, error) {
	return s.authenticator.Authenticate(ctx, req)
}

// Logout ends the session identified by the cookie token.
func (s *Service) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, auth.HashToken(sessionToken)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *Service) recordLogin(result string) {
	if s.recorder != nil {
		s.recorder.IncLogin(result)
	}
}
