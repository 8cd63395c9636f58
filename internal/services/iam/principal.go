package iam

import (
	"context"
	"slices"
	"time"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/models"
)

// Principal represents a signed-in identity with pre-resolved authorities.
//
// This struct is IMMUTABLE after construction. Authorities are computed once at
// login and never modified; accessors return copies.
type Principal struct {
	// Subject is the stable OIDC subject.
	Subject string

	// Email is the verified email reported by the IdP (may be empty).
	Email string

	// Name is the display name (optional).
	Name string

	// SessionID references the session the principal was loaded from.
	SessionID string

	// ExpiresAt ends the principal's validity (session max age or token expiry).
	ExpiresAt time.Time

	claims      map[string]any
	authorities []string
}

// NewPrincipal builds a Principal. Authorities are normalized and de-duplicated.
func NewPrincipal(identity Identity, authorities []string, expiresAt time.Time) *Principal {
	claims := make(map[string]any, len(identity.Claims))
	for k, v := range identity.Claims {
		claims[k] = v
	}
	return &Principal{
		Subject:     identity.Subject,
		Email:       identity.Email,
		Name:        identity.Name,
		ExpiresAt:   expiresAt,
		claims:      claims,
		authorities: auth.NormalizeAuthorities(authorities),
	}
}

// principalFromSession rebuilds the principal stored at login.
func principalFromSession(s *models.Session) *Principal {
	p := NewPrincipal(Identity{
		Subject: s.Subject,
		Email:   s.Email,
		Name:    s.Name,
		Claims:  s.Claims,
	}, s.Authorities, s.ExpiresAt)
	return p.withSession(s.ID)
}

// withSession returns a copy of p bound to sessionID; p is left untouched.
func (p *Principal) withSession(sessionID string) *Principal {
	bound := *p
	bound.SessionID = sessionID
	return &bound
}

// Authorities returns a copy of the resolved authority set.
func (p *Principal) Authorities() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.authorities)
}

// Claims returns a shallow copy of the raw IdP claims.
func (p *Principal) Claims() map[string]any {
	if p == nil {
		return nil
	}
	out := make(map[string]any, len(p.claims))
	for k, v := range p.claims {
		out[k] = v
	}
	return out
}

// HasAuthority reports whether the authority was granted (ROLE_ prefix and case are ignored).
func (p *Principal) HasAuthority(authority string) bool {
	if p == nil {
		return false
	}
	return slices.Contains(p.authorities, auth.NormalizeAuthority(authority))
}

// IsExpired reports whether the principal is past ExpiresAt.
func (p *Principal) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && !now.Before(p.ExpiresAt)
}

// PrincipalID is the oracle/casbin member identifier: user:<email>, or user:<subject>
// when the IdP did not release an email.
func (p *Principal) PrincipalID() string {
	if p.Email != "" {
		return auth.MemberID(p.Email)
	}
	return auth.MemberID(p.Subject)
}

type principalContextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext returns the principal stored by WithPrincipal.
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}
