package iam

import (
	"fmt"

	"github.com/casbin/casbin/v2"

	"github.com/smartrestaurant/gateway/internal/auth"
)

// AuthorizeWithAuthorities reports whether ANY of the authorities grants required.
//
// This is a READ-ONLY check: each authority is queried as role:<A> against the
// static policy built by auth.NewAuthorityEnforcer, so configured inheritance
// (e.g. ADMIN inherits CLIENT) is honoured without mutating enforcer state.
func AuthorizeWithAuthorities(enforcer casbin.IEnforcer, authorities []string, required string) (bool, error) {
	if enforcer == nil {
		return false, fmt.Errorf("casbin enforcer not initialized")
	}
	if len(authorities) == 0 {
		return false, nil
	}

	want := auth.NormalizeAuthority(required)
	for _, a := range authorities {
		allowed, err := enforcer.Enforce(auth.RoleID(auth.NormalizeAuthority(a)), auth.ObjectAuthority, want)
		if err != nil {
			return false, fmt.Errorf("enforce %s for %s: %w", want, a, err)
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

// Authorizer decides whether a principal holds an authority.
type Authorizer interface {
	Authorize(p *Principal, authority string) (bool, error)
}

// EnforcerAuthorizer answers authority checks through a casbin enforcer.
type EnforcerAuthorizer struct {
	enforcer casbin.IEnforcer
}

// NewEnforcerAuthorizer wraps an enforcer built by auth.NewAuthorityEnforcer.
func NewEnforcerAuthorizer(enforcer casbin.IEnforcer) *EnforcerAuthorizer {
	return &EnforcerAuthorizer{enforcer: enforcer}
}

// Authorize implements Authorizer.
func (a *EnforcerAuthorizer) Authorize(p *Principal, authority string) (bool, error) {
	if p == nil {
		return false, nil
	}
	return AuthorizeWithAuthorities(a.enforcer, p.authorities, authority)
}
