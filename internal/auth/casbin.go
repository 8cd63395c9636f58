package auth

import (
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var casbinModelContent string

// ObjectAuthority is the casbin object every authority policy is written against.
const ObjectAuthority = "authority"

// NewAuthorityEnforcer builds an in-memory casbin enforcer with one policy per known
// authority (role:A may exercise authority A) and a grouping line for each configured
// inheritance (holder inherits every authority of the inherited role).
func NewAuthorityEnforcer(authorities []string, inherits map[string][]string) (casbin.IEnforcer, error) {
	m, err := model.NewModelFromString(casbinModelContent)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}

	for _, a := range NormalizeAuthorities(authorities) {
		if _, err := enforcer.AddPolicy(RoleID(a), ObjectAuthority, a); err != nil {
			return nil, fmt.Errorf("add policy for %s: %w", a, err)
		}
	}

	for holder, inherited := range inherits {
		h := NormalizeAuthority(holder)
		for _, in := range NormalizeAuthorities(inherited) {
			if h == in {
				continue
			}
			if _, err := enforcer.AddGroupingPolicy(RoleID(h), RoleID(in)); err != nil {
				return nil, fmt.Errorf("add inheritance %s -> %s: %w", h, in, err)
			}
		}
	}

	return enforcer, nil
}
