package gateway

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/services/iam"
)

// Access is the requirement an authz rule places on the request.
type Access string

const (
	AccessPublic        Access = "public"
	AccessAuthenticated Access = "authenticated"
	AccessAuthority     Access = "authority"
)

// AuthzRule is one entry of the ordered authorization table.
type AuthzRule struct {
	Pattern   Pattern
	Method    string
	Access    Access
	Authority string
}

func compileAuthzRule(as AuthzSpec) (AuthzRule, error) {
	pattern, err := CompilePattern(as.Path)
	if err != nil {
		return AuthzRule{}, err
	}
	rule := AuthzRule{
		Pattern: pattern,
		Method:  strings.ToUpper(as.Method),
		Access:  Access(as.Access),
	}
	switch rule.Access {
	case AccessPublic, AccessAuthenticated:
	case AccessAuthority:
		rule.Authority = auth.NormalizeAuthority(as.Authority)
		if rule.Authority == "" {
			return AuthzRule{}, fmt.Errorf("access %q requires an authority", as.Access)
		}
	default:
		return AuthzRule{}, fmt.Errorf("unknown access %q", as.Access)
	}
	return rule, nil
}

// Matches reports whether the rule applies to method and path.
func (r AuthzRule) Matches(method, path string) bool {
	if r.Method != "" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return r.Pattern.Match(path)
}

// String renders the rule for logs and listings.
func (r AuthzRule) String() string {
	method := r.Method
	if method == "" {
		method = "*"
	}
	requirement := string(r.Access)
	if r.Access == AccessAuthority {
		requirement = "authority " + r.Authority
	}
	return fmt.Sprintf("%s %s -> %s", method, r.Pattern, requirement)
}

// Outcome is the guard's verdict.
type Outcome int

const (
	Allow Outcome = iota
	AuthenticationRequired
	AuthorizationDenied
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case AuthenticationRequired:
		return "authentication_required"
	case AuthorizationDenied:
		return "authorization_denied"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// ImplicitRuleIndex marks a decision taken by the trailing catch-all rule.
const ImplicitRuleIndex = -1

// Decision is the result of Guard.Check.
type Decision struct {
	Outcome Outcome

	// RuleIndex is the index of the deciding rule, or ImplicitRuleIndex.
	RuleIndex int
	Rule      AuthzRule
	Reason    string
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == Allow
}

// Guard evaluates the ordered authz table. It is read-only after construction.
type Guard struct {
	rules      []AuthzRule
	authorizer iam.Authorizer
}

// NewGuard creates a guard. A nil authorizer falls back to exact authority membership.
func NewGuard(rules []AuthzRule, authorizer iam.Authorizer) *Guard {
	return &Guard{rules: rules, authorizer: authorizer}
}

// Rules returns the explicit rules in evaluation order.
func (g *Guard) Rules() []AuthzRule {
	out := make([]AuthzRule, len(g.rules))
	copy(out, g.rules)
	return out
}

// CheckPath walks the rules in order and applies the first match. With no match
// the implicit trailing rule requires a signed-in principal. path must already be
// canonical (see CanonicalPath).
func (g *Guard) CheckPath(method, path string, principal *iam.Principal) Decision {
	for i, rule := range g.rules {
		if !rule.Matches(method, path) {
			continue
		}
		return g.evaluate(i, rule, principal)
	}
	return g.evaluate(ImplicitRuleIndex, AuthzRule{Pattern: MustCompilePattern("/**"), Access: AccessAuthenticated}, principal)
}

func (g *Guard) evaluate(index int, rule AuthzRule, principal *iam.Principal) Decision {
	d := Decision{RuleIndex: index, Rule: rule}

	signedIn := principal != nil && len(principal.Authorities()) > 0

	switch rule.Access {
	case AccessPublic:
		d.Outcome = Allow
		d.Reason = "public"
	case AccessAuthenticated:
		if signedIn {
			d.Outcome, d.Reason = Allow, "authenticated"
		} else {
			d.Outcome, d.Reason = AuthenticationRequired, "no session"
		}
	case AccessAuthority:
		switch {
		case !signedIn:
			d.Outcome, d.Reason = AuthenticationRequired, "no session"
		case g.hasAuthority(principal, rule.Authority):
			d.Outcome, d.Reason = Allow, "authority "+rule.Authority
		default:
			d.Outcome, d.Reason = AuthorizationDenied, "missing authority "+rule.Authority
		}
	default:
		d.Outcome, d.Reason = AuthorizationDenied, "unknown access "+string(rule.Access)
	}
	return d
}

func (g *Guard) hasAuthority(principal *iam.Principal, authority string) bool {
	if g.authorizer == nil {
		return principal.HasAuthority(authority)
	}
	ok, err := g.authorizer.Authorize(principal, authority)
	if err != nil {
		slog.Error("authority check failed", "subject", principal.Subject, "authority", authority, "error", err)
		return false
	}
	return ok
}
