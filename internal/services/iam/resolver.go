package iam

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/telemetry"
)

// Internal authorities
const (
	AuthorityAdmin  = "ADMIN"
	AuthorityClient = "CLIENT"
)

// DefaultRoleMapping maps external oracle roles to internal authorities.
// Roles missing from the mapping resolve to the resolver's default authority.
var DefaultRoleMapping = map[string]string{
	"owner":  AuthorityAdmin,
	"editor": AuthorityAdmin,
	"viewer": AuthorityClient,
}

// Fallback reasons, used for logs and metrics.
const (
	FallbackNoEmail        = "no_email"
	FallbackOracleDisabled = "oracle_disabled"
	FallbackOracleError    = "oracle_error"
	FallbackNoBinding      = "no_binding"
)

// FallbackRecorder observes default-authority fallbacks.
type FallbackRecorder interface {
	IncRoleFallback(reason string)
}

// RoleResolver computes the authority set of a freshly authenticated identity.
// It is safe for concurrent use; all fields are read-only after construction.
type RoleResolver struct {
	oracle           PolicyOracle
	oracleTimeout    time.Duration
	privileged       map[string]struct{}
	mapping          map[string]string
	defaultAuthority string
	recorder         FallbackRecorder
}

// ResolverOptions configures a RoleResolver.
type ResolverOptions struct {
	// Oracle is optional; nil disables the oracle lookup.
	Oracle        PolicyOracle
	OracleTimeout time.Duration

	// PrivilegedEmails always receive ADMIN.
	PrivilegedEmails []string

	// Mapping overrides DefaultRoleMapping when non-nil.
	Mapping map[string]string

	// DefaultAuthority is granted when the oracle contributes nothing (CLIENT when empty).
	DefaultAuthority string

	Recorder FallbackRecorder
}

// NewRoleResolver creates a resolver.
func NewRoleResolver(opts ResolverOptions) *RoleResolver {
	privileged := make(map[string]struct{}, len(opts.PrivilegedEmails))
	for _, email := range opts.PrivilegedEmails {
		if e := strings.ToLower(strings.TrimSpace(email)); e != "" {
			privileged[e] = struct{}{}
		}
	}

	mapping := opts.Mapping
	if mapping == nil {
		mapping = DefaultRoleMapping
	}

	def := auth.NormalizeAuthority(opts.DefaultAuthority)
	if def == "" {
		def = AuthorityClient
	}

	timeout := opts.OracleTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &RoleResolver{
		oracle:           opts.Oracle,
		oracleTimeout:    timeout,
		privileged:       privileged,
		mapping:          mapping,
		defaultAuthority: def,
		recorder:         opts.Recorder,
	}
}

// Resolve returns the identity's authority set: claim authorities, ADMIN for
// privileged emails, and the mapped oracle roles of bindings naming user:<email>.
// When the oracle contributes nothing (no email, disabled, failed, no binding) the
// default authority is added. The result is never empty and Resolve never fails.
func (r *RoleResolver) Resolve(ctx context.Context, identity Identity, token AccessToken) []string {
	ctx, span := telemetry.StartSpan(ctx, telemetry.TracerIAM, "iam.ResolveRoles",
		attribute.String(telemetry.AttrPrincipalSubject, identity.Subject),
	)
	defer span.End()

	authorities := auth.NormalizeAuthorities(identity.Authorities)

	email := strings.TrimSpace(identity.Email)
	if _, ok := r.privileged[strings.ToLower(email)]; ok && email != "" {
		authorities = appendAuthority(authorities, AuthorityAdmin)
	}

	mapped, reason, err := r.lookupOracle(ctx, email, token)
	if err != nil {
		telemetry.RecordError(span, err)
	}
	for _, a := range mapped {
		authorities = appendAuthority(authorities, a)
	}

	if len(mapped) == 0 {
		authorities = appendAuthority(authorities, r.defaultAuthority)
		span.SetAttributes(attribute.String(telemetry.AttrFallbackReason, reason))
		if r.recorder != nil {
			r.recorder.IncRoleFallback(reason)
		}
		attrs := []any{"subject", identity.Subject, "email", email, "reason", reason, "default", r.defaultAuthority}
		if err != nil {
			slog.WarnContext(ctx, "role resolution fell back to default authority", append(attrs, "error", err)...)
		} else {
			slog.InfoContext(ctx, "role resolution fell back to default authority", attrs...)
		}
	}

	span.SetAttributes(attribute.StringSlice(telemetry.AttrAuthorities, authorities))
	return authorities
}

// lookupOracle returns the authorities mapped from the oracle bindings naming the
// email. An empty result comes with the fallback reason.
func (r *RoleResolver) lookupOracle(ctx context.Context, email string, token AccessToken) (mapped []string, reason string, err error) {
	if email == "" {
		return nil, FallbackNoEmail, nil
	}
	if r.oracle == nil {
		return nil, FallbackOracleDisabled, nil
	}

	bindings, err := r.fetchBindings(ctx, token)
	if err != nil {
		return nil, FallbackOracleError, err
	}

	member := auth.MemberID(email)
	for _, b := range bindings {
		if !slices.ContainsFunc(b.Members, func(m string) bool { return strings.EqualFold(m, member) }) {
			continue
		}
		mapped = appendAuthority(mapped, r.mapRole(b.Role))
	}
	if len(mapped) == 0 {
		return nil, FallbackNoBinding, nil
	}
	return mapped, "", nil
}

// fetchBindings bounds the oracle call by the configured timeout and turns a
// panicking oracle into an error.
func (r *RoleResolver) fetchBindings(ctx context.Context, token AccessToken) (bindings []Binding, err error) {
	ctx, cancel := context.WithTimeout(ctx, r.oracleTimeout)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			bindings, err = nil, fmt.Errorf("%w: oracle panicked: %v", ErrOracleUnavailable, rec)
		}
	}()
	return r.oracle.GetBindings(ctx, token)
}

// mapRole maps "roles/owner" or "owner" through the role mapping.
func (r *RoleResolver) mapRole(role string) string {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(role), "roles/"))
	if a, ok := r.mapping[name]; ok {
		return auth.NormalizeAuthority(a)
	}
	return r.defaultAuthority
}

func appendAuthority(set []string, authority string) []string {
	if authority == "" || slices.Contains(set, authority) {
		return set
	}
	return append(set, authority)
}
