package auth

import "strings"

// Prefix constants for casbin subjects and oracle members
const (
	PrefixUser = "user:"
	PrefixRole = "role:"

	authorityPrefix = "ROLE_"
)

// MemberID returns the policy-oracle member identifier for an email.
func MemberID(email string) string {
	return PrefixUser + email
}

// RoleID returns the casbin subject for an authority.
func RoleID(authority string) string {
	return PrefixRole + authority
}

// NormalizeAuthority trims, upper-cases and strips a leading ROLE_ prefix so that
// "role_admin", "ROLE_ADMIN" and "admin" all compare equal.
func NormalizeAuthority(authority string) string {
	a := strings.ToUpper(strings.TrimSpace(authority))
	return strings.TrimPrefix(a, authorityPrefix)
}

// NormalizeAuthorities normalizes and de-duplicates a list, dropping empty entries.
// The first occurrence order is preserved.
func NormalizeAuthorities(authorities []string) []string {
	seen := make(map[string]struct{}, len(authorities))
	out := make([]string, 0, len(authorities))
	for _, a := range authorities {
		n := NormalizeAuthority(a)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
