package iam

import "time"

// Identity is what the IdP hands back after a successful sign-on.
type Identity struct {
	Subject     string
	Email       string
	Name        string
	Claims      map[string]any
	Authorities []string // authorities already granted in the ID token claims
}

// AccessToken is the bearer token issued alongside the identity. It is only used
// to call the policy oracle during role resolution and is never stored.
type AccessToken struct {
	Value  string
	Expiry time.Time
}
