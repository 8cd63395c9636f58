// Package iam turns an externally authenticated identity into a session Principal
// and answers authority questions about it.
//
// Flow:
//
//	IdP callback → Service.CompleteLogin → RoleResolver.Resolve → Principal → session store
//	request      → SessionAuthenticator.Authenticate → Principal (from session store)
//
// Authorities are resolved ONCE at login from three sources (ID token claims, the
// static privileged allow-list and the external policy oracle) and never change for
// the lifetime of the session. Oracle failures are absorbed by the resolver, which
// always yields at least the default authority.
package iam
