package models

import "time"

// Session is the stored form of a signed-in principal, keyed by the hash of the
// session cookie value. Sessions are written once at login completion and never updated.
type Session struct {
	ID          string         `json:"id"`
	TokenHash   string         `json:"token_hash"`
	Subject     string         `json:"subject"`
	Email       string         `json:"email,omitempty"`
	Name        string         `json:"name,omitempty"`
	Claims      map[string]any `json:"claims,omitempty"`
	Authorities []string       `json:"authorities"`
	CreatedAt   time.Time      `json:"created_at"`
	ExpiresAt   time.Time      `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Clone returns a copy that shares no slices or maps with s.
func (s *Session) Clone() Session {
	out := *s
	out.Authorities = append([]string(nil), s.Authorities...)
	if s.Claims != nil {
		out.Claims = make(map[string]any, len(s.Claims))
		for k, v := range s.Claims {
			out.Claims[k] = v
		}
	}
	return out
}
