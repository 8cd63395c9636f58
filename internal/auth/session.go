package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// SessionCookieName carries the opaque session token issued after sign-on.
	SessionCookieName = "restaurant.session"

	// RedirectCookieName remembers where to send the browser once sign-on completes.
	RedirectCookieName = "restaurant.redirect"

	// TokenLength is the length of generated session tokens in bytes
	TokenLength = 32

	redirectCookieMaxAge = 10 * time.Minute
)

// GenerateSessionToken generates a cryptographically secure random session token
// Returns: token (hex string), token hash (SHA256 hex), error
func GenerateSessionToken() (string, string, error) {
	tokenBytes := make([]byte, TokenLength)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", "", fmt.Errorf("generate random token: %w", err)
	}

	token := hex.EncodeToString(tokenBytes)
	return token, HashToken(token), nil
}

// HashToken hashes a session token for storage/lookup
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// SetSessionCookie writes the session cookie. Secure is set when the request arrived over TLS.
func SetSessionCookie(w http.ResponseWriter, r *http.Request, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie expires the session cookie on the client.
func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionToken returns the session token presented with the request, if any.
func SessionToken(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// SetRedirectCookie stores a local redirect target for the post-login redirect.
// Absolute or protocol-relative URLs are ignored to avoid open redirects.
func SetRedirectCookie(w http.ResponseWriter, target string) {
	if !IsLocalRedirect(target) {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RedirectCookieName,
		Value:    url.QueryEscape(target),
		Path:     "/",
		MaxAge:   int(redirectCookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopRedirectCookie returns the stored redirect target and clears the cookie.
func PopRedirectCookie(w http.ResponseWriter, r *http.Request) (string, bool) {
	cookie, err := r.Cookie(RedirectCookieName)
	if err != nil {
		return "", false
	}
	http.SetCookie(w, &http.Cookie{
		Name:     RedirectCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	target, err := url.QueryUnescape(cookie.Value)
	if err != nil || !IsLocalRedirect(target) {
		return "", false
	}
	return target, true
}

// IsLocalRedirect reports whether target is a path on this host.
func IsLocalRedirect(target string) bool {
	if target == "" || !strings.HasPrefix(target, "/") {
		return false
	}
	if strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	return true
}
