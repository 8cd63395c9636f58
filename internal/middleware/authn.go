package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/services/iam"
)

// SessionAuthMiddleware resolves the session cookie to a Principal and stores it in
// the request context.
//
// It never rejects a request: requests without a valid session continue
// unauthenticated and the authorization guard decides whether that is enough.
// A cookie that no longer maps to a live session is cleared. Store failures
// leave the cookie in place and the request continues unauthenticated.
func SessionAuthMiddleware(authenticator iam.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticator.Authenticate(r.Context(), iam.NewAuthRequest(r))
			if errors.Is(err, iam.ErrInvalidSession) {
				slog.Info("session rejected", "method", r.Method, "path", r.URL.Path, "error", err)
				auth.ClearSessionCookie(w)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				// The session may still be live; keep the cookie for the next request.
				slog.Warn("session lookup failed", "method", r.Method, "path", r.URL.Path, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if principal != nil {
				r = r.WithContext(iam.WithPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePrincipal sends requests without a Principal to loginPath (401 when empty).
// It guards the gateway's own pages; proxied routes are guarded by the dispatcher.
func RequirePrincipal(loginPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := iam.PrincipalFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			if loginPath == "" {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, loginPath, http.StatusFound)
		})
	}
}
