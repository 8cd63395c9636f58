package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/config"
	"github.com/smartrestaurant/gateway/internal/gateway"
	"github.com/smartrestaurant/gateway/internal/services/iam"
)

// HandleSSOLogin starts the authorization code flow. An optional redirect_uri query
// parameter names the local page to return to after sign-on.
func HandleSSOLogin(rpAuth *auth.RelyingParty) http.HandlerFunc {
	loginHandler := rpAuth.LoginHandler()
	return func(w http.ResponseWriter, r *http.Request) {
		if redirectURI := r.URL.Query().Get("redirect_uri"); redirectURI != "" {
			auth.SetRedirectCookie(w, redirectURI)
		}
		loginHandler.ServeHTTP(w, r)
	}
}

// HandleSSOCallback finishes the code exchange, resolves the principal's authorities
// and establishes a session.
func HandleSSOCallback(rpAuth *auth.RelyingParty, iamService iamService, cfg *config.Config) http.Handler {
	return rpAuth.CallbackHandler(func(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims]) {
		identity, accessToken, err := identityFromTokens(tokens, cfg.OIDC)
		if err != nil {
			slog.WarnContext(r.Context(), "sign-on callback: unusable identity token", "error", err)
			gateway.WriteError(w, http.StatusUnauthorized, "invalid identity token")
			return
		}
		completeLogin(w, r, iamService, cfg.Login.LandingPath, identity, accessToken)
	})
}

// completeLogin persists the session and redirects to the stored target or landing.
func completeLogin(w http.ResponseWriter, r *http.Request, iamService iamService, landing string, identity iam.Identity, token iam.AccessToken) {
	principal, sessionToken, err := iamService.CompleteLogin(r.Context(), identity, token)
	if err != nil {
		slog.ErrorContext(r.Context(), "sign-on callback: failed to create session",
			"subject", identity.Subject, "email", identity.Email, "error", err)
		gateway.WriteError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	auth.SetSessionCookie(w, r, sessionToken, principal.ExpiresAt)

	target, ok := auth.PopRedirectCookie(w, r)
	if !ok {
		target = landing
	}
	if target == "" {
		target = "/"
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// identityFromTokens flattens the verified ID token claims, including non-standard
// ones, and decodes the identity from them.
func identityFromTokens(tokens *oidc.Tokens[*oidc.IDTokenClaims], cfg config.OIDCConfig) (iam.Identity, iam.AccessToken, error) {
	if tokens == nil || tokens.IDTokenClaims == nil {
		return iam.Identity{}, iam.AccessToken{}, errors.New("missing ID token claims")
	}

	raw, err := json.Marshal(tokens.IDTokenClaims)
	if err != nil {
		return iam.Identity{}, iam.AccessToken{}, fmt.Errorf("marshal ID token claims: %w", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(raw, &claims); err != nil {
		return iam.Identity{}, iam.AccessToken{}, fmt.Errorf("unmarshal ID token claims: %w", err)
	}

	decoded, err := auth.DecodeIdentityClaims(claims, cfg)
	if err != nil {
		return iam.Identity{}, iam.AccessToken{}, err
	}

	identity := iam.Identity{
		Subject:     decoded.Subject,
		Email:       decoded.Email,
		Name:        decoded.Name,
		Claims:      claims,
		Authorities: decoded.Authorities,
	}

	var token iam.AccessToken
	if tokens.Token != nil {
		token = iam.AccessToken{Value: tokens.AccessToken, Expiry: tokens.Expiry}
	}
	return identity, token, nil
}

// HandleLogout ends the current session and clears its cookie.
func HandleLogout(iamService iamService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := auth.SessionToken(r)
		if err := logout(r.Context(), iamService, token); err != nil {
			slog.ErrorContext(r.Context(), "logout failed", "error", err)
			gateway.WriteError(w, http.StatusInternalServerError, "failed to revoke session")
			return
		}

		auth.ClearSessionCookie(w)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Logged out"))
	}
}

func logout(ctx context.Context, iamService iamService, token string) error {
	if token == "" {
		return nil
	}
	return iamService.Logout(ctx, token)
}

// HandleHome greets the signed-in user.
func HandleHome() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		principal, ok := iam.PrincipalFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("Welcome to Smart Restaurant! Please login."))
			return
		}
		_, _ = fmt.Fprintf(w, "Welcome to Smart Restaurant, %s!\nEmail: %s\nAuthorities: [%s]",
			displayName(principal), principal.Email, strings.Join(principal.Authorities(), ", "))
	}
}

// MeResponse describes the signed-in user.
type MeResponse struct {
	Subject     string         `json:"subject,omitempty"`
	Email       string         `json:"email,omitempty"`
	Name        string         `json:"name,omitempty"`
	SessionID   string         `json:"session_id,omitempty"`
	ExpiresAt   *time.Time     `json:"expires_at,omitempty"`
	Authorities []string       `json:"authorities,omitempty"`
	Claims      map[string]any `json:"claims,omitempty"`
	Message     string         `json:"message,omitempty"`
}

// HandleMe returns the signed-in user's claims and authorities as JSON.
func HandleMe() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := MeResponse{Message: "User not logged in"}
		if principal, ok := iam.PrincipalFromContext(r.Context()); ok {
			resp = MeResponse{
				Subject:     principal.Subject,
				Email:       principal.Email,
				Name:        principal.Name,
				SessionID:   principal.SessionID,
				Authorities: principal.Authorities(),
				Claims:      principal.Claims(),
			}
			if !principal.ExpiresAt.IsZero() {
				expiresAt := principal.ExpiresAt
				resp.ExpiresAt = &expiresAt
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
		}
	}
}

func displayName(p *iam.Principal) string {
	if p.Name != "" {
		return p.Name
	}
	if p.Email != "" {
		return p.Email
	}
	return p.Subject
}
