package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zitadel/oidc/v3/pkg/client/rp"
	httphelper "github.com/zitadel/oidc/v3/pkg/http"
	"github.com/zitadel/oidc/v3/pkg/oidc"

	"github.com/smartrestaurant/gateway/internal/config"
)

// RelyingParty drives the federated sign-on handshake against the external IdP by
// wrapping the zitadel/oidc RelyingParty implementation.
type RelyingParty struct {
	rp rp.RelyingParty
}

// CodeExchangeCallback receives the verified tokens once the handshake completes.
type CodeExchangeCallback func(w http.ResponseWriter, r *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims])

// NewRelyingParty discovers the IdP and creates a relying party for the authorization code flow.
func NewRelyingParty(ctx context.Context, cfg config.OIDCConfig) (*RelyingParty, error) {
	hashKey, err := cookieKey(cfg.CookieHashKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive cookie hash key: %w", err)
	}
	cryptoKey, err := cookieKey(cfg.CookieCryptoKey)
	if err != nil {
		return nil, fmt.Errorf("failed to derive cookie crypto key: %w", err)
	}

	var cookieOpts []httphelper.CookieHandlerOpt
	if strings.HasPrefix(cfg.RedirectURI, "http://") {
		cookieOpts = append(cookieOpts, httphelper.WithUnsecure())
	}
	cookieHandler := httphelper.NewCookieHandler(hashKey, cryptoKey, cookieOpts...)

	options := []rp.Option{
		rp.WithCookieHandler(cookieHandler),
		rp.WithVerifierOpts(rp.WithIssuedAtMaxAge(10 * time.Second)),
		rp.WithPKCE(cookieHandler),
	}

	relyingParty, err := rp.NewRelyingPartyOIDC(ctx, cfg.Issuer, cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI,
		cfg.Scopes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC relying party: %w", err)
	}

	return &RelyingParty{rp: relyingParty}, nil
}

// LoginHandler redirects the browser to the IdP authorization endpoint. State and PKCE
// verifier are kept in encrypted cookies by the library.
func (r *RelyingParty) LoginHandler() http.Handler {
	return rp.AuthURLHandler(func() string {
		state, _ := GenerateNonce()
		return state
	}, r.rp)
}

// CallbackHandler validates state, exchanges the authorization code and hands the
// verified tokens to cb. Exchange failures are answered by the library.
func (r *RelyingParty) CallbackHandler(cb CodeExchangeCallback) http.Handler {
	return rp.CodeExchangeHandler(func(w http.ResponseWriter, req *http.Request, tokens *oidc.Tokens[*oidc.IDTokenClaims], _ string, _ rp.RelyingParty) {
		cb(w, req, tokens)
	}, r.rp)
}

// cookieKey turns a configured secret into a 32 byte key; empty secrets get a random key.
func cookieKey(secret string) ([]byte, error) {
	if secret == "" {
		return generateRandomBytes(32)
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// generateRandomBytes creates a slice of random bytes of a specified size.
func generateRandomBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}

// GenerateNonce generates a random nonce string.
func GenerateNonce() (string, error) {
	b, err := generateRandomBytes(32)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
