package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/services/iam"
)

// stubAuthenticator returns a fixed result.
type stubAuthenticator struct {
	principal *iam.Principal
	err       error
	calls     int
}

func (s *stubAuthenticator) Authenticate(context.Context, iam.AuthRequest) (*iam.Principal, error) {
	s.calls++
	return s.principal, s.err
}

func principalEcho(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := iam.PrincipalFromContext(r.Context())
		if !ok {
			_, _ = w.Write([]byte("anonymous"))
			return
		}
		_, _ = w.Write([]byte(p.Subject))
	})
}

func TestSessionAuthMiddleware(t *testing.T) {
	principal := iam.NewPrincipal(iam.Identity{Subject: "sub-1"}, []string{"CLIENT"}, time.Now().Add(time.Hour))

	tests := []struct {
		name        string
		stub        *stubAuthenticator
		wantBody    string
		wantCleared bool
	}{
		{name: "valid session", stub: &stubAuthenticator{principal: principal}, wantBody: "sub-1"},
		{name: "no session", stub: &stubAuthenticator{}, wantBody: "anonymous"},
		{name: "invalid session", stub: &stubAuthenticator{err: iam.ErrInvalidSession}, wantBody: "anonymous", wantCleared: true},
		{name: "expired session", stub: &stubAuthenticator{err: fmt.Errorf("%w: session has expired", iam.ErrInvalidSession)}, wantBody: "anonymous", wantCleared: true},
		{name: "store failure keeps cookie", stub: &stubAuthenticator{err: fmt.Errorf("lookup session: %w", errors.New("redis down"))}, wantBody: "anonymous"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := SessionAuthMiddleware(tt.stub)(principalEcho(t))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/restaurant/api/dishes", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, 1, tt.stub.calls)

			cleared := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == auth.SessionCookieName && c.MaxAge < 0 {
					cleared = true
				}
			}
			assert.Equal(t, tt.wantCleared, cleared)
		})
	}
}

func TestRequirePrincipal(t *testing.T) {
	handler := RequirePrincipal("/login/sso")(principalEcho(t))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/sso", rec.Header().Get("Location"))

	p := iam.NewPrincipal(iam.Identity{Subject: "sub-2"}, []string{"CLIENT"}, time.Time{})
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = req.WithContext(iam.WithPrincipal(req.Context(), p))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sub-2", rec.Body.String())

	rec = httptest.NewRecorder()
	RequirePrincipal("")(principalEcho(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
