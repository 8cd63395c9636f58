package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/config"
	gwmiddleware "github.com/smartrestaurant/gateway/internal/middleware"
	"github.com/smartrestaurant/gateway/internal/telemetry"
)

// RouterOptions controls the construction of the gateway HTTP router.
type RouterOptions struct {
	Cfg          *config.Config
	RelyingParty *auth.RelyingParty
	IAMService   iamService

	// Dispatcher receives every request not answered by the gateway itself.
	Dispatcher http.Handler

	Metrics       *telemetry.Metrics
	CORSOptions   *cors.Options
	Middleware    []func(http.Handler) http.Handler
	HealthHandler http.HandlerFunc
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"X-Response-Time", "X-Server-Region", "X-Device-Detected", "X-Service", "Last-Modified"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware, the CORS policy, the
// sign-on endpoints and the dispatcher as catch-all.
func NewRouter(opts RouterOptions) chi.Router {
	cfg := opts.Cfg
	if cfg == nil {
		cfg = &config.Config{}
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(slog.Default().Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	healthHandler := opts.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	r.Get("/health", healthHandler)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	if opts.RelyingParty != nil {
		if cfg.Login.Path != "" {
			r.Get(cfg.Login.Path, HandleSSOLogin(opts.RelyingParty))
		}
		if opts.IAMService != nil && cfg.Login.CallbackPath != "" {
			r.Method(http.MethodGet, cfg.Login.CallbackPath,
				HandleSSOCallback(opts.RelyingParty, opts.IAMService, cfg))
		} else {
			slog.Warn("skipping sign-on callback", "reason", "IAM service or callback path not configured")
		}
	}

	withSession := func(h http.Handler) http.Handler { return h }
	if opts.IAMService != nil {
		withSession = gwmiddleware.SessionAuthMiddleware(opts.IAMService)
		r.Method(http.MethodPost, "/logout",
			withSession(gwmiddleware.RequirePrincipal("")(HandleLogout(opts.IAMService))))
	}
	r.Method(http.MethodGet, "/", withSession(HandleHome()))
	r.Method(http.MethodGet, "/me", withSession(HandleMe()))

	if opts.Dispatcher != nil {
		dispatch := withSession(opts.Dispatcher)
		r.NotFound(dispatch.ServeHTTP)
		r.MethodNotAllowed(dispatch.ServeHTTP)
	}

	return r
}

// NewH2CHandler wraps the router with an h2c server so backends and clients can
// speak HTTP/2 over cleartext.
func NewH2CHandler(opts RouterOptions) http.Handler {
	return h2c.NewHandler(NewRouter(opts), &http2.Server{})
}
