package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/config"
	"github.com/smartrestaurant/gateway/internal/repository"
	"github.com/smartrestaurant/gateway/internal/server"
	"github.com/smartrestaurant/gateway/internal/services/iam"
	"github.com/smartrestaurant/gateway/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway",
	Long:  `Starts the HTTP gateway with the sign-on endpoints and the proxied service routes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTelemetry(sctx); err != nil {
				slog.Warn("telemetry shutdown failed", "error", err)
			}
		}()

		metrics := telemetry.NewMetrics()

		sessions, closeSessions, err := newSessionRepository(ctx, cfg.Session)
		if err != nil {
			return err
		}
		defer closeSessions()

		var oracle iam.PolicyOracle
		if cfg.Oracle.Enabled {
			oracle = iam.NewHTTPPolicyOracle(cfg.Oracle.Endpoint, cfg.Oracle.ProjectID, nil)
			slog.Info("policy oracle enabled", "endpoint", cfg.Oracle.Endpoint, "project", cfg.Oracle.ProjectID)
		}

		resolver := iam.NewRoleResolver(iam.ResolverOptions{
			Oracle:           oracle,
			OracleTimeout:    cfg.Oracle.Timeout,
			PrivilegedEmails: cfg.Roles.PrivilegedEmails,
			DefaultAuthority: cfg.Roles.DefaultAuthority,
			Recorder:         metrics,
		})
		iamService := iam.NewService(iam.ServiceOptions{
			Resolver:      resolver,
			Sessions:      sessions,
			SessionMaxAge: cfg.Session.MaxAge,
			Recorder:      metrics,
		})

		var relyingParty *auth.RelyingParty
		if cfg.OIDC.Enabled() {
			relyingParty, err = auth.NewRelyingParty(ctx, cfg.OIDC)
			if err != nil {
				return fmt.Errorf("failed to create relying party: %w", err)
			}
			slog.Info("sign-on enabled", "issuer", cfg.OIDC.Issuer, "login_path", cfg.Login.Path)
		} else {
			slog.Warn("oidc.issuer not set, sign-on endpoints disabled; protected routes answer 401")
		}

		p, err := buildPipeline(cfg, metrics)
		if err != nil {
			return err
		}

		handler := server.NewH2CHandler(server.RouterOptions{
			Cfg:          cfg,
			RelyingParty: relyingParty,
			IAMService:   iamService,
			Dispatcher:   p.dispatcher,
			Metrics:      metrics,
		})

		srv := &http.Server{
			Addr:              cfg.ServerAddr,
			Handler:           handler,
			ReadHeaderTimeout: 15 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			slog.Info("starting gateway", "addr", cfg.ServerAddr, "url", cfg.ServerURL)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			slog.Info("shutting down gracefully")

			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(sctx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}
			slog.Info("server stopped")
			return nil
		})
		return g.Wait()
	},
}

// newSessionRepository selects the configured session store and returns its closer.
func newSessionRepository(ctx context.Context, sc config.SessionConfig) (repository.SessionRepository, func(), error) {
	switch sc.Store {
	case config.SessionStoreRedis:
		client, err := repository.NewRedisClient(sc.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to configure redis: %w", err)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		slog.Info("using redis session store")
		return repository.NewRedisSessionRepository(client), func() { _ = client.Close() }, nil
	default:
		slog.Info("using in-memory session store", "max_entries", sc.MaxEntries, "max_age", sc.MaxAge)
		return repository.NewLRUSessionRepository(sc.MaxEntries, sc.MaxAge), func() {}, nil
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
