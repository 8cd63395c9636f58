package cmd

import (
	"fmt"
	"log/slog"

	"github.com/smartrestaurant/gateway/internal/auth"
	"github.com/smartrestaurant/gateway/internal/config"
	"github.com/smartrestaurant/gateway/internal/filters"
	"github.com/smartrestaurant/gateway/internal/gateway"
	"github.com/smartrestaurant/gateway/internal/services/iam"
)

// pipeline is the request-time half of the gateway: table, guard, filters, dispatcher.
type pipeline struct {
	table      *gateway.Table
	guard      *gateway.Guard
	chain      *filters.Chain
	dispatcher *gateway.Dispatcher
}

func loadTable(gc config.GatewayConfig) (*gateway.Table, error) {
	if gc.TableFile == "" {
		return gateway.DefaultTable()
	}
	return gateway.LoadTable(gc.TableFile)
}

func buildPipeline(cfg *config.Config, observer gateway.RequestObserver) (*pipeline, error) {
	table, err := loadTable(cfg.Gateway)
	if err != nil {
		return nil, fmt.Errorf("load route table: %w", err)
	}

	authorities := table.Authorities(iam.AuthorityAdmin, iam.AuthorityClient, cfg.Roles.DefaultAuthority)
	enforcer, err := auth.NewAuthorityEnforcer(authorities, table.AuthorityInherits)
	if err != nil {
		return nil, fmt.Errorf("configure casbin enforcer: %w", err)
	}
	guard := gateway.NewGuard(table.Authz, iam.NewEnforcerAuthorizer(enforcer))

	chain, err := filters.Build(cfg.Filters)
	if err != nil {
		return nil, fmt.Errorf("build filter chain: %w", err)
	}

	loginPath := ""
	if cfg.OIDC.Enabled() {
		loginPath = cfg.Login.Path
	}

	dispatcher := gateway.NewDispatcher(gateway.DispatcherOptions{
		Table:          table,
		Guard:          guard,
		Chain:          chain,
		BackendTimeout: cfg.Gateway.BackendTimeout,
		LoginPath:      loginPath,
		Observer:       observer,
	})

	slog.Debug("pipeline assembled",
		"authz_rules", len(table.Authz),
		"routes", len(table.Routes.Rules()),
		"filters", len(chain.Descriptors()),
		"authorities", authorities,
	)
	return &pipeline{table: table, guard: guard, chain: chain, dispatcher: dispatcher}, nil
}
