package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
// Key "oracle.project_id" maps to GATEWAY_ORACLE_PROJECT_ID.
const EnvPrefix = "GATEWAY"

// Session store backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds the gateway configuration
type Config struct {
	// Server bind address (host:port)
	ServerAddr string

	// Externally visible base URL of the gateway
	ServerURL string

	// Enable debug logging
	Debug bool

	OIDC      OIDCConfig
	Login     LoginConfig
	Oracle    OracleConfig
	Roles     RolesConfig
	Session   SessionConfig
	Gateway   GatewayConfig
	Filters   FiltersConfig
	Telemetry ObservabilityConfig
}

// OIDCConfig describes the external identity provider the gateway signs users in against.
// The block is optional: when Issuer is empty the sign-on endpoints are not mounted and
// protected routes can only be reached with a session created by other means (tests).
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	// Cookie keys for the state/PKCE cookies. Random per process when empty.
	CookieHashKey   string
	CookieCryptoKey string

	// Claim carrying authorities already granted by the IdP (optional)
	AuthoritiesClaim string
	EmailClaim       string
}

// Enabled reports whether federated sign-on is configured.
func (c OIDCConfig) Enabled() bool {
	return c.Issuer != ""
}

// LoginConfig holds the paths of the sign-on flow.
type LoginConfig struct {
	Path         string
	CallbackPath string
	LandingPath  string
}

// OracleConfig configures the external policy oracle queried at login.
type OracleConfig struct {
	Enabled   bool
	Endpoint  string
	ProjectID string
	Timeout   time.Duration
}

// RolesConfig holds static role derivation settings.
type RolesConfig struct {
	PrivilegedEmails []string
	DefaultAuthority string
}

// SessionConfig selects where session principals are kept.
type SessionConfig struct {
	Store      string
	RedisURL   string
	MaxEntries int
	MaxAge     time.Duration
}

// GatewayConfig points at the route/authz table and bounds backend calls.
type GatewayConfig struct {
	// TableFile is a YAML route/authz table. Empty uses the embedded default.
	TableFile      string
	BackendTimeout time.Duration
}

// FilterToggle is the common enable/order pair of every filter.
type FilterToggle struct {
	Enabled bool
	Order   int
}

// FiltersConfig toggles the individual filters of the chain.
type FiltersConfig struct {
	Device       FilterToggle
	Timing       FilterToggle
	LastModified LastModifiedFilterConfig
	Region       RegionFilterConfig
}

// LastModifiedFilterConfig adds the bexpr condition selecting matching requests.
type LastModifiedFilterConfig struct {
	FilterToggle
	When string
}

// RegionFilterConfig adds the region label stamped on responses.
type RegionFilterConfig struct {
	FilterToggle
	Name string
}

// ObservabilityConfig holds OpenTelemetry exporter settings
type ObservabilityConfig struct {
	OTLPEndpoint   string
	OTLPInsecure   bool
	SampleRatio    float64
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// SetDefaults registers default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("server_url", "http://localhost:8080")
	v.SetDefault("debug", false)

	v.SetDefault("oidc.issuer", "")
	v.SetDefault("oidc.client_id", "")
	v.SetDefault("oidc.client_secret", "")
	v.SetDefault("oidc.redirect_uri", "")
	v.SetDefault("oidc.scopes", []string{"openid", "profile", "email"})
	v.SetDefault("oidc.cookie_hash_key", "")
	v.SetDefault("oidc.cookie_crypto_key", "")
	v.SetDefault("oidc.authorities_claim", "roles")
	v.SetDefault("oidc.email_claim", "email")

	v.SetDefault("login.path", "/login/sso")
	v.SetDefault("login.callback_path", "/login/oauth2/callback")
	v.SetDefault("login.landing_path", "/")

	v.SetDefault("oracle.enabled", true)
	v.SetDefault("oracle.endpoint", "https://cloudresourcemanager.googleapis.com")
	v.SetDefault("oracle.project_id", "restaurant-app-479711")
	v.SetDefault("oracle.timeout", 5*time.Second)

	v.SetDefault("roles.privileged_emails", []string{})
	v.SetDefault("roles.default_authority", "CLIENT")

	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.redis_url", "")
	v.SetDefault("session.max_entries", 10000)
	v.SetDefault("session.max_age", 12*time.Hour)

	v.SetDefault("gateway.table_file", "")
	v.SetDefault("gateway.backend_timeout", 30*time.Second)

	v.SetDefault("filters.device.enabled", true)
	v.SetDefault("filters.device.order", 0)
	v.SetDefault("filters.timing.enabled", true)
	v.SetDefault("filters.timing.order", 0)
	v.SetDefault("filters.last_modified.enabled", true)
	v.SetDefault("filters.last_modified.order", 1)
	v.SetDefault("filters.last_modified.when", `Method == "GET" and Path matches "/users"`)
	v.SetDefault("filters.region.enabled", true)
	v.SetDefault("filters.region.order", 2)
	v.SetDefault("filters.region.name", "EU-RO-Brasov-Node1")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", false)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "restaurant-gateway")
	v.SetDefault("telemetry.service_version", "dev")
	v.SetDefault("telemetry.environment", "development")
}

// Load reads configuration from the global viper instance (config file, flags and
// GATEWAY_ prefixed environment variables) and validates it.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom reads configuration from an explicit viper instance.
func LoadFrom(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		ServerAddr: v.GetString("server_addr"),
		ServerURL:  v.GetString("server_url"),
		Debug:      v.GetBool("debug"),
		OIDC: OIDCConfig{
			Issuer:           v.GetString("oidc.issuer"),
			ClientID:         v.GetString("oidc.client_id"),
			ClientSecret:     v.GetString("oidc.client_secret"),
			RedirectURI:      v.GetString("oidc.redirect_uri"),
			Scopes:           splitList(v.GetStringSlice("oidc.scopes")),
			CookieHashKey:    v.GetString("oidc.cookie_hash_key"),
			CookieCryptoKey:  v.GetString("oidc.cookie_crypto_key"),
			AuthoritiesClaim: v.GetString("oidc.authorities_claim"),
			EmailClaim:       v.GetString("oidc.email_claim"),
		},
		Login: LoginConfig{
			Path:         v.GetString("login.path"),
			CallbackPath: v.GetString("login.callback_path"),
			LandingPath:  v.GetString("login.landing_path"),
		},
		Oracle: OracleConfig{
			Enabled:   v.GetBool("oracle.enabled"),
			Endpoint:  strings.TrimRight(v.GetString("oracle.endpoint"), "/"),
			ProjectID: v.GetString("oracle.project_id"),
			Timeout:   v.GetDuration("oracle.timeout"),
		},
		Roles: RolesConfig{
			PrivilegedEmails: splitList(v.GetStringSlice("roles.privileged_emails")),
			DefaultAuthority: v.GetString("roles.default_authority"),
		},
		Session: SessionConfig{
			Store:      strings.ToLower(v.GetString("session.store")),
			RedisURL:   v.GetString("session.redis_url"),
			MaxEntries: v.GetInt("session.max_entries"),
			MaxAge:     v.GetDuration("session.max_age"),
		},
		Gateway: GatewayConfig{
			TableFile:      v.GetString("gateway.table_file"),
			BackendTimeout: v.GetDuration("gateway.backend_timeout"),
		},
		Filters: FiltersConfig{
			Device: FilterToggle{
				Enabled: v.GetBool("filters.device.enabled"),
				Order:   v.GetInt("filters.device.order"),
			},
			Timing: FilterToggle{
				Enabled: v.GetBool("filters.timing.enabled"),
				Order:   v.GetInt("filters.timing.order"),
			},
			LastModified: LastModifiedFilterConfig{
				FilterToggle: FilterToggle{
					Enabled: v.GetBool("filters.last_modified.enabled"),
					Order:   v.GetInt("filters.last_modified.order"),
				},
				When: v.GetString("filters.last_modified.when"),
			},
			Region: RegionFilterConfig{
				FilterToggle: FilterToggle{
					Enabled: v.GetBool("filters.region.enabled"),
					Order:   v.GetInt("filters.region.order"),
				},
				Name: v.GetString("filters.region.name"),
			},
		},
		Telemetry: ObservabilityConfig{
			OTLPEndpoint:   v.GetString("telemetry.otlp_endpoint"),
			OTLPInsecure:   v.GetBool("telemetry.otlp_insecure"),
			SampleRatio:    v.GetFloat64("telemetry.sample_ratio"),
			ServiceName:    v.GetString("telemetry.service_name"),
			ServiceVersion: v.GetString("telemetry.service_version"),
			Environment:    v.GetString("telemetry.environment"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.ServerAddr == "" {
		return fmt.Errorf("server_addr is required")
	}

	if c.OIDC.Enabled() {
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("oidc.client_id is required when oidc.issuer is set")
		}
		if c.OIDC.ClientSecret == "" {
			return fmt.Errorf("oidc.client_secret is required when oidc.issuer is set")
		}
		if c.OIDC.RedirectURI == "" {
			return fmt.Errorf("oidc.redirect_uri is required when oidc.issuer is set")
		}
	}

	if c.Oracle.Enabled && c.Oracle.ProjectID == "" {
		return fmt.Errorf("oracle.project_id is required when the policy oracle is enabled")
	}
	if c.Oracle.Timeout <= 0 {
		return fmt.Errorf("oracle.timeout must be positive")
	}

	if strings.TrimSpace(c.Roles.DefaultAuthority) == "" {
		return fmt.Errorf("roles.default_authority must not be empty")
	}

	switch c.Session.Store {
	case SessionStoreMemory:
		if c.Session.MaxEntries <= 0 {
			return fmt.Errorf("session.max_entries must be positive")
		}
	case SessionStoreRedis:
		if c.Session.RedisURL == "" {
			return fmt.Errorf("session.redis_url is required for the redis session store")
		}
	default:
		return fmt.Errorf("unknown session.store %q (expected %q or %q)", c.Session.Store, SessionStoreMemory, SessionStoreRedis)
	}
	if c.Session.MaxAge <= 0 {
		return fmt.Errorf("session.max_age must be positive")
	}

	if c.Gateway.BackendTimeout <= 0 {
		return fmt.Errorf("gateway.backend_timeout must be positive")
	}

	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}

	return nil
}

// splitList accepts both list values and a single comma-separated string
// (the form environment variables arrive in).
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
