package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.False(t, cfg.OIDC.Enabled())
	assert.Equal(t, []string{"openid", "profile", "email"}, cfg.OIDC.Scopes)
	assert.Equal(t, "/login/sso", cfg.Login.Path)
	assert.Equal(t, "restaurant-app-479711", cfg.Oracle.ProjectID)
	assert.Equal(t, 5*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, "CLIENT", cfg.Roles.DefaultAuthority)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
	assert.Equal(t, 30*time.Second, cfg.Gateway.BackendTimeout)
	assert.True(t, cfg.Filters.Device.Enabled)
	assert.Equal(t, 2, cfg.Filters.Region.Order)
	assert.Equal(t, "EU-RO-Brasov-Node1", cfg.Filters.Region.Name)
	assert.InDelta(t, 1.0, cfg.Telemetry.SampleRatio, 0)
}

// TestLoad_WithEnvironmentVariables tests that GATEWAY_ prefixed environment variables work
func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("GATEWAY_SERVER_ADDR", "127.0.0.1:9090")
	t.Setenv("GATEWAY_DEBUG", "true")
	t.Setenv("GATEWAY_ORACLE_PROJECT_ID", "restaurant-480818")
	t.Setenv("GATEWAY_ORACLE_TIMEOUT", "2s")
	t.Setenv("GATEWAY_ROLES_PRIVILEGED_EMAILS", "chef@example.com, owner@example.com")
	t.Setenv("GATEWAY_FILTERS_REGION_NAME", "EU-RO-Cluj-Node2")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9090", cfg.ServerAddr)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "restaurant-480818", cfg.Oracle.ProjectID)
	assert.Equal(t, 2*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, []string{"chef@example.com", "owner@example.com"}, cfg.Roles.PrivilegedEmails)
	assert.Equal(t, "EU-RO-Cluj-Node2", cfg.Filters.Region.Name)
}

// TestLoad_WithConfigFile tests config file loading
func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "gateway.yaml")

	configContent := `
server_addr: "0.0.0.0:8888"
oidc:
  issuer: "https://accounts.google.com"
  client_id: "gateway-client"
  client_secret: "secret"
  redirect_uri: "http://localhost:8888/login/oauth2/callback"
session:
  store: redis
  redis_url: "redis://localhost:6379/0"
filters:
  timing:
    enabled: false
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	v := viper.New()
	v.SetConfigFile(configPath)
	require.NoError(t, v.ReadInConfig())

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8888", cfg.ServerAddr)
	assert.True(t, cfg.OIDC.Enabled())
	assert.Equal(t, "gateway-client", cfg.OIDC.ClientID)
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Session.RedisURL)
	assert.False(t, cfg.Filters.Timing.Enabled)
	assert.True(t, cfg.Filters.Device.Enabled)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{
			name: "issuer without client id",
			env:  map[string]string{"GATEWAY_OIDC_ISSUER": "https://idp.example.com"},
			want: "oidc.client_id",
		},
		{
			name: "redis store without url",
			env:  map[string]string{"GATEWAY_SESSION_STORE": "redis"},
			want: "session.redis_url",
		},
		{
			name: "unknown session store",
			env:  map[string]string{"GATEWAY_SESSION_STORE": "postgres"},
			want: "unknown session.store",
		},
		{
			name: "non-positive oracle timeout",
			env:  map[string]string{"GATEWAY_ORACLE_TIMEOUT": "0s"},
			want: "oracle.timeout",
		},
		{
			name: "sample ratio above one",
			env:  map[string]string{"GATEWAY_TELEMETRY_SAMPLE_RATIO": "1.5"},
			want: "telemetry.sample_ratio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadFrom(viper.New())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
