package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "localhost:8080", cfg.Server.Address())
	require.Equal(t, []string{"*"}, cfg.Server.CORSAllowedOrigins)
	require.Equal(t, DriverPostgres, cfg.Database.Driver)
	require.True(t, cfg.Database.MigrateOnStart)
	require.True(t, cfg.Redis.Enabled())
	require.Equal(t, "authenticated", cfg.Identity.Audience)
	require.Equal(t, 15*time.Second, cfg.Lifecycle.Interval)
	require.True(t, cfg.Lifecycle.OnView)
	require.Equal(t, 3, cfg.Notification.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, cfg.Notification.RetryBackoff)
	require.Equal(t, 512, cfg.Cache.ProfileSize)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv(Port, "9090")
	t.Setenv(StoreDriver, "MEMORY")
	t.Setenv(RedisAddr, "")
	t.Setenv(CORSAllowedOrigins, "https://heelbid.app, http://localhost:5173")
	t.Setenv(SweepInterval, "1m")
	t.Setenv(SweepOnView, "false")
	t.Setenv(JWTSecret, "secret")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	require.Equal(t, "9090", cfg.Server.Port)
	require.True(t, cfg.Database.InMemory())
	require.False(t, cfg.Redis.Enabled())
	require.Equal(t, []string{"https://heelbid.app", "http://localhost:5173"}, cfg.Server.CORSAllowedOrigins)
	require.Equal(t, time.Minute, cfg.Lifecycle.Interval)
	require.False(t, cfg.Lifecycle.OnView)
	require.NoError(t, cfg.Validate())
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:       ServerConfig{Port: "8080"},
			Database:     DatabaseConfig{URL: "postgres://localhost/heelbid", Driver: DriverPostgres},
			Identity:     IdentityConfig{Secret: "secret"},
			Lifecycle:    LifecycleConfig{Interval: time.Second},
			Notification: NotificationConfig{Workers: 1},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "memory_needs_no_url", mutate: func(c *Config) { c.Database = DatabaseConfig{Driver: DriverMemory} }},
		{name: "missing_port", mutate: func(c *Config) { c.Server.Port = "" }, wantErr: "server port is required"},
		{name: "missing_url", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "database URL is required"},
		{name: "unknown_driver", mutate: func(c *Config) { c.Database.Driver = "sqlite" }, wantErr: `unknown store driver "sqlite"`},
		{name: "missing_secret", mutate: func(c *Config) { c.Identity.Secret = "" }, wantErr: "JWT secret is required"},
		{name: "negative_interval", mutate: func(c *Config) { c.Lifecycle.Interval = -time.Second }, wantErr: "sweep interval must not be negative"},
		{name: "no_workers", mutate: func(c *Config) { c.Notification.Workers = 0 }, wantErr: "notification workers must be at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
		})
	}
}
