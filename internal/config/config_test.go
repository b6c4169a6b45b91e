package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allEnvVars = []string{
	EnvConfigFile,
	EnvServerPort,
	EnvProbePort,
	EnvLogLevel,
	EnvShutdownTimeout,
	EnvMetricsEnabled,
	EnvOTLPEndpoint,
	EnvAuthMode,
	EnvAPIKeys,
	EnvBasicAuthUsers,
	EnvJWTSecret,
	EnvJWTIssuer,
	EnvMaxBodyBytes,
	EnvCORSOrigins,
	EnvLegacyAPIKey,
}

// clearEnvVars unsets every variable Load reads and restores them afterwards.
func clearEnvVars(t *testing.T) {
	t.Helper()
	for _, key := range allEnvVars {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	// Arrange
	clearEnvVars(t)

	// Act
	cfg, err := LoadFiles("", "")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.ServerPort)
	assert.Equal(t, DefaultProbePort, cfg.ProbePort)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultShutdownTimeout, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultMetricsEnabled, cfg.MetricsEnabled)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
	assert.Equal(t, DefaultAuthMode, cfg.AuthMode)
	assert.Equal(t, DefaultAPIKeys, cfg.APIKeys)
	assert.Empty(t, cfg.OTLPEndpoint)
	assert.True(t, cfg.UsesDefaultAPIKey())
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}

func TestLoad_MissingFilesAreSkipped(t *testing.T) {
	clearEnvVars(t)
	dir := t.TempDir()

	cfg, err := LoadFiles(filepath.Join(dir, "absent.yaml"), filepath.Join(dir, ".env"))

	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.ServerPort)
}

func TestLoad_UsesConfigFileFromEnv(t *testing.T) {
	clearEnvVars(t)
	t.Setenv(EnvConfigFile, writeFile(t, "app.yaml", "server_port: 7070\n"))

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.ServerPort)
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(*testing.T, *Config)
	}{
		{
			name:    "custom server port",
			envVars: map[string]string{EnvServerPort: "9090"},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.ServerPort)
			},
		},
		{
			name:    "custom shutdown timeout",
			envVars: map[string]string{EnvShutdownTimeout: "45s"},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 45*time.Second, cfg.ShutdownTimeout)
			},
		},
		{
			name:    "metrics disabled",
			envVars: map[string]string{EnvMetricsEnabled: "false"},
			validate: func(t *testing.T, cfg *Config) {
				assert.False(t, cfg.MetricsEnabled)
			},
		},
		{
			name: "jwt mode",
			envVars: map[string]string{
				EnvAuthMode:  "jwt",
				EnvJWTSecret: "s3cret",
				EnvJWTIssuer: "catalog",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "jwt", cfg.AuthMode)
				assert.Equal(t, "s3cret", cfg.JWTSecret)
				assert.Equal(t, "catalog", cfg.JWTIssuer)
				assert.False(t, cfg.UsesDefaultAPIKey())
			},
		},
		{
			name:    "custom api keys",
			envVars: map[string]string{EnvAPIKeys: "k1:svc"},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "k1:svc", cfg.APIKeys)
				assert.False(t, cfg.UsesDefaultAPIKey())
			},
		},
		{
			name:    "legacy API_KEY",
			envVars: map[string]string{EnvLegacyAPIKey: "oldkey"},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "oldkey:default", cfg.APIKeys)
			},
		},
		{
			name:    "APP_API_KEYS wins over legacy API_KEY",
			envVars: map[string]string{EnvLegacyAPIKey: "oldkey", EnvAPIKeys: "new:svc"},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "new:svc", cfg.APIKeys)
			},
		},
		{
			name:    "cors origins list",
			envVars: map[string]string{EnvCORSOrigins: "http://a.test, http://b.test,"},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins())
			},
		},
		{
			name:    "empty value keeps default",
			envVars: map[string]string{EnvLogLevel: ""},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			clearEnvVars(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			// Act
			cfg, err := LoadFiles("", "")

			// Assert
			require.NoError(t, err)
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_LayerPriority(t *testing.T) {
	// Arrange
	clearEnvVars(t)
	yamlPath := writeFile(t, "config.yaml", strings.Join([]string{
		"server_port: 4000",
		"log_level: debug",
		"shutdown_timeout: 10s",
		"max_body_bytes: 2048",
	}, "\n"))
	envPath := writeFile(t, ".env", strings.Join([]string{
		"APP_LOG_LEVEL=warn",
		"APP_SHUTDOWN_TIMEOUT=20s",
		"UNRELATED=ignored",
	}, "\n"))
	t.Setenv(EnvShutdownTimeout, "5s")

	// Act
	cfg, err := LoadFiles(yamlPath, envPath)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.ServerPort, "yaml overrides defaults")
	assert.Equal(t, "warn", cfg.LogLevel, ".env overrides yaml")
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout, "environment overrides .env")
	assert.Equal(t, int64(2048), cfg.MaxBodyBytes)
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		envVar string
		value  string
	}{
		{"invalid server port", EnvServerPort, "not-a-number"},
		{"invalid shutdown timeout", EnvShutdownTimeout, "forever"},
		{"invalid metrics flag", EnvMetricsEnabled, "maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv(tt.envVar, tt.value)

			_, err := LoadFiles("", "")

			assert.Error(t, err)
		})
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	clearEnvVars(t)

	_, err := LoadFiles(writeFile(t, "config.yaml", "server_port: [unclosed"), "")

	assert.Error(t, err)
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{"port zero", map[string]string{EnvServerPort: "0"}, ErrInvalidServerPort},
		{"port too high", map[string]string{EnvServerPort: "70000"}, ErrInvalidServerPort},
		{"probe port negative", map[string]string{EnvProbePort: "-1"}, ErrInvalidProbePort},
		{"probe equals server", map[string]string{EnvServerPort: "8080", EnvProbePort: "8080"}, ErrProbePortConflict},
		{"bad log level", map[string]string{EnvLogLevel: "verbose"}, ErrInvalidLogLevel},
		{"negative timeout", map[string]string{EnvShutdownTimeout: "-1s"}, ErrInvalidShutdownTimeout},
		{"zero body limit", map[string]string{EnvMaxBodyBytes: "0"}, ErrInvalidMaxBodyBytes},
		{"unknown auth mode", map[string]string{EnvAuthMode: "oidc"}, ErrInvalidAuthMode},
		{"basic without users", map[string]string{EnvAuthMode: "basic"}, ErrInvalidBasicAuthConfig},
		{"jwt without secret", map[string]string{EnvAuthMode: "jwt"}, ErrInvalidJWTConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnvVars(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			_, err := LoadFiles("", "")

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "error = %v, want %v", err, tt.wantErr)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() Config {
		return Config{
			ServerPort:      3000,
			LogLevel:        "info",
			ShutdownTimeout: time.Second,
			MaxBodyBytes:    1024,
			AuthMode:        "apikey",
			APIKeys:         "k:n",
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr error
	}{
		{"valid", func(*Config) {}, nil},
		{"none needs nothing", func(c *Config) { c.AuthMode = "none"; c.APIKeys = "" }, nil},
		{"apikey without keys", func(c *Config) { c.APIKeys = "" }, ErrInvalidAPIKeyConfig},
		{"multi with jwt only", func(c *Config) { c.AuthMode = "multi"; c.APIKeys = ""; c.JWTSecret = "s" }, nil},
		{"multi with nothing", func(c *Config) { c.AuthMode = "multi"; c.APIKeys = "" }, ErrInvalidMultiAuthConfig},
		{"empty auth mode", func(c *Config) { c.AuthMode = "" }, ErrInvalidAuthMode},
		{"probe port set", func(c *Config) { c.ProbePort = 9090 }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)

			err := cfg.Validate()

			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfig_Address(t *testing.T) {
	cfg := &Config{ServerPort: 3000, ProbePort: 9090}

	assert.Equal(t, ":3000", cfg.Address())
	assert.Equal(t, ":9090", cfg.ProbeAddress())
}

func TestConfig_StringMasksSecrets(t *testing.T) {
	cfg := &Config{
		ServerPort: 3000,
		AuthMode:   "multi",
		APIKeys:    "topsecret:svc",
		JWTSecret:  "jwt-secret-value",
	}

	s := cfg.String()

	assert.NotContains(t, s, "topsecret")
	assert.NotContains(t, s, "jwt-secret-value")
	assert.Contains(t, s, "api_keys=****")
	assert.Contains(t, s, "basic_auth_users=<not configured>")
}
