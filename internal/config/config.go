// Package config provides configuration management for the product API server.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	DefaultServerPort      = 3000
	DefaultProbePort       = 0
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMetricsEnabled  = true
	DefaultAuthMode        = "apikey"
	DefaultAPIKeys         = "mysecretkey123:default" //nolint:gosec // development fallback key
	DefaultMaxBodyBytes    = 1 << 20
	DefaultCORSOrigins     = "*"
	DefaultConfigFile      = "config.yaml"
	DefaultEnvFile         = ".env"
)

// Environment variable names.
const (
	EnvPrefix          = "APP_"
	EnvConfigFile      = "APP_CONFIG_FILE"
	EnvServerPort      = "APP_SERVER_PORT"
	EnvProbePort       = "APP_PROBE_PORT"
	EnvLogLevel        = "APP_LOG_LEVEL"
	EnvShutdownTimeout = "APP_SHUTDOWN_TIMEOUT"
	EnvMetricsEnabled  = "APP_METRICS_ENABLED"
	EnvOTLPEndpoint    = "APP_OTLP_ENDPOINT"
	EnvAuthMode        = "APP_AUTH_MODE"
	EnvAPIKeys         = "APP_API_KEYS" //nolint:gosec // env var name, not a credential
	EnvBasicAuthUsers  = "APP_BASIC_AUTH_USERS"
	EnvJWTSecret       = "APP_JWT_SECRET" //nolint:gosec // env var name, not a credential
	EnvJWTIssuer       = "APP_JWT_ISSUER"
	EnvMaxBodyBytes    = "APP_MAX_BODY_BYTES"
	EnvCORSOrigins     = "APP_CORS_ORIGINS"

	// EnvLegacyAPIKey is the single-key variable of earlier deployments.
	// It is used only when APP_API_KEYS is not set.
	EnvLegacyAPIKey = "API_KEY" //nolint:gosec // env var name, not a credential
)

// Config holds the application configuration.
type Config struct {
	ServerPort      int           `koanf:"server_port"`
	ProbePort       int           `koanf:"probe_port"` // 0 disables the probe server.
	LogLevel        string        `koanf:"log_level"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MetricsEnabled  bool          `koanf:"metrics_enabled"`
	OTLPEndpoint    string        `koanf:"otlp_endpoint"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`
	CORSOrigins     string        `koanf:"cors_origins"`

	// Authentication mode: none, apikey, basic, jwt, multi.
	AuthMode string `koanf:"auth_mode"`

	// Format: "key1:name1,key2:name2".
	APIKeys string `koanf:"api_keys"`

	// Format: "user1:bcrypt_hash,user2:bcrypt_hash".
	BasicAuthUsers string `koanf:"basic_auth_users"`

	JWTSecret string `koanf:"jwt_secret"`
	JWTIssuer string `koanf:"jwt_issuer"`
}

// Validation errors.
var (
	ErrInvalidServerPort      = errors.New("server port must be between 1 and 65535")
	ErrInvalidProbePort       = errors.New("probe port must be between 0 and 65535")
	ErrProbePortConflict      = errors.New("probe port must differ from server port when probe port is not 0")
	ErrInvalidLogLevel        = errors.New("log level must be one of: debug, info, warn, error")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
	ErrInvalidMaxBodyBytes    = errors.New("max body bytes must be positive")
	ErrInvalidAuthMode        = errors.New("auth mode must be one of: none, apikey, basic, jwt, multi")
	ErrInvalidAPIKeyConfig    = errors.New("API keys must be set when auth mode is apikey")
	ErrInvalidBasicAuthConfig = errors.New("basic auth users must be set when auth mode is basic")
	ErrInvalidJWTConfig       = errors.New("JWT secret must be set when auth mode is jwt")
	ErrInvalidMultiAuthConfig = errors.New("at least one auth config must be provided when auth mode is multi")
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validAuthModes = map[string]bool{
	"none":   true,
	"apikey": true,
	"basic":  true,
	"jwt":    true,
	"multi":  true,
}

func defaults() map[string]any {
	return map[string]any{
		"server_port":      DefaultServerPort,
		"probe_port":       DefaultProbePort,
		"log_level":        DefaultLogLevel,
		"shutdown_timeout": DefaultShutdownTimeout.String(),
		"metrics_enabled":  DefaultMetricsEnabled,
		"otlp_endpoint":    "",
		"max_body_bytes":   DefaultMaxBodyBytes,
		"cors_origins":     DefaultCORSOrigins,
		"auth_mode":        DefaultAuthMode,
		"api_keys":         DefaultAPIKeys,
		"basic_auth_users": "",
		"jwt_secret":       "",
		"jwt_issuer":       "",
	}
}

// Load reads configuration from defaults, the YAML file named by
// APP_CONFIG_FILE, a .env file and the environment, in increasing priority.
func Load() (*Config, error) {
	configFile := os.Getenv(EnvConfigFile)
	if configFile == "" {
		configFile = DefaultConfigFile
	}

	return LoadFiles(configFile, DefaultEnvFile)
}

// LoadFiles is Load with explicit file locations. Missing files are skipped.
func LoadFiles(configFile, envFile string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if configFile != "" {
		if err := k.Load(file.Provider(configFile), yaml.Parser()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading config file %s: %w", configFile, err)
		}
	}

	if legacy := os.Getenv(EnvLegacyAPIKey); legacy != "" {
		if err := k.Load(confmap.Provider(map[string]any{"api_keys": legacy + ":default"}, "."), nil); err != nil {
			return nil, fmt.Errorf("loading %s: %w", EnvLegacyAPIKey, err)
		}
	}

	if envFile != "" {
		if err := loadEnvFile(k, envFile); err != nil {
			return nil, err
		}
	}

	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return keyTransformer(key), value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading config from environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads APP_ prefixed entries of a dotenv file.
func loadEnvFile(k *koanf.Koanf, path string) error {
	entries, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading env file %s: %w", path, err)
	}

	values := make(map[string]any, len(entries))
	for key, value := range entries {
		if strings.HasPrefix(key, EnvPrefix) && value != "" {
			values[keyTransformer(key)] = value
		}
	}

	if err := k.Load(confmap.Provider(values, "."), nil); err != nil {
		return fmt.Errorf("loading env file %s: %w", path, err)
	}

	return nil
}

// keyTransformer maps APP_SERVER_PORT to server_port.
func keyTransformer(key string) string {
	return strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
}

// Validate checks if the configuration values are valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	return c.validateAuth()
}

func (c *Config) validateServer() error {
	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return ErrInvalidServerPort
	}

	if c.ProbePort < 0 || c.ProbePort > 65535 {
		return ErrInvalidProbePort
	}

	if c.ProbePort != 0 && c.ProbePort == c.ServerPort {
		return ErrProbePortConflict
	}

	if !validLogLevels[c.LogLevel] {
		return ErrInvalidLogLevel
	}

	if c.ShutdownTimeout <= 0 {
		return ErrInvalidShutdownTimeout
	}

	if c.MaxBodyBytes <= 0 {
		return ErrInvalidMaxBodyBytes
	}

	return nil
}

func (c *Config) validateAuth() error {
	if !validAuthModes[c.AuthMode] {
		return ErrInvalidAuthMode
	}

	switch c.AuthMode {
	case "apikey":
		if c.APIKeys == "" {
			return ErrInvalidAPIKeyConfig
		}
	case "basic":
		if c.BasicAuthUsers == "" {
			return ErrInvalidBasicAuthConfig
		}
	case "jwt":
		if c.JWTSecret == "" {
			return ErrInvalidJWTConfig
		}
	case "multi":
		if c.APIKeys == "" && c.BasicAuthUsers == "" && c.JWTSecret == "" {
			return ErrInvalidMultiAuthConfig
		}
	}

	return nil
}

// UsesDefaultAPIKey reports whether the built-in development key is active.
func (c *Config) UsesDefaultAPIKey() bool {
	if c.AuthMode != "apikey" && c.AuthMode != "multi" {
		return false
	}
	return c.APIKeys == DefaultAPIKeys
}

// AllowedOrigins returns the configured CORS origins.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Address returns the server address in host:port format.
func (c *Config) Address() string {
	return fmt.Sprintf(":%d", c.ServerPort)
}

// ProbeAddress returns the probe server address in host:port format.
func (c *Config) ProbeAddress() string {
	return fmt.Sprintf(":%d", c.ProbePort)
}

// String renders the configuration with secrets masked.
func (c *Config) String() string {
	return fmt.Sprintf(
		"server_port=%d probe_port=%d log_level=%s shutdown_timeout=%s metrics_enabled=%t "+
			"otlp_endpoint=%q max_body_bytes=%d cors_origins=%q auth_mode=%s api_keys=%s "+
			"basic_auth_users=%s jwt_secret=%s jwt_issuer=%q",
		c.ServerPort, c.ProbePort, c.LogLevel, c.ShutdownTimeout, c.MetricsEnabled,
		c.OTLPEndpoint, c.MaxBodyBytes, c.CORSOrigins, c.AuthMode, mask(c.APIKeys),
		mask(c.BasicAuthUsers), mask(c.JWTSecret), c.JWTIssuer,
	)
}

func mask(secret string) string {
	if secret == "" {
		return "<not configured>"
	}
	return "****"
}
