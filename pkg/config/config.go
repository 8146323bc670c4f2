package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for kawsay-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
// The struct is built once at startup and passed into service constructors;
// nothing mutates it afterwards.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis cache (optional; only derived suppression counts are cached)
	Redis RedisConfig `yaml:"redis"`

	// Privacy core policy knobs
	Privacy PrivacyConfig `yaml:"privacy"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"kawsay"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"kawsay_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds optional Redis configuration. Empty host disables caching.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// PrivacyConfig holds the privacy pipeline policy knobs.
type PrivacyConfig struct {
	// MinGroupSize is the k-anonymity threshold: insights backed by fewer
	// distinct sources are suppressed.
	MinGroupSize int `yaml:"min_group_size" env:"PRIVACY_MIN_GROUP_SIZE" env-default:"5"`

	// ApprovalTTLHours is how long an approved reidentification request
	// stays resolvable before it expires.
	ApprovalTTLHours int `yaml:"approval_ttl_hours" env:"PRIVACY_APPROVAL_TTL_HOURS" env-default:"24"`

	// RequiredApprovals selects the reidentification approval policy:
	// 1 = a single reviewer distinct from the requester,
	// 2 = dual control (two distinct reviewers via first_approved).
	RequiredApprovals int `yaml:"required_approvals" env:"PRIVACY_REQUIRED_APPROVALS" env-default:"1"`

	// VaultEncryptionKey encrypts original identity values at rest in the
	// PII vault. Must be a 32-byte key, base64 encoded (openssl rand -base64 32)
	// or any passphrase. Server fails to start if unset.
	VaultEncryptionKey string `yaml:"-" env:"VAULT_ENCRYPTION_KEY"`
}

// ApprovalTTL returns the approval TTL as a duration.
func (p *PrivacyConfig) ApprovalTTL() time.Duration {
	return time.Duration(p.ApprovalTTLHours) * time.Hour
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate rejects configurations that would weaken the privacy guarantees.
func (c *Config) validate() error {
	if c.Privacy.MinGroupSize < 2 {
		return fmt.Errorf("privacy.min_group_size must be at least 2, got %d", c.Privacy.MinGroupSize)
	}
	if c.Privacy.ApprovalTTLHours < 1 {
		return fmt.Errorf("privacy.approval_ttl_hours must be at least 1, got %d", c.Privacy.ApprovalTTLHours)
	}
	if c.Privacy.RequiredApprovals < 1 || c.Privacy.RequiredApprovals > 2 {
		return fmt.Errorf("privacy.required_approvals must be 1 or 2, got %d", c.Privacy.RequiredApprovals)
	}
	if c.Privacy.VaultEncryptionKey == "" {
		return fmt.Errorf("VAULT_ENCRYPTION_KEY must be set")
	}
	return nil
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.Split(pair, "=")
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
