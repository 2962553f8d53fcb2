package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the consultation backend.
// Environment variables are parsed from the CONSULT_BACKEND_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// MongoDB Configuration
	MongoURI      string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase string `envconfig:"MONGO_DATABASE" default:"medsage"`

	// Auth Configuration
	JWTSecret            string `envconfig:"JWT_SECRET" default:""`
	JWTRefreshSecret     string `envconfig:"JWT_REFRESH_SECRET" default:""`
	AccessTokenTTLHours  int    `envconfig:"ACCESS_TOKEN_TTL_HOURS" default:"168"`
	RefreshTokenTTLHours int    `envconfig:"REFRESH_TOKEN_TTL_HOURS" default:"720"`
	BcryptCost           int    `envconfig:"BCRYPT_COST" default:"12"`

	// External consultation service
	BotBaseURL        string `envconfig:"BOT_BASE_URL" default:"http://localhost:5000"`
	BotTimeoutSeconds int    `envconfig:"BOT_TIMEOUT_SECONDS" default:"30"`

	// Session lifecycle
	SessionTTLSeconds int `envconfig:"SESSION_TTL_SECONDS" default:"3600"`

	// Health checking
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"2"`
}

// ResolveDefaults validates the configuration and fills environment-dependent
// fallbacks. Token secrets must be set explicitly outside development.
func (c *Config) ResolveDefaults() error {
	switch c.Environment {
	case EnvDevelopment, EnvTesting, EnvProduction:
	default:
		return fmt.Errorf("unsupported ENVIRONMENT: %s", c.Environment)
	}

	if c.JWTSecret == "" || c.JWTRefreshSecret == "" {
		if c.IsProduction() {
			return fmt.Errorf("JWT_SECRET and JWT_REFRESH_SECRET are required in production")
		}
		if c.JWTSecret == "" {
			c.JWTSecret = "dev_access_secret"
		}
		if c.JWTRefreshSecret == "" {
			c.JWTRefreshSecret = "dev_refresh_secret"
		}
	}

	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost)
	}
	if c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_TTL_SECONDS must be positive")
	}
	if c.BotTimeoutSeconds <= 0 {
		return fmt.Errorf("BOT_TIMEOUT_SECONDS must be positive")
	}
	return nil
}

// New creates a new Config by parsing environment variables.
// Example: CONSULT_BACKEND_HTTP_PORT, CONSULT_BACKEND_MONGO_URI.
func New() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("CONSULT_BACKEND", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewForTesting creates a config suitable for unit tests.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		MongoURI:                  "mongodb://localhost:27017",
		MongoDatabase:             "medsage_test",
		JWTSecret:                 "test_access_secret",
		JWTRefreshSecret:          "test_refresh_secret",
		AccessTokenTTLHours:       1,
		RefreshTokenTTLHours:      24,
		BcryptCost:                4,
		BotBaseURL:                "http://localhost:5000",
		BotTimeoutSeconds:         5,
		SessionTTLSeconds:         3600,
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 2,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool {
	return c.Environment == EnvTesting
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string {
	return fmt.Sprintf(":%d", c.HTTPPort)
}
