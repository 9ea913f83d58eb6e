package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Provider modes
const (
	ProviderLocal  = "local"
	ProviderRemote = "remote"
)

// Config holds all configuration for the auth module.
type Config struct {
	Provider string `env:"AUTH_PROVIDER" envDefault:"local"`

	// JWT Configuration
	JWTSecretKey   string        `env:"JWT_SECRET_KEY" envDefault:"dev-only-secret-key-change-me-0000"`
	JWTIssuer      string        `env:"JWT_ISSUER" envDefault:"social-connect"`
	AccessTokenTTL time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"24h"`
	ResetTokenTTL  time.Duration `env:"RESET_TOKEN_TTL" envDefault:"15m"`
	BcryptCost     int           `env:"BCRYPT_COST" envDefault:"10"`

	// Remote identity REST API
	RemoteBaseURL string        `env:"IDENTITY_API_URL" envDefault:"https://identitytoolkit.googleapis.com/v1"`
	RemoteAPIKey  string        `env:"IDENTITY_API_KEY"`
	RemoteTimeout time.Duration `env:"IDENTITY_API_TIMEOUT" envDefault:"10s"`

	// Cookie Configuration
	CookieName     string `env:"COOKIE_NAME" envDefault:"sc_token"`
	CookiePath     string `env:"COOKIE_PATH" envDefault:"/"`
	CookieDomain   string `env:"COOKIE_DOMAIN"`
	CookieSecure   bool   `env:"COOKIE_SECURE" envDefault:"false"`
	CookieHTTPOnly bool   `env:"COOKIE_HTTP_ONLY" envDefault:"true"`
	CookieSameSite string `env:"COOKIE_SAME_SITE" envDefault:"Lax"`
}

// LoadConfig loads configuration from environment variables and applies defaults.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.New("failed to load auth configuration from environment: " + err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings of the selected provider
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.JWTSecretKey == "" {
			return errors.New("jwt secret key is required")
		}
		if c.JWTIssuer == "" {
			return errors.New("jwt issuer is required")
		}
		if c.AccessTokenTTL <= 0 || c.ResetTokenTTL <= 0 {
			return errors.New("token TTLs must be positive")
		}
	case ProviderRemote:
		if c.RemoteBaseURL == "" || c.RemoteAPIKey == "" {
			return errors.New("remote auth provider needs IDENTITY_API_URL and IDENTITY_API_KEY")
		}
	default:
		return fmt.Errorf("unknown auth provider %q", c.Provider)
	}
	return nil
}

// DefaultConfig returns settings for local development and tests
func DefaultConfig() *Config {
	return &Config{
		Provider:       ProviderLocal,
		JWTSecretKey:   "dev-only-secret-key-change-me-0000",
		JWTIssuer:      "social-connect",
		AccessTokenTTL: 24 * time.Hour,
		ResetTokenTTL:  15 * time.Minute,
		BcryptCost:     10,
		RemoteTimeout:  10 * time.Second,
		CookieName:     "sc_token",
		CookiePath:     "/",
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
	}
}
