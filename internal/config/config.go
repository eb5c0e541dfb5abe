// Package config loads the immutable server configuration.
//
// All configuration is read exactly once, in main, and passed down by
// value. No other package reads environment variables — this replaces the
// mutable process-wide env lookups the rest of the code would otherwise
// accumulate, and makes every component testable with a literal Config.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// OAuthProvider holds the client credentials for one OAuth provider.
// A provider with an empty ClientID is considered disabled and its
// routes are not registered.
type OAuthProvider struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	CallbackURL  string `env:"CALLBACK_URL"`
}

// Config is the complete server configuration.
type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Port int    `env:"PORT" envDefault:"8080"`

	DBPath string `env:"DB_PATH" envDefault:"data/blog.db"`

	// JWTSecret signs access tokens; RefreshSecret signs refresh tokens.
	// Separate secrets let refresh tokens outlive access tokens and be
	// revoked independently.
	JWTSecret        string        `env:"JWT_SECRET"`
	JWTExpiresIn     time.Duration `env:"JWT_EXPIRES_IN" envDefault:"15m"`
	RefreshSecret    string        `env:"REFRESH_SECRET"`
	RefreshExpiresIn time.Duration `env:"REFRESH_EXPIRES_IN" envDefault:"168h"`

	// AdminCode is the server-side secret that promotes an account to
	// admin when supplied in a profile update.
	AdminCode string `env:"ADMIN_CODE"`

	MaxPageSize       int `env:"MAX_PAGE_SIZE" envDefault:"30"`
	MaxAbstractLength int `env:"MAX_ABSTRACT_LENGTH" envDefault:"100"`

	Google OAuthProvider `envPrefix:"GOOGLE_"`
	GitHub OAuthProvider `envPrefix:"GITHUB_"`
}

// Load builds a Config from the environment. In development a .env file
// in the working directory is loaded first; a missing file is not an
// error.
func Load() (Config, error) {
	if os.Getenv("ENV") != "production" {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing environment: %w", err)
	}

	if cfg.RefreshExpiresIn < cfg.JWTExpiresIn {
		return Config{}, fmt.Errorf("config: REFRESH_EXPIRES_IN must not be shorter than JWT_EXPIRES_IN")
	}

	return cfg, nil
}

// IsProduction reports whether the server runs with production hardening
// (secure cookies, suppressed error detail).
func (c Config) IsProduction() bool {
	return c.Env == "production"
}
