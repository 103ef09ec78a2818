package booksurf

import (
	"github.com/caarlos0/env/v11"
	goerrors "github.com/goliatone/go-errors"
)

// Config holds everything the server needs, loaded from environment
// variables.
type Config struct {
	Server    Server    `envPrefix:"SERVER_"`
	Database  Database  `envPrefix:"DATABASE_"`
	Session   Session   `envPrefix:"SESSION_"`
	Mail      Mail      `envPrefix:"MAIL_"`
	Workflows Workflows `envPrefix:"WORKFLOW_"`
	RateLimit RateLimit `envPrefix:"RATE_LIMIT_"`
}

type Server struct {
	Addr string `env:"ADDR" envDefault:":3000"`
	// BaseURL is the public address the workflow orchestrator calls back on
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`
}

type Database struct {
	DSN string `env:"DSN" envDefault:"file:booksurf.db?cache=shared&mode=rwc"`
}

type Session struct {
	SigningKey      string `env:"SIGNING_KEY" envDefault:"devsecret"`
	Issuer          string `env:"ISSUER" envDefault:"booksurf"`
	ExpirationHours int    `env:"EXPIRATION_HOURS" envDefault:"24"`
}

func (s Session) GetSigningKey() string   { return s.SigningKey }
func (s Session) GetIssuer() string       { return s.Issuer }
func (s Session) GetTokenExpiration() int { return s.ExpirationHours }

type Mail struct {
	Endpoint string `env:"ENDPOINT"`
	Token    string `env:"TOKEN"`
	From     string `env:"FROM" envDefault:"BookSurf <onboarding@booksurf.dev>"`
}

type Workflows struct {
	// Endpoint is the orchestrator API address. Empty disables triggering,
	// which is useful in tests and local development.
	Endpoint string `env:"ENDPOINT"`
	Token    string `env:"TOKEN"`
}

type RateLimit struct {
	Max       int `env:"MAX" envDefault:"5"`
	WindowSec int `env:"WINDOW_SEC" envDefault:"60"`
}

// NewConfig loads configuration from environment variables
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to parse config")
	}

	return &cfg, nil
}
