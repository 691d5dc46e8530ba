package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/pricingkit/pkg/catalog"
	"github.com/dmitrymomot/pricingkit/pkg/httpserver"
	"github.com/dmitrymomot/pricingkit/pkg/pricing"
	"github.com/dmitrymomot/pricingkit/pkg/quote"
	"github.com/dmitrymomot/pricingkit/pkg/telemetry"
)

// Catalog backends.
const (
	BackendFile     = "file"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendPaddle   = "paddle"
	BackendHTTP     = "http"
)

var (
	ErrParsingConfig  = errors.New("pricingd: failed to parse config")
	ErrUnknownBackend = errors.New("pricingd: unknown catalog backend")
	ErrMissingSetting = errors.New("pricingd: required setting is missing")
)

// Config is the full pricingd configuration.
type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"SERVICE_NAME" envDefault:"pricingd"`

	// Backend selects the catalog source: file, s3, postgres, paddle or http.
	Backend     string `env:"CATALOG_BACKEND" envDefault:"file"`
	CatalogFile string `env:"CATALOG_FILE" envDefault:"catalog.yaml"`
	// TaxBackend supplies tax rules for the paddle backend: file or postgres.
	TaxBackend string `env:"CATALOG_TAX_BACKEND" envDefault:"file"`
	APIKey     string `env:"CATALOG_API_KEY"` // Protects the served catalog API when set.

	PruneInterval time.Duration `env:"QUOTE_PRUNE_INTERVAL" envDefault:"1m"`

	HTTP     httpserver.Config
	Pricing  pricing.Config
	Quote    quote.Config
	Tracing  telemetry.Config
	Postgres catalog.PostgresConfig
	Redis    catalog.RedisConfig
	Paddle   catalog.PaddleConfig
	S3       catalog.S3Config   `envPrefix:"CATALOG_"`
	Resolver catalog.HTTPConfig `envPrefix:"UPSTREAM_"`
}

// loadConfig reads an optional .env file and parses the environment.
func loadConfig() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	missing := func(name string) error {
		return errors.Join(ErrMissingSetting, fmt.Errorf("%s is required for the %s backend", name, c.Backend))
	}

	switch c.Backend {
	case BackendFile:
		if c.CatalogFile == "" {
			return missing("CATALOG_FILE")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return missing("CATALOG_S3_BUCKET")
		}
	case BackendPostgres:
		if c.Postgres.ConnectionString == "" {
			return missing("PG_CONN_URL")
		}
	case BackendPaddle:
		if c.Paddle.APIKey == "" {
			return missing("PADDLE_API_KEY")
		}
		switch c.TaxBackend {
		case BackendFile:
			if c.CatalogFile == "" {
				return missing("CATALOG_FILE")
			}
		case BackendPostgres:
			if c.Postgres.ConnectionString == "" {
				return missing("PG_CONN_URL")
			}
		default:
			return errors.Join(ErrUnknownBackend, fmt.Errorf("tax backend %q", c.TaxBackend))
		}
	case BackendHTTP:
		if c.Resolver.BaseURL == "" {
			return missing("UPSTREAM_RESOLVER_URL")
		}
	default:
		return errors.Join(ErrUnknownBackend, fmt.Errorf("%q", c.Backend))
	}
	return nil
}

// usesPostgres reports whether the configuration needs a database pool.
func (c Config) usesPostgres() bool {
	return c.Backend == BackendPostgres || (c.Backend == BackendPaddle && c.TaxBackend == BackendPostgres)
}
