package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"

	"github.com/Cheertaboi/pos-offer-service/pkg/db"
)

type Config struct {
	DB db.PostgresConfig

	HTTPAddr       string `env:"HTTP_ADDR" envDefault:":8080"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"true"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`

	// Evaluation
	Timezone        string        `env:"TIMEZONE" envDefault:"Asia/Kolkata"`
	CurrencySymbol  string        `env:"CURRENCY_SYMBOL" envDefault:"₹"`
	EvalConcurrency int           `env:"EVAL_CONCURRENCY" envDefault:"8"`
	CatalogTTL      time.Duration `env:"CATALOG_TTL" envDefault:"30s"`
	LookupTimeout   time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"2s"`

	// Usage events; publishing is off when AMQPURL is empty
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"offers_topic"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errors.Wrap(err, "load .env")
	}
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if cfg.EvalConcurrency <= 0 {
		return nil, errors.Errorf("EVAL_CONCURRENCY must be positive, got %d", cfg.EvalConcurrency)
	}
	return cfg, nil
}

// Location resolves Timezone, the zone all date, hour and weekday checks
// are made in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "load timezone %q", c.Timezone)
	}
	return loc, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
