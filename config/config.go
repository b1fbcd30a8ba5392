package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	HTTPAddr          string        `env:"HTTP_ADDR" envDefault:":5000"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:5173"`
	PublicURL         string        `env:"PUBLIC_URL" envDefault:"http://localhost:5173"`
	Storage           string        `env:"STORAGE" envDefault:"memory"`
	PostgresURL       string        `env:"POSTGRES_URL"`
	RedisURL          string        `env:"REDIS_URL"`
	StateRetention    time.Duration `env:"STATE_RETENTION" envDefault:"168h"`
	WordsSource       string        `env:"WORDS_SOURCE" envDefault:"static"`
	DictionaryURL     string        `env:"DICTIONARY_URL" envDefault:"https://api.dictionaryapi.dev/api/v2/entries/en/"`
	DictionaryTimeout time.Duration `env:"DICTIONARY_TIMEOUT" envDefault:"3s"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty         bool          `env:"LOG_PRETTY" envDefault:"false"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case "memory":
	case "postgres":
		if c.PostgresURL == "" {
			return errors.New("STORAGE=postgres requires POSTGRES_URL")
		}
	case "redis":
		if c.RedisURL == "" {
			return errors.New("STORAGE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}

	switch c.WordsSource {
	case "static":
	case "postgres":
		if c.PostgresURL == "" {
			return errors.New("WORDS_SOURCE=postgres requires POSTGRES_URL")
		}
	default:
		return fmt.Errorf("unknown WORDS_SOURCE %q", c.WordsSource)
	}
	if c.StateRetention <= 0 {
		return errors.New("STATE_RETENTION must be positive")
	}
	return nil
}
