// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the typed process configuration.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Dev enables the stub adapter fallback, the backup identity header and
	// the no-credential development identity. Never set in production.
	Dev bool `env:"PHASE_DEV" envDefault:"false"`

	IdentityAdapter string        `env:"CHAIN_ADAPTER" envDefault:"ton"`
	BotToken        string        `env:"TELEGRAM_BOT_TOKEN"`
	AdapterTimeout  time.Duration `env:"IDENTITY_ADAPTER_TIMEOUT" envDefault:"5s"`
	CredentialTTL   time.Duration `env:"IDENTITY_CREDENTIAL_TTL" envDefault:"24h"`

	StorageDriver string `env:"LEDGER_STORAGE" envDefault:"sqlite"`
	SQLitePath    string `env:"LEDGER_SQLITE_PATH" envDefault:"nexus_vault.db"`
	PostgresDSN   string `env:"POSTGRES_DSN"`

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"split_committed"`
}

// LoadDotEnv reads the given .env files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.BotToken = strings.Trim(strings.TrimSpace(cfg.BotToken), `"'`)
	cfg.KafkaBrokers = compact(cfg.KafkaBrokers)
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func compact(values []string) []string {
	var out []string
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value != "" {
			out = append(out, value)
		}
	}
	return out
}
