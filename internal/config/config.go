// Package config loads process configuration from a .env file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting the commands read.
type Config struct {
	SupabaseURL     string        `env:"SUPABASE_URL"`
	SupabaseKey     string        `env:"SUPABASE_KEY"`
	GeminiAPIKey    string        `env:"GEMINI_API_KEY"`
	Model           string        `env:"FUTURESLAB_MODEL" envDefault:"gemini-2.0-flash-exp"`
	Addr            string        `env:"FUTURESLAB_ADDR" envDefault:":8080"`
	Sector          string        `env:"FUTURESLAB_SECTOR" envDefault:"Alliander"`
	CodePrefix      string        `env:"FUTURESLAB_CODE_PREFIX" envDefault:"ALL"`
	GenerateTimeout time.Duration `env:"FUTURESLAB_GENERATE_TIMEOUT" envDefault:"60s"`
	LogLevel        string        `env:"FUTURESLAB_LOG_LEVEL" envDefault:"info"`
	Dev             bool          `env:"FUTURESLAB_DEV" envDefault:"false"`
	APIURL          string        `env:"FUTURESLAB_API_URL" envDefault:"http://localhost:8080"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads the given .env files (".env" when none are named) into the
// environment without overriding variables already set, then parses Config.
// A missing file is not an error.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RequireSupabase reports a missing database connection setting.
func (c Config) RequireSupabase() error {
	var errs []error
	if c.SupabaseURL == "" {
		errs = append(errs, errors.New("SUPABASE_URL is not set"))
	}
	if c.SupabaseKey == "" {
		errs = append(errs, errors.New("SUPABASE_KEY is not set"))
	}
	return errors.Join(errs...)
}

// RequireGemini reports a missing model credential.
func (c Config) RequireGemini() error {
	if c.GeminiAPIKey == "" {
		return errors.New("GEMINI_API_KEY is not set")
	}
	if c.GenerateTimeout <= 0 {
		return fmt.Errorf("FUTURESLAB_GENERATE_TIMEOUT must be positive, got %s", c.GenerateTimeout)
	}
	return nil
}
