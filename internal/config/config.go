package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"idmltranslator/internal/models"
)

type Config struct {
	Addr       string `envconfig:"APP_ADDR" default:":8080"`
	BackendURL string `envconfig:"BACKEND_URL" default:"http://localhost:5000"`
	UploadsDir string `envconfig:"UPLOADS_DIR" default:"uploads"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`

	ProgressInterval time.Duration `envconfig:"PROGRESS_INTERVAL" default:"2s"`
	TranslateTimeout time.Duration `envconfig:"TRANSLATE_TIMEOUT" default:"0s"`
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CleanupInterval  time.Duration `envconfig:"CLEANUP_INTERVAL" default:"30m"`

	DefaultTargetLang string `envconfig:"DEFAULT_TARGET_LANG" default:"ar"`
	GoogleAPIKey      string `envconfig:"GOOGLE_API_KEY"`
}

// LoadEnvFile loads variables from path without overriding the environment.
// A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("APP_ADDR is required")
	}
	u, err := url.Parse(strings.TrimSpace(c.BackendURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}
	if strings.TrimSpace(c.UploadsDir) == "" {
		return fmt.Errorf("UPLOADS_DIR is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.ProgressInterval <= 0 {
		return fmt.Errorf("PROGRESS_INTERVAL must be > 0")
	}
	if c.TranslateTimeout < 0 {
		return fmt.Errorf("TRANSLATE_TIMEOUT must be >= 0")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be > 0")
	}
	if !models.IsSupportedLanguage(c.DefaultTargetLang) {
		return fmt.Errorf("DEFAULT_TARGET_LANG %q is not supported", c.DefaultTargetLang)
	}
	return nil
}

// SlogLevel returns the parsed LOG_LEVEL. Validate guarantees it parses.
func (c *Config) SlogLevel() slog.Level {
	level, _ := ParseLevel(c.LogLevel)
	return level
}

func ParseLevel(v string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(v))); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse LOG_LEVEL=%q: %w", v, err)
	}
	return level, nil
}
