package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"APP_ADDR", "BACKEND_URL", "UPLOADS_DIR", "LOG_LEVEL", "PROGRESS_INTERVAL",
	"TRANSLATE_TIMEOUT", "SESSION_TTL", "CLEANUP_INTERVAL", "DEFAULT_TARGET_LANG", "GOOGLE_API_KEY",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr)
	}
	if cfg.BackendURL != "http://localhost:5000" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.ProgressInterval != 2*time.Second {
		t.Errorf("ProgressInterval = %v", cfg.ProgressInterval)
	}
	if cfg.TranslateTimeout != 0 {
		t.Errorf("TranslateTimeout = %v, want no timeout", cfg.TranslateTimeout)
	}
	if cfg.DefaultTargetLang != "ar" {
		t.Errorf("DefaultTargetLang = %q", cfg.DefaultTargetLang)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("BACKEND_URL", "https://translate.example.com")
	t.Setenv("PROGRESS_INTERVAL", "500ms")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEFAULT_TARGET_LANG", "en")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BackendURL != "https://translate.example.com" {
		t.Errorf("BackendURL = %q", cfg.BackendURL)
	}
	if cfg.ProgressInterval != 500*time.Millisecond {
		t.Errorf("ProgressInterval = %v", cfg.ProgressInterval)
	}
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Errorf("SlogLevel() = %v", cfg.SlogLevel())
	}
	if cfg.DefaultTargetLang != "en" {
		t.Errorf("DefaultTargetLang = %q", cfg.DefaultTargetLang)
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Addr:              ":8080",
			BackendURL:        "http://localhost:5000",
			UploadsDir:        "uploads",
			LogLevel:          "info",
			ProgressInterval:  2 * time.Second,
			SessionTTL:        time.Hour,
			CleanupInterval:   time.Minute,
			DefaultTargetLang: "ar",
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "relative backend", mutate: func(c *Config) { c.BackendURL = "localhost:5000" }, wantErr: "BACKEND_URL"},
		{name: "ftp backend", mutate: func(c *Config) { c.BackendURL = "ftp://host" }, wantErr: "BACKEND_URL"},
		{name: "bad level", mutate: func(c *Config) { c.LogLevel = "loud" }, wantErr: "LOG_LEVEL"},
		{name: "zero interval", mutate: func(c *Config) { c.ProgressInterval = 0 }, wantErr: "PROGRESS_INTERVAL"},
		{name: "negative timeout", mutate: func(c *Config) { c.TranslateTimeout = -time.Second }, wantErr: "TRANSLATE_TIMEOUT"},
		{name: "unknown language", mutate: func(c *Config) { c.DefaultTargetLang = "fr" }, wantErr: "DEFAULT_TARGET_LANG"},
		{name: "empty uploads", mutate: func(c *Config) { c.UploadsDir = " " }, wantErr: "UPLOADS_DIR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate returned error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BACKEND_URL=http://backend:5000\nAPP_ADDR=:9090\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("APP_ADDR", ":7070")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile returned error: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("BACKEND_URL") })

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.BackendURL != "http://backend:5000" {
		t.Errorf("BackendURL = %q, want value from .env", cfg.BackendURL)
	}
	if cfg.Addr != ":7070" {
		t.Errorf("Addr = %q, want environment to win over .env", cfg.Addr)
	}

	if err := LoadEnvFile(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing env file should be ignored, got %v", err)
	}
}
