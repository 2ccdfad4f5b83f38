package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BOT_TOKEN", "123:abc")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" {
		t.Errorf("expected BOT_TOKEN alias to be used, got %q", cfg.Telegram.Token)
	}
	if cfg.Downloader.Workers != 5 {
		t.Errorf("expected 5 workers, got %d", cfg.Downloader.Workers)
	}
	if cfg.Downloader.MaxUploadSize != MaxUploadSize {
		t.Errorf("expected default upload limit, got %d", cfg.Downloader.MaxUploadSize)
	}
	if !cfg.Search.Enabled || cfg.Search.Limit != DefaultSearchLimit {
		t.Errorf("unexpected search defaults %+v", cfg.Search)
	}
	if cfg.Session.Backend != "memory" || cfg.Session.TTL != 30*time.Minute {
		t.Errorf("unexpected session defaults %+v", cfg.Session)
	}
	if len(cfg.AllowedDomains) != len(DefaultAllowedDomains) {
		t.Errorf("expected default domain list, got %v", cfg.AllowedDomains)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TGBOT_TELEGRAM_TOKEN", "primary")
	t.Setenv("BOT_TOKEN", "alias")
	t.Setenv("TGBOT_DOWNLOADER_WORKERS", "2")
	t.Setenv("TGBOT_SESSION_TTL", "5m")
	t.Setenv("TGBOT_SEARCH_ENABLED", "false")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "primary" {
		t.Errorf("expected TGBOT_TELEGRAM_TOKEN to win, got %q", cfg.Telegram.Token)
	}
	if cfg.Downloader.Workers != 2 {
		t.Errorf("expected 2 workers, got %d", cfg.Downloader.Workers)
	}
	if cfg.Session.TTL != 5*time.Minute {
		t.Errorf("expected 5m ttl, got %v", cfg.Session.TTL)
	}
	if cfg.Search.Enabled {
		t.Error("expected search to be disabled")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bot.yaml")
	content := `
telegram:
  token: from-file
search:
  limit: 5
allowed_domains:
  - example.com
recognizer:
  enabled: true
  access_key: k
  access_secret: s
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Telegram.Token != "from-file" || cfg.Search.Limit != 5 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if len(cfg.AllowedDomains) != 1 || cfg.AllowedDomains[0] != "example.com" {
		t.Errorf("unexpected domains %v", cfg.AllowedDomains)
	}
	if !cfg.Recognizer.Enabled || cfg.Recognizer.Host == "" {
		t.Errorf("expected recognizer enabled with default host, got %+v", cfg.Recognizer)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Telegram:   TelegramConfig{Token: "t"},
			Downloader: DownloaderConfig{Workers: 1, MaxUploadSize: 1},
			Search:     SearchConfig{Limit: 10},
			Session:    SessionConfig{Backend: "memory"},
			Storage:    StorageConfig{CleanupInterval: time.Hour},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing token", mutate: func(c *Config) { c.Telegram.Token = "" }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Downloader.Workers = 0 }, wantErr: true},
		{name: "zero upload limit", mutate: func(c *Config) { c.Downloader.MaxUploadSize = 0 }, wantErr: true},
		{name: "limit above ten", mutate: func(c *Config) { c.Search.Limit = 11 }, wantErr: true},
		{name: "zero cleanup interval", mutate: func(c *Config) { c.Storage.CleanupInterval = 0 }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Session.Backend = "etcd" }, wantErr: true},
		{name: "redis without addr", mutate: func(c *Config) { c.Session.Backend = "redis" }, wantErr: true},
		{name: "redis with addr", mutate: func(c *Config) {
			c.Session.Backend = "redis"
			c.Session.Redis.Addr = "localhost:6379"
		}},
		{name: "recognizer without credentials", mutate: func(c *Config) {
			c.Recognizer.Enabled = true
			c.Recognizer.Host = "h"
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
