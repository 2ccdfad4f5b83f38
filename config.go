package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config хранит конфигурацию приложения
type Config struct {
	Telegram       TelegramConfig   `mapstructure:"telegram"`
	Downloader     DownloaderConfig `mapstructure:"downloader"`
	Search         SearchConfig     `mapstructure:"search"`
	Session        SessionConfig    `mapstructure:"session"`
	Storage        StorageConfig    `mapstructure:"storage"`
	Recognizer     RecognizerConfig `mapstructure:"recognizer"`
	HTTP           HTTPConfig       `mapstructure:"http"`
	Log            LogConfig        `mapstructure:"log"`
	AllowedDomains []string         `mapstructure:"allowed_domains"`
}

type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	APIEndpoint string `mapstructure:"api_endpoint"`
	Debug       bool   `mapstructure:"debug"`
}

type DownloaderConfig struct {
	Executable    string        `mapstructure:"executable"`
	OutputDir     string        `mapstructure:"output_dir"`
	SocketTimeout time.Duration `mapstructure:"socket_timeout"`
	FetchTimeout  time.Duration `mapstructure:"fetch_timeout"`
	SearchTimeout time.Duration `mapstructure:"search_timeout"`
	Workers       int           `mapstructure:"workers"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
	MaxDuration   time.Duration `mapstructure:"max_duration"`
}

type SearchConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Limit   int  `mapstructure:"limit"`
}

type SessionConfig struct {
	Backend string        `mapstructure:"backend"` // memory или redis
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type StorageConfig struct {
	Path            string        `mapstructure:"path"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Retention       time.Duration `mapstructure:"retention"`
}

type RecognizerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Host          string        `mapstructure:"host"`
	AccessKey     string        `mapstructure:"access_key"`
	AccessSecret  string        `mapstructure:"access_secret"`
	SampleSeconds int           `mapstructure:"sample_seconds"`
	Timeout       time.Duration `mapstructure:"timeout"`
	FFmpeg        string        `mapstructure:"ffmpeg"`
}

type HTTPConfig struct {
	Address string `mapstructure:"address"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("telegram.debug", false)

	v.SetDefault("downloader.executable", "")
	v.SetDefault("downloader.output_dir", "")
	v.SetDefault("downloader.socket_timeout", 30*time.Second)
	v.SetDefault("downloader.fetch_timeout", 10*time.Minute)
	v.SetDefault("downloader.search_timeout", 30*time.Second)
	v.SetDefault("downloader.workers", 5)
	v.SetDefault("downloader.max_upload_size", MaxUploadSize)
	v.SetDefault("downloader.max_duration", 3*time.Hour)

	v.SetDefault("search.enabled", true)
	v.SetDefault("search.limit", DefaultSearchLimit)

	v.SetDefault("session.backend", "memory")
	v.SetDefault("session.ttl", 30*time.Minute)
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)

	v.SetDefault("storage.path", "downloads.db")
	v.SetDefault("storage.cleanup_interval", time.Hour)
	v.SetDefault("storage.retention", 24*time.Hour)

	v.SetDefault("recognizer.enabled", false)
	v.SetDefault("recognizer.host", "identify-eu-west-1.acrcloud.com")
	v.SetDefault("recognizer.access_key", "")
	v.SetDefault("recognizer.access_secret", "")
	v.SetDefault("recognizer.sample_seconds", 15)
	v.SetDefault("recognizer.timeout", 20*time.Second)
	v.SetDefault("recognizer.ffmpeg", "ffmpeg")

	v.SetDefault("http.address", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("allowed_domains", DefaultAllowedDomains)
}

// LoadConfig читает необязательный файл конфигурации и переменные TGBOT_*,
// BOT_TOKEN принимается вместо TGBOT_TELEGRAM_TOKEN
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TGBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("telegram.token", "TGBOT_TELEGRAM_TOKEN", "BOT_TOKEN"); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required (TGBOT_TELEGRAM_TOKEN or BOT_TOKEN)")
	}
	if c.Downloader.Workers <= 0 {
		return fmt.Errorf("downloader.workers must be > 0, got %d", c.Downloader.Workers)
	}
	if c.Downloader.MaxUploadSize <= 0 {
		return errors.New("downloader.max_upload_size must be > 0")
	}
	if c.Search.Limit <= 0 || c.Search.Limit > DefaultSearchLimit {
		return fmt.Errorf("search.limit must be within 1..%d", DefaultSearchLimit)
	}
	if c.Storage.CleanupInterval <= 0 {
		return errors.New("storage.cleanup_interval must be > 0")
	}
	switch c.Session.Backend {
	case "memory":
	case "redis":
		if c.Session.Redis.Addr == "" {
			return errors.New("session.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown session.backend %q", c.Session.Backend)
	}
	if c.Recognizer.Enabled && (c.Recognizer.Host == "" || c.Recognizer.AccessKey == "" || c.Recognizer.AccessSecret == "") {
		return errors.New("recognizer requires host, access_key and access_secret")
	}
	return nil
}
