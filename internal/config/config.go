package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName  string `mapstructure:"app_name"`
	Env      string `mapstructure:"app_env"`
	LogLevel string `mapstructure:"log_level"`

	AppID         int64  `mapstructure:"app_id"`
	MaxPages      int    `mapstructure:"max_pages"`
	Countries     string `mapstructure:"countries"`
	CountriesFile string `mapstructure:"countries_file"`

	FeedBaseURL           string        `mapstructure:"feed_base_url"`
	FeedFormat            string        `mapstructure:"feed_format"`
	FetchConcurrency      int           `mapstructure:"fetch_concurrency"`
	FetchTimeoutSeconds   int64         `mapstructure:"fetch_timeout_seconds"`
	ConnectTimeoutSeconds int64         `mapstructure:"connect_timeout_seconds"`
	FetchTimeout          time.Duration `mapstructure:"-"`
	ConnectTimeout        time.Duration `mapstructure:"-"`

	SlackEndpoint       string  `mapstructure:"slack_endpoint"`
	SlackChannel        string  `mapstructure:"slack_channel"`
	SlackUsername       string  `mapstructure:"slack_username"`
	SlackIconURL        string  `mapstructure:"slack_icon_url"`
	NotifyRatePerSecond float64 `mapstructure:"notify_rate_per_second"`
	PublishersFile      string  `mapstructure:"publishers_file"`

	StorageType       string        `mapstructure:"storage_type"`
	StorageDir        string        `mapstructure:"storage_dir"`
	StorageTTLSeconds int64         `mapstructure:"storage_ttl_seconds"`
	StorageTTL        time.Duration `mapstructure:"-"`
	RedisAddr         string        `mapstructure:"redis_addr"`
	RedisPassword     string        `mapstructure:"redis_password"`
	RedisDB           int           `mapstructure:"redis_db"`

	PushgatewayURL     string        `mapstructure:"pushgateway_url"`
	RunIntervalSeconds int64         `mapstructure:"run_interval_seconds"`
	RunInterval        time.Duration `mapstructure:"-"`
}

// Load reads configuration from environment variables and config files.
func Load() (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app_name", "samvad-review-relay")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("app_id", 0)
	v.SetDefault("max_pages", 3)
	v.SetDefault("countries", "")
	v.SetDefault("countries_file", "")

	v.SetDefault("feed_base_url", "https://itunes.apple.com")
	v.SetDefault("feed_format", "json")
	v.SetDefault("fetch_concurrency", 8)
	v.SetDefault("fetch_timeout_seconds", 20)
	v.SetDefault("connect_timeout_seconds", 10)

	v.SetDefault("slack_endpoint", "")
	v.SetDefault("slack_channel", "")
	v.SetDefault("slack_username", "Review Relay")
	v.SetDefault("slack_icon_url", "")
	v.SetDefault("notify_rate_per_second", 1.0)
	v.SetDefault("publishers_file", "")

	v.SetDefault("storage_type", "bbolt")
	v.SetDefault("storage_dir", "./storage")
	v.SetDefault("storage_ttl_seconds", 0) // keep forever
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)

	v.SetDefault("pushgateway_url", "")
	v.SetDefault("run_interval_seconds", 0) // one pass, cron decides cadence
}

func (cfg *Config) normalize() error {
	if cfg.AppID <= 0 {
		return fmt.Errorf("invalid app_id (must be a positive App Store id)")
	}
	if cfg.MaxPages < 1 {
		cfg.MaxPages = 1
	}

	cfg.FeedFormat = strings.ToLower(strings.TrimSpace(cfg.FeedFormat))
	switch cfg.FeedFormat {
	case "json", "atom":
	default:
		return fmt.Errorf("invalid feed_format %q (expected json or atom)", cfg.FeedFormat)
	}

	if cfg.FetchConcurrency <= 0 {
		return fmt.Errorf("invalid fetch_concurrency (must be positive)")
	}
	if cfg.FetchTimeoutSeconds <= 0 || cfg.ConnectTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid fetch/connect timeout (must be positive seconds)")
	}
	cfg.FetchTimeout = time.Duration(cfg.FetchTimeoutSeconds) * time.Second
	cfg.ConnectTimeout = time.Duration(cfg.ConnectTimeoutSeconds) * time.Second

	if cfg.NotifyRatePerSecond <= 0 {
		return fmt.Errorf("invalid notify_rate_per_second (must be positive)")
	}
	if cfg.StorageTTLSeconds < 0 {
		return fmt.Errorf("invalid storage_ttl_seconds (must be zero or positive seconds)")
	}
	cfg.StorageTTL = time.Duration(cfg.StorageTTLSeconds) * time.Second

	if cfg.RunIntervalSeconds < 0 {
		return fmt.Errorf("invalid run_interval_seconds (must be zero or positive seconds)")
	}
	cfg.RunInterval = time.Duration(cfg.RunIntervalSeconds) * time.Second

	return nil
}
