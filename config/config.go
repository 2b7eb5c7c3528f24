package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Push     PushConfig     `yaml:"push"`
	Realtime RealtimeConfig `yaml:"realtime"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
}

// RealtimeConfig tunes the reconnect behavior of follower clients and the
// polling fallback.
type RealtimeConfig struct {
	BaseDelayMs         int           `yaml:"base_delay_ms"`
	MaxDelayMs          int           `yaml:"max_delay_ms"`
	MaxAttempts         int           `yaml:"max_attempts"`
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	BaseDelay           time.Duration `yaml:"-"` // Ignored by YAML parser
	MaxDelay            time.Duration `yaml:"-"`
	PollInterval        time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns the configuration used when no config file is present.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}

	if cfg.Realtime.BaseDelayMs <= 0 {
		cfg.Realtime.BaseDelayMs = 1000
	}
	if cfg.Realtime.MaxDelayMs <= 0 {
		cfg.Realtime.MaxDelayMs = 30000
	}
	if cfg.Realtime.MaxAttempts <= 0 {
		cfg.Realtime.MaxAttempts = 5
	}
	if cfg.Realtime.PollIntervalSeconds <= 0 {
		cfg.Realtime.PollIntervalSeconds = 10
	}
	cfg.Realtime.BaseDelay = time.Duration(cfg.Realtime.BaseDelayMs) * time.Millisecond
	cfg.Realtime.MaxDelay = time.Duration(cfg.Realtime.MaxDelayMs) * time.Millisecond
	cfg.Realtime.PollInterval = time.Duration(cfg.Realtime.PollIntervalSeconds) * time.Second
}
