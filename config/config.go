package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Assignment  AssignmentConfig  `yaml:"assignment"`
	Geolocation GeolocationConfig `yaml:"geolocation"`
	Geofence    GeofenceConfig    `yaml:"geofence"`
	Push        PushConfig        `yaml:"push"`
	WorkerPool  WorkerPoolConfig  `yaml:"worker_pool"`
}

// ServerConfig holds the HTTP server configuration.
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

// AssignmentConfig points at the assignment backend's snapshot endpoint.
type AssignmentConfig struct {
	URL                 string            `yaml:"url"`
	Headers             map[string]string `yaml:"headers"`
	PollIntervalSeconds int               `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration     `yaml:"-"`
}

// GeolocationConfig points at the device-agent position endpoint.
type GeolocationConfig struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeout_seconds"`
	Timeout        time.Duration     `yaml:"-"`
}

// GeofenceConfig tunes movement detection.
type GeofenceConfig struct {
	PollIntervalSeconds int           `yaml:"poll_interval_seconds"`
	PollInterval        time.Duration `yaml:"-"`
	ThresholdMeters     float64       `yaml:"threshold_meters"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
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

	if cfg.Assignment.PollIntervalSeconds <= 0 {
		cfg.Assignment.PollIntervalSeconds = 15
	}
	cfg.Assignment.PollInterval = time.Duration(cfg.Assignment.PollIntervalSeconds) * time.Second

	if cfg.Geolocation.TimeoutSeconds <= 0 {
		cfg.Geolocation.TimeoutSeconds = 10
	}
	cfg.Geolocation.Timeout = time.Duration(cfg.Geolocation.TimeoutSeconds) * time.Second

	if cfg.Geofence.PollIntervalSeconds <= 0 {
		cfg.Geofence.PollIntervalSeconds = 30
	}
	cfg.Geofence.PollInterval = time.Duration(cfg.Geofence.PollIntervalSeconds) * time.Second

	if cfg.Geofence.ThresholdMeters <= 0 {
		cfg.Geofence.ThresholdMeters = 500
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 30
	}

	return &cfg, nil
}
