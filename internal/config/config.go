package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"clinicbook/internal/tz"
)

// DefaultPath is used when SCHEDULER_CONFIG_PATH is not set.
const DefaultPath = "configs/config.yaml"

type Config struct {
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup BackupConfig `yaml:"backup"`

	Audit struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"audit"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	API struct {
		Enabled        bool    `yaml:"enabled"`
		Port           int     `yaml:"port"`
		APIKey         string  `yaml:"api_key"`
		AdminKey       string  `yaml:"admin_key"`
		RateLimitRPS   float64 `yaml:"rate_limit_rps"`
		RateLimitBurst int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Scheduling struct {
		DefaultTimezone      string `yaml:"default_timezone"`
		LockAdjacentHalfHour bool   `yaml:"lock_adjacent_half_hour"`
		LockWaitMillis       int    `yaml:"lock_wait_ms"`
		LockTTLSeconds       int    `yaml:"lock_ttl_seconds"`
		SchedulePath         string `yaml:"schedule_path"`
		WatchIntervalSeconds int    `yaml:"watch_interval_seconds"`
	} `yaml:"scheduling"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// BackupConfig controls periodic database snapshots.
type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	IntervalHours int    `yaml:"interval_hours"`
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// Interval returns the time between backups.
func (b BackupConfig) Interval() time.Duration {
	if b.IntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(b.IntervalHours) * time.Hour
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()

	if _, err = tz.Location(cfg.Scheduling.DefaultTimezone); err != nil {
		return nil, err
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "data/clinicbook.db"
	}
	if c.Backup.Path == "" {
		c.Backup.Path = "data/backups"
	}
	if c.Audit.Path == "" {
		c.Audit.Path = "data/audit"
	}
	if c.API.Port == 0 {
		c.API.Port = 8080
	}
	if c.API.RateLimitRPS <= 0 {
		c.API.RateLimitRPS = 20
	}
	if c.API.RateLimitBurst <= 0 {
		c.API.RateLimitBurst = 40
	}
	if c.Monitoring.HealthCheckPort == 0 {
		c.Monitoring.HealthCheckPort = 8081
	}
	if c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Scheduling.DefaultTimezone == "" {
		c.Scheduling.DefaultTimezone = tz.Athens
	}
	if c.Scheduling.SchedulePath == "" {
		c.Scheduling.SchedulePath = "configs/schedule.yaml"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// LockWait bounds how long a booking waits for the slot lock.
func (c *Config) LockWait() time.Duration {
	if c.Scheduling.LockWaitMillis <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.Scheduling.LockWaitMillis) * time.Millisecond
}

// LockTTL is the expiry of a distributed slot lock.
func (c *Config) LockTTL() time.Duration {
	if c.Scheduling.LockTTLSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Scheduling.LockTTLSeconds) * time.Second
}

// WatchInterval is the polling period of the schedule watcher.
func (c *Config) WatchInterval() time.Duration {
	if c.Scheduling.WatchIntervalSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Scheduling.WatchIntervalSeconds) * time.Second
}
