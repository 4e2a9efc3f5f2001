// Package config provides configuration types for the SoleStyle server.
//
// Configuration comes from an optional solestyle.yaml plus SOLESTYLE_*
// environment overrides. Every field has a default, so the server starts
// with no file at all using file storage under the user's home directory.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config is the top-level configuration.
type Config struct {
	// Server configures the HTTP listener and logging.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Storage selects and configures the key-value backend.
	Storage StorageConfig `yaml:"storage" mapstructure:"storage"`

	// Backup configures the simulated cloud backup.
	Backup BackupConfig `yaml:"backup" mapstructure:"backup"`

	// Auth configures Argon2id password hashing cost.
	Auth AuthConfig `yaml:"auth" mapstructure:"auth"`

	// Telemetry enables OpenTelemetry export to stdout.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// DevMode enables debug logging and zero backup latency.
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the listen address. Default "127.0.0.1:8080".
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"required,hostname_port"`
	// LogLevel is one of debug, info, warn, error. Default "info".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"oneof=debug info warn error"`
	// ShutdownTimeout bounds graceful shutdown. Default "10s".
	ShutdownTimeout string `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" validate:"duration"`
	// AllowedOrigins lists websocket origins accepted besides same-host.
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	// Driver is memory, file, sqlite or redis. Default "file".
	Driver string `yaml:"driver" mapstructure:"driver" validate:"storage_driver"`
	// Dir holds one file per key for the file driver.
	Dir string `yaml:"dir" mapstructure:"dir"`
	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	// RedisAddr is host:port for the redis driver.
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr" validate:"omitempty,hostname_port"`
	// RedisPrefix is prepended to every redis key. Default "solestyle:".
	RedisPrefix string `yaml:"redis_prefix" mapstructure:"redis_prefix"`
	// ConflictPolicy is reject or overwrite. Default "reject".
	ConflictPolicy string `yaml:"conflict_policy" mapstructure:"conflict_policy" validate:"oneof=reject overwrite"`
}

// BackupConfig configures the simulated cloud backup.
type BackupConfig struct {
	// Key is the storage key holding the blob. Default "solestyle_cloud_backup".
	Key string `yaml:"key" mapstructure:"key" validate:"required"`
	// UploadDelay, DownloadDelay and DeleteDelay simulate network latency.
	UploadDelay   string `yaml:"upload_delay" mapstructure:"upload_delay" validate:"duration"`
	DownloadDelay string `yaml:"download_delay" mapstructure:"download_delay" validate:"duration"`
	DeleteDelay   string `yaml:"delete_delay" mapstructure:"delete_delay" validate:"duration"`
	// Storage puts the blob in its own backend, standing in for a remote
	// bucket. Nil keeps it in the primary storage.
	Storage *StorageConfig `yaml:"storage,omitempty" mapstructure:"storage"`
}

// AuthConfig configures password hashing.
type AuthConfig struct {
	PasswordMemoryKiB   uint32 `yaml:"password_memory_kib" mapstructure:"password_memory_kib" validate:"gte=8"`
	PasswordIterations  uint32 `yaml:"password_iterations" mapstructure:"password_iterations" validate:"gte=1"`
	PasswordParallelism uint8  `yaml:"password_parallelism" mapstructure:"password_parallelism" validate:"gte=1"`
	// AdminPasswordHash is an argon2id hash (see "solestyle hash-password").
	// When set, the admin API also accepts remote requests that present
	// the password via HTTP basic auth. Empty keeps it localhost-only.
	AdminPasswordHash string `yaml:"admin_password_hash" mapstructure:"admin_password_hash" validate:"omitempty,startswith=$argon2id$"`
}

// TelemetryConfig configures OpenTelemetry.
type TelemetryConfig struct {
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
	Metrics bool `yaml:"metrics" mapstructure:"metrics"`
	// MetricInterval is the export period. Default "60s".
	MetricInterval string `yaml:"metric_interval" mapstructure:"metric_interval" validate:"duration"`
}

// DefaultDataDir returns ~/.solestyle/data, or ./data when the home
// directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".solestyle", "data")
}

func (s *StorageConfig) setDefaults(dir, redisPrefix string) {
	if s.Driver == "" {
		s.Driver = "file"
	}
	if s.Dir == "" {
		s.Dir = dir
	}
	if s.SQLitePath == "" {
		s.SQLitePath = filepath.Join(s.Dir, "solestyle.db")
	}
	if s.RedisPrefix == "" {
		s.RedisPrefix = redisPrefix
	}
	if s.ConflictPolicy == "" {
		s.ConflictPolicy = "reject"
	}
}

// SetDefaults applies default values to unset fields.
func (c *Config) SetDefaults() {
	// Bind to localhost only; network access must be configured explicitly.
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Server.ShutdownTimeout == "" {
		c.Server.ShutdownTimeout = "10s"
	}

	c.Storage.setDefaults(DefaultDataDir(), "solestyle:")
	if c.Backup.Storage != nil {
		c.Backup.Storage.setDefaults(filepath.Join(c.Storage.Dir, "cloud"), "solestyle_cloud:")
	}

	if c.Backup.Key == "" {
		c.Backup.Key = "solestyle_cloud_backup"
	}
	if c.Backup.UploadDelay == "" {
		c.Backup.UploadDelay = "1500ms"
	}
	if c.Backup.DownloadDelay == "" {
		c.Backup.DownloadDelay = "1s"
	}
	if c.Backup.DeleteDelay == "" {
		c.Backup.DeleteDelay = "500ms"
	}

	// OWASP minimum for Argon2id with a single pass.
	if c.Auth.PasswordMemoryKiB == 0 {
		c.Auth.PasswordMemoryKiB = 47 * 1024
	}
	if c.Auth.PasswordIterations == 0 {
		c.Auth.PasswordIterations = 1
	}
	if c.Auth.PasswordParallelism == 0 {
		c.Auth.PasswordParallelism = 1
	}

	if c.Telemetry.MetricInterval == "" {
		c.Telemetry.MetricInterval = "60s"
	}
}

// SetDevDefaults applies development overrides. Call after CLI flags have
// set DevMode and before Validate.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	c.Server.LogLevel = "debug"
	c.Backup.UploadDelay = "0s"
	c.Backup.DownloadDelay = "0s"
	c.Backup.DeleteDelay = "0s"
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	return mustDuration(s.ShutdownTimeout, 10*time.Second)
}

// Delays returns the parsed simulated latencies.
func (b BackupConfig) Delays() (upload, download, remove time.Duration) {
	return mustDuration(b.UploadDelay, 0), mustDuration(b.DownloadDelay, 0), mustDuration(b.DeleteDelay, 0)
}

// MetricIntervalDuration returns the parsed export period.
func (t TelemetryConfig) MetricIntervalDuration() time.Duration {
	return mustDuration(t.MetricInterval, time.Minute)
}

// mustDuration parses s, returning fallback when s is empty or invalid.
// Validate rejects invalid values before these accessors are used.
func mustDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
