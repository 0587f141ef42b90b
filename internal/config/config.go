// Package config provides centralized configuration management for the royalty
// services. It loads configuration from environment variables with sensible
// defaults and validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Jobs     JobsConfig
	PubSub   PubSubConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Reaper   ReaperConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 60s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"60s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL" required:"true"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds royalty CSV upload settings.
type UploadConfig struct {
	// MaxFileSize is the maximum allowed file size in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// UploadLimit is requests per minute for import endpoints (default: 10)
	UploadLimit int `env:"RATE_LIMIT_UPLOAD" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// RequireAPIKey rejects /api requests without a valid X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// JobsConfig holds background job settings.
type JobsConfig struct {
	// Backend selects the dispatcher: local or pubsub (default: local)
	Backend string `env:"JOBS_BACKEND" default:"local"`

	// Workers is the number of jobs processed in parallel (default: 4)
	Workers int `env:"JOBS_WORKERS" default:"4"`

	// QueueSize bounds the local queue (default: 100)
	QueueSize int `env:"JOBS_QUEUE_SIZE" default:"100"`

	// LockTTL is how long a unit lock is held before it expires (default: 31m)
	LockTTL time.Duration `env:"JOBS_LOCK_TTL" default:"31m"`

	// Timeout is the maximum duration of a single job (default: 30m)
	Timeout time.Duration `env:"JOBS_TIMEOUT" default:"30m"`
}

// PubSubConfig holds Google Cloud Pub/Sub settings for the pubsub job backend.
type PubSubConfig struct {
	ProjectID       string `env:"PUBSUB_PROJECT_ID"`
	Topic           string `env:"PUBSUB_TOPIC" default:"royalty-jobs"`
	Subscription    string `env:"PUBSUB_SUBSCRIPTION" default:"royalty-jobs-worker"`
	CredentialsJSON string `env:"PUBSUB_CREDENTIALS_JSON"`
}

// RedisConfig holds Redis settings used for job locks and UI notifications.
// Redis is optional; an empty Addr disables both.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" default:"0"`

	// Channel is the pub/sub channel for state change events
	Channel string `env:"REDIS_CHANNEL" default:"royalties:events"`
}

// StorageConfig holds settings for the uploaded and exported file store.
type StorageConfig struct {
	// Provider is local or gcs (default: local)
	Provider        string `env:"STORAGE_PROVIDER" default:"local"`
	LocalDir        string `env:"STORAGE_LOCAL_DIR" default:"./data"`
	Bucket          string `env:"STORAGE_BUCKET"`
	CredentialsJSON string `env:"STORAGE_CREDENTIALS_JSON"`
}

// ReaperConfig holds settings for the stuck unit reaper.
type ReaperConfig struct {
	Enabled bool `env:"REAPER_ENABLED" default:"true"`

	// Interval is how often the reaper runs (default: 1m)
	Interval time.Duration `env:"REAPER_INTERVAL" default:"1m"`

	// StuckAfter is how long a unit may stay processing before it is failed (default: 45m)
	StuckAfter time.Duration `env:"REAPER_STUCK_AFTER" default:"45m"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// UsePubSub reports whether jobs are dispatched through Pub/Sub.
func (c *JobsConfig) UsePubSub() bool {
	return strings.EqualFold(c.Backend, "pubsub")
}
