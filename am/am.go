// Package am loads the vacancy service configuration ("I am").
package am

// Config represents the vacancy service configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Payment   PaymentConfig   `mapstructure:"payment"`
	Listing   ListingConfig   `mapstructure:"listing"`
	Pulse     PulseConfig     `mapstructure:"pulse"`
	Admission AdmissionConfig `mapstructure:"admission"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port                   *int     `mapstructure:"port"`       // nil = DefaultServerPort, 0 is invalid
	PublicURL              string   `mapstructure:"public_url"` // Base for checkout success/cancel redirects
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
}

// DefaultServerPort is used when server.port is omitted
const DefaultServerPort = 8787

// PaymentConfig configures the payment gateway
type PaymentConfig struct {
	Provider      string `mapstructure:"provider"`       // "stripe" or "fake" (local development)
	SecretKey     string `mapstructure:"secret_key"`     // Gateway API key
	WebhookSecret string `mapstructure:"webhook_secret"` // Shared secret for event signatures
	Currency      string `mapstructure:"currency"`       // ISO currency code, lower case
}

// ListingConfig configures job post pricing and lifecycle housekeeping
type ListingConfig struct {
	Tiers                []TierConfig `mapstructure:"tiers"`
	AbandonAfterHours    int          `mapstructure:"abandon_after_hours"`    // PENDING_PAYMENT drafts older than this are cancelled (0 = never)
	SweepIntervalMinutes int          `mapstructure:"sweep_interval_minutes"` // How often the abandoned-draft sweep runs
}

// TierConfig is one (duration, price) row of the pricing table
type TierConfig struct {
	Days        int    `mapstructure:"days"`
	PriceCents  int64  `mapstructure:"price_cents"`
	Description string `mapstructure:"description"`
}

// PulseConfig configures the scheduled task ticker
type PulseConfig struct {
	TickerIntervalSeconds int `mapstructure:"ticker_interval_seconds"` // How often due tasks are polled (default: 1)
	LeaseSeconds          int `mapstructure:"lease_seconds"`           // How long a claimed task is protected before reclaim
	MaxBackoffSeconds     int `mapstructure:"max_backoff_seconds"`     // Cap for retry backoff after handler failure
	BatchSize             int `mapstructure:"batch_size"`              // Max tasks claimed per tick
}

// AdmissionConfig configures the gate in front of mutating operations
type AdmissionConfig struct {
	Enabled            bool        `mapstructure:"enabled"`
	Backend            string      `mapstructure:"backend"`              // "memory" or "redis"
	UnitsPerMinute     int         `mapstructure:"units_per_minute"`     // Per-client cost budget in a sliding minute
	GlobalUnitsPerSec  float64     `mapstructure:"global_units_per_sec"` // Process-wide refill rate (0 = off)
	GlobalBurst        int         `mapstructure:"global_burst"`
	BlockBots          bool        `mapstructure:"block_bots"`
	AllowedBotPrefixes []string    `mapstructure:"allowed_bot_prefixes"`
	Redis              RedisConfig `mapstructure:"redis"`
}

// RedisConfig locates the shared counter store for the redis admission backend
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// File and directory permission constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)
