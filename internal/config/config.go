// Package config loads application settings from environment variables,
// applies defaults and validates them at startup.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Upload   UploadConfig
	Storage  StorageConfig
	Geocode  GeocodeConfig
	Quality  QualityConfig
	Upsert   UpsertConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`
	Port int    `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including draining running
	// pipelines.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the chi Timeout middleware deadline.
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"90s"`

	// TrustedProxies lists proxy CIDRs whose X-Real-IP and X-Forwarded-For
	// headers are honored
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// AllowedOrigins enables CORS for a separately hosted dashboard. Empty
	// disables the CORS middleware.
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig selects and tunes the medecin row store.
type DatabaseConfig struct {
	// Driver is postgres or sqlite (default: sqlite, for local runs)
	Driver string `env:"DB_DRIVER" default:"sqlite"`

	// URL is the PostgreSQL connection string, required with the postgres driver
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file used with the sqlite driver
	SQLitePath string `env:"SQLITE_PATH" default:"clientimport.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"20"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// UploadConfig holds file processing limits.
type UploadConfig struct {
	// MaxFileSize is the largest accepted file in bytes (default: 100MB)
	MaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" default:"104857600"`

	// MaxConcurrent is the number of pipelines allowed to run at once
	MaxConcurrent int `env:"UPLOAD_MAX_CONCURRENT" default:"5"`

	// MaxWaitTime is how long a request waits for a pipeline slot
	MaxWaitTime time.Duration `env:"UPLOAD_MAX_WAIT_TIME" default:"30s"`

	// Timeout bounds one full pipeline run
	Timeout time.Duration `env:"UPLOAD_TIMEOUT" default:"10m"`
}

// StorageConfig locates saved uploads.
type StorageConfig struct {
	BlobDir string `env:"STORAGE_BLOB_DIR" default:"uploads"`
}

// GeocodeConfig configures the Google geocoder used during extraction.
type GeocodeConfig struct {
	Enabled       bool          `env:"GEOCODE_ENABLED" default:"false"`
	APIKey        string        `env:"GOOGLE_MAPS_API_KEY" envAlt:"GEOCODE_API_KEY"`
	RatePerSecond float64       `env:"GEOCODE_RATE_PER_SECOND" default:"10"`
	Timeout       time.Duration `env:"GEOCODE_TIMEOUT" default:"5s"`
	Region        string        `env:"GEOCODE_REGION" default:"fr"`
	BaseURL       string        `env:"GEOCODE_BASE_URL"`
}

// QualityConfig holds the detector and report thresholds.
type QualityConfig struct {
	MinColumns        int     `env:"QUALITY_MIN_COLUMNS" default:"2"`
	MinValidRatio     float64 `env:"QUALITY_MIN_VALID_RATIO" default:"0.8"`
	MaxIssueRatio     float64 `env:"QUALITY_MAX_ISSUE_RATIO" default:"0.1"`
	MinTypeConfidence float64 `env:"QUALITY_MIN_TYPE_CONFIDENCE" default:"0.5"`

	// Report recommendation thresholds, in percent
	ReportCompleteness float64 `env:"REPORT_MIN_COMPLETENESS" default:"90"`
	ReportAccuracy     float64 `env:"REPORT_MIN_ACCURACY" default:"95"`
	ReportMaxColumns   int     `env:"REPORT_MAX_COLUMNS" default:"20"`
}

// UpsertConfig holds the default import settings. Requests may override
// the strategy.
type UpsertConfig struct {
	Strategy   string   `env:"UPSERT_STRATEGY" default:"update"`
	UniqueKeys []string `env:"UPSERT_UNIQUE_KEYS" default:"Nom,Prénom,VILLE"`

	// UpdateColumns empty means every non-key field
	UpdateColumns []string `env:"UPSERT_UPDATE_COLUMNS"`

	// PreferComplete keeps the stored record when the incoming one has
	// fewer filled fields
	PreferComplete bool `env:"UPSERT_PREFER_COMPLETE" default:"false"`

	// KeepExisting skips blank incoming values on update instead of
	// clearing the stored field
	KeepExisting bool `env:"UPSERT_KEEP_EXISTING" default:"false"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the listen address in host:port form.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
