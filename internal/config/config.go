// Package config provides configuration loading and validation for the
// safenet service. Values come from defaults, an optional config.yaml, and
// SAFENET_-prefixed environment variables, in that order of precedence.
package config

import (
	"time"
)

// Config defines the application configuration for all components of the
// safenet service: logging, storage, the HTTP/WebSocket surface, the
// upstream registry poller, enrichment, geocoding, and push delivery.
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Safe182   Safe182Config   `mapstructure:"safe182"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Kakao     KakaoConfig     `mapstructure:"kakao"`
	Firebase  FirebaseConfig  `mapstructure:"firebase"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// LogConfig controls log level and output format.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// DatabaseConfig holds SQLite connection settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig holds the HTTP/WebSocket listen settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"             validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=1s"`
}

// Safe182Config configures the upstream missing-person registry client and
// the polling cadence. The sleep values implement the rate-limited polling
// policy: FreshSleep while the cache is fresh, GateSleep while the minimum
// request interval has not elapsed, Backoff after a failed cycle, and
// IdleSleep after a fully successful one.
type Safe182Config struct {
	BaseURL      string        `mapstructure:"base_url"      validate:"required,url"`
	EsntlID      string        `mapstructure:"esntl_id"`
	AuthKey      string        `mapstructure:"auth_key"`
	Region       string        `mapstructure:"region"        validate:"required"`
	RowSize      int           `mapstructure:"row_size"      validate:"min=1,max=100"`
	LookbackDays int           `mapstructure:"lookback_days" validate:"min=1"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"min=1s"`

	MinInterval   time.Duration `mapstructure:"min_interval"   validate:"min=1s"`
	CacheDuration time.Duration `mapstructure:"cache_duration" validate:"min=1s"`
	FreshSleep    time.Duration `mapstructure:"fresh_sleep"    validate:"min=1s"`
	GateSleep     time.Duration `mapstructure:"gate_sleep"     validate:"min=1s"`
	Backoff       time.Duration `mapstructure:"backoff"        validate:"min=1s"`
	IdleSleep     time.Duration `mapstructure:"idle_sleep"     validate:"min=1s"`
}

// EnrichConfig configures the external NER enrichment gateway.
type EnrichConfig struct {
	BaseURL string        `mapstructure:"base_url" validate:"required,url"`
	Timeout time.Duration `mapstructure:"timeout"  validate:"min=1s"`
}

// GeminiConfig configures the Gemini client used for English paraphrases
// of Korean case descriptions. An empty APIKey disables the paraphraser.
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxRetries  int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelay  time.Duration `mapstructure:"retry_delay" validate:"min=1s"`
}

// KakaoConfig configures the Kakao Local geocoding client.
type KakaoConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"      validate:"required,url"`
	Timeout     time.Duration `mapstructure:"timeout"       validate:"min=1s"`
	MinQueryLen int           `mapstructure:"min_query_len" validate:"min=1"`
}

// FirebaseConfig configures FCM push delivery. An empty CredentialsFile
// leaves the dispatcher in degraded mode (no transport calls).
type FirebaseConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

// CleanupConfig holds retention windows for the periodic cleanup task.
type CleanupConfig struct {
	APIRequestAge     time.Duration `mapstructure:"api_request_age"     validate:"min=1h"`
	DriverLocationAge time.Duration `mapstructure:"driver_location_age" validate:"min=1h"`
	NotificationAge   time.Duration `mapstructure:"notification_age"    validate:"min=1h"`
}

// TaskConfig configures a single scheduled task.
type TaskConfig struct {
	Schedule string `mapstructure:"schedule"`
	Enabled  bool   `mapstructure:"enabled"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}
