// Package config loads the server's YAML configuration, following the
// teacher's internal/config/config.go convention: a typed struct with
// yaml tags, a Default* constructor, and a Load* that falls back to
// defaults when the file is absent.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/udisondev/la2go/internal/constants"
)

// Server holds all configuration for the authentication server.
type Server struct {
	// Network
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`

	// Database
	Database DatabaseConfig `yaml:"database"`

	// Logging
	LogLevel string `yaml:"log_level"` // debug, info, warn, error (default: info)

	// Per-handler timeout and shutdown drain deadline. Serve applies
	// ShutdownDrainDeadline; HandlerTimeout is not read by the server,
	// whose handlers use constants.DefaultHandlerTimeout unless their
	// descriptor sets its own Timeout.
	HandlerTimeout        string `yaml:"handler_timeout"`         // duration, e.g. "4s"
	ShutdownDrainDeadline string `yaml:"shutdown_drain_deadline"` // duration, e.g. "5s"

	// Dispatch queue depth per connection; overflow drops the oldest frame.
	DispatchQueueDepth int `yaml:"dispatch_queue_depth"`

	// Rate limiting
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig tunes two of the three tiers from spec.md §5: a
// per-connection token bucket and a process-wide concurrency cap.
// Per-handler leaky windows are declared statically per descriptor,
// not here.
type RateLimitConfig struct {
	ConnectionRatePerSecond float64 `yaml:"connection_rate_per_second"`
	ConnectionBurst         int     `yaml:"connection_burst"`
	MaxConcurrentHandlers   int     `yaml:"max_concurrent_handlers"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`

	// Connection pool parameters (optional, defaults from pgxpool apply if not set)
	MaxConns          int32  `yaml:"max_conns"`           // default: max(4, NumCPU)
	MinConns          int32  `yaml:"min_conns"`           // default: 0
	MaxConnLifetime   string `yaml:"max_conn_lifetime"`   // duration, e.g. "1h"
	MaxConnIdleTime   string `yaml:"max_conn_idle_time"`  // duration, e.g. "30m"
	HealthCheckPeriod string `yaml:"health_check_period"` // duration, e.g. "1m"
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	base := fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)

	// Append pool parameters if set (non-zero/non-empty)
	var params []string
	if d.MaxConns > 0 {
		params = append(params, fmt.Sprintf("pool_max_conns=%d", d.MaxConns))
	}
	if d.MinConns > 0 {
		params = append(params, fmt.Sprintf("pool_min_conns=%d", d.MinConns))
	}
	if d.MaxConnLifetime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_lifetime=%s", d.MaxConnLifetime))
	}
	if d.MaxConnIdleTime != "" {
		params = append(params, fmt.Sprintf("pool_max_conn_idle_time=%s", d.MaxConnIdleTime))
	}
	if d.HealthCheckPeriod != "" {
		params = append(params, fmt.Sprintf("pool_health_check_period=%s", d.HealthCheckPeriod))
	}

	if len(params) > 0 {
		return base + "&" + strings.Join(params, "&")
	}
	return base
}

// HandlerTimeoutDuration parses HandlerTimeout, falling back to
// constants.DefaultHandlerTimeout when unset or unparsable.
func (s Server) HandlerTimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(s.HandlerTimeout); err == nil {
		return d
	}
	return constants.DefaultHandlerTimeout
}

// ShutdownDrainDeadlineDuration parses ShutdownDrainDeadline, falling
// back to constants.ShutdownDrainDeadline when unset or unparsable.
func (s Server) ShutdownDrainDeadlineDuration() time.Duration {
	if d, err := time.ParseDuration(s.ShutdownDrainDeadline); err == nil {
		return d
	}
	return constants.ShutdownDrainDeadline
}

// DefaultServer returns Server config with sensible defaults.
func DefaultServer() Server {
	return Server{
		BindAddress:           "0.0.0.0",
		Port:                  2106,
		LogLevel:              "info",
		HandlerTimeout:        constants.DefaultHandlerTimeout.String(),
		ShutdownDrainDeadline: constants.ShutdownDrainDeadline.String(),
		DispatchQueueDepth:    constants.DispatchQueueDepth,
		RateLimit: RateLimitConfig{
			ConnectionRatePerSecond: 20,
			ConnectionBurst:         40,
			MaxConcurrentHandlers:   256,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "la2go",
			Password: "la2go",
			DBName:   "la2go",
			SSLMode:  "disable",
		},
	}
}

// LoadServer loads server config from a YAML file. If the file doesn't
// exist, returns defaults.
func LoadServer(path string) (Server, error) {
	cfg := DefaultServer()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
