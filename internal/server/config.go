// Package server provides configuration for the gateway: defaults,
// validation, an optional YAML file, and environment overrides.
package server

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig defines the parameters for per-connection inbound message
// rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the gateway configuration, including transport timeouts and
// security controls.
type Config struct {
	Port             string
	AllowedOrigins   []string
	MaxMessageSize   int64
	HandshakeTimeout time.Duration
	IdleTimeout      time.Duration
	WriteTimeout     time.Duration
	RateLimit        RateLimitConfig
}

// fileConfig is the YAML schema. Durations are plain integers in seconds,
// matching the environment variables; zero values mean "keep the default".
type fileConfig struct {
	Port                    string   `yaml:"port"`
	AllowedOrigins          []string `yaml:"allowed_origins"`
	MaxMessageSize          int64    `yaml:"max_message_size"`
	HandshakeTimeoutSeconds int      `yaml:"handshake_timeout_seconds"`
	IdleTimeoutSeconds      int      `yaml:"idle_timeout_seconds"`
	WriteTimeoutSeconds     int      `yaml:"write_timeout_seconds"`
	RateLimit               struct {
		Burst                 int `yaml:"burst"`
		RefillIntervalSeconds int `yaml:"refill_interval_seconds"`
	} `yaml:"rate_limit"`
}

// DefaultConfig returns the built-in defaults. The handshake and idle
// timeouts mirror the long-lived connection settings clients are written
// against (30s handshake, 5min idle with keepalive pings).
func DefaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:   512,
		HandshakeTimeout: 30 * time.Second,
		IdleTimeout:      300 * time.Second,
		WriteTimeout:     10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (if path is non-empty), overlaid by environment variables,
// then sanitized.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		var file fileConfig
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
		applyFile(&cfg, file)
	}

	applyEnv(&cfg)
	return cfg.sanitize(), nil
}

func applyFile(cfg *Config, file fileConfig) {
	if file.Port != "" {
		cfg.Port = file.Port
	}
	if file.AllowedOrigins != nil {
		cfg.AllowedOrigins = file.AllowedOrigins
	}
	if file.MaxMessageSize > 0 {
		cfg.MaxMessageSize = file.MaxMessageSize
	}
	if file.HandshakeTimeoutSeconds > 0 {
		cfg.HandshakeTimeout = time.Duration(file.HandshakeTimeoutSeconds) * time.Second
	}
	if file.IdleTimeoutSeconds > 0 {
		cfg.IdleTimeout = time.Duration(file.IdleTimeoutSeconds) * time.Second
	}
	if file.WriteTimeoutSeconds > 0 {
		cfg.WriteTimeout = time.Duration(file.WriteTimeoutSeconds) * time.Second
	}
	if file.RateLimit.Burst > 0 {
		cfg.RateLimit.Burst = file.RateLimit.Burst
	}
	if file.RateLimit.RefillIntervalSeconds > 0 {
		cfg.RateLimit.RefillInterval = time.Duration(file.RateLimit.RefillIntervalSeconds) * time.Second
	}
}

func applyEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	if timeout := os.Getenv("HANDSHAKE_TIMEOUT"); timeout != "" {
		cfg.HandshakeTimeout = parseSeconds(timeout, cfg.HandshakeTimeout)
	}
	if timeout := os.Getenv("IDLE_TIMEOUT"); timeout != "" {
		cfg.IdleTimeout = parseSeconds(timeout, cfg.IdleTimeout)
	}
	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}
}

// sanitize replaces invalid values with defaults.
func (c Config) sanitize() Config {
	def := DefaultConfig()

	if c.Port == "" {
		c.Port = def.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	return c
}

// pingInterval derives the keepalive period from the idle timeout so that a
// ping is always in flight before the peer's deadline expires.
func (c Config) pingInterval() time.Duration {
	interval := c.IdleTimeout * 9 / 10
	if interval <= 0 {
		interval = DefaultConfig().IdleTimeout * 9 / 10
	}
	return interval
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
