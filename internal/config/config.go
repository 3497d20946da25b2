// Package config loads gateway configuration from compiled-in defaults,
// environment variables, and functional options, in that priority order,
// following the layering core.Config uses in the teacher framework.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the fully resolved process configuration. Struct tags document
// the environment variable and default for each field; they are not read
// reflectively — loadFromEnv reads os.Getenv explicitly, the way the
// teacher's core.Config.LoadFromEnv does.
type Config struct {
	AppName     string `env:"APP_NAME" default:"Argo Float Query Gateway"`
	Environment string `env:"ENVIRONMENT" default:"development"`
	Debug       bool   `env:"DEBUG" default:"false"`

	Host    string `env:"HOST" default:"0.0.0.0"`
	Port    int    `env:"PORT" default:"8000"`
	Workers int    `env:"WORKERS" default:"4"`

	CORSOrigins  []string `env:"CORS_ORIGINS" default:"*"`
	AllowedHosts []string `env:"ALLOWED_HOSTS" default:"*"`

	EnableRateLimiting bool `env:"ENABLE_RATE_LIMITING" default:"true"`
	RateLimitCalls     int  `env:"RATE_LIMIT_CALLS" default:"100"`
	RateLimitPeriodSec int  `env:"RATE_LIMIT_PERIOD" default:"60"`

	LogLevel  string `env:"LOG_LEVEL" default:"INFO"`
	LogFormat string `env:"LOG_FORMAT" default:"json"`

	EnableMetrics       bool `env:"ENABLE_METRICS" default:"true"`
	HealthCheckInterval int  `env:"HEALTH_CHECK_INTERVAL" default:"30"`

	MaxCycles         int     `env:"MAX_CYCLES" default:"3"`
	QualityThreshold  float64 `env:"QUALITY_THRESHOLD" default:"0.7"`
	AgentTimeoutSec   int     `env:"AGENT_TIMEOUT" default:"120"`

	SessionTimeoutSec        int `env:"SESSION_TIMEOUT" default:"3600"`
	MaxMessagesPerSession    int `env:"MAX_MESSAGES_PER_SESSION" default:"100"`
	SessionCleanupIntervalSec int `env:"SESSION_CLEANUP_INTERVAL" default:"300"`

	CacheTTLSec  int `env:"CACHE_TTL" default:"300"`
	CacheMaxSize int `env:"CACHE_MAX_SIZE" default:"1000"`

	SQLDatabaseURL      string `env:"SQL_DATABASE_URL" default:""`
	GraphDatabaseURL    string `env:"GRAPH_DATABASE_URL" default:""`
	GraphDatabaseUser   string `env:"GRAPH_DATABASE_USER" default:""`
	GraphDatabasePass   string `env:"GRAPH_DATABASE_PASSWORD" default:""`
	VectorAPIKey        string `env:"VECTOR_API_KEY" default:""`
	VectorEnvironment   string `env:"VECTOR_ENVIRONMENT" default:""`
	VectorIndex         string `env:"VECTOR_INDEX" default:"argo_profiles"`
	VectorHost          string `env:"VECTOR_HOST" default:"localhost"`
	VectorPort          int    `env:"VECTOR_PORT" default:"6334"`

	LLMAPIKey  string `env:"LLM_API_KEY" default:""`
	LLMModel   string `env:"LLM_MODEL" default:"gpt-4"`
	LLMBaseURL string `env:"LLM_BASE_URL" default:"https://api.openai.com/v1"`

	SessionStoreBackend string `env:"SESSION_STORE_BACKEND" default:"memory"`
	RedisURL            string `env:"REDIS_URL" default:""`

	CircuitBreakerThreshold        int `env:"CIRCUIT_BREAKER_THRESHOLD" default:"5"`
	CircuitBreakerRecoverySeconds  int `env:"CIRCUIT_BREAKER_RECOVERY_SECONDS" default:"30"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT" default:""`
}

// Option mutates a Config after defaults and environment have been applied,
// following the functional-options pattern used throughout the teacher
// framework (core.Option-style).
type Option func(*Config) error

// Load builds a Config from compiled-in defaults, then environment
// variables, then the supplied options, validating the result.
func Load(opts ...Option) (*Config, error) {
	cfg := defaults()
	cfg.loadFromEnv()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		AppName:                   "Argo Float Query Gateway",
		Environment:               "development",
		Host:                      "0.0.0.0",
		Port:                      8000,
		Workers:                   4,
		CORSOrigins:               []string{"*"},
		AllowedHosts:              []string{"*"},
		EnableRateLimiting:        true,
		RateLimitCalls:            100,
		RateLimitPeriodSec:        60,
		LogLevel:                  "INFO",
		LogFormat:                 "json",
		EnableMetrics:             true,
		HealthCheckInterval:       30,
		MaxCycles:                 3,
		QualityThreshold:          0.7,
		AgentTimeoutSec:           120,
		SessionTimeoutSec:         3600,
		MaxMessagesPerSession:     100,
		SessionCleanupIntervalSec: 300,
		CacheTTLSec:               300,
		CacheMaxSize:              1000,
		VectorIndex:               "argo_profiles",
		VectorHost:                "localhost",
		VectorPort:                6334,
		LLMModel:                  "gpt-4",
		LLMBaseURL:                "https://api.openai.com/v1",
		SessionStoreBackend:       "memory",
		CircuitBreakerThreshold:       5,
		CircuitBreakerRecoverySeconds: 30,
	}
}

func (c *Config) loadFromEnv() {
	str(&c.AppName, "APP_NAME")
	str(&c.Environment, "ENVIRONMENT")
	boolean(&c.Debug, "DEBUG")

	str(&c.Host, "HOST")
	integer(&c.Port, "PORT")
	integer(&c.Workers, "WORKERS")

	csv(&c.CORSOrigins, "CORS_ORIGINS")
	csv(&c.AllowedHosts, "ALLOWED_HOSTS")

	boolean(&c.EnableRateLimiting, "ENABLE_RATE_LIMITING")
	integer(&c.RateLimitCalls, "RATE_LIMIT_CALLS")
	integer(&c.RateLimitPeriodSec, "RATE_LIMIT_PERIOD")

	str(&c.LogLevel, "LOG_LEVEL")
	str(&c.LogFormat, "LOG_FORMAT")

	boolean(&c.EnableMetrics, "ENABLE_METRICS")
	integer(&c.HealthCheckInterval, "HEALTH_CHECK_INTERVAL")

	integer(&c.MaxCycles, "MAX_CYCLES")
	float(&c.QualityThreshold, "QUALITY_THRESHOLD")
	integer(&c.AgentTimeoutSec, "AGENT_TIMEOUT")

	integer(&c.SessionTimeoutSec, "SESSION_TIMEOUT")
	integer(&c.MaxMessagesPerSession, "MAX_MESSAGES_PER_SESSION")
	integer(&c.SessionCleanupIntervalSec, "SESSION_CLEANUP_INTERVAL")

	integer(&c.CacheTTLSec, "CACHE_TTL")
	integer(&c.CacheMaxSize, "CACHE_MAX_SIZE")

	str(&c.SQLDatabaseURL, "SQL_DATABASE_URL")
	str(&c.GraphDatabaseURL, "GRAPH_DATABASE_URL")
	str(&c.GraphDatabaseUser, "GRAPH_DATABASE_USER")
	str(&c.GraphDatabasePass, "GRAPH_DATABASE_PASSWORD")
	str(&c.VectorAPIKey, "VECTOR_API_KEY")
	str(&c.VectorEnvironment, "VECTOR_ENVIRONMENT")
	str(&c.VectorIndex, "VECTOR_INDEX")
	str(&c.VectorHost, "VECTOR_HOST")
	integer(&c.VectorPort, "VECTOR_PORT")

	str(&c.LLMAPIKey, "LLM_API_KEY")
	str(&c.LLMModel, "LLM_MODEL")
	str(&c.LLMBaseURL, "LLM_BASE_URL")

	str(&c.SessionStoreBackend, "SESSION_STORE_BACKEND")
	str(&c.RedisURL, "REDIS_URL")

	integer(&c.CircuitBreakerThreshold, "CIRCUIT_BREAKER_THRESHOLD")
	integer(&c.CircuitBreakerRecoverySeconds, "CIRCUIT_BREAKER_RECOVERY_SECONDS")

	str(&c.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func str(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func boolean(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func integer(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func float(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func csv(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

var validEnvironments = map[string]bool{"development": true, "staging": true, "production": true}
var validLogLevels = map[string]bool{"DEBUG": true, "INFO": true, "WARNING": true, "ERROR": true, "CRITICAL": true}
var validSessionBackends = map[string]bool{"memory": true, "redis": true}

// Validate checks the closed enumerations and numeric sanity required before
// the process is allowed to start.
func (c *Config) Validate() error {
	if !validEnvironments[c.Environment] {
		return fmt.Errorf("ENVIRONMENT must be development, staging, or production, got %q", c.Environment)
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("LOG_LEVEL must be one of DEBUG,INFO,WARNING,ERROR,CRITICAL, got %q", c.LogLevel)
	}
	if !validSessionBackends[c.SessionStoreBackend] {
		return fmt.Errorf("SESSION_STORE_BACKEND must be memory or redis, got %q", c.SessionStoreBackend)
	}
	if c.SessionStoreBackend == "redis" && c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required when SESSION_STORE_BACKEND=redis")
	}
	if c.Port <= 0 {
		return fmt.Errorf("PORT must be positive, got %d", c.Port)
	}
	if c.MaxCycles < 0 {
		return fmt.Errorf("MAX_CYCLES must be non-negative, got %d", c.MaxCycles)
	}
	if c.QualityThreshold < 0 || c.QualityThreshold > 1 {
		return fmt.Errorf("QUALITY_THRESHOLD must be in [0,1], got %f", c.QualityThreshold)
	}
	if c.RateLimitCalls <= 0 || c.RateLimitPeriodSec <= 0 {
		return fmt.Errorf("RATE_LIMIT_CALLS and RATE_LIMIT_PERIOD must be positive")
	}
	return nil
}

// WithPort overrides the listen port; primarily for tests.
func WithPort(port int) Option {
	return func(c *Config) error {
		c.Port = port
		return nil
	}
}

// WithMaxCycles overrides the orchestrator cycle budget.
func WithMaxCycles(n int) Option {
	return func(c *Config) error {
		c.MaxCycles = n
		return nil
	}
}

// WithQualityThreshold overrides Config.QualityThreshold, which the chat
// endpoints report in their response metadata. The analyzer does not read
// it: its refinement gate is the fixed 0.7 constant in internal/analyzer.
func WithQualityThreshold(q float64) Option {
	return func(c *Config) error {
		c.QualityThreshold = q
		return nil
	}
}
