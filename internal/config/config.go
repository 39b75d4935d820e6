// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration, loaded once at process start
// and passed by reference to every component that needs it.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// CORS
	CORSOrigins []string

	// Default crawl limits, applied whenever a CrawlConfig omits the field.
	DefaultMaxDepth             int
	DefaultMaxPages             int
	DefaultMaxRequestsPerMinute int
	DefaultMaxConcurrency       int
	DefaultPageTimeout          time.Duration
	DefaultRequestTimeout       time.Duration

	// QueueMaxDepth bounds the job queue; 0 disables the bound (unbounded,
	// matching the reference design). See internal/queue.
	QueueMaxDepth int

	// Webhook delivery.
	WebhookClientTimeout time.Duration
	WebhookDefaultRetries int

	// Worker/dispatcher tuning.
	WorkerShutdownGracePeriod time.Duration

	// Logging.
	LogLevel  string
	LogFormat string // "text" or "json"
}

// Load reads configuration from environment variables, applying the
// defaults a local-first deployment needs to run out of the box.
func Load() (*Config, error) {
	cfg := &Config{
		Port:    getEnvInt("PORT", 8080),
		BaseURL: getEnv("BASE_URL", "http://localhost:8080"),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		DefaultMaxDepth:             getEnvInt("DEFAULT_MAX_DEPTH", 3),
		DefaultMaxPages:             getEnvInt("DEFAULT_MAX_PAGES", 100),
		DefaultMaxRequestsPerMinute: getEnvInt("DEFAULT_MAX_REQUESTS_PER_MINUTE", 60),
		DefaultMaxConcurrency:       getEnvInt("DEFAULT_MAX_CONCURRENCY", 5),
		DefaultPageTimeout:          getEnvDuration("DEFAULT_PAGE_TIMEOUT", 30*time.Second),
		DefaultRequestTimeout:       getEnvDuration("DEFAULT_REQUEST_TIMEOUT", 30*time.Second),

		QueueMaxDepth: getEnvInt("QUEUE_MAX_DEPTH", 0),

		WebhookClientTimeout:  getEnvDuration("WEBHOOK_CLIENT_TIMEOUT", 10*time.Second),
		WebhookDefaultRetries: getEnvInt("WEBHOOK_DEFAULT_RETRIES", 3),

		WorkerShutdownGracePeriod: getEnvDuration("WORKER_SHUTDOWN_GRACE_PERIOD", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}

	if cfg.DefaultMaxDepth < 1 || cfg.DefaultMaxDepth > 10 {
		return nil, fmt.Errorf("DEFAULT_MAX_DEPTH must be between 1 and 10, got %d", cfg.DefaultMaxDepth)
	}
	if cfg.DefaultMaxPages < 1 || cfg.DefaultMaxPages > 1000 {
		return nil, fmt.Errorf("DEFAULT_MAX_PAGES must be between 1 and 1000, got %d", cfg.DefaultMaxPages)
	}
	if cfg.WebhookDefaultRetries < 1 || cfg.WebhookDefaultRetries > 5 {
		return nil, fmt.Errorf("WEBHOOK_DEFAULT_RETRIES must be between 1 and 5, got %d", cfg.WebhookDefaultRetries)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		lower := strings.ToLower(value)
		return lower == "true" || lower == "1" || lower == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
