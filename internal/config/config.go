package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds runtime configuration for the flowpulse pipeline.
type Config struct {
	Environment string
	Addr        string
	LogLevel    string

	TraceStoreCapacity int
	TraceAutoCreate    bool
	TraceLostTimeout   time.Duration

	MetricsSampleEvery   time.Duration
	MetricsQueueCapacity int
	MetricsWindowSize    int

	DashboardBroadcastEvery time.Duration
	DashboardWriteTimeout   time.Duration
}

// Load constructs a Config from environment variables. A .env file in the
// working directory is read first when present.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Environment: GetString("APP_ENV", "development"),
		Addr:        GetString("FLOWPULSE_ADDR", ":8686"),
		LogLevel:    GetString("LOG_LEVEL", "info"),

		TraceStoreCapacity: GetInt("TRACE_STORE_CAPACITY", 10000),
		TraceAutoCreate:    GetBool("TRACE_AUTO_CREATE", true),
		TraceLostTimeout:   time.Duration(GetInt("TRACE_LOST_TIMEOUT_SECONDS", 30)) * time.Second,

		MetricsSampleEvery:   time.Duration(GetInt("METRICS_SAMPLE_SECONDS", 1)) * time.Second,
		MetricsQueueCapacity: GetInt("METRICS_QUEUE_CAPACITY", 1000),
		MetricsWindowSize:    GetInt("METRICS_WINDOW_SIZE", 1000),

		DashboardBroadcastEvery: time.Duration(GetInt("DASHBOARD_BROADCAST_SECONDS", 1)) * time.Second,
		DashboardWriteTimeout:   time.Duration(GetInt("DASHBOARD_WRITE_TIMEOUT_SECONDS", 5)) * time.Second,
	}
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetBool retrieves an environment variable as bool or returns fallback.
func GetBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("invalid value for %s: %v", key, err)
			return fallback
		}
		return parsed
	}
	return fallback
}
