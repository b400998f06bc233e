package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// ServicesConfig points at the remote planning/favorites platform.
type ServicesConfig struct {
	PlanningBaseURL  string
	FavoritesBaseURL string
	CitiesBaseURL    string
	RequestTimeout   time.Duration
}

// Config holds the full client configuration, loaded from the environment
// (with .env support handled by the caller).
type Config struct {
	Services     ServicesConfig
	StateDir     string
	ServerPort   string
	MetricsPort  string
	PprofPort    string
	TokenEnvKey  string
	TokenFile    string
	CityCacheTTL time.Duration
}

func Load() (*Config, error) {
	base := getEnvOrDefault("TRIPWISE_API_URL", "http://localhost:8000")
	cfg := &Config{
		Services: ServicesConfig{
			PlanningBaseURL:  getEnvOrDefault("TRIPWISE_PLANNING_URL", base),
			FavoritesBaseURL: getEnvOrDefault("TRIPWISE_FAVORITES_URL", base),
			CitiesBaseURL:    getEnvOrDefault("TRIPWISE_CITIES_URL", base),
			RequestTimeout:   getDurationOrDefault("TRIPWISE_REQUEST_TIMEOUT", 30*time.Second),
		},
		StateDir:     getEnvOrDefault("TRIPWISE_STATE_DIR", defaultStateDir()),
		ServerPort:   getEnvOrDefault("SERVER_PORT", "8091"),
		MetricsPort:  getEnvOrDefault("METRICS_PORT", "9092"),
		PprofPort:    getEnvOrDefault("PPROF_PORT", "6060"),
		TokenEnvKey:  getEnvOrDefault("TRIPWISE_TOKEN_ENV", "TRIPWISE_SESSION_TOKEN"),
		TokenFile:    os.Getenv("TRIPWISE_TOKEN_FILE"),
		CityCacheTTL: getDurationOrDefault("TRIPWISE_CITY_CACHE_TTL", 15*time.Minute),
	}
	return cfg, nil
}

func defaultStateDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "tripwise")
	}
	return ".tripwise"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
