package config

import (
	"os"
	"strconv"

	"gocast/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Forecast ForecastConfig
	Paths    PathConfig
}

// DatabaseConfig holds database connection settings. The store is optional;
// without DATABASE_URL the service runs on uploaded panels only.
type DatabaseConfig struct {
	URL     string
	Enabled bool
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port string
}

// ForecastConfig holds forecasting defaults applied when a request leaves
// them unset
type ForecastConfig struct {
	DefaultLags    int
	DefaultHorizon int
	DefaultFreq    string
	MaxParallel    int
}

// PathConfig holds file system paths
type PathConfig struct {
	ReportDir string
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Database: loadDatabaseConfig(),
		Server:   loadServerConfig(),
		Forecast: loadForecastConfig(),
		Paths:    loadPathConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}
	return config, nil
}

func loadDatabaseConfig() DatabaseConfig {
	url := os.Getenv("DATABASE_URL")
	return DatabaseConfig{
		URL:     url,
		Enabled: url != "",
	}
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Port: getEnvOrDefault("PORT", "8080"),
	}
}

func loadForecastConfig() ForecastConfig {
	return ForecastConfig{
		DefaultLags:    getEnvIntOrDefault("DEFAULT_LAGS", 12),
		DefaultHorizon: getEnvIntOrDefault("DEFAULT_HORIZON", 6),
		DefaultFreq:    getEnvOrDefault("DEFAULT_FREQ", "1mo"),
		MaxParallel:    getEnvIntOrDefault("MAX_PARALLEL", 8),
	}
}

func loadPathConfig() PathConfig {
	return PathConfig{
		ReportDir: getEnvOrDefault("REPORT_DIR", "./reports"),
	}
}

func validateConfig(config *Config) error {
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Forecast.DefaultLags < 1 {
		return errors.ConfigInvalid("DEFAULT_LAGS must be at least 1")
	}
	if config.Forecast.DefaultHorizon < 1 {
		return errors.ConfigInvalid("DEFAULT_HORIZON must be at least 1")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
