// Package config loads this module's runtime configuration from the
// environment, with a .env file honored for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every recognised runtime option.
type Config struct {
	Database   DatabaseConfig
	Escalation EscalationConfig
	Routing    RoutingConfig
	AutoClose  AutoCloseConfig
}

// DatabaseConfig holds the MySQL connection settings; DATABASE_URL takes
// precedence over individual DB_* variables.
type DatabaseConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	DBName      string
}

// EscalationConfig holds the escalation thresholds and sweep cadence.
type EscalationConfig struct {
	L1ThresholdDays int
	L2ThresholdDays int
	SchedulerPeriod time.Duration
}

// RoutingConfig holds the classifier-confidence floor for automatic routing
// as loaded from the environment. Complaint intake does not read it: it
// applies the fixed complaint.RoutingConfidenceThreshold (0.7).
type RoutingConfig struct {
	ConfidenceThreshold float64
}

// AutoCloseConfig is the citizen-silence window after which a RESOLVED
// complaint may be auto-closed. This module exposes the knob; the driver
// that acts on it is an outer scheduler invoking a SYSTEM close.
type AutoCloseConfig struct {
	Timeout time.Duration
}

// Load reads configuration from the environment. A .env file is loaded
// first if present, silently ignored if absent.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Database: DatabaseConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getEnv("DB_HOST", "localhost"),
			Port:        getEnv("DB_PORT", "3306"),
			User:        getEnv("DB_USER", "root"),
			Password:    os.Getenv("DB_PASSWORD"),
			DBName:      getEnv("DB_NAME", "grievance_core"),
		},
		Escalation: EscalationConfig{
			L1ThresholdDays: getEnvInt("ESCALATION_L1_THRESHOLD_DAYS", 1),
			L2ThresholdDays: getEnvInt("ESCALATION_L2_THRESHOLD_DAYS", 3),
			SchedulerPeriod: getEnvDuration("ESCALATION_SCHEDULER_PERIOD", 6*time.Hour),
		},
		Routing: RoutingConfig{
			ConfidenceThreshold: getEnvFloat("ROUTING_CONFIDENCE_THRESHOLD", 0.7),
		},
		AutoClose: AutoCloseConfig{
			Timeout: getEnvDuration("AUTO_CLOSE_TIMEOUT", 0),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
