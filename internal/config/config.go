package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Matching MatchingConfig
	Learning LearningConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// KafkaConfig holds Kafka/Redpanda configuration
type KafkaConfig struct {
	Brokers       []string
	ListingsTopic string
	AlertsTopic   string
	ConsumerGroup string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// MatchingConfig holds matching pass and outcome tracking settings. The
// windows are operational knobs, not constants, so they can be tuned
// without a deploy.
type MatchingConfig struct {
	Workers       int
	PassSchedule  string
	SweepSchedule string
	SilenceWindow time.Duration
}

// LearningConfig holds learning loop settings
type LearningConfig struct {
	Schedule      string
	OutcomeWindow time.Duration
	MinAlerts     int
	TargetMin     float64
	TargetMax     float64
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8082"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "postgres"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "alerts"),
			Password: getEnv("DB_PASSWORD", "alerts5"),
			DBName:   getEnv("DB_NAME", "auction_alerts"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Kafka: KafkaConfig{
			Brokers:       parseBrokers(getEnv("KAFKA_BROKERS", "localhost:19092")),
			ListingsTopic: getEnv("KAFKA_LISTINGS_TOPIC", "auction.listings"),
			AlertsTopic:   getEnv("KAFKA_ALERTS_TOPIC", "auction.alerts"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "alert-engine"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       0,
		},
		Matching: MatchingConfig{
			Workers:       getEnvInt("MATCH_WORKERS", 4),
			PassSchedule:  getEnv("MATCH_PASS_SCHEDULE", "@every 4h"),
			SweepSchedule: getEnv("MATCH_SWEEP_SCHEDULE", "0 0 * * *"),
			SilenceWindow: time.Duration(getEnvInt("MATCH_SILENCE_HOURS", 72)) * time.Hour,
		},
		Learning: LearningConfig{
			Schedule:      getEnv("LEARN_SCHEDULE", "0 1 * * *"),
			OutcomeWindow: time.Duration(getEnvInt("LEARN_WINDOW_DAYS", 14)) * 24 * time.Hour,
			MinAlerts:     getEnvInt("LEARN_MIN_ALERTS", 10),
			TargetMin:     getEnvFloat("LEARN_TARGET_CLICK_RATE_MIN", 0.20),
			TargetMax:     getEnvFloat("LEARN_TARGET_CLICK_RATE_MAX", 0.50),
		},
	}
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns the Redis address in host:port format
func (r *RedisConfig) Address() string {
	return r.Host + ":" + r.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// parseBrokers splits a comma-separated broker list
func parseBrokers(brokers string) []string {
	parts := strings.Split(brokers, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
