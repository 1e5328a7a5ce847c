// Package config provides application configuration loaded from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	App       AppConfig
	Quotation QuotationConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  int // seconds
	WriteTimeout int // seconds
	IdleTimeout  int // seconds
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Driver   string // postgres, mysql or sqlite
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Path     string // sqlite file, or ":memory:"

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // minutes
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Dev        bool
	Migrations bool
	LogLevel   string
}

// QuotationConfig holds the numbering and lifecycle settings.
type QuotationConfig struct {
	Prefix       string
	ValidityDays int
	// StrictSend turns "send" on an already sent quotation into an error
	// instead of a no-op.
	StrictSend bool
}

// RedisConfig configures the cross-replica numbering lock. An empty Address
// disables it.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	LockTTL  int // seconds
}

// KafkaConfig configures event publishing. No brokers means events are logged.
type KafkaConfig struct {
	Brokers string
	Topic   string
}

// Validity returns the default validity window of a new quotation.
func (q QuotationConfig) Validity() time.Duration {
	return time.Duration(q.ValidityDays) * 24 * time.Hour
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Address != "" }

// DSN returns the driver specific connection string.
func (d DatabaseConfig) DSN() string {
	switch d.Driver {
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
			d.User, d.Password, d.Host, d.Port, d.DBName,
		)
	case "sqlite":
		return d.Path
	default:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
		)
	}
}

// URL returns the PostgreSQL connection string in URL format.
func (d DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// Load reads configuration from environment variables.
// It uses sensible defaults for local development.
func Load() *Config {
	driver := strings.ToLower(getEnv("DB_DRIVER", "postgres"))
	defaultPort := 5432
	if driver == "mysql" {
		defaultPort = 3306
	}
	return &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvInt("SERVER_READ_TIMEOUT", 15),
			WriteTimeout: getEnvInt("SERVER_WRITE_TIMEOUT", 15),
			IdleTimeout:  getEnvInt("SERVER_IDLE_TIMEOUT", 60),
		},
		Database: DatabaseConfig{
			Driver:          driver,
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", defaultPort),
			User:            getEnv("DB_USER", "quotations"),
			Password:        getEnv("DB_PASSWORD", "quotations123"),
			DBName:          getEnv("DB_NAME", "quotations"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			Path:            getEnv("DB_PATH", "quotations.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 30),
		},
		App: AppConfig{
			Dev:        getEnvBool("DEV", true),
			Migrations: getEnvBool("MIGRATIONS", false),
			LogLevel:   getEnv("LOG_LEVEL", "info"),
		},
		Quotation: QuotationConfig{
			Prefix:       getEnv("QUOTATION_PREFIX", "QUO"),
			ValidityDays: getEnvInt("QUOTATION_VALIDITY_DAYS", 30),
			StrictSend:   getEnvBool("QUOTATION_STRICT_SEND", false),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDRESS", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			LockTTL:  getEnvInt("REDIS_LOCK_TTL", 10),
		},
		Kafka: KafkaConfig{
			Brokers: getEnv("KAFKA_BROKERS", ""),
			Topic:   getEnv("KAFKA_TOPIC", "quotation-events"),
		},
	}
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default.
// Accepts "1", "true", "yes" as true; everything else is false.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
