package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Queue     QueueConfig
	API       APIConfig
	Worker    WorkerConfig
	Scheduler SchedulerConfig
	WhatsApp  WhatsAppConfig
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// QueueConfig holds queue configuration (Redis)
type QueueConfig struct {
	RedisURL  string
	QueueName string
}

// APIConfig holds API server configuration
type APIConfig struct {
	Port int
}

// WorkerConfig holds delivery worker configuration
type WorkerConfig struct {
	Concurrency  int
	MaxAttempts  int
	PollInterval time.Duration
	BatchSize    int
	RetryBackoff time.Duration
}

// SchedulerConfig holds the schedule-rule scanner configuration
type SchedulerConfig struct {
	TickInterval time.Duration
}

// WhatsAppConfig holds outbound channel configuration. An empty BaseURL
// selects the mock sender.
type WhatsAppConfig struct {
	BaseURL     string
	Token       string
	SendTimeout time.Duration
}

// Load reads configuration from environment variables, with .env support
// for local development.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	concurrency, err := strconv.Atoi(getEnv("WORKER_CONCURRENCY", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_CONCURRENCY: %w", err)
	}

	maxAttempts, err := strconv.Atoi(getEnv("MAX_ATTEMPTS", "3"))
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_ATTEMPTS: %w", err)
	}

	batchSize, err := strconv.Atoi(getEnv("WORKER_BATCH_SIZE", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_BATCH_SIZE: %w", err)
	}

	pollInterval, err := getDuration("WORKER_POLL_INTERVAL", "2m")
	if err != nil {
		return nil, err
	}

	retryBackoff, err := getDuration("RETRY_BACKOFF", "1m")
	if err != nil {
		return nil, err
	}

	tickInterval, err := getDuration("SCHEDULER_TICK_INTERVAL", "2m")
	if err != nil {
		return nil, err
	}

	sendTimeout, err := getDuration("WHATSAPP_SEND_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "automation"),
			Password: getEnv("DB_PASSWORD", "automation"),
			DBName:   getEnv("DB_NAME", "automation"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Queue: QueueConfig{
			RedisURL:  getEnv("REDIS_URL", "redis://localhost:6379/0"),
			QueueName: getEnv("QUEUE_NAME", "message_deliveries"),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Worker: WorkerConfig{
			Concurrency:  concurrency,
			MaxAttempts:  maxAttempts,
			PollInterval: pollInterval,
			BatchSize:    batchSize,
			RetryBackoff: retryBackoff,
		},
		Scheduler: SchedulerConfig{
			TickInterval: tickInterval,
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:     getEnv("WHATSAPP_BASE_URL", ""),
			Token:       getEnv("WHATSAPP_TOKEN", ""),
			SendTimeout: sendTimeout,
		},
	}, nil
}

// DSN returns the database connection string
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key, defaultValue string) (time.Duration, error) {
	value, err := time.ParseDuration(getEnv(key, defaultValue))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}
