package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Session backends for per-phone MTProto session artifacts
const (
	SessionBackendFile     = "file"
	SessionBackendPostgres = "postgres"
)

// Config holds all configuration for the reaction service
type Config struct {
	Telegram TelegramConfig
	Store    StoreConfig
	Worker   WorkerConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Logging  LoggingConfig
	Service  ServiceConfig
}

// TelegramConfig holds Telegram MTProto configuration
type TelegramConfig struct {
	// APIID and APIHash are used by reaction workers. Login and verify use
	// the credentials supplied by the caller instead.
	APIID          int
	APIHash        string
	SessionDir     string
	SessionBackend string
	RequestTimeout time.Duration
}

// StoreConfig holds configuration of the JSON control-state document
type StoreConfig struct {
	Path string
	// PendingSessionTTL of zero keeps login codes until they are consumed.
	PendingSessionTTL time.Duration
	CleanupInterval   time.Duration
}

// WorkerConfig holds reaction worker configuration
type WorkerConfig struct {
	StartTimeout  time.Duration
	StopTimeout   time.Duration
	ReactionRate  float64 // reactions per second per worker
	ReactionBurst int
}

// DatabaseConfig holds PostgreSQL configuration for the postgres session backend
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	// MigrationsPath is the directory of SQL migrations for the session tables
	MigrationsPath string
}

// KafkaConfig holds Kafka configuration. Empty Brokers disables event publishing.
type KafkaConfig struct {
	Brokers     []string
	TopicEvents string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// ServiceConfig holds service configuration
type ServiceConfig struct {
	Name string
	Port string
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetURL returns the PostgreSQL URL form used by migrations
func (c *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Result provides config parts for fx dependency injection using fx.Out pattern
type Result struct {
	fx.Out

	Config   *Config
	Telegram *TelegramConfig
	Store    *StoreConfig
	Worker   *WorkerConfig
	Database *DatabaseConfig
	Kafka    *KafkaConfig
	Logging  *LoggingConfig
	Service  *ServiceConfig
}

// Out loads configuration and returns Result for fx injection
func Out() (Result, error) {
	cfg, err := Load()
	if err != nil {
		return Result{}, err
	}

	return Result{
		Config:   cfg,
		Telegram: &cfg.Telegram,
		Store:    &cfg.Store,
		Worker:   &cfg.Worker,
		Database: &cfg.Database,
		Kafka:    &cfg.Kafka,
		Logging:  &cfg.Logging,
		Service:  &cfg.Service,
	}, nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists
	_ = godotenv.Load()

	apiID, err := strconv.Atoi(getEnv("TELEGRAM_API_ID", getEnv("API_ID", "0")))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_API_ID: %w", err)
	}

	requestTimeout, err := time.ParseDuration(getEnv("TELEGRAM_REQUEST_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_REQUEST_TIMEOUT: %w", err)
	}

	pendingTTL, err := time.ParseDuration(getEnv("PENDING_SESSION_TTL", "0s"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_SESSION_TTL: %w", err)
	}

	cleanupInterval, err := time.ParseDuration(getEnv("PENDING_SESSION_CLEANUP_INTERVAL", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid PENDING_SESSION_CLEANUP_INTERVAL: %w", err)
	}

	startTimeout, err := time.ParseDuration(getEnv("WORKER_START_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_START_TIMEOUT: %w", err)
	}

	stopTimeout, err := time.ParseDuration(getEnv("WORKER_STOP_TIMEOUT", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WORKER_STOP_TIMEOUT: %w", err)
	}

	reactionRate, err := strconv.ParseFloat(getEnv("REACTION_RATE", "1"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid REACTION_RATE: %w", err)
	}

	reactionBurst, err := strconv.Atoi(getEnv("REACTION_BURST", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid REACTION_BURST: %w", err)
	}

	var brokers []string
	if brokersStr := getEnv("KAFKA_BROKERS", ""); brokersStr != "" {
		brokers = strings.Split(brokersStr, ",")
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			APIID:          apiID,
			APIHash:        getEnv("TELEGRAM_API_HASH", getEnv("API_HASH", "")),
			SessionDir:     getEnv("TELEGRAM_SESSION_DIR", "sessions"),
			SessionBackend: strings.ToLower(getEnv("SESSION_BACKEND", SessionBackendFile)),
			RequestTimeout: requestTimeout,
		},
		Store: StoreConfig{
			Path:              getEnv("STORE_PATH", "database.json"),
			PendingSessionTTL: pendingTTL,
			CleanupInterval:   cleanupInterval,
		},
		Worker: WorkerConfig{
			StartTimeout:  startTimeout,
			StopTimeout:   stopTimeout,
			ReactionRate:  reactionRate,
			ReactionBurst: reactionBurst,
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "reactions"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "migrations"),
		},
		Kafka: KafkaConfig{
			Brokers:     brokers,
			TopicEvents: getEnv("KAFKA_TOPIC_EVENTS", "reaction.events"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Service: ServiceConfig{
			Name: getEnv("SERVICE_NAME", "reaction-service"),
			Port: getEnv("PORT", getEnv("SERVICE_PORT", "5000")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.APIID == 0 {
		return fmt.Errorf("TELEGRAM_API_ID is required")
	}

	if c.Telegram.APIHash == "" {
		return fmt.Errorf("TELEGRAM_API_HASH is required")
	}

	switch c.Telegram.SessionBackend {
	case SessionBackendFile, SessionBackendPostgres:
	default:
		return fmt.Errorf("SESSION_BACKEND must be %q or %q", SessionBackendFile, SessionBackendPostgres)
	}

	if c.Store.Path == "" {
		return fmt.Errorf("STORE_PATH is required")
	}

	if c.Worker.ReactionRate <= 0 {
		return fmt.Errorf("REACTION_RATE must be positive")
	}

	if c.Worker.ReactionBurst < 1 {
		return fmt.Errorf("REACTION_BURST must be at least 1")
	}

	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
