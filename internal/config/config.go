package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// RolloverPolicy decides what happens to a budget's unspent amount when a
// period closes. The default drops it; carry_forward adds it to the next
// period's amount.
type RolloverPolicy string

const (
	RolloverPolicyReset        RolloverPolicy = "reset"
	RolloverPolicyCarryForward RolloverPolicy = "carry_forward"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTExpirationDur time.Duration

	// Ledger
	RolloverPolicy RolloverPolicy

	// Background sweeps
	RolloverSweepInterval  time.Duration
	ReminderSweepInterval  time.Duration
	ReconcileSweepInterval time.Duration

	// Notification delivery. An empty AMQP URL disables event publishing
	// and notifications fall back to log-only delivery.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		// Server
		Port: getEnv("PORT", "8080"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "finledger"),
		DBPassword: getEnv("DB_PASSWORD", "finledger"),
		DBName:     getEnv("DB_NAME", "finledger"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret: getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),

		// Ledger
		RolloverPolicy: RolloverPolicy(getEnv("ROLLOVER_POLICY", string(RolloverPolicyReset))),

		// Notifications
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "finledger.notifications"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "notifications"),
	}

	if config.RolloverPolicy != RolloverPolicyReset && config.RolloverPolicy != RolloverPolicyCarryForward {
		log.Printf("Warning: invalid ROLLOVER_POLICY value '%s', falling back to reset\n", config.RolloverPolicy)
		config.RolloverPolicy = RolloverPolicyReset
	}

	config.JWTExpirationDur = getDuration("JWT_EXPIRES_IN", 24*time.Hour)
	config.RolloverSweepInterval = getDuration("ROLLOVER_SWEEP_INTERVAL", 24*time.Hour)
	config.ReminderSweepInterval = getDuration("REMINDER_SWEEP_INTERVAL", 24*time.Hour)
	config.ReconcileSweepInterval = getDuration("RECONCILE_SWEEP_INTERVAL", time.Hour)

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDuration parses a duration environment variable, falling back on bad input.
func getDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, defaultValue)
		return defaultValue
	}
	return d
}
