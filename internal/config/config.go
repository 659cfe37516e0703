package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	Environment string

	Server  ServerConfig
	Redis   RedisConfig
	Scylla  ScyllaConfig
	Kafka   KafkaConfig
	Logging LoggingConfig
	Auth    AuthConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	EnableTLS    bool
	CertFile     string
	KeyFile      string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes    []string
	Keyspace string
}

type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// AuthConfig carries the brute-force and OTP policy knobs.
type AuthConfig struct {
	MaxFailedAttempts int
	AttemptWindow     time.Duration
	BlockDuration     time.Duration
	OTPLength         int
	OTPTTL            time.Duration
	ExposeOTP         bool
}

// LoadConfig reads configuration from the environment, loading a .env file
// first when one exists.
func LoadConfig() *Config {
	_ = godotenv.Load()

	env := getEnv("ENVIRONMENT", "development")

	return &Config{
		Environment: env,
		Server: ServerConfig{
			Port:         getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			EnableTLS:    getEnvBool("SERVER_ENABLE_TLS", false),
			CertFile:     getEnv("SERVER_CERT_FILE", ""),
			KeyFile:      getEnv("SERVER_KEY_FILE", ""),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 50),
		},
		Scylla: ScyllaConfig{
			Nodes:    strings.Split(getEnv("SCYLLA_NODES", "localhost:9042"), ","),
			Keyspace: getEnv("SCYLLA_KEYSPACE", "phone_auth"),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			Topic:   getEnv("KAFKA_SECURITY_TOPIC", "auth-security-events"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			MaxFailedAttempts: getEnvInt("AUTH_MAX_FAILED_ATTEMPTS", 3),
			AttemptWindow:     getEnvDuration("AUTH_ATTEMPT_WINDOW", 24*time.Hour),
			BlockDuration:     getEnvDuration("AUTH_BLOCK_DURATION", time.Hour),
			OTPLength:         getEnvInt("AUTH_OTP_LENGTH", 6),
			OTPTTL:            getEnvDuration("AUTH_OTP_TTL", 5*time.Minute),
			ExposeOTP:         getEnvBool("AUTH_EXPOSE_OTP", env != "production"),
		},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetServerAddress returns the listen address for the HTTP server.
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
