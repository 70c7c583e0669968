package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"

	IdentityLocal    = "local"
	IdentityFirebase = "firebase"
)

type Config struct {
	HTTPPort int    `env:"HTTP_PORT"`
	LogLevel string `env:"LOG_LEVEL"`

	StorageDriver string `env:"STORAGE_DRIVER"`

	DBConfig struct {
		Host     string `env:"PAYMENTS_DB_HOST"`
		Port     int    `env:"PAYMENTS_DB_PORT"`
		User     string `env:"PAYMENTS_DB_USER"`
		Password string `env:"PAYMENTS_DB_PASSWORD"`
		Name     string `env:"PAYMENTS_DB_NAME"`
		SSLMode  string `env:"PAYMENTS_DB_SSLMODE"`
	}
	MigrationsPath string `env:"MIGRATIONS_PATH"`

	WompiEventSecret string `env:"WOMPI_EVENT_SECRET"`
	WompiWebhookPath string `env:"WOMPI_WEBHOOK_PATH"`
	WompiCheckoutURL string `env:"WOMPI_CHECKOUT_URL"`
	AppBaseURL       string `env:"APP_BASE_URL"`
	ReferencePrefix  string `env:"REFERENCE_PREFIX"`
	CodeMaxAttempts  int    `env:"CODE_MAX_ATTEMPTS"`

	KafkaBrokerURL               string `env:"KAFKA_BROKER_URL"`
	KafkaPaymentEventsTopic      string `env:"KAFKA_PAYMENT_EVENTS_TOPIC"`
	KafkaRegistrationEventsTopic string `env:"KAFKA_REGISTRATION_EVENTS_TOPIC"`

	OutboxPollInterval time.Duration `env:"OUTBOX_POLL_INTERVAL"`
	OutboxPollTimeout  time.Duration `env:"OUTBOX_POLL_TIMEOUT"`
	OutboxBatchSize    int           `env:"OUTBOX_BATCH_SIZE"`

	RedisAddr      string        `env:"REDIS_ADDR"`
	RedisPassword  string        `env:"REDIS_PASSWORD"`
	RedisDB        int           `env:"REDIS_DB"`
	StatusCacheTTL time.Duration `env:"STATUS_CACHE_TTL"`

	IdentityProvider        string        `env:"IDENTITY_PROVIDER"`
	FirebaseProjectID       string        `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string        `env:"FIREBASE_CREDENTIALS_FILE"`
	JWTSecret               string        `env:"JWT_SECRET"`
	JWTTTL                  time.Duration `env:"JWT_TTL"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPPort = getEnvAsInt("HTTP_PORT", 8080)
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.StorageDriver = strings.ToLower(getEnvOrDefault("STORAGE_DRIVER", StoragePostgres))

	cfg.DBConfig.Host = getEnvOrDefault("PAYMENTS_DB_HOST", "localhost")
	cfg.DBConfig.Port = getEnvAsInt("PAYMENTS_DB_PORT", 5432)
	cfg.DBConfig.User = getEnvOrDefault("PAYMENTS_DB_USER", "user")
	cfg.DBConfig.Password = getEnvOrDefault("PAYMENTS_DB_PASSWORD", "password")
	cfg.DBConfig.Name = getEnvOrDefault("PAYMENTS_DB_NAME", "nutritrack")
	cfg.DBConfig.SSLMode = getEnvOrDefault("PAYMENTS_DB_SSLMODE", "disable")
	cfg.MigrationsPath = getEnvOrDefault("MIGRATIONS_PATH", "file://migrations")

	cfg.WompiEventSecret = LoadWompiEventSecret()
	cfg.WompiWebhookPath = getEnvOrDefault("WOMPI_WEBHOOK_PATH", "/webhooks/wompi")
	cfg.WompiCheckoutURL = getEnvOrDefault("WOMPI_CHECKOUT_URL", "https://checkout.wompi.co/l/AzfEIS")
	cfg.AppBaseURL = strings.TrimRight(getEnvOrDefault("APP_BASE_URL", "http://localhost:3000"), "/")
	cfg.ReferencePrefix = getEnvOrDefault("REFERENCE_PREFIX", "nutritrack")
	cfg.CodeMaxAttempts = getEnvAsInt("CODE_MAX_ATTEMPTS", 5)

	cfg.KafkaBrokerURL = getEnvOrDefault("KAFKA_BROKER_URL", "")
	cfg.KafkaPaymentEventsTopic = getEnvOrDefault("KAFKA_PAYMENT_EVENTS_TOPIC", "payment_status_updates")
	cfg.KafkaRegistrationEventsTopic = getEnvOrDefault("KAFKA_REGISTRATION_EVENTS_TOPIC", "registration_events")

	cfg.OutboxPollInterval = getEnvAsDuration("OUTBOX_POLL_INTERVAL", 1*time.Second)
	cfg.OutboxPollTimeout = getEnvAsDuration("OUTBOX_POLL_TIMEOUT", 500*time.Millisecond)
	cfg.OutboxBatchSize = getEnvAsInt("OUTBOX_BATCH_SIZE", 10)

	cfg.RedisAddr = getEnvOrDefault("REDIS_ADDR", "")
	cfg.RedisPassword = getEnvOrDefault("REDIS_PASSWORD", "")
	cfg.RedisDB = getEnvAsInt("REDIS_DB", 0)
	cfg.StatusCacheTTL = getEnvAsDuration("STATUS_CACHE_TTL", 10*time.Minute)

	cfg.IdentityProvider = strings.ToLower(getEnvOrDefault("IDENTITY_PROVIDER", IdentityLocal))
	cfg.FirebaseProjectID = getEnvOrDefault("FIREBASE_PROJECT_ID", "")
	cfg.FirebaseCredentialsFile = getEnvOrDefault("FIREBASE_CREDENTIALS_FILE", "")
	cfg.JWTSecret = getEnvOrDefault("JWT_SECRET", "")
	cfg.JWTTTL = getEnvAsDuration("JWT_TTL", time.Hour)

	cfg.CORSAllowedOrigins = getEnvAsList("CORS_ALLOWED_ORIGINS", []string{cfg.AppBaseURL})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWompiEventSecret reads only the webhook secret, for tooling that does
// not need the rest of the configuration.
func LoadWompiEventSecret() string {
	return getEnvOrDefault("WOMPI_EVENT_SECRET", "")
}

// Validate rejects combinations the server cannot start with. A missing
// webhook secret is not one of them: it is reported per request.
func (c *Config) Validate() error {
	var errs []error

	switch c.StorageDriver {
	case StoragePostgres, StorageMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER must be %q or %q, got %q", StoragePostgres, StorageMemory, c.StorageDriver))
	}

	switch c.IdentityProvider {
	case IdentityFirebase:
		if c.FirebaseProjectID == "" {
			errs = append(errs, errors.New("FIREBASE_PROJECT_ID is required when IDENTITY_PROVIDER=firebase"))
		}
	case IdentityLocal:
		if c.JWTSecret == "" {
			errs = append(errs, errors.New("JWT_SECRET is required when IDENTITY_PROVIDER=local"))
		}
	default:
		errs = append(errs, fmt.Errorf("IDENTITY_PROVIDER must be %q or %q, got %q", IdentityLocal, IdentityFirebase, c.IdentityProvider))
	}

	if c.CodeMaxAttempts < 1 {
		errs = append(errs, errors.New("CODE_MAX_ATTEMPTS must be at least 1"))
	}
	if c.OutboxBatchSize < 1 {
		errs = append(errs, errors.New("OUTBOX_BATCH_SIZE must be at least 1"))
	}
	if !strings.HasPrefix(c.WompiWebhookPath, "/") {
		errs = append(errs, fmt.Errorf("WOMPI_WEBHOOK_PATH must start with /, got %q", c.WompiWebhookPath))
	}
	if _, err := url.Parse(c.WompiCheckoutURL); err != nil {
		errs = append(errs, fmt.Errorf("WOMPI_CHECKOUT_URL: %w", err))
	}

	return errors.Join(errs...)
}

func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DBConfig.Host, c.DBConfig.Port, c.DBConfig.User, c.DBConfig.Password, c.DBConfig.Name, c.DBConfig.SSLMode)
}

func (c *Config) GetDBMigrationConnectionString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBConfig.User, c.DBConfig.Password),
		Host:     fmt.Sprintf("%s:%d", c.DBConfig.Host, c.DBConfig.Port),
		Path:     "/" + c.DBConfig.Name,
		RawQuery: "sslmode=" + c.DBConfig.SSLMode,
	}
	return u.String()
}

func (c *Config) GetKafkaBrokers() []string {
	if c.KafkaBrokerURL == "" {
		return nil
	}
	return strings.Split(c.KafkaBrokerURL, ",")
}

func (c *Config) KafkaEnabled() bool {
	return len(c.GetKafkaBrokers()) > 0
}

func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnvOrDefault(key, strconv.Itoa(defaultValue))
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnvOrDefault(key, defaultValue.String())
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(valueStr) == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
