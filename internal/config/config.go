package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"tourbook/internal/cache"
	"tourbook/internal/database"
	"tourbook/internal/external"
	"tourbook/internal/messaging"
	"tourbook/internal/storage"

	"github.com/joho/godotenv"
)

// Config содержит конфигурацию приложения
type Config struct {
	Port           string
	GinMode        string
	LogLevel       string
	LogFormat      string
	RequestTimeout time.Duration

	// memory - только для локальной разработки и тестов
	StorageDriver string

	Database database.Config
	NATS     messaging.Config
	Redis    cache.Config
	Payment  external.PaymentConfig
	Storage  storage.Config
	Auth     AuthConfig
	Booking  BookingConfig
}

// AuthConfig - проверка bearer токенов
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// BookingConfig - параметры жизненного цикла бронирований
type BookingConfig struct {
	HoldDuration         time.Duration
	SweepInterval        time.Duration
	CompletionInterval   time.Duration
	AllowConfirmedCancel bool
}

// Load загружает конфигурацию из переменных окружения.
// Файл .env, если есть, подгружается без перезаписи уже заданных переменных.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
		RequestTimeout: time.Duration(getEnvInt("REQUEST_TIMEOUT_SEC", 30)) * time.Second,

		StorageDriver: getEnv("STORAGE_DRIVER", "postgres"),

		Database: database.Config{
			Host:               getEnv("DB_HOST", "localhost"),
			Port:               getEnvInt("DB_PORT", 5432),
			User:               getEnv("DB_USER", "tourbook"),
			Password:           getEnv("DB_PASSWORD", "tourbook"),
			DBName:             getEnv("DB_NAME", "tourbook"),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetimeMin: getEnvInt("DB_CONN_MAX_LIFETIME_MIN", 5),
			ConnMaxIdleTimeMin: getEnvInt("DB_CONN_MAX_IDLE_TIME_MIN", 1),
		},

		NATS: messaging.Config{
			Enabled:   getEnvBool("NATS_ENABLED", true),
			URL:       getEnv("NATS_URL", "nats://localhost:4222"),
			ClusterID: getEnv("NATS_CLUSTER_ID", "tourbook"),
			ClientID:  getEnv("NATS_CLIENT_ID", "tourbook-api"),
		},

		Redis: cache.Config{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			ToursTTL: getEnvDuration("REDIS_TOURS_TTL", 30*time.Second),
		},

		Payment: external.PaymentConfig{
			BaseURL:         getEnv("PAYMENT_GATEWAY_URL", "http://localhost:9090"),
			TeamSlug:        getEnv("PAYMENT_TEAM_SLUG", ""),
			Password:        getEnv("PAYMENT_PASSWORD", ""),
			Currency:        getEnv("PAYMENT_CURRENCY", "USD"),
			SuccessURL:      getEnv("PAYMENT_SUCCESS_URL", ""),
			FailURL:         getEnv("PAYMENT_FAIL_URL", ""),
			NotificationURL: getEnv("PAYMENT_NOTIFICATION_URL", ""),
			Timeout:         time.Duration(getEnvInt("PAYMENT_TIMEOUT_SEC", 30)) * time.Second,
		},

		Storage: storage.Config{
			BaseURL:    getEnv("STORAGE_BASE_URL", "http://localhost:9000"),
			SigningKey: getEnv("STORAGE_SIGNING_KEY", "dev-storage-key"),
			URLTTL:     getEnvDuration("STORAGE_URL_TTL", time.Hour),
			Timeout:    time.Duration(getEnvInt("STORAGE_TIMEOUT_SEC", 10)) * time.Second,
		},

		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret"),
			TokenTTL:  getEnvDuration("JWT_TTL", 24*time.Hour),
		},

		Booking: BookingConfig{
			HoldDuration:         getEnvDuration("HOLD_DURATION", 15*time.Minute),
			SweepInterval:        getEnvDuration("SWEEP_INTERVAL", time.Minute),
			CompletionInterval:   getEnvDuration("COMPLETION_INTERVAL", time.Hour),
			AllowConfirmedCancel: getEnvBool("ALLOW_CONFIRMED_SELF_CANCEL", false),
		},
	}
}

// getEnv получает значение переменной окружения или возвращает значение по умолчанию
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt получает целочисленное значение переменной окружения
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return defaultValue
}

// getEnvDuration принимает формат time.ParseDuration ("90s", "15m")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
