package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"ridewallet/internal/utils"

	"github.com/joho/godotenv"
)

type Config struct {
	App      *AppConfig      `yaml:"app"`
	Database *DatabaseConfig `yaml:"database"`
	Mongo    *MongoConfig    `yaml:"mongo"`
	Redis    *RedisConfig    `yaml:"redis"`
	Payment  *PaymentConfig  `yaml:"payment"`
	Security *SecurityConfig `yaml:"security"`
	Worker   *WorkerConfig   `yaml:"worker"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
	Port        int    `yaml:"port"`
	Host        string `yaml:"host"`
	PublicURL   string `yaml:"public_url"`
	Debug       bool   `yaml:"debug"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
	Currency    string `yaml:"currency"`
}

// SecurityConfig holds the BaaS credentials used to verify callers.
type SecurityConfig struct {
	BaaSURL            string        `yaml:"baas_url"`
	BaaSAnonKey        string        `yaml:"baas_anon_key"`
	BaaSServiceRoleKey string        `yaml:"baas_service_role_key"`
	JWTSecret          string        `yaml:"jwt_secret"`
	AuthTimeout        time.Duration `yaml:"auth_timeout"`
	CORSAllowedOrigins []string      `yaml:"cors_allowed_origins"`
	TrustedProxies     []string      `yaml:"trusted_proxies"`
}

type WorkerConfig struct {
	SweepSchedule  string        `yaml:"sweep_schedule"`
	SweepStaleAge  time.Duration `yaml:"sweep_stale_age"`
	SweepBatchSize int           `yaml:"sweep_batch_size"`
}

// Load reads configuration from the environment, after merging any .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	config := &Config{
		App:      loadAppConfig(),
		Database: loadDatabaseConfig(),
		Mongo:    loadMongoConfig(),
		Redis:    loadRedisConfig(),
		Payment:  loadPaymentConfig(),
		Security: loadSecurityConfig(),
		Worker:   loadWorkerConfig(),
	}

	if config.App.PublicURL != "" && len(config.Security.CORSAllowedOrigins) == 0 {
		config.Security.CORSAllowedOrigins = []string{config.App.PublicURL}
	}

	return config, nil
}

func loadAppConfig() *AppConfig {
	return &AppConfig{
		Name:        getEnv("APP_NAME", utils.AppName),
		Version:     getEnv("APP_VERSION", utils.AppVersion),
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnvAsInt("APP_PORT", 8080),
		Host:        getEnv("APP_HOST", "localhost"),
		PublicURL:   strings.TrimRight(getEnv("PUBLIC_APP_URL", "http://localhost:5173"), "/"),
		Debug:       getEnvAsBool("APP_DEBUG", true),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		LogFormat:   getEnv("LOG_FORMAT", "json"),
		Currency:    getEnv("APP_CURRENCY", "USD"),
	}
}

func loadSecurityConfig() *SecurityConfig {
	return &SecurityConfig{
		BaaSURL:            strings.TrimRight(getEnv("BAAS_URL", ""), "/"),
		BaaSAnonKey:        getEnv("BAAS_ANON_KEY", ""),
		BaaSServiceRoleKey: getEnv("BAAS_SERVICE_ROLE_KEY", ""),
		JWTSecret:          getEnv("BAAS_JWT_SECRET", ""),
		AuthTimeout:        getEnvAsDuration("BAAS_AUTH_TIMEOUT", 5*time.Second),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
		TrustedProxies:     getEnvAsSlice("TRUSTED_PROXIES", []string{}),
	}
}

func loadWorkerConfig() *WorkerConfig {
	return &WorkerConfig{
		SweepSchedule:  os.Getenv("RECONCILE_SWEEP_SCHEDULE"),
		SweepStaleAge:  getEnvAsDuration("RECONCILE_SWEEP_STALE_AGE", 35*time.Minute),
		SweepBatchSize: getEnvAsInt("RECONCILE_SWEEP_BATCH_SIZE", 50),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}
