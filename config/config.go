package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost string
	HTTPPort string
	GRPCHost string
	GRPCPort string

	// AppServiceName is the access scope internal callers must hold.
	AppServiceName  string
	AuthServiceAddr string

	MySQLDSN     string
	MySQLMaxOpen int
	MySQLMaxIdle int
	MySQLMaxLife time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	LockBackend  string
	WebhookAsync bool

	DisconnectProvider string
	ZAPIBaseURL        string
	ZAPIClientToken    string

	PhoneDefaultRegion string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	maxOpen, err := getEnvInt("MYSQL_MAX_OPEN", 10)
	if err != nil {
		return nil, err
	}
	maxIdle, err := getEnvInt("MYSQL_MAX_IDLE", 5)
	if err != nil {
		return nil, err
	}
	maxLife, err := getEnvDuration("MYSQL_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	async, err := getEnvBool("WEBHOOK_ASYNC", false)
	if err != nil {
		return nil, err
	}

	return &Config{
		HTTPHost: getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCHost: getEnv("GRPC_HOST", "0.0.0.0"),
		GRPCPort: getEnv("GRPC_PORT", "9090"),

		AppServiceName:  getEnv("APP_SERVICE_NAME", "messaging-webhooks-service"),
		AuthServiceAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9091"),

		MySQLDSN:     getEnv("MYSQL_DSN", "root:root@tcp(localhost:3306)/messaging?parseTime=true"),
		MySQLMaxOpen: maxOpen,
		MySQLMaxIdle: maxIdle,
		MySQLMaxLife: maxLife,

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		LockBackend:  getEnv("LOCK_BACKEND", "redis"),
		WebhookAsync: async,

		DisconnectProvider: getEnv("DISCONNECT_PROVIDER", "zapi"),
		ZAPIBaseURL:        getEnv("ZAPI_BASE_URL", "https://api.z-api.io"),
		ZAPIClientToken:    getEnv("ZAPI_CLIENT_TOKEN", ""),

		PhoneDefaultRegion: getEnv("PHONE_DEFAULT_REGION", "BR"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
