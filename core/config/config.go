package config

import (
	"fmt"
	"os"
	"strconv"

	"eyeofterror.app/orchestrator/core/db"
)

// Config holds all application configuration.
type Config struct {
	// Env is the environment name (development, staging, production)
	Env string

	// Host is the address the HTTP server binds to
	Host string

	// Port is the HTTP server port
	Port string

	// Models holds the base URLs of the worker and controller model endpoints
	Models ModelsConfig

	// WarpWailsURL is the base URL of the audio pipeline (tts.speak, stt.transcribe)
	WarpWailsURL string

	// TTSDefaultSpeaker is the speaker preset used when a plan step omits one
	TTSDefaultSpeaker string

	// DB holds database configuration for the ingest log store
	DB db.Config

	// Redis holds connection settings for the ingest log queue
	Redis RedisConfig

	// OTel holds OpenTelemetry exporter configuration
	OTel OTelConfig
}

// ModelsConfig holds the base URLs for the worker-tier chat-completions endpoints.
type ModelsConfig struct {
	Base7B  string
	Base20B string
	// ControllerModel is the model name sent to the controller endpoint
	// (VLLM_MODEL); the controller's base URL is Base7B.
	ControllerModel string
}

// RedisConfig holds the connection settings for the ingest log stream.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	DLQ      string
	Group    string
}

// OTelConfig holds OpenTelemetry exporter settings.
type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	enabled        bool
}

// Enabled reports whether an OTel endpoint was configured.
func (c OTelConfig) Enabled() bool {
	return c.enabled && c.Endpoint != ""
}

// Load loads configuration from environment variables.
// It provides sensible defaults for development.
func Load() Config {
	return Config{
		Env:  getEnv("EYE_ENV", "development"),
		Host: getEnv("EYE_HOST", "0.0.0.0"),
		Port: getEnv("EYE_PORT", "8080"),
		Models: ModelsConfig{
			Base7B:          getEnv("MODEL_7B_BASE", "http://127.0.0.1:8021"),
			Base20B:         getEnv("MODEL_20B_BASE", "http://127.0.0.1:8020"),
			ControllerModel: getEnv("VLLM_MODEL", "shushunya"),
		},
		WarpWailsURL:      getEnv("WARPWAILS_URL", "http://127.0.0.1:8009"),
		TTSDefaultSpeaker: getEnv("TTS_DEFAULT_SPK", "imp_light"),
		DB: db.Config{
			DSN:      buildDSN(),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvInt("DB_MIN_CONNS", 2)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("INGEST_STREAM", "eye:ingest"),
			DLQ:      getEnv("INGEST_DLQ_STREAM", "eye:ingest:dlq"),
			Group:    getEnv("INGEST_CONSUMER_GROUP", "ingestworker"),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "eyeofterror-orchestrator"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			enabled:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "") != "",
		},
	}
}

// buildDSN constructs the database connection string from individual env vars.
func buildDSN() string {
	host := getEnv("DATABASE_HOST", "localhost")
	port := getEnv("DATABASE_PORT", "5432")
	user := getEnv("DATABASE_USER", "postgres")
	password := getEnv("DATABASE_PASSWORD", "postgres")
	name := getEnv("DATABASE_NAME", "eyeofterror")
	sslMode := getEnv("DATABASE_SSLMODE", "disable")

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslMode,
	)
}

// IsProduction returns true if running in production environment.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// IsDevelopment returns true if running in development environment.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}
