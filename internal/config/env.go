package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Isolation modes.
const (
	IsolationPool    = "pool"
	IsolationProcess = "process"
)

type Config struct {
	DatabaseURL  string
	SslCertPath  string
	AwsAccessKey string
	AwsSecretKey string
	AwsRegion    string

	EmbedProvider  string
	AIAPIKey       string
	OpenAIAPIKey   string
	OpenAIBaseURL  string
	EmbedModel     string
	EmbedDim       int
	EmbedBatchSize int
	EmbedRPS       float64

	Port      string
	LogLevel  slog.Level
	LogFormat string

	IsolationMode     string
	WorkerPoolSize    int
	ProcessTimeout    time.Duration
	WorkerMemoryLimit int64
	PdfToTextPath     string
	PdfInfoPath       string

	ChunkSize    int
	ChunkOverlap int

	SchedulerInterval time.Duration
	SweeperInterval   time.Duration
	MaxRetries        int
	RetryBaseDelay    time.Duration
	RetryMaxDelay     time.Duration
	MaxAutoRetries    int
	AutoRetryWindow   time.Duration
	AutoRetryBatch    int
}

// LoadConfig loads the environment variables and returns the config.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		SslCertPath:  getEnv("SSL_CERT_PATH", ""),
		AwsAccessKey: getEnv("AWS_ACCESS_KEY", ""),
		AwsSecretKey: getEnv("AWS_SECRET_KEY", ""),
		AwsRegion:    getEnv("AWS_REGION", "us-east-2"),

		EmbedProvider:  strings.ToLower(getEnv("EMBED_PROVIDER", "openai")),
		AIAPIKey:       getEnv("GEMINI_API_KEY", ""),
		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  getEnv("OPENAI_BASE_URL", ""),
		EmbedModel:     getEnv("EMBED_MODEL", ""), // provider default when empty
		EmbedDim:       getEnvInt("EMBED_DIM", 1536),
		EmbedBatchSize: getEnvInt("EMBED_BATCH_SIZE", 100),
		EmbedRPS:       getEnvFloat("EMBED_RPS", 5),

		Port:      getEnv("PORT", "8080"),
		LogLevel:  parseLevel(getEnv("LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("LOG_FORMAT", "text")),

		IsolationMode:     strings.ToLower(getEnv("ISOLATION_MODE", IsolationPool)),
		WorkerPoolSize:    getEnvInt("WORKER_POOL_SIZE", 2),
		ProcessTimeout:    getEnvDuration("PROCESS_TIMEOUT", 120*time.Second),
		WorkerMemoryLimit: getEnvInt64("WORKER_MEMORY_LIMIT", 512<<20),
		PdfToTextPath:     getEnv("PDFTOTEXT_PATH", "pdftotext"),
		PdfInfoPath:       getEnv("PDFINFO_PATH", "pdfinfo"),

		ChunkSize:    getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap: getEnvInt("CHUNK_OVERLAP", 200),

		SchedulerInterval: getEnvDuration("SCHEDULER_INTERVAL", 5*time.Second),
		SweeperInterval:   getEnvDuration("SWEEPER_INTERVAL", time.Minute),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		RetryBaseDelay:    getEnvDuration("RETRY_BASE_DELAY", 2*time.Second),
		RetryMaxDelay:     getEnvDuration("RETRY_MAX_DELAY", 30*time.Second),
		MaxAutoRetries:    getEnvInt("MAX_AUTO_RETRIES", 2),
		AutoRetryWindow:   getEnvDuration("AUTO_RETRY_WINDOW", time.Hour),
		AutoRetryBatch:    getEnvInt("AUTO_RETRY_BATCH", 5),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings the service cannot start without.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	if c.EmbedDim <= 0 {
		return fmt.Errorf("EMBED_DIM must be greater than 0")
	}
	if c.EmbedBatchSize <= 0 || c.EmbedBatchSize > 100 {
		return fmt.Errorf("EMBED_BATCH_SIZE must be between 1 and 100")
	}
	switch c.EmbedProvider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("EMBED_PROVIDER must be gemini or openai, got %q", c.EmbedProvider)
	}
	switch c.IsolationMode {
	case IsolationPool, IsolationProcess:
	default:
		return fmt.Errorf("ISOLATION_MODE must be pool or process, got %q", c.IsolationMode)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be greater than 0")
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("CHUNK_OVERLAP must not be negative")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("MAX_RETRIES must be at least 1")
	}
	return nil
}

// Helper to read environment variables with a default fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, def int) int {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("invalid integer setting, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvInt64(key string, def int64) int64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		slog.Warn("invalid integer setting, using default", "key", key, "value", v, "default", def)
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("invalid number setting, using default", "key", key, "value", v, "default", def)
		return def
	}
	return f
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration setting, using default", "key", key, "value", v, "default", def.String())
		return def
	}
	return d
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
