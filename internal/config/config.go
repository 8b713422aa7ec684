package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Environment
	Env string // "development", "production", etc.

	// Server
	ServerAddr  string
	CORSOrigins string // Comma-separated allowed origins
	RateLimit   int    // Requests per minute per IP

	// TLS
	TLSEnabled  bool
	TLSCertFile string
	TLSKeyFile  string
	TLSCAFile   string // Optional. Enables mTLS when set.

	// Storage
	DatabaseURL string
	RedisURL    string // Optional. Enables the shared counter store across instances.
	SeedDevData bool

	// LLM gateway (OpenAI-compatible)
	LLMBaseURL  string
	LLMAPIKey   string
	LLMMode     string // "MOCK" selects the in-process mock client
	ScorerModel string
	ModelsFile  string // YAML roster + pricing file

	// Orchestration
	InvokeTimeout          time.Duration
	ScoreTimeout           time.Duration
	RunTimeout             time.Duration
	ShutdownTimeout        time.Duration
	MaxRunsPerDomain       int
	FallbackThreshold      int
	TimeoutResetInterval   time.Duration
	AdmissionSweepInterval time.Duration
	MaxTasks               int
	BatchPause             time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Env:         getEnv("ENV", "development"),
		ServerAddr:  getEnv("SERVER_ADDR", ":3000"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		RateLimit:   getEnvInt("RATE_LIMIT", 100),

		TLSEnabled:  getEnv("TLS_ENABLED", "") == "true",
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),
		TLSCAFile:   getEnv("TLS_CA_FILE", ""),

		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/aivisibility?sslmode=disable"),
		RedisURL:    getEnv("REDIS_URL", ""),
		SeedDevData: getEnv("SEED_DEV_DATA", "") != "",

		LLMBaseURL:  getEnv("LLM_BASE_URL", "http://localhost:4000"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMMode:     getEnv("LLM_MODE", ""),
		ScorerModel: getEnv("SCORER_MODEL", "gpt-4o-mini"),
		ModelsFile:  getEnv("MODELS_FILE", "models.yaml"),

		InvokeTimeout:          getEnvDuration("INVOKE_TIMEOUT", 20*time.Second),
		ScoreTimeout:           getEnvDuration("SCORE_TIMEOUT", 60*time.Second),
		RunTimeout:             getEnvDuration("RUN_TIMEOUT", 30*time.Minute),
		ShutdownTimeout:        getEnvDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		MaxRunsPerDomain:       getEnvInt("MAX_RUNS_PER_DOMAIN", 2),
		FallbackThreshold:      getEnvInt("FALLBACK_THRESHOLD", 3),
		TimeoutResetInterval:   getEnvDuration("TIMEOUT_RESET_INTERVAL", 5*time.Minute),
		AdmissionSweepInterval: getEnvDuration("ADMISSION_SWEEP_INTERVAL", time.Minute),
		MaxTasks:               getEnvInt("MAX_TASKS", 1000),
		BatchPause:             getEnvDuration("BATCH_PAUSE", 500*time.Millisecond),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("20s") or bare milliseconds ("20000").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

// IsDev returns true if the environment is set to development.
func (c *Config) IsDev() bool {
	return c.Env == "development" || c.Env == "dev"
}

// IsMockLLM returns true when the mock LLM client should be used.
func (c *Config) IsMockLLM() bool {
	return c.LLMMode == "MOCK" || c.LLMMode == "mock"
}
