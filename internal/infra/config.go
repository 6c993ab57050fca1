package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	ArkAPIKey  string
	ArkBaseURL string
	// VideoEndpoint and LLMEndpoint are Ark model endpoint identifiers.
	VideoEndpoint string
	LLMEndpoint   string

	StoragePath string
	StaticDir   string

	PollInterval     time.Duration
	TaskTimeout      time.Duration
	PollFailureLimit int
	EnhanceTimeout   time.Duration
	EnhanceStyle     string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies
// defaults where needed. A .env file is honored when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "5001"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		ArkAPIKey:        os.Getenv("ARK_API_KEY"),
		ArkBaseURL:       getEnv("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		VideoEndpoint:    getEnv("VIDEO_ENDPOINT", "ep-20260206152338-7vwzw"),
		LLMEndpoint:      getEnv("LLM_ENDPOINT", "ep-20260128152923-4g56t"),
		StoragePath:      getEnv("STORAGE_PATH", "./output"),
		StaticDir:        getEnv("STATIC_DIR", "./static"),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 5)),
		TaskTimeout:      time.Second * time.Duration(getEnvInt("TASK_TIMEOUT_SECONDS", 600)),
		PollFailureLimit: getEnvInt("POLL_FAILURE_LIMIT", 5),
		EnhanceTimeout:   time.Second * time.Duration(getEnvInt("ENHANCE_TIMEOUT_SECONDS", 20)),
		EnhanceStyle:     getEnv("ENHANCE_STYLE", "cinematic"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 60)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.ArkAPIKey == "" {
		return nil, fmt.Errorf("ARK_API_KEY is required")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if cfg.PollFailureLimit <= 0 {
		return nil, fmt.Errorf("POLL_FAILURE_LIMIT must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
