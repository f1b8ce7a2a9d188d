package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host               string
	Port               string
	RequestTimeout     time.Duration
	ImageFetchTimeout  time.Duration
	VisionTimeout      time.Duration
	GenerationTimeout  time.Duration
	TranslationTimeout time.Duration
	MaxRequestBodySize int64

	// Hosted model endpoints (chat-completion shaped)
	ModelEndpoint string
	ModelAPIKey   string
	VisionModel   string
	TextModel     string

	// Translation endpoint
	TranslationEndpoint string
	TargetLanguage      string

	// Record store
	BadgerPath string

	// Optional Azure blob upload store for submitted images
	AzureAccountName string
	AzureAccountKey  string
	AzureContainer   string

	// Auth
	JWTSecret     string
	TokenDuration time.Duration
	// USERS is a comma-separated list of user:password pairs.
	Users map[string]string

	// Rate credits
	DailyRequestCap  int
	MinRequestDelay  time.Duration
	AnalysisCacheTTL time.Duration
}

func (c *Config) ServerAddress() string {
	host := strings.TrimSpace(c.Host)
	port := strings.TrimSpace(c.Port)
	return net.JoinHostPort(host, port)
}

// BlobStoreConfigured reports whether uploaded images can be persisted to
// Azure. When false, transcriptions are stored with an empty image URL.
func (c *Config) BlobStoreConfigured() bool {
	return c.AzureAccountName != "" && c.AzureAccountKey != "" && c.AzureContainer != ""
}

func LoadFromEnv() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := &Config{
		Host:               getEnvOrDefault("HOST", "0.0.0.0"),
		Port:               getEnvOrDefault("PORT", "8080"),
		RequestTimeout:     parseDurationOrDefault("REQUEST_TIMEOUT", 120*time.Second),
		ImageFetchTimeout:  parseDurationOrDefault("IMAGE_FETCH_TIMEOUT", 15*time.Second),
		VisionTimeout:      parseDurationOrDefault("VISION_TIMEOUT", 60*time.Second),
		GenerationTimeout:  parseDurationOrDefault("GENERATION_TIMEOUT", 60*time.Second),
		TranslationTimeout: parseDurationOrDefault("TRANSLATION_TIMEOUT", 20*time.Second),
		MaxRequestBodySize: parseIntOrDefault("MAX_REQUEST_BODY_SIZE", 10*1024*1024), // 10MB

		ModelEndpoint: os.Getenv("MODEL_ENDPOINT"),
		ModelAPIKey:   os.Getenv("MODEL_API_KEY"),
		VisionModel:   getEnvOrDefault("VISION_MODEL", "vision-default"),
		TextModel:     getEnvOrDefault("TEXT_MODEL", "text-default"),

		TranslationEndpoint: os.Getenv("TRANSLATION_ENDPOINT"),
		TargetLanguage:      getEnvOrDefault("TARGET_LANGUAGE", "pt"),

		BadgerPath: getEnvOrDefault("BADGER_PATH", "./data/records"),

		AzureAccountName: os.Getenv("AZURE_ACCOUNT_NAME"),
		AzureAccountKey:  os.Getenv("AZURE_ACCOUNT_KEY"),
		AzureContainer:   getEnvOrDefault("AZURE_CONTAINER", "uploads"),

		JWTSecret:     os.Getenv("JWT_SECRET"),
		TokenDuration: parseDurationOrDefault("TOKEN_DURATION", 24*time.Hour),
		Users:         parseUsers(os.Getenv("USERS")),

		DailyRequestCap:  int(parseIntOrDefault("DAILY_REQUEST_CAP", 50)),
		MinRequestDelay:  parseDurationOrDefault("MIN_REQUEST_DELAY", 10*time.Second),
		AnalysisCacheTTL: parseDurationOrDefault("ANALYSIS_CACHE_TTL", 24*time.Hour),
	}

	p, err := strconv.Atoi(strings.TrimSpace(cfg.Port))
	if err != nil || p < 1 || p > 65535 {
		return nil, fmt.Errorf("invalid PORT: %q", cfg.Port)
	}
	if cfg.MaxRequestBodySize <= 0 {
		return nil, fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0 (got %d)", cfg.MaxRequestBodySize)
	}
	if cfg.ModelEndpoint == "" {
		return nil, fmt.Errorf("MODEL_ENDPOINT is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.RequestTimeout <= 0 || cfg.ImageFetchTimeout <= 0 || cfg.VisionTimeout <= 0 ||
		cfg.GenerationTimeout <= 0 || cfg.TranslationTimeout <= 0 {
		return nil, fmt.Errorf("timeouts must be > 0")
	}
	if cfg.DailyRequestCap <= 0 {
		return nil, fmt.Errorf("DAILY_REQUEST_CAP must be > 0 (got %d)", cfg.DailyRequestCap)
	}
	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil && duration > 0 {
			return duration
		}
	}
	return defaultValue
}

func parseIntOrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func parseUsers(raw string) map[string]string {
	users := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, pass, ok := strings.Cut(pair, ":")
		if !ok || name == "" {
			continue
		}
		users[name] = pass
	}
	return users
}
