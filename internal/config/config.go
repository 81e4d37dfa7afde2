package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Port        int
	BaseURL     string
	DatabaseURL string

	Prod                bool
	StripeSecretKey     string
	StripeWebhookSecret string

	ManyChatAPIKey         string
	ManyChatBaseURL        string
	ManyChatCreditsFieldID int64

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIChatModel   string
	OpenAIImageModel  string
	OpenAIImageSize   string
	OpenAITemperature float64

	HTTPClientTimeout time.Duration
	StaleJobAfter     time.Duration

	ArtifactDir       string
	ArtifactBucket    string
	ArtifactEndpoint  string
	ArtifactAccessKey string
	ArtifactSecretKey string
	ArtifactUseSSL    bool

	RedisAddr       string
	RateLimit       int
	RateLimitWindow time.Duration
}

// Load reads configuration from environment variables and validates required fields.
// A .env file in the working directory is applied first when present; real
// environment variables take precedence over it.
func Load() (Config, error) {
	cfg, err := parse()
	if err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadOperator reads the same variables without requiring the server secrets.
// Operator commands check the fields they use themselves.
func LoadOperator() (Config, error) {
	return parse()
}

func parse() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	port, err := getEnvInt("PORT", 3000)
	if err != nil {
		return Config{}, fmt.Errorf("parse PORT: %w", err)
	}

	fieldID, err := getEnvInt("MANYCHAT_CREDITS_FIELD_ID", 12880026)
	if err != nil {
		return Config{}, fmt.Errorf("parse MANYCHAT_CREDITS_FIELD_ID: %w", err)
	}

	temperature, err := getEnvFloat("OPENAI_TEMPERATURE", 0.9)
	if err != nil {
		return Config{}, fmt.Errorf("parse OPENAI_TEMPERATURE: %w", err)
	}

	httpTimeout, err := getEnvDuration("HTTP_CLIENT_TIMEOUT", 0)
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_CLIENT_TIMEOUT: %w", err)
	}

	staleAfter, err := getEnvDuration("STALE_JOB_AFTER", 30*time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse STALE_JOB_AFTER: %w", err)
	}

	useSSL, err := getEnvBool("ARTIFACT_USE_SSL", true)
	if err != nil {
		return Config{}, fmt.Errorf("parse ARTIFACT_USE_SSL: %w", err)
	}

	prod, err := getEnvBool("PROD", false)
	if err != nil {
		return Config{}, fmt.Errorf("parse PROD: %w", err)
	}

	rateLimit, err := getEnvInt("RATE_LIMIT", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse RATE_LIMIT: %w", err)
	}

	rateWindow, err := getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return Config{}, fmt.Errorf("parse RATE_LIMIT_WINDOW: %w", err)
	}

	stripePrefix := "TEST_"
	if prod {
		stripePrefix = "PROD_"
	}

	cfg := Config{
		Port:                   port,
		BaseURL:                strings.TrimRight(getEnv("BASE_URL", "http://localhost:3000"), "/"),
		DatabaseURL:            getEnv("DATABASE_URL", "file:verdict_jobs.db"),
		Prod:                   prod,
		StripeSecretKey:        getEnv(stripePrefix+"STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:    getEnv(stripePrefix+"STRIPE_WEBHOOK_SECRET", ""),
		ManyChatAPIKey:         getEnv("MANYCHAT_API_KEY", ""),
		ManyChatBaseURL:        getEnv("MANYCHAT_BASE_URL", "https://api.manychat.com"),
		ManyChatCreditsFieldID: int64(fieldID),
		OpenAIAPIKey:           getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:          getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIChatModel:        getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
		OpenAIImageModel:       getEnv("OPENAI_IMAGE_MODEL", "dall-e-3"),
		OpenAIImageSize:        getEnv("OPENAI_IMAGE_SIZE", "1024x1024"),
		OpenAITemperature:      temperature,
		HTTPClientTimeout:      httpTimeout,
		StaleJobAfter:          staleAfter,
		ArtifactDir:            getEnv("ARTIFACT_DIR", "public/images"),
		ArtifactBucket:         getEnv("ARTIFACT_BUCKET", ""),
		ArtifactEndpoint:       getEnv("ARTIFACT_ENDPOINT", ""),
		ArtifactAccessKey:      getEnv("ARTIFACT_ACCESS_KEY", ""),
		ArtifactSecretKey:      getEnv("ARTIFACT_SECRET_KEY", ""),
		ArtifactUseSSL:         useSSL,
		RedisAddr:              getEnv("REDIS_ADDR", ""),
		RateLimit:              rateLimit,
		RateLimitWindow:        rateWindow,
	}

	return cfg, nil
}

func (c Config) validate() error {
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.StripeSecretKey == "" {
		return fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if c.ManyChatAPIKey == "" {
		return fmt.Errorf("MANYCHAT_API_KEY is required")
	}
	if c.OpenAIAPIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required")
	}
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.ArtifactBucket != "" && c.ArtifactEndpoint == "" {
		return fmt.Errorf("ARTIFACT_ENDPOINT is required when ARTIFACT_BUCKET is set")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(v)
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseFloat(v, 64)
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return strconv.ParseBool(v)
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	return time.ParseDuration(v)
}
