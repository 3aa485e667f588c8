package config

import (
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
	Environment string
	JWTSecret   string
	DatabaseURL string
	RedisURL    string
	CORSOrigins []string
	AppURL      string

	AdminEmail    string
	AdminPassword string

	DeepSeekAPIKey    string
	DeepSeekBaseURL   string
	DeepSeekModel     string
	GenerationTimeout time.Duration
	GenerationRetries int
	ComplianceMode    string

	Workers           int
	ReconcileInterval time.Duration
	StaleAfter        time.Duration

	TiersFile string

	StripeSecretKey       string
	StripeWebhookSecret   string
	StripePricePro        string
	StripePriceEnterprise string

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string

	LogLevel string
	LogFile  string
}

// Production reports whether the service runs in production.
func (c *Config) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// StripeEnabled reports whether Stripe checkout is configured.
func (c *Config) StripeEnabled() bool {
	return c.StripeSecretKey != ""
}

// Load reads configuration from environment variables with sensible defaults.
// A .env file in the working directory is loaded first when present; variables
// already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return fromEnv()
}

func fromEnv() (*Config, error) {
	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	p := &parser{}
	cfg := &Config{
		Port:        p.intVar("PORT", 5000),
		Environment: getEnv("ENVIRONMENT", "development"),
		JWTSecret:   jwtSecret,
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		AppURL:      strings.TrimRight(getEnv("APP_URL", "http://localhost:3000"), "/"),

		AdminEmail:    getEnv("ADMIN_EMAIL", "admin@planix.app"),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),

		DeepSeekAPIKey:    getEnv("DEEPSEEK_API_KEY", ""),
		DeepSeekBaseURL:   getEnv("DEEPSEEK_BASE_URL", "https://api.deepseek.com"),
		DeepSeekModel:     getEnv("DEEPSEEK_MODEL", "deepseek-chat"),
		GenerationTimeout: p.durationVar("GENERATION_TIMEOUT", 30*time.Second),
		GenerationRetries: p.intVar("GENERATION_RETRIES", 2),
		ComplianceMode:    getEnv("COMPLIANCE_MODE", "text"),

		Workers:           p.intVar("WORKERS", 4),
		ReconcileInterval: p.durationVar("RECONCILE_INTERVAL", time.Minute),
		StaleAfter:        p.durationVar("STALE_AFTER", 2*time.Minute),

		TiersFile: getEnv("TIERS_FILE", ""),

		StripeSecretKey:       getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:   getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePricePro:        getEnv("STRIPE_PRICE_PRO", ""),
		StripePriceEnterprise: getEnv("STRIPE_PRICE_ENTERPRISE", ""),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Region:    getEnv("S3_REGION", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),
	}
	if p.err != nil {
		return nil, p.err
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.Workers <= 0 {
		return nil, fmt.Errorf("WORKERS must be positive, got %d", cfg.Workers)
	}
	if cfg.GenerationRetries < 0 {
		return nil, fmt.Errorf("GENERATION_RETRIES must not be negative, got %d", cfg.GenerationRetries)
	}
	if cfg.StripeEnabled() && cfg.StripeWebhookSecret == "" {
		return nil, fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	return cfg, nil
}

// parser records the first malformed value.
type parser struct {
	err error
}

func (p *parser) intVar(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n
}

func (p *parser) durationVar(key string, fallback time.Duration) time.Duration {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil && p.err == nil {
		p.err = fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
