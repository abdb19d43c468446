package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port       string
	AppEnv     string
	AppURL     string
	CORSOrigin string

	DBDriver string
	DBURL    string

	JWTSecret string

	// Tenant resolution
	PlatformDomain string
	TenantCookie   string
	RootPaths      []string
	StoreCacheTTL  time.Duration
	RedisURL       string

	// Entitlements
	DailyFreeLimit int64
	TrialDays      int
	TrialCredits   int64

	StripeSecretKey     string
	StripeWebhookSecret string
	// StripeProductID limits plan sync to one product when set.
	StripeProductID     string

	AIModelURL string

	LogLevel  string
	LogFormat string
}

// Load reads the process environment (and an optional .env file) once at startup.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found. Using system environment variables.")
	}

	cfg := Config{
		Port:       getEnv("PORT", "8080"),
		AppEnv:     getEnv("APP_ENV", "development"),
		AppURL:     getEnv("APP_URL", "http://localhost:5173"),
		CORSOrigin: getEnv("CORS_ORIGIN", ""),

		DBDriver: strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DBURL:    os.Getenv("DB_URL"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		PlatformDomain: strings.ToLower(getEnv("PLATFORM_DOMAIN", "yourplatform.com")),
		TenantCookie:   getEnv("TENANT_COOKIE", "store_slug"),
		RootPaths:      splitList(getEnv("ROOT_PATHS", "/pricing,/signup,/onboarding,/platform")),
		StoreCacheTTL:  getEnvDuration("STORE_CACHE_TTL", time.Minute),
		RedisURL:       os.Getenv("REDIS_URL"),

		DailyFreeLimit: int64(getEnvInt("DAILY_FREE_LIMIT", 3)),
		TrialDays:      getEnvInt("TRIAL_DAYS", 7),
		TrialCredits:   int64(getEnvInt("TRIAL_CREDITS", 10)),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		StripeProductID:     os.Getenv("STRIPE_PRODUCT_ID"),

		AIModelURL: os.Getenv("AI_MODEL_URL"),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c Config) validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("missing required environment variable: DB_URL")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("missing required environment variable: JWT_SECRET")
	}
	switch c.DBDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DailyFreeLimit < 0 {
		return fmt.Errorf("DAILY_FREE_LIMIT must not be negative")
	}
	return nil
}

func getEnv(key string, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
