package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	HTTPAddr    string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	PayHere   PayHereConfig
	Email     EmailConfig
	RateLimit RateLimitConfig

	// WebhookTimeout bounds the full notification handling path so the
	// gateway's own retry window is never exceeded.
	WebhookTimeout time.Duration
	// NotifyTimeout bounds each best-effort email send independently of the
	// HTTP response.
	NotifyTimeout time.Duration
}

type PayHereConfig struct {
	MerchantID     string
	MerchantSecret string
	AppID          string
	AppSecret      string
	Sandbox        bool
	BaseURL        string

	ReturnURL string
	CancelURL string
	NotifyURL string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	PublicRate  float64
	PublicBurst int
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("ENVIRONMENT", "development")

	cfg := Config{
		AppName:           getenv("APP_SERVICE", "entrypay"),
		AppVersion:        getenv("APP_VERSION", "0.1.0"),
		Environment:       environment,
		HTTPAddr:          getenv("HTTP_ADDR", ":8080"),
		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "entrypay"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 3600),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 600),
		PayHere: PayHereConfig{
			MerchantID:     strings.TrimSpace(getenv("PAYHERE_MERCHANT_ID", "")),
			MerchantSecret: strings.TrimSpace(getenv("PAYHERE_MERCHANT_SECRET", "")),
			AppID:          strings.TrimSpace(getenv("PAYHERE_APP_ID", "")),
			AppSecret:      strings.TrimSpace(getenv("PAYHERE_APP_SECRET", "")),
			Sandbox:        getenvBool("PAYHERE_SANDBOX", true),
			BaseURL:        strings.TrimSpace(getenv("PAYHERE_BASE_URL", "")),
			ReturnURL:      strings.TrimSpace(getenv("PAYHERE_RETURN_URL", "")),
			CancelURL:      strings.TrimSpace(getenv("PAYHERE_CANCEL_URL", "")),
			NotifyURL:      strings.TrimSpace(getenv("PAYHERE_NOTIFY_URL", "")),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", ""),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: getenv("SMTP_USERNAME", ""),
			SMTPPassword: getenv("SMTP_PASSWORD", ""),
			SMTPFrom:     getenv("SMTP_FROM", "no-reply@craftlane.lk"),
		},
		RateLimit: RateLimitConfig{
			Enabled:       getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:     strings.TrimSpace(getenv("RATE_LIMIT_REDIS_ADDR", "")),
			RedisPassword: getenv("RATE_LIMIT_REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("RATE_LIMIT_REDIS_DB", 0),
			PublicRate:    getenvFloat("RATE_LIMIT_PUBLIC_RATE", 5),
			PublicBurst:   getenvInt("RATE_LIMIT_PUBLIC_BURST", 10),
		},
		WebhookTimeout: time.Duration(getenvInt("WEBHOOK_TIMEOUT_SECONDS", 20)) * time.Second,
		NotifyTimeout:  time.Duration(getenvInt("NOTIFY_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	if cfg.PayHere.BaseURL == "" {
		if cfg.PayHere.Sandbox {
			cfg.PayHere.BaseURL = "https://sandbox.payhere.lk"
		} else {
			cfg.PayHere.BaseURL = "https://www.payhere.lk"
		}
	}

	return cfg
}

func getenv(key, def string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return def
}

func getenvInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return value
}

func getenvBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return value
}

func getenvFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return value
}
