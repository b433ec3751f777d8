package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	DatabaseURL string
	HTTPAddr    string
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Release     string
	Location    *time.Location
	AppBaseURL  string
	PublicURL   string // адрес самого API, из него строятся ссылки на вложения

	JWTSecret  string
	JWTIssuer  string
	SessionTTL time.Duration

	RedisAddr     string
	RedisPassword string

	MongoURI string
	MongoDB  string

	SMTPHost          string
	SMTPPort          int
	SMTPEmail         string
	SMTPPassword      string
	NotifyEndpointURL string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	CORSOrigins []string

	BotToken     string
	AdminChatIDs []int64
}

func Load() (*Config, error) {
	tz := getenv("TZ", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	adminIDs, err := parseIDs(os.Getenv("ADMIN_CHAT_IDS"))
	if err != nil {
		return nil, fmt.Errorf("ADMIN_CHAT_IDS: %w", err)
	}
	ttl, err := time.ParseDuration(getenv("SESSION_TTL", "72h"))
	if err != nil {
		return nil, fmt.Errorf("SESSION_TTL: %w", err)
	}
	port, err := strconv.Atoi(getenv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}

	cfg := &Config{
		DatabaseURL: mustEnv("DATABASE_URL"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Env:         getenv("ENV", "dev"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Release:     os.Getenv("RELEASE"),
		Location:    loc,
		AppBaseURL:  strings.TrimRight(getenv("APP_BASE_URL", "http://localhost:5173"), "/"),
		PublicURL:   strings.TrimRight(getenv("PUBLIC_URL", "http://localhost:8080"), "/"),

		JWTSecret:  mustEnv("JWT_SECRET"),
		JWTIssuer:  getenv("JWT_ISSUER", "edubridge"),
		SessionTTL: ttl,

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		MongoURI: os.Getenv("MONGO_URI"),
		MongoDB:  getenv("MONGO_DB", "edubridge"),

		SMTPHost:          getenv("SMTP_HOST", "smtp.gmail.com"),
		SMTPPort:          port,
		SMTPEmail:         os.Getenv("SMTP_EMAIL"),
		SMTPPassword:      os.Getenv("SMTP_PASSWORD"),
		NotifyEndpointURL: os.Getenv("NOTIFY_ENDPOINT_URL"),

		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  os.Getenv("GOOGLE_REDIRECT_URL"),

		CORSOrigins: parseList(getenv("CORS_ORIGINS", "*")),

		BotToken:     os.Getenv("BOT_TOKEN"),
		AdminChatIDs: adminIDs,
	}
	return cfg, nil
}

// GoogleEnabled reports whether federated sign-in can be offered.
func (c *Config) GoogleEnabled() bool { return c.GoogleClientID != "" }

func mustEnv(k string) string {
	v := os.Getenv(k)
	if v == "" {
		panic("required env " + k + " is empty")
	}
	return v
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func parseList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("bad id %q: %w", p, err)
		}
		out = append(out, n)
	}
	return out, nil
}
