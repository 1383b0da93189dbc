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
	HTTPAddr    string // API
	OpsAddr     string // /healthz, /metrics
	LogLevel    string
	Env         string // dev|prod
	SentryDSN   string
	Release     string

	JWTSecret string
	JWTTTL    time.Duration

	AllowedEmailDomains []string // пусто — любой домен
	PasswordMinLen      int

	BotToken            string // пусто — уведомления только в лог
	InviteReminderAfter time.Duration
	ReminderInterval    time.Duration
}

func Load() (*Config, error) {
	jwtTTL, err := getDuration("JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	remindAfter, err := getDuration("INVITE_REMINDER_AFTER", 48*time.Hour)
	if err != nil {
		return nil, err
	}
	remindEvery, err := getDuration("REMINDER_INTERVAL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	minLen, err := getInt("PASSWORD_MIN_LEN", 8)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL: mustEnv("DATABASE_URL"),
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		OpsAddr:     getenv("OPS_ADDR", ":9090"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Env:         getenv("ENV", "dev"),
		SentryDSN:   os.Getenv("SENTRY_DSN"),
		Release:     getenv("RELEASE", "dev"),

		JWTSecret: mustEnv("JWT_SECRET"),
		JWTTTL:    jwtTTL,

		AllowedEmailDomains: parseList(os.Getenv("ALLOWED_EMAIL_DOMAINS")),
		PasswordMinLen:      minLen,

		BotToken:            os.Getenv("BOT_TOKEN"),
		InviteReminderAfter: remindAfter,
		ReminderInterval:    remindEvery,
	}
	return cfg, nil
}

// LoadDB — только то, что нужно lmsctl: строка подключения и уровень логов.
func LoadDB() (*Config, error) {
	return &Config{
		DatabaseURL: mustEnv("DATABASE_URL"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		Env:         getenv("ENV", "dev"),
	}, nil
}

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

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", k, d)
	}
	return d, nil
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

// parseList — значения через запятую или пробел, в нижнем регистре.
func parseList(s string) []string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.ToLower(strings.TrimPrefix(p, "@")))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
