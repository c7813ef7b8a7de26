package config

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env       string
	LogLevel  string
	LogFormat string

	Host      string
	Port      int
	StaticDir string
	CORSAllow []string

	JWTSecret string

	MailboxSize     int
	JoinTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads .env (if present) and the environment. Flags may override the
// result afterwards.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	return Config{
		Env:             getEnv("APP_ENV", "dev"),
		LogLevel:        getEnv("LOG_LEVEL", "debug"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
		Host:            getEnv("HOST", "::1"),
		Port:            getEnvInt("PORT", 8080),
		StaticDir:       getEnv("STATIC_DIR", "../dist"),
		CORSAllow:       splitCSV(getEnv("CORS_ALLOW", "*")),
		JWTSecret:       getEnv("JWT_SECRET", "dev-secret-change"),
		MailboxSize:     getEnvInt("MAILBOX_SIZE", 1000),
		JoinTimeout:     getEnvDuration("JOIN_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// Addr is the listen address, IPv6 hosts bracketed.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewLogger builds the process logger. prod and LOG_FORMAT=json log JSON,
// everything else logs text.
func NewLogger(cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}

	var handler slog.Handler
	if cfg.Env == "prod" || cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// getEnvInt parses a positive int env var with a fallback
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return def
}

func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return def
}

// splitCSV trims and filters a comma-separated list
func splitCSV(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
