package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionSecret string
	SessionMaxAge int

	// Rate Limit（リクエスト数/分）
	RateLimitGeneral int
	RateLimitAI      int

	// AI（GoogleAPIKeyが空の場合はAI機能を無効にする）
	GoogleAPIKey       string
	AIModel            string
	AITimeout          time.Duration
	AIMaxAttempts      int
	SpeechLanguage     string
	TranscribeMaxBytes int64

	// Calendar
	CalendarRedirectURL string
	CalendarTimeZone    string

	// Statistics
	StatsLocation *time.Location

	// Cleanup
	SessionCleanupGraceDays int
	SessionCleanupInterval  time.Duration

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS（カンマ区切りで複数指定可）
	CORSAllowedOrigin string
}

// AIEnabled はAI機能が有効かを返す。
func (c *Config) AIEnabled() bool {
	return c.GoogleAPIKey != ""
}

// Load は環境変数からConfigを読み込む。
// .envファイルがあれば先に読み込むが、既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envは任意
	_ = godotenv.Load()

	cfg := &Config{}

	required := []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"GOOGLE_CLIENT_ID", &cfg.GoogleClientID},
		{"GOOGLE_CLIENT_SECRET", &cfg.GoogleClientSecret},
		{"GOOGLE_REDIRECT_URL", &cfg.GoogleRedirectURL},
		{"SESSION_SECRET", &cfg.SessionSecret},
		{"BASE_URL", &cfg.BaseURL},
	}
	var missing []string
	for _, r := range required {
		*r.dst = strings.TrimSpace(os.Getenv(r.key))
		if *r.dst == "" {
			missing = append(missing, r.key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if u, err := url.Parse(cfg.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("BASE_URL must be an absolute http(s) URL: %q", cfg.BaseURL)
	}

	// Optional fields with defaults
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 86400)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAI = getEnvInt("RATE_LIMIT_AI", 20)
	cfg.GoogleAPIKey = getEnvString("GOOGLE_API_KEY", "")
	cfg.AIModel = getEnvString("AI_MODEL", "gemini-pro")
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 20*time.Second)
	cfg.AIMaxAttempts = getEnvInt("AI_MAX_ATTEMPTS", 1)
	cfg.SpeechLanguage = getEnvString("SPEECH_LANGUAGE", "en-US")
	cfg.TranscribeMaxBytes = getEnvInt64("TRANSCRIBE_MAX_BYTES", 10<<20)
	cfg.CalendarRedirectURL = getEnvString("CALENDAR_REDIRECT_URL",
		strings.TrimRight(cfg.BaseURL, "/")+"/api/calendar/callback")
	cfg.CalendarTimeZone = getEnvString("CALENDAR_TIME_ZONE", "UTC")
	cfg.SessionCleanupGraceDays = getEnvInt("SESSION_CLEANUP_GRACE_DAYS", 7)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", time.Hour)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	tz := getEnvString("STATS_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid STATS_TIMEZONE %q: %w", tz, err)
	}
	cfg.StatsLocation = loc

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		warnInvalid(key, v, defaultVal)
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		warnInvalid(key, v, defaultVal)
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		warnInvalid(key, v, defaultVal)
		return defaultVal
	}
	return d
}

// warnInvalid は解析できない値を既定値で置き換えたことを記録する。
func warnInvalid(key, value string, defaultVal any) {
	slog.Warn("invalid environment variable, using default",
		slog.String("key", key),
		slog.String("value", value),
		slog.Any("default", defaultVal),
	)
}
