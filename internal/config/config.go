package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

type Config struct {
	Env        string
	LogLevel   string
	ServerAddr string

	MongoURI string
	MongoDB  string

	RedisURL        string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CacheTTLSeconds int

	FrontendOrigins []string

	AdminAPIKey       string
	AdminUser         string
	AdminPasswordHash string
	JWTSecret         string
	AccessTTLMinutes  int
	RefreshTTLMinutes int
	CookieSecure      bool

	Timezone *time.Location

	HistoryDebounce   time.Duration
	HistoryLimit      int
	SessionTTLMinutes int
	SessionSweepSpec  string
	CMSDefaultRole    string

	ContentDir         string
	UploadDir          string
	UploadPublicPrefix string
	UploadMaxMB        int

	RateLimitUploads   int
	RateLimitLogin     int
	RateLimitWindowSec int

	BrevoAPIKey      string
	BrevoSenderEmail string
	BrevoSenderName  string
	BrevoSandbox     bool
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, fallback), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Load reads the configuration from the environment after applying
// .env.local and .env. Variables already set in the environment win.
func Load() (*Config, error) {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(name)
	}
	loc, err := time.LoadLocation(getEnv("TZ", "Europe/Berlin"))
	if err != nil {
		return nil, err
	}

	mongoURI := getEnv("MONGO_URI", "mongodb://localhost:27017/casehub")
	mongoDB := getEnv("MONGO_DB", "")
	if mongoDB == "" {
		mongoDB = mongoDBFromURI(mongoURI)
	}
	if mongoDB == "" {
		mongoDB = "casehub"
	}

	cfg := &Config{
		Env:                getEnv("APP_ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		ServerAddr:         getEnv("SERVER_ADDR", ":8080"),
		MongoURI:           mongoURI,
		MongoDB:            mongoDB,
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CacheTTLSeconds:    getEnvInt("CACHE_TTL_SECONDS", 60),
		FrontendOrigins:    getEnvList("FRONTEND_ORIGINS", "http://localhost:3000"),
		AdminAPIKey:        getEnv("ADMIN_API_KEY", ""),
		AdminUser:          getEnv("ADMIN_USER", "admin"),
		AdminPasswordHash:  getEnv("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AccessTTLMinutes:   getEnvInt("ACCESS_TTL_MINUTES", 15),
		RefreshTTLMinutes:  getEnvInt("REFRESH_TTL_MINUTES", 43200),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),
		Timezone:           loc,
		HistoryDebounce:    time.Duration(getEnvInt("HISTORY_DEBOUNCE_MS", 300)) * time.Millisecond,
		HistoryLimit:       getEnvInt("HISTORY_LIMIT", 75),
		SessionTTLMinutes:  getEnvInt("SESSION_TTL_MINUTES", 480),
		SessionSweepSpec:   getEnv("SESSION_SWEEP_SPEC", "@every 1m"),
		CMSDefaultRole:     getEnv("CMS_DEFAULT_ROLE", "Admin"),
		ContentDir:         getEnv("CONTENT_DIR", "./content"),
		UploadDir:          getEnv("UPLOAD_DIR", "./public/media"),
		UploadPublicPrefix: getEnv("UPLOAD_PUBLIC_PREFIX", "/media"),
		UploadMaxMB:        getEnvInt("UPLOAD_MAX_MB", 25),
		RateLimitUploads:   getEnvInt("RATE_LIMIT_UPLOADS", 30),
		RateLimitLogin:     getEnvInt("RATE_LIMIT_LOGIN", 10),
		RateLimitWindowSec: getEnvInt("RATE_LIMIT_WINDOW_SEC", 60),
		BrevoAPIKey:        getEnv("BREVO_API_KEY", ""),
		BrevoSenderEmail:   getEnv("BREVO_SENDER_EMAIL", ""),
		BrevoSenderName:    getEnv("BREVO_SENDER_NAME", "CaseHub CMS"),
		BrevoSandbox:       getEnvBool("BREVO_SANDBOX", false),
	}

	if cfg.Env == "production" && cfg.AdminAPIKey == "" && cfg.JWTSecret == "" {
		return nil, errors.New("production requires ADMIN_API_KEY or JWT_SECRET")
	}
	if _, err := cron.ParseStandard(cfg.SessionSweepSpec); err != nil {
		return nil, fmt.Errorf("SESSION_SWEEP_SPEC: %w", err)
	}
	return cfg, nil
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

func mongoDBFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return ""
	}
	db := strings.Trim(u.Path, "/")
	if db == "" {
		return ""
	}
	if idx := strings.Index(db, "/"); idx >= 0 {
		db = db[:idx]
	}
	return db
}
