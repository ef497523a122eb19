package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	// Server
	HTTPAddr       string
	AllowedOrigins []string
	LogLevel       string

	// Backend API
	APIBaseURL     string
	APITimeout     time.Duration
	APIRetries     uint64
	RefreshTimeout time.Duration
	RotationGrace  time.Duration
	LogoutTimeout  time.Duration

	// Cookies
	CookieDomain     string
	CookieSecure     bool
	AccessCookieTTL  time.Duration
	RefreshCookieTTL time.Duration

	// Redis; an empty address keeps caches in memory.
	RedisAddr string
	RedisPass string
	RedisDB   int

	QueryCacheTTL    time.Duration
	LoginMaxAttempts int64
	LoginWindow      time.Duration

	// Routing
	SignInPath     string
	ForbiddenPath  string
	LandingPath    string
	WaitRetryAfter time.Duration
	RouteRulesFile string

	Mock MockConfig
}

// MockConfig configures the development backend.
type MockConfig struct {
	Addr       string
	KeyPath    string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:       getEnv("HTTP_ADDR", ":3000"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),

		APIBaseURL:     strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/"),
		APITimeout:     getEnvDuration("API_TIMEOUT", 10*time.Second),
		APIRetries:     uint64(getEnvInt("API_RETRIES", 2)),
		RefreshTimeout: getEnvDuration("REFRESH_TIMEOUT", 10*time.Second),
		RotationGrace:  getEnvDuration("ROTATION_GRACE", 30*time.Second),
		LogoutTimeout:  getEnvDuration("LOGOUT_TIMEOUT", 5*time.Second),

		CookieDomain:     getEnv("COOKIE_DOMAIN", ""),
		CookieSecure:     getEnvBool("COOKIE_SECURE", false),
		AccessCookieTTL:  getEnvDuration("ACCESS_COOKIE_TTL", 24*time.Hour),
		RefreshCookieTTL: getEnvDuration("REFRESH_COOKIE_TTL", 7*24*time.Hour),

		RedisAddr: getEnv("REDIS_ADDR", ""),
		RedisPass: getEnv("REDIS_PASS", ""),
		RedisDB:   int(getEnvInt("REDIS_DB", 0)),

		QueryCacheTTL:    getEnvDuration("QUERY_CACHE_TTL", 30*time.Second),
		LoginMaxAttempts: getEnvInt("LOGIN_MAX_ATTEMPTS", 5),
		LoginWindow:      getEnvDuration("LOGIN_WINDOW", 15*time.Minute),

		SignInPath:     getEnv("SIGN_IN_PATH", "/sign-in"),
		ForbiddenPath:  getEnv("FORBIDDEN_PATH", "/forbidden"),
		LandingPath:    getEnv("LANDING_PATH", "/dashboard"),
		WaitRetryAfter: getEnvDuration("WAIT_RETRY_AFTER", 2*time.Second),
		RouteRulesFile: getEnv("ROUTE_RULES_FILE", ""),

		Mock: MockConfig{
			Addr:       getEnv("MOCK_API_ADDR", ":8080"),
			KeyPath:    getEnv("JWT_PRIVATE_KEY_PATH", ""),
			Issuer:     getEnv("JWT_ISSUER", "helpdesk-api"),
			AccessTTL:  getEnvDuration("MOCK_ACCESS_TTL", 15*time.Minute),
			RefreshTTL: getEnvDuration("MOCK_REFRESH_TTL", 7*24*time.Hour),
		},
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}
