package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port    string
	DBPath  string
	Workers int
	// CORSOrigins lists browser origins allowed to call the API; "*" allows any.
	CORSOrigins []string

	Search SearchConfig
	Jobs   JobsConfig
	Quota  QuotaConfig
	Source SourceConfig
}

// SearchConfig bounds a single search run.
type SearchConfig struct {
	Concurrency    int
	MaxChannels    int
	MaxKeywords    int
	MaxDaysWindow  int
	Throttle       time.Duration
	DedupCeiling   int
	DedupThreshold float64
	DedupPrefix    int
}

type JobsConfig struct {
	TTL        time.Duration
	GCInterval time.Duration
	MaxJobs    int
}

type QuotaConfig struct {
	MaxDailyRuns  int
	Backend       string // "sqlite" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

type SourceConfig struct {
	BaseURL   string
	UserAgent string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env", "error", err)
	}

	return Config{
		Port:        getEnv("PORT", "8080"),
		DBPath:      getEnv("DB_PATH", "tgsearch.db"),
		Workers:     getEnvInt("WORKERS", 2),
		CORSOrigins: getEnvList("CORS_ORIGINS", "*"),
		Search: SearchConfig{
			Concurrency:    getEnvInt("SEARCH_CONCURRENCY", 4),
			MaxChannels:    getEnvInt("MAX_CHANNELS", 30),
			MaxKeywords:    getEnvInt("MAX_KEYWORDS", 7),
			MaxDaysWindow:  getEnvInt("MAX_DAYS_WINDOW", 60),
			Throttle:       getEnvDuration("THROTTLE", 50*time.Millisecond),
			DedupCeiling:   getEnvInt("DEDUP_CEILING", 1500),
			DedupThreshold: getEnvFloat("DEDUP_THRESHOLD", 0.95),
			DedupPrefix:    getEnvInt("DEDUP_PREFIX", 24),
		},
		Jobs: JobsConfig{
			TTL:        getEnvDuration("JOB_TTL", 30*time.Minute),
			GCInterval: getEnvDuration("GC_INTERVAL", time.Minute),
			MaxJobs:    getEnvInt("MAX_JOBS", 500),
		},
		Quota: QuotaConfig{
			MaxDailyRuns:  getEnvInt("MAX_DAILY_RUNS", 5),
			Backend:       getEnv("QUOTA_BACKEND", "sqlite"),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
		},
		Source: SourceConfig{
			BaseURL:   getEnv("TG_WEB_URL", "https://t.me"),
			UserAgent: getEnv("TG_USER_AGENT", ""),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList splits a comma separated value, dropping empty items.
func getEnvList(key, fallback string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, fallback), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
