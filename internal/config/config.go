package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config carries everything the scraper daemon reads from the environment.
type Config struct {
	AppEnv string

	// Postgres
	PGHost     string
	PGPort     string
	PGUser     string
	PGPassword string
	PGDatabase string
	PGMaxConns int

	// Scheduler
	MaxConcurrentJobs   int
	PollInterval        time.Duration
	WorkflowConcurrency int
	CronEnabled         bool
	CronExpression      string
	Timezone            string
	RateLimit           time.Duration
	MaxRetries          int
	RetryDelayMinutes   int
	StaleJobTimeout     time.Duration

	// Scrape clients
	PageLoaderTimeout time.Duration
	ExtractorURL      string
	ExtractorAPIKey   string
	ExtractorModel    string

	// Ops HTTP surface
	OpsPort int
}

// Load reads the environment and applies defaults. Missing optional variables
// never fail; the DSN is validated by the first connection attempt.
func Load() *Config {
	return &Config{
		AppEnv: getEnv("APP_ENV", "development"),

		PGHost:     getEnv("PG_HOST", "localhost"),
		PGPort:     getEnv("PG_PORT", "5432"),
		PGUser:     getEnv("PG_USER", "postgres"),
		PGPassword: getEnv("PG_PASSWORD", ""),
		PGDatabase: getEnv("PG_DB", "fleetdb"),
		PGMaxConns: getEnvInt("PG_MAX_CONNS", 20),

		MaxConcurrentJobs:   getEnvInt("SCRAPER_CONCURRENT_LIMIT", 3),
		PollInterval:        getEnvMillis("SCRAPER_POLL_INTERVAL_MS", 5000),
		WorkflowConcurrency: getEnvInt("SCRAPER_WORKFLOW_CONCURRENCY", 5),
		CronEnabled:         getEnvBool("SCRAPER_SCHEDULE_ENABLED", false),
		CronExpression:      getEnv("SCRAPER_SCHEDULE_CRON", "0 2 * * *"),
		Timezone:            getEnv("SCRAPER_TIMEZONE", "UTC"),
		RateLimit:           getEnvMillis("SCRAPER_RATE_LIMIT_MS", 2000),
		MaxRetries:          getEnvInt("SCRAPER_MAX_RETRIES", 3),
		RetryDelayMinutes:   getEnvInt("SCRAPER_RETRY_DELAY_MINUTES", 30),
		StaleJobTimeout:     time.Duration(getEnvInt("SCRAPER_STALE_JOB_TIMEOUT_MINUTES", 60)) * time.Minute,

		PageLoaderTimeout: getEnvMillis("PAGE_LOADER_TIMEOUT_MS", 30000),
		ExtractorURL:      getEnv("EXTRACTOR_URL", ""),
		ExtractorAPIKey:   getEnv("EXTRACTOR_API_KEY", ""),
		ExtractorModel:    getEnv("EXTRACTOR_MODEL", "gpt-4o-mini"),

		OpsPort: getEnvInt("OPS_PORT", 8080),
	}
}

// DSN renders the Postgres connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvMillis(key string, fallback int) time.Duration {
	return time.Duration(getEnvInt(key, fallback)) * time.Millisecond
}
