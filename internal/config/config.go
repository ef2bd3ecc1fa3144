package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/vytor/bunpo/internal/logger"
)

// Remote drivers.
const (
	RemoteNone     = "none"
	RemoteMemory   = "memory"
	RemoteHTTP     = "http"
	RemotePostgres = "postgres"
)

type Config struct {
	Addr     string
	DBPath   string
	LogLevel string

	RemoteDriver  string
	RemoteDSN     string
	RemoteTimeout time.Duration
	RemoteRetries int
	RemoteBackoff time.Duration

	SyncWorkerCount int
	SyncQueueSize   int
	ResyncInterval  time.Duration

	DefaultDailyGoal    int
	SessionSize         int
	SegmentMinFragments int
	UseKagome           bool

	AllowedOrigins []string
	RateLimit      float64
	RateBurst      int
}

// Load reads configuration from a .env file (if present) and environment variables,
// applying sensible defaults when values are missing or invalid.
func Load() Config {
	// Ignore error so the app still starts when .env is absent in production.
	_ = godotenv.Load()

	return Config{
		Addr:     envOr("ADDR", ":8080"),
		DBPath:   envOr("DB_PATH", "file:bunpo.db"),
		LogLevel: envOr("LOG_LEVEL", "INFO"),

		RemoteDriver:  strings.ToLower(envOr("REMOTE_DRIVER", RemoteNone)),
		RemoteDSN:     envOr("REMOTE_DSN", ""),
		RemoteTimeout: envDurationOr("REMOTE_TIMEOUT", 10*time.Second),
		RemoteRetries: envIntOr("REMOTE_RETRIES", 3),
		RemoteBackoff: envDurationOr("REMOTE_BACKOFF", 500*time.Millisecond),

		SyncWorkerCount: envIntOr("SYNC_WORKER_COUNT", 2),
		SyncQueueSize:   envIntOr("SYNC_QUEUE_SIZE", 128),
		ResyncInterval:  envDurationOr("RESYNC_INTERVAL", 15*time.Minute),

		DefaultDailyGoal:    envIntOr("DEFAULT_DAILY_GOAL", 5),
		SessionSize:         envIntOr("SESSION_SIZE", 5),
		SegmentMinFragments: envIntOr("SEGMENT_MIN_FRAGMENTS", 5),
		UseKagome:           envBoolOr("USE_KAGOME", true),

		AllowedOrigins: envListOr("ALLOWED_ORIGINS", []string{"*"}),
		RateLimit:      envFloatOr("RATE_LIMIT", 10),
		RateBurst:      envIntOr("RATE_BURST", 20),
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Addr) == "" {
		problems = append(problems, "ADDR cannot be empty")
	}
	if strings.TrimSpace(c.DBPath) == "" {
		problems = append(problems, "DB_PATH cannot be empty")
	}
	if _, ok := logger.LookupLevel(c.LogLevel); !ok {
		problems = append(problems, fmt.Sprintf("LOG_LEVEL %q is not one of DEBUG, INFO, WARN, ERROR", c.LogLevel))
	}

	switch c.RemoteDriver {
	case RemoteNone, RemoteMemory:
	case RemoteHTTP, RemotePostgres:
		if c.RemoteDSN == "" {
			problems = append(problems, fmt.Sprintf("REMOTE_DSN is required for REMOTE_DRIVER=%s", c.RemoteDriver))
		}
	default:
		problems = append(problems, fmt.Sprintf("REMOTE_DRIVER %q is not one of none, memory, http, postgres", c.RemoteDriver))
	}
	if c.RemoteTimeout <= 0 {
		problems = append(problems, "REMOTE_TIMEOUT must be positive")
	}
	if c.RemoteRetries < 1 {
		problems = append(problems, "REMOTE_RETRIES must be at least 1")
	}
	if c.RemoteBackoff < 0 {
		problems = append(problems, "REMOTE_BACKOFF cannot be negative")
	}

	if c.SyncWorkerCount < 1 {
		problems = append(problems, "SYNC_WORKER_COUNT must be at least 1")
	}
	if c.SyncQueueSize < 1 {
		problems = append(problems, "SYNC_QUEUE_SIZE must be at least 1")
	}
	if c.ResyncInterval < 0 {
		problems = append(problems, "RESYNC_INTERVAL cannot be negative")
	}

	if c.DefaultDailyGoal < 1 {
		problems = append(problems, "DEFAULT_DAILY_GOAL must be at least 1")
	}
	if c.SessionSize < 1 {
		problems = append(problems, "SESSION_SIZE must be at least 1")
	}
	if c.SegmentMinFragments < 1 || c.SegmentMinFragments > 12 {
		problems = append(problems, "SEGMENT_MIN_FRAGMENTS must be between 1 and 12")
	}
	if c.RateLimit < 0 {
		problems = append(problems, "RATE_LIMIT cannot be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		problems = append(problems, "RATE_BURST must be at least 1 when RATE_LIMIT is set")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
		log.Printf("invalid value for %s=%q, using default %d", key, v, def)
	}
	return def
}

func envFloatOr(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
		log.Printf("invalid value for %s=%q, using default %g", key, v, def)
	}
	return def
}

func envBoolOr(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("invalid value for %s=%q, using default %t", key, v, def)
	}
	return def
}

func envDurationOr(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("invalid value for %s=%q, using default %s", key, v, def)
	}
	return def
}

func envListOr(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
