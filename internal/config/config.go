package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Record store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQL    = "sql"
)

// Event bus implementations.
const (
	BusMemory = "memory"
	BusRedis  = "redis"
)

// Mailers for the notification side-channel.
const (
	MailerSMTP = "smtp"
	MailerLog  = "log"
	MailerNone = "none"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline
	MaxBodyBytes    int64         // request body cap on writes

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Record store
	Store        string // memory | redis | sql
	DataFile     string // memory backend snapshot, empty = volatile
	SQLDriver    string // postgres | sqlite
	SQLDSN       string
	StrictWrites bool   // re-validate writes on the server
	SeedFile     string // optional YAML catalog loaded into an empty store

	// Pending submissions older than PendingTTL are removed every
	// SweepInterval. Zero keeps them forever.
	PendingTTL    time.Duration
	SweepInterval time.Duration

	// Change feed
	EventBus     string // memory | redis
	EventChannel string // redis pub/sub channel
	EventBuffer  int    // per-subscriber buffer of the in-process bus

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	// Notifications
	Mailer       string // smtp | log | none
	NotifyTo     string
	NotifyFrom   string
	NotifyDedup  time.Duration // window during which a repeated insert is not mailed again
	SMTPAddr     string        // host:port
	SMTPUser     string
	SMTPPassword string

	// Submission guard (server side, per IP)
	SubmitBurst       int
	SubmitRefillPerHr int

	CORSOrigins  []string // empty => any origin
	AllowedHosts []string // optional, restrict admin routes to specific Host headers
	AllowedCIDRS []string // IPs allowed on admin routes, readiness and metrics
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// Load reads the environment, after merging an optional .env file.
// Invalid settings panic with a FATAL message.
func Load() *Config {
	_ = godotenv.Load() // ok if missing

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("AIMARKET_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("AIMARKET_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("AIMARKET_REQUEST_TIMEOUT", 5*time.Second),
		MaxBodyBytes:    int64(getenvInt("AIMARKET_MAX_BODY_BYTES", 64<<10)),

		// Logging
		LogLevel:  getenv("AIMARKET_LOG_LEVEL", "info"),
		PrettyLog: mustBool("AIMARKET_PRETTY_LOG", true),

		// Record store
		Store:        requireOneOf("AIMARKET_STORE", StoreMemory, StoreMemory, StoreRedis, StoreSQL),
		DataFile:     getenv("AIMARKET_DATA_FILE", ""),
		SQLDriver:    getenv("AIMARKET_SQL_DRIVER", "sqlite"),
		SQLDSN:       getenv("AIMARKET_SQL_DSN", "file:aimarket.db"),
		StrictWrites: mustBool("AIMARKET_STRICT_WRITES", true),
		SeedFile:     getenv("AIMARKET_SEED_FILE", ""),

		PendingTTL:    mustDuration("AIMARKET_PENDING_TTL", 0),
		SweepInterval: mustDuration("AIMARKET_SWEEP_INTERVAL", time.Hour),

		// Change feed
		EventBus:     requireOneOf("AIMARKET_EVENT_BUS", BusMemory, BusMemory, BusRedis),
		EventChannel: getenv("AIMARKET_EVENT_CHANNEL", "aimarket:events:listings"),
		EventBuffer:  getenvInt("AIMARKET_EVENT_BUFFER", 64),

		// Redis settings
		RedisAddr:             getenv("AIMARKET_REDIS_ADDR", ""),
		RedisUser:             getenv("AIMARKET_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("AIMARKET_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("AIMARKET_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("AIMARKET_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Notifications
		Mailer:       requireOneOf("AIMARKET_MAILER", MailerLog, MailerSMTP, MailerLog, MailerNone),
		NotifyTo:     getenv("AIMARKET_NOTIFY_TO", "info@ai-marketplace.fi"),
		NotifyFrom:   getenv("AIMARKET_NOTIFY_FROM", "AI Marketplace Finland <info@ai-marketplace.fi>"),
		NotifyDedup:  mustDuration("AIMARKET_NOTIFY_DEDUP", 10*time.Minute),
		SMTPAddr:     getenv("AIMARKET_SMTP_ADDR", "localhost:25"),
		SMTPUser:     getenv("AIMARKET_SMTP_USERNAME", ""),
		SMTPPassword: getenv("AIMARKET_SMTP_PASSWORD", ""),

		// Submission guard
		SubmitBurst:       getenvInt("AIMARKET_SUBMIT_BURST", 10),
		SubmitRefillPerHr: getenvInt("AIMARKET_SUBMIT_PER_HOUR", 10),

		// Access restrictions
		CORSOrigins:  splitAndTrim(getenv("AIMARKET_CORS_ORIGINS", "*")),
		AllowedHosts: splitAndTrim(getenv("AIMARKET_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("AIMARKET_ALLOWED_CIDRS", "127.0.0.1/32,::1/128")),
		TrustProxy:   mustBool("AIMARKET_TRUST_PROXY", false),
	}

	if cfg.NeedsRedis() && cfg.RedisAddr == "" {
		panic("❌ FATAL: AIMARKET_REDIS_ADDR is required when AIMARKET_STORE or AIMARKET_EVENT_BUS is redis")
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: AIMARKET_REDIS_PASSWORD is required when AIMARKET_REDIS_PASSWORD_REQUIRED=true")
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		cfgCopy.SMTPPassword = "***REDACTED***"
		cfgCopy.SQLDSN = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// NeedsRedis reports whether any component talks to Redis.
func (c *Config) NeedsRedis() bool {
	return c.Store == StoreRedis || c.EventBus == BusRedis
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// requireOneOf returns the lower-cased value of key, def when unset,
// and panics when the value is not one of allowed.
func requireOneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(getenv(key, def)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: Invalid value for %s: %q (allowed: %s)", key, v, strings.Join(allowed, ", ")))
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
