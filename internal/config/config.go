// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jason-s-yu/pairline/internal/models"
	"github.com/jason-s-yu/pairline/internal/protocol"
	"github.com/jason-s-yu/pairline/internal/session"
	"github.com/sirupsen/logrus"
)

// Config is everything the server and the historian read from the
// environment. A .env file is loaded by the binaries through godotenv.
type Config struct {
	Port           string
	LogLevel       string
	AllowedOrigins []string

	// hub tuning
	AutoRequeueSurvivor bool
	AvoidSameGuest      bool
	MaxTextLen          int
	ReceiptCap          int
	OutboxSize          int
	RoomIdleTimeout     time.Duration
	RoomIdleModes       []models.Mode

	// guest identity cookie
	GuestTokenTTL time.Duration
	GuestKeyPath  string
	CookieSecure  bool

	// lifecycle records; an empty RedisAddr disables publishing
	RedisAddr      string
	RedisDB        int
	LifecycleQueue string

	// historian
	DatabaseURL    string
	HistorianBatch int
	HistorianFlush time.Duration
}

// DefaultLifecycleQueue is the redis list room records are pushed to.
const DefaultLifecycleQueue = "pairline_room_events"

// Load reads the configuration from the environment. Every malformed value
// is reported, not just the first.
func Load() (Config, error) {
	var r reader
	c := Config{
		Port:           r.str("PORT", "8080"),
		LogLevel:       r.str("LOG_LEVEL", "info"),
		AllowedOrigins: r.list("ALLOWED_ORIGINS"),

		AutoRequeueSurvivor: r.boolean("AUTO_REQUEUE_SURVIVOR", false),
		AvoidSameGuest:      r.boolean("AVOID_SAME_GUEST", true),
		MaxTextLen:          r.integer("MAX_TEXT_LEN", protocol.DefaultLimits.MaxTextLen),
		ReceiptCap:          r.integer("RECEIPT_CAP", session.DefaultReceiptCap),
		OutboxSize:          r.integer("OUTBOX_SIZE", session.DefaultOutboxSize),
		RoomIdleTimeout:     r.duration("ROOM_IDLE_TIMEOUT", 30*time.Minute),
		RoomIdleModes:       r.modes("ROOM_IDLE_MODES", models.ModeGame),

		GuestTokenTTL: r.duration("GUEST_TOKEN_TTL", 30*24*time.Hour),
		GuestKeyPath:  r.str("GUEST_KEY_PATH", ""),
		CookieSecure:  r.boolean("COOKIE_SECURE", false),

		RedisAddr:      r.str("REDIS_ADDR", ""),
		RedisDB:        r.integer("REDIS_DB", 0),
		LifecycleQueue: r.str("LIFECYCLE_QUEUE_NAME", DefaultLifecycleQueue),

		DatabaseURL:    r.str("DATABASE_URL", postgresURL()),
		HistorianBatch: r.integer("HISTORIAN_BATCH_SIZE", 50),
		HistorianFlush: time.Duration(r.integer("HISTORIAN_FLUSH_MS", 1000)) * time.Millisecond,
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		r.errs = append(r.errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if err := errors.Join(r.errs...); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Addr is the listen address for Port.
func (c Config) Addr() string { return ":" + c.Port }

// Level returns the parsed log level, falling back to info.
func (c Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Session returns the hub configuration.
func (c Config) Session() session.Config {
	limits := protocol.DefaultLimits
	if c.MaxTextLen > 0 {
		limits.MaxTextLen = c.MaxTextLen
	}
	return session.Config{
		AutoRequeueSurvivor: c.AutoRequeueSurvivor,
		AvoidSameGuest:      c.AvoidSameGuest,
		ReceiptCap:          c.ReceiptCap,
		OutboxSize:          c.OutboxSize,
		IdleModes:           c.RoomIdleModes,
		Limits:              limits,
	}
}

// postgresURL builds a connection string from the POSTGRES_*/PG_* variables
// when any of them is set.
func postgresURL() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("PG_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		host,
		port,
		os.Getenv("PG_DATABASE"),
	)
}

// reader collects parse errors while reading variables.
type reader struct {
	errs []error
}

func (r *reader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func (r *reader) modes(key string, def ...models.Mode) []models.Mode {
	names := r.list(key)
	if names == nil {
		return def
	}
	out := make([]models.Mode, 0, len(names))
	for _, n := range names {
		m, err := models.ParseMode(n)
		if err != nil {
			r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
			continue
		}
		out = append(out, m)
	}
	return out
}

func (r *reader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return i
}

func (r *reader) boolean(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}

// duration accepts Go durations; "0" and "never" mean disabled.
func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	switch v {
	case "":
		return def
	case "0", "never":
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
