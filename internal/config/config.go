package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"todo_backend/internal/logger"

	"github.com/joho/godotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	AppPort    string
	AppVersion string

	StoreDriver    string
	DatabaseURL    string
	SQLitePath     string
	MigrateOnStart bool

	// Redis is optional. Without it there is no list cache or cross-instance
	// fan-out, and rate limiting is per process.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	APIRateLimit  int
	APIRateWindow time.Duration

	AllowedOrigin string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	LogLevel string
	LogJSON  bool
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	cfg, err := FromEnv(os.Getenv)
	if err != nil {
		logger.Fatal("invalid configuration", "error", err)
	}
	return cfg
}

// FromEnv builds a Config from getenv, applying defaults.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		AppPort:        orDefault(getenv("APP_PORT"), "8080"),
		AppVersion:     orDefault(getenv("APP_VERSION"), "dev"),
		DatabaseURL:    getenv("DATABASE_URL"),
		SQLitePath:     orDefault(getenv("SQLITE_PATH"), "todos.sqlite3"),
		MigrateOnStart: getenv("MIGRATE_ON_START") != "false",
		RedisAddr:      getenv("REDIS_ADDR"),
		RedisPassword:  getenv("REDIS_PASSWORD"),
		AllowedOrigin:  getenv("ALLOWED_ORIGIN"),
		LogLevel:       orDefault(getenv("LOG_LEVEL"), "info"),
		LogJSON:        getenv("LOG_JSON") == "true",
		APIRateLimit:   120,
	}

	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(getenv("STORE_DRIVER")))
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = StoreMemory
		if cfg.DatabaseURL != "" {
			cfg.StoreDriver = StorePostgres
		}
	}
	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	if v := getenv("REDIS_DB"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB: %w", err)
		}
		cfg.RedisDB = n
	}
	if v := getenv("REDIS_URL"); v != "" {
		addr, password, db, err := parseRedisURL(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_URL: %w", err)
		}
		cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB = addr, password, db
	}

	if v := getenv("API_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("API_RATE_LIMIT must be a positive integer, got %q", v)
		}
		cfg.APIRateLimit = n
	}

	durations := []struct {
		env string
		def time.Duration
		dst *time.Duration
	}{
		{"CACHE_TTL", 60 * time.Second, &cfg.CacheTTL},
		{"API_RATE_WINDOW", time.Minute, &cfg.APIRateWindow},
		{"HTTP_READ_TIMEOUT", 10 * time.Second, &cfg.ReadTimeout},
		{"HTTP_WRITE_TIMEOUT", 10 * time.Second, &cfg.WriteTimeout},
		{"HTTP_IDLE_TIMEOUT", 60 * time.Second, &cfg.IdleTimeout},
	}
	for _, d := range durations {
		*d.dst = d.def
		v := getenv(d.env)
		if v == "" {
			continue
		}
		parsed, err := ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", d.env, err)
		}
		*d.dst = parsed
	}

	return cfg, nil
}

// RedisEnabled reports whether a Redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// ParseDuration parses "10s", "5m" or a bare number of seconds ("10" -> 10s).
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	// Strip optional surrounding quotes: "10s" or '10s'
	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("duration must be like 10s, 5m or a number of seconds: %w", err)
	}
	return d, nil
}

// parseRedisURL extracts host:port, password and DB from redis:// or rediss:// URL.
func parseRedisURL(s string) (addr, password string, db int, err error) {
	u, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", "", 0, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return "", "", 0, fmt.Errorf("scheme must be redis or rediss, got %q", u.Scheme)
	}
	addr = u.Host
	if addr == "" {
		return "", "", 0, fmt.Errorf("missing host in Redis URL")
	}
	if u.User != nil {
		password, _ = u.User.Password()
	}
	if len(u.Path) > 1 {
		db, err = strconv.Atoi(strings.TrimPrefix(u.Path, "/"))
		if err != nil {
			return "", "", 0, fmt.Errorf("invalid db index %q", u.Path)
		}
	}
	return addr, password, db, nil
}
