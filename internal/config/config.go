// Package config provides centralized configuration for the readtrack server.
// Values come from environment variables with sensible defaults. A .env.local
// file and an optional YAML file (CONFIG_FILE) can supply values that are not
// already set in the real environment.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// PrettyLog selects the colored console encoder instead of JSON.
	PrettyLog bool

	// ContentAPIURL is the base URL of the remote content service.
	// When empty the built-in stub content is served.
	ContentAPIURL string

	// ContentAPITimeout bounds each content service request.
	ContentAPITimeout time.Duration

	// RedisAddr enables the Redis content cache when set.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// CacheTTL is how long content responses stay cached.
	CacheTTL time.Duration

	// PrefetchInterval is how often manifests are re-warmed. Zero disables prefetching.
	PrefetchInterval time.Duration

	// SessionIdleTimeout evicts reading sessions without activity.
	SessionIdleTimeout time.Duration

	// Scroll completion policy.
	DoneThresholdPx      float64
	MinScrollYToComplete float64
	MinOverflowToScroll  float64

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// ShareBaseURL is the public site used to build share links.
	ShareBaseURL string

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults.
func Load() Config {
	loadEnvFile(".env.local")
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAMLFile(path); err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
		}
	}

	return Config{
		Port:                 envOr("PORT", "8080"),
		DBPath:               envOr("DB_PATH", "readtrack.db"),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		PrettyLog:            envBool("LOG_PRETTY", false),
		ContentAPIURL:        strings.TrimRight(os.Getenv("CONTENT_API_URL"), "/"),
		ContentAPITimeout:    envDuration("CONTENT_API_TIMEOUT", 15*time.Second),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              envInt("REDIS_DB", 0),
		CacheTTL:             envDuration("CACHE_TTL", 10*time.Minute),
		PrefetchInterval:     envDuration("PREFETCH_INTERVAL", 30*time.Minute),
		SessionIdleTimeout:   envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
		DoneThresholdPx:      envFloat("READ_DONE_THRESHOLD_PX", 32),
		MinScrollYToComplete: envFloat("READ_MIN_SCROLL_Y", 24),
		MinOverflowToScroll:  envFloat("READ_MIN_OVERFLOW", 80),
		CORSOrigin:           envOr("CORS_ORIGIN", "*"),
		ShareBaseURL:         strings.TrimRight(envOr("SHARE_BASE_URL", "https://recodelog.com"), "/"),
		ShutdownTimeout:      envDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

// UseContentStub returns true when no content service URL is configured.
func (c Config) UseContentStub() bool {
	return c.ContentAPIURL == ""
}

// UseRedisCache returns true when a Redis address is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisAddr != ""
}

// loadEnvFile reads KEY=VALUE lines into the process environment.
// Variables already present in the environment are left alone.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = unquote(strings.TrimSpace(val))
		setDefault(key, val)
	}
}

// loadYAMLFile reads a flat YAML mapping of environment keys to values.
// Like loadEnvFile, it never overrides the real environment.
func loadYAMLFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var values map[string]interface{}
	if err := yaml.Unmarshal(b, &values); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	for k, v := range values {
		if v == nil {
			continue
		}
		setDefault(strings.ToUpper(k), fmt.Sprint(v))
	}
	return nil
}

func setDefault(key, val string) {
	if key == "" {
		return
	}
	if _, exists := os.LookupEnv(key); exists {
		return
	}
	os.Setenv(key, val)
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
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

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
