// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, storage, tenant identities, admission limits, deduplication,
// completion settings, the admin API, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/duckbot/internal/domain"
)

// CORSConfig defines Cross-Origin Resource Sharing settings for the admin API.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// CompletionConfig configures the text-generation backend.
type CompletionConfig struct {
	APIKey      string        // OPENAI_API_KEY
	BaseURL     string        // OPENAI_BASE_URL (optional, OpenAI-compatible gateways)
	Timeout     time.Duration // COMPLETION_TIMEOUT
	MaxTokens   int           // COMPLETION_MAX_TOKENS
	Temperature float64       // COMPLETION_TEMPERATURE
}

// DedupConfig selects and sizes the event deduplicator.
type DedupConfig struct {
	Backend  string        // memory|sql|redis
	Capacity int           // max remembered events (memory backend)
	TTL      time.Duration // how long an event id stays remembered
	RedisURL string        // REDIS_URL when Backend == "redis"
}

// AdminConfig configures privileged commands and the read-only admin API.
type AdminConfig struct {
	UserIDs    []string // ADMIN_USER_IDS
	APIEnabled bool     // ADMIN_API_ENABLED
	JWTSecret  string   // ADMIN_JWT_SECRET
	RateRPS    float64  // ADMIN_RATE_RPS
	RateBurst  int      // ADMIN_RATE_BURST
	CORS       CORSConfig
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 30s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test
	EventsPath        string        // webhook POST path
	AsyncEvents       bool          // ack webhooks before the pipeline finishes

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route

	// Storage
	DatabaseURL    string // sqlite path/URL or postgres URL
	HistoryLimit   int    // turns returned per scope
	RetentionLimit int    // turns kept per (tenant, user)

	// Tenants, in configured order
	Tenants []domain.Tenant

	// Admission
	RateLimit  int           // requests per window per user
	RateWindow time.Duration // trailing window

	// Authentication
	SignatureTolerance time.Duration

	Dedup      DedupConfig
	Completion CompletionConfig
	Admin      AdminConfig

	// Observability
	OTEL OTELConfig
}

// Tenant returns the tenant with the given id.
func (c Config) Tenant(id string) (domain.Tenant, bool) {
	for _, t := range c.Tenants {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Tenant{}, false
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadDotenv reads KEY=VALUE pairs from the given files (default ".env")
// without overriding variables already present in the environment. Missing
// files are ignored.
func LoadDotenv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "3000"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),
		EventsPath:        normalizePath(getenv("EVENTS_PATH", "/slack/events")),
		AsyncEvents:       getbool("EVENTS_ASYNC", true),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),

		// Storage
		DatabaseURL:    getenv("DATABASE_URL", "sqlite://conversations.db"),
		HistoryLimit:   getint("HISTORY_LIMIT", 30),
		RetentionLimit: getint("RETENTION_LIMIT", 100),

		// Admission
		RateLimit:  getint("RATE_LIMIT", 500),
		RateWindow: getdur("RATE_WINDOW", time.Hour),

		SignatureTolerance: getdur("SIGNATURE_TOLERANCE", 5*time.Minute),

		Dedup: DedupConfig{
			Backend:  strings.ToLower(getenv("DEDUP_BACKEND", "memory")),
			Capacity: getint("DEDUP_CAPACITY", 1000),
			TTL:      getdur("DEDUP_TTL", time.Hour),
			RedisURL: getenv("REDIS_URL", ""),
		},

		Completion: CompletionConfig{
			APIKey:      getenv("OPENAI_API_KEY", ""),
			BaseURL:     getenv("OPENAI_BASE_URL", ""),
			Timeout:     getdur("COMPLETION_TIMEOUT", 20*time.Second),
			MaxTokens:   getint("COMPLETION_MAX_TOKENS", 500),
			Temperature: getfloat("COMPLETION_TEMPERATURE", 0.7),
		},

		Admin: AdminConfig{
			UserIDs:    splitCSV(getenv("ADMIN_USER_IDS", "")),
			APIEnabled: getbool("ADMIN_API_ENABLED", false),
			JWTSecret:  getenv("ADMIN_JWT_SECRET", ""),
			RateRPS:    getfloat("ADMIN_RATE_RPS", 2),
			RateBurst:  getint("ADMIN_RATE_BURST", 5),
			CORS: CORSConfig{
				AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
			},
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "duckbot"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}
	cfg.Tenants = loadTenants(splitCSV(strings.ToLower(getenv("TENANTS", "duck"))))

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return cfg, errors.New("DATABASE_URL must not be empty")
	}
	if cfg.HistoryLimit < 1 || cfg.RetentionLimit < 1 {
		return cfg, errors.New("HISTORY_LIMIT and RETENTION_LIMIT must be >= 1")
	}
	if len(cfg.Tenants) == 0 {
		return cfg, errors.New("TENANTS must name at least one bot identity")
	}
	for _, t := range cfg.Tenants {
		if t.SigningSecret == "" {
			return cfg, fmt.Errorf("%s_SIGNING_SECRET must not be empty", strings.ToUpper(t.ID))
		}
	}
	if cfg.RateLimit < 1 {
		return cfg, errors.New("RATE_LIMIT must be >= 1")
	}
	if cfg.RateWindow <= 0 {
		return cfg, errors.New("RATE_WINDOW must be > 0")
	}
	if cfg.SignatureTolerance <= 0 {
		return cfg, errors.New("SIGNATURE_TOLERANCE must be > 0")
	}
	switch cfg.Dedup.Backend {
	case "memory", "sql":
	case "redis":
		if cfg.Dedup.RedisURL == "" {
			return cfg, errors.New("REDIS_URL is required when DEDUP_BACKEND=redis")
		}
	default:
		return cfg, errors.New("DEDUP_BACKEND must be one of: memory, sql, redis")
	}
	if cfg.Dedup.Capacity < 1 {
		return cfg, errors.New("DEDUP_CAPACITY must be >= 1")
	}
	if cfg.Dedup.TTL <= 0 {
		return cfg, errors.New("DEDUP_TTL must be > 0")
	}
	if cfg.Completion.Timeout <= 0 {
		return cfg, errors.New("COMPLETION_TIMEOUT must be > 0")
	}
	if cfg.Completion.MaxTokens < 1 {
		return cfg, errors.New("COMPLETION_MAX_TOKENS must be >= 1")
	}
	if cfg.Completion.Temperature < 0 || cfg.Completion.Temperature > 2 {
		return cfg, errors.New("COMPLETION_TEMPERATURE must be between 0 and 2")
	}
	if cfg.Admin.APIEnabled && cfg.Admin.JWTSecret == "" {
		return cfg, errors.New("ADMIN_JWT_SECRET is required when ADMIN_API_ENABLED=true")
	}
	if cfg.Admin.RateRPS < 0 {
		return cfg, errors.New("ADMIN_RATE_RPS must be >= 0")
	}
	if cfg.Admin.RateBurst < 1 {
		return cfg, errors.New("ADMIN_RATE_BURST must be >= 1")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// loadTenants reads <ID>_* variables for every configured id. The
// single-bot SLACK_* variables still configure "duck" when DUCK_* are unset.
func loadTenants(ids []string) []domain.Tenant {
	title := cases.Title(language.English)
	out := make([]domain.Tenant, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		env := strings.ToUpper(id) + "_"
		t := domain.Tenant{
			ID:            id,
			SigningSecret: getenv(env+"SIGNING_SECRET", ""),
			BotToken:      getenv(env+"BOT_TOKEN", ""),
			Model:         getenv(env+"MODEL", "gpt-3.5-turbo"),
			Prefix:        getenv(env+"PREFIX", "["+title.String(id)+"]"),
		}
		if id == "duck" {
			if t.SigningSecret == "" {
				t.SigningSecret = getenv("SLACK_SIGNING_SECRET", "")
			}
			if t.BotToken == "" {
				t.BotToken = getenv("SLACK_BOT_TOKEN", "")
			}
		}
		t.Directive = getenv(env+"SYSTEM_PROMPT", DefaultDirective(id, t.Prefix))
		out = append(out, t)
	}
	return out
}

// ---- helpers ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizePath ensures a leading '/' and strips a trailing '/' (except root).
func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
